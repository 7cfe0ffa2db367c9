package bracket

import (
	"cmp"
	"slices"
)

type Standing struct {
	Position     int    `json:"position"`
	PlayerID     string `json:"player_id"`
	Nick         string `json:"nick"`
	PartyID      string `json:"party_id,omitempty"`
	GroupID      int    `json:"group_id,omitempty"`
	TotalPoints  int    `json:"total_points"`
	MatchWins    int    `json:"match_wins"`
	MatchLosses  int    `json:"match_losses"`
	GameWins     int    `json:"game_wins"`
	GameLosses   int    `json:"game_losses"`
	MatchPoints  int    `json:"match_points"`
	RoundsPlayed int    `json:"rounds_played"`
	CheckedIn    bool   `json:"checked_in"`
}

// Rank builds the tournament leaderboard over every finished match.
func Rank(t *Tournament) []Standing {
	return rankPlayers(t.Players, t.AllMatches, func(*Match) bool { return true })
}

// RankGroup ranks the members of one group over that group's matches only.
func RankGroup(t *Tournament, phaseID, groupID int) []Standing {
	var members []Player
	for _, g := range t.PhaseGroups(phaseID) {
		if g.ID == groupID {
			members = t.PlayersByID(g.PlayerIDs)
		}
	}
	return rankPlayers(members, t.AllMatches, func(m *Match) bool {
		return m.PhaseID == phaseID && m.GroupID == groupID
	})
}

func rankPlayers(players []Player, matches []Match, include func(*Match) bool) []Standing {
	standings := make([]Standing, len(players))
	index := make(map[string]int, len(players))
	for i, p := range players {
		standings[i] = Standing{PlayerID: p.ID, Nick: p.Nick, PartyID: p.PartyID, GroupID: p.GroupID}
		index[p.ID] = i
	}

	for mi := range matches {
		m := &matches[mi]
		if !m.IsFinished() || !include(m) {
			continue
		}
		for ti, team := range m.Teams {
			opponentWins := 0
			for oi, other := range m.Teams {
				if oi != ti {
					opponentWins += other.GameWins()
				}
			}
			for _, e := range team.Players {
				i, ok := index[e.PlayerID]
				if !ok {
					continue
				}
				s := &standings[i]
				s.RoundsPlayed++
				s.TotalPoints += e.Points
				s.MatchPoints += e.MatchPoints
				s.GameWins += e.Score
				s.GameLosses += opponentWins
				if e.IsWinner {
					s.MatchWins++
				} else {
					s.MatchLosses++
				}
				s.CheckedIn = s.CheckedIn || e.CheckedIn
			}
		}
	}

	// Stable: full ties keep registration order.
	slices.SortStableFunc(standings, compareStandings)
	for i := range standings {
		standings[i].Position = i + 1
	}
	return standings
}

func compareStandings(a, b Standing) int {
	return cmp.Or(
		cmp.Compare(b.TotalPoints, a.TotalPoints),
		cmp.Compare(b.MatchWins, a.MatchWins),
		cmp.Compare(b.GameWins, a.GameWins),
		cmp.Compare(b.RoundsPlayed, a.RoundsPlayed),
	)
}
