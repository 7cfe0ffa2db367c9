package bracket

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entryResult struct {
	id     string
	score  int
	points int
}

func playedMatch(status MatchStatus, winner, loser entryResult) Match {
	return Match{
		ID:      uuid.New(),
		PhaseID: 1,
		RoundID: 1,
		Status:  status,
		Teams: []Team{
			{ID: 1, Score: winner.score, Players: []PlayerMatchEntry{
				{PlayerID: winner.id, Score: winner.score, Points: winner.points, IsWinner: true, CheckedIn: true},
			}},
			{ID: 2, Score: loser.score, Players: []PlayerMatchEntry{
				{PlayerID: loser.id, Score: loser.score, Points: loser.points},
			}},
		},
		WinnerTeamID: 1,
		WinnerUserID: winner.id,
	}
}

func TestRank(t *testing.T) {
	tour := newTestTournament(4, eliminationPhase(1, 1))
	tour.AllMatches = []Match{
		playedMatch(MatchFinished, entryResult{"player-1", 1, 4}, entryResult{"player-2", 0, 0}),
		playedMatch(MatchClosed, entryResult{"player-3", 1, 4}, entryResult{"player-4", 0, 1}),
		playedMatch(MatchGameInProgress, entryResult{"player-2", 3, 10}, entryResult{"player-4", 0, 0}),
	}

	standings := Rank(tour)
	require.Len(t, standings, 4)

	ids := make([]string, len(standings))
	for i, s := range standings {
		ids[i] = s.PlayerID
		assert.Equal(t, i+1, s.Position)
	}
	assert.Equal(t, []string{"player-1", "player-3", "player-4", "player-2"}, ids)

	first := standings[0]
	assert.Equal(t, 4, first.TotalPoints)
	assert.Equal(t, 1, first.MatchWins)
	assert.Equal(t, 1, first.GameWins)
	assert.Equal(t, 0, first.GameLosses)
	assert.Equal(t, 1, first.RoundsPlayed)
	assert.True(t, first.CheckedIn)

	last := standings[3]
	assert.Equal(t, 0, last.TotalPoints, "open matches are not counted")
	assert.Equal(t, 1, last.MatchLosses)
	assert.Equal(t, 1, last.GameLosses)
}

func TestRankOrdering(t *testing.T) {
	testCases := []struct {
		name string
		a    Standing
		b    Standing
		want int
	}{
		{"points first", Standing{TotalPoints: 5}, Standing{TotalPoints: 4, MatchWins: 9}, -1},
		{"then match wins", Standing{TotalPoints: 4, MatchWins: 1}, Standing{TotalPoints: 4, MatchWins: 2}, 1},
		{"then game wins", Standing{TotalPoints: 4, MatchWins: 1, GameWins: 3}, Standing{TotalPoints: 4, MatchWins: 1, GameWins: 2}, -1},
		{"then rounds", Standing{RoundsPlayed: 1}, Standing{RoundsPlayed: 2}, 1},
		{"full tie", Standing{TotalPoints: 2, RoundsPlayed: 1}, Standing{TotalPoints: 2, RoundsPlayed: 1}, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, compareStandings(tc.a, tc.b))
		})
	}
}

func TestRankIsStableForTies(t *testing.T) {
	tour := newTestTournament(6, eliminationPhase(1, 1))
	for range 5 {
		standings := Rank(tour)
		for i, s := range standings {
			assert.Equal(t, tour.Players[i].ID, s.PlayerID)
		}
	}
}

func TestRankGroup(t *testing.T) {
	gen := NewGenerator(12)
	tour := generated(t, gen, 6, groupPhase(1, 2))

	for _, i := range tour.PhaseMatches(1) {
		win(t, &tour.AllMatches[i], 0)
	}

	for _, group := range tour.PhaseGroups(1) {
		standings := RankGroup(tour, 1, group.ID)
		require.Len(t, standings, len(group.PlayerIDs))
		for _, s := range standings {
			assert.Equal(t, group.ID, s.GroupID)
			assert.Equal(t, len(group.PlayerIDs)-1, s.RoundsPlayed)
		}
		assert.GreaterOrEqual(t, standings[0].TotalPoints, standings[len(standings)-1].TotalPoints)
	}
}

func TestRefreshStats(t *testing.T) {
	tour := newTestTournament(2, eliminationPhase(1, 1))
	tour.AllMatches = []Match{
		playedMatch(MatchFinished, entryResult{"player-2", 2, 5}, entryResult{"player-1", 1, 2}),
	}

	tour.RefreshStats()
	assert.Equal(t, PlayerStats{Wins: 1, Points: 5, RoundsPlayed: 1}, tour.Players[1].Stats)
	assert.Equal(t, PlayerStats{Wins: 0, Points: 2, RoundsPlayed: 1}, tour.Players[0].Stats)
}
