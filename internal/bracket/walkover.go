package bracket

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	WinPoints             = 3
	MaxWalkoverExtensions = 2
)

type WalkoverResolution string

const (
	WalkoverAwarded       WalkoverResolution = "awarded"
	WalkoverDoubleForfeit WalkoverResolution = "double_forfeit"
	WalkoverExtended      WalkoverResolution = "extended"
)

type WalkoverOutcome struct {
	MatchID      uuid.UUID
	PhaseID      int
	Resolution   WalkoverResolution
	WinnerTeamID int
}

// Finished reports whether the outcome ended the match.
func (o WalkoverOutcome) Finished() bool {
	return o.Resolution == WalkoverAwarded || o.Resolution == WalkoverDoubleForfeit
}

// WalkoverDue reports whether a match waiting on its players has run past
// deadline+grace. Matches with a game running are never due, and neither is
// a series that has already played a game.
func WalkoverDue(m Match, now time.Time, grace time.Duration) bool {
	if m.CurrentGameCount > 0 {
		return false
	}
	switch m.Status {
	case MatchCreated, MatchWaitingForOpponent, MatchGameReady:
		return now.After(m.Deadline.Add(grace))
	case MatchGameInProgress, MatchGameFinished, MatchFinished, MatchClosed:
		return false
	}
	return false
}

// ResolveWalkover settles an overdue match:
//   - one team present: that team wins by walkover
//   - nobody present: double forfeit, nobody advances
//   - everyone present: the deadline is extended up to MaxWalkoverExtensions
//     times, then the team with more checked-in players wins, or both forfeit
func ResolveWalkover(m *Match, now time.Time, grace time.Duration) (WalkoverOutcome, bool, error) {
	if !WalkoverDue(*m, now, grace) {
		return WalkoverOutcome{}, false, nil
	}
	outcome := WalkoverOutcome{MatchID: m.ID, PhaseID: m.PhaseID}

	var present []int
	for i, team := range m.Teams {
		if team.CheckedInCount() > 0 {
			present = append(present, i)
		}
	}

	switch {
	case len(present) == 1:
		outcome.Resolution = WalkoverAwarded
		outcome.WinnerTeamID = m.Teams[present[0]].ID
		return outcome, true, awardWalkover(m, present[0], now)
	case len(present) == 0:
		outcome.Resolution = WalkoverDoubleForfeit
		return outcome, true, awardWalkover(m, -1, now)
	case m.Extensions < MaxWalkoverExtensions:
		m.Extensions++
		m.Deadline = now.Add(FullMatchDeadline)
		outcome.Resolution = WalkoverExtended
		return outcome, true, nil
	}

	order := checkInOrder(m.Teams)
	if m.Teams[order[0]].CheckedInCount() == m.Teams[order[1]].CheckedInCount() {
		outcome.Resolution = WalkoverDoubleForfeit
		return outcome, true, awardWalkover(m, -1, now)
	}
	outcome.Resolution = WalkoverAwarded
	outcome.WinnerTeamID = m.Teams[order[0]].ID
	return outcome, true, awardWalkover(m, order[0], now)
}

func checkInOrder(teams []Team) []int {
	best, second := 0, 1
	if teams[second].CheckedInCount() > teams[best].CheckedInCount() {
		best, second = second, best
	}
	for i := 2; i < len(teams); i++ {
		switch c := teams[i].CheckedInCount(); {
		case c > teams[best].CheckedInCount():
			best, second = i, best
		case c > teams[second].CheckedInCount():
			second = i
		}
	}
	return []int{best, second}
}

// awardWalkover finishes the match with winner as the only winning team;
// winner -1 forfeits everybody.
func awardWalkover(m *Match, winner int, now time.Time) error {
	for ti := range m.Teams {
		if ti != winner {
			m.Teams[ti].Score = 0
		}
		for pi := range m.Teams[ti].Players {
			entry := &m.Teams[ti].Players[pi]
			if ti == winner {
				entry.IsWinner = true
				entry.Points = WinPoints
				continue
			}
			entry.IsWinner = false
			entry.Score = 0
			entry.Points = 0
		}
	}
	m.recomputeTeams()
	m.CurrentGameCount = m.MaxGameCount
	m.Walkover = true
	if winner >= 0 {
		m.WinnerTeamID = m.Teams[winner].ID
		if len(m.Teams[winner].Players) > 0 {
			m.WinnerUserID = m.Teams[winner].Players[0].PlayerID
		}
	}
	return m.Transition(MatchFinished, now)
}

// ResolveWalkovers runs ResolveWalkover over every match of the tournament.
// A failing match does not stop the scan; its error is returned joined with
// the others.
func ResolveWalkovers(t *Tournament, now time.Time, grace time.Duration) ([]WalkoverOutcome, error) {
	var (
		outcomes []WalkoverOutcome
		errs     []error
	)
	for i := range t.AllMatches {
		outcome, changed, err := ResolveWalkover(&t.AllMatches[i], now, grace)
		if err != nil {
			errs = append(errs, fmt.Errorf("match %s: %w", t.AllMatches[i].ID, err))
			continue
		}
		if changed {
			outcomes = append(outcomes, outcome)
		}
	}
	return outcomes, errors.Join(errs...)
}
