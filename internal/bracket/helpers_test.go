package bracket

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

func testPlayers(n int) []Player {
	players := make([]Player, n)
	for i := range players {
		players[i] = Player{
			ID:           fmt.Sprintf("player-%d", i+1),
			Nick:         fmt.Sprintf("Player %d", i+1),
			Seed:         i + 1,
			RegisteredAt: testNow,
		}
	}
	return players
}

func eliminationPhase(id, teamSize int) Phase {
	return Phase{ID: id, Type: SingleElimination, TeamSize: teamSize}
}

func groupPhase(id, groupCount int) Phase {
	return Phase{ID: id, Type: Groups, TeamSize: 1, GroupCount: groupCount}
}

func newTestTournament(players int, phases ...Phase) *Tournament {
	return &Tournament{
		ID:             uuid.New(),
		Name:           "Weekend Cup",
		Status:         TournamentStarted,
		Phases:         phases,
		Players:        testPlayers(players),
		CurrentPhaseID: phases[0].ID,
		CreatedAt:      testNow,
	}
}

// generated returns a tournament with its first phase already materialized.
func generated(t *testing.T, gen *Generator, players int, phases ...Phase) *Tournament {
	t.Helper()
	tour := newTestTournament(players, phases...)
	require.NoError(t, gen.GeneratePhase(tour, phases[0].ID, tour.Players, testNow))
	return tour
}

// win plays a single deciding game for team teamIdx.
func win(t *testing.T, m *Match, teamIdx int) {
	t.Helper()
	if m.Status == MatchCreated || m.Status == MatchWaitingForOpponent {
		m.Status = MatchGameReady
	}
	_, err := ApplyGameResult(m, GameResult{
		Places: []PlayerPlace{{PlayerID: m.Teams[teamIdx].Players[0].PlayerID, Place: 1}},
	}, testNow)
	require.NoError(t, err)
	require.Equal(t, MatchFinished, m.Status)
}

func roundMatches(tour *Tournament, phaseID, round int) []*Match {
	var matches []*Match
	for _, i := range tour.PhaseMatches(phaseID) {
		if tour.AllMatches[i].RoundID == round {
			matches = append(matches, &tour.AllMatches[i])
		}
	}
	return matches
}

func matchWithTeams(tour *Tournament, phaseID, round, teams int) []*Match {
	var matches []*Match
	for _, m := range roundMatches(tour, phaseID, round) {
		if len(m.Teams) == teams {
			matches = append(matches, m)
		}
	}
	return matches
}
