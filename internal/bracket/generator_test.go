package bracket

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secretPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestSingleElimination(t *testing.T) {
	testCases := []struct {
		name        string
		players     int
		teamSize    int
		wantMatches int
		wantByes    int
	}{
		{"no players", 0, 1, 0, 0},
		{"one player", 1, 1, 0, 0},
		{"two players", 2, 1, 1, 0},
		{"five players", 5, 1, 3, 1},
		{"seven players", 7, 1, 4, 1},
		{"eight players", 8, 1, 4, 0},
		{"teams of two", 8, 2, 2, 0},
		{"odd number of teams", 6, 2, 2, 1},
		{"short trailing team", 5, 2, 2, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gen := NewGenerator(7)
			players := testPlayers(tc.players)

			matches, err := gen.SingleElimination(players, eliminationPhase(1, tc.teamSize), testNow)
			require.NoError(t, err)
			require.Len(t, matches, tc.wantMatches)

			byes := 0
			seen := make(map[string]int)
			for _, m := range matches {
				assert.Equal(t, 1, m.RoundID)
				assert.Equal(t, 1, m.PhaseID)
				assert.Regexp(t, secretPattern, m.Secret)
				assert.NotEmpty(t, m.Teams)

				if len(m.Teams) == 1 {
					byes++
					assert.Equal(t, MatchWaitingForOpponent, m.Status)
					assert.Equal(t, testNow.Add(ByeDeadline), m.Deadline)
				} else {
					assert.Len(t, m.Teams, 2)
					assert.Equal(t, MatchCreated, m.Status)
					assert.Equal(t, testNow.Add(FullMatchDeadline), m.Deadline)
				}
				for i, team := range m.Teams {
					assert.Equal(t, i+1, team.ID)
					assert.LessOrEqual(t, len(team.Players), tc.teamSize)
				}
				for _, id := range m.PlayerIDs() {
					seen[id]++
				}
			}

			assert.Equal(t, tc.wantByes, byes)
			if tc.players >= 2 {
				require.Len(t, seen, tc.players)
				for id, count := range seen {
					assert.Equal(t, 1, count, "player %s placed more than once", id)
				}
			}
		})
	}
}

func TestSingleEliminationIsSeedable(t *testing.T) {
	players := testPlayers(16)

	first, err := NewGenerator(42).SingleElimination(players, eliminationPhase(1, 1), testNow)
	require.NoError(t, err)
	second, err := NewGenerator(42).SingleElimination(players, eliminationPhase(1, 1), testNow)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].PlayerIDs(), second[i].PlayerIDs())
		assert.NotEqual(t, first[i].Secret, second[i].Secret, "secrets must not follow the pairing seed")
	}
}

func TestSingleEliminationDoesNotReorderInput(t *testing.T) {
	players := testPlayers(6)
	before := append([]Player(nil), players...)

	_, err := NewGenerator(3).SingleElimination(players, eliminationPhase(1, 1), testNow)
	require.NoError(t, err)
	assert.Equal(t, before, players)
}

func TestSecretsAreUnique(t *testing.T) {
	matches, err := NewGenerator(1).SingleElimination(testPlayers(64), eliminationPhase(1, 1), testNow)
	require.NoError(t, err)

	secrets := make(map[string]bool)
	for _, m := range matches {
		assert.False(t, secrets[m.Secret], "secret reused")
		secrets[m.Secret] = true
	}
}

func TestSingleEliminationInvalidConfiguration(t *testing.T) {
	testCases := []struct {
		name  string
		phase Phase
	}{
		{"zero team size", Phase{ID: 1, Type: SingleElimination}},
		{"unknown type", Phase{ID: 1, Type: "swiss", TeamSize: 1}},
		{"three teams per match", Phase{ID: 1, Type: SingleElimination, TeamSize: 1, MaxTeamsPerMatch: 3}},
		{"negative round count", Phase{ID: 1, Type: SingleElimination, TeamSize: 1, RoundCount: -1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewGenerator(1).SingleElimination(testPlayers(4), tc.phase, testNow)
			assert.ErrorIs(t, err, ErrConfigurationInvalid)
		})
	}
}

func TestGeneratePhaseRunsOnce(t *testing.T) {
	gen := NewGenerator(5)
	tour := newTestTournament(6, eliminationPhase(1, 1))

	require.NoError(t, gen.GeneratePhase(tour, 1, tour.Players, testNow))
	require.Len(t, tour.AllMatches, 3)
	assert.True(t, tour.ProgressOf(1).Generated)

	require.NoError(t, gen.GeneratePhase(tour, 1, tour.Players, testNow))
	assert.Len(t, tour.AllMatches, 3)
}

func TestGeneratePhaseUnknownPhase(t *testing.T) {
	tour := newTestTournament(4, eliminationPhase(1, 1))
	err := NewGenerator(1).GeneratePhase(tour, 9, tour.Players, testNow)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRoundTemplateDefaults(t *testing.T) {
	phase := Phase{
		ID: 1, Type: SingleElimination, TeamSize: 1,
		Rounds: []Round{{ID: 1, WinScore: 2, MaxGameCount: 3}, {ID: 2}},
	}

	assert.Equal(t, Round{ID: 1, WinScore: 2, MaxGameCount: 3}, phase.Round(1))
	assert.Equal(t, Round{ID: 2, WinScore: DefaultWinScore, MaxGameCount: DefaultMaxGameCount}, phase.Round(2))
	assert.Equal(t, Round{ID: 5, WinScore: 2, MaxGameCount: 3}, phase.Round(5))
	assert.Equal(t, Round{ID: 1, WinScore: DefaultWinScore, MaxGameCount: DefaultMaxGameCount}, Phase{}.Round(1))
	assert.Equal(t, 3, Phase{}.Round(1).MaxGameCount)
}
