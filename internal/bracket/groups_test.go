package bracket

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupsRoundRobin(t *testing.T) {
	matches, groups, err := NewGenerator(11).Groups(testPlayers(4), groupPhase(1, 1), testNow)
	require.NoError(t, err)

	require.Len(t, groups, 1)
	assert.Len(t, groups[0].PlayerIDs, 4)
	require.Len(t, matches, 6)

	pairs := make(map[[2]string]int)
	for _, m := range matches {
		require.Len(t, m.Teams, 2)
		assert.Equal(t, 1, m.RoundID)
		assert.Equal(t, 1, m.GroupID)
		assert.Equal(t, MatchCreated, m.Status)
		assert.Regexp(t, secretPattern, m.Secret)

		ids := m.PlayerIDs()
		slices.Sort(ids)
		pairs[[2]string{ids[0], ids[1]}]++
	}
	assert.Len(t, pairs, 6)
	for pair, count := range pairs {
		assert.Equal(t, 1, count, "pair %v scheduled more than once", pair)
	}
}

func TestGroupsDistribution(t *testing.T) {
	testCases := []struct {
		name        string
		players     int
		groupCount  int
		wantGroups  int
		wantMatches int
	}{
		{"even split", 8, 2, 2, 12},
		{"uneven split", 10, 3, 3, 12},
		{"singleton groups", 4, 4, 4, 0},
		{"more groups than players", 3, 5, 3, 0},
		{"pair per group", 6, 3, 3, 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			matches, groups, err := NewGenerator(2).Groups(testPlayers(tc.players), groupPhase(1, tc.groupCount), testNow)
			require.NoError(t, err)

			assert.Len(t, matches, tc.wantMatches)
			require.Len(t, groups, tc.wantGroups)

			smallest, largest := tc.players, 0
			total := 0
			for _, g := range groups {
				smallest = min(smallest, len(g.PlayerIDs))
				largest = max(largest, len(g.PlayerIDs))
				total += len(g.PlayerIDs)
			}
			assert.Equal(t, tc.players, total)
			assert.LessOrEqual(t, largest-smallest, 1)

			for _, m := range matches {
				i := slices.IndexFunc(groups, func(g Group) bool { return g.ID == m.GroupID })
				require.GreaterOrEqual(t, i, 0)
				for _, id := range m.PlayerIDs() {
					assert.Contains(t, groups[i].PlayerIDs, id)
				}
			}
		})
	}
}

func TestGeneratePhaseAssignsGroups(t *testing.T) {
	gen := NewGenerator(9)
	tour := newTestTournament(6, groupPhase(1, 2))

	require.NoError(t, gen.GeneratePhase(tour, 1, tour.Players, testNow))

	require.Len(t, tour.PhaseGroups(1), 2)
	for _, p := range tour.Players {
		groupID, ok := tour.GroupOf(1, p.ID)
		require.True(t, ok)
		assert.Equal(t, groupID, p.GroupID)
	}
	// Round robin schedules every pairing up front.
	assert.Len(t, tour.AllMatches, 6)
}

func TestGroupsInvalidConfiguration(t *testing.T) {
	_, _, err := NewGenerator(1).Groups(testPlayers(4), Phase{ID: 1, Type: Groups, TeamSize: 1}, testNow)
	assert.ErrorIs(t, err, ErrConfigurationInvalid)
}
