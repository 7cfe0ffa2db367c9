package views

import (
	"sort"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
)

// BracketData is the per-round layout of one phase, ready to be rendered.
type BracketData struct {
	PhaseID   int                       `json:"phase_id"`
	PhaseType bracket.PhaseType         `json:"phase_type"`
	Rounds    map[int][]bracket.Match   `json:"rounds"`
	RoundNums []int                     `json:"round_nums"`
	Groups    []bracket.Group           `json:"groups,omitempty"`
	PlayerMap map[string]bracket.Player `json:"players"`
	Completed bool                      `json:"completed"`
}

func PrepareBracketData(t *bracket.Tournament, phaseID int) (BracketData, error) {
	phase, err := t.Phase(phaseID)
	if err != nil {
		return BracketData{}, err
	}

	rounds := make(map[int][]bracket.Match)
	var roundNums []int
	playerMap := make(map[string]bracket.Player)

	for _, i := range t.PhaseMatches(phaseID) {
		m := t.AllMatches[i]
		if _, exists := rounds[m.RoundID]; !exists {
			roundNums = append(roundNums, m.RoundID)
		}
		m.Secret = ""
		rounds[m.RoundID] = append(rounds[m.RoundID], m)
		for _, id := range m.PlayerIDs() {
			if p, ok := t.Player(id); ok {
				playerMap[id] = *p
			}
		}
	}

	sort.Ints(roundNums)
	sortRounds(rounds, roundNums)

	return BracketData{
		PhaseID:   phase.ID,
		PhaseType: phase.Type,
		Rounds:    rounds,
		RoundNums: roundNums,
		Groups:    t.PhaseGroups(phaseID),
		PlayerMap: playerMap,
		Completed: t.ProgressOf(phaseID).Completed,
	}, nil
}

// sortRounds orders each round by group, then by creation time.
func sortRounds(rounds map[int][]bracket.Match, roundNums []int) {
	for _, r := range roundNums {
		sort.SliceStable(rounds[r], func(i, j int) bool {
			a, b := rounds[r][i], rounds[r][j]
			if a.GroupID != b.GroupID {
				return a.GroupID < b.GroupID
			}
			return a.CreatedAt.Before(b.CreatedAt)
		})
	}
}
