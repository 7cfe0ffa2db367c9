package bracket

import (
	"time"

	"github.com/elliotchance/pie/v2"
)

// Groups deals shuffled players into phase.GroupCount groups by index and
// schedules every team pairing inside each group. Group ids start at 1.
func (g *Generator) Groups(players []Player, phase Phase, now time.Time) ([]Match, []Group, error) {
	if err := phase.Validate(); err != nil {
		return nil, nil, err
	}

	buckets := make([][]Player, phase.GroupCount)
	for i, p := range shuffle(g, players) {
		buckets[i%phase.GroupCount] = append(buckets[i%phase.GroupCount], p)
	}

	var (
		matches []Match
		groups  []Group
	)
	for i, members := range buckets {
		groupID := i + 1
		if len(members) == 0 {
			continue
		}
		groups = append(groups, Group{
			PhaseID:   phase.ID,
			ID:        groupID,
			PlayerIDs: pie.Map(members, func(p Player) string { return p.ID }),
		})

		teams := composeTeams(shuffle(g, members), phase.TeamSize)
		if len(teams) < 2 {
			continue
		}
		for a := 0; a < len(teams); a++ {
			for b := a + 1; b < len(teams); b++ {
				m, err := g.newMatch(phase, 1, groupID, []Team{teams[a], teams[b]}, now)
				if err != nil {
					return nil, nil, err
				}
				matches = append(matches, m)
			}
		}
	}
	return matches, groups, nil
}

func (t *Tournament) assignGroups(groups []Group) {
	for _, group := range groups {
		t.Groups = append(t.Groups, group)
		for _, id := range group.PlayerIDs {
			if p, ok := t.Player(id); ok {
				p.GroupID = group.ID
			}
		}
	}
}
