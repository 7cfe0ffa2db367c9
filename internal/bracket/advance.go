package bracket

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AdvanceResult struct {
	Created             []uuid.UUID
	Filled              []uuid.UUID
	PhaseCompleted      bool
	NextPhaseID         int
	TournamentCompleted bool
}

func (r AdvanceResult) Changed() bool {
	return len(r.Created) > 0 || len(r.Filled) > 0 || r.PhaseCompleted
}

// Advance moves winners of finished matches forward and closes the phase when
// it is decided. Running it again over the same state changes nothing.
func (g *Generator) Advance(t *Tournament, phaseID int, now time.Time) (AdvanceResult, error) {
	var res AdvanceResult
	phase, err := t.Phase(phaseID)
	if err != nil {
		return res, err
	}
	if err := phase.Validate(); err != nil {
		return res, err
	}
	if t.ProgressOf(phaseID).Completed {
		return res, nil
	}

	var (
		done     bool
		promoted []string
		champion string
	)
	switch phase.Type {
	case SingleElimination:
		if err := g.advanceElimination(t, *phase, now, &res); err != nil {
			return res, err
		}
		done, promoted, champion = t.eliminationOutcome(*phase)
	case Groups:
		done, promoted = t.groupOutcome(*phase)
	default:
		return res, fmt.Errorf("%w: phase %d has unknown type %q", ErrConfigurationInvalid, phase.ID, phase.Type)
	}
	if !done {
		return res, nil
	}
	return res, g.completePhase(t, *phase, promoted, champion, now, &res)
}

func (g *Generator) advanceElimination(t *Tournament, phase Phase, now time.Time, res *AdvanceResult) error {
	capacity := phase.TeamsPerMatch()
	for round := 1; round <= t.maxRound(phase.ID); round++ {
		next := round + 1
		if phase.RoundCount > 0 && next > phase.RoundCount {
			break
		}

		pending := t.unplacedWinners(phase.ID, round)
		for len(pending) > 0 {
			slot := t.OpenSlot(phase.ID, next, capacity)
			if slot == nil {
				break
			}
			if err := slot.AddTeam(pending[0], capacity, now); err != nil {
				return err
			}
			res.Filled = append(res.Filled, slot.ID)
			pending = pending[1:]
		}

		if len(pending) == 0 || (len(pending) == 1 && t.lastStanding(phase)) {
			continue
		}
		matches, err := g.pairTeams(shuffle(g, pending), phase, next, 0, now)
		if err != nil {
			return err
		}
		for _, m := range matches {
			if err := t.AddMatch(m); err != nil {
				return fmt.Errorf("failed to add round %d match: %w", next, err)
			}
			res.Created = append(res.Created, m.ID)
		}
	}
	return nil
}

// eliminationOutcome reports whether the phase is decided. It is once nothing
// is open and at most one team survives, or the round cap was reached.
func (t *Tournament) eliminationOutcome(phase Phase) (bool, []string, string) {
	if len(t.PhaseMatches(phase.ID)) == 0 || t.hasOpenMatches(phase.ID) {
		return false, nil, ""
	}
	survivors := t.survivors(phase.ID)
	capped := phase.RoundCount > 0 && t.maxRound(phase.ID) >= phase.RoundCount
	if len(survivors) > 1 && !capped {
		return false, nil, ""
	}

	var promoted []string
	for _, team := range survivors {
		promoted = append(promoted, team.PlayerIDs()...)
	}
	champion := ""
	if len(survivors) == 1 && len(survivors[0].Players) > 0 {
		champion = survivors[0].Players[0].PlayerID
	}
	return true, promoted, champion
}

// groupOutcome promotes the top player of every group once all group matches are done.
func (t *Tournament) groupOutcome(phase Phase) (bool, []string) {
	groups := t.PhaseGroups(phase.ID)
	if len(groups) == 0 || t.hasOpenMatches(phase.ID) {
		return false, nil
	}
	var promoted []string
	for _, group := range groups {
		if standings := RankGroup(t, phase.ID, group.ID); len(standings) > 0 {
			promoted = append(promoted, standings[0].PlayerID)
		}
	}
	return true, promoted
}

func (g *Generator) completePhase(t *Tournament, phase Phase, promoted []string, champion string, now time.Time, res *AdvanceResult) error {
	progress := t.ProgressOf(phase.ID)
	progress.Completed = true
	progress.Promoted = promoted
	progress.ChampionID = champion
	res.PhaseCompleted = true

	if next, ok := t.NextPhase(phase.ID); ok && len(promoted) >= 2 {
		t.CurrentPhaseID = next.ID
		res.NextPhaseID = next.ID
		return g.GeneratePhase(t, next.ID, t.PlayersByID(promoted), now)
	}

	t.Status = TournamentCompleted
	t.WinnerID = champion
	if t.WinnerID == "" && len(promoted) == 1 {
		t.WinnerID = promoted[0]
	}
	res.TournamentCompleted = true
	return nil
}

// unplacedWinners returns fresh copies of the teams that won a round-r match
// and have not been placed in round r+1 yet.
func (t *Tournament) unplacedWinners(phaseID, round int) []Team {
	var teams []Team
	for _, i := range t.PhaseMatches(phaseID) {
		m := &t.AllMatches[i]
		if m.RoundID != round {
			continue
		}
		team, ok := m.WinningTeam()
		if !ok || t.inRound(phaseID, round+1, team.PlayerIDs()) {
			continue
		}
		teams = append(teams, team.Fresh())
	}
	return teams
}

func (t *Tournament) survivors(phaseID int) []Team {
	var teams []Team
	for round := 1; round <= t.maxRound(phaseID); round++ {
		teams = append(teams, t.unplacedWinners(phaseID, round)...)
	}
	return teams
}

// lastStanding is true when a single winner remains and nothing else is open.
func (t *Tournament) lastStanding(phase Phase) bool {
	return !t.hasOpenMatches(phase.ID) && len(t.survivors(phase.ID)) == 1
}

func (t *Tournament) inRound(phaseID, round int, playerIDs []string) bool {
	for _, i := range t.PhaseMatches(phaseID) {
		m := &t.AllMatches[i]
		if m.RoundID != round {
			continue
		}
		for _, id := range playerIDs {
			if m.HasPlayer(id) {
				return true
			}
		}
	}
	return false
}

func (t *Tournament) maxRound(phaseID int) int {
	highest := 0
	for _, i := range t.PhaseMatches(phaseID) {
		highest = max(highest, t.AllMatches[i].RoundID)
	}
	return highest
}

func (t *Tournament) hasOpenMatches(phaseID int) bool {
	for _, i := range t.PhaseMatches(phaseID) {
		if t.AllMatches[i].IsOpen() {
			return true
		}
	}
	return false
}

// OpenSlot returns a started-but-not-full match of the round, if any.
func (t *Tournament) OpenSlot(phaseID, round, capacity int) *Match {
	for _, i := range t.PhaseMatches(phaseID) {
		m := &t.AllMatches[i]
		if m.RoundID == round && len(m.Teams) > 0 && m.HasCapacity(capacity) {
			return m
		}
	}
	return nil
}

// LastWonRound returns the highest round the player won in the phase, and
// whether they lost any match there.
func (t *Tournament) LastWonRound(phaseID int, playerID string) (round int, eliminated bool) {
	for _, i := range t.PhaseMatches(phaseID) {
		m := &t.AllMatches[i]
		entry := m.Entry(playerID)
		if entry == nil || !m.IsFinished() {
			continue
		}
		if entry.IsWinner {
			round = max(round, m.RoundID)
		} else {
			eliminated = true
		}
	}
	return round, eliminated
}
