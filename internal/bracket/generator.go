package bracket

import (
	cryptorand "crypto/rand"
	"encoding/hex"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/elliotchance/pie/v2"
	"github.com/google/uuid"
)

const (
	FullMatchDeadline = 10 * time.Minute
	ByeDeadline       = 30 * time.Minute

	secretBytes = 32
)

// Generator builds matches. Pairing randomness comes from a seedable source,
// match secrets always come from crypto/rand.
type Generator struct {
	rng     *rand.Rand
	secrets func() (string, error)
}

func NewGenerator(seed int64) *Generator {
	return &Generator{
		rng:     rand.New(&lockedSource{src: rand.NewSource(seed)}),
		secrets: NewSecret,
	}
}

// NewSecret returns 64 lowercase hex characters.
func NewSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := cryptorand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read match secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Generators are shared between request handlers and the sweep.
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source
}

func (s *lockedSource) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Int63()
}

func (s *lockedSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Seed(seed)
}

func shuffle[T any](g *Generator, items []T) []T {
	return pie.Shuffle(slices.Clone(items), g.rng)
}

// composeTeams chunks players into teams of teamSize. The last team may be short.
func composeTeams(players []Player, teamSize int) []Team {
	teams := make([]Team, 0, (len(players)+teamSize-1)/teamSize)
	for start := 0; start < len(players); start += teamSize {
		end := min(start+teamSize, len(players))
		teams = append(teams, NewTeam(players[start:end]...))
	}
	return teams
}

// SingleElimination builds round 1 of a phase: shuffle, chunk into teams,
// pair team 2i with 2i+1. An odd team out gets a bye match.
func (g *Generator) SingleElimination(players []Player, phase Phase, now time.Time) ([]Match, error) {
	if err := phase.Validate(); err != nil {
		return nil, err
	}
	if len(players) < 2 {
		return nil, nil
	}
	teams := composeTeams(shuffle(g, players), phase.TeamSize)
	return g.pairTeams(teams, phase, 1, 0, now)
}

func (g *Generator) pairTeams(teams []Team, phase Phase, roundID, groupID int, now time.Time) ([]Match, error) {
	matches := make([]Match, 0, (len(teams)+1)/2)
	for i := 0; i < len(teams); i += 2 {
		pair := teams[i:min(i+2, len(teams))]
		m, err := g.newMatch(phase, roundID, groupID, pair, now)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// NewWaitingMatch opens a one-team match that waits for an opponent.
func (g *Generator) NewWaitingMatch(phase Phase, roundID int, team Team, now time.Time) (Match, error) {
	return g.newMatch(phase, roundID, 0, []Team{team}, now)
}

func (g *Generator) newMatch(phase Phase, roundID, groupID int, teams []Team, now time.Time) (Match, error) {
	secret, err := g.secrets()
	if err != nil {
		return Match{}, err
	}
	round := phase.Round(roundID)
	m := Match{
		ID:           uuid.New(),
		PhaseID:      phase.ID,
		RoundID:      roundID,
		GroupID:      groupID,
		WinScore:     round.WinScore,
		MaxGameCount: round.MaxGameCount,
		Secret:       secret,
		CreatedAt:    now,
	}
	for i, team := range teams {
		team = team.Clone()
		team.ID = i + 1
		m.Teams = append(m.Teams, team)
	}
	if len(m.Teams) < phase.TeamsPerMatch() {
		m.Status = MatchWaitingForOpponent
		m.Deadline = now.Add(ByeDeadline)
	} else {
		m.Status = MatchCreated
		m.Deadline = now.Add(FullMatchDeadline)
	}
	return m, nil
}

// GeneratePhase materializes the matches of a phase from the given pool. It runs
// at most once per phase.
func (g *Generator) GeneratePhase(t *Tournament, phaseID int, players []Player, now time.Time) error {
	phase, err := t.Phase(phaseID)
	if err != nil {
		return err
	}
	if t.ProgressOf(phaseID).Generated {
		return nil
	}

	var matches []Match
	switch phase.Type {
	case SingleElimination:
		matches, err = g.SingleElimination(players, *phase, now)
	case Groups:
		var groups []Group
		matches, groups, err = g.Groups(players, *phase, now)
		if err == nil {
			t.assignGroups(groups)
		}
	default:
		err = fmt.Errorf("%w: phase %d has unknown type %q", ErrConfigurationInvalid, phase.ID, phase.Type)
	}
	if err != nil {
		return err
	}

	for _, m := range matches {
		if err := t.AddMatch(m); err != nil {
			return fmt.Errorf("failed to add generated match: %w", err)
		}
	}
	t.ProgressOf(phaseID).Generated = true
	return nil
}
