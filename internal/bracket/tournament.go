package bracket

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

type TournamentStatus string

const (
	TournamentRegistration TournamentStatus = "registration"
	TournamentStarted      TournamentStatus = "started"
	TournamentCompleted    TournamentStatus = "completed"
	TournamentCanceled     TournamentStatus = "canceled"
)

// IsActive reports whether the periodic sweep should look at the tournament.
func (s TournamentStatus) IsActive() bool {
	switch s {
	case TournamentStarted:
		return true
	case TournamentRegistration, TournamentCompleted, TournamentCanceled:
		return false
	}
	return false
}

// AcceptsPlayers reports whether new registrations are allowed.
func (s TournamentStatus) AcceptsPlayers() bool {
	switch s {
	case TournamentRegistration, TournamentStarted:
		return true
	case TournamentCompleted, TournamentCanceled:
		return false
	}
	return false
}

type PhaseType string

const (
	SingleElimination PhaseType = "single_elimination"
	Groups            PhaseType = "groups"
)

func (t PhaseType) Valid() bool {
	switch t {
	case SingleElimination, Groups:
		return true
	}
	return false
}

const (
	DefaultWinScore      = 1
	DefaultMaxGameCount  = 3
	DefaultTeamsPerMatch = 2
)

// Round is a configuration template. Matches copy what they need from it at creation.
type Round struct {
	ID                     int   `json:"id"`
	WinScore               int   `json:"win_score"`
	MaxGameCount           int   `json:"max_game_count"`
	MaxLengthSeconds       int   `json:"max_length_seconds,omitempty"`
	MinGameLengthSeconds   int   `json:"min_game_length_seconds,omitempty"`
	MatchPointDistribution []int `json:"match_point_distribution,omitempty"`
}

type Phase struct {
	ID         int       `json:"id"`
	Type       PhaseType `json:"type"`
	RoundCount int       `json:"round_count"`
	GroupCount int       `json:"group_count,omitempty"`
	TeamSize   int       `json:"team_size"`

	MinTeamsPerMatch   int `json:"min_teams_per_match,omitempty"`
	MaxTeamsPerMatch   int `json:"max_teams_per_match,omitempty"`
	MinCheckinsPerTeam int `json:"min_checkins_per_team,omitempty"`

	// Recorded for the registration subsystem, the engine does not act on them.
	MaxLoses               int   `json:"max_loses,omitempty"`
	AllowedRebuyCount      int   `json:"allowed_rebuy_count,omitempty"`
	AllowedRebuyUntilRound int   `json:"allowed_rebuy_until_round,omitempty"`
	RebuyPrice             int64 `json:"rebuy_price,omitempty"`

	Rounds []Round `json:"rounds,omitempty"`
}

func (p Phase) Validate() error {
	if !p.Type.Valid() {
		return fmt.Errorf("%w: phase %d has unknown type %q", ErrConfigurationInvalid, p.ID, p.Type)
	}
	if p.TeamSize < 1 {
		return fmt.Errorf("%w: phase %d team size must be positive, got %d", ErrConfigurationInvalid, p.ID, p.TeamSize)
	}
	if p.RoundCount < 0 {
		return fmt.Errorf("%w: phase %d round count is negative", ErrConfigurationInvalid, p.ID)
	}
	if p.Type == Groups && p.GroupCount < 1 {
		return fmt.Errorf("%w: phase %d needs at least one group", ErrConfigurationInvalid, p.ID)
	}
	// Pairing is head-to-head only
	if p.MaxTeamsPerMatch != 0 && p.MaxTeamsPerMatch != DefaultTeamsPerMatch {
		return fmt.Errorf("%w: phase %d supports %d teams per match, got %d", ErrConfigurationInvalid, p.ID, DefaultTeamsPerMatch, p.MaxTeamsPerMatch)
	}
	return nil
}

func (p Phase) TeamsPerMatch() int {
	if p.MaxTeamsPerMatch > 0 {
		return p.MaxTeamsPerMatch
	}
	return DefaultTeamsPerMatch
}

// Round returns the template for roundID with defaults filled in.
// Phases without explicit templates fall back to the first one.
func (p Phase) Round(roundID int) Round {
	round := Round{ID: roundID}
	if i := slices.IndexFunc(p.Rounds, func(r Round) bool { return r.ID == roundID }); i >= 0 {
		round = p.Rounds[i]
	} else if len(p.Rounds) > 0 {
		round = p.Rounds[0]
		round.ID = roundID
	}
	if round.WinScore <= 0 {
		round.WinScore = DefaultWinScore
	}
	if round.MaxGameCount <= 0 {
		round.MaxGameCount = DefaultMaxGameCount
	}
	return round
}

type Player struct {
	ID           string      `json:"id"`
	Nick         string      `json:"nick"`
	PartyID      string      `json:"party_id,omitempty"`
	Seed         int         `json:"seed"`
	GroupID      int         `json:"group_id,omitempty"`
	Stats        PlayerStats `json:"stats"`
	CheckedIn    bool        `json:"checked_in"`
	RegisteredAt time.Time   `json:"registered_at"`
}

type PlayerStats struct {
	Wins         int `json:"wins"`
	Points       int `json:"points"`
	RoundsPlayed int `json:"rounds_played"`
}

type Group struct {
	PhaseID   int      `json:"phase_id"`
	ID        int      `json:"id"`
	PlayerIDs []string `json:"player_ids"`
}

// PhaseProgress is the runtime state of a phase, kept apart from its configuration.
type PhaseProgress struct {
	PhaseID    int      `json:"phase_id"`
	Generated  bool     `json:"generated"`
	Completed  bool     `json:"completed"`
	Promoted   []string `json:"promoted,omitempty"`
	ChampionID string   `json:"champion_id,omitempty"`
}

type Tournament struct {
	ID             uuid.UUID        `json:"id"`
	Name           string           `json:"name"`
	Status         TournamentStatus `json:"status"`
	Phases         []Phase          `json:"phases"`
	Players        []Player         `json:"players"`
	AllMatches     []Match          `json:"matches"`
	Groups         []Group          `json:"groups,omitempty"`
	Progress       []PhaseProgress  `json:"progress,omitempty"`
	CurrentPhaseID int              `json:"current_phase_id"`
	WinnerID       string           `json:"winner_id,omitempty"`
	PrizePool      int64            `json:"prize_pool,omitempty"`
	Version        int64            `json:"version"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func (t *Tournament) Phase(id int) (*Phase, error) {
	for i := range t.Phases {
		if t.Phases[i].ID == id {
			return &t.Phases[i], nil
		}
	}
	return nil, fmt.Errorf("%w: phase %d in tournament %s", ErrNotFound, id, t.ID)
}

func (t *Tournament) CurrentPhase() (*Phase, error) {
	return t.Phase(t.CurrentPhaseID)
}

// NextPhase returns the phase following id in the configured order.
func (t *Tournament) NextPhase(id int) (*Phase, bool) {
	for i := range t.Phases {
		if t.Phases[i].ID == id && i+1 < len(t.Phases) {
			return &t.Phases[i+1], true
		}
	}
	return nil, false
}

func (t *Tournament) previousPhase(id int) (*Phase, bool) {
	for i := range t.Phases {
		if t.Phases[i].ID == id && i > 0 {
			return &t.Phases[i-1], true
		}
	}
	return nil, false
}

func (t *Tournament) Player(id string) (*Player, bool) {
	for i := range t.Players {
		if t.Players[i].ID == id {
			return &t.Players[i], true
		}
	}
	return nil, false
}

func (t *Tournament) AddPlayer(p Player) error {
	if p.ID == "" {
		return fmt.Errorf("%w: player id is empty", ErrInvalidState)
	}
	if _, ok := t.Player(p.ID); ok {
		return fmt.Errorf("%w: player %s is already registered", ErrInvalidState, p.ID)
	}
	t.Players = append(t.Players, p)
	return nil
}

// PlayersByID returns registered players in the given order, skipping unknown ids.
func (t *Tournament) PlayersByID(ids []string) []Player {
	players := make([]Player, 0, len(ids))
	for _, id := range ids {
		if p, ok := t.Player(id); ok {
			players = append(players, *p)
		}
	}
	return players
}

func (t *Tournament) Match(id uuid.UUID) (*Match, error) {
	for i := range t.AllMatches {
		if t.AllMatches[i].ID == id {
			return &t.AllMatches[i], nil
		}
	}
	return nil, fmt.Errorf("%w: match %s in tournament %s", ErrNotFound, id, t.ID)
}

// PhaseMatches returns indexes into AllMatches, in creation order.
// Indexes stay valid across appends, pointers do not.
func (t *Tournament) PhaseMatches(phaseID int) []int {
	var idx []int
	for i := range t.AllMatches {
		if t.AllMatches[i].PhaseID == phaseID {
			idx = append(idx, i)
		}
	}
	return idx
}

// OpenMatchFor returns the earliest open match of the phase the player is part of.
func (t *Tournament) OpenMatchFor(phaseID int, playerID string) *Match {
	for _, i := range t.PhaseMatches(phaseID) {
		m := &t.AllMatches[i]
		if m.IsOpen() && m.HasPlayer(playerID) {
			return m
		}
	}
	return nil
}

// AddMatch appends m after checking the aggregate invariants. Elimination phases
// allow a player in at most one open match; group phases schedule the whole
// round robin up front.
func (t *Tournament) AddMatch(m Match) error {
	phase, err := t.Phase(m.PhaseID)
	if err != nil {
		return err
	}
	for _, id := range m.PlayerIDs() {
		if _, ok := t.Player(id); !ok {
			return fmt.Errorf("%w: player %s is not registered", ErrNotFound, id)
		}
		if phase.Type == SingleElimination && m.IsOpen() && t.OpenMatchFor(phase.ID, id) != nil {
			return fmt.Errorf("%w: player %s already has an open match in phase %d", ErrInvalidState, id, phase.ID)
		}
	}
	t.AllMatches = append(t.AllMatches, m)
	return nil
}

func (t *Tournament) PhaseGroups(phaseID int) []Group {
	var groups []Group
	for _, g := range t.Groups {
		if g.PhaseID == phaseID {
			groups = append(groups, g)
		}
	}
	return groups
}

func (t *Tournament) GroupOf(phaseID int, playerID string) (int, bool) {
	for _, g := range t.Groups {
		if g.PhaseID == phaseID && slices.Contains(g.PlayerIDs, playerID) {
			return g.ID, true
		}
	}
	return 0, false
}

// ProgressOf returns the runtime state of a phase, creating it on first use.
// The returned pointer is invalidated by the next call for a different phase.
func (t *Tournament) ProgressOf(phaseID int) *PhaseProgress {
	for i := range t.Progress {
		if t.Progress[i].PhaseID == phaseID {
			return &t.Progress[i]
		}
	}
	t.Progress = append(t.Progress, PhaseProgress{PhaseID: phaseID})
	return &t.Progress[len(t.Progress)-1]
}

// EligiblePlayers is the pool a phase is generated from: everyone for the first
// phase, the promoted players of the previous phase otherwise.
func (t *Tournament) EligiblePlayers(phaseID int) []Player {
	prev, ok := t.previousPhase(phaseID)
	if !ok {
		return slices.Clone(t.Players)
	}
	return t.PlayersByID(t.ProgressOf(prev.ID).Promoted)
}

// RefreshStats recomputes every player's accumulator from finished matches.
// CheckedIn covers open matches too.
func (t *Tournament) RefreshStats() {
	standings := Rank(t)
	byID := make(map[string]Standing, len(standings))
	for _, s := range standings {
		byID[s.PlayerID] = s
	}
	checkedIn := make(map[string]bool)
	for _, m := range t.AllMatches {
		for _, team := range m.Teams {
			for _, e := range team.Players {
				checkedIn[e.PlayerID] = checkedIn[e.PlayerID] || e.CheckedIn
			}
		}
	}
	for i := range t.Players {
		t.Players[i].CheckedIn = checkedIn[t.Players[i].ID]
		s := byID[t.Players[i].ID]
		t.Players[i].Stats = PlayerStats{
			Wins:         s.MatchWins,
			Points:       s.TotalPoints,
			RoundsPlayed: s.RoundsPlayed,
		}
	}
}
