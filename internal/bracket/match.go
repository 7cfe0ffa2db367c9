package bracket

import (
	"fmt"
	"slices"
	"time"

	"github.com/elliotchance/pie/v2"
	"github.com/google/uuid"
)

type PlayerMatchEntry struct {
	PlayerID    string `json:"player_id"`
	Nick        string `json:"nick,omitempty"`
	CheckedIn   bool   `json:"checked_in"`
	Ready       bool   `json:"ready"`
	Score       int    `json:"score"`
	Points      int    `json:"points"`
	MatchPoints int    `json:"match_points"`
	IsWinner    bool   `json:"is_winner"`
}

type Team struct {
	ID      int                `json:"id"`
	Players []PlayerMatchEntry `json:"players"`
	Score   int                `json:"score"`
	Points  int                `json:"points"`
}

// NewTeam builds a team with fresh entries for the given players.
func NewTeam(players ...Player) Team {
	return Team{Players: pie.Map(players, func(p Player) PlayerMatchEntry {
		return PlayerMatchEntry{PlayerID: p.ID, Nick: p.Nick}
	})}
}

func (t Team) Clone() Team {
	t.Players = slices.Clone(t.Players)
	return t
}

// Fresh returns the same roster with match state reset, used when a team
// advances into a new match.
func (t Team) Fresh() Team {
	return Team{Players: pie.Map(t.Players, func(e PlayerMatchEntry) PlayerMatchEntry {
		return PlayerMatchEntry{PlayerID: e.PlayerID, Nick: e.Nick}
	})}
}

func (t Team) PlayerIDs() []string {
	return pie.Map(t.Players, func(e PlayerMatchEntry) string { return e.PlayerID })
}

func (t Team) CheckedInCount() int {
	return len(pie.Filter(t.Players, func(e PlayerMatchEntry) bool { return e.CheckedIn }))
}

// GameWins counts the games the team won, once per game.
func (t Team) GameWins() int {
	return t.Score
}

func (t Team) matchPoints() int {
	total := 0
	for _, e := range t.Players {
		total += e.MatchPoints
	}
	return total
}

type Match struct {
	ID      uuid.UUID   `json:"id"`
	PhaseID int         `json:"phase_id"`
	RoundID int         `json:"round_id"`
	GroupID int         `json:"group_id"`
	Status  MatchStatus `json:"status"`
	Teams   []Team      `json:"teams"`

	WinScore         int `json:"win_score"`
	MaxGameCount     int `json:"max_game_count"`
	CurrentGameCount int `json:"current_game_count"`

	Secret   string    `json:"secret"`
	Deadline time.Time `json:"deadline"`

	WinnerTeamID int    `json:"winner_team_id,omitempty"`
	WinnerUserID string `json:"winner_user_id,omitempty"`
	Walkover     bool   `json:"walkover,omitempty"`
	Extensions   int    `json:"extensions,omitempty"`

	ProcessedGames []string `json:"processed_games,omitempty"`

	CreatedAt     time.Time  `json:"created_at"`
	GameStartedAt *time.Time `json:"game_started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

func (m *Match) IsOpen() bool {
	return m.Status.IsOpen()
}

func (m *Match) IsFinished() bool {
	return m.Status.IsFinished()
}

func (m *Match) HasPlayer(playerID string) bool {
	return m.Entry(playerID) != nil
}

func (m *Match) Entry(playerID string) *PlayerMatchEntry {
	for ti := range m.Teams {
		for pi := range m.Teams[ti].Players {
			if m.Teams[ti].Players[pi].PlayerID == playerID {
				return &m.Teams[ti].Players[pi]
			}
		}
	}
	return nil
}

func (m *Match) PlayerIDs() []string {
	var ids []string
	for _, team := range m.Teams {
		ids = append(ids, team.PlayerIDs()...)
	}
	return ids
}

// WinningTeam returns the team that won a finished match.
func (m *Match) WinningTeam() (Team, bool) {
	if !m.IsFinished() || m.WinnerTeamID == 0 {
		return Team{}, false
	}
	i := pie.FindFirstUsing(m.Teams, func(t Team) bool { return t.ID == m.WinnerTeamID })
	if i < 0 {
		return Team{}, false
	}
	return m.Teams[i], true
}

func (m *Match) HasCapacity(capacity int) bool {
	switch m.Status {
	case MatchCreated, MatchWaitingForOpponent:
		return len(m.Teams) < capacity
	case MatchGameReady, MatchGameInProgress, MatchGameFinished, MatchFinished, MatchClosed:
		return false
	}
	return false
}

// AddTeam fills a waiting slot. Filling is not a status transition: a lone
// WaitingForOpponent match goes back to Created with a fresh full-match deadline.
func (m *Match) AddTeam(team Team, capacity int, now time.Time) error {
	if !m.HasCapacity(capacity) {
		return fmt.Errorf("%w: match %s cannot take another team (%s, %d teams)", ErrInvalidState, m.ID, m.Status, len(m.Teams))
	}
	for _, id := range team.PlayerIDs() {
		if m.HasPlayer(id) {
			return fmt.Errorf("%w: player %s is already in match %s", ErrInvalidState, id, m.ID)
		}
	}
	team = team.Clone()
	team.ID = len(m.Teams) + 1
	m.Teams = append(m.Teams, team)
	if len(m.Teams) >= capacity {
		m.Status = MatchCreated
		m.Deadline = now.Add(FullMatchDeadline)
	}
	return nil
}

// SetReady records a check-in and the ready flag, then moves the match along:
// a lone team waits for an opponent, a full match with everyone ready is GameReady.
func (m *Match) SetReady(playerID string, ready bool, capacity int, now time.Time) error {
	entry := m.Entry(playerID)
	if entry == nil {
		return fmt.Errorf("%w: player %s in match %s", ErrNotFound, playerID, m.ID)
	}
	if !m.IsOpen() {
		return fmt.Errorf("%w: match %s is %s", ErrInvalidState, m.ID, m.Status)
	}
	entry.CheckedIn = true
	entry.Ready = ready

	switch m.Status {
	case MatchCreated, MatchWaitingForOpponent:
		if len(m.Teams) < capacity {
			if m.Status == MatchCreated {
				return m.Transition(MatchWaitingForOpponent, now)
			}
			return nil
		}
		if m.allReady() {
			return m.Transition(MatchGameReady, now)
		}
	case MatchGameReady, MatchGameInProgress, MatchGameFinished, MatchFinished, MatchClosed:
	}
	return nil
}

// CheckIn marks presence without touching the ready flag.
func (m *Match) CheckIn(playerID string, capacity int, now time.Time) error {
	entry := m.Entry(playerID)
	if entry == nil {
		return fmt.Errorf("%w: player %s in match %s", ErrNotFound, playerID, m.ID)
	}
	if !m.IsOpen() {
		return fmt.Errorf("%w: match %s is %s", ErrInvalidState, m.ID, m.Status)
	}
	entry.CheckedIn = true
	if m.Status == MatchCreated && len(m.Teams) < capacity {
		return m.Transition(MatchWaitingForOpponent, now)
	}
	return nil
}

func (m *Match) allReady() bool {
	for _, team := range m.Teams {
		for _, e := range team.Players {
			if !e.Ready {
				return false
			}
		}
	}
	return true
}

func (m *Match) recomputeTeams() {
	for i := range m.Teams {
		team := &m.Teams[i]
		team.Points = 0
		for _, e := range team.Players {
			team.Points += e.Points
		}
	}
}
