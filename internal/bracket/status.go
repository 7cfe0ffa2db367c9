package bracket

import (
	"fmt"
	"time"

	"github.com/AdamBeresnev/op-tournaments/internal/utils"
)

type MatchStatus string

const (
	MatchCreated            MatchStatus = "created"
	MatchWaitingForOpponent MatchStatus = "waiting_for_opponent"
	MatchGameReady          MatchStatus = "game_ready"
	MatchGameInProgress     MatchStatus = "game_in_progress"
	MatchGameFinished       MatchStatus = "game_finished"
	MatchFinished           MatchStatus = "match_finished"
	MatchClosed             MatchStatus = "closed"
)

func (s MatchStatus) Valid() bool {
	switch s {
	case MatchCreated, MatchWaitingForOpponent, MatchGameReady, MatchGameInProgress,
		MatchGameFinished, MatchFinished, MatchClosed:
		return true
	}
	return false
}

func (s MatchStatus) IsOpen() bool {
	switch s {
	case MatchCreated, MatchWaitingForOpponent, MatchGameReady, MatchGameInProgress, MatchGameFinished:
		return true
	case MatchFinished, MatchClosed:
		return false
	}
	return false
}

func (s MatchStatus) IsFinished() bool {
	switch s {
	case MatchFinished, MatchClosed:
		return true
	case MatchCreated, MatchWaitingForOpponent, MatchGameReady, MatchGameInProgress, MatchGameFinished:
		return false
	}
	return false
}

// CanTransition is the single source of truth for match status changes.
// GameFinished -> GameReady is the loop between games of one match; adding a
// team to a waiting slot is handled by Match.AddTeam and is not a transition.
func CanTransition(from, to MatchStatus) bool {
	switch from {
	case MatchCreated:
		return to == MatchWaitingForOpponent || to == MatchGameReady || to == MatchFinished || to == MatchClosed
	case MatchWaitingForOpponent:
		return to == MatchGameReady || to == MatchFinished || to == MatchClosed
	case MatchGameReady:
		return to == MatchGameInProgress || to == MatchFinished || to == MatchClosed
	case MatchGameInProgress:
		return to == MatchGameFinished || to == MatchClosed
	case MatchGameFinished:
		return to == MatchGameReady || to == MatchFinished || to == MatchClosed
	case MatchFinished:
		return to == MatchClosed
	case MatchClosed:
		return false
	}
	return false
}

func (m *Match) Transition(to MatchStatus, now time.Time) error {
	if !CanTransition(m.Status, to) {
		return fmt.Errorf("%w: match %s cannot move from %s to %s", ErrInvalidState, m.ID, m.Status, to)
	}
	m.Status = to
	switch to {
	case MatchGameReady:
		if m.GameStartedAt == nil {
			m.GameStartedAt = utils.Ptr(now)
		}
	case MatchFinished:
		m.FinishedAt = utils.Ptr(now)
	case MatchCreated, MatchWaitingForOpponent, MatchGameInProgress, MatchGameFinished, MatchClosed:
	}
	return nil
}
