package service

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/google/uuid"
)

type MatchService struct {
	*core
}

func NewMatchService(repo Repository, gen *bracket.Generator, opts Options) *MatchService {
	return &MatchService{core: newCore(repo, gen, opts)}
}

// updateMatch applies a match-scoped change through a conditional update.
// Phase configuration does not change once a tournament runs, so it is read
// from the first snapshot.
func (s *MatchService) updateMatch(ctx context.Context, tournamentID, matchID uuid.UUID, op string, mutate func(phase bracket.Phase, m *bracket.Match) error) (*bracket.Match, error) {
	var updated *bracket.Match
	err := s.withRetry(ctx, op, func() error {
		t, err := s.repo.GetTournament(ctx, tournamentID)
		if err != nil {
			return err
		}
		if !t.Status.IsActive() {
			return fmt.Errorf("%w: tournament %s is %s", bracket.ErrInvalidState, t.ID, t.Status)
		}
		m, err := t.Match(matchID)
		if err != nil {
			return err
		}
		phase, err := t.Phase(m.PhaseID)
		if err != nil {
			return err
		}
		updated, err = s.repo.ConditionallyUpdateMatch(ctx, tournamentID, matchID,
			func(m *bracket.Match) error { return mutate(*phase, m) },
			func(fresh *bracket.Tournament, _ bracket.Match) bool { return fresh.Status.IsActive() })
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetReady checks the player in and records the ready flag.
func (s *MatchService) SetReady(ctx context.Context, tournamentID, matchID uuid.UUID, playerID string, ready bool) (*bracket.Match, error) {
	now := s.now()
	return s.updateMatch(ctx, tournamentID, matchID, "set_ready", func(phase bracket.Phase, m *bracket.Match) error {
		return m.SetReady(playerID, ready, phase.TeamsPerMatch(), now)
	})
}

func (s *MatchService) CheckIn(ctx context.Context, tournamentID, matchID uuid.UUID, playerID string) (*bracket.Match, error) {
	now := s.now()
	return s.updateMatch(ctx, tournamentID, matchID, "check_in", func(phase bracket.Phase, m *bracket.Match) error {
		return m.CheckIn(playerID, phase.TeamsPerMatch(), now)
	})
}

// StartGame marks the next game of a ready match as running.
func (s *MatchService) StartGame(ctx context.Context, tournamentID, matchID uuid.UUID) (*bracket.Match, error) {
	now := s.now()
	return s.updateMatch(ctx, tournamentID, matchID, "start_game", func(_ bracket.Phase, m *bracket.Match) error {
		if m.Status != bracket.MatchGameReady {
			return fmt.Errorf("%w: match %s is %s", bracket.ErrInvalidState, m.ID, m.Status)
		}
		return m.Transition(bracket.MatchGameInProgress, now)
	})
}

// SubmitGameResult scores one game. When it decides the match, the bracket
// advances and the match is closed in the same write.
func (s *MatchService) SubmitGameResult(ctx context.Context, tournamentID, matchID uuid.UUID, result bracket.GameResult) (*bracket.Match, error) {
	t, err := s.update(ctx, tournamentID, "submit_result", func(t *bracket.Tournament) (bool, error) {
		if !t.Status.IsActive() {
			return false, fmt.Errorf("%w: tournament %s is %s", bracket.ErrInvalidState, t.ID, t.Status)
		}
		m, err := t.Match(matchID)
		if err != nil {
			return false, err
		}
		now := s.now()
		outcome, err := bracket.ApplyGameResult(m, result, now)
		if err != nil {
			return false, err
		}
		if outcome.Finished {
			s.logger.InfoContext(ctx, "match finished",
				"tournament_id", t.ID, "match_id", matchID, "winner_team_id", outcome.WinnerTeamID)
			if _, err := s.settle(ctx, t, now); err != nil {
				return false, err
			}
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return t.Match(matchID)
}

// CloseMatch closes a match administratively. An unfinished match closes
// without a winner.
func (s *MatchService) CloseMatch(ctx context.Context, tournamentID, matchID uuid.UUID) (*bracket.Match, error) {
	t, err := s.update(ctx, tournamentID, "close_match", func(t *bracket.Tournament) (bool, error) {
		m, err := t.Match(matchID)
		if err != nil {
			return false, err
		}
		if m.Status == bracket.MatchClosed {
			return false, nil
		}
		now := s.now()
		if err := m.Transition(bracket.MatchClosed, now); err != nil {
			return false, err
		}
		if t.Status.IsActive() {
			if _, err := s.settle(ctx, t, now); err != nil {
				return false, err
			}
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return t.Match(matchID)
}
