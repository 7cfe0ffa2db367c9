package store

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/google/uuid"
)

// MatchMutation edits a match in place inside a fresh snapshot.
type MatchMutation func(m *bracket.Match) error

// MatchPrecondition is checked against the fresh snapshot before the mutation runs.
type MatchPrecondition func(t *bracket.Tournament, m bracket.Match) bool

// TournamentPrecondition is checked against the fresh snapshot before a match
// is appended.
type TournamentPrecondition func(t *bracket.Tournament) bool

type snapshotStore interface {
	GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error)
	SaveTournament(ctx context.Context, t *bracket.Tournament) error
}

func conditionallyUpdate(ctx context.Context, s snapshotStore, tournamentID, matchID uuid.UUID, mutate MatchMutation, precondition MatchPrecondition) (*bracket.Match, error) {
	t, err := s.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	m, err := t.Match(matchID)
	if err != nil {
		return nil, err
	}
	if precondition != nil && !precondition(t, *m) {
		return nil, fmt.Errorf("%w: precondition failed for match %s", bracket.ErrWriteConflict, matchID)
	}
	if err := mutate(m); err != nil {
		return nil, err
	}
	updated := *m
	if err := s.SaveTournament(ctx, t); err != nil {
		return nil, err
	}
	return &updated, nil
}

func appendMatch(ctx context.Context, s snapshotStore, tournamentID uuid.UUID, m bracket.Match, precondition TournamentPrecondition) error {
	t, err := s.GetTournament(ctx, tournamentID)
	if err != nil {
		return err
	}
	if precondition != nil && !precondition(t) {
		return fmt.Errorf("%w: precondition failed for new match %s", bracket.ErrWriteConflict, m.ID)
	}
	if err := t.AddMatch(m); err != nil {
		return err
	}
	return s.SaveTournament(ctx, t)
}
