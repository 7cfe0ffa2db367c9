package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/google/uuid"
	"github.com/mitchellh/copystructure"
)

// MemoryStore is a process-local repository. Callers always get deep copies,
// so a snapshot can be mutated freely until it is saved.
type MemoryStore struct {
	mu          sync.RWMutex
	tournaments map[uuid.UUID]*bracket.Tournament
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tournaments: make(map[uuid.UUID]*bracket.Tournament)}
}

func snapshot(t *bracket.Tournament) (*bracket.Tournament, error) {
	c, err := copystructure.Copy(t)
	if err != nil {
		return nil, fmt.Errorf("failed to copy tournament %s: %w", t.ID, err)
	}
	return c.(*bracket.Tournament), nil
}

func (s *MemoryStore) CreateTournament(_ context.Context, t *bracket.Tournament) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	t.Version = 1

	stored, err := snapshot(t)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tournaments[t.ID]; ok {
		return fmt.Errorf("%w: tournament %s already exists", bracket.ErrInvalidState, t.ID)
	}
	s.tournaments[t.ID] = stored
	return nil
}

func (s *MemoryStore) GetTournament(_ context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tournaments[id]
	if !ok {
		return nil, fmt.Errorf("%w: tournament %s", bracket.ErrNotFound, id)
	}
	return snapshot(t)
}

func (s *MemoryStore) SaveTournament(_ context.Context, t *bracket.Tournament) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.tournaments[t.ID]
	if !ok {
		return fmt.Errorf("%w: tournament %s", bracket.ErrNotFound, t.ID)
	}
	if current.Version != t.Version {
		return fmt.Errorf("%w: tournament %s changed since version %d", bracket.ErrWriteConflict, t.ID, t.Version)
	}

	t.Version++
	t.UpdatedAt = time.Now().UTC()
	stored, err := snapshot(t)
	if err != nil {
		t.Version--
		return err
	}
	s.tournaments[t.ID] = stored
	return nil
}

func (s *MemoryStore) AppendMatch(ctx context.Context, tournamentID uuid.UUID, m bracket.Match, precondition TournamentPrecondition) error {
	return appendMatch(ctx, s, tournamentID, m, precondition)
}

func (s *MemoryStore) ConditionallyUpdateMatch(ctx context.Context, tournamentID, matchID uuid.UUID, mutate MatchMutation, precondition MatchPrecondition) (*bracket.Match, error) {
	return conditionallyUpdate(ctx, s, tournamentID, matchID, mutate, precondition)
}

func (s *MemoryStore) ListActiveTournaments(_ context.Context) ([]bracket.Tournament, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var active []bracket.Tournament
	for _, t := range s.tournaments {
		if !t.Status.IsActive() {
			continue
		}
		c, err := snapshot(t)
		if err != nil {
			return nil, err
		}
		active = append(active, *c)
	}
	slices.SortFunc(active, func(a, b bracket.Tournament) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return active, nil
}
