package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// TournamentStore keeps each tournament as one JSON document guarded by a
// version column. Every write is a compare-and-swap on that version.
type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

type tournamentRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Status    string    `db:"status"`
	Version   int64     `db:"version"`
	Data      string    `db:"data"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func newTournamentRow(t *bracket.Tournament) (tournamentRow, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return tournamentRow{}, fmt.Errorf("failed to encode tournament %s: %w", t.ID, err)
	}
	return tournamentRow{
		ID:        t.ID.String(),
		Name:      t.Name,
		Status:    string(t.Status),
		Version:   t.Version,
		Data:      string(data),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}, nil
}

func (r tournamentRow) tournament() (*bracket.Tournament, error) {
	var t bracket.Tournament
	if err := json.Unmarshal([]byte(r.Data), &t); err != nil {
		return nil, fmt.Errorf("failed to decode tournament %s: %w", r.ID, err)
	}
	t.Version = r.Version
	return &t, nil
}

func (s *TournamentStore) CreateTournament(ctx context.Context, t *bracket.Tournament) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	t.Version = 1

	row, err := newTournamentRow(t)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, `INSERT INTO tournaments (id, name, status, version, data, created_at, updated_at)
		VALUES (:id, :name, :status, :version, :data, :created_at, :updated_at)`, row)
	if err != nil {
		return fmt.Errorf("failed to insert tournament %s: %w", t.ID, err)
	}
	return nil
}

func (s *TournamentStore) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	var row tournamentRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind("SELECT * FROM tournaments WHERE id = ?"), id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: tournament %s", bracket.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tournament %s: %w", id, err)
	}
	return row.tournament()
}

// SaveTournament writes t back if nobody saved it since it was read.
// On success t.Version is bumped to the stored version.
func (s *TournamentStore) SaveTournament(ctx context.Context, t *bracket.Tournament) error {
	expected := t.Version
	t.Version = expected + 1
	t.UpdatedAt = time.Now().UTC()

	row, err := newTournamentRow(t)
	if err != nil {
		t.Version = expected
		return err
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE tournaments
		SET name = ?, status = ?, version = ?, data = ?, updated_at = ?
		WHERE id = ? AND version = ?`),
		row.Name, row.Status, row.Version, row.Data, row.UpdatedAt, row.ID, expected)
	if err != nil {
		t.Version = expected
		return fmt.Errorf("failed to save tournament %s: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		t.Version = expected
		return fmt.Errorf("failed to save tournament %s: %w", t.ID, err)
	}
	if n == 0 {
		t.Version = expected
		return s.missingOrStale(ctx, t.ID, expected)
	}
	return nil
}

func (s *TournamentStore) missingOrStale(ctx context.Context, id uuid.UUID, expected int64) error {
	var count int
	if err := s.db.GetContext(ctx, &count, s.db.Rebind("SELECT COUNT(*) FROM tournaments WHERE id = ?"), id.String()); err != nil {
		return fmt.Errorf("failed to check tournament %s: %w", id, err)
	}
	if count == 0 {
		return fmt.Errorf("%w: tournament %s", bracket.ErrNotFound, id)
	}
	return fmt.Errorf("%w: tournament %s changed since version %d", bracket.ErrWriteConflict, id, expected)
}

func (s *TournamentStore) AppendMatch(ctx context.Context, tournamentID uuid.UUID, m bracket.Match, precondition TournamentPrecondition) error {
	return appendMatch(ctx, s, tournamentID, m, precondition)
}

func (s *TournamentStore) ConditionallyUpdateMatch(ctx context.Context, tournamentID, matchID uuid.UUID, mutate MatchMutation, precondition MatchPrecondition) (*bracket.Match, error) {
	return conditionallyUpdate(ctx, s, tournamentID, matchID, mutate, precondition)
}

func (s *TournamentStore) ListActiveTournaments(ctx context.Context) ([]bracket.Tournament, error) {
	var rows []tournamentRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind("SELECT * FROM tournaments WHERE status = ? ORDER BY created_at ASC"), string(bracket.TournamentStarted))
	if err != nil {
		return nil, fmt.Errorf("failed to list active tournaments: %w", err)
	}
	tournaments := make([]bracket.Tournament, 0, len(rows))
	for _, row := range rows {
		t, err := row.tournament()
		if err != nil {
			return nil, err
		}
		tournaments = append(tournaments, *t)
	}
	return tournaments, nil
}
