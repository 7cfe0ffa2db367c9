package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/AdamBeresnev/op-tournaments/internal/events"
	"github.com/AdamBeresnev/op-tournaments/internal/store"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")
	database.SetMaxOpenConns(1)

	driver, err := sqlite3.WithInstance(database.DB, &sqlite3.Config{})
	require.NoError(t, err, "Failed to create migrate driver instance")

	m, err := migrate.NewWithDatabaseInstance("file://../../migrations", "sqlite3", driver)
	require.NoError(t, err, "Failed to create migrate instance")

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "Failed to apply migrations")
	}
	return database
}

func forEachRepo(t *testing.T, fn func(t *testing.T, repo Repository)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, store.NewMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()
		fn(t, store.NewTournamentStore(db))
	})
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	clock       *testClock
	recorder    *events.Recorder
	tournaments *TournamentService
	matches     *MatchService
}

func newHarness(repo Repository, maxRetries int) *harness {
	h := &harness{
		clock:    &testClock{now: testStart},
		recorder: events.NewRecorder(256),
	}
	opts := Options{
		Publisher:  h.recorder,
		Logger:     slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		Now:        h.clock.Now,
		MaxRetries: maxRetries,
	}
	gen := bracket.NewGenerator(42)
	h.tournaments = NewTournamentService(repo, gen, opts)
	h.matches = NewMatchService(repo, gen, opts)
	return h
}

func eliminationPhase(id int) bracket.Phase {
	return bracket.Phase{ID: id, Type: bracket.SingleElimination, TeamSize: 1}
}

func groupPhase(id, groups int) bracket.Phase {
	return bracket.Phase{ID: id, Type: bracket.Groups, TeamSize: 1, GroupCount: groups}
}

// startTournament creates a tournament, registers player-1..player-n and starts it.
func (h *harness) startTournament(t *testing.T, players int, phases ...bracket.Phase) (uuid.UUID, []string) {
	t.Helper()
	ctx := context.Background()
	tour, err := h.tournaments.CreateTournament(ctx, CreateTournamentInput{Name: "Friday Cup", Phases: phases})
	require.NoError(t, err)

	ids := make([]string, players)
	for i := range ids {
		ids[i] = fmt.Sprintf("player-%d", i+1)
		_, err := h.tournaments.RegisterPlayer(ctx, tour.ID, RegisterPlayerInput{PlayerID: ids[i], Nick: fmt.Sprintf("Player %d", i+1)})
		require.NoError(t, err)
	}
	_, err = h.tournaments.StartTournament(ctx, tour.ID)
	require.NoError(t, err)
	return tour.ID, ids
}

func (h *harness) readyAll(t *testing.T, tid uuid.UUID, m *bracket.Match) {
	t.Helper()
	for _, id := range m.PlayerIDs() {
		_, err := h.matches.SetReady(context.Background(), tid, m.ID, id, true)
		require.NoError(t, err)
	}
}

// win submits one deciding game for playerID.
func (h *harness) win(t *testing.T, tid, matchID uuid.UUID, playerID string) *bracket.Match {
	t.Helper()
	m, err := h.matches.SubmitGameResult(context.Background(), tid, matchID, bracket.GameResult{
		GameID: uuid.NewString(),
		Places: []bracket.PlayerPlace{{PlayerID: playerID, Place: 1, Points: 10}},
	})
	require.NoError(t, err)
	require.Equal(t, bracket.MatchClosed, m.Status)
	return m
}

// play readies everyone and lets the first team win.
func (h *harness) play(t *testing.T, tid uuid.UUID, m *bracket.Match) *bracket.Match {
	t.Helper()
	h.readyAll(t, tid, m)
	return h.win(t, tid, m.ID, m.Teams[0].Players[0].PlayerID)
}

func (h *harness) tournament(t *testing.T, tid uuid.UUID) *bracket.Tournament {
	t.Helper()
	tour, err := h.tournaments.GetTournament(context.Background(), tid)
	require.NoError(t, err)
	return tour
}

func countEvents(evs []events.Event, typ events.Type) int {
	n := 0
	for _, e := range evs {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func matchesWith(tour *bracket.Tournament, round, teams int) []bracket.Match {
	var out []bracket.Match
	for _, m := range tour.AllMatches {
		if m.RoundID == round && len(m.Teams) == teams {
			out = append(out, m)
		}
	}
	return out
}
