package service

import (
	"context"
	"testing"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/AdamBeresnev/op-tournaments/internal/events"
	"github.com/AdamBeresnev/op-tournaments/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openFinal(t *testing.T, h *harness) (uuid.UUID, *bracket.Match) {
	t.Helper()
	tid, players := h.startTournament(t, 2, bracket.Phase{
		ID: 1, Type: bracket.SingleElimination, TeamSize: 1,
		Rounds: []bracket.Round{{ID: 1, WinScore: 2, MaxGameCount: 3}},
	})
	m, err := h.tournaments.GetOrCreateActiveMatch(context.Background(), tid, players[0])
	require.NoError(t, err)
	return tid, m
}

func TestMatchLifecycle(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		h := newHarness(repo, 0)
		tid, m := openFinal(t, h)
		require.Equal(t, bracket.MatchCreated, m.Status)
		p1, p2 := m.Teams[0].Players[0].PlayerID, m.Teams[1].Players[0].PlayerID

		got, err := h.matches.CheckIn(ctx, tid, m.ID, p1)
		require.NoError(t, err)
		assert.True(t, got.Entry(p1).CheckedIn)
		assert.Equal(t, bracket.MatchCreated, got.Status)

		_, err = h.matches.StartGame(ctx, tid, m.ID)
		assert.ErrorIs(t, err, bracket.ErrInvalidState)

		_, err = h.matches.SubmitGameResult(ctx, tid, m.ID, bracket.GameResult{
			Places: []bracket.PlayerPlace{{PlayerID: p1, Place: 1}},
		})
		assert.ErrorIs(t, err, bracket.ErrInvalidState)

		h.readyAll(t, tid, m)
		got, err = h.matches.StartGame(ctx, tid, m.ID)
		require.NoError(t, err)
		assert.Equal(t, bracket.MatchGameInProgress, got.Status)

		got, err = h.matches.SubmitGameResult(ctx, tid, m.ID, bracket.GameResult{
			GameID: "game-1",
			Places: []bracket.PlayerPlace{{PlayerID: p2, Place: 1, Points: 12}, {PlayerID: p1, Place: 2, Points: 4}},
		})
		require.NoError(t, err)
		assert.Equal(t, bracket.MatchGameReady, got.Status)
		assert.Equal(t, 1, got.CurrentGameCount)

		_, err = h.matches.SubmitGameResult(ctx, tid, m.ID, bracket.GameResult{
			GameID: "game-1",
			Places: []bracket.PlayerPlace{{PlayerID: p2, Place: 1}},
		})
		assert.ErrorIs(t, err, bracket.ErrInvalidState)

		got, err = h.matches.SubmitGameResult(ctx, tid, m.ID, bracket.GameResult{
			GameID: "game-2",
			Places: []bracket.PlayerPlace{{PlayerID: p2, Place: 1, Points: 9}, {PlayerID: p1, Place: 2, Points: 6}},
		})
		require.NoError(t, err)
		assert.Equal(t, bracket.MatchClosed, got.Status)
		assert.Equal(t, p2, got.WinnerUserID)
		assert.Equal(t, 21, got.Entry(p2).MatchPoints)

		_, err = h.matches.SubmitGameResult(ctx, tid, m.ID, bracket.GameResult{
			GameID: "game-3",
			Places: []bracket.PlayerPlace{{PlayerID: p1, Place: 1}},
		})
		assert.ErrorIs(t, err, bracket.ErrInvalidState)

		tour := h.tournament(t, tid)
		assert.Equal(t, bracket.TournamentCompleted, tour.Status)
		assert.Equal(t, p2, tour.WinnerID)

		recorded := h.recorder.Drain()
		require.Equal(t, 1, countEvents(recorded, events.MatchFinished))
		for _, e := range recorded {
			if e.Type == events.MatchFinished {
				require.NotNil(t, e.MatchID)
				assert.Equal(t, m.ID, *e.MatchID)
				assert.Equal(t, tid, e.TournamentID)
			}
		}
	})
}

func TestMatchUpdatesRejectUnknownTargets(t *testing.T) {
	ctx := context.Background()
	h := newHarness(store.NewMemoryStore(), 0)
	tid, m := openFinal(t, h)

	_, err := h.matches.SetReady(ctx, tid, uuid.New(), "player-1", true)
	assert.ErrorIs(t, err, bracket.ErrNotFound)

	_, err = h.matches.SetReady(ctx, uuid.New(), m.ID, "player-1", true)
	assert.ErrorIs(t, err, bracket.ErrNotFound)

	_, err = h.matches.CheckIn(ctx, tid, m.ID, "ghost")
	assert.ErrorIs(t, err, bracket.ErrNotFound)

	_, err = h.matches.SubmitGameResult(ctx, tid, uuid.New(), bracket.GameResult{})
	assert.ErrorIs(t, err, bracket.ErrNotFound)
}

func TestMatchUpdatesRequireActiveTournament(t *testing.T) {
	ctx := context.Background()
	h := newHarness(store.NewMemoryStore(), 0)
	tid, m := openFinal(t, h)

	_, err := h.tournaments.CancelTournament(ctx, tid)
	require.NoError(t, err)

	_, err = h.matches.SetReady(ctx, tid, m.ID, m.Teams[0].Players[0].PlayerID, true)
	assert.ErrorIs(t, err, bracket.ErrInvalidState)
	_, err = h.matches.SubmitGameResult(ctx, tid, m.ID, bracket.GameResult{})
	assert.ErrorIs(t, err, bracket.ErrInvalidState)
}

func TestCloseMatch(t *testing.T) {
	ctx := context.Background()

	t.Run("unfinished match closes without a winner", func(t *testing.T) {
		h := newHarness(store.NewMemoryStore(), 0)
		tid, m := openFinal(t, h)

		closed, err := h.matches.CloseMatch(ctx, tid, m.ID)
		require.NoError(t, err)
		assert.Equal(t, bracket.MatchClosed, closed.Status)
		assert.Zero(t, closed.WinnerTeamID)

		again, err := h.matches.CloseMatch(ctx, tid, m.ID)
		require.NoError(t, err)
		assert.Equal(t, bracket.MatchClosed, again.Status)

		tour := h.tournament(t, tid)
		assert.Equal(t, bracket.TournamentCompleted, tour.Status)
		assert.Empty(t, tour.WinnerID)
	})

	t.Run("unknown match", func(t *testing.T) {
		h := newHarness(store.NewMemoryStore(), 0)
		tid, _ := openFinal(t, h)
		_, err := h.matches.CloseMatch(ctx, tid, uuid.New())
		assert.ErrorIs(t, err, bracket.ErrNotFound)
	})
}
