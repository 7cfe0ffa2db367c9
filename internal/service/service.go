package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/AdamBeresnev/op-tournaments/internal/events"
	"github.com/AdamBeresnev/op-tournaments/internal/metrics"
	"github.com/AdamBeresnev/op-tournaments/internal/store"
	"github.com/AdamBeresnev/op-tournaments/internal/utils"
	"github.com/google/uuid"
)

const DefaultMaxRetries = 5

// Repository is the persistence the orchestrator needs. Both writes are
// optimistic: a stale snapshot yields bracket.ErrWriteConflict.
type Repository interface {
	CreateTournament(ctx context.Context, t *bracket.Tournament) error
	GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error)
	SaveTournament(ctx context.Context, t *bracket.Tournament) error
	AppendMatch(ctx context.Context, tournamentID uuid.UUID, m bracket.Match, precondition store.TournamentPrecondition) error
	ConditionallyUpdateMatch(ctx context.Context, tournamentID, matchID uuid.UUID, mutate store.MatchMutation, precondition store.MatchPrecondition) (*bracket.Match, error)
	ListActiveTournaments(ctx context.Context) ([]bracket.Tournament, error)
}

type Options struct {
	Publisher events.Publisher
	Metrics   metrics.Metrics
	Logger    *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
	// WalkoverGrace is added to every match deadline before a walkover is due.
	WalkoverGrace time.Duration
	// MaxRetries bounds the attempts of a write that keeps conflicting.
	MaxRetries int
}

// core holds what TournamentService and MatchService share.
type core struct {
	repo       Repository
	gen        *bracket.Generator
	publisher  events.Publisher
	metrics    metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
	grace      time.Duration
	maxRetries int
}

func newCore(repo Repository, gen *bracket.Generator, opts Options) *core {
	c := &core{
		repo:       repo,
		gen:        gen,
		publisher:  opts.Publisher,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		now:        opts.Now,
		grace:      max(opts.WalkoverGrace, 0),
		maxRetries: opts.MaxRetries,
	}
	if c.publisher == nil {
		c.publisher = events.Multi{}
	}
	if c.metrics == nil {
		c.metrics = metrics.Nop()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.maxRetries < 1 {
		c.maxRetries = DefaultMaxRetries
	}
	return c
}

// update loads a fresh snapshot, lets fn change it and saves it back.
// fn reports whether anything changed; unchanged snapshots are not written.
// Events are published only after a successful save.
func (c *core) update(ctx context.Context, id uuid.UUID, op string, fn func(t *bracket.Tournament) (bool, error)) (*bracket.Tournament, error) {
	var saved *bracket.Tournament
	err := c.withRetry(ctx, op, func() error {
		t, err := c.repo.GetTournament(ctx, id)
		if err != nil {
			return err
		}
		before := summarize(t)
		changed, err := fn(t)
		if err != nil {
			return err
		}
		if changed {
			t.RefreshStats()
			if err := c.repo.SaveTournament(ctx, t); err != nil {
				return err
			}
			c.publishChanges(ctx, before, t)
		}
		saved = t
		return nil
	})
	return saved, err
}

// settle advances the current phase after matches finished and closes the
// matches that were processed. A phase with a broken configuration is logged
// and left alone.
func (c *core) settle(ctx context.Context, t *bracket.Tournament, now time.Time) (bool, error) {
	res, err := c.gen.Advance(t, t.CurrentPhaseID, now)
	if errors.Is(err, bracket.ErrConfigurationInvalid) {
		c.logger.ErrorContext(ctx, "skipping advancement of misconfigured phase",
			"tournament_id", t.ID, "phase_id", t.CurrentPhaseID, "error", err)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	changed := res.Changed()
	for i := range t.AllMatches {
		m := &t.AllMatches[i]
		if m.Status != bracket.MatchFinished {
			continue
		}
		if err := m.Transition(bracket.MatchClosed, now); err != nil {
			return changed, err
		}
		changed = true
	}
	if res.PhaseCompleted {
		c.logger.InfoContext(ctx, "phase completed",
			"tournament_id", t.ID, "next_phase_id", res.NextPhaseID, "tournament_completed", res.TournamentCompleted)
	}
	return changed, nil
}

type snapshotSummary struct {
	finished  map[uuid.UUID]bool
	completed map[int]bool
	status    bracket.TournamentStatus
}

func summarize(t *bracket.Tournament) snapshotSummary {
	s := snapshotSummary{
		finished:  make(map[uuid.UUID]bool),
		completed: make(map[int]bool),
		status:    t.Status,
	}
	for _, m := range t.AllMatches {
		if m.IsFinished() {
			s.finished[m.ID] = true
		}
	}
	for _, p := range t.Progress {
		if p.Completed {
			s.completed[p.PhaseID] = true
		}
	}
	return s
}

type matchFinishedPayload struct {
	WinnerTeamID int    `json:"winner_team_id,omitempty"`
	WinnerUserID string `json:"winner_user_id,omitempty"`
	Walkover     bool   `json:"walkover"`
}

type phaseAdvancedPayload struct {
	NextPhaseID         int      `json:"next_phase_id,omitempty"`
	Promoted            []string `json:"promoted,omitempty"`
	TournamentCompleted bool     `json:"tournament_completed"`
	WinnerID            string   `json:"winner_id,omitempty"`
}

func (c *core) publishChanges(ctx context.Context, before snapshotSummary, t *bracket.Tournament) {
	now := c.now()
	finished := 0
	for _, m := range t.AllMatches {
		if !m.IsFinished() || before.finished[m.ID] {
			continue
		}
		finished++
		phaseType := ""
		if phase, err := t.Phase(m.PhaseID); err == nil {
			phaseType = string(phase.Type)
		}
		c.metrics.MatchFinished(phaseType, m.Walkover)
		c.publisher.Publish(ctx, events.Event{
			Type:         events.MatchFinished,
			TournamentID: t.ID,
			MatchID:      utils.Ptr(m.ID),
			PhaseID:      m.PhaseID,
			Payload:      matchFinishedPayload{WinnerTeamID: m.WinnerTeamID, WinnerUserID: m.WinnerUserID, Walkover: m.Walkover},
			OccurredAt:   now,
		})
	}

	for _, p := range t.Progress {
		if !p.Completed || before.completed[p.PhaseID] {
			continue
		}
		payload := phaseAdvancedPayload{Promoted: p.Promoted}
		if next, ok := t.NextPhase(p.PhaseID); ok && t.CurrentPhaseID == next.ID {
			payload.NextPhaseID = next.ID
		}
		if t.Status == bracket.TournamentCompleted {
			payload.TournamentCompleted = true
			payload.WinnerID = t.WinnerID
		}
		c.publisher.Publish(ctx, events.Event{
			Type:         events.PhaseAdvanced,
			TournamentID: t.ID,
			PhaseID:      p.PhaseID,
			Payload:      payload,
			OccurredAt:   now,
		})
	}

	if finished > 0 {
		c.publisher.Publish(ctx, events.Event{
			Type:         events.RankingChanged,
			TournamentID: t.ID,
			Payload:      bracket.Rank(t),
			OccurredAt:   now,
		})
	}
}
