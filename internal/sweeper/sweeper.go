package sweeper

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/AdamBeresnev/op-tournaments/internal/metrics"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultInterval    = 12 * time.Second
	DefaultConcurrency = 4
)

type WalkoverService interface {
	ActiveTournamentIDs(ctx context.Context) ([]uuid.UUID, error)
	SweepWalkovers(ctx context.Context, id uuid.UUID) ([]bracket.WalkoverOutcome, error)
}

// Sweeper periodically resolves overdue matches of every active tournament.
type Sweeper struct {
	svc         WalkoverService
	interval    time.Duration
	concurrency int
	logger      *slog.Logger
	metrics     metrics.Metrics
}

func New(svc WalkoverService, interval time.Duration, concurrency int, logger *slog.Logger, m metrics.Metrics) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &Sweeper{svc: svc, interval: interval, concurrency: concurrency, logger: logger, metrics: m}
}

// Run sweeps once right away and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Info("walkover sweeper started", slog.Duration("interval", s.interval))

	for {
		if _, err := s.SweepOnce(ctx); err != nil {
			s.logger.Error("walkover sweep failed", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			s.logger.Info("walkover sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SweepOnce visits every active tournament with bounded concurrency and
// returns how many matches were resolved. Failures of single tournaments are
// logged and skipped; only a failed listing is returned.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	start := time.Now()
	ids, err := s.svc.ActiveTournamentIDs(ctx)
	if err != nil {
		return 0, err
	}

	var resolved atomic.Int64
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			outcomes, err := s.svc.SweepWalkovers(gCtx, id)
			if err != nil {
				s.logger.Warn("failed to sweep tournament", slog.String("tournament_id", id.String()), slog.Any("error", err))
				return nil
			}
			resolved.Add(int64(len(outcomes)))
			return nil
		})
	}
	_ = g.Wait()

	s.metrics.ObserveSweep(len(ids), time.Since(start))
	return int(resolved.Load()), nil
}
