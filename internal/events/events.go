package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	MatchFinished  Type = "match.finished"
	PhaseAdvanced  Type = "phase.advanced"
	RankingChanged Type = "ranking.changed"
)

type Event struct {
	Type         Type       `json:"type"`
	TournamentID uuid.UUID  `json:"tournament_id"`
	MatchID      *uuid.UUID `json:"match_id,omitempty"`
	PhaseID      int        `json:"phase_id,omitempty"`
	Payload      any        `json:"payload,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

// Publisher delivers events fire-and-forget. Implementations must not block
// the caller on slow consumers.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, e Event) {
	attrs := []any{"type", e.Type, "tournament_id", e.TournamentID}
	if e.MatchID != nil {
		attrs = append(attrs, "match_id", *e.MatchID)
	}
	if e.PhaseID != 0 {
		attrs = append(attrs, "phase_id", e.PhaseID)
	}
	p.logger.InfoContext(ctx, "event published", attrs...)
}

// Multi fans an event out to every publisher in order.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) {
	for _, p := range m {
		p.Publish(ctx, e)
	}
}

// Recorder keeps published events in memory.
type Recorder struct {
	events chan Event
}

func NewRecorder(size int) *Recorder {
	return &Recorder{events: make(chan Event, size)}
}

func (r *Recorder) Publish(_ context.Context, e Event) {
	select {
	case r.events <- e:
	default:
	}
}

// Drain returns everything recorded so far.
func (r *Recorder) Drain() []Event {
	var out []Event
	for {
		select {
		case e := <-r.events:
			out = append(out, e)
		default:
			return out
		}
	}
}
