package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is what the engine reports. Nop discards everything.
type Metrics interface {
	MatchFinished(phaseType string, walkover bool)
	WalkoverResolved(resolution string)
	WriteConflict(operation string)
	ObserveSweep(tournaments int, elapsed time.Duration)
}

type prometheusMetrics struct {
	matchesFinished   *prometheus.CounterVec
	walkoversResolved *prometheus.CounterVec
	writeConflicts    *prometheus.CounterVec
	sweepDuration     prometheus.Histogram
	sweptTournaments  prometheus.Gauge
}

func NewMetrics(registry prometheus.Registerer) Metrics {
	factory := promauto.With(registry)

	return prometheusMetrics{
		matchesFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tournament_matches_finished_total",
				Help: "Matches that reached MatchFinished, by phase type and walkover",
			}, []string{"phase_type", "walkover"}),
		walkoversResolved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tournament_walkovers_resolved_total",
				Help: "Walkover resolutions applied by the sweep",
			}, []string{"resolution"}),
		writeConflicts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tournament_write_conflicts_total",
				Help: "Optimistic write conflicts seen by the orchestrator",
			}, []string{"operation"}),
		sweepDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tournament_sweep_duration_ms",
				Help:    "A histogram of walkover sweep durations in milliseconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			}),
		sweptTournaments: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tournament_sweep_active_tournaments",
				Help: "Active tournaments seen by the last sweep",
			}),
	}
}

func (m prometheusMetrics) MatchFinished(phaseType string, walkover bool) {
	label := "false"
	if walkover {
		label = "true"
	}
	m.matchesFinished.With(prometheus.Labels{"phase_type": phaseType, "walkover": label}).Inc()
}

func (m prometheusMetrics) WalkoverResolved(resolution string) {
	m.walkoversResolved.With(prometheus.Labels{"resolution": resolution}).Inc()
}

func (m prometheusMetrics) WriteConflict(operation string) {
	m.writeConflicts.With(prometheus.Labels{"operation": operation}).Inc()
}

func (m prometheusMetrics) ObserveSweep(tournaments int, elapsed time.Duration) {
	m.sweptTournaments.Set(float64(tournaments))
	m.sweepDuration.Observe(float64(elapsed.Milliseconds()))
}

type nop struct{}

// Nop returns Metrics that record nothing.
func Nop() Metrics { return nop{} }

func (nop) MatchFinished(string, bool) {}
func (nop) WalkoverResolved(string) {}
func (nop) WriteConflict(string) {}
func (nop) ObserveSweep(int, time.Duration) {}
