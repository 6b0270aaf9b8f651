package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors for the poll loop and history.
type Metrics struct {
	polls         prometheus.Counter
	pollFailures  prometheus.Counter
	pollsSkipped  prometheus.Counter
	fetchSeconds  prometheus.Histogram
	historyLen    prometheus.Gauge
	links         prometheus.Gauge
	seeded        prometheus.Gauge
	seededSamples prometheus.Counter
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which tests use.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		polls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "latencyglobe_polls_total",
			Help: "Snapshot fetches that completed successfully.",
		}),
		pollFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "latencyglobe_poll_failures_total",
			Help: "Snapshot fetches that failed and kept the previous links.",
		}),
		pollsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "latencyglobe_polls_skipped_total",
			Help: "Poll ticks skipped because a fetch was still in flight.",
		}),
		fetchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "latencyglobe_fetch_seconds",
			Help:    "Snapshot fetch duration.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		historyLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "latencyglobe_history_samples",
			Help: "Samples currently retained in history.",
		}),
		links: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "latencyglobe_links",
			Help: "Links in the current snapshot.",
		}),
		seeded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "latencyglobe_seeded",
			Help: "1 once the demo history backfill has run.",
		}),
		seededSamples: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "latencyglobe_seeded_samples_total",
			Help: "Synthetic samples merged by the demo backfill.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.polls, m.pollFailures, m.pollsSkipped, m.fetchSeconds,
			m.historyLen, m.links, m.seeded, m.seededSamples)
	}
	return m
}

// ObservePoll records a successful fetch.
func (m *Metrics) ObservePoll(d time.Duration, links, history int) {
	if m == nil {
		return
	}
	m.polls.Inc()
	m.fetchSeconds.Observe(d.Seconds())
	m.links.Set(float64(links))
	m.historyLen.Set(float64(history))
}

// ObserveFailure records a failed fetch.
func (m *Metrics) ObserveFailure(d time.Duration) {
	if m == nil {
		return
	}
	m.pollFailures.Inc()
	m.fetchSeconds.Observe(d.Seconds())
}

// ObserveSkip records a tick dropped by the in-flight guard.
func (m *Metrics) ObserveSkip() {
	if m == nil {
		return
	}
	m.pollsSkipped.Inc()
}

// ObserveSeed records the one-time backfill.
func (m *Metrics) ObserveSeed(samples, history int) {
	if m == nil {
		return
	}
	m.seeded.Set(1)
	m.seededSamples.Add(float64(samples))
	m.historyLen.Set(float64(history))
}
