// Package metrics exposes feed activity as Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ibeckermayer/deepfeed/internal/feed"
)

// Metrics implements feed.Observer. Collectors live in their own registry so
// several sessions, or tests, never collide.
type Metrics struct {
	reg *prometheus.Registry

	fetchesIssued    *prometheus.CounterVec
	fetchesCompleted *prometheus.CounterVec
	fetchDuration    *prometheus.HistogramVec
	nodes            prometheus.Gauge
	roots            prometheus.Gauge
	focus            prometheus.Gauge
	interestsFlushed prometheus.Counter
}

var _ feed.Observer = (*Metrics)(nil)

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		// fetchesIssued counts child and page fetches by kind
		fetchesIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "deepfeed_fetches_issued_total",
			Help: "Fetch tasks issued by kind",
		}, []string{"kind"}),
		// fetchesCompleted counts applied completions by kind and outcome;
		// outcome=stale is the stale-result guard at work
		fetchesCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "deepfeed_fetches_completed_total",
			Help: "Fetch completions by kind and outcome",
		}, []string{"kind", "outcome"}),
		fetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deepfeed_fetch_duration_seconds",
			Help:    "Time from task start to completion",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}, []string{"kind"}),
		nodes: f.NewGauge(prometheus.GaugeOpts{
			Name: "deepfeed_tree_nodes",
			Help: "Nodes in the arena, placeholders included",
		}),
		roots: f.NewGauge(prometheus.GaugeOpts{
			Name: "deepfeed_tree_roots",
			Help: "Top-level posts buffered",
		}),
		focus: f.NewGauge(prometheus.GaugeOpts{
			Name: "deepfeed_focus_depth",
			Help: "Depth currently in focus",
		}),
		interestsFlushed: f.NewCounter(prometheus.CounterOpts{
			Name: "deepfeed_interest_flushes_total",
			Help: "Successful writes of the interest set",
		}),
	}
}

func (m *Metrics) FetchIssued(kind feed.TaskKind) {
	m.fetchesIssued.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) FetchCompleted(kind feed.TaskKind, outcome feed.Outcome) {
	m.fetchesCompleted.WithLabelValues(kind.String(), outcome.String()).Inc()
}

func (m *Metrics) TreeChanged(nodes, roots, focus int) {
	m.nodes.Set(float64(nodes))
	m.roots.Set(float64(roots))
	m.focus.Set(float64(focus))
}

// FetchTook records how long a task ran.
func (m *Metrics) FetchTook(kind feed.TaskKind, d time.Duration) {
	m.fetchDuration.WithLabelValues(kind.String()).Observe(d.Seconds())
}

func (m *Metrics) InterestsFlushed() { m.interestsFlushed.Inc() }

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
