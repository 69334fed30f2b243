// Package metrics exposes Prometheus metrics for tool calls, gapfilling,
// FBA and the session store.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ekaya_gem"

// StoreSizer reports session store sizes for the stored-object gauges.
type StoreSizer interface {
	ModelCount() int
	MediaCount() int
}

// Metrics holds every collector on a private registry. All methods are safe
// on a nil receiver so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	toolCalls      *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec
	gapfillRuns    *prometheus.CounterVec
	stage1Reused   prometheus.Counter
	reactionsAdded *prometheus.CounterVec
	fbaRuns        *prometheus.CounterVec
	remoteRequests *prometheus.CounterVec
	breakerState   *prometheus.GaugeVec
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of MCP tool calls",
		},
		[]string{"tool", "outcome"}, // outcome: success, error, fault
	)
	m.toolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Time taken to handle MCP tool calls",
			// 1ms to ~65s; gapfilling large models sits at the top end.
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 17),
		},
		[]string{"tool"},
	)
	m.gapfillRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gapfill_runs_total",
			Help:      "Total number of gapfilling runs",
		},
		[]string{"mode", "outcome"},
	)
	m.stage1Reused = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gapfill_energy_correction_reused_total",
			Help:      "Gapfilling runs that reused cached energy-correction test conditions",
		},
	)
	m.reactionsAdded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gapfill_reactions_added_total",
			Help:      "Reactions added to models by gapfilling",
		},
		[]string{"stage"},
	)
	m.fbaRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fba_runs_total",
			Help:      "Flux balance analysis runs by solver status",
		},
		[]string{"status"},
	)
	m.remoteRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconstruction_remote_requests_total",
			Help:      "Requests to the remote reconstruction service",
		},
		[]string{"outcome"}, // outcome: success, failure, rejected
	)
	m.breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	m.registry.MustRegister(
		m.toolCalls,
		m.toolDuration,
		m.gapfillRuns,
		m.stage1Reused,
		m.reactionsAdded,
		m.fbaRuns,
		m.remoteRequests,
		m.breakerState,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// TrackStore registers gauges reading the current store sizes.
func (m *Metrics) TrackStore(s StoreSizer) {
	if m == nil {
		return
	}
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stored_models",
			Help:      "Models currently held in the session store",
		}, func() float64 { return float64(s.ModelCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stored_media",
			Help:      "Media currently held in the session store",
		}, func() float64 { return float64(s.MediaCount()) }),
	)
}

func (m *Metrics) ObserveToolCall(tool, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

func (m *Metrics) ObserveGapfill(mode, outcome string) {
	if m == nil {
		return
	}
	m.gapfillRuns.WithLabelValues(mode, outcome).Inc()
}

func (m *Metrics) IncStage1Reused() {
	if m == nil {
		return
	}
	m.stage1Reused.Inc()
}

func (m *Metrics) AddReactions(stage string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.reactionsAdded.WithLabelValues(stage).Add(float64(n))
}

func (m *Metrics) ObserveFBA(status string) {
	if m == nil {
		return
	}
	m.fbaRuns.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveRemoteRequest(outcome string) {
	if m == nil {
		return
	}
	m.remoteRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetBreakerState(name string, state float64) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(state)
}
