// Package metrics provides Prometheus metrics for the debug host: pause
// state, breakpoint lifecycle, event pump throughput, and the HTTP control
// surface that exposes them.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	instance *Metrics
)

// Metrics holds every Prometheus collector the debug host registers.
type Metrics struct {
	// HTTP control-surface metrics (cmd/debughostd's gin router).
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Event pump
	MailboxDepth     prometheus.Gauge
	EventSetsHandled *prometheus.CounterVec
	QuiescenceChecks prometheus.Counter

	// Script registry
	ScriptsRegistered     prometheus.Gauge
	SourceRecoveryFailed  prometheus.Counter
	SourceRecoveryRetries prometheus.Counter

	// Breakpoints / pause engine
	BreakableLocations prometheus.Gauge
	BreakpointsActive  prometheus.Gauge
	BreakpointHits     *prometheus.CounterVec
	PauseDuration      prometheus.Histogram
	CurrentlyPaused    prometheus.Gauge

	// Evaluation
	EvaluationsTotal   *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram

	// Object registry
	ObjectsMinted prometheus.Counter

	// System
	BuildInfo *prometheus.GaugeVec
}

// Get returns the process-wide singleton Metrics instance, registering
// every collector with the default registry on first use.
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

func newMetrics() *Metrics {
	m := &Metrics{}

	m.HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "debughost",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by endpoint, method, and status code",
		},
		[]string{"endpoint", "method", "status"},
	)

	m.HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "debughost",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"endpoint", "method"},
	)

	m.HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "debughost",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being processed",
		},
	)

	m.MailboxDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "debughost",
			Subsystem: "pump",
			Name:      "mailbox_depth",
			Help:      "Items currently queued on the event pump's mailbox",
		},
	)

	m.EventSetsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "debughost",
			Subsystem: "pump",
			Name:      "event_sets_handled_total",
			Help:      "Composite JDWP event sets handled, by dominant event kind",
		},
		[]string{"kind"},
	)

	m.QuiescenceChecks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "debughost",
			Subsystem: "pump",
			Name:      "quiescence_checks_total",
			Help:      "Quiescence window checks performed during startup class-loading settle",
		},
	)

	m.ScriptsRegistered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "debughost",
			Subsystem: "scripts",
			Name:      "registered",
			Help:      "Currently registered, deduplicated scripts",
		},
	)

	m.SourceRecoveryFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "debughost",
			Subsystem: "scripts",
			Name:      "source_recovery_failed_total",
			Help:      "Script classes abandoned after exhausting source-recovery retries",
		},
	)

	m.SourceRecoveryRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "debughost",
			Subsystem: "scripts",
			Name:      "source_recovery_retries_total",
			Help:      "Source-recovery retry attempts scheduled",
		},
	)

	m.BreakableLocations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "debughost",
			Subsystem: "breakpoints",
			Name:      "breakable_locations",
			Help:      "Total breakable locations across every registered script",
		},
	)

	m.BreakpointsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "debughost",
			Subsystem: "breakpoints",
			Name:      "active",
			Help:      "Breakpoints currently installed on the target",
		},
	)

	m.BreakpointHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "debughost",
			Subsystem: "breakpoints",
			Name:      "hits_total",
			Help:      "Breakpoint hits by kind (breakpoint, exception, debugger-statement)",
		},
		[]string{"kind"},
	)

	m.PauseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "debughost",
			Subsystem: "breakpoints",
			Name:      "pause_duration_seconds",
			Help:      "Wall-clock time the target spent suspended per pause",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	m.CurrentlyPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "debughost",
			Subsystem: "breakpoints",
			Name:      "currently_paused",
			Help:      "1 if the target is currently suspended, 0 otherwise",
		},
	)

	m.EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "debughost",
			Subsystem: "eval",
			Name:      "total",
			Help:      "Expression evaluations by outcome (ok, thrown, error)",
		},
		[]string{"outcome"},
	)

	m.EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "debughost",
			Subsystem: "eval",
			Name:      "duration_seconds",
			Help:      "Expression evaluation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
	)

	m.ObjectsMinted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "debughost",
			Subsystem: "objects",
			Name:      "minted_total",
			Help:      "Object ids minted by the pause-scoped object registry",
		},
	)

	m.BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "debughost",
			Subsystem: "build",
			Name:      "info",
			Help:      "Build metadata, always set to 1",
		},
		[]string{"version"},
	)

	return m
}

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(endpoint, method, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

// RecordPause records one completed pause's duration and flips the
// currently-paused gauge off.
func (m *Metrics) RecordPause(duration time.Duration) {
	m.PauseDuration.Observe(duration.Seconds())
	m.CurrentlyPaused.Set(0)
}

// RecordBreakpointHit increments the hit counter for kind ("breakpoint",
// "exception", "debugger-statement") and flips currently-paused on.
func (m *Metrics) RecordBreakpointHit(kind string) {
	m.BreakpointHits.WithLabelValues(kind).Inc()
	m.CurrentlyPaused.Set(1)
}

// RecordEvaluation records one evaluateOnStackFrame call outcome.
func (m *Metrics) RecordEvaluation(outcome string, duration time.Duration) {
	m.EvaluationsTotal.WithLabelValues(outcome).Inc()
	m.EvaluationDuration.Observe(duration.Seconds())
}
