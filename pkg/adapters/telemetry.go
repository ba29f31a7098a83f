package adapters

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Telemetry exports scheduler and per-node counters/gauges through a real
// Prometheus client registry (spec §4.12 "Telemetry exports
// counters/gauges at an interval to a configured endpoint string"),
// mirroring aistore's own use of a private prometheus.Registry instead of
// the global default one.
type Telemetry struct {
	registry *prometheus.Registry
	interval time.Duration

	tickCount     prometheus.Counter
	emergencyStop prometheus.Counter

	nodeTickCount  *prometheus.CounterVec
	nodeErrorCount *prometheus.CounterVec
	nodeTickNanos  *prometheus.HistogramVec
	nodeState      *prometheus.GaugeVec

	pushMu   sync.Mutex
	pusher   *push.Pusher
	lastPush time.Time
}

// NewTelemetry constructs a private registry devoid of Go runtime default
// metrics, matching the pack's demonstrated idiom (Hawthorne001-aistore
// stats/common_prom.go "devoid of _default_ metrics go_gc*, go_mem*").
func NewTelemetry(interval time.Duration) *Telemetry {
	registry := prometheus.NewRegistry()

	t := &Telemetry{
		registry: registry,
		interval: interval,
		tickCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "horus", Name: "scheduler_ticks_total", Help: "Total scheduler ticks completed.",
		}),
		emergencyStop: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "horus", Name: "emergency_stops_total", Help: "Total safety-monitor emergency stops.",
		}),
		nodeTickCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "horus", Name: "node_ticks_total", Help: "Total ticks per node.",
		}, []string{"node"}),
		nodeErrorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "horus", Name: "node_errors_total", Help: "Total tick failures per node.",
		}, []string{"node"}),
		nodeTickNanos: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "horus", Name: "node_tick_duration_seconds", Help: "Per-node tick duration.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"node"}),
		nodeState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "horus", Name: "node_state", Help: "Current lifecycle state ordinal per node.",
		}, []string{"node"}),
	}

	registry.MustRegister(t.tickCount, t.emergencyStop, t.nodeTickCount, t.nodeErrorCount, t.nodeTickNanos, t.nodeState)

	return t
}

// ObserveTick records one scheduler tick completing.
func (t *Telemetry) ObserveTick() { t.tickCount.Inc() }

// ObserveEmergencyStop records a safety-monitor e-stop.
func (t *Telemetry) ObserveEmergencyStop() { t.emergencyStop.Inc() }

// ObserveNodeTick records one node's tick outcome and duration.
func (t *Telemetry) ObserveNodeTick(node string, success bool, duration time.Duration) {
	t.nodeTickCount.WithLabelValues(node).Inc()
	t.nodeTickNanos.WithLabelValues(node).Observe(duration.Seconds())

	if !success {
		t.nodeErrorCount.WithLabelValues(node).Inc()
	}
}

// SetNodeState records node's current lifecycle state as a gauge ordinal.
func (t *Telemetry) SetNodeState(node string, stateOrdinal int) {
	t.nodeState.WithLabelValues(node).Set(float64(stateOrdinal))
}

// Handler exposes the registry at the configured telemetry endpoint,
// instrumenting the scrape itself (same idiom as aistore's PromHandler).
func (t *Telemetry) Handler() http.Handler {
	opts := promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError}
	handler := promhttp.HandlerFor(t.registry, opts)

	return promhttp.InstrumentMetricHandler(t.registry, handler)
}

// Interval reports the configured export cadence (spec §6
// "monitoring.metrics_interval_ms").
func (t *Telemetry) Interval() time.Duration { return t.interval }

// ConfigurePush points this Telemetry at a Prometheus Pushgateway endpoint
// (spec §6 "monitoring.telemetry_endpoint"), for deployments that scrape
// via push rather than exposing Handler for pull. An empty endpoint
// disables pushing.
func (t *Telemetry) ConfigurePush(endpoint, jobName string) {
	t.pushMu.Lock()
	defer t.pushMu.Unlock()

	if endpoint == "" {
		t.pusher = nil

		return
	}

	if jobName == "" {
		jobName = "horus"
	}

	t.pusher = push.New(endpoint, jobName).Gatherer(t.registry)
}

// PushDue reports whether at least Interval has elapsed since the last
// push, mirroring the checkpoint manager's own Due() cadence check.
func (t *Telemetry) PushDue(now time.Time) bool {
	t.pushMu.Lock()
	defer t.pushMu.Unlock()

	if t.pusher == nil || t.interval <= 0 {
		return false
	}

	return now.Sub(t.lastPush) >= t.interval
}

// Push sends the current registry snapshot to the configured Pushgateway.
// Safe to call even when no endpoint was configured; it then no-ops.
func (t *Telemetry) Push() error {
	t.pushMu.Lock()
	pusher := t.pusher
	t.pushMu.Unlock()

	if pusher == nil {
		return nil
	}

	if err := pusher.Push(); err != nil {
		return fmt.Errorf("adapters: telemetry push: %w", err)
	}

	t.pushMu.Lock()
	t.lastPush = time.Now()
	t.pushMu.Unlock()

	return nil
}

// Serve starts an HTTP server exposing Handler at addr and blocks until it
// exits. Callers typically run this in its own goroutine.
func (t *Telemetry) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", t.Handler())

	if err := http.ListenAndServe(addr, mux); err != nil { //nolint:gosec // internal telemetry endpoint, timeouts not required
		return fmt.Errorf("adapters: telemetry server: %w", err)
	}

	return nil
}
