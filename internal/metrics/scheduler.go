package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SchedulerMetrics holds metrics for the counter refresh scheduler.
// It implements counters.Observer.
type SchedulerMetrics struct {
	// Ticks counts completed refresh passes.
	Ticks prometheus.Counter

	// TickDuration tracks how long a refresh pass takes, including every
	// provider call in the due buckets.
	TickDuration prometheus.Histogram

	// Refreshes counts successful provider calls.
	Refreshes prometheus.Counter

	// ProviderFailures counts failed or panicking provider calls by counter.
	ProviderFailures *prometheus.CounterVec

	// TickPanics counts panics recovered outside provider calls.
	TickPanics prometheus.Counter

	// Wakeups counts reads that woke a dormant or idle handle.
	Wakeups prometheus.Counter

	// Dormant counts handles that went dormant after their idle timeout.
	Dormant prometheus.Counter

	// Handles is the number of handles enrolled with the scheduler.
	Handles prometheus.Gauge

	// ActiveHandles is the number of enrolled handles still being refreshed.
	ActiveHandles prometheus.Gauge

	// Sleeping is 1 while the scheduler timer is stopped.
	Sleeping prometheus.Gauge
}

// tickBuckets covers sub-millisecond ticks up to slow providers.
var tickBuckets = []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1}

var failureLabels = []string{"category", "counter"}

// NewSchedulerMetrics creates and registers scheduler metrics with the
// default registry.
func NewSchedulerMetrics() *SchedulerMetrics {
	return NewSchedulerMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewSchedulerMetricsWithRegistry creates scheduler metrics registered with a custom registry.
// Useful for testing to avoid conflicts with the default registry.
func NewSchedulerMetricsWithRegistry(reg prometheus.Registerer) *SchedulerMetrics {
	f := promauto.With(reg)
	return &SchedulerMetrics{
		Ticks: f.NewCounter(prometheus.CounterOpts{
			Namespace: "perfcache",
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Total number of refresh passes completed.",
		}),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "perfcache",
			Subsystem: "scheduler",
			Name:      "tick_duration_seconds",
			Help:      "Duration of refresh passes in seconds.",
			Buckets:   tickBuckets,
		}),
		Refreshes: f.NewCounter(prometheus.CounterOpts{
			Namespace: "perfcache",
			Subsystem: "scheduler",
			Name:      "refreshes_total",
			Help:      "Total number of successful provider calls.",
		}),
		ProviderFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "perfcache",
			Subsystem: "scheduler",
			Name:      "provider_failures_total",
			Help:      "Total number of failed or panicking provider calls.",
		}, failureLabels),
		TickPanics: f.NewCounter(prometheus.CounterOpts{
			Namespace: "perfcache",
			Subsystem: "scheduler",
			Name:      "tick_panics_total",
			Help:      "Total number of panics recovered outside provider calls.",
		}),
		Wakeups: f.NewCounter(prometheus.CounterOpts{
			Namespace: "perfcache",
			Subsystem: "scheduler",
			Name:      "wakeups_total",
			Help:      "Total number of reads that woke a dormant or idle handle.",
		}),
		Dormant: f.NewCounter(prometheus.CounterOpts{
			Namespace: "perfcache",
			Subsystem: "scheduler",
			Name:      "dormant_total",
			Help:      "Total number of handles that went dormant after their idle timeout.",
		}),
		Handles: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "perfcache",
			Subsystem: "scheduler",
			Name:      "handles",
			Help:      "Number of handles enrolled with the scheduler.",
		}),
		ActiveHandles: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "perfcache",
			Subsystem: "scheduler",
			Name:      "active_handles",
			Help:      "Number of enrolled handles that are still refreshed.",
		}),
		Sleeping: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "perfcache",
			Subsystem: "scheduler",
			Name:      "sleeping",
			Help:      "1 while the scheduler timer is stopped because no handle is active.",
		}),
	}
}

// TickCompleted records a finished refresh pass.
func (m *SchedulerMetrics) TickCompleted(d time.Duration, refreshed, _ int) {
	m.Ticks.Inc()
	m.TickDuration.Observe(d.Seconds())
	m.Refreshes.Add(float64(refreshed))
}

// TickPanicked records a panic recovered by the scheduler itself.
func (m *SchedulerMetrics) TickPanicked() {
	m.TickPanics.Inc()
}

// ProviderFailed records a failed provider call.
func (m *SchedulerMetrics) ProviderFailed(category, counter string) {
	m.ProviderFailures.WithLabelValues(category, counter).Inc()
}

// HandleWoken records a read that woke a handle.
func (m *SchedulerMetrics) HandleWoken() {
	m.Wakeups.Inc()
}

// HandleSlept records a handle going dormant.
func (m *SchedulerMetrics) HandleSlept() {
	m.Dormant.Inc()
}

// SetMembers updates the enrolled and active handle gauges.
func (m *SchedulerMetrics) SetMembers(total, active int) {
	m.Handles.Set(float64(total))
	m.ActiveHandles.Set(float64(active))
}

// SetSleeping updates the sleeping gauge.
func (m *SchedulerMetrics) SetSleeping(sleeping bool) {
	if sleeping {
		m.Sleeping.Set(1)
		return
	}
	m.Sleeping.Set(0)
}
