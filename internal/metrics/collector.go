package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aurora-io/perfcache/internal/counters"
)

var valueDesc = prometheus.NewDesc(
	"perfcache_counter_value",
	"Latest cached sample of a scalar counter.",
	[]string{"category", "counter", "instance", "interval"},
	nil,
)

// ValueCollector exports the cached sample of every scalar handle. Scrapes
// read the sample directly and never count as an access, so a handle nobody
// else reads still goes dormant.
type ValueCollector struct {
	registry *counters.Registry[float64]
}

// NewValueCollector creates a collector over registry.
func NewValueCollector(registry *counters.Registry[float64]) *ValueCollector {
	return &ValueCollector{registry: registry}
}

// Describe implements prometheus.Collector.
func (c *ValueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- valueDesc
}

// Collect implements prometheus.Collector. Handles that have never been
// refreshed are skipped.
func (c *ValueCollector) Collect(ch chan<- prometheus.Metric) {
	for _, h := range c.registry.Handles() {
		s := h.Sample()
		if s.Timestamp.IsZero() {
			continue
		}
		key := h.Key()
		m := prometheus.MustNewConstMetric(valueDesc, prometheus.GaugeValue, s.Current,
			key.Category, key.Counter, key.Instance, key.Interval.String())
		ch <- prometheus.NewMetricWithTimestamp(s.Timestamp, m)
	}
}
