package metrics

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/aurora-io/perfcache/internal/counters"
	"github.com/aurora-io/perfcache/internal/logging"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errSensorOffline = errors.New("sensor offline")

func newTestScheduler(obs counters.Observer, idleTimeout int) (*counters.Scheduler, *testClock) {
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	quiet := logging.New(logging.Config{Level: logging.LevelError, Output: io.Discard})
	opts := []counters.SchedulerOption{counters.WithClock(clock), counters.WithLogger(quiet)}
	if obs != nil {
		opts = append(opts, counters.WithObserver(obs))
	}
	return counters.NewScheduler(counters.SchedulerConfig{IdleTimeout: idleTimeout}, opts...), clock
}

func findFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, family := range families {
		if family.GetName() == name {
			return family
		}
	}
	return nil
}

func labelsOf(m *dto.Metric) map[string]string {
	out := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}
