package counters

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aurora-io/perfcache/internal/logging"
)

// mockClock implements Clock for testing.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *mockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// recordingObserver counts scheduler events.
type recordingObserver struct {
	ticks         atomic.Int64
	panics        atomic.Int64
	failures      atomic.Int64
	wakeups       atomic.Int64
	slept         atomic.Int64
	members       atomic.Int64
	activeMembers atomic.Int64
	sleeping      atomic.Bool
	lastRefreshed atomic.Int64
	lastFailed    atomic.Int64
}

func (o *recordingObserver) TickCompleted(_ time.Duration, refreshed, failed int) {
	o.ticks.Add(1)
	o.lastRefreshed.Store(int64(refreshed))
	o.lastFailed.Store(int64(failed))
}
func (o *recordingObserver) TickPanicked()                 { o.panics.Add(1) }
func (o *recordingObserver) ProviderFailed(string, string) { o.failures.Add(1) }
func (o *recordingObserver) HandleWoken()                  { o.wakeups.Add(1) }
func (o *recordingObserver) HandleSlept()                  { o.slept.Add(1) }
func (o *recordingObserver) SetSleeping(sleeping bool)     { o.sleeping.Store(sleeping) }
func (o *recordingObserver) SetMembers(total, active int) {
	o.members.Store(int64(total))
	o.activeMembers.Store(int64(active))
}

func quietLogger() *logging.Logger {
	return logging.New(logging.Config{Level: logging.LevelError, Output: io.Discard})
}

func newTestScheduler(cfg SchedulerConfig) (*Scheduler, *mockClock, *recordingObserver) {
	clock := newMockClock()
	obs := &recordingObserver{}
	s := NewScheduler(cfg, WithClock(clock), WithLogger(quietLogger()), WithObserver(obs))
	return s, clock, obs
}

// countingProvider returns successive values from seq and counts calls.
// An error entry makes that call fail.
type countingProvider struct {
	mu    sync.Mutex
	calls int
	seq   []any
}

func (p *countingProvider) provide() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	p.calls++
	if len(p.seq) == 0 {
		return float64(p.calls), nil
	}
	if i >= len(p.seq) {
		i = len(p.seq) - 1
	}
	switch v := p.seq[i].(type) {
	case float64:
		return v, nil
	case error:
		return 0, v
	case string:
		panic(v)
	}
	return 0, nil
}

func (p *countingProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func cpuKey(interval time.Duration) Key {
	return Key{Category: "Internal", Counter: "CPU", Instance: "% Usage", Interval: interval}
}
