package counters

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aurora-io/perfcache/internal/logging"
)

// Scheduler defaults.
const (
	DefaultIdleTimeout          = 3
	DefaultMaxConcurrentBuckets = 4
)

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	// IdleTimeout is the number of refreshes a handle survives without being
	// read before it goes dormant.
	IdleTimeout int

	// IdleWindow, when positive, replaces IdleTimeout with a per-interval
	// tick count of ceil(IdleWindow/interval), so fast and slow handles go
	// dormant after the same wall-clock time.
	IdleWindow time.Duration

	// MaxConcurrentBuckets bounds how many due buckets refresh in parallel
	// within one tick.
	MaxConcurrentBuckets int
}

// DefaultSchedulerConfig returns a SchedulerConfig with sensible defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		IdleTimeout:          DefaultIdleTimeout,
		MaxConcurrentBuckets: DefaultMaxConcurrentBuckets,
	}
}

// Clock provides time functions for testing.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Observer receives scheduler events. metrics.SchedulerMetrics implements it.
type Observer interface {
	TickCompleted(d time.Duration, refreshed, failed int)
	TickPanicked()
	ProviderFailed(category, counter string)
	HandleWoken()
	HandleSlept()
	SetMembers(total, active int)
	SetSleeping(sleeping bool)
}

type noopObserver struct{}

func (noopObserver) TickCompleted(time.Duration, int, int) {}
func (noopObserver) TickPanicked()                         {}
func (noopObserver) ProviderFailed(string, string)         {}
func (noopObserver) HandleWoken()                          {}
func (noopObserver) HandleSlept()                          {}
func (noopObserver) SetMembers(int, int)                   {}
func (noopObserver) SetSleeping(bool)                      {}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(c Clock) SchedulerOption {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger used for provider failures.
func WithLogger(l *logging.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver attaches an instrumentation sink.
func WithObserver(o Observer) SchedulerOption {
	return func(s *Scheduler) {
		if o != nil {
			s.observer = o
		}
	}
}

// bucket groups the members that share one refresh interval.
type bucket struct {
	interval time.Duration
	nextDue  time.Time
	members  []member
}

func (b *bucket) activeMembers() int {
	n := 0
	for _, m := range b.members {
		if m.idleRemaining() > 0 {
			n++
		}
	}
	return n
}

// BucketStats describes one bucket.
type BucketStats struct {
	Interval time.Duration
	NextDue  time.Time
	Members  int
	Active   int
}

// SchedulerStats is a point-in-time view of the scheduler.
type SchedulerStats struct {
	Sleeping bool
	Pending  int
	Buckets  []BucketStats
}

// Scheduler refreshes every enrolled handle from a single timer goroutine.
// Handles with the same interval share a bucket; the timer is armed for the
// earliest bucket that still has an active member and stopped when none has.
type Scheduler struct {
	cfg      SchedulerConfig
	clock    Clock
	logger   *logging.Logger
	observer Observer

	mu      sync.Mutex
	buckets map[time.Duration]*bucket
	order   []*bucket
	pending []member

	// tickMu keeps ticks from overlapping whether they come from the loop
	// or from Tick callers.
	tickMu   sync.Mutex
	sleeping atomic.Bool

	wakeCh   chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
}

// NewScheduler creates a scheduler. It does nothing until Start is called,
// but Tick can be driven by hand.
func NewScheduler(cfg SchedulerConfig, opts ...SchedulerOption) *Scheduler {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.MaxConcurrentBuckets <= 0 {
		cfg.MaxConcurrentBuckets = DefaultMaxConcurrentBuckets
	}
	s := &Scheduler{
		cfg:      cfg,
		clock:    realClock{},
		observer: noopObserver{},
		buckets:  make(map[time.Duration]*bucket),
		wakeCh:   make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Global().WithComponent("counter_scheduler")
	}
	s.sleeping.Store(true)
	return s
}

// Start runs the timer loop in the background until ctx is cancelled or
// Shutdown is called. Calling Start twice has no effect.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go s.run(ctx)
}

// Shutdown stops the timer loop and waits for an in-flight tick to finish.
// Handles keep serving their last sample afterwards.
func (s *Scheduler) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	if s.started.Load() {
		<-s.doneCh
	}
}

// Done is closed once the loop run by Start has exited, whether through ctx
// or Shutdown. It never closes if Start was not called.
func (s *Scheduler) Done() <-chan struct{} {
	return s.doneCh
}

// Sleeping reports whether the timer is stopped because no handle is active.
func (s *Scheduler) Sleeping() bool {
	return s.sleeping.Load()
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	// The first tick runs immediately to pick up handles read before Start.
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-s.wakeCh:
		case <-timer.C:
		}

		next, ok := s.Tick()
		timer.Stop()
		if !ok {
			continue
		}
		delay := next.Sub(s.clock.Now())
		if delay < 0 {
			delay = 0
		}
		timer.Reset(delay)
	}
}

// Tick runs one refresh pass: every due bucket samples its active members.
// It returns when the next pass is due, or ok=false when nothing is active
// and the scheduler should sleep until woken.
func (s *Scheduler) Tick() (next time.Time, ok bool) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	start := s.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("counter scheduler tick panicked", map[string]any{
				"panic": fmt.Sprint(r),
			})
			s.observer.TickPanicked()
			next, ok = s.retryAfterPanic(start)
			s.sleeping.Store(!ok)
		}
	}()

	due := s.collectDue(start)
	refreshed, failed := s.refreshBuckets(due, start)

	next, ok, total, active := s.nextWake()
	s.sleeping.Store(!ok)
	s.observer.SetMembers(total, active)
	s.observer.SetSleeping(!ok)
	s.observer.TickCompleted(s.clock.Now().Sub(start), refreshed, failed)

	if !ok {
		s.logger.Debugf("counter scheduler sleeping", map[string]any{"members": total})
	}
	return next, ok
}

// collectDue moves newly enrolled members into their buckets and advances
// the deadline of every bucket that is due at now.
func (s *Scheduler) collectDue(now time.Time) []*bucket {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.pending {
		interval := m.counterKey().Interval
		b, ok := s.buckets[interval]
		if !ok {
			b = &bucket{interval: interval}
			s.buckets[interval] = b
			s.order = append(s.order, b)
			sort.Slice(s.order, func(i, j int) bool {
				return s.order[i].interval < s.order[j].interval
			})
		}
		b.members = append(b.members, m)
	}
	s.pending = nil

	var due []*bucket
	for _, b := range s.order {
		if b.nextDue.After(now) {
			continue
		}
		b.nextDue = now.Add(b.interval)
		due = append(due, b)
	}
	return due
}

func (s *Scheduler) refreshBuckets(due []*bucket, now time.Time) (int, int) {
	if len(due) == 1 {
		return s.refreshBucket(due[0], now)
	}

	var refreshed, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrentBuckets)
	for _, b := range due {
		g.Go(func() error {
			r, f := s.refreshBucket(b, now)
			refreshed.Add(int64(r))
			failed.Add(int64(f))
			return nil
		})
	}
	_ = g.Wait()
	return int(refreshed.Load()), int(failed.Load())
}

// refreshBucket samples every active member of b. A panic here must not
// escape: it may run on an errgroup goroutine where nothing recovers it.
func (s *Scheduler) refreshBucket(b *bucket, now time.Time) (refreshed, failed int) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("counter bucket refresh panicked", map[string]any{
				"interval": b.interval.String(),
				"panic":    fmt.Sprint(r),
			})
			s.observer.TickPanicked()
		}
	}()

	for _, m := range b.members {
		if m.idleRemaining() <= 0 {
			continue
		}
		key := m.counterKey()
		if err := m.refresh(now); err != nil {
			failed++
			s.logger.Errorf("counter provider failed", map[string]any{
				"metric": key.String(),
				"error":  err.Error(),
			})
			s.observer.ProviderFailed(key.Category, key.Counter)
		} else {
			refreshed++
		}
		if m.tickIdle() {
			s.observer.HandleSlept()
			s.logger.Debugf("counter went dormant", map[string]any{"metric": key.String()})
		}
	}
	return refreshed, failed
}

// nextWake returns the earliest deadline among buckets with an active member.
func (s *Scheduler) nextWake() (next time.Time, ok bool, total, active int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.order {
		total += len(b.members)
		n := b.activeMembers()
		if n == 0 {
			continue
		}
		active += n
		if !ok || b.nextDue.Before(next) {
			next = b.nextDue
			ok = true
		}
	}
	// Members enrolled during this tick are picked up right away.
	if len(s.pending) > 0 && (!ok || next.After(s.clock.Now())) {
		next, ok = s.clock.Now(), true
	}
	return next, ok, total, active
}

// retryAfterPanic keeps the loop alive after a tick panic by rearming for the
// shortest interval, unless there is nothing at all to refresh.
func (s *Scheduler) retryAfterPanic(now time.Time) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) == 0 && len(s.pending) == 0 {
		return time.Time{}, false
	}
	shortest := time.Second
	if len(s.order) > 0 {
		shortest = s.order[0].interval
	}
	return now.Add(shortest), true
}

// wake is called by a reader that found its handle dormant or idle. enroll
// is true exactly once per handle, on its first read.
func (s *Scheduler) wake(m member, enroll bool) {
	if enroll {
		s.mu.Lock()
		s.pending = append(s.pending, m)
		s.mu.Unlock()
	}
	s.observer.HandleWoken()
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) now() time.Time {
	return s.clock.Now()
}

func (s *Scheduler) idleTimeoutFor(interval time.Duration) int32 {
	if s.cfg.IdleWindow > 0 && interval > 0 {
		n := int32(math.Ceil(float64(s.cfg.IdleWindow) / float64(interval)))
		if n < 1 {
			n = 1
		}
		return n
	}
	return int32(s.cfg.IdleTimeout)
}

// Stats returns a snapshot of all buckets ordered by interval.
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SchedulerStats{
		Sleeping: s.sleeping.Load(),
		Pending:  len(s.pending),
		Buckets:  make([]BucketStats, 0, len(s.order)),
	}
	for _, b := range s.order {
		st.Buckets = append(st.Buckets, BucketStats{
			Interval: b.interval,
			NextDue:  b.nextDue,
			Members:  len(b.members),
			Active:   b.activeMembers(),
		})
	}
	return st
}
