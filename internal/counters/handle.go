package counters

import (
	"sync/atomic"
	"time"
)

// State is the lifecycle state of a handle's background refresh.
type State int32

const (
	// StateDormant means the scheduler skips the handle until it is read.
	StateDormant State = iota
	// StateWaking is held only while a reader enrolls the handle.
	StateWaking
	// StateActive means the scheduler refreshes the handle on its interval.
	StateActive
)

func (s State) String() string {
	switch s {
	case StateDormant:
		return "dormant"
	case StateWaking:
		return "waking"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// HandleStats reports refresh bookkeeping for a handle.
type HandleStats struct {
	Refreshes   uint64
	Failures    uint64
	LastError   string
	IdleTicks   int
	State       State
	LastRefresh time.Time
}

// member is the scheduler's view of a handle, independent of its sample type.
type member interface {
	counterKey() Key
	idleRemaining() int32
	refresh(now time.Time) error
	tickIdle() (expired bool)
}

// Handle is the cached state of one counter. It is created by a Registry and
// lives for the lifetime of the process.
type Handle[T any] struct {
	key         Key
	provider    Provider[T]
	lerp        LerpFunc[T]
	clone       func(T) T
	sched       *Scheduler
	idleTimeout int32

	sample   atomic.Pointer[Sample[T]]
	idle     atomic.Int32
	state    atomic.Int32
	enrolled atomic.Bool

	refreshes atomic.Uint64
	failures  atomic.Uint64
	lastErr   atomic.Pointer[string]
}

func newHandle[T any](key Key, provider Provider[T], lerp LerpFunc[T], clone func(T) T, sched *Scheduler) *Handle[T] {
	h := &Handle[T]{
		key:         key,
		provider:    provider,
		lerp:        lerp,
		clone:       clone,
		sched:       sched,
		idleTimeout: sched.idleTimeoutFor(key.Interval),
	}
	h.sample.Store(&Sample[T]{})
	return h
}

// Key returns the handle's key.
func (h *Handle[T]) Key() Key {
	return h.key
}

// State returns the current lifecycle state.
func (h *Handle[T]) State() State {
	return State(h.state.Load())
}

// Sample returns the latest snapshot without counting as an access, so
// exporters can read a handle without keeping it awake.
func (h *Handle[T]) Sample() Sample[T] {
	s := *h.sample.Load()
	if h.clone != nil {
		s.Previous = h.clone(s.Previous)
		s.Current = h.clone(s.Current)
	}
	return s
}

// GetValue returns the counter value and marks the handle as in use. With
// easing it interpolates between the last two samples; without it returns the
// raw current sample, which may be up to one interval old.
//
// GetValue never calls the provider and never blocks on the scheduler.
func (h *Handle[T]) GetValue(easing bool) T {
	// A countdown of zero means the scheduler may already have gone to sleep
	// without seeing this handle, so it has to be woken even if the state
	// has not caught up yet.
	wasIdle := h.idle.Swap(h.idleTimeout) == 0
	if h.state.Load() == int32(StateDormant) && h.state.CompareAndSwap(int32(StateDormant), int32(StateWaking)) {
		h.sched.wake(h, !h.enrolled.Swap(true))
		h.state.CompareAndSwap(int32(StateWaking), int32(StateActive))
	} else if wasIdle {
		h.sched.wake(h, false)
	}

	s := h.sample.Load()
	if !easing {
		if h.clone != nil {
			return h.clone(s.Current)
		}
		return s.Current
	}
	return Ease(*s, h.key.Interval, h.sched.now(), h.lerp)
}

// Stats returns refresh counters for debugging.
func (h *Handle[T]) Stats() HandleStats {
	st := HandleStats{
		Refreshes:   h.refreshes.Load(),
		Failures:    h.failures.Load(),
		IdleTicks:   int(h.idle.Load()),
		State:       h.State(),
		LastRefresh: h.sample.Load().Timestamp,
	}
	if msg := h.lastErr.Load(); msg != nil {
		st.LastError = *msg
	}
	return st
}

func (h *Handle[T]) counterKey() Key {
	return h.key
}

func (h *Handle[T]) idleRemaining() int32 {
	return h.idle.Load()
}

// refresh samples the provider and swaps in a new snapshot. Only the
// scheduler calls it, so it is the single writer of h.sample.
func (h *Handle[T]) refresh(now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ProviderPanicError{Key: h.key, Value: r}
		}
		if err != nil {
			h.failures.Add(1)
			msg := err.Error()
			h.lastErr.Store(&msg)
		}
	}()

	v, err := h.provider()
	if err != nil {
		return err
	}

	old := h.sample.Load()
	if now.Before(old.Timestamp) {
		now = old.Timestamp
	}
	h.sample.Store(&Sample[T]{Previous: old.Current, Current: v, Timestamp: now})
	h.refreshes.Add(1)
	return nil
}

// tickIdle decrements the idle countdown and reports whether this call
// expired the handle. A concurrent reader resetting the countdown always wins.
func (h *Handle[T]) tickIdle() bool {
	for {
		n := h.idle.Load()
		if n <= 0 {
			return false
		}
		if !h.idle.CompareAndSwap(n, n-1) {
			continue
		}
		if n-1 > 0 {
			return false
		}
		return h.state.CompareAndSwap(int32(StateActive), int32(StateDormant))
	}
}
