package metrics

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aurora-io/perfcache/internal/counters"
	"github.com/aurora-io/perfcache/internal/logging"
)

// CounterSnapshot is one handle in the /debug/counters response.
type CounterSnapshot struct {
	Key       string    `json:"key"`
	State     string    `json:"state"`
	Current   any       `json:"current"`
	Previous  any       `json:"previous"`
	Timestamp time.Time `json:"timestamp"`
	Refreshes uint64    `json:"refreshes"`
	Failures  uint64    `json:"failures"`
	LastError string    `json:"lastError,omitempty"`
	IdleTicks int       `json:"idleTicks"`
}

// BucketSnapshot is one scheduler bucket in the /debug/counters response.
type BucketSnapshot struct {
	Interval string    `json:"interval"`
	NextDue  time.Time `json:"nextDue"`
	Members  int       `json:"members"`
	Active   int       `json:"active"`
}

// DebugSnapshot is the /debug/counters response body.
type DebugSnapshot struct {
	Sleeping bool              `json:"sleeping"`
	Pending  int               `json:"pending"`
	Buckets  []BucketSnapshot  `json:"buckets"`
	Counters []CounterSnapshot `json:"counters"`
}

// DebugHandler serves a JSON view of every handle and bucket. Like the
// ValueCollector it reads samples without waking handles.
type DebugHandler struct {
	sched   *counters.Scheduler
	scalars *counters.Registry[float64]
	vectors *counters.Registry[counters.Vector]
	logger  *logging.Logger
}

// NewDebugHandler creates a handler over the scheduler and its registries.
// Either registry may be nil.
func NewDebugHandler(sched *counters.Scheduler, scalars *counters.Registry[float64], vectors *counters.Registry[counters.Vector]) *DebugHandler {
	return &DebugHandler{
		sched:   sched,
		scalars: scalars,
		vectors: vectors,
		logger:  logging.Global().WithComponent("debug_counters"),
	}
}

// Snapshot builds the current debug view.
func (d *DebugHandler) Snapshot() DebugSnapshot {
	st := d.sched.Stats()
	snap := DebugSnapshot{
		Sleeping: st.Sleeping,
		Pending:  st.Pending,
		Buckets:  make([]BucketSnapshot, 0, len(st.Buckets)),
		Counters: []CounterSnapshot{},
	}
	for _, b := range st.Buckets {
		snap.Buckets = append(snap.Buckets, BucketSnapshot{
			Interval: b.Interval.String(),
			NextDue:  b.NextDue,
			Members:  b.Members,
			Active:   b.Active,
		})
	}
	if d.scalars != nil {
		for _, h := range d.scalars.Handles() {
			s := h.Sample()
			snap.Counters = append(snap.Counters, counterSnapshot(h.Key(), h.Stats(), s.Current, s.Previous, s.Timestamp))
		}
	}
	if d.vectors != nil {
		for _, h := range d.vectors.Handles() {
			s := h.Sample()
			snap.Counters = append(snap.Counters, counterSnapshot(h.Key(), h.Stats(), []float64(s.Current), []float64(s.Previous), s.Timestamp))
		}
	}
	return snap
}

func counterSnapshot(key counters.Key, st counters.HandleStats, current, previous any, ts time.Time) CounterSnapshot {
	return CounterSnapshot{
		Key:       key.String(),
		State:     st.State.String(),
		Current:   current,
		Previous:  previous,
		Timestamp: ts,
		Refreshes: st.Refreshes,
		Failures:  st.Failures,
		LastError: st.LastError,
		IdleTicks: st.IdleTicks,
	}
}

// ServeHTTP implements http.Handler.
func (d *DebugHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// NaN and Inf samples cannot be encoded; buffer so they fail with a 500.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d.Snapshot()); err != nil {
		d.logger.Errorf("failed to encode debug snapshot", map[string]any{"error": err.Error()})
		http.Error(w, "failed to encode snapshot: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(buf.Bytes())
}
