package metrics

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aurora-io/perfcache/internal/counters"
)

func TestDebugHandler_Snapshot(t *testing.T) {
	sched, _ := newTestScheduler(nil, 3)
	scalars := counters.NewScalarRegistry(sched, nil)
	vectors := counters.NewVectorRegistry(sched, nil)

	disk, err := scalars.GetOrCreate(counters.Key{Category: "Internal", Counter: "System Disk", Instance: "% Usage", Interval: time.Second},
		func() (float64, error) { return 0, errSensorOffline })
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	cores, err := vectors.GetOrCreate(counters.Key{Category: "Internal", Counter: "CPU", Instance: "PerCore", Interval: 250 * time.Millisecond},
		func() (counters.Vector, error) { return counters.Vector{10, 20}, nil })
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	disk.GetValue(false)
	cores.GetValue(false)
	sched.Tick()

	w := httptest.NewRecorder()
	NewDebugHandler(sched, scalars, vectors).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/counters", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", w.Code, http.StatusOK)
	}

	var snap struct {
		Sleeping bool
		Buckets  []struct {
			Interval string
			Members  int
		}
		Counters []struct {
			Key       string
			State     string
			Current   any
			Failures  uint64
			LastError string
		}
	}
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if snap.Sleeping {
		t.Error("sleeping = true, want false")
	}
	if len(snap.Buckets) != 2 || snap.Buckets[0].Interval != "250ms" || snap.Buckets[1].Interval != "1s" {
		t.Errorf("buckets = %+v, want 250ms then 1s", snap.Buckets)
	}
	if len(snap.Counters) != 2 {
		t.Fatalf("counters = %d, want 2", len(snap.Counters))
	}

	d := snap.Counters[0]
	if d.Key != "Internal/System Disk/% Usage@1s" {
		t.Errorf("first key = %q", d.Key)
	}
	if d.Failures != 1 || d.LastError != "sensor offline" {
		t.Errorf("disk failures = %d, last error = %q", d.Failures, d.LastError)
	}
	if d.State != "active" {
		t.Errorf("disk state = %q, want active", d.State)
	}

	c := snap.Counters[1]
	if got := fmt.Sprint(c.Current); got != "[10 20]" {
		t.Errorf("cores current = %s, want [10 20]", got)
	}
}

func TestDebugHandler_MethodNotAllowed(t *testing.T) {
	sched, _ := newTestScheduler(nil, 3)
	w := httptest.NewRecorder()
	NewDebugHandler(sched, nil, nil).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/debug/counters", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

func TestDebugHandler_NonFiniteSample(t *testing.T) {
	sched, _ := newTestScheduler(nil, 3)
	scalars := counters.NewScalarRegistry(sched, nil)

	h, err := scalars.GetOrCreate(counters.Key{Category: "Internal", Counter: "CPU", Instance: "_Total", Interval: time.Second},
		func() (float64, error) { return math.NaN(), nil })
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	h.GetValue(false)
	sched.Tick()

	w := httptest.NewRecorder()
	NewDebugHandler(sched, scalars, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/counters", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if w.Body.Len() == 0 {
		t.Error("expected an error message in the body")
	}
}
