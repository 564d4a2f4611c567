package probes

import (
	"context"
	"errors"
	"sync"
)

var errUnavailable = errors.New("counter unavailable")

// fakeSource serves canned readings. Slices are consumed one per call and
// the last entry repeats.
type fakeSource struct {
	mu sync.Mutex

	total     [][]CPUTimes
	cores     [][]CPUTimes
	memory    MemoryStat
	memErr    error
	iface     string
	ifaceErr  error
	ifaceHits int
	net       NetCounters
	netErr    error
	bandwidth float64
	disk      map[string]float64
}

func next[T any](seq *[]T) T {
	var zero T
	if len(*seq) == 0 {
		return zero
	}
	v := (*seq)[0]
	if len(*seq) > 1 {
		*seq = (*seq)[1:]
	}
	return v
}

func (f *fakeSource) CPUTimes(_ context.Context, perCore bool) ([]CPUTimes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if perCore {
		return next(&f.cores), nil
	}
	return next(&f.total), nil
}

func (f *fakeSource) Memory(context.Context) (MemoryStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.memory, f.memErr
}

func (f *fakeSource) DefaultInterface(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ifaceHits++
	return f.iface, f.ifaceErr
}

func (f *fakeSource) NetCounters(context.Context, string) (NetCounters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.netErr != nil {
		return NetCounters{}, f.netErr
	}
	return f.net, nil
}

func (f *fakeSource) setNet(c NetCounters) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.net = c
}

func (f *fakeSource) Bandwidth(context.Context, string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bandwidth, nil
}

func (f *fakeSource) UsedPercent(_ context.Context, path string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.disk[path]
	if !ok {
		return 0, errUnavailable
	}
	return v, nil
}
