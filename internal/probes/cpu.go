package probes

import (
	"sync"

	"github.com/aurora-io/perfcache/internal/counters"
)

// CPUProbe computes busy percentages from the delta of cumulative CPU times
// between calls.
type CPUProbe struct {
	src CPUSource

	mu        sync.Mutex
	lastTotal []CPUTimes
	lastCores []CPUTimes
}

// NewCPUProbe creates a CPU probe.
func NewCPUProbe(src CPUSource) *CPUProbe {
	return &CPUProbe{src: src}
}

// Total returns the machine-wide busy percentage since the previous call.
func (p *CPUProbe) Total() (float64, error) {
	ctx, cancel := withTimeout()
	defer cancel()
	cur, err := p.src.CPUTimes(ctx, false)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	pct := busyPercent(p.lastTotal, cur)
	p.lastTotal = cur
	if len(pct) == 0 {
		return 0, nil
	}
	return pct[0], nil
}

// PerCore returns the busy percentage of every core since the previous call.
func (p *CPUProbe) PerCore() (counters.Vector, error) {
	ctx, cancel := withTimeout()
	defer cancel()
	cur, err := p.src.CPUTimes(ctx, true)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	pct := busyPercent(p.lastCores, cur)
	p.lastCores = cur
	return counters.Vector(pct), nil
}

// busyPercent returns, per CPU, the share of elapsed time spent busy. CPUs
// without a previous sample or with no elapsed time report 0.
func busyPercent(prev, cur []CPUTimes) []float64 {
	out := make([]float64, len(cur))
	for i, c := range cur {
		if i >= len(prev) {
			continue
		}
		total := c.Total - prev[i].Total
		busy := c.Busy - prev[i].Busy
		if total <= 0 || busy < 0 {
			continue
		}
		out[i] = clampPercent(busy / total * 100)
	}
	return out
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
