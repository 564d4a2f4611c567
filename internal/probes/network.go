package probes

import (
	"sync"
	"time"

	"github.com/aurora-io/perfcache/internal/counters"
)

// Network counter instances.
const (
	BytesReceivedPerSec = "Bytes Received/sec"
	BytesSentPerSec     = "Bytes Sent/sec"
	BytesTotalPerSec    = "Bytes Total/sec"
	CurrentBandwidth    = "Current Bandwidth"
	NetworkUsagePercent = "% Network Total Usage"
)

var networkInstances = []string{
	BytesReceivedPerSec,
	BytesSentPerSec,
	BytesTotalPerSec,
	CurrentBandwidth,
	NetworkUsagePercent,
}

// NetworkProbe reports traffic on one interface. The interface is either
// fixed at construction or resolved on first use and then cached.
type NetworkProbe struct {
	src NetworkSource
	now func() time.Time

	mu    sync.Mutex
	iface string
	fixed bool
}

// NewNetworkProbe creates a network probe. An empty iface selects the
// default interface.
func NewNetworkProbe(src NetworkSource, iface string) *NetworkProbe {
	return &NetworkProbe{src: src, now: time.Now, iface: iface, fixed: iface != ""}
}

// Interface returns the interface being measured, resolving it if needed.
func (p *NetworkProbe) Interface() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.iface != "" {
		return p.iface, nil
	}
	ctx, cancel := withTimeout()
	defer cancel()
	name, err := p.src.DefaultInterface(ctx)
	if err != nil {
		return "", err
	}
	p.iface = name
	return name, nil
}

// Provider returns the provider for one Default Network instance. Each
// provider keeps its own previous reading; rates cover the time since that
// provider last ran.
func (p *NetworkProbe) Provider(instance string) counters.Provider[float64] {
	if instance == CurrentBandwidth {
		return p.bandwidth
	}
	r := &rateTracker{}
	return func() (float64, error) {
		iface, err := p.Interface()
		if err != nil {
			return 0, err
		}
		ctx, cancel := withTimeout()
		defer cancel()
		cur, err := p.src.NetCounters(ctx, iface)
		if err != nil {
			p.forget(iface)
			return 0, err
		}
		recv, sent := r.rates(cur, p.now())

		switch instance {
		case BytesReceivedPerSec:
			return recv, nil
		case BytesSentPerSec:
			return sent, nil
		case BytesTotalPerSec:
			return recv + sent, nil
		case NetworkUsagePercent:
			bw, err := p.src.Bandwidth(ctx, iface)
			if err != nil || bw <= 0 {
				return 0, err
			}
			return clampPercent((recv + sent) * 8 / bw * 100), nil
		}
		return 0, nil
	}
}

func (p *NetworkProbe) bandwidth() (float64, error) {
	iface, err := p.Interface()
	if err != nil {
		return 0, err
	}
	ctx, cancel := withTimeout()
	defer cancel()
	return p.src.Bandwidth(ctx, iface)
}

// forget drops a resolved default interface that disappeared, so the next
// call resolves it again.
func (p *NetworkProbe) forget(iface string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.fixed && p.iface == iface {
		p.iface = ""
	}
}

// rateTracker turns cumulative byte counters into per-second rates.
type rateTracker struct {
	mu   sync.Mutex
	prev NetCounters
	at   time.Time
}

func (r *rateTracker) rates(cur NetCounters, now time.Time) (recv, sent float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.at.IsZero() {
		if secs := now.Sub(r.at).Seconds(); secs > 0 {
			recv = delta(r.prev.BytesRecv, cur.BytesRecv) / secs
			sent = delta(r.prev.BytesSent, cur.BytesSent) / secs
		}
	}
	r.prev, r.at = cur, now
	return recv, sent
}

// delta treats a counter that went backwards as reset.
func delta(prev, cur uint64) float64 {
	if cur < prev {
		return 0
	}
	return float64(cur - prev)
}
