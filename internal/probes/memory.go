package probes

import "github.com/aurora-io/perfcache/internal/counters"

const mib = 1 << 20

// Memory counter instances.
const (
	AvailablePhysicalMemoryInMiB = "AvailablePhysicalMemoryInMiB"
	AvailableVirtualMemoryInMiB  = "AvailableVirtualMemoryInMiB"
	TotalPhysicalMemoryInMiB     = "TotalPhysicalMemoryInMiB"
	TotalVirtualMemoryInMiB      = "TotalVirtualMemoryInMiB"
	PhysicalMemoryUsedPercent    = "% PhysicalMemoryUsed"
	VirtualMemoryUsedPercent     = "% VirtualMemoryUsed"
)

var memoryInstances = []string{
	AvailablePhysicalMemoryInMiB,
	AvailableVirtualMemoryInMiB,
	TotalPhysicalMemoryInMiB,
	TotalVirtualMemoryInMiB,
	PhysicalMemoryUsedPercent,
	VirtualMemoryUsedPercent,
}

// MemoryProbe reports physical and virtual memory.
type MemoryProbe struct {
	src MemorySource
}

// NewMemoryProbe creates a memory probe.
func NewMemoryProbe(src MemorySource) *MemoryProbe {
	return &MemoryProbe{src: src}
}

// Provider returns the provider for one ComputerInfo instance.
func (p *MemoryProbe) Provider(instance string) counters.Provider[float64] {
	return func() (float64, error) {
		ctx, cancel := withTimeout()
		defer cancel()
		st, err := p.src.Memory(ctx)
		if err != nil {
			return 0, err
		}
		return memoryValue(st, instance), nil
	}
}

func memoryValue(st MemoryStat, instance string) float64 {
	switch instance {
	case AvailablePhysicalMemoryInMiB:
		return float64(st.AvailablePhysical) / mib
	case AvailableVirtualMemoryInMiB:
		return float64(st.AvailableVirtual) / mib
	case TotalPhysicalMemoryInMiB:
		return float64(st.TotalPhysical) / mib
	case TotalVirtualMemoryInMiB:
		return float64(st.TotalVirtual) / mib
	case PhysicalMemoryUsedPercent:
		return usedPercent(st.TotalPhysical, st.AvailablePhysical)
	case VirtualMemoryUsedPercent:
		return usedPercent(st.TotalVirtual, st.AvailableVirtual)
	}
	return 0
}

func usedPercent(total, available uint64) float64 {
	if total == 0 || available > total {
		return 0
	}
	return float64(total-available) * 100 / float64(total)
}
