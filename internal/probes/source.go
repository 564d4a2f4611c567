package probes

import (
	"context"
	"errors"
	"fmt"
	stdnet "net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

// Category is the catalog category every probe registers under.
const Category = "Internal"

// probeTimeout bounds a single gopsutil call.
const probeTimeout = 2 * time.Second

var (
	// ErrNoInterface is returned when no default network interface can be found.
	ErrNoInterface = errors.New("probes: no default network interface")
	// ErrInterfaceNotFound is returned when the configured interface has no counters.
	ErrInterfaceNotFound = errors.New("probes: network interface not found")
)

// CPUTimes is the cumulative time a CPU spent busy and in total.
type CPUTimes struct {
	Busy  float64
	Total float64
}

// MemoryStat is a snapshot of physical and virtual memory in bytes. Virtual
// memory is physical memory plus swap.
type MemoryStat struct {
	TotalPhysical     uint64
	AvailablePhysical uint64
	TotalVirtual      uint64
	AvailableVirtual  uint64
}

// NetCounters are cumulative byte counters of one interface.
type NetCounters struct {
	BytesRecv uint64
	BytesSent uint64
}

// CPUSource reports cumulative CPU times, either for the whole machine or per core.
type CPUSource interface {
	CPUTimes(ctx context.Context, perCore bool) ([]CPUTimes, error)
}

// MemorySource reports memory usage.
type MemorySource interface {
	Memory(ctx context.Context) (MemoryStat, error)
}

// NetworkSource reports interface counters and link speed.
type NetworkSource interface {
	DefaultInterface(ctx context.Context) (string, error)
	NetCounters(ctx context.Context, iface string) (NetCounters, error)
	// Bandwidth returns the link speed in bits per second, or 0 if unknown.
	Bandwidth(ctx context.Context, iface string) (float64, error)
}

// DiskSource reports filesystem usage.
type DiskSource interface {
	UsedPercent(ctx context.Context, path string) (float64, error)
}

// Source is everything the probes read.
type Source interface {
	CPUSource
	MemorySource
	NetworkSource
	DiskSource
}

var _ Source = (*Host)(nil)

// Host reads the local machine through gopsutil.
type Host struct {
	// SysClassNet is the sysfs directory holding link speeds. Defaults to
	// /sys/class/net.
	SysClassNet string
}

// NewHost creates a Source for the local machine.
func NewHost() *Host {
	return &Host{SysClassNet: "/sys/class/net"}
}

// CPUTimes implements CPUSource.
func (h *Host) CPUTimes(ctx context.Context, perCore bool) ([]CPUTimes, error) {
	stats, err := cpu.TimesWithContext(ctx, perCore)
	if err != nil {
		return nil, fmt.Errorf("cpu times: %w", err)
	}
	out := make([]CPUTimes, len(stats))
	for i, s := range stats {
		idle := s.Idle + s.Iowait
		busy := s.User + s.System + s.Nice + s.Irq + s.Softirq + s.Steal
		out[i] = CPUTimes{Busy: busy, Total: busy + idle}
	}
	return out, nil
}

// Memory implements MemorySource.
func (h *Host) Memory(ctx context.Context) (MemoryStat, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemoryStat{}, fmt.Errorf("virtual memory: %w", err)
	}
	st := MemoryStat{
		TotalPhysical:     vm.Total,
		AvailablePhysical: vm.Available,
		TotalVirtual:      vm.Total,
		AvailableVirtual:  vm.Available,
	}
	// Machines without swap still report physical memory.
	if swap, err := mem.SwapMemoryWithContext(ctx); err == nil {
		st.TotalVirtual += swap.Total
		st.AvailableVirtual += swap.Free
	}
	return st, nil
}

// DefaultInterface implements NetworkSource. It picks the interface owning
// the local address of an outbound UDP socket, falling back to the first
// interface that is up and not loopback.
func (h *Host) DefaultInterface(ctx context.Context) (string, error) {
	ifaces, err := net.InterfacesWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("list interfaces: %w", err)
	}

	if local := outboundAddr(); local != "" {
		for _, iface := range ifaces {
			for _, a := range iface.Addrs {
				if strings.SplitN(a.Addr, "/", 2)[0] == local {
					return iface.Name, nil
				}
			}
		}
	}
	for _, iface := range ifaces {
		if hasFlag(iface.Flags, "up") && !hasFlag(iface.Flags, "loopback") {
			return iface.Name, nil
		}
	}
	return "", ErrNoInterface
}

// NetCounters implements NetworkSource.
func (h *Host) NetCounters(ctx context.Context, iface string) (NetCounters, error) {
	stats, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		return NetCounters{}, fmt.Errorf("io counters: %w", err)
	}
	for _, s := range stats {
		if s.Name == iface {
			return NetCounters{BytesRecv: s.BytesRecv, BytesSent: s.BytesSent}, nil
		}
	}
	return NetCounters{}, fmt.Errorf("%w: %s", ErrInterfaceNotFound, iface)
}

// Bandwidth implements NetworkSource from the sysfs link speed in Mbit/s.
// Virtual and wireless links often report -1 or nothing, which maps to 0.
func (h *Host) Bandwidth(_ context.Context, iface string) (float64, error) {
	data, err := os.ReadFile(filepath.Join(h.SysClassNet, iface, "speed"))
	if err != nil {
		return 0, nil
	}
	mbps, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil || mbps <= 0 {
		return 0, nil
	}
	return mbps * 1e6, nil
}

// UsedPercent implements DiskSource.
func (h *Host) UsedPercent(ctx context.Context, path string) (float64, error) {
	u, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("disk usage %s: %w", path, err)
	}
	return u.UsedPercent, nil
}

func outboundAddr() string {
	conn, err := stdnet.Dial("udp", "192.0.2.1:9")
	if err != nil {
		return ""
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*stdnet.UDPAddr); ok {
		return addr.IP.String()
	}
	return ""
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}

func withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), probeTimeout)
}
