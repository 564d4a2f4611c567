package probes

import (
	"fmt"

	"github.com/aurora-io/perfcache/internal/counters"
)

// Counter names.
const (
	CounterCPU     = "CPU"
	CounterMemory  = "ComputerInfo"
	CounterNetwork = "Default Network"
	CounterDisk    = "System Disk"

	InstanceTotal   = "_Total"
	InstancePerCore = "PerCore"
	InstanceUsage   = "% Usage"
)

// Names of the probe groups accepted by Options.Enabled.
const (
	CPU     = "cpu"
	Memory  = "memory"
	Network = "network"
	Disk    = "disk"
)

// Groups lists every probe group in registration order.
var Groups = []string{CPU, Memory, Network, Disk}

// Options selects and configures probes.
type Options struct {
	// Enabled lists probe groups to register. Empty registers none.
	Enabled []string
	// NetworkInterface pins the network probe to one interface.
	NetworkInterface string
	// DiskPath is the mount point measured by the disk probe.
	DiskPath string
}

// RegisterAll registers the enabled probes into the catalogs. Registration
// is last-wins, so probes replace any provider already registered under the
// same name.
func RegisterAll(src Source, opts Options, scalars *counters.Catalog[float64], vectors *counters.Catalog[counters.Vector]) error {
	for _, group := range opts.Enabled {
		var err error
		switch group {
		case CPU:
			p := NewCPUProbe(src)
			err = scalars.Register(name(CounterCPU, InstanceTotal), p.Total)
			if err == nil {
				err = vectors.Register(name(CounterCPU, InstancePerCore), p.PerCore)
			}
		case Memory:
			p := NewMemoryProbe(src)
			for _, inst := range memoryInstances {
				if err = scalars.Register(name(CounterMemory, inst), p.Provider(inst)); err != nil {
					break
				}
			}
		case Network:
			p := NewNetworkProbe(src, opts.NetworkInterface)
			for _, inst := range networkInstances {
				if err = scalars.Register(name(CounterNetwork, inst), p.Provider(inst)); err != nil {
					break
				}
			}
		case Disk:
			p := NewDiskProbe(src, opts.DiskPath)
			err = scalars.Register(name(CounterDisk, InstanceUsage), p.UsedPercent)
		default:
			err = fmt.Errorf("probes: unknown probe %q", group)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func name(counter, instance string) counters.Name {
	return counters.Name{Category: Category, Counter: counter, Instance: instance}
}
