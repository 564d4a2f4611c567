package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aurora-io/perfcache/internal/config"
	"github.com/aurora-io/perfcache/internal/counters"
	"github.com/aurora-io/perfcache/internal/logging"
	"github.com/aurora-io/perfcache/internal/metrics"
	"github.com/aurora-io/perfcache/internal/probes"
)

// DaemonOptions contains the configuration for creating a daemon.
type DaemonOptions struct {
	Config     *config.Config
	Logger     *logging.Logger
	InstanceID string
	Version    string
	GitCommit  string
	BuildTime  string

	// Source backs the system probes. Defaults to the local host.
	Source probes.Source

	// Pinned names counters the daemon keeps reading itself, so they stay
	// fresh for scrapes. "all" pins every registered counter.
	Pinned []string
}

// Daemon runs the counter scheduler with the system probes and serves
// metrics, health and debug endpoints.
type Daemon struct {
	opts   DaemonOptions
	logger *logging.Logger

	sched         *counters.Scheduler
	scalars       *counters.Registry[float64]
	vectors       *counters.Registry[counters.Vector]
	promRegistry  *prometheus.Registry
	metricsServer *metrics.Server

	pinnedScalars []*counters.Handle[float64]
	pinnedVectors []*counters.Handle[counters.Vector]

	mu      sync.Mutex
	started bool
	ready   chan struct{}
	done    chan struct{}
}

// NewDaemon creates a daemon with every enabled probe registered but does
// not start it.
func NewDaemon(opts DaemonOptions) (*Daemon, error) {
	if opts.Config == nil {
		return nil, errors.New("daemon: config is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.DefaultLogger()
	}
	if opts.Source == nil {
		opts.Source = probes.NewHost()
	}

	d := &Daemon{
		opts:         opts,
		logger:       opts.Logger,
		promRegistry: prometheus.NewRegistry(),
		ready:        make(chan struct{}),
		done:         make(chan struct{}),
	}
	d.promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sm := metrics.NewSchedulerMetricsWithRegistry(d.promRegistry)
	d.sched = counters.NewScheduler(opts.Config.SchedulerConfig(),
		counters.WithLogger(d.logger.WithComponent("counter_scheduler")),
		counters.WithObserver(sm),
	)

	var err error
	d.scalars, d.vectors, err = newRegistries(d.sched, opts.Config, opts.Source)
	if err != nil {
		return nil, err
	}
	d.promRegistry.MustRegister(metrics.NewValueCollector(d.scalars))

	if err := d.pin(opts.Pinned, opts.Config.DefaultInterval()); err != nil {
		return nil, err
	}

	d.metricsServer = metrics.NewServerWithRegistry(opts.Config.Observability.MetricsAddr, d.promRegistry)
	d.metricsServer.RegisterHandler("/debug/counters", metrics.NewDebugHandler(d.sched, d.scalars, d.vectors))
	d.metricsServer.RegisterReadinessCheck(metrics.CheckFunc{
		CheckName: "probes",
		Fn:        d.checkProbes,
	})
	return d, nil
}

// newRegistries builds catalogs holding the enabled probes and registries
// over them that share sched.
func newRegistries(sched *counters.Scheduler, cfg *config.Config, src probes.Source) (*counters.Registry[float64], *counters.Registry[counters.Vector], error) {
	scalarCatalog := counters.NewCatalog[float64]()
	vectorCatalog := counters.NewCatalog[counters.Vector]()
	err := probes.RegisterAll(src, probes.Options{
		Enabled:          cfg.Probes.Enabled,
		NetworkInterface: cfg.Probes.NetworkInterface,
		DiskPath:         cfg.Probes.DiskPath,
	}, scalarCatalog, vectorCatalog)
	if err != nil {
		return nil, nil, fmt.Errorf("register probes: %w", err)
	}
	return counters.NewScalarRegistry(sched, scalarCatalog), counters.NewVectorRegistry(sched, vectorCatalog), nil
}

// pin resolves pinned counter names into handles.
func (d *Daemon) pin(names []string, interval time.Duration) error {
	if len(names) == 1 && names[0] == "all" {
		names = nil
		for _, n := range d.scalars.Catalog().Names() {
			names = append(names, n.String())
		}
		for _, n := range d.vectors.Catalog().Names() {
			names = append(names, n.String())
		}
	}

	for _, raw := range names {
		name, ok := counters.ParseName(raw)
		if !ok {
			return fmt.Errorf("pin %q: want category/counter/instance", raw)
		}
		if _, ok := d.vectors.Catalog().Lookup(name); ok {
			h, err := d.vectors.Counter(name, interval)
			if err != nil {
				return fmt.Errorf("pin %q: %w", raw, err)
			}
			d.pinnedVectors = append(d.pinnedVectors, h)
			continue
		}
		h, err := d.scalars.Counter(name, interval)
		if err != nil {
			return fmt.Errorf("pin %q: %w", raw, err)
		}
		d.pinnedScalars = append(d.pinnedScalars, h)
	}
	return nil
}

// Start starts the scheduler and the metrics server, then keeps pinned
// counters awake until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return fmt.Errorf("daemon already started")
	}
	d.started = true
	d.mu.Unlock()
	defer close(d.done)

	cfg := d.opts.Config
	d.logger.Infof("starting perfcached", map[string]any{
		"instanceId":  d.opts.InstanceID,
		"version":     d.opts.Version,
		"probes":      strings.Join(cfg.Probes.Enabled, ","),
		"metricsAddr": cfg.Observability.MetricsAddr,
		"pinned":      len(d.pinnedScalars) + len(d.pinnedVectors),
	})

	if err := d.metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	d.metricsServer.RegisterGoroutine("counter-scheduler")
	d.sched.Start(ctx)
	go func() {
		<-d.sched.Done()
		d.metricsServer.UnregisterGoroutine("counter-scheduler")
	}()
	close(d.ready)

	d.keepAlive(ctx, cfg.DefaultInterval())
	return nil
}

// Ready is closed once the metrics server is listening.
func (d *Daemon) Ready() <-chan struct{} {
	return d.ready
}

// MetricsAddr returns the bound metrics address. Valid after Ready.
func (d *Daemon) MetricsAddr() string {
	return d.metricsServer.Addr()
}

// keepAlive reads every pinned counter once per interval until ctx is done.
func (d *Daemon) keepAlive(ctx context.Context, interval time.Duration) {
	d.touchPinned()
	if len(d.pinnedScalars)+len(d.pinnedVectors) == 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.touchPinned()
		}
	}
}

func (d *Daemon) touchPinned() {
	for _, h := range d.pinnedScalars {
		h.GetValue(false)
	}
	for _, h := range d.pinnedVectors {
		h.GetValue(false)
	}
}

// checkProbes reports not ready while every handle that has been refreshed
// at least once is failing.
func (d *Daemon) checkProbes(context.Context) error {
	var refreshed, failing int
	for _, h := range d.scalars.Handles() {
		st := h.Stats()
		if st.Refreshes == 0 && st.Failures == 0 {
			continue
		}
		refreshed++
		if st.Refreshes == 0 {
			failing++
		}
	}
	if refreshed > 0 && failing == refreshed {
		return fmt.Errorf("all %d sampled counters are failing", failing)
	}
	return nil
}

// Shutdown stops the scheduler and the metrics server. The caller cancels
// the context passed to Start first.
func (d *Daemon) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	d.metricsServer.SetShuttingDown()

	select {
	case <-d.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	d.sched.Shutdown()
	d.logger.Info("counter scheduler stopped")

	if err := d.metricsServer.Close(); err != nil {
		return fmt.Errorf("failed to close metrics server: %w", err)
	}
	return nil
}
