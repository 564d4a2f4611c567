package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/aurora-io/perfcache/internal/config"
	"github.com/aurora-io/perfcache/internal/counters"
	"github.com/aurora-io/perfcache/internal/logging"
	"github.com/aurora-io/perfcache/internal/probes"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

const defaultWatchCounters = "Internal/CPU/_Total,Internal/CPU/PerCore," +
	"Internal/ComputerInfo/% PhysicalMemoryUsed,Internal/Default Network/% Network Total Usage"

func main() {
	// Handle version flag before subcommand parsing
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-version") {
		fmt.Printf("perfcached version %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	subcommand := os.Args[1]
	switch subcommand {
	case "serve":
		runServe(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	case "list":
		runList(os.Args[2:])
	case "config":
		runConfig(os.Args[2:])
	case "version":
		fmt.Printf("perfcached version %s (built %s, commit %s)\n", version, buildTime, gitCommit)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: perfcached <command> [options]

Commands:
  serve       Run the counter cache and serve metrics, health and debug endpoints
  watch       Render live counter bars in the terminal
  list        List the available counters
  config      Print the effective configuration as YAML
  version     Print version information

Run 'perfcached <command> --help' for more information on a command.`)
}

// loadConfig loads path, or defaults plus environment when path is empty.
func loadConfig(path string) *config.Config {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFromPath(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	metricsAddr := fs.String("metrics-addr", "", "Override metrics endpoint address (e.g., :9090)")
	instanceID := fs.String("instance-id", "", "Override instance ID (default: auto-generated UUID)")
	pin := fs.String("pin", "", `Comma-separated counters to keep refreshed, or "all"`)

	fs.Usage = func() {
		fmt.Println(`Usage: perfcached serve [options]

Run the counter scheduler with the system probes. Counters are sampled only
while something reads them; pinned counters are read by the daemon itself so
they stay fresh on /metrics.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	if *metricsAddr != "" {
		cfg.Observability.MetricsAddr = *metricsAddr
	}
	if *instanceID == "" {
		*instanceID = uuid.New().String()
	}

	logger := logging.Configure(cfg.Observability.LogLevel, cfg.Observability.LogFormat).WithInstance(*instanceID)
	logging.SetGlobal(logger)

	daemon, err := NewDaemon(DaemonOptions{
		Config:     cfg,
		Logger:     logger,
		InstanceID: *instanceID,
		Version:    version,
		GitCommit:  gitCommit,
		BuildTime:  buildTime,
		Pinned:     splitList(*pin),
	})
	if err != nil {
		logger.Errorf("failed to create daemon", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(logging.WithLoggerCtx(context.Background(), logger))
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- daemon.Start(ctx)
	}()

	select {
	case sig := <-sigCh:
		logger.Infof("received shutdown signal", map[string]any{"signal": sig.String()})
	case err := <-errCh:
		if err != nil {
			logger.Errorf("daemon error", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
	}

	logger.Info("initiating graceful shutdown")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := daemon.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	logger.Info("perfcached shutdown complete")
}

func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	names := fs.String("counters", defaultWatchCounters, "Comma-separated counters to display")
	interval := fs.Duration("interval", 0, "Refresh interval (default: scheduler.defaultIntervalMs)")
	fps := fs.Int("fps", 20, "Frames per second")
	frames := fs.Int("frames", 0, "Stop after this many frames (0: until interrupted)")
	easing := fs.Bool("easing", true, "Interpolate between samples")
	lo := fs.Float64("min", 0, "Value drawn as an empty bar")
	hi := fs.Float64("max", 100, "Value drawn as a full bar")
	noClear := fs.Bool("no-clear", false, "Do not clear the screen between frames")

	fs.Usage = func() {
		fmt.Println(`Usage: perfcached watch [options]

Read counters every frame and draw them as bars. Counters refresh on their own
interval; with easing the bars move smoothly between refreshes.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	logger := logging.Configure(cfg.Observability.LogLevel, cfg.Observability.LogFormat).
		WithInstance(uuid.New().String())
	logging.SetGlobal(logger)

	if *interval <= 0 {
		*interval = cfg.DefaultInterval()
	}

	sched := counters.NewScheduler(cfg.SchedulerConfig(),
		counters.WithLogger(logger.WithComponent("counter_scheduler")))
	scalars, vectors, err := newRegistries(sched, cfg, probes.NewHost())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	w, err := newWatcher(splitList(*names), *interval, *lo, *hi, *easing, scalars, vectors)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(logging.WithLoggerCtx(context.Background(), logger), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched.Start(ctx)
	defer sched.Shutdown()

	w.run(ctx, os.Stdout, *fps, *frames, !*noClear)
}

func runList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")

	fs.Usage = func() {
		fmt.Println(`Usage: perfcached list [options]

List every counter registered by the enabled probes.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	logging.Configure(cfg.Observability.LogLevel, cfg.Observability.LogFormat)

	sched := counters.NewScheduler(cfg.SchedulerConfig())
	scalars, vectors, err := newRegistries(sched, cfg, probes.NewHost())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	printCounters(os.Stdout, scalars.Catalog(), vectors.Catalog())
}

func runConfig(args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")

	fs.Usage = func() {
		fmt.Println(`Usage: perfcached config [options]

Print the configuration after defaults, file and environment are applied.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	data, err := loadConfig(*configPath).Marshal()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to render config: %v\n", err)
		os.Exit(1)
	}
	_, _ = os.Stdout.Write(data)
}

func printCounters(out io.Writer, scalars *counters.Catalog[float64], vectors *counters.Catalog[counters.Vector]) {
	for _, n := range scalars.Names() {
		fmt.Fprintf(out, "scalar  %s\n", n)
	}
	for _, n := range vectors.Names() {
		fmt.Fprintf(out, "vector  %s\n", n)
	}
}
