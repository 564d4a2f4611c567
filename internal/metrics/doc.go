// Package metrics exposes the counter cache to Prometheus and to operators.
//
// It provides:
//   - SchedulerMetrics, which implements counters.Observer and records tick
//     counts and durations, provider failures by counter, wakeups, handles
//     going dormant, and whether the scheduler timer is asleep
//   - ValueCollector, which exports the cached sample of every scalar handle
//     as perfcache_counter_value without counting as a read
//   - DebugHandler, a JSON view of every handle and scheduler bucket
//   - Server, which serves /metrics, /healthz, /readyz, pprof and any extra
//     handlers such as /debug/counters
//
// Usage:
//
//	reg := prometheus.NewRegistry()
//	sm := metrics.NewSchedulerMetricsWithRegistry(reg)
//	sched := counters.NewScheduler(cfg, counters.WithObserver(sm))
//	scalars := counters.NewScalarRegistry(sched, catalog)
//	reg.MustRegister(metrics.NewValueCollector(scalars))
//
//	srv := metrics.NewServerWithRegistry(":9090", reg)
//	srv.RegisterHandler("/debug/counters", metrics.NewDebugHandler(sched, scalars, nil))
//	srv.Start()
package metrics
