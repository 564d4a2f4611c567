// Package counters implements a pull-based cache for expensive-to-sample
// system counters.
//
// # Model
//
// A consumer resolves a [Handle] once through a [Registry] and then reads it
// every frame with [Handle.GetValue]. Reading never calls the provider: a
// single [Scheduler] goroutine samples every handle in the background and
// swaps in a new immutable [Sample]. Handles that share a refresh interval are
// grouped into one bucket, and all buckets are driven by one timer.
//
// # Idle suspension
//
// Every read resets the handle's idle countdown. Each refresh decrements it,
// and once it reaches zero the handle goes dormant and is skipped until the
// next read. When no handle anywhere is active the timer is stopped; the next
// read of a dormant handle sends the wake signal that restarts it.
//
//	Dormant --GetValue--> Waking --enrolled--> Active --idle expiry--> Dormant
//
// # Easing
//
// Operating system counters update in coarse steps (often once a second)
// while renderers read far more often. GetValue(true) interpolates linearly
// between the previous and current sample over one interval, see [Ease].
//
// # Usage
//
//	sched := counters.NewScheduler(counters.DefaultSchedulerConfig())
//	sched.Start(ctx)
//	defer sched.Shutdown()
//
//	reg := counters.NewScalarRegistry(sched, nil)
//	h, err := reg.GetOrCreate(counters.Key{
//	    Category: "Internal",
//	    Counter:  "CPU",
//	    Instance: "% Usage",
//	    Interval: time.Second,
//	}, cpuPercent)
//
//	// once per frame
//	v := h.GetValue(true)
package counters
