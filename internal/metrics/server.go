package metrics

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/pprof"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aurora-io/perfcache/internal/logging"
)

// ReadinessChecker is implemented by components that take part in /readyz.
type ReadinessChecker interface {
	// Name returns the name of the component for display in health status.
	Name() string

	// CheckReady returns nil if the component is ready.
	CheckReady(ctx context.Context) error
}

// CheckFunc adapts a function to ReadinessChecker.
type CheckFunc struct {
	CheckName string
	Fn        func(ctx context.Context) error
}

// Name implements ReadinessChecker.
func (c CheckFunc) Name() string { return c.CheckName }

// CheckReady implements ReadinessChecker.
func (c CheckFunc) CheckReady(ctx context.Context) error { return c.Fn(ctx) }

// HealthStatus is the /healthz and /readyz response body.
type HealthStatus struct {
	Status     string                 `json:"status"`
	Goroutines map[string]bool        `json:"goroutines,omitempty"`
	Checks     map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the result of a single health check.
type CheckResult struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// DefaultReadinessTimeout bounds each readiness check.
const DefaultReadinessTimeout = 5 * time.Second

// Server provides the observability HTTP endpoints: /metrics for Prometheus
// scraping, /healthz and /readyz for probes, pprof, and any extra handlers
// registered before Start (such as /debug/counters).
type Server struct {
	mu               sync.RWMutex
	addr             string
	boundAddr        string
	server           *http.Server
	registry         prometheus.Gatherer
	logger           *logging.Logger
	shutDown         atomic.Bool
	goroutines       map[string]bool
	readinessChecks  []ReadinessChecker
	readinessTimeout time.Duration
	extraHandlers    map[string]http.Handler
}

// NewServer creates a new metrics server that listens on the given address.
// Use addr ":9090" for the default metrics port.
// Uses the default Prometheus registry.
func NewServer(addr string) *Server {
	return NewServerWithRegistry(addr, nil)
}

// NewServerWithRegistry creates a new metrics server with a custom registry.
// Useful for testing to avoid conflicts with the default registry.
func NewServerWithRegistry(addr string, gatherer prometheus.Gatherer) *Server {
	return &Server{
		addr:             addr,
		registry:         gatherer,
		logger:           logging.Global().WithComponent("metrics_server"),
		goroutines:       make(map[string]bool),
		readinessTimeout: DefaultReadinessTimeout,
		extraHandlers:    make(map[string]http.Handler),
	}
}

// RegisterHandler mounts an extra handler. Call before Start.
func (s *Server) RegisterHandler(pattern string, handler http.Handler) {
	if pattern == "" || handler == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extraHandlers[pattern] = handler
}

// RegisterReadinessCheck adds a component to /readyz.
func (s *Server) RegisterReadinessCheck(checker ReadinessChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readinessChecks = append(s.readinessChecks, checker)
}

// SetReadinessTimeout sets the timeout for individual readiness checks.
func (s *Server) SetReadinessTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readinessTimeout = d
}

// RegisterGoroutine marks a critical goroutine as running.
func (s *Server) RegisterGoroutine(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goroutines[name] = true
}

// UnregisterGoroutine marks a critical goroutine as stopped, which degrades
// /healthz.
func (s *Server) UnregisterGoroutine(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.goroutines[name]; ok {
		s.goroutines[name] = false
	}
}

// SetShuttingDown makes /healthz and /readyz return 503.
func (s *Server) SetShuttingDown() {
	s.shutDown.Store(true)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	if s.registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	} else {
		mux.Handle("/metrics", promhttp.Handler())
	}
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)

	s.mu.RLock()
	for pattern, handler := range s.extraHandlers {
		mux.Handle(pattern, handler)
	}
	s.mu.RUnlock()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.boundAddr = ln.Addr().String()
	s.mu.Unlock()

	s.logger.Infof("metrics server listening", map[string]any{"addr": ln.Addr().String()})

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("metrics server error", map[string]any{"error": err.Error()})
		}
	}()

	return nil
}

// Addr returns the actual bound address of the server.
// Returns the configured address if the server hasn't started yet.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.boundAddr != "" {
		return s.boundAddr
	}
	return s.addr
}

// Close shuts down the server.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// CheckHealth returns the liveness status without an HTTP round trip.
func (s *Server) CheckHealth() HealthStatus {
	status := HealthStatus{
		Status:     "ok",
		Goroutines: make(map[string]bool),
		Checks:     make(map[string]CheckResult),
	}
	if s.shutDown.Load() {
		status.Status = "shutting_down"
		status.Checks["shutdown"] = CheckResult{Healthy: false, Message: "daemon is shutting down"}
		return status
	}
	status.Checks["shutdown"] = CheckResult{Healthy: true, Message: "daemon is running"}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var stopped []string
	for name, running := range s.goroutines {
		status.Goroutines[name] = running
		if !running {
			stopped = append(stopped, name)
		}
	}
	if len(stopped) > 0 {
		sort.Strings(stopped)
		status.Status = "degraded"
		status.Checks["goroutines"] = CheckResult{
			Healthy: false,
			Message: "stopped: " + strings.Join(stopped, ", "),
		}
	} else if len(s.goroutines) > 0 {
		status.Checks["goroutines"] = CheckResult{Healthy: true, Message: "all critical goroutines are running"}
	}
	return status
}

// CheckReadiness runs every readiness check without an HTTP round trip.
func (s *Server) CheckReadiness(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status: "ok",
		Checks: make(map[string]CheckResult),
	}
	if s.shutDown.Load() {
		status.Status = "shutting_down"
		status.Checks["shutdown"] = CheckResult{Healthy: false, Message: "daemon is shutting down"}
		return status
	}

	s.mu.RLock()
	checks := make([]ReadinessChecker, len(s.readinessChecks))
	copy(checks, s.readinessChecks)
	timeout := s.readinessTimeout
	s.mu.RUnlock()

	for _, checker := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		err := checker.CheckReady(checkCtx)
		cancel()

		if err != nil {
			status.Status = "not_ready"
			status.Checks[checker.Name()] = CheckResult{Healthy: false, Message: err.Error()}
			continue
		}
		status.Checks[checker.Name()] = CheckResult{Healthy: true, Message: "healthy"}
	}
	return status
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeStatus(w, r, s.CheckHealth())
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeStatus(w, r, s.CheckReadiness(r.Context()))
}

func writeStatus(w http.ResponseWriter, r *http.Request, status HealthStatus) {
	w.Header().Set("Content-Type", "application/json")
	if status.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(status)
	}
}

