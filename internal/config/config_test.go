package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/aurora-io/perfcache/internal/probes"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Scheduler.IdleTimeoutTicks != 3 {
		t.Errorf("expected default idle timeout 3 ticks, got %d", cfg.Scheduler.IdleTimeoutTicks)
	}
	if cfg.Scheduler.IdleWindowMs != 0 {
		t.Errorf("expected idle window off by default, got %d", cfg.Scheduler.IdleWindowMs)
	}
	if cfg.DefaultInterval() != time.Second {
		t.Errorf("expected default interval 1s, got %v", cfg.DefaultInterval())
	}
	if cfg.Observability.MetricsAddr != ":9090" {
		t.Errorf("expected default metrics addr :9090, got %s", cfg.Observability.MetricsAddr)
	}
	if !reflect.DeepEqual(cfg.Probes.Enabled, probes.Groups) {
		t.Errorf("expected every probe enabled by default, got %v", cfg.Probes.Enabled)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestDefaultConfig_DoesNotShareProbeList(t *testing.T) {
	a := Default()
	a.Probes.Enabled[0] = "gpu"
	if probes.Groups[0] != probes.CPU {
		t.Fatalf("mutating a config changed probes.Groups: %v", probes.Groups)
	}
}

func TestSchedulerConfig(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.IdleWindowMs = 3000
	cfg.Scheduler.MaxConcurrentBuckets = 2

	sc := cfg.SchedulerConfig()
	if sc.IdleTimeout != 3 {
		t.Errorf("IdleTimeout = %d, want 3", sc.IdleTimeout)
	}
	if sc.IdleWindow != 3*time.Second {
		t.Errorf("IdleWindow = %v, want 3s", sc.IdleWindow)
	}
	if sc.MaxConcurrentBuckets != 2 {
		t.Errorf("MaxConcurrentBuckets = %d, want 2", sc.MaxConcurrentBuckets)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"zero idle timeout", func(c *Config) { c.Scheduler.IdleTimeoutTicks = 0 }, "idleTimeoutTicks"},
		{"negative idle window", func(c *Config) { c.Scheduler.IdleWindowMs = -1 }, "idleWindowMs"},
		{"zero interval", func(c *Config) { c.Scheduler.DefaultIntervalMs = 0 }, "defaultIntervalMs"},
		{"zero buckets", func(c *Config) { c.Scheduler.MaxConcurrentBuckets = 0 }, "maxConcurrentBuckets"},
		{"unknown probe", func(c *Config) { c.Probes.Enabled = []string{"cpu", "gpu"} }, `unknown probe "gpu"`},
		{"bad log format", func(c *Config) { c.Observability.LogFormat = "xml" }, "logFormat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.IdleTimeoutTicks = 0
	cfg.Observability.LogFormat = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"idleTimeoutTicks", "logFormat"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error = %q, want it to mention %q", err, want)
		}
	}
}

func TestLoadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perfcache.yaml")
	data := `
scheduler:
  idleTimeoutTicks: 5
  idleWindowMs: 2000
probes:
  enabled: [cpu, memory]
  networkInterface: eth0
observability:
  logFormat: text
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Scheduler.IdleTimeoutTicks != 5 {
		t.Errorf("IdleTimeoutTicks = %d, want 5", cfg.Scheduler.IdleTimeoutTicks)
	}
	if cfg.Scheduler.IdleWindowMs != 2000 {
		t.Errorf("IdleWindowMs = %d, want 2000", cfg.Scheduler.IdleWindowMs)
	}
	if cfg.Scheduler.DefaultIntervalMs != 1000 {
		t.Errorf("DefaultIntervalMs = %d, want default 1000", cfg.Scheduler.DefaultIntervalMs)
	}
	if !reflect.DeepEqual(cfg.Probes.Enabled, []string{"cpu", "memory"}) {
		t.Errorf("Enabled = %v, want [cpu memory]", cfg.Probes.Enabled)
	}
	if cfg.Probes.NetworkInterface != "eth0" {
		t.Errorf("NetworkInterface = %q, want eth0", cfg.Probes.NetworkInterface)
	}
	if cfg.Probes.DiskPath != "/" {
		t.Errorf("DiskPath = %q, want default /", cfg.Probes.DiskPath)
	}
	if cfg.Observability.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want text", cfg.Observability.LogFormat)
	}
}

func TestLoadFromPath_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perfcache.yaml")
	if err := os.WriteFile(path, []byte("observability:\n  metricsAddr: \":9100\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PERFCACHE_METRICS_ADDR", "127.0.0.1:9200")

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Observability.MetricsAddr != "127.0.0.1:9200" {
		t.Errorf("MetricsAddr = %q, want env value", cfg.Observability.MetricsAddr)
	}
}

func TestLoadFromPath_Errors(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("scheduler: [not, a, map"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFromPath(bad); err == nil || !strings.Contains(err.Error(), "read config file") {
		t.Errorf("error = %v, want read error", err)
	}

	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("scheduler:\n  idleTimeoutTicks: -1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFromPath(invalid); err == nil || !strings.Contains(err.Error(), "validate config") {
		t.Errorf("error = %v, want validation error", err)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("PERFCACHE_IDLE_TIMEOUT_TICKS", "7")
	t.Setenv("PERFCACHE_PROBES", "cpu, disk,")
	t.Setenv("PERFCACHE_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Scheduler.IdleTimeoutTicks != 7 {
		t.Errorf("IdleTimeoutTicks = %d, want 7", cfg.Scheduler.IdleTimeoutTicks)
	}
	if !reflect.DeepEqual(cfg.Probes.Enabled, []string{"cpu", "disk"}) {
		t.Errorf("Enabled = %v, want [cpu disk]", cfg.Probes.Enabled)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.Observability.LogLevel)
	}
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("PERFCACHE_IDLE_WINDOW_MS", "soon")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for non-numeric env value")
	}
	if !strings.Contains(err.Error(), "decode config") {
		t.Errorf("error = %q, want a decode error", err)
	}
	if !strings.Contains(strings.ToLower(err.Error()), "idlewindowms") {
		t.Errorf("error = %q, want it to name the key", err)
	}
}

func TestLoadFromPath_EnvListOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perfcache.yaml")
	if err := os.WriteFile(path, []byte("probes:\n  enabled: [cpu, memory, network]\n  diskPath: /data\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PERFCACHE_PROBES", "disk")

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if !reflect.DeepEqual(cfg.Probes.Enabled, []string{"disk"}) {
		t.Errorf("Enabled = %v, want [disk]", cfg.Probes.Enabled)
	}
	if cfg.Probes.DiskPath != "/data" {
		t.Errorf("DiskPath = %q, want /data from the file", cfg.Probes.DiskPath)
	}
}

func TestMarshal_LoadsBack(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.IdleWindowMs = 1500
	cfg.Probes.Enabled = []string{"network"}
	cfg.Probes.NetworkInterface = "wlan0"
	cfg.Observability.LogFormat = "text"

	data, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "perfcache.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v\n%s", err, data)
	}
	if !reflect.DeepEqual(loaded, cfg) {
		t.Errorf("loaded config = %+v, want %+v", loaded, cfg)
	}
}
