// Package config provides configuration loading and validation for perfcached.
// Supports YAML files with environment variable overrides, both read through viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aurora-io/perfcache/internal/counters"
	"github.com/aurora-io/perfcache/internal/probes"
)

// Config holds all configuration for a perfcached process.
type Config struct {
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Probes        ProbesConfig        `yaml:"probes"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type SchedulerConfig struct {
	IdleTimeoutTicks     int   `yaml:"idleTimeoutTicks"`
	IdleWindowMs         int64 `yaml:"idleWindowMs"`
	DefaultIntervalMs    int64 `yaml:"defaultIntervalMs"`
	MaxConcurrentBuckets int   `yaml:"maxConcurrentBuckets"`
}

type ProbesConfig struct {
	Enabled          []string `yaml:"enabled"`
	NetworkInterface string   `yaml:"networkInterface"`
	DiskPath         string   `yaml:"diskPath"`
}

type ObservabilityConfig struct {
	MetricsAddr string `yaml:"metricsAddr"`
	LogLevel    string `yaml:"logLevel"`
	LogFormat   string `yaml:"logFormat"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			IdleTimeoutTicks:     counters.DefaultIdleTimeout,
			DefaultIntervalMs:    1000,
			MaxConcurrentBuckets: counters.DefaultMaxConcurrentBuckets,
		},
		Probes: ProbesConfig{
			Enabled:  append([]string(nil), probes.Groups...),
			DiskPath: "/",
		},
		Observability: ObservabilityConfig{
			MetricsAddr: ":9090",
			LogLevel:    "info",
			LogFormat:   "json",
		},
	}
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Scheduler.IdleTimeoutTicks <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.idleTimeoutTicks must be positive, got %d", c.Scheduler.IdleTimeoutTicks))
	}
	if c.Scheduler.IdleWindowMs < 0 {
		errs = append(errs, fmt.Errorf("scheduler.idleWindowMs must not be negative, got %d", c.Scheduler.IdleWindowMs))
	}
	if c.Scheduler.DefaultIntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.defaultIntervalMs must be positive, got %d", c.Scheduler.DefaultIntervalMs))
	}
	if c.Scheduler.MaxConcurrentBuckets <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.maxConcurrentBuckets must be positive, got %d", c.Scheduler.MaxConcurrentBuckets))
	}
	for _, p := range c.Probes.Enabled {
		if !isKnownProbe(p) {
			errs = append(errs, fmt.Errorf("probes.enabled: unknown probe %q (known: %s)", p, strings.Join(probes.Groups, ", ")))
		}
	}
	switch c.Observability.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("observability.logFormat must be json or text, got %q", c.Observability.LogFormat))
	}
	return errors.Join(errs...)
}

// DefaultInterval returns the refresh interval used when a caller does not
// pick one.
func (c *Config) DefaultInterval() time.Duration {
	return time.Duration(c.Scheduler.DefaultIntervalMs) * time.Millisecond
}

// SchedulerConfig converts the scheduler section for counters.NewScheduler.
func (c *Config) SchedulerConfig() counters.SchedulerConfig {
	return counters.SchedulerConfig{
		IdleTimeout:          c.Scheduler.IdleTimeoutTicks,
		IdleWindow:           time.Duration(c.Scheduler.IdleWindowMs) * time.Millisecond,
		MaxConcurrentBuckets: c.Scheduler.MaxConcurrentBuckets,
	}
}

func isKnownProbe(name string) bool {
	for _, p := range probes.Groups {
		if p == name {
			return true
		}
	}
	return false
}
