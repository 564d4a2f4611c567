package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"scheduler.idleTimeoutTicks":     "PERFCACHE_IDLE_TIMEOUT_TICKS",
	"scheduler.idleWindowMs":         "PERFCACHE_IDLE_WINDOW_MS",
	"scheduler.defaultIntervalMs":    "PERFCACHE_DEFAULT_INTERVAL_MS",
	"scheduler.maxConcurrentBuckets": "PERFCACHE_MAX_CONCURRENT_BUCKETS",
	"probes.enabled":                 "PERFCACHE_PROBES",
	"probes.networkInterface":        "PERFCACHE_NETWORK_INTERFACE",
	"probes.diskPath":                "PERFCACHE_DISK_PATH",
	"observability.metricsAddr":      "PERFCACHE_METRICS_ADDR",
	"observability.logLevel":         "PERFCACHE_LOG_LEVEL",
	"observability.logFormat":        "PERFCACHE_LOG_FORMAT",
}

// Load returns the defaults with environment overrides applied.
func Load() (*Config, error) {
	return load("")
}

// LoadFromPath reads a YAML file over the defaults, then applies environment
// overrides. Keys missing from the file keep their default values.
func LoadFromPath(path string) (*Config, error) {
	return load(path)
}

func load(path string) (*Config, error) {
	v := viper.New()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Default()
	err := v.Unmarshal(cfg,
		func(dc *mapstructure.DecoderConfig) { dc.TagName = "yaml" },
		viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			splitListHook,
			mapstructure.StringToTimeDurationHookFunc(),
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// splitListHook reads a string as a comma-separated list when the target is
// a slice, dropping empty items.
func splitListHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Slice {
		return data, nil
	}
	var items []string
	for _, s := range strings.Split(data.(string), ",") {
		if s = strings.TrimSpace(s); s != "" {
			items = append(items, s)
		}
	}
	return items, nil
}

// Marshal renders the configuration as YAML, in the form LoadFromPath reads.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
