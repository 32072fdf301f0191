package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.yaml.in/yaml/v3"
)

const (
	DefaultPath          = "configs/geodns.yaml"
	DefaultListen        = ":8080"
	DefaultBackend       = "memory"
	DefaultHealth        = "memory"
	DefaultDomainMapPath = "configs/domain-map.yaml"
	DefaultRouteTTL      = 300
)

// Config is the manager configuration file.
type Config struct {
	Listen    string          `yaml:"listen"`
	Store     BackendConfig   `yaml:"store"`
	Health    ProviderConfig  `yaml:"health"`
	RouteSync RouteSyncConfig `yaml:"routeSync"`
}

// BackendConfig selects the store backend and its settings.
type BackendConfig struct {
	Backend  string            `yaml:"backend"`
	Settings map[string]string `yaml:"settings"`
}

// ProviderConfig selects the health provider and its settings.
type ProviderConfig struct {
	Provider string            `yaml:"provider"`
	Settings map[string]string `yaml:"settings"`
}

// RouteSyncConfig controls the HTTPRoute to record sync.
type RouteSyncConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DomainMapPath string `yaml:"domainMapPath"`
	TTL           int    `yaml:"ttl"`
	Upsert        bool   `yaml:"upsert"` // when true, rewrite existing records; when false, only create missing ones
	MetricsAddr   string `yaml:"metricsAddr"`
	ProbeAddr     string `yaml:"probeAddr"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the configuration from the path in CONFIG_PATH, defaulting to
// DefaultPath. A missing file at the default path yields Default(); a
// missing file named by CONFIG_PATH is an error.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		cfg, err := LoadFromPath(DefaultPath)
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return cfg, err
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the configuration from the given file path.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Expand ${ENV_VAR} references in addresses and setting values.
	cfg.Listen = os.ExpandEnv(cfg.Listen)
	for k, v := range cfg.Store.Settings {
		cfg.Store.Settings[k] = os.ExpandEnv(v)
	}
	for k, v := range cfg.Health.Settings {
		cfg.Health.Settings[k] = os.ExpandEnv(v)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Store.Backend == "" {
		c.Store.Backend = DefaultBackend
	}
	if c.Store.Settings == nil {
		c.Store.Settings = map[string]string{}
	}
	if c.Health.Provider == "" {
		c.Health.Provider = DefaultHealth
	}
	if c.Health.Settings == nil {
		c.Health.Settings = map[string]string{}
	}
	if c.RouteSync.DomainMapPath == "" {
		c.RouteSync.DomainMapPath = DefaultDomainMapPath
	}
	if c.RouteSync.TTL == 0 {
		c.RouteSync.TTL = DefaultRouteTTL
	}
	if c.RouteSync.MetricsAddr == "" {
		c.RouteSync.MetricsAddr = "0"
	}
	if c.RouteSync.ProbeAddr == "" {
		c.RouteSync.ProbeAddr = "0"
	}
}

func (c *Config) validate() error {
	if c.RouteSync.TTL < 0 {
		return fmt.Errorf("routeSync.ttl must not be negative, got %d", c.RouteSync.TTL)
	}
	return nil
}
