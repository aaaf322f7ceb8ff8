package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/GoCodeAlone/marketplace/cache"
	"github.com/GoCodeAlone/marketplace/manifest"
	"github.com/GoCodeAlone/marketplace/observability/tracing"
)

// HostPaths are the host directories the marketplace reads and writes.
type HostPaths struct {
	Config       string `yaml:"config"`        // shared JSON config file
	PluginsCache string `yaml:"plugins_cache"` // downloaded archives
	Plugins      string `yaml:"plugins"`
	Builtins     string `yaml:"builtins"` // core plugins
	Data         string `yaml:"data"`     // per-plugin data dirs
}

// HostConfig is the marketctl process configuration.
type HostConfig struct {
	Paths        HostPaths          `yaml:"paths"`
	ConfigKey    string             `yaml:"config_key"`
	Endpoints    manifest.Endpoints `yaml:"endpoints"`
	Journal      string             `yaml:"journal"` // sqlite DSN, empty disables history
	Redis        cache.RedisConfig  `yaml:"redis"`   // empty address keeps the in-memory cache
	Cache        cache.Config       `yaml:"cache"`
	Listen       string             `yaml:"listen"`
	Tracing      tracing.Config     `yaml:"tracing"`
	MaxRedirects int                `yaml:"max_redirects"`
	RateLimit    float64            `yaml:"rate_limit"` // requests per second, 0 is unlimited
	Concurrency  int                `yaml:"concurrency"`
	Timeout      time.Duration      `yaml:"timeout"`
}

// DefaultHostConfig returns paths under the user's data directory.
func DefaultHostConfig() *HostConfig {
	base := "."
	if dir, err := os.UserConfigDir(); err == nil {
		base = filepath.Join(dir, "marketctl")
	}
	return &HostConfig{
		Paths: HostPaths{
			Config:       filepath.Join(base, "config.json"),
			PluginsCache: filepath.Join(base, "cache"),
			Plugins:      filepath.Join(base, "plugins"),
			Builtins:     filepath.Join(base, "builtins"),
			Data:         filepath.Join(base, "data"),
		},
		ConfigKey:    DefaultKey,
		Endpoints:    manifest.DefaultEndpoints(),
		Journal:      filepath.Join(base, "history.db"),
		Cache:        cache.DefaultConfig(),
		Listen:       "127.0.0.1:8765",
		Tracing:      tracing.DefaultConfig(),
		MaxRedirects: 10,
		Concurrency:  16,
		Timeout:      2 * time.Minute,
	}
}

// LoadHostConfig loads the first host config found, or returns the default.
// Search order: explicitPath, .marketctl.yaml in CWD, ~/.config/marketctl/config.yaml.
// Fields absent from the file keep their defaults.
func LoadHostConfig(explicitPath string) (*HostConfig, error) {
	paths := []string{}
	if explicitPath != "" {
		paths = append(paths, explicitPath)
	}
	paths = append(paths, ".marketctl.yaml")
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "marketctl", "config.yaml"))
	}

	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			if i == 0 && explicitPath != "" {
				return nil, fmt.Errorf("read host config %s: %w", p, err)
			}
			continue
		}
		cfg := DefaultHostConfig()
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse host config %s: %w", p, err)
		}
		cfg.Endpoints = cfg.Endpoints.WithDefaults()
		if cfg.ConfigKey == "" {
			cfg.ConfigKey = DefaultKey
		}
		return cfg, nil
	}
	return DefaultHostConfig(), nil
}

// SaveHostConfig writes cfg as YAML.
func SaveHostConfig(path string, cfg *HostConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal host config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
