package main

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/IvanBrykalov/sectionloader/settings"
)

// Config is the fragserve configuration file.
type Config struct {
	Server   ServerConfig      `toml:"server"`
	Loader   LoaderConfig      `toml:"loader"`
	Settings settings.Settings `toml:"settings"`
}

type ServerConfig struct {
	Addr        string `toml:"addr"`
	Upstream    string `toml:"upstream"`
	MetricsAddr string `toml:"metrics_addr"`
}

type LoaderConfig struct {
	// FetchTimeout is a time.ParseDuration string; empty means no limit.
	FetchTimeout  string `toml:"fetch_timeout"`
	MaxConcurrent int    `toml:"max_concurrent"`
	CacheShards   int    `toml:"cache_shards"`
	// SettingsFile is a TOML file holding the operator-wide settings layer.
	// It is watched and reloaded on change.
	SettingsFile string `toml:"settings_file"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:        ":8000",
			MetricsAddr: ":9100",
		},
		Loader: LoaderConfig{
			FetchTimeout: "10s",
		},
	}
}

// LoadConfig decodes path over DefaultConfig. An empty path returns the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields and returns the parsed upstream and fetch timeout.
func (c Config) Validate() (*url.URL, time.Duration, error) {
	if c.Server.Upstream == "" {
		return nil, 0, errors.New("config: server.upstream is required")
	}
	u, err := url.Parse(c.Server.Upstream)
	if err != nil {
		return nil, 0, fmt.Errorf("config: server.upstream: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, 0, fmt.Errorf("config: server.upstream %q is not an absolute URL", c.Server.Upstream)
	}
	if c.Server.Addr == "" {
		return nil, 0, errors.New("config: server.addr is required")
	}

	var timeout time.Duration
	if c.Loader.FetchTimeout != "" {
		timeout, err = time.ParseDuration(c.Loader.FetchTimeout)
		if err != nil {
			return nil, 0, fmt.Errorf("config: loader.fetch_timeout: %w", err)
		}
		if timeout < 0 {
			return nil, 0, fmt.Errorf("config: loader.fetch_timeout %v is negative", timeout)
		}
	}
	if c.Loader.MaxConcurrent < 0 {
		return nil, 0, fmt.Errorf("config: loader.max_concurrent %d is negative", c.Loader.MaxConcurrent)
	}
	return u, timeout, nil
}
