// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
)

// Config is the harvester's global settings.yaml, distinct from
// config/retailers.yaml (see internal/retailer.File). It holds process-wide
// defaults: logging, data layout, control API listener, and the default
// transport/concurrency settings a run falls back to when a CLI flag or
// per-retailer override isn't given.
type Config struct {
	// Version indicates the settings format version (1 = initial release).
	Version int `yaml:"version,omitempty" json:"version,omitempty"`

	Log        LogConfig        `yaml:"log"`
	DataDir    string           `yaml:"data_dir,omitempty"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	ControlAPI ControlAPIConfig `yaml:"control_api"`
	Transport  TransportDefaults `yaml:"transport"`
}

// LogConfig configures process-wide logging, mirroring the fields
// internal/log.Config reads at startup.
type LogConfig struct {
	Level     string `yaml:"level,omitempty"`
	Format    string `yaml:"format,omitempty"`
	AddSource bool   `yaml:"add_source,omitempty"`
}

// ConcurrencyConfig bounds how many retailers and how many per-retailer
// workers run at once, per the spec's resource-limit section.
type ConcurrencyConfig struct {
	// MaxRetailers is the top-level fan-out bound the orchestrator honors
	// across --all/--group runs. Default 6.
	MaxRetailers int `yaml:"max_retailers,omitempty"`

	// DefaultWorkers is the per-retailer worker count used when a
	// retailer's config doesn't set parallel_workers. Clamped to 1-4.
	DefaultWorkers int `yaml:"default_workers,omitempty"`
}

// ControlAPIConfig configures the optional HTTP control server.
type ControlAPIConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Listen      string `yaml:"listen,omitempty"`
	AllowRemote bool   `yaml:"allow_remote,omitempty"`
	PIDFile     string `yaml:"pid_file,omitempty"`
	SocketPath  string `yaml:"socket_path,omitempty"`
}

// TransportDefaults are the fallback transport settings a retailer config
// inherits when it doesn't set its own, following the credential priority
// order CLI > per-retailer > global > environment.
type TransportDefaults struct {
	ProxyMode    string `yaml:"proxy_mode,omitempty"`
	ProxyCountry string `yaml:"proxy_country,omitempty"`
	RenderJS     bool   `yaml:"render_js,omitempty"`
}

// Default returns the harvester's built-in settings, used when settings.yaml
// doesn't exist yet.
func Default() *Config {
	dataDir := defaultDataDir()

	return &Config{
		Version: 1,
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		DataDir: dataDir,
		Concurrency: ConcurrencyConfig{
			MaxRetailers:   6,
			DefaultWorkers: 2,
		},
		ControlAPI: ControlAPIConfig{
			Enabled:     false,
			Listen:      "127.0.0.1:8420",
			AllowRemote: false,
		},
		Transport: TransportDefaults{
			ProxyMode: "direct",
		},
	}
}

// applyDefaults fills in zero-valued fields after an on-disk settings.yaml
// is unmarshaled, so a partial file (e.g. only overriding log.level) doesn't
// leave the rest of the struct at Go's zero values.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Version == 0 {
		c.Version = defaults.Version
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	if c.DataDir == "" {
		c.DataDir = defaults.DataDir
	}
	if c.Concurrency.MaxRetailers <= 0 {
		c.Concurrency.MaxRetailers = defaults.Concurrency.MaxRetailers
	}
	if c.Concurrency.DefaultWorkers <= 0 {
		c.Concurrency.DefaultWorkers = defaults.Concurrency.DefaultWorkers
	}
	if c.Concurrency.DefaultWorkers > 4 {
		c.Concurrency.DefaultWorkers = 4
	}
	if c.ControlAPI.Listen == "" {
		c.ControlAPI.Listen = defaults.ControlAPI.Listen
	}
	if c.Transport.ProxyMode == "" {
		c.Transport.ProxyMode = defaults.Transport.ProxyMode
	}
}

// Validate rejects settings a SaveSettings caller should never persist:
// an unsupported proxy mode, or a worker bound outside 1-4.
func (c *Config) Validate() error {
	switch c.Transport.ProxyMode {
	case "direct", "residential", "web_scraper_api":
	default:
		return fmt.Errorf("config: transport.proxy_mode %q is not one of direct, residential, web_scraper_api", c.Transport.ProxyMode)
	}
	if c.Concurrency.DefaultWorkers < 1 || c.Concurrency.DefaultWorkers > 4 {
		return fmt.Errorf("config: concurrency.default_workers %d must be between 1 and 4", c.Concurrency.DefaultWorkers)
	}
	if c.Concurrency.MaxRetailers < 1 {
		return fmt.Errorf("config: concurrency.max_retailers must be positive")
	}
	return nil
}

// defaultDataDir returns ./data, the harvester's working-directory-relative
// default per the spec's file layout.
func defaultDataDir() string {
	return "data"
}
