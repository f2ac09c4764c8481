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

// Package retailer holds the compile-time registry of retailer configs and
// the per-retailer option set recognized by the pacer, pipeline, and
// scraper-kind framework. Retailer-specific parser packages register
// themselves here from an init() function, mirroring the provider-registry
// idiom used elsewhere in this codebase.
package retailer

import (
	"fmt"
	"sort"
	"sync"

	pkgerrors "github.com/tombarlow/storeharvester/pkg/errors"
)

// DiscoveryMethod names one of the five scraper-kinds a retailer can use.
type DiscoveryMethod string

const (
	Sitemap           DiscoveryMethod = "sitemap"
	SitemapGzip       DiscoveryMethod = "sitemap_gzip"
	SitemapPaginated  DiscoveryMethod = "sitemap_paginated"
	HTMLCrawl         DiscoveryMethod = "html_crawl"
	LocatorAPI        DiscoveryMethod = "locator_api"
)

// validMethods backs Validate's discovery-method check.
var validMethods = map[DiscoveryMethod]bool{
	Sitemap:          true,
	SitemapGzip:      true,
	SitemapPaginated: true,
	HTMLCrawl:        true,
	LocatorAPI:       true,
}

// Config is one retailer's effective configuration: identity, discovery
// strategy, and the pacing/concurrency/proxy options recognized by §4 of
// the spec this registry implements.
type Config struct {
	Name            string          `yaml:"name" json:"name"`
	Enabled         bool            `yaml:"enabled" json:"enabled"`
	BaseURL         string          `yaml:"base_url" json:"base_url"`
	DiscoveryMethod DiscoveryMethod `yaml:"discovery_method" json:"discovery_method"`

	// SitemapURL / SitemapPattern configure the sitemap family of kinds.
	SitemapURL     string `yaml:"sitemap_url,omitempty" json:"sitemap_url,omitempty"`
	SitemapPattern string `yaml:"sitemap_pattern,omitempty" json:"sitemap_pattern,omitempty"`

	// LocatorAPIURL configures the locator_api kind.
	LocatorAPIURL string `yaml:"locator_api_url,omitempty" json:"locator_api_url,omitempty"`

	ParallelWorkers    int `yaml:"parallel_workers" json:"parallel_workers"`
	CheckpointInterval int `yaml:"checkpoint_interval" json:"checkpoint_interval"`

	MinDelayMS int `yaml:"min_delay_ms" json:"min_delay_ms"`
	MaxDelayMS int `yaml:"max_delay_ms" json:"max_delay_ms"`

	// MinCrawlDelayMS is an optional hint taken from the retailer's
	// robots.txt at config-authoring time. Validate fails config load if
	// MinDelayMS is below it; the runtime itself never fetches robots.txt.
	MinCrawlDelayMS int `yaml:"min_crawl_delay_ms,omitempty" json:"min_crawl_delay_ms,omitempty"`

	RateLimitBaseWaitSeconds int `yaml:"rate_limit_base_wait_seconds" json:"rate_limit_base_wait_seconds"`

	// Incremental names the --incremental matching mode for this retailer.
	// Validate checks the value; the harvest driver's skip step matches by
	// URL for either mode (see harvest.Driver.previousURLs).
	Incremental IncrementalMode `yaml:"incremental" json:"incremental"`
}

// IncrementalMode selects how --incremental determines "already collected"
// for a given retailer.
type IncrementalMode string

const (
	// IncrementalByURL skips URLs already present in the previous run's
	// stores_latest.json (the default — cheap, no parse needed).
	IncrementalByURL IncrementalMode = "url"
	// IncrementalByStoreID is accepted by Validate. The harvest driver
	// handles it exactly like IncrementalByURL; stores are not matched by
	// store_id.
	IncrementalByStoreID IncrementalMode = "store_id"
)

// Validate enforces the required-keys/discovery-method/positive-numeric
// rules from §4.9 and §7's "Config" error row. A ConfigError means the
// whole config load fails fast with no partial config applied.
func (c *Config) Validate() error {
	if c.Name == "" {
		return &pkgerrors.ConfigError{Key: "name", Reason: "required"}
	}
	if c.BaseURL == "" {
		return &pkgerrors.ConfigError{Key: "base_url", Reason: "required"}
	}
	if !validMethods[c.DiscoveryMethod] {
		return &pkgerrors.ConfigError{
			Key:    "discovery_method",
			Reason: fmt.Sprintf("invalid discovery method %q", c.DiscoveryMethod),
		}
	}
	if c.ParallelWorkers <= 0 {
		return &pkgerrors.ConfigError{Key: "parallel_workers", Reason: "must be > 0"}
	}
	if c.CheckpointInterval <= 0 {
		return &pkgerrors.ConfigError{Key: "checkpoint_interval", Reason: "must be > 0"}
	}
	if c.MinDelayMS < 0 || c.MaxDelayMS < 0 {
		return &pkgerrors.ConfigError{Key: "min_delay_ms/max_delay_ms", Reason: "must be >= 0"}
	}
	if c.MaxDelayMS < c.MinDelayMS {
		return &pkgerrors.ConfigError{Key: "max_delay_ms", Reason: "must be >= min_delay_ms"}
	}
	if c.MinCrawlDelayMS > 0 && c.MinDelayMS < c.MinCrawlDelayMS {
		return &pkgerrors.ConfigError{
			Key:    "min_delay_ms",
			Reason: fmt.Sprintf("must be >= robots.txt crawl-delay hint (%dms)", c.MinCrawlDelayMS),
		}
	}
	if c.RateLimitBaseWaitSeconds <= 0 {
		return &pkgerrors.ConfigError{Key: "rate_limit_base_wait_seconds", Reason: "must be > 0"}
	}
	switch c.Incremental {
	case "", IncrementalByURL, IncrementalByStoreID:
	default:
		return &pkgerrors.ConfigError{Key: "incremental", Reason: fmt.Sprintf("invalid mode %q", c.Incremental)}
	}
	return nil
}

// Registry is the compile-time map<retailer_name, *Config> populated by
// per-retailer init() functions calling Register. It is safe for
// concurrent reads and writes, though writes are expected only at
// init()-time or config reload.
type Registry struct {
	mu    sync.RWMutex
	byName map[string]*Config
}

var defaultRegistry = &Registry{byName: make(map[string]*Config)}

// Register adds cfg to the default registry under cfg.Name. It panics on a
// duplicate name, matching the teacher codebase's init()-time registration
// convention where collisions indicate a build-time programming error, not
// a runtime condition to recover from.
func Register(cfg *Config) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	if _, exists := defaultRegistry.byName[cfg.Name]; exists {
		panic(fmt.Sprintf("retailer: duplicate registration for %q", cfg.Name))
	}
	defaultRegistry.byName[cfg.Name] = cfg
}

// ReplaceAll atomically swaps the registry contents, used by the Control
// API's config reload after a validated POST /api/config.
func ReplaceAll(cfgs map[string]*Config) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.byName = cfgs
}

// Get returns the registered config for name, or (nil, false).
func Get(name string) (*Config, bool) {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	cfg, ok := defaultRegistry.byName[name]
	return cfg, ok
}

// Names returns the sorted list of registered retailer names.
func Names() []string {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	names := make([]string, 0, len(defaultRegistry.byName))
	for name := range defaultRegistry.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every registered config, keyed by name. The returned map is a
// copy; mutating it does not affect the registry.
func All() map[string]*Config {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	out := make(map[string]*Config, len(defaultRegistry.byName))
	for k, v := range defaultRegistry.byName {
		out[k] = v
	}
	return out
}

// InGroup checks that every name in names is registered and returns them
// in the given order, used by the CLI's --group flag. Callers pass a
// group's member list (see orchestrator.RegisterGroup); InGroup does not
// filter by Enabled, and neither Config nor the YAML file carries groups.
func InGroup(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := Get(n); !ok {
			return nil, &pkgerrors.NotFoundError{Resource: "retailer", ID: n}
		}
		out = append(out, n)
	}
	return out, nil
}
