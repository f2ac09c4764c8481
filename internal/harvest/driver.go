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

// Package harvest implements the per-retailer run body every runmanager.Manager
// invocation drives: building the transport/pacer/pipeline stack from a
// retailer's config, running the scraperkind.Framework, diffing the result
// against the previous run, and rotating the on-disk export files.
package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/tombarlow/storeharvester/internal/cache"
	"github.com/tombarlow/storeharvester/internal/changedetect"
	"github.com/tombarlow/storeharvester/internal/checkpoint"
	stdlog "github.com/tombarlow/storeharvester/internal/log"
	"github.com/tombarlow/storeharvester/internal/controller/metrics"
	"github.com/tombarlow/storeharvester/internal/pacer"
	"github.com/tombarlow/storeharvester/internal/pipeline"
	"github.com/tombarlow/storeharvester/internal/retailer"
	"github.com/tombarlow/storeharvester/internal/runmanager"
	"github.com/tombarlow/storeharvester/internal/runtracker"
	"github.com/tombarlow/storeharvester/internal/scraperkind"
	"github.com/tombarlow/storeharvester/internal/store"
	"github.com/tombarlow/storeharvester/internal/transport"
)

// Defaults is the fallback transport configuration a retailer's run
// inherits when the CLI options do not override it; the retailer's own
// config is not consulted for these settings. Credentials are resolved by
// transport.ResolveConfig with an empty global layer and no CLI or
// per-retailer layer, so only the environment supplies them.
type Defaults struct {
	ProxyMode    string
	ProxyCountry string
	RenderJS     bool

	ProxyHost   string
	APIEndpoint string
}

// Driver builds a runmanager.RunFunc bound to one set of global defaults and
// data directory layout.
type Driver struct {
	DataDir  string
	Defaults Defaults
	Logger   *slog.Logger
}

// New constructs a Driver.
func New(dataDir string, defaults Defaults, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{DataDir: dataDir, Defaults: defaults, Logger: logger}
}

// RunFunc adapts the Driver to runmanager.RunFunc.
func (d *Driver) RunFunc() runmanager.RunFunc {
	return d.Run
}

// Run executes one retailer's harvest from discovery through export-file
// rotation. It is the body the runmanager.Manager invokes for every Start
// call; the manager itself handles the tracker's terminal transition once
// Run returns.
func (d *Driver) Run(ctx context.Context, retailerName string, opts runmanager.Options, tracker *runtracker.Tracker) error {
	cfg, ok := retailer.Get(retailerName)
	if !ok {
		return fmt.Errorf("harvest: unknown retailer %q", retailerName)
	}

	runLogger, closeLog, err := d.openRunLogger(retailerName, tracker.RunID())
	if err != nil {
		return fmt.Errorf("harvest: opening run log: %w", err)
	}
	defer closeLog()

	transportCfg := d.buildTransportConfig(cfg, opts)
	tr, err := transport.New(transportCfg)
	if err != nil {
		return fmt.Errorf("harvest: building transport: %w", err)
	}

	pacerCfg := pacer.DefaultConfig()
	pacerCfg.Direct = pacer.DelayProfile{MinMillis: cfg.MinDelayMS, MaxMillis: cfg.MaxDelayMS}
	pacerCfg.Proxied = pacerCfg.Direct
	if cfg.RateLimitBaseWaitSeconds > 0 {
		pacerCfg.RateLimitBaseWait = time.Duration(cfg.RateLimitBaseWaitSeconds) * time.Second
	}
	pc := pacer.New(pacerCfg, retailerName)

	proxied := transportCfg.Mode != transport.Direct
	pl := pipeline.New(tr, pc, pipeline.DefaultOptions(), proxied, runLogger, retailerName)

	kind, err := d.buildKind(cfg, retailerName)
	if err != nil {
		return err
	}

	urlCache, err := cache.NewURLSetCache(filepath.Join(d.DataDir, ".cache", "urlsets"), 0)
	if err != nil {
		runLogger.Warn("failed to open discovery cache, discovery will not be cached", "error", err)
	} else {
		kind.Discoverer = &cachingDiscoverer{inner: kind.Discoverer, cache: urlCache, retailer: retailerName, logger: runLogger}
	}

	cpDir := filepath.Join(d.DataDir, retailerName, "checkpoints")
	cpMgr, err := checkpoint.NewManager(cpDir, retailerName)
	if err != nil {
		return fmt.Errorf("harvest: building checkpoint manager: %w", err)
	}

	framework := scraperkind.New(kind, cpMgr, runLogger)

	workers := cfg.ParallelWorkers
	if workers <= 0 {
		workers = 1
	}
	runOpts := scraperkind.RunOptions{
		Workers:            workers,
		CheckpointInterval: cfg.CheckpointInterval,
		Limit:              opts.EffectiveLimit(),
		Resume:             opts.Resume,
	}
	if opts.Incremental {
		skip, err := d.previousURLs(retailerName)
		if err != nil {
			runLogger.Warn("incremental mode requested but previous output could not be read, running full discovery", "error", err)
		} else {
			runOpts.SkipIDs = skip
		}
	}

	result, runErr := framework.Run(ctx, pl, runOpts)
	if result != nil {
		_ = tracker.UpdateStats(runtracker.Stats{
			StoresScraped: len(result.Stores),
			RequestsMade:  result.RequestsMade,
			Errors:        len(result.Errors),
		})
		for _, e := range result.Errors {
			_ = tracker.LogError(e.Message, e.ID, time.Now())
		}
	}
	if runErr != nil {
		metrics.RunOutcomesTotal.WithLabelValues(retailerName, "failed").Inc()
		return runErr
	}

	if !opts.DryRun {
		if err := d.commit(retailerName, result.Stores); err != nil {
			metrics.RunOutcomesTotal.WithLabelValues(retailerName, "failed").Inc()
			return err
		}

		if err := cpMgr.Delete(); err != nil {
			runLogger.Warn("failed to delete checkpoint after successful run", "error", err)
		}
	}

	metrics.RunOutcomesTotal.WithLabelValues(retailerName, "complete").Inc()
	metrics.StoresScraped.WithLabelValues(retailerName).Set(float64(len(result.Stores)))
	return nil
}

// buildTransportConfig resolves the effective transport mode/credentials
// for this run, honoring CLI-supplied opts over the Driver's global
// defaults.
func (d *Driver) buildTransportConfig(cfg *retailer.Config, opts runmanager.Options) transport.Config {
	mode := d.Defaults.ProxyMode
	if opts.ProxyMode != "" {
		mode = opts.ProxyMode
	}
	if mode == "" {
		mode = string(transport.Direct)
	}

	country := d.Defaults.ProxyCountry
	if opts.ProxyCountry != "" {
		country = opts.ProxyCountry
	}

	renderJS := d.Defaults.RenderJS || opts.RenderJS

	tcfg := transport.Config{
		Mode:        transport.Mode(mode),
		ProxyHost:   d.Defaults.ProxyHost,
		APIEndpoint: d.Defaults.APIEndpoint,
		Country:     country,
		RenderJS:    renderJS,
		UserAgent:   fmt.Sprintf("storeharvester/1.0 (+%s)", cfg.Name),
	}

	src := transport.CredentialSource{Global: map[string]string{}}
	return transport.ResolveConfig(tcfg, src)
}

// cachingDiscoverer wraps a retailer's Discoverer with the on-disk URL-set
// cache: a hit returns the previously discovered identifier list without
// re-fetching the sitemap or index pages, a miss runs the real discoverer
// and populates the cache for next time.
type cachingDiscoverer struct {
	inner    scraperkind.Discoverer
	cache    *cache.URLSetCache
	retailer string
	logger   *slog.Logger
}

func (c *cachingDiscoverer) Discover(ctx context.Context, p *pipeline.Pipeline) ([]string, error) {
	if ids, ok := c.cache.Get(c.retailer); ok {
		c.logger.Debug("discovery cache hit", "retailer", c.retailer, "count", len(ids))
		return ids, nil
	}

	ids, err := c.inner.Discover(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Put(c.retailer, ids); err != nil {
		c.logger.Warn("failed to populate discovery cache", "error", err)
	}
	return ids, nil
}

// buildKind constructs the scraperkind.Kind for cfg's discovery method. The
// sitemap family gets a generic JSON-LD extractor since its identifiers are
// directly fetchable store-page URLs; html_crawl and locator_api require a
// retailer-specific parser package to supply their phase/query hooks, which
// is outside this package's scope (see scraperkind.Kind's doc comment) — a
// retailer registered with one of those methods but no such hooks fails the
// run immediately with a clear error rather than silently producing nothing.
func (d *Driver) buildKind(cfg *retailer.Config, retailerName string) (scraperkind.Kind, error) {
	extractor := scraperkind.ExtractorFunc(func(ctx context.Context, p *pipeline.Pipeline, id string) (*store.Store, error) {
		resp, err := p.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == 404 {
			return nil, nil
		}
		s, err := extractJSONLDStore(id, resp.Content, time.Now())
		if err != nil {
			return nil, err
		}
		if s != nil {
			s.Country = defaultCountry(s.Country)
		}
		return s, nil
	})

	switch cfg.DiscoveryMethod {
	case retailer.Sitemap:
		return scraperkind.Kind{
			Name:       string(cfg.DiscoveryMethod),
			Discoverer: scraperkind.SitemapKind{SitemapURL: cfg.SitemapURL, Pattern: compilePattern(cfg.SitemapPattern)},
			Extractor:  extractor,
		}, nil
	case retailer.SitemapGzip:
		return scraperkind.Kind{
			Name:       string(cfg.DiscoveryMethod),
			Discoverer: scraperkind.SitemapGzipKind{SitemapURL: cfg.SitemapURL, Pattern: compilePattern(cfg.SitemapPattern)},
			Extractor:  extractor,
		}, nil
	case retailer.SitemapPaginated:
		return scraperkind.Kind{
			Name:       string(cfg.DiscoveryMethod),
			Discoverer: scraperkind.SitemapPaginatedKind{IndexURL: cfg.SitemapURL, Pattern: compilePattern(cfg.SitemapPattern)},
			Extractor:  extractor,
		}, nil
	default:
		return scraperkind.Kind{}, fmt.Errorf(
			"harvest: retailer %q uses discovery_method %q, which requires a registered retailer-specific parser (none found)",
			retailerName, cfg.DiscoveryMethod,
		)
	}
}

func compilePattern(pattern string) *regexp.Regexp {
	if pattern == "" {
		return nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}
	return re
}

func defaultCountry(country string) string {
	if country == "" {
		return "US"
	}
	return country
}

// commit loads the previous run's stores, diffs them against current,
// writes a dated changes file, and atomically rotates stores_latest.json to
// stores_previous.json before writing the new stores_latest.json.
func (d *Driver) commit(retailerName string, current []store.Store) error {
	outputDir := filepath.Join(d.DataDir, retailerName, "output")
	historyDir := filepath.Join(d.DataDir, retailerName, "history")
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.MkdirAll(historyDir, 0755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}

	latestPath := filepath.Join(outputDir, "stores_latest.json")
	previousPath := filepath.Join(outputDir, "stores_previous.json")

	previous, err := loadStores(latestPath)
	if err != nil {
		return fmt.Errorf("loading previous stores_latest.json: %w", err)
	}

	report := changedetect.Diff(previous, current)
	changesPath := filepath.Join(historyDir, fmt.Sprintf("changes_%s.json", time.Now().UTC().Format("2006-01-02")))
	if err := writeJSONAtomic(changesPath, report); err != nil {
		return fmt.Errorf("writing changes file: %w", err)
	}

	if previous != nil {
		if err := writeJSONAtomic(previousPath, previous); err != nil {
			return fmt.Errorf("rotating stores_previous.json: %w", err)
		}
	}
	if err := writeJSONAtomic(latestPath, current); err != nil {
		return fmt.Errorf("writing stores_latest.json: %w", err)
	}
	return nil
}

// previousURLs returns the set of store URLs already present in the
// retailer's stores_latest.json, used by --incremental to skip identifiers
// a sitemap-family discoverer would otherwise re-fetch. Both Incremental
// modes key off URL here since discovery always yields URLs before a
// store's id is known; the retailer's Incremental setting is not read.
func (d *Driver) previousURLs(retailerName string) (map[string]bool, error) {
	latestPath := filepath.Join(d.DataDir, retailerName, "output", "stores_latest.json")
	stores, err := loadStores(latestPath)
	if err != nil {
		return nil, err
	}
	urls := make(map[string]bool, len(stores))
	for _, s := range stores {
		if s.URL != "" {
			urls[s.URL] = true
		}
	}
	return urls, nil
}

func loadStores(path string) ([]store.Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var stores []store.Store
	if err := json.Unmarshal(data, &stores); err != nil {
		return nil, err
	}
	return stores, nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// openRunLogger opens a dedicated log file for this run under
// data/{retailer}/logs/{run_id}.log, returning a logger with retailer/run_id
// fields already attached and a closer the caller must defer.
func (d *Driver) openRunLogger(retailerName, runID string) (*slog.Logger, func(), error) {
	logsDir := filepath.Join(d.DataDir, retailerName, "logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, nil, err
	}
	path := filepath.Join(logsDir, runID+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}

	handler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := stdlog.WithRunContext(slog.New(handler), retailerName, runID)
	return logger, func() { f.Close() }, nil
}
