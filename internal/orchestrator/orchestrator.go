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

// Package orchestrator resolves the CLI's --all/--retailer/--group/--exclude
// selection into a concrete retailer set, fans runs out across a bounded
// worker pool, and aggregates per-retailer outcomes into the process exit
// code the CLI reports.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/tombarlow/storeharvester/internal/ledger"
	"github.com/tombarlow/storeharvester/internal/retailer"
	"github.com/tombarlow/storeharvester/internal/runmanager"
	"github.com/tombarlow/storeharvester/internal/runtracker"
	"github.com/tombarlow/storeharvester/internal/util"
)

// Selection is the raw CLI selection flags before resolution against the
// registry.
type Selection struct {
	All      bool
	Retailer string
	Group    string
	Exclude  []string
}

// groups maps a group name to the retailer names tagged with it. The
// registry's Config carries no group field of its own (see
// retailer.InGroup's doc comment); groups are an orchestration-layer concern
// defined here rather than in config/retailers.yaml.
var groups = map[string][]string{}

// RegisterGroup associates name with members for the --group flag. Intended
// to be called from retailer-config loading, not from init().
func RegisterGroup(name string, members []string) {
	groups[name] = members
}

// Resolve turns a Selection into the sorted, deduplicated list of retailer
// names to run. Exactly one of All, Retailer, or Group is expected to be
// set; Exclude applies after the base set is chosen.
func Resolve(sel Selection) ([]string, error) {
	var base []string
	switch {
	case sel.All:
		base = retailer.Names()
	case sel.Retailer != "":
		if _, ok := retailer.Get(sel.Retailer); !ok {
			return nil, fmt.Errorf("orchestrator: unknown retailer %q", sel.Retailer)
		}
		base = []string{sel.Retailer}
	case sel.Group != "":
		members, ok := groups[sel.Group]
		if !ok {
			return nil, fmt.Errorf("orchestrator: unknown group %q", sel.Group)
		}
		resolved, err := retailer.InGroup(members)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: resolving group %q: %w", sel.Group, err)
		}
		base = resolved
	default:
		return nil, fmt.Errorf("orchestrator: one of --all, --retailer, or --group is required")
	}

	out := make([]string, 0, len(base))
	for _, name := range base {
		cfg, ok := retailer.Get(name)
		if !ok || !cfg.Enabled || util.Contains(sel.Exclude, name) {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// Outcome is one retailer's run result.
type Outcome struct {
	Retailer      string
	RunID         string
	Status        runtracker.Status
	Err           error
	Duration      time.Duration
	StoresScraped int
}

// Report aggregates every retailer's Outcome for one invocation.
type Report struct {
	Outcomes []Outcome
}

// ExitCode implements the spec's exit-code contract: 0 when every selected
// retailer completed, 1 when at least one failed (but the invocation itself
// was well-formed and ran).
func (r Report) ExitCode() int {
	for _, o := range r.Outcomes {
		if o.Status != runtracker.StatusComplete {
			return 1
		}
	}
	return 0
}

func (r Report) String() string {
	complete, failed := 0, 0
	for _, o := range r.Outcomes {
		if o.Status == runtracker.StatusComplete {
			complete++
		} else {
			failed++
		}
	}
	return fmt.Sprintf("%d retailer(s): %d complete, %d failed", len(r.Outcomes), complete, failed)
}

// Run executes opts against every retailer in names, bounded to maxConcurrent
// simultaneous runs, and waits for all of them to finish. Unlike
// runmanager.Manager.Start, which launches a run and returns immediately for
// the control API's async supervision model, Run blocks until every
// retailer's run has reached a terminal state, which is what a batch CLI
// invocation needs in order to compute a single exit code.
func Run(ctx context.Context, dataDir string, names []string, opts runmanager.Options, runFn runmanager.RunFunc, maxConcurrent int, logger *slog.Logger) (Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	led, err := ledger.New(filepath.Join(dataDir, ".runs", "ledger.jsonl"))
	if err != nil {
		return Report{}, fmt.Errorf("orchestrator: opening run ledger: %w", err)
	}

	outcomes := make([]Outcome, len(names))
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[i] = runOne(ctx, dataDir, name, opts, runFn, led, logger)
		}(i, name)
	}
	wg.Wait()

	return Report{Outcomes: outcomes}, nil
}

// runOne drives a single retailer's run to completion, translating the
// tracker-level terminal state into an Outcome. It reimplements the
// terminal-state bookkeeping runmanager.Manager.Start's wrapping goroutine
// performs, since that goroutine's completion isn't observable from the
// caller's side of Manager's async API.
func runOne(ctx context.Context, dataDir, name string, opts runmanager.Options, runFn runmanager.RunFunc, led *ledger.Ledger, logger *slog.Logger) Outcome {
	start := time.Now()
	runsDir := filepath.Join(dataDir, name, "runs")
	runCfg := runtracker.RunConfig{
		Resume:       opts.Resume,
		Incremental:  opts.Incremental,
		Limit:        opts.Limit,
		Test:         opts.Test,
		ProxyMode:    opts.ProxyMode,
		RenderJS:     opts.RenderJS,
		ProxyCountry: opts.ProxyCountry,
	}

	tracker, err := runtracker.New(runsDir, name, runCfg, 0, led, start)
	if err != nil {
		return Outcome{Retailer: name, Err: fmt.Errorf("orchestrator: allocating run for %q: %w", name, err)}
	}

	runErr := runFn(ctx, name, opts, tracker)
	now := time.Now()

	var status runtracker.Status
	switch {
	case ctx.Err() != nil:
		_ = tracker.Cancel(now)
		status = runtracker.StatusCanceled
	case runErr != nil:
		_ = tracker.Fail(runErr.Error(), now)
		status = runtracker.StatusFailed
		logger.Error("retailer run failed", "retailer", name, "run_id", tracker.RunID(), "error", runErr)
	default:
		_ = tracker.Complete(now)
		status = runtracker.StatusComplete
	}

	return Outcome{
		Retailer:      name,
		RunID:         tracker.RunID(),
		Status:        status,
		Err:           runErr,
		Duration:      now.Sub(start),
		StoresScraped: tracker.Stats().StoresScraped,
	}
}
