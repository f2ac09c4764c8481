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

package scraperkind

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tombarlow/storeharvester/internal/checkpoint"
	"github.com/tombarlow/storeharvester/internal/pipeline"
	"github.com/tombarlow/storeharvester/internal/store"
)

// RunOptions configures one Framework.Run invocation.
type RunOptions struct {
	// Workers is the extraction worker pool size (parallel_workers,
	// default 1-4 per retailer; discovery is always sequential regardless
	// of this value).
	Workers int

	// CheckpointInterval is how many newly-extracted stores trigger an
	// atomic checkpoint save.
	CheckpointInterval int

	// Limit caps the number of identifiers extracted, honoring --limit /
	// --test.
	Limit int

	// Resume loads the existing checkpoint (if any) before discovery and
	// skips identifiers already marked completed.
	Resume bool

	// SkipIDs, when non-nil, is consulted alongside the checkpoint's
	// completed set to drop identifiers already present in a previous
	// run's output (the --incremental flag's effect).
	SkipIDs map[string]bool
}

// ErrorEntry records one extraction failure for the run's bounded error log.
type ErrorEntry struct {
	ID      string
	Message string
}

// RunResult is the outcome of one Framework.Run call.
type RunResult struct {
	Stores       []store.Store
	RequestsMade int
	Errors       []ErrorEntry
	Skipped      int
}

// Framework drives discovery, the extraction worker pool, checkpointing,
// and per-store validation for one Kind against one retailer's checkpoint
// directory.
type Framework struct {
	Kind       Kind
	Checkpoint *checkpoint.Manager
	Logger     *slog.Logger
}

// New builds a Framework for kind, checkpointing through cp. A nil logger
// falls back to slog.Default().
func New(kind Kind, cp *checkpoint.Manager, logger *slog.Logger) *Framework {
	if logger == nil {
		logger = slog.Default()
	}
	return &Framework{Kind: kind, Checkpoint: cp, Logger: logger}
}

// Run discovers identifiers, extracts each through the worker pool,
// validates and sanitizes every returned Store, and checkpoints progress
// every opts.CheckpointInterval stores. A single bad identifier never
// aborts the run: extraction errors are logged and counted, not
// propagated.
func (f *Framework) Run(ctx context.Context, p *pipeline.Pipeline, opts RunOptions) (*RunResult, error) {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.CheckpointInterval <= 0 {
		opts.CheckpointInterval = 25
	}

	cp, err := f.loadOrInitCheckpoint(opts)
	if err != nil {
		return nil, err
	}

	ids, err := f.Kind.Discover(ctx, p)
	if err != nil {
		return nil, err
	}

	result := &RunResult{Stores: append([]store.Store(nil), cp.Partial...)}

	pending := make([]string, 0, len(ids))
	for _, id := range ids {
		if opts.Resume && cp.Completed[id] {
			continue
		}
		if opts.SkipIDs != nil && opts.SkipIDs[id] {
			result.Skipped++
			continue
		}
		pending = append(pending, id)
	}
	if opts.Limit > 0 && len(pending) > opts.Limit {
		pending = pending[:opts.Limit]
	}

	var (
		mu            sync.Mutex
		extractedSince int
	)

	work := make(chan string)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for id := range work {
			if ctx.Err() != nil {
				return
			}
			s, err := f.Kind.Extract(ctx, p, id)

			mu.Lock()
			result.RequestsMade++
			cp.Completed[id] = true

			switch {
			case err != nil:
				f.Logger.Warn("extraction failed, skipping", "id", id, "error", err)
				result.Errors = append(result.Errors, ErrorEntry{ID: id, Message: err.Error()})
				result.Skipped++

			case s == nil:
				f.Logger.Warn("extractor returned no store, skipping", "id", id)
				result.Errors = append(result.Errors, ErrorEntry{ID: id, Message: "no store returned"})
				result.Skipped++

			default:
				if verr := store.Validate(s); verr != nil {
					f.Logger.Warn("dropping invalid store", "id", id, "error", verr)
					result.Errors = append(result.Errors, ErrorEntry{ID: id, Message: verr.Error()})
					result.Skipped++
				} else {
					clean := store.Sanitize(*s)
					result.Stores = append(result.Stores, clean)
					cp.Partial = append(cp.Partial, clean)
				}
			}

			extractedSince++
			if extractedSince >= opts.CheckpointInterval {
				extractedSince = 0
				_ = f.Checkpoint.Save(cp)
			}
			mu.Unlock()
		}
	}

	wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go worker()
	}

feed:
	for _, id := range pending {
		select {
		case work <- id:
		case <-ctx.Done():
			break feed
		}
	}
	close(work)
	wg.Wait()

	if err := f.Checkpoint.Save(cp); err != nil {
		return result, err
	}

	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	return result, nil
}

func (f *Framework) loadOrInitCheckpoint(opts RunOptions) (*checkpoint.Checkpoint, error) {
	if opts.Resume {
		existing, err := f.Checkpoint.Load()
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if existing.Completed == nil {
				existing.Completed = map[string]bool{}
			}
			return existing, nil
		}
	}
	return &checkpoint.Checkpoint{Completed: map[string]bool{}}, nil
}
