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

// Package runmanager supervises concurrent per-retailer runs: start, stop,
// restart, status, and stale-entry cleanup. All registry map mutations are
// guarded by a single mutex; helpers suffixed "Locked" assume the caller
// already holds it, and the public API always acquires it first.
package runmanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tombarlow/storeharvester/internal/runtracker"
)

// ErrAlreadyRunning is returned by Start when a live run already exists
// for the retailer.
var ErrAlreadyRunning = errors.New("runmanager: a run is already active for this retailer")

// Options is the per-run option set honored by Start, matching the spec's
// CLI/API surface.
type Options struct {
	Resume       bool
	Incremental  bool
	Limit        int
	Test         bool
	ProxyMode    string
	RenderJS     bool
	ProxyCountry string

	// DryRun skips committing extracted stores to stores_latest.json and
	// deleting the checkpoint, used by the CLI's --validate mode so a
	// validation run never disturbs a retailer's real output.
	DryRun bool
}

// EffectiveLimit returns opts.Limit, or 10 when Test is set (--test is
// equivalent to --limit 10).
func (o Options) EffectiveLimit() int {
	if o.Test {
		return 10
	}
	return o.Limit
}

// RunFunc is the in-process work a TaskSupervisor executes for one run: it
// receives a cancelable context and the Tracker the caller should report
// progress and terminal status through.
type RunFunc func(ctx context.Context, retailer string, opts Options, tracker *runtracker.Tracker) error

// entry is one registry slot.
type entry struct {
	supervisor Supervisor
	tracker    *runtracker.Tracker
	retailer   string
}

// Manager supervises one run per retailer at a time.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry

	dataDir string
	run     RunFunc
	logger  *slog.Logger
}

// New constructs a Manager. run is invoked for every Start call using the
// task-based (in-process) execution model; dataDir roots
// data/{retailer}/runs for metadata and data/.runs for the ledger.
func New(dataDir string, run RunFunc, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		entries: make(map[string]*entry),
		dataDir: dataDir,
		run:     run,
		logger:  logger,
	}
}

// Start launches a new run for retailer. If a registry entry already
// exists, Start first probes whether the underlying task/process is
// actually alive rather than rejecting on map membership alone: a dead
// entry is garbage-collected in the same call and the new start proceeds.
// This is the fix for the "stale entry permanently blocks restarts" defect
// the spec calls out — the status API never itself drives cleanup.
func (m *Manager) Start(ctx context.Context, tr *runtracker.Tracker, retailer string, opts Options) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[retailer]; ok {
		if m.probeAliveLocked(e) {
			return ErrAlreadyRunning
		}
		delete(m.entries, retailer)
	}

	sup := NewTaskSupervisor(ctx, func(taskCtx context.Context) {
		err := m.run(taskCtx, retailer, opts, tr)
		now := time.Now()
		switch {
		case taskCtx.Err() != nil && errors.Is(taskCtx.Err(), context.Canceled):
			_ = tr.Cancel(now)
		case err != nil:
			_ = tr.Fail(err.Error(), now)
		default:
			_ = tr.Complete(now)
		}
	})

	m.entries[retailer] = &entry{supervisor: sup, tracker: tr, retailer: retailer}
	return nil
}

// Stop requests cooperative cancellation for retailer's active run and
// waits up to timeout for it to finish before forcing termination.
func (m *Manager) Stop(retailer string, timeout time.Duration) error {
	m.mu.Lock()
	e, ok := m.entries[retailer]
	m.mu.Unlock()

	if !ok || !m.probeAlive(e) {
		return fmt.Errorf("runmanager: no active run for %q", retailer)
	}

	e.supervisor.RequestStop()
	if !e.supervisor.Wait(timeout) {
		e.supervisor.Kill()
	}

	m.mu.Lock()
	delete(m.entries, retailer)
	m.mu.Unlock()
	return nil
}

// Restart stops the active run (if any) and starts a new one with
// resume=true.
func (m *Manager) Restart(ctx context.Context, newTracker *runtracker.Tracker, retailer string, opts Options, stopTimeout time.Duration) error {
	m.mu.Lock()
	_, hasEntry := m.entries[retailer]
	m.mu.Unlock()
	if hasEntry {
		if err := m.Stop(retailer, stopTimeout); err != nil {
			return err
		}
	}
	opts.Resume = true
	return m.Start(ctx, newTracker, retailer, opts)
}

// Status reports whether retailer currently has a live run and its pid (0
// for task-based runs).
type Status struct {
	Retailer string
	Running  bool
	RunID    string
	PID      int
}

// Status returns the live state for retailer by consulting the in-memory
// registry, probing liveness as part of the read.
func (m *Manager) Status(retailer string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[retailer]
	if !ok || !m.probeAliveLocked(e) {
		return Status{Retailer: retailer, Running: false}
	}
	return Status{
		Retailer: retailer,
		Running:  true,
		RunID:    e.tracker.RunID(),
		PID:      e.supervisor.PID(),
	}
}

// AllStatuses returns Status for every retailer currently tracked in the
// registry, stale ones included; those are reported as not running and
// stay in the registry (Status does not remove them).
func (m *Manager) AllStatuses() []Status {
	m.mu.Lock()
	retailers := make([]string, 0, len(m.entries))
	for r := range m.entries {
		retailers = append(retailers, r)
	}
	m.mu.Unlock()

	statuses := make([]Status, 0, len(retailers))
	for _, r := range retailers {
		statuses = append(statuses, m.Status(r))
	}
	return statuses
}

// CleanupExited removes every registry entry whose task/process has
// already finished. The terminal status itself was already written by the
// run's own goroutine (see Start); this only reclaims registry slots.
func (m *Manager) CleanupExited() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for retailer, e := range m.entries {
		if !m.probeAliveLocked(e) {
			delete(m.entries, retailer)
			removed++
		}
	}
	return removed
}

// probeAliveLocked assumes m.mu is already held.
func (m *Manager) probeAliveLocked(e *entry) bool {
	return e.supervisor.Alive()
}

// probeAlive acquires no lock itself; callers that don't already hold m.mu
// may call it directly since Supervisor.Alive() needs no registry access.
func (m *Manager) probeAlive(e *entry) bool {
	return e.supervisor.Alive()
}
