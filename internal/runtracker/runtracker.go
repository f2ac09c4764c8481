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

// Package runtracker allocates run ids, owns each run's metadata file, and
// appends terminal transitions to the run ledger. Only the owning run ever
// writes its own metadata file, replacing it through a temp file and a
// rename. Load reports a file without a status as status=running; a file
// that does not parse as JSON, including a truncated one, is an error.
package runtracker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tombarlow/storeharvester/internal/ledger"
)

// Status is one of the run's terminal or in-flight states.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// ErrorEntry is one bounded entry in Metadata.Errors.
type ErrorEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	URL       string    `json:"url,omitempty"`
}

// PhaseProgress tracks one named discovery phase's completion, used by
// multi-phase kinds like html_crawl.
type PhaseProgress struct {
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Status    string `json:"status"`
}

// Stats are the run counters updated as extraction progresses.
type Stats struct {
	StoresScraped   int     `json:"stores_scraped"`
	RequestsMade    int     `json:"requests_made"`
	Errors          int     `json:"errors"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// RunConfig is the effective option set a run was launched with, persisted
// into Metadata.Config for later inspection.
type RunConfig struct {
	Resume       bool   `json:"resume"`
	Incremental  bool   `json:"incremental,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Test         bool   `json:"test,omitempty"`
	ProxyMode    string `json:"proxy_mode,omitempty"`
	RenderJS     bool   `json:"render_js,omitempty"`
	ProxyCountry string `json:"proxy_country,omitempty"`
}

// Metadata is the full contents of data/{retailer}/runs/{run_id}.json.
type Metadata struct {
	RunID       string                   `json:"run_id"`
	Retailer    string                   `json:"retailer"`
	Status      Status                   `json:"status"`
	StartedAt   time.Time                `json:"started_at"`
	CompletedAt *time.Time               `json:"completed_at,omitempty"`
	Config      RunConfig                `json:"config"`
	Stats       Stats                    `json:"stats"`
	Phases      map[string]PhaseProgress `json:"phases,omitempty"`
	Errors      []ErrorEntry             `json:"errors,omitempty"`
	PID         int                      `json:"pid,omitempty"`
}

// maxErrors bounds Metadata.Errors so a run with pathological failure rates
// doesn't grow its metadata file without bound.
const maxErrors = 200

// AllocateRunID returns a new monotonic run id: {retailer}_{yyyymmdd_HHMMSS}_{rand4}.
func AllocateRunID(retailer string, now time.Time) string {
	rand4 := strings.ToLower(strings.ReplaceAll(uuid.New().String(), "-", ""))[:4]
	return fmt.Sprintf("%s_%s_%s", retailer, now.UTC().Format("20060102_150405"), rand4)
}

// Tracker owns one run's metadata file and ledger appends. Only the
// goroutine/process that created it should call the mutating methods.
type Tracker struct {
	mu       sync.Mutex
	path     string
	ledger   *ledger.Ledger
	meta     Metadata
	startedAt time.Time
}

// New allocates a run id, writes the initial metadata file immediately,
// and returns a Tracker for the caller to drive through its lifecycle.
// runsDir is typically data/{retailer}/runs.
func New(runsDir, retailer string, cfg RunConfig, pid int, led *ledger.Ledger, now time.Time) (*Tracker, error) {
	if err := os.MkdirAll(runsDir, 0755); err != nil {
		return nil, fmt.Errorf("creating runs directory: %w", err)
	}

	runID := AllocateRunID(retailer, now)
	t := &Tracker{
		path:      filepath.Join(runsDir, runID+".json"),
		ledger:    led,
		startedAt: now.UTC(),
		meta: Metadata{
			RunID:     runID,
			Retailer:  retailer,
			Status:    StatusRunning,
			StartedAt: now.UTC(),
			Config:    cfg,
			PID:       pid,
		},
	}
	if err := t.write(); err != nil {
		return nil, err
	}
	return t, nil
}

// RunID returns the allocated run id.
func (t *Tracker) RunID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.meta.RunID
}

// Stats returns a snapshot of the run's current counters.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.meta.Stats
}

// UpdateStats adds delta to the run's running totals and persists the
// metadata file.
func (t *Tracker) UpdateStats(delta Stats) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.meta.Stats.StoresScraped += delta.StoresScraped
	t.meta.Stats.RequestsMade += delta.RequestsMade
	t.meta.Stats.Errors += delta.Errors
	t.meta.Stats.DurationSeconds = time.Since(t.startedAt).Seconds()
	return t.write()
}

// LogError appends a bounded error entry and persists the metadata file.
func (t *Tracker) LogError(message, url string, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.meta.Errors = append(t.meta.Errors, ErrorEntry{Timestamp: at.UTC(), Message: message, URL: url})
	if len(t.meta.Errors) > maxErrors {
		t.meta.Errors = t.meta.Errors[len(t.meta.Errors)-maxErrors:]
	}
	return t.write()
}

// AdvancePhase records progress for a named discovery phase.
func (t *Tracker) AdvancePhase(name string, progress PhaseProgress) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.meta.Phases == nil {
		t.meta.Phases = make(map[string]PhaseProgress)
	}
	t.meta.Phases[name] = progress
	return t.write()
}

// Complete transitions the run to StatusComplete and appends a ledger entry.
func (t *Tracker) Complete(at time.Time) error {
	return t.terminal(StatusComplete, at)
}

// Fail transitions the run to StatusFailed, recording reason as a final
// error entry, and appends a ledger entry.
func (t *Tracker) Fail(reason string, at time.Time) error {
	t.mu.Lock()
	t.meta.Errors = append(t.meta.Errors, ErrorEntry{Timestamp: at.UTC(), Message: reason})
	t.mu.Unlock()
	return t.terminal(StatusFailed, at)
}

// Cancel transitions the run to StatusCanceled and appends a ledger entry.
func (t *Tracker) Cancel(at time.Time) error {
	return t.terminal(StatusCanceled, at)
}

func (t *Tracker) terminal(status Status, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	completedAt := at.UTC()
	t.meta.Status = status
	t.meta.CompletedAt = &completedAt
	t.meta.Stats.DurationSeconds = completedAt.Sub(t.startedAt).Seconds()

	if err := t.write(); err != nil {
		return err
	}

	if t.ledger == nil {
		return nil
	}
	return t.ledger.Append(ledger.Entry{
		Retailer:        t.meta.Retailer,
		RunID:           t.meta.RunID,
		Status:          string(status),
		StartedAt:       t.meta.StartedAt,
		CompletedAt:     completedAt,
		DurationSeconds: t.meta.Stats.DurationSeconds,
		StoresScraped:   t.meta.Stats.StoresScraped,
		RequestsMade:    t.meta.Stats.RequestsMade,
		Errors:          t.meta.Stats.Errors,
	})
}

// write marshals the metadata and replaces the file via temp+rename, the
// same atomic-write convention used by checkpoint.Manager.Save.
func (t *Tracker) write() error {
	data, err := json.MarshalIndent(t.meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run metadata: %w", err)
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing run metadata temp file: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming run metadata file: %w", err)
	}
	return nil
}

// Path returns the metadata file path.
func (t *Tracker) Path() string {
	return t.path
}

// Load reads a run's metadata file from disk. A file that parses but has
// no status is reported as status=running; a file that does not parse as
// JSON (a truncated one included) returns an error, with no fallback.
func Load(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing run metadata %s: %w", path, err)
	}
	if m.Status == "" {
		m.Status = StatusRunning
	}
	return &m, nil
}

// ListRuns returns the metadata for every run file under runsDir, most
// recent first, truncated to limit (0 means unlimited). Unreadable files
// are skipped rather than failing the whole listing.
func ListRuns(runsDir string, limit int) ([]*Metadata, error) {
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var runs []*Metadata
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		m, err := Load(filepath.Join(runsDir, e.Name()))
		if err != nil {
			continue
		}
		runs = append(runs, m)
	}

	sortRunsDescending(runs)
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func sortRunsDescending(runs []*Metadata) {
	for i := 1; i < len(runs); i++ {
		for j := i; j > 0 && runs[j].StartedAt.After(runs[j-1].StartedAt); j-- {
			runs[j], runs[j-1] = runs[j-1], runs[j]
		}
	}
}
