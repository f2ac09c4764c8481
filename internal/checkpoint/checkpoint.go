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

// Package checkpoint provides crash-safe, per-retailer resume state:
// completed identifiers, partially collected stores, and optional
// phase-specific discovery data. Saves are atomic (temp file + rename) so
// load_checkpoint never observes a partially written file.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tombarlow/storeharvester/internal/store"
)

// Checkpoint is a retailer's in-progress run state.
type Checkpoint struct {
	Retailer    string          `json:"retailer"`
	Completed   map[string]bool `json:"completed"` // URL or store_id already extracted
	Partial     []store.Store   `json:"partial"`   // stores collected so far
	PhaseData   json.RawMessage `json:"phase_data,omitempty"`
	LastUpdated time.Time       `json:"last_updated"`
}

// Manager reads and writes checkpoints for a single retailer's data directory.
type Manager struct {
	mu   sync.Mutex
	dir  string
	path string
}

// NewManager creates a Manager rooted at dir (typically
// data/{retailer}/checkpoints/).
func NewManager(dir, retailer string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating checkpoint directory: %w", err)
	}
	return &Manager{
		dir:  dir,
		path: filepath.Join(dir, retailer+".json"),
	}, nil
}

// Save atomically persists cp: marshal, write to a temp file in the same
// directory, then rename over the target path. At no point does a partial
// JSON file exist at Path().
func (m *Manager) Save(cp *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp.LastUpdated = time.Now().UTC()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling checkpoint: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming checkpoint file: %w", err)
	}
	return nil
}

// Load returns the saved checkpoint, or (nil, nil) if none exists yet.
// A checkpoint can only ever be the previous fully-written contents or
// absent, never a partial write, because Save only ever replaces it via
// rename.
func (m *Manager) Load() (*Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("unmarshaling checkpoint: %w", err)
	}
	return &cp, nil
}

// Delete removes the checkpoint file. Called once a run completes
// successfully.
func (m *Manager) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting checkpoint: %w", err)
	}
	return nil
}

// Path returns the checkpoint's file path.
func (m *Manager) Path() string {
	return m.path
}
