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

package runtracker

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombarlow/storeharvester/internal/ledger"
)

func TestAllocateRunID_Format(t *testing.T) {
	now := time.Date(2026, 7, 29, 10, 30, 0, 0, time.UTC)
	id := AllocateRunID("acme", now)
	assert.Regexp(t, `^acme_20260729_103000_[0-9a-f]{4}$`, id)
}

func TestTracker_HappyPathWritesMetadataAndLedger(t *testing.T) {
	dir := t.TempDir()
	led, err := ledger.New(filepath.Join(dir, ".runs", "ledger.jsonl"))
	require.NoError(t, err)

	now := time.Now()
	tr, err := New(filepath.Join(dir, "acme", "runs"), "acme", RunConfig{Resume: false, Limit: 10}, 0, led, now)
	require.NoError(t, err)

	require.NoError(t, tr.UpdateStats(Stats{StoresScraped: 2, RequestsMade: 2}))
	require.NoError(t, tr.Complete(now.Add(time.Second)))

	meta, err := Load(tr.Path())
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, meta.Status)
	assert.Equal(t, 2, meta.Stats.StoresScraped)
	require.NotNil(t, meta.CompletedAt)

	entries, err := ledger.ReadAll(filepath.Join(dir, ".runs", "ledger.jsonl"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "complete", entries[0].Status)
	assert.Equal(t, 2, entries[0].StoresScraped)
}

func TestTracker_FailAppendsErrorAndLedger(t *testing.T) {
	dir := t.TempDir()
	led, err := ledger.New(filepath.Join(dir, ".runs", "ledger.jsonl"))
	require.NoError(t, err)

	tr, err := New(filepath.Join(dir, "acme", "runs"), "acme", RunConfig{}, 1234, led, time.Now())
	require.NoError(t, err)

	require.NoError(t, tr.Fail("disk full", time.Now()))

	meta, err := Load(tr.Path())
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, meta.Status)
	require.NotEmpty(t, meta.Errors)
	assert.Equal(t, "disk full", meta.Errors[len(meta.Errors)-1].Message)

	entries, err := ledger.ReadAll(filepath.Join(dir, ".runs", "ledger.jsonl"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "failed", entries[0].Status)
}

func TestListRuns_SortedDescendingAndLimited(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "runs")
	base := time.Now()
	for i, delta := range []time.Duration{0, time.Minute, 2 * time.Minute} {
		tr, err := New(dir, "acme", RunConfig{}, 0, nil, base.Add(delta))
		require.NoError(t, err)
		_ = i
		require.NoError(t, tr.Complete(base.Add(delta + time.Second)))
	}

	runs, err := ListRuns(dir, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt))
}
