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

package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	l, err := New(path)
	require.NoError(t, err)

	require.NoError(t, l.Append(Entry{Retailer: "acme", RunID: "acme_1", Status: "complete", StartedAt: time.Now(), CompletedAt: time.Now()}))
	require.NoError(t, l.Append(Entry{Retailer: "acme", RunID: "acme_2", Status: "failed", StartedAt: time.Now(), CompletedAt: time.Now()}))

	entries, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "acme_1", entries[0].RunID)
	assert.Equal(t, "acme_2", entries[1].RunID)
}

func TestReadAll_TolersPartialTailLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	l, err := New(path)
	require.NoError(t, err)
	require.NoError(t, l.Append(Entry{Retailer: "acme", RunID: "acme_1", Status: "complete"}))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"retailer":"acme","run_id":"acme_2",`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	entries, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "acme_1", entries[0].RunID)
}

func TestReadAll_MissingFile(t *testing.T) {
	entries, err := ReadAll(filepath.Join(t.TempDir(), "missing.jsonl"))
	require.NoError(t, err)
	assert.Nil(t, entries)
}
