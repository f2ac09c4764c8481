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

package checkpoint

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombarlow/storeharvester/internal/store"
)

func TestManager_SaveLoadRoundTrip(t *testing.T) {
	m, err := NewManager(t.TempDir(), "acme")
	require.NoError(t, err)

	cp := &Checkpoint{
		Retailer:  "acme",
		Completed: map[string]bool{"https://example.com/a": true},
		Partial: []store.Store{
			{StoreID: "1", Name: "A", ScrapedAt: time.Now().UTC()},
		},
	}
	require.NoError(t, m.Save(cp))

	loaded, err := m.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "acme", loaded.Retailer)
	assert.True(t, loaded.Completed["https://example.com/a"])
	assert.Len(t, loaded.Partial, 1)
	assert.False(t, loaded.LastUpdated.IsZero())
}

func TestManager_LoadMissingReturnsNilNil(t *testing.T) {
	m, err := NewManager(t.TempDir(), "acme")
	require.NoError(t, err)

	loaded, err := m.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestManager_SaveNeverLeavesPartialFile(t *testing.T) {
	m, err := NewManager(t.TempDir(), "acme")
	require.NoError(t, err)

	require.NoError(t, m.Save(&Checkpoint{Retailer: "acme"}))

	entries, err := os.ReadDir(m.dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestManager_Delete(t *testing.T) {
	m, err := NewManager(t.TempDir(), "acme")
	require.NoError(t, err)

	require.NoError(t, m.Save(&Checkpoint{Retailer: "acme"}))
	require.NoError(t, m.Delete())

	loaded, err := m.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
