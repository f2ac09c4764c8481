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

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PutGetRoundTrip(t *testing.T) {
	c, err := New(t.TempDir(), time.Hour)
	require.NoError(t, err)

	require.NoError(t, c.Put("k1", []byte(`"hello"`)))
	got, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, []byte(`"hello"`), got)
}

func TestCache_ExpiredEntryIsMiss(t *testing.T) {
	c, err := New(t.TempDir(), time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, c.Put("k1", []byte(`"hello"`)))
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("k1")
	assert.False(t, ok)
}

func TestCache_MissingKeyIsMiss(t *testing.T) {
	c, err := New(t.TempDir(), time.Hour)
	require.NoError(t, err)

	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestURLSetCache_RoundTrip(t *testing.T) {
	uc, err := NewURLSetCache(t.TempDir(), time.Hour)
	require.NoError(t, err)

	urls := []string{"https://example.com/a", "https://example.com/b"}
	require.NoError(t, uc.Put("acme", urls))

	got, ok := uc.Get("acme")
	require.True(t, ok)
	assert.Equal(t, urls, got)
}

func TestResponseCache_RoundTrip(t *testing.T) {
	rc, err := NewResponseCache(t.TempDir(), time.Hour)
	require.NoError(t, err)

	require.NoError(t, rc.Put("acme", "https://example.com/a", []byte("<html></html>")))
	got, ok := rc.Get("acme", "https://example.com/a")
	require.True(t, ok)
	assert.Equal(t, []byte("<html></html>"), got)
}

func TestKey_IsDeterministicAndRetailerScoped(t *testing.T) {
	a := Key("acme", "https://example.com/a")
	b := Key("other", "https://example.com/a")
	assert.Equal(t, a, Key("acme", "https://example.com/a"))
	assert.NotEqual(t, a, b)
}
