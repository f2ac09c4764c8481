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

package retailer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(name string) *Config {
	return &Config{
		Name:                     name,
		Enabled:                  true,
		BaseURL:                  "https://example.com",
		DiscoveryMethod:          Sitemap,
		SitemapURL:               "https://example.com/sitemap.xml",
		ParallelWorkers:          2,
		CheckpointInterval:       10,
		MinDelayMS:               500,
		MaxDelayMS:               1500,
		RateLimitBaseWaitSeconds: 30,
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid config passes", func(t *testing.T) {
		require.NoError(t, validConfig("acme").Validate())
	})

	t.Run("missing name", func(t *testing.T) {
		cfg := validConfig("acme")
		cfg.Name = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("invalid discovery method", func(t *testing.T) {
		cfg := validConfig("acme")
		cfg.DiscoveryMethod = "carrier_pigeon"
		assert.Error(t, cfg.Validate())
	})

	t.Run("crawl-delay hint violation", func(t *testing.T) {
		cfg := validConfig("acme")
		cfg.MinCrawlDelayMS = 5000
		cfg.MinDelayMS = 500
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive numerics rejected", func(t *testing.T) {
		cfg := validConfig("acme")
		cfg.ParallelWorkers = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestValidateFile_CollectsAllProblems(t *testing.T) {
	raw := []byte(`
retailers:
  verizon:
    enabled: true
    base_url: ""
    discovery_method: sitemap
    parallel_workers: 1
    checkpoint_interval: 10
    min_delay_ms: 500
    max_delay_ms: 1500
    rate_limit_base_wait_seconds: 30
`)
	_, problems := ValidateFile(raw)
	require.NotEmpty(t, problems)
	assert.Contains(t, problems[0], "base_url")
}

func TestFileSave_AtomicRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "retailers.yaml")

	f := &File{Retailers: map[string]*Config{"acme": validConfig("acme")}}
	require.NoError(t, Save(path, f))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	require.Contains(t, loaded.Retailers, "acme")
	assert.Equal(t, "https://example.com", loaded.Retailers["acme"].BaseURL)
}

func TestBackup_NoFileYet(t *testing.T) {
	dir := t.TempDir()
	dest, err := Backup(filepath.Join(dir, "missing.yaml"), filepath.Join(dir, "backups"))
	require.NoError(t, err)
	assert.Empty(t, dest)
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	defaultRegistry = &Registry{byName: make(map[string]*Config)}
	Register(validConfig("registry-test"))

	cfg, ok := Get("registry-test")
	require.True(t, ok)
	assert.Equal(t, "registry-test", cfg.Name)

	assert.Contains(t, Names(), "registry-test")
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	defaultRegistry = &Registry{byName: make(map[string]*Config)}
	Register(validConfig("dup"))
	assert.Panics(t, func() {
		Register(validConfig("dup"))
	})
}
