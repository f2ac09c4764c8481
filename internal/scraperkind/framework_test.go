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
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombarlow/storeharvester/internal/checkpoint"
	"github.com/tombarlow/storeharvester/internal/pacer"
	"github.com/tombarlow/storeharvester/internal/pipeline"
	"github.com/tombarlow/storeharvester/internal/store"
	"github.com/tombarlow/storeharvester/internal/transport"
)

func testPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	tr, err := transport.New(transport.Config{Mode: transport.Direct, UserAgent: "test/1.0"})
	require.NoError(t, err)

	pacerCfg := pacer.DefaultConfig()
	pacerCfg.Direct = pacer.DelayProfile{MinMillis: 0, MaxMillis: 0}
	pacerCfg.RateLimitBaseWait = time.Millisecond
	return pipeline.New(tr, pacer.New(pacerCfg, "acme"), pipeline.DefaultOptions(), false, nil, "acme")
}

func testManager(t *testing.T) *checkpoint.Manager {
	t.Helper()
	m, err := checkpoint.NewManager(t.TempDir(), "acme")
	require.NoError(t, err)
	return m
}

func TestSitemapKind_DiscoverFiltersPattern(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?>
<urlset>
  <url><loc>https://acme.example/store/1</loc></url>
  <url><loc>https://acme.example/about</loc></url>
  <url><loc>https://acme.example/store/2</loc></url>
</urlset>`)
	}))
	defer srv.Close()

	k := SitemapKind{SitemapURL: srv.URL, Pattern: regexp.MustCompile(`/store/\d+$`)}
	urls, err := k.Discover(context.Background(), testPipeline(t))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"https://acme.example/store/1", "https://acme.example/store/2"}, urls)
}

func TestFramework_Run_HappyPath(t *testing.T) {
	urls := []string{"https://acme.example/store/1", "https://acme.example/store/2"}
	kind := Kind{
		Name: "sitemap",
		Discoverer: staticDiscoverer{urls: urls},
		Extractor: ExtractorFunc(func(_ context.Context, _ *pipeline.Pipeline, id string) (*store.Store, error) {
			return &store.Store{
				StoreID:       id,
				Name:          "Acme " + id,
				StreetAddress: "1 Main St",
				City:          "Springfield",
				State:         "IL",
				URL:           id,
				ScrapedAt:     time.Now().UTC(),
			}, nil
		}),
	}

	fw := New(kind, testManager(t), nil)
	result, err := fw.Run(context.Background(), testPipeline(t), RunOptions{Workers: 2, CheckpointInterval: 1})
	require.NoError(t, err)
	assert.Len(t, result.Stores, 2)
	assert.Equal(t, 2, result.RequestsMade)
	assert.Empty(t, result.Errors)
}

func TestFramework_Run_SkipsBadStoresButContinues(t *testing.T) {
	urls := []string{"ok-1", "bad-1", "ok-2"}
	kind := Kind{
		Discoverer: staticDiscoverer{urls: urls},
		Extractor: ExtractorFunc(func(_ context.Context, _ *pipeline.Pipeline, id string) (*store.Store, error) {
			if id == "bad-1" {
				return nil, fmt.Errorf("boom")
			}
			return &store.Store{
				StoreID:   id,
				Name:      "Store " + id,
				Latitude:  floatPtr(40.0),
				Longitude: floatPtr(-88.0),
				URL:       id,
				ScrapedAt: time.Now().UTC(),
			}, nil
		}),
	}

	fw := New(kind, testManager(t), nil)
	result, err := fw.Run(context.Background(), testPipeline(t), RunOptions{Workers: 1, CheckpointInterval: 10})
	require.NoError(t, err)
	assert.Len(t, result.Stores, 2)
	assert.Len(t, result.Errors, 1)
}

func TestFramework_Run_ResumeSkipsCompleted(t *testing.T) {
	urls := []string{"s1", "s2", "s3"}
	calls := map[string]int{}
	kind := Kind{
		Discoverer: staticDiscoverer{urls: urls},
		Extractor: ExtractorFunc(func(_ context.Context, _ *pipeline.Pipeline, id string) (*store.Store, error) {
			calls[id]++
			return &store.Store{
				StoreID:   id,
				Name:      "Store " + id,
				Latitude:  floatPtr(1),
				Longitude: floatPtr(1),
				URL:       id,
				ScrapedAt: time.Now().UTC(),
			}, nil
		}),
	}

	mgr := testManager(t)
	fw := New(kind, mgr, nil)

	_, err := fw.Run(context.Background(), testPipeline(t), RunOptions{Workers: 1, CheckpointInterval: 1})
	require.NoError(t, err)

	require.NoError(t, mgr.Save(&checkpoint.Checkpoint{
		Completed: map[string]bool{"s1": true, "s2": true},
		Partial: []store.Store{
			{StoreID: "s1", Name: "Store s1", Latitude: floatPtr(1), Longitude: floatPtr(1), URL: "s1", ScrapedAt: time.Now().UTC()},
			{StoreID: "s2", Name: "Store s2", Latitude: floatPtr(1), Longitude: floatPtr(1), URL: "s2", ScrapedAt: time.Now().UTC()},
		},
	}))

	calls = map[string]int{}
	result, err := fw.Run(context.Background(), testPipeline(t), RunOptions{Workers: 1, CheckpointInterval: 1, Resume: true})
	require.NoError(t, err)
	assert.Equal(t, 1, calls["s3"])
	assert.Zero(t, calls["s1"])
	assert.Zero(t, calls["s2"])
	assert.Len(t, result.Stores, 3)
}

type staticDiscoverer struct{ urls []string }

func (s staticDiscoverer) Discover(context.Context, *pipeline.Pipeline) ([]string, error) {
	return s.urls, nil
}

func floatPtr(f float64) *float64 { return &f }
