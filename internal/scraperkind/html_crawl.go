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
	"encoding/json"
	"fmt"

	"github.com/tombarlow/storeharvester/internal/checkpoint"
	"github.com/tombarlow/storeharvester/internal/pipeline"
)

// htmlCrawlPhaseData is the PhaseData persisted in the retailer's
// checkpoint between the three html_crawl phases, so a crash partway
// through city-page enumeration resumes at that phase instead of
// re-walking the list pages.
type htmlCrawlPhaseData struct {
	ListPages []string `json:"list_pages,omitempty"`
	CityPages []string `json:"city_pages,omitempty"`
	StoreURLs []string `json:"store_urls,omitempty"`
}

// HTMLCrawlKind discovers store URLs by walking three phases of an HTML
// site: a top-level list of pages (e.g. a state index), the city pages
// linked from each, and finally the store URLs linked from each city page.
// Each of the three phases is persisted independently so a crash resumes
// at the right phase rather than restarting the whole crawl.
type HTMLCrawlKind struct {
	ListPages func(ctx context.Context, p *pipeline.Pipeline) ([]string, error)
	CityPages func(ctx context.Context, p *pipeline.Pipeline, listPageURL string) ([]string, error)
	StoreURLs func(ctx context.Context, p *pipeline.Pipeline, cityPageURL string) ([]string, error)

	// Checkpoint is the same per-retailer checkpoint store the extraction
	// framework uses; PhaseData is a distinct field from Completed/Partial
	// so the two don't collide.
	Checkpoint *checkpoint.Manager
}

// Discover implements Discoverer.
func (k HTMLCrawlKind) Discover(ctx context.Context, p *pipeline.Pipeline) ([]string, error) {
	cp, err := k.Checkpoint.Load()
	if err != nil {
		return nil, err
	}
	if cp == nil {
		cp = &checkpoint.Checkpoint{Completed: map[string]bool{}}
	}

	var phase htmlCrawlPhaseData
	if len(cp.PhaseData) > 0 {
		if err := json.Unmarshal(cp.PhaseData, &phase); err != nil {
			return nil, fmt.Errorf("decoding html_crawl phase data: %w", err)
		}
	}

	if phase.ListPages == nil {
		pages, err := k.ListPages(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("html_crawl list-page phase: %w", err)
		}
		phase.ListPages = pages
		if err := k.savePhase(cp, phase); err != nil {
			return nil, err
		}
	}

	if phase.CityPages == nil {
		var cities []string
		for _, lp := range phase.ListPages {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			cs, err := k.CityPages(ctx, p, lp)
			if err != nil {
				continue
			}
			cities = append(cities, cs...)
		}
		phase.CityPages = cities
		if err := k.savePhase(cp, phase); err != nil {
			return nil, err
		}
	}

	if phase.StoreURLs == nil {
		seen := make(map[string]bool)
		var urls []string
		for _, cityURL := range phase.CityPages {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			su, err := k.StoreURLs(ctx, p, cityURL)
			if err != nil {
				continue
			}
			for _, u := range su {
				if !seen[u] {
					seen[u] = true
					urls = append(urls, u)
				}
			}
		}
		phase.StoreURLs = urls
		if err := k.savePhase(cp, phase); err != nil {
			return nil, err
		}
	}

	return phase.StoreURLs, nil
}

func (k HTMLCrawlKind) savePhase(cp *checkpoint.Checkpoint, phase htmlCrawlPhaseData) error {
	raw, err := json.Marshal(phase)
	if err != nil {
		return fmt.Errorf("encoding html_crawl phase data: %w", err)
	}
	cp.PhaseData = raw
	return k.Checkpoint.Save(cp)
}
