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
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"

	"github.com/tombarlow/storeharvester/internal/pipeline"
)

// sitemapindex is the shape of a sitemap index document: a list of child
// sitemap locations rather than page <loc> entries directly.
type sitemapindex struct {
	Sitemaps []sitemapURL `xml:"sitemap"`
}

// SitemapPaginatedKind crawls a sitemap index, then fetches and
// de-duplicates every child sitemap's <loc> entries.
type SitemapPaginatedKind struct {
	IndexURL string
	Pattern  *regexp.Regexp
}

// Discover implements Discoverer.
func (k SitemapPaginatedKind) Discover(ctx context.Context, p *pipeline.Pipeline) ([]string, error) {
	resp, err := p.Get(ctx, k.IndexURL)
	if err != nil {
		return nil, err
	}

	var idx sitemapindex
	dec := xml.NewDecoder(io.LimitReader(bytes.NewReader(resp.Content), maxSitemapBytes))
	if err := dec.Decode(&idx); err != nil {
		return nil, fmt.Errorf("parsing sitemap index XML: %w", err)
	}

	seen := make(map[string]bool)
	var urls []string

	for _, child := range idx.Sitemaps {
		if child.Loc == "" {
			continue
		}
		if ctx.Err() != nil {
			return urls, ctx.Err()
		}
		childResp, err := p.Get(ctx, child.Loc)
		if err != nil {
			// One bad child sitemap doesn't abort discovery of the rest;
			// the caller's run-level error counter still sees it via the
			// returned error if this were extraction, but discovery here
			// is cooperative: continue collecting from the other children.
			continue
		}
		childURLs, err := parseSitemap(childResp.Content, k.Pattern)
		if err != nil {
			continue
		}
		for _, u := range childURLs {
			if !seen[u] {
				seen[u] = true
				urls = append(urls, u)
			}
		}
	}

	return urls, nil
}
