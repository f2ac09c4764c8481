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

// Package scraperkind implements the discovery/extraction abstraction
// shared across every retailer: the outer loop, checkpointing, worker
// pool, validation, and progress counting live here once; each concrete
// kind (sitemap, sitemap_gzip, sitemap_paginated, html_crawl, locator_api)
// supplies only Discover and Extract.
package scraperkind

import (
	"context"

	"github.com/tombarlow/storeharvester/internal/pipeline"
	"github.com/tombarlow/storeharvester/internal/store"
)

// Discoverer produces the set of identifiers (URLs, or for locator_api the
// store ids its Query function returned) that Extract will be called with.
// Discovery runs sequentially; it is not expected to be safe for concurrent
// invocation and the framework never calls it from more than one
// goroutine.
type Discoverer interface {
	Discover(ctx context.Context, p *pipeline.Pipeline) ([]string, error)
}

// Extractor fetches and normalizes a single identifier into a Store. A nil
// Store with a nil error (e.g. a 404) and a non-nil error (a
// *pkgerrors.ParseError, or a transport failure the pipeline already
// retried) are handled alike: the framework logs a warning, records an
// entry in the result's Errors, counts the identifier as skipped, and the
// run continues.
type Extractor interface {
	Extract(ctx context.Context, p *pipeline.Pipeline, id string) (*store.Store, error)
}

// Kind bundles a Discoverer and Extractor under a name, matching the
// spec's enumerated scraper-kinds.
type Kind struct {
	Name string
	Discoverer
	Extractor
}

// ExtractorFunc adapts a plain function to the Extractor interface, the
// shape every retailer-specific parser package (outside this spec's scope)
// is expected to satisfy.
type ExtractorFunc func(ctx context.Context, p *pipeline.Pipeline, id string) (*store.Store, error)

// Extract implements Extractor.
func (f ExtractorFunc) Extract(ctx context.Context, p *pipeline.Pipeline, id string) (*store.Store, error) {
	return f(ctx, p, id)
}
