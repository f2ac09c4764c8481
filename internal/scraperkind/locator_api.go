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

	"github.com/tombarlow/storeharvester/internal/pipeline"
)

// GeoQuery is one point the locator API is queried with: either a ZIP code
// or a lat/lng pair, depending on what the retailer's endpoint accepts.
type GeoQuery struct {
	ZIP       string
	Latitude  float64
	Longitude float64
}

// LocatorAPIKind discovers store identifiers by POSTing a fixed list of
// geographic queries to a JSON locator endpoint and de-duplicating the
// store ids returned across all of them. Unlike the sitemap family, the
// "URLs" this kind discovers are the store ids Query returns, unchanged
// — Extract is expected to look the id up again (or use data embedded by a
// prior Query call) rather than treat the identifier as a fetchable URL.
type LocatorAPIKind struct {
	Queries []GeoQuery

	// Query performs one locator API call and returns the store ids found
	// for that query. The retailer-specific request/response shape is out
	// of this package's scope; Query is where that parsing happens.
	Query func(ctx context.Context, p *pipeline.Pipeline, q GeoQuery) ([]string, error)
}

// Discover implements Discoverer.
func (k LocatorAPIKind) Discover(ctx context.Context, p *pipeline.Pipeline) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string

	for _, q := range k.Queries {
		if ctx.Err() != nil {
			return ids, ctx.Err()
		}
		found, err := k.Query(ctx, p, q)
		if err != nil {
			return nil, fmt.Errorf("locator_api query %+v: %w", q, err)
		}
		for _, id := range found {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}
