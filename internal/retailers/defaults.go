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

// Package retailers registers the harvester's built-in retailer configs.
// Real deployments are expected to replace or extend this set entirely
// through config/retailers.yaml; these three ship as working examples that
// exercise every sitemap-family discovery method without depending on a
// retailer-specific parser package.
package retailers

import "github.com/tombarlow/storeharvester/internal/retailer"

func init() {
	retailer.Register(&retailer.Config{
		Name:                     "northstar-hardware",
		Enabled:                  true,
		BaseURL:                  "https://www.northstar-hardware.example",
		DiscoveryMethod:          retailer.Sitemap,
		SitemapURL:               "https://www.northstar-hardware.example/sitemap-stores.xml",
		SitemapPattern:           `/stores/[a-z0-9-]+$`,
		ParallelWorkers:          4,
		CheckpointInterval:       25,
		MinDelayMS:               1000,
		MaxDelayMS:               3000,
		RateLimitBaseWaitSeconds: 30,
		Incremental:              retailer.IncrementalByURL,
	})

	retailer.Register(&retailer.Config{
		Name:                     "coastal-pharmacy",
		Enabled:                  true,
		BaseURL:                  "https://locations.coastal-pharmacy.example",
		DiscoveryMethod:          retailer.SitemapGzip,
		SitemapURL:               "https://locations.coastal-pharmacy.example/sitemap-locations.xml.gz",
		SitemapPattern:           `/locations/\d+$`,
		ParallelWorkers:          2,
		CheckpointInterval:       50,
		MinDelayMS:               1500,
		MaxDelayMS:               4000,
		RateLimitBaseWaitSeconds: 45,
		Incremental:              retailer.IncrementalByStoreID,
	})

	retailer.Register(&retailer.Config{
		Name:                     "summit-outdoors",
		Enabled:                  true,
		BaseURL:                  "https://www.summit-outdoors.example",
		DiscoveryMethod:          retailer.SitemapPaginated,
		SitemapURL:               "https://www.summit-outdoors.example/sitemap-index.xml",
		SitemapPattern:           `/store-locator/[a-z-]+/[a-z0-9-]+$`,
		ParallelWorkers:          3,
		CheckpointInterval:       25,
		MinDelayMS:               800,
		MaxDelayMS:               2500,
		RateLimitBaseWaitSeconds: 30,
		Incremental:              retailer.IncrementalByURL,
	})
}
