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

package output

import (
	"encoding/json"
	"io"

	"github.com/tombarlow/storeharvester/internal/store"
)

// geoFeatureCollection and geoFeature mirror the RFC 7946 shapes the
// control API's GeoJSON export promises; stores without coordinates are
// included with a null geometry rather than dropped.
type geoFeatureCollection struct {
	Type     string       `json:"type"`
	Features []geoFeature `json:"features"`
}

type geoFeature struct {
	Type       string         `json:"type"`
	Geometry   *geoGeometry   `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type geoGeometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// WriteGeoJSON writes stores to w as a GeoJSON FeatureCollection, one
// Feature per store, longitude/latitude order as RFC 7946 requires.
func WriteGeoJSON(w io.Writer, stores []store.Store) error {
	fc := geoFeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]geoFeature, 0, len(stores)),
	}
	for _, s := range stores {
		f := geoFeature{
			Type: "Feature",
			Properties: map[string]any{
				"store_id":       s.StoreID,
				"name":           s.Name,
				"street_address": s.StreetAddress,
				"city":           s.City,
				"state":          s.State,
				"postal_code":    s.PostalCode,
				"country":        s.Country,
				"phone":          s.Phone,
				"url":            s.URL,
				"scraped_at":     s.ScrapedAt.UTC(),
			},
		}
		for k, v := range s.Attributes {
			f.Properties[k] = v
		}
		if s.HasCoordinates() {
			f.Geometry = &geoGeometry{
				Type:        "Point",
				Coordinates: [2]float64{*s.Longitude, *s.Latitude},
			}
		}
		fc.Features = append(fc.Features, f)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(fc)
}
