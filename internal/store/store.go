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

// Package store defines the canonical Store record emitted by every
// retailer scraper, along with the validation and sanitization rules that
// every record must pass before it is persisted or exported.
package store

import "time"

// Store is the normalized record produced for every physical retail
// location, regardless of which retailer or scraper-kind discovered it.
type Store struct {
	StoreID        string         `json:"store_id"`
	Name           string         `json:"name"`
	StreetAddress  string         `json:"street_address"`
	City           string         `json:"city"`
	State          string         `json:"state"`
	PostalCode     string         `json:"postal_code"`
	Country        string         `json:"country"`
	Latitude       *float64       `json:"latitude,omitempty"`
	Longitude      *float64       `json:"longitude,omitempty"`
	Phone          string         `json:"phone,omitempty"`
	URL            string         `json:"url"`
	ScrapedAt      time.Time      `json:"scraped_at"`
	Attributes     map[string]any `json:"attributes,omitempty"`
}

// HasAddress reports whether the minimum street-address identity fields are present.
func (s *Store) HasAddress() bool {
	return s.StreetAddress != "" && s.City != "" && s.State != ""
}

// HasCoordinates reports whether both latitude and longitude are present.
func (s *Store) HasCoordinates() bool {
	return s.Latitude != nil && s.Longitude != nil
}
