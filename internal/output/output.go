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

// Package output serializes a retailer's current store list into the
// formats the control API and CLI export: JSON, CSV, GeoJSON, and Excel.
// Every serializer shares the same flattened field set, computed once by
// Fieldnames so CSV and Excel columns always agree with each other.
package output

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/tombarlow/storeharvester/internal/store"
)

// Format names one of the supported export formats.
type Format string

const (
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
	FormatGeoJSON Format = "geojson"
	FormatExcel   Format = "xlsx"
)

// ParseFormat validates a format string from a URL path segment or request
// body, returning an error that the control API renders as 400.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatCSV, FormatGeoJSON, FormatExcel:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type to set on the HTTP response for f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatGeoJSON:
		return "application/geo+json"
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// fieldSampleSize is N in "sorted union of the keys of the first N stores".
const fieldSampleSize = 100

// baseFields are the fixed Store columns every export carries regardless of
// what attributes individual stores happen to have.
var baseFields = []string{
	"store_id", "name", "street_address", "city", "state", "postal_code",
	"country", "latitude", "longitude", "phone", "url", "scraped_at",
}

// Fieldnames returns the sorted union of attribute keys across the first
// fieldSampleSize stores, appended after the fixed baseFields columns. A
// key present anywhere in the sampled range is never dropped, even if most
// stores in the sample lack it.
func Fieldnames(stores []store.Store) []string {
	sampled := stores
	if len(sampled) > fieldSampleSize {
		sampled = sampled[:fieldSampleSize]
	}

	seen := make(map[string]bool)
	for _, s := range sampled {
		for k := range s.Attributes {
			seen[k] = true
		}
	}

	extra := make([]string, 0, len(seen))
	for k := range seen {
		extra = append(extra, k)
	}
	sort.Strings(extra)

	return append(append([]string{}, baseFields...), extra...)
}

// row flattens one store into a field->value map keyed by the fields
// Fieldnames would compute for the same store list, for use by any
// row-oriented serializer (CSV, Excel).
func row(s store.Store, fields []string) map[string]string {
	out := make(map[string]string, len(fields))
	out["store_id"] = s.StoreID
	out["name"] = s.Name
	out["street_address"] = s.StreetAddress
	out["city"] = s.City
	out["state"] = s.State
	out["postal_code"] = s.PostalCode
	out["country"] = s.Country
	if s.Latitude != nil {
		out["latitude"] = strconv.FormatFloat(*s.Latitude, 'f', -1, 64)
	}
	if s.Longitude != nil {
		out["longitude"] = strconv.FormatFloat(*s.Longitude, 'f', -1, 64)
	}
	out["phone"] = s.Phone
	out["url"] = s.URL
	out["scraped_at"] = s.ScrapedAt.UTC().Format("2006-01-02T15:04:05Z")
	for k, v := range s.Attributes {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}
