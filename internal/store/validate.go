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

package store

import (
	"strings"

	pkgerrors "github.com/tombarlow/storeharvester/pkg/errors"
)

// injectionPrefixes are the leading characters that make a string dangerous
// to open in a spreadsheet application (formula injection).
var injectionPrefixes = []byte{'=', '+', '-', '@', '\t', '\r'}

// Validate checks that s satisfies the invariants every emitted Store must
// meet, and returns a ValidationError describing the first violation found.
// Validate does not mutate s; callers that want sanitization applied should
// call Sanitize first.
func Validate(s *Store) error {
	if s.StoreID == "" {
		return &pkgerrors.ValidationError{Field: "store_id", Message: "store_id is required"}
	}
	if s.Name == "" {
		return &pkgerrors.ValidationError{Field: "name", Message: "name is required"}
	}
	if s.ScrapedAt.IsZero() {
		return &pkgerrors.ValidationError{Field: "scraped_at", Message: "scraped_at must be set"}
	}
	if !s.HasAddress() && !s.HasCoordinates() {
		return &pkgerrors.ValidationError{
			Field:   "street_address/city/state or latitude/longitude",
			Message: "store must have either a street address (street_address, city, state) or coordinates",
		}
	}
	if s.Latitude != nil && (*s.Latitude < -90 || *s.Latitude > 90) {
		return &pkgerrors.ValidationError{Field: "latitude", Message: "latitude must be within [-90, 90]"}
	}
	if s.Longitude != nil && (*s.Longitude < -180 || *s.Longitude > 180) {
		return &pkgerrors.ValidationError{Field: "longitude", Message: "longitude must be within [-180, 180]"}
	}
	for _, field := range []struct {
		name, value string
	}{
		{"name", s.Name},
		{"street_address", s.StreetAddress},
		{"city", s.City},
		{"state", s.State},
		{"postal_code", s.PostalCode},
		{"phone", s.Phone},
	} {
		if hasInjectionPrefix(field.value) {
			return &pkgerrors.ValidationError{
				Field:   field.name,
				Message: "value begins with a spreadsheet-formula-injection character",
			}
		}
	}
	return nil
}

// hasInjectionPrefix reports whether value would be interpreted as a formula
// by a spreadsheet application, excluding legitimate negative numerics (a
// leading '-' followed only by digits/decimal point is allowed).
func hasInjectionPrefix(value string) bool {
	if value == "" {
		return false
	}
	first := value[0]
	isPrefix := false
	for _, p := range injectionPrefixes {
		if first == p {
			isPrefix = true
			break
		}
	}
	if !isPrefix {
		return false
	}
	if first == '-' && isNegativeNumeric(value) {
		return false
	}
	return true
}

func isNegativeNumeric(value string) bool {
	rest := strings.TrimPrefix(value, "-")
	if rest == "" {
		return false
	}
	seenDigit := false
	for _, r := range rest {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
		case r == '.':
			// allowed
		default:
			return false
		}
	}
	return seenDigit
}

// Sanitize returns a copy of s with every top-level string field cleaned of
// spreadsheet-formula-injection prefixes; Attributes values are not changed.
// A string that starts with a dangerous character (other than a legitimate
// negative number) is prefixed with a single quote, the same mitigation
// spreadsheets themselves apply to force literal interpretation.
func Sanitize(s Store) Store {
	s.StoreID = sanitizeField(s.StoreID)
	s.Name = sanitizeField(s.Name)
	s.StreetAddress = sanitizeField(s.StreetAddress)
	s.City = sanitizeField(s.City)
	s.State = sanitizeField(s.State)
	s.PostalCode = sanitizeField(s.PostalCode)
	s.Phone = sanitizeField(s.Phone)
	s.Country = sanitizeField(s.Country)
	s.URL = sanitizeField(s.URL)
	return s
}

func sanitizeField(value string) string {
	if hasInjectionPrefix(value) {
		return "'" + value
	}
	return value
}
