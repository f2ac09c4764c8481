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

// Package changedetect classifies stores between two runs as new, closed,
// modified, or unchanged by comparing stable identity hashes and broader
// fingerprint hashes. It never mutates its inputs.
package changedetect

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/tombarlow/storeharvester/internal/store"
)

// FieldDiff describes how a single field changed between runs.
type FieldDiff struct {
	Before any `json:"before"`
	After  any `json:"after"`
}

// Modification is one store whose identity persisted but whose fingerprint
// changed.
type Modification struct {
	StoreID       string               `json:"store_id"`
	FieldsChanged map[string]FieldDiff `json:"fields_changed"`
}

// Report is the classification result of a single diff.
type Report struct {
	New            []store.Store  `json:"new"`
	Closed         []store.Store  `json:"closed"`
	Modified       []Modification `json:"modified"`
	UnchangedCount int            `json:"unchanged_count"`
	TotalCurrent   int            `json:"total_current"`
	Collisions     int            `json:"collisions"`
}

// identityKey computes the stable SHA-256 hex identity hash for a store:
// over (name, street_address, city, state, zip, phone) with normalized
// whitespace/casing, prefixed with the retailer's own store_id when present
// so identity survives address-formatting drift.
func identityKey(s store.Store) string {
	fields := []string{s.Name, s.StreetAddress, s.City, s.State, s.PostalCode, s.Phone}
	normalized := make([]string, len(fields))
	for i, f := range fields {
		normalized[i] = strings.ToLower(strings.Join(strings.Fields(f), " "))
	}
	payload := strings.Join(normalized, "|")
	if s.StoreID != "" {
		payload = s.StoreID + "|" + payload
	}
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// fingerprint computes a broader hash covering identity fields plus
// coordinates, hours/services attributes, and the scraped URL. Two stores
// with equal identityKey but different fingerprint are "modified".
func fingerprint(s store.Store) string {
	lat, lng := "", ""
	if s.Latitude != nil {
		lat = fmt.Sprintf("%.6f", *s.Latitude)
	}
	if s.Longitude != nil {
		lng = fmt.Sprintf("%.6f", *s.Longitude)
	}

	payload := strings.Join([]string{
		identityKey(s), lat, lng, s.URL, attributesSignature(s.Attributes),
	}, "|")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// attributesSignature produces a deterministic string for a map so two
// equal maps fingerprint identically regardless of iteration order.
func attributesSignature(attrs map[string]any) string {
	if len(attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v;", k, attrs[k])
	}
	return b.String()
}

// index builds an identity-key -> store index, disambiguating collisions
// with a "::N" suffix on the second and subsequent occurrence so no store
// is ever silently dropped. It returns the index and the collision count.
func index(stores []store.Store) (map[string]store.Store, int) {
	idx := make(map[string]store.Store, len(stores))
	seen := make(map[string]int)
	collisions := 0

	for _, s := range stores {
		key := identityKey(s)
		n := seen[key]
		seen[key] = n + 1

		effectiveKey := key
		if n > 0 {
			collisions++
			effectiveKey = fmt.Sprintf("%s::%d", key, n)
		}
		idx[effectiveKey] = s
	}
	return idx, collisions
}

// Diff compares previous and current store lists and returns a
// deterministic Report. Ordering of the input slices never affects the
// resulting classification, only ordering within a bucket.
func Diff(previous, current []store.Store) Report {
	prevIdx, prevCollisions := index(previous)
	curIdx, curCollisions := index(current)

	report := Report{
		TotalCurrent: len(current),
		Collisions:   prevCollisions + curCollisions,
	}

	// Classify against the effective (collision-suffixed) keys in curIdx and
	// prevIdx directly, never against the raw identity key: curIdx already
	// guarantees a distinct key per current store, so iterating it one entry
	// at a time guarantees every current store is classified exactly once,
	// collided or not.
	seenKeys := make(map[string]bool, len(curIdx))
	for key, cur := range curIdx {
		seenKeys[key] = true
		prev, existed := prevIdx[key]
		if !existed {
			report.New = append(report.New, cur)
			continue
		}
		if fingerprint(prev) == fingerprint(cur) {
			report.UnchangedCount++
			continue
		}
		report.Modified = append(report.Modified, Modification{
			StoreID:       cur.StoreID,
			FieldsChanged: diffFields(prev, cur),
		})
	}

	for key, prev := range prevIdx {
		if !seenKeys[key] {
			report.Closed = append(report.Closed, prev)
		}
	}

	return report
}

// diffFields returns the subset of compared fields that differ between two
// stores sharing an identity key.
func diffFields(prev, cur store.Store) map[string]FieldDiff {
	diffs := map[string]FieldDiff{}

	strFields := []struct {
		name       string
		prev, cur string
	}{
		{"name", prev.Name, cur.Name},
		{"street_address", prev.StreetAddress, cur.StreetAddress},
		{"city", prev.City, cur.City},
		{"state", prev.State, cur.State},
		{"postal_code", prev.PostalCode, cur.PostalCode},
		{"phone", prev.Phone, cur.Phone},
		{"url", prev.URL, cur.URL},
	}
	for _, f := range strFields {
		if f.prev != f.cur {
			diffs[f.name] = FieldDiff{Before: f.prev, After: f.cur}
		}
	}

	if !floatPtrEqual(prev.Latitude, cur.Latitude) {
		diffs["latitude"] = FieldDiff{Before: prev.Latitude, After: cur.Latitude}
	}
	if !floatPtrEqual(prev.Longitude, cur.Longitude) {
		diffs["longitude"] = FieldDiff{Before: prev.Longitude, After: cur.Longitude}
	}
	if attributesSignature(prev.Attributes) != attributesSignature(cur.Attributes) {
		diffs["attributes"] = FieldDiff{Before: prev.Attributes, After: cur.Attributes}
	}

	return diffs
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}
