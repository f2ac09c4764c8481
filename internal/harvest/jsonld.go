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

package harvest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/tombarlow/storeharvester/internal/store"
)

// localBusinessTypes are the schema.org @type values this extractor treats
// as a physical store location. Retailers whose markup uses a narrower or
// custom type are expected to register their own scraperkind.Extractor
// rather than rely on this fallback.
var localBusinessTypes = map[string]bool{
	"LocalBusiness": true,
	"Store":         true,
	"Place":         true,
	"GroceryStore":  true,
	"ClothingStore": true,
	"Pharmacy":      true,
}

// jsonLDLocalBusiness is the subset of schema.org's LocalBusiness shape this
// extractor understands. Unrecognized fields are ignored rather than
// rejected, since retailers vary widely in which optional properties they
// emit.
type jsonLDLocalBusiness struct {
	Type    any            `json:"@type"`
	Name    string         `json:"name"`
	ID      string         `json:"@id"`
	URL     string         `json:"url"`
	Phone   string         `json:"telephone"`
	Address jsonLDAddress  `json:"address"`
	Geo     jsonLDGeo      `json:"geo"`
}

type jsonLDAddress struct {
	StreetAddress   string `json:"streetAddress"`
	AddressLocality string `json:"addressLocality"`
	AddressRegion   string `json:"addressRegion"`
	PostalCode      string `json:"postalCode"`
	AddressCountry  string `json:"addressCountry"`
}

type jsonLDGeo struct {
	Latitude  jsonLDNumber `json:"latitude"`
	Longitude jsonLDNumber `json:"longitude"`
}

// jsonLDNumber accepts either a JSON number or a numeric string, since
// retailers are inconsistent about quoting coordinates in their markup.
type jsonLDNumber struct {
	set   bool
	value float64
}

func (n *jsonLDNumber) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parsing JSON-LD numeric field %q: %w", s, err)
	}
	n.set = true
	n.value = v
	return nil
}

// extractJSONLDStore scans an HTML document for a schema.org LocalBusiness
// JSON-LD block and converts the first matching one into a Store. It
// returns (nil, nil) when the page has no recognizable store markup, which
// the scraperkind.Extractor contract treats as "legitimately nothing here".
func extractJSONLDStore(pageURL string, body []byte, now time.Time) (*store.Store, error) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML for JSON-LD: %w", err)
	}

	var found *jsonLDLocalBusiness
	walkScripts(doc, func(raw string) {
		if found != nil {
			return
		}
		for _, candidate := range splitJSONLDDocuments(raw) {
			var biz jsonLDLocalBusiness
			if err := json.Unmarshal(candidate, &biz); err != nil {
				continue
			}
			if isLocalBusinessType(biz.Type) && (biz.Name != "" || biz.Address.StreetAddress != "") {
				found = &biz
				return
			}
		}
	})
	if found == nil {
		return nil, nil
	}

	s := &store.Store{
		StoreID:       storeIDFromJSONLD(*found, pageURL),
		Name:          found.Name,
		StreetAddress: found.Address.StreetAddress,
		City:          found.Address.AddressLocality,
		State:         found.Address.AddressRegion,
		PostalCode:    found.Address.PostalCode,
		Country:       found.Address.AddressCountry,
		Phone:         found.Phone,
		URL:           pageURL,
		ScrapedAt:     now.UTC(),
	}
	if found.Geo.Latitude.set && found.Geo.Longitude.set {
		lat, lng := found.Geo.Latitude.value, found.Geo.Longitude.value
		s.Latitude = &lat
		s.Longitude = &lng
	}
	return s, nil
}

func storeIDFromJSONLD(biz jsonLDLocalBusiness, pageURL string) string {
	if biz.ID != "" {
		return biz.ID
	}
	if biz.URL != "" {
		return biz.URL
	}
	return pageURL
}

func isLocalBusinessType(t any) bool {
	switch v := t.(type) {
	case string:
		return localBusinessTypes[v]
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok && localBusinessTypes[s] {
				return true
			}
		}
	}
	return false
}

// splitJSONLDDocuments handles both a single JSON object and a top-level
// JSON array of objects inside one <script> block.
func splitJSONLDDocuments(raw string) [][]byte {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var arr []json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &arr); err != nil {
			return nil
		}
		docs := make([][]byte, 0, len(arr))
		for _, d := range arr {
			docs = append(docs, d)
		}
		return docs
	}
	return [][]byte{[]byte(trimmed)}
}

// walkScripts calls fn with the text content of every
// <script type="application/ld+json"> element in doc.
func walkScripts(n *html.Node, fn func(text string)) {
	if n.Type == html.ElementNode && n.Data == "script" && isJSONLDScript(n) {
		if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			fn(n.FirstChild.Data)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkScripts(c, fn)
	}
}

func isJSONLDScript(n *html.Node) bool {
	for _, attr := range n.Attr {
		if attr.Key == "type" && strings.EqualFold(attr.Val, "application/ld+json") {
			return true
		}
	}
	return false
}
