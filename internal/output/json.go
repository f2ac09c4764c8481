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

// WriteJSON writes stores to w as a plain JSON array, matching the shape of
// data/{retailer}/output/stores_latest.json.
func WriteJSON(w io.Writer, stores []store.Store) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(stores)
}

// Write dispatches to the serializer for format.
func Write(w io.Writer, format Format, stores []store.Store) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, stores)
	case FormatGeoJSON:
		return WriteGeoJSON(w, stores)
	case FormatExcel:
		return WriteExcel(w, stores)
	default:
		return WriteJSON(w, stores)
	}
}
