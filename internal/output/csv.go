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
	"encoding/csv"
	"io"

	"github.com/tombarlow/storeharvester/internal/store"
)

// WriteCSV writes stores to w as a header row plus one row per store, using
// Fieldnames for column order. Values already passed through store.Sanitize
// so no further formula-injection guarding happens here.
func WriteCSV(w io.Writer, stores []store.Store) error {
	fields := Fieldnames(stores)

	cw := csv.NewWriter(w)
	if err := cw.Write(fields); err != nil {
		return err
	}
	for _, s := range stores {
		r := row(s, fields)
		record := make([]string, len(fields))
		for i, f := range fields {
			record[i] = r[f]
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
