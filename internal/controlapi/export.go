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

package controlapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/tombarlow/storeharvester/internal/output"
	"github.com/tombarlow/storeharvester/internal/retailer"
	"github.com/tombarlow/storeharvester/internal/store"
)

// loadLatestStores reads data/{retailer}/output/stores_latest.json.
func (s *Server) loadLatestStores(retailerName string) ([]store.Store, error) {
	path := filepath.Join(s.cfg.DataDir, retailerName, "output", "stores_latest.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var stores []store.Store
	if err := json.Unmarshal(data, &stores); err != nil {
		return nil, fmt.Errorf("parsing stores_latest.json: %w", err)
	}
	return stores, nil
}

// handleExportOne serves GET /api/export/{retailer}/{format}.
func (s *Server) handleExportOne(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("retailer")
	if _, ok := retailer.Get(name); !ok {
		writeError(w, http.StatusNotFound, "unknown retailer "+name)
		return
	}

	format, err := output.ParseFormat(r.PathValue("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stores, err := s.loadLatestStores(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "no export data for "+name)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, name, format))
	if err := output.Write(w, format, stores); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render export: "+err.Error())
	}
}

// exportMultiRequest is the body of POST /api/export/multi.
type exportMultiRequest struct {
	Retailers []string `json:"retailers"`
	Format    string   `json:"format"`
	Combine   bool     `json:"combine"`
}

// handleExportMulti serves POST /api/export/multi: combine=true merges
// every retailer's stores into one file; combine=false is rejected here
// since a single HTTP response cannot carry multiple distinct files — the
// spec leaves uncombined multi-export to repeated single-retailer calls.
func (s *Server) handleExportMulti(w http.ResponseWriter, r *http.Request) {
	var req exportMultiRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if len(req.Retailers) == 0 {
		writeError(w, http.StatusBadRequest, "retailers must not be empty")
		return
	}
	format, err := output.ParseFormat(req.Format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.Combine {
		writeError(w, http.StatusBadRequest, "combine=false is not supported by this endpoint; call GET /api/export/{retailer}/{format} per retailer")
		return
	}

	names, err := retailer.InGroup(req.Retailers)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var combined []store.Store
	for _, name := range names {
		stores, err := s.loadLatestStores(name)
		if err != nil {
			continue
		}
		combined = append(combined, stores...)
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="combined.%s"`, format))
	if err := output.Write(w, format, combined); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render export: "+err.Error())
	}
}
