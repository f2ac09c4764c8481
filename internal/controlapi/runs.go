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
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/tombarlow/storeharvester/internal/retailer"
	"github.com/tombarlow/storeharvester/internal/runtracker"
)

// handleRuns serves GET /api/runs/{retailer}?limit=N.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("retailer")
	if _, ok := retailer.Get(name); !ok {
		writeError(w, http.StatusNotFound, "unknown retailer "+name)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	runsDir := filepath.Join(s.cfg.DataDir, name, "runs")
	runs, err := runtracker.ListRuns(runsDir, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list runs: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"retailer": name, "runs": runs})
}
