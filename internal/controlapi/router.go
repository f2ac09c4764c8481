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

import "net/http"

// registerRoutes wires every §4.9 endpoint onto the mux using Go's
// method+pattern routing. Mutating endpoints are wrapped with requireCSRF
// and requireJSONBody; GET endpoints are not.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/csrf-token", s.handleCSRFToken)

	s.mux.HandleFunc("GET /api/status", s.handleStatusAll)
	s.mux.HandleFunc("GET /api/status/{retailer}", s.handleStatusOne)

	s.mux.HandleFunc("POST /api/scraper/start", s.requireCSRF(s.requireJSONBody(s.handleScraperStart)))
	s.mux.HandleFunc("POST /api/scraper/stop", s.requireCSRF(s.requireJSONBody(s.handleScraperStop)))
	s.mux.HandleFunc("POST /api/scraper/restart", s.requireCSRF(s.requireJSONBody(s.handleScraperRestart)))

	s.mux.HandleFunc("GET /api/runs/{retailer}", s.handleRuns)
	s.mux.HandleFunc("GET /api/logs/{retailer}/{run_id}", s.handleLogs)

	s.mux.HandleFunc("GET /api/config", s.handleConfigGet)
	s.mux.HandleFunc("POST /api/config", s.requireCSRF(s.requireJSONBody(s.handleConfigPost)))

	s.mux.HandleFunc("GET /api/export/{retailer}/{format}", s.handleExportOne)
	s.mux.HandleFunc("POST /api/export/multi", s.requireCSRF(s.requireJSONBody(s.handleExportMulti)))
}

// requireJSONBody enforces the "all mutating endpoints require
// application/json" rule, returning 415 otherwise.
func (s *Server) requireJSONBody(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct != "application/json" && ct != "application/json; charset=utf-8" {
			writeError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
			return
		}
		next(w, r)
	}
}
