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
	"os"

	"github.com/tombarlow/storeharvester/internal/retailer"
)

// handleConfigGet serves GET /api/config: the effective retailers.yaml
// content. Credentials never appear here since Config carries none — they
// live in environment variables, never in YAML.
func (s *Server) handleConfigGet(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(s.cfg.ConfigPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read config: "+err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// configPostRequest is the body of POST /api/config.
type configPostRequest struct {
	Content string `json:"content"`
}

// handleConfigPost serves POST /api/config: validate, backup, atomic
// replace, reload, in that order, per §4.9's save-path contract. On any
// failure the active file and registry are untouched.
func (s *Server) handleConfigPost(w http.ResponseWriter, r *http.Request) {
	var req configPostRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	file, problems := retailer.ValidateFile([]byte(req.Content))
	if len(problems) > 0 {
		writeErrorDetails(w, http.StatusBadRequest, "config validation failed", problems)
		return
	}

	if _, err := retailer.Backup(s.cfg.ConfigPath, s.cfg.BackupDir); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to back up config: "+err.Error())
		return
	}

	if err := retailer.Save(s.cfg.ConfigPath, file); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save config: "+err.Error())
		return
	}

	retailer.ReplaceAll(file.Retailers)
	writeJSON(w, http.StatusOK, map[string]any{"status": "saved", "retailers": retailer.Names()})
}
