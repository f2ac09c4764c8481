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

	"github.com/tombarlow/storeharvester/internal/retailer"
	"github.com/tombarlow/storeharvester/internal/runmanager"
)

// handleStatusAll serves GET /api/status: the live status of every
// registered retailer, running or not.
func (s *Server) handleStatusAll(w http.ResponseWriter, r *http.Request) {
	names := retailer.Names()
	statuses := make([]retailerStatusView, 0, len(names))
	for _, name := range names {
		statuses = append(statuses, toStatusView(s.manager.Status(name)))
	}
	writeJSON(w, http.StatusOK, map[string]any{"retailers": statuses})
}

// handleStatusOne serves GET /api/status/{retailer}.
func (s *Server) handleStatusOne(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("retailer")
	if _, ok := retailer.Get(name); !ok {
		writeError(w, http.StatusNotFound, "unknown retailer "+name)
		return
	}
	writeJSON(w, http.StatusOK, toStatusView(s.manager.Status(name)))
}

// retailerStatusView is the JSON shape for one retailer's status.
type retailerStatusView struct {
	Retailer string `json:"retailer"`
	Running  bool   `json:"running"`
	RunID    string `json:"run_id,omitempty"`
	PID      int    `json:"pid,omitempty"`
}

func toStatusView(s runmanager.Status) retailerStatusView {
	return retailerStatusView{Retailer: s.Retailer, Running: s.Running, RunID: s.RunID, PID: s.PID}
}
