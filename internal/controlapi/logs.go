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
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tombarlow/storeharvester/internal/retailer"
)

// runIDPattern backs the §4.9 security rule: {run_id} must match this
// before it is ever joined into a filesystem path.
var runIDPattern = regexp.MustCompile(`^[A-Za-z0-9_\-:.]+$`)

// logsResponse is the JSON shape GET /api/logs/{retailer}/{run_id} returns.
type logsResponse struct {
	Content    string `json:"content"`
	Lines      int    `json:"lines"`
	TotalLines int    `json:"total_lines"`
	IsActive   bool   `json:"is_active"`
}

// handleLogs serves GET /api/logs/{retailer}/{run_id}?tail=N&offset=B.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("retailer")
	if _, ok := retailer.Get(name); !ok {
		writeError(w, http.StatusNotFound, "unknown retailer "+name)
		return
	}

	runID := r.PathValue("run_id")
	path, err := resolveLogPath(s.cfg.DataDir, name, runID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "log not found for run "+runID)
		return
	}

	allLines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(data) == 0 {
		allLines = nil
	}
	totalLines := len(allLines)

	selected := allLines
	if tail := queryInt(r, "tail"); tail > 0 && tail < totalLines {
		selected = allLines[totalLines-tail:]
	} else if offset := queryInt(r, "offset"); offset > 0 && offset < len(data) {
		selected = strings.Split(strings.TrimRight(string(data[offset:]), "\n"), "\n")
	}

	writeJSON(w, http.StatusOK, logsResponse{
		Content:    strings.Join(selected, "\n"),
		Lines:      len(selected),
		TotalLines: totalLines,
		IsActive:   s.manager.Status(name).Running,
	})
}

// resolveLogPath validates runID and joins it beneath
// data/{retailer}/logs/, rejecting any result that escapes that directory.
func resolveLogPath(dataDir, retailerName, runID string) (string, error) {
	if runID == "" || !runIDPattern.MatchString(runID) || strings.Contains(runID, "..") {
		return "", &invalidRunIDError{runID: runID}
	}

	logsDir := filepath.Join(dataDir, retailerName, "logs")
	path := filepath.Join(logsDir, runID+".log")

	cleanLogsDir := filepath.Clean(logsDir) + string(filepath.Separator)
	if !strings.HasPrefix(filepath.Clean(path), cleanLogsDir) {
		return "", &invalidRunIDError{runID: runID}
	}
	return path, nil
}

type invalidRunIDError struct{ runID string }

func (e *invalidRunIDError) Error() string { return "invalid run_id: " + e.runID }

func queryInt(r *http.Request, key string) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
