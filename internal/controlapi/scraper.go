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
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/tombarlow/storeharvester/internal/ledger"
	"github.com/tombarlow/storeharvester/internal/retailer"
	"github.com/tombarlow/storeharvester/internal/runmanager"
	"github.com/tombarlow/storeharvester/internal/runtracker"
)

// scraperStartRequest is the body of POST /api/scraper/start.
type scraperStartRequest struct {
	Retailer     string `json:"retailer"`
	Resume       bool   `json:"resume,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Test         bool   `json:"test,omitempty"`
	Proxy        string `json:"proxy,omitempty"`
	RenderJS     bool   `json:"render_js,omitempty"`
	ProxyCountry string `json:"proxy_country,omitempty"`
}

// validateProxyRenderJS enforces Testable Property #10: --render-js (or its
// JSON equivalent render_js) is only valid alongside proxy=web_scraper_api.
func validateProxyRenderJS(proxy string, renderJS bool) error {
	if renderJS && proxy != "web_scraper_api" {
		return errors.New("render_js requires proxy=web_scraper_api")
	}
	return nil
}

func (s *Server) handleScraperStart(w http.ResponseWriter, r *http.Request) {
	var req scraperStartRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Retailer == "" {
		writeError(w, http.StatusBadRequest, "retailer is required")
		return
	}
	cfg, ok := retailer.Get(req.Retailer)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown retailer "+req.Retailer)
		return
	}
	if err := validateProxyRenderJS(req.Proxy, req.RenderJS); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := runmanager.Options{
		Resume:       req.Resume,
		Limit:        req.Limit,
		Test:         req.Test,
		ProxyMode:    req.Proxy,
		RenderJS:     req.RenderJS,
		ProxyCountry: req.ProxyCountry,
	}

	tracker, err := s.newTracker(cfg.Name, toRunConfig(opts))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to allocate run: "+err.Error())
		return
	}

	if err := s.manager.Start(r.Context(), tracker, cfg.Name, opts); err != nil {
		if errors.Is(err, runmanager.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"retailer": cfg.Name, "run_id": tracker.RunID()})
}

// scraperStopRequest is the body of POST /api/scraper/stop.
type scraperStopRequest struct {
	Retailer string `json:"retailer"`
	Timeout  string `json:"timeout,omitempty"`
}

func (s *Server) handleScraperStop(w http.ResponseWriter, r *http.Request) {
	var req scraperStopRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if _, ok := retailer.Get(req.Retailer); !ok {
		writeError(w, http.StatusNotFound, "unknown retailer "+req.Retailer)
		return
	}
	timeout := parseTimeoutOrDefault(req.Timeout, 30*time.Second)
	if err := s.manager.Stop(req.Retailer, timeout); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"retailer": req.Retailer, "status": "stopped"})
}

// scraperRestartRequest is the body of POST /api/scraper/restart.
type scraperRestartRequest struct {
	Retailer string `json:"retailer"`
	Resume   bool   `json:"resume,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
	Proxy    string `json:"proxy,omitempty"`
}

func (s *Server) handleScraperRestart(w http.ResponseWriter, r *http.Request) {
	var req scraperRestartRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	cfg, ok := retailer.Get(req.Retailer)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown retailer "+req.Retailer)
		return
	}

	opts := runmanager.Options{Resume: true, ProxyMode: req.Proxy}
	tracker, err := s.newTracker(cfg.Name, toRunConfig(opts))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to allocate run: "+err.Error())
		return
	}

	timeout := parseTimeoutOrDefault(req.Timeout, 30*time.Second)
	if err := s.manager.Restart(r.Context(), tracker, cfg.Name, opts, timeout); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"retailer": cfg.Name, "run_id": tracker.RunID()})
}

// newTracker allocates a fresh runtracker.Tracker for retailer under
// dataDir/{retailer}/runs, appending terminal transitions to the shared
// process-wide ledger.
func (s *Server) newTracker(retailerName string, cfg runtracker.RunConfig) (*runtracker.Tracker, error) {
	led, err := ledger.New(filepath.Join(s.cfg.DataDir, ".runs", "ledger.jsonl"))
	if err != nil {
		return nil, err
	}
	runsDir := filepath.Join(s.cfg.DataDir, retailerName, "runs")
	return runtracker.New(runsDir, retailerName, cfg, 0, led, time.Now())
}

func toRunConfig(opts runmanager.Options) runtracker.RunConfig {
	return runtracker.RunConfig{
		Resume:       opts.Resume,
		Limit:        opts.Limit,
		Test:         opts.Test,
		ProxyMode:    opts.ProxyMode,
		RenderJS:     opts.RenderJS,
		ProxyCountry: opts.ProxyCountry,
	}
}

func parseTimeoutOrDefault(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
