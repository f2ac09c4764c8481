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

// Package controlapi implements the harvester's JSON control API: run
// status and lifecycle (start/stop/restart), run history, log tailing,
// config inspection and reload, and store exports. It is deliberately
// small next to the rest of the codebase — one ServeMux, one middleware
// chain, one Server whose handler methods live in one file per resource.
package controlapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/tombarlow/storeharvester/internal/controller/middleware"
	harvesterlog "github.com/tombarlow/storeharvester/internal/log"
	"github.com/tombarlow/storeharvester/internal/runmanager"
)

// Config configures a Server.
type Config struct {
	Listen      string
	AllowRemote bool
	CSRFSecret  []byte
	CORS        middleware.CORSConfig
	RateRPS     float64
	RateBurst   int

	DataDir    string
	ConfigPath string
	BackupDir  string
}

// Server is the control API's HTTP server: one mux, one middleware chain,
// wired to a runmanager.Manager for scraper lifecycle and to the
// filesystem for runs/logs/config/export.
type Server struct {
	cfg     Config
	mux     *http.ServeMux
	manager *runmanager.Manager
	logger  *slog.Logger
	limiter *ipRateLimiter
	csrf    *csrfIssuer
	http    *http.Server
}

// New builds a Server ready to ListenAndServe. manager drives scraper
// start/stop/restart/status; logger receives every request log line.
func New(cfg Config, manager *runmanager.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		mux:     http.NewServeMux(),
		manager: manager,
		logger:  logger,
		limiter: newIPRateLimiter(cfg.RateRPS, cfg.RateBurst),
		csrf:    newCSRFIssuer(cfg.CSRFSecret),
	}
	s.registerRoutes()
	s.http = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe starts the HTTP server and blocks until it stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("control api listening", "addr", s.cfg.Listen, "allow_remote", s.cfg.AllowRemote)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server, waiting for in-flight requests to
// finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// handler wraps the mux with the middleware chain applied outermost-first:
// request logging, then CORS, then per-IP rate limiting.
func (s *Server) handler() http.Handler {
	httpLogger := harvesterlog.NewHTTPMiddleware(s.logger)
	cors := middleware.CORS(s.cfg.CORS)

	var h http.Handler = s.mux
	h = s.limiter.middleware(h)
	h = cors(h)
	h = httpLogger.Wrap(h)
	return h
}
