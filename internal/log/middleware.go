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

package log

import (
	"log/slog"
	"net/http"
	"time"
)

// HTTPRequest represents an incoming control API request for logging
// purposes.
type HTTPRequest struct {
	Method     string
	Path       string
	RemoteAddr string
	RequestID  string
}

// HTTPResponse represents a completed control API request for logging
// purposes.
type HTTPResponse struct {
	StatusCode int
	DurationMs int64
	Error      string
}

// LogHTTPRequest logs an incoming control API request.
func LogHTTPRequest(logger *slog.Logger, req *HTTPRequest) {
	attrs := []any{
		"event", "http_request",
		"method", req.Method,
		"path", req.Path,
		"remote", req.RemoteAddr,
	}
	if req.RequestID != "" {
		attrs = append(attrs, "request_id", req.RequestID)
	}
	logger.Info("control api request received", attrs...)
}

// LogHTTPResponse logs a completed control API request.
func LogHTTPResponse(logger *slog.Logger, req *HTTPRequest, resp *HTTPResponse) {
	attrs := []any{
		"event", "http_response",
		"method", req.Method,
		"path", req.Path,
		"status", resp.StatusCode,
		"duration_ms", resp.DurationMs,
		"remote", req.RemoteAddr,
	}
	if req.RequestID != "" {
		attrs = append(attrs, "request_id", req.RequestID)
	}
	if resp.Error != "" {
		attrs = append(attrs, "error", resp.Error)
	}

	level := slog.LevelInfo
	message := "control api request completed"
	if resp.StatusCode >= 500 {
		level = slog.LevelError
		message = "control api request failed"
	} else if resp.StatusCode >= 400 {
		level = slog.LevelWarn
	}

	logger.Log(nil, level, message, attrs...)
}

// statusRecorder wraps http.ResponseWriter to capture the status code a
// handler wrote, since net/http gives no other way to read it back.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware logs every request the control API handles, matching the
// request it logged on arrival to the response it logged on completion via
// the same attrs.
type HTTPMiddleware struct {
	logger *slog.Logger
}

// NewHTTPMiddleware creates a new control API logging middleware.
func NewHTTPMiddleware(logger *slog.Logger) *HTTPMiddleware {
	return &HTTPMiddleware{logger: logger}
}

// Wrap returns next wrapped with request/response logging.
func (m *HTTPMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		req := &HTTPRequest{
			Method:     r.Method,
			Path:       r.URL.Path,
			RemoteAddr: r.RemoteAddr,
			RequestID:  r.Header.Get("X-Request-ID"),
		}
		LogHTTPRequest(m.logger, req)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		LogHTTPResponse(m.logger, req, &HTTPResponse{
			StatusCode: rec.status,
			DurationMs: time.Since(start).Milliseconds(),
		})
	})
}
