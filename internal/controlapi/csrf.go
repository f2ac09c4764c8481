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
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tombarlow/storeharvester/internal/controller/auth"
)

// csrfHeader is the header mutating requests must echo back the token
// issued by GET /api/csrf-token in.
const csrfHeader = "X-CSRF-Token"

// csrfIssuer mints and validates short-lived CSRF tokens as JWTs signed
// with the control API's own secret. A token is not tied to a session;
// it only proves the caller round-tripped through this server first,
// which is what defeats a cross-site form post.
type csrfIssuer struct {
	cfg auth.JWTConfig
}

func newCSRFIssuer(secret []byte) *csrfIssuer {
	return &csrfIssuer{cfg: auth.JWTConfig{
		Secret:    secret,
		Issuer:    "storeharvester-control-api",
		ClockSkew: 5 * time.Second,
	}}
}

func (c *csrfIssuer) issue() (string, error) {
	return auth.GenerateJWT(auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(1 * time.Hour)),
		},
		Scopes: []string{"csrf"},
	}, c.cfg)
}

func (c *csrfIssuer) verify(token string) bool {
	claims, err := auth.ValidateJWT(token, c.cfg)
	if err != nil {
		return false
	}
	for _, s := range claims.Scopes {
		if s == "csrf" {
			return true
		}
	}
	return false
}

// handleCSRFToken serves GET /api/csrf-token.
func (s *Server) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	token, err := s.csrf.issue()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue csrf token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

// requireCSRF wraps a mutating handler so it rejects requests missing a
// valid X-CSRF-Token header. GET endpoints never pass through this.
func (s *Server) requireCSRF(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(csrfHeader)
		if token == "" || !s.csrf.verify(token) {
			writeError(w, http.StatusForbidden, "missing or invalid csrf token")
			return
		}
		next(w, r)
	}
}
