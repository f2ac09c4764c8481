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

package transport

import (
	"os"
	"regexp"
	"strings"
)

// CredentialSource supplies proxy/API credentials in priority order:
// CLI flag, per-retailer config, global config, environment. Each layer
// returns ("", false) for a key it doesn't have an opinion on.
type CredentialSource struct {
	CLI         map[string]string
	PerRetailer map[string]string
	Global      map[string]string
}

// Resolve looks up key across the four credential sources in priority
// order, falling back to the environment variable envKey last.
func (c CredentialSource) Resolve(key, envKey string) string {
	for _, layer := range []map[string]string{c.CLI, c.PerRetailer, c.Global} {
		if layer == nil {
			continue
		}
		if v, ok := layer[key]; ok && v != "" {
			return v
		}
	}
	if envKey != "" {
		if v := os.Getenv(envKey); v != "" {
			return v
		}
	}
	return ""
}

// ResolveConfig fills in ProxyUsername, ProxyPassword, and APIKey on cfg
// from src, honoring whatever was already explicitly set (non-empty values
// on cfg win — they represent an earlier, higher-priority resolution).
func ResolveConfig(cfg Config, src CredentialSource) Config {
	if cfg.ProxyUsername == "" {
		cfg.ProxyUsername = src.Resolve("proxy_username", "OXY_PROXY_USERNAME")
	}
	if cfg.ProxyPassword == "" {
		cfg.ProxyPassword = src.Resolve("proxy_password", "OXY_PROXY_PASSWORD")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = src.Resolve("api_key", "OXY_API_KEY")
	}
	return cfg
}

var (
	userinfoPattern = regexp.MustCompile(`(?i)([a-z][a-z0-9+.-]*://)[^/@\s]+@`)
)

// Redact masks credentials embedded in a string intended for logs: the
// user:pass@ component of any URL, and the value of any "authorization:"
// header line. Unlike transport errors, log lines are free-form text, so
// redaction here works on substrings rather than a parsed URL.
func Redact(s string) string {
	redacted := userinfoPattern.ReplaceAllString(s, "${1}[REDACTED]@")

	lower := strings.ToLower(redacted)
	if idx := strings.Index(lower, "authorization:"); idx >= 0 {
		end := strings.IndexAny(redacted[idx:], "\r\n")
		if end < 0 {
			redacted = redacted[:idx] + "authorization: [REDACTED]"
		} else {
			redacted = redacted[:idx] + "authorization: [REDACTED]" + redacted[idx+end:]
		}
	}
	return redacted
}
