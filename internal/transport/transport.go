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

// Package transport performs one HTTP request and returns a unified
// Response regardless of which proxy mode is in effect: direct, a
// residential rotating-IP proxy, or a managed web-scraper API that wraps
// the target page in a JSON envelope.
package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tombarlow/storeharvester/pkg/httpclient"
)

// Mode selects how a request reaches the target site.
type Mode string

const (
	// Direct issues the request straight to the target over ordinary HTTPS.
	Direct Mode = "direct"

	// Residential routes the request through a rotating-IP residential proxy
	// using HTTP Basic auth on the proxy URL itself.
	Residential Mode = "residential"

	// WebScraperAPI POSTs the target URL and options to a managed scraping
	// endpoint and unwraps the response from its JSON envelope.
	WebScraperAPI Mode = "web_scraper_api"
)

// Config holds per-retailer transport settings. Credential fields are
// resolved by ResolveConfig (see credentials.go) before a Config is used to build
// a Transport.
type Config struct {
	Mode Mode

	// Residential proxy settings.
	ProxyHost     string
	ProxyUsername string
	ProxyPassword string
	StickySession string

	// WebScraperAPI settings.
	APIEndpoint string
	APIKey      string

	// Country is a two-letter country code honored by Residential and
	// WebScraperAPI modes.
	Country string

	// RenderJS requests JavaScript rendering. Only valid when Mode is
	// WebScraperAPI; Validate rejects any other combination.
	RenderJS bool

	UserAgent string
}

// Validate enforces the render_js/mode coupling called out in the spec:
// render_js is only meaningful (and only accepted) for WebScraperAPI.
func (c Config) Validate() error {
	if c.RenderJS && c.Mode != WebScraperAPI {
		return fmt.Errorf("render_js is only valid with proxy mode %q, got %q", WebScraperAPI, c.Mode)
	}
	switch c.Mode {
	case Direct, Residential, WebScraperAPI:
	default:
		return fmt.Errorf("unknown transport mode %q", c.Mode)
	}
	if c.Mode == Residential && c.ProxyHost == "" {
		return fmt.Errorf("residential mode requires a proxy host")
	}
	if c.Mode == WebScraperAPI && c.APIEndpoint == "" {
		return fmt.Errorf("web_scraper_api mode requires an API endpoint")
	}
	return nil
}

// Response is the mode-agnostic result of a single request.
type Response struct {
	StatusCode int
	Content    []byte
	Text       string
	Headers    http.Header
	FinalURL   string
}

// Transport performs requests in a single configured mode.
type Transport struct {
	cfg    Config
	client *http.Client
}

// New builds a Transport for cfg. The underlying HTTP client is the shared
// httpclient factory (retry-free here; retry/backoff is the request
// pipeline's job, layered on top of Transport).
func New(cfg Config) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hcCfg := httpclient.DefaultConfig()
	hcCfg.RetryAttempts = 0
	if cfg.UserAgent != "" {
		hcCfg.UserAgent = cfg.UserAgent
	}

	client, err := httpclient.New(hcCfg)
	if err != nil {
		return nil, err
	}

	if cfg.Mode == Residential {
		proxyURL, err := buildProxyURL(cfg)
		if err != nil {
			return nil, err
		}
		base, ok := client.Transport.(*http.Transport)
		if !ok {
			base = &http.Transport{}
		}
		clone := base.Clone()
		clone.Proxy = http.ProxyURL(proxyURL)
		client.Transport = clone
	}

	return &Transport{cfg: cfg, client: client}, nil
}

// buildProxyURL encodes country and sticky-session selection into the proxy
// username, the convention residential proxy providers use to steer which
// exit IP a session gets.
func buildProxyURL(cfg Config) (*url.URL, error) {
	username := cfg.ProxyUsername
	if cfg.Country != "" {
		username = fmt.Sprintf("%s-country-%s", username, strings.ToLower(cfg.Country))
	}
	if cfg.StickySession != "" {
		username = fmt.Sprintf("%s-session-%s", username, cfg.StickySession)
	}
	return &url.URL{
		Scheme: "http",
		User:   url.UserPassword(username, cfg.ProxyPassword),
		Host:   cfg.ProxyHost,
	}, nil
}

// Get performs a single request and returns a unified Response.
// render_js is read from the Transport's configured Config, not per-call,
// since it is a mode-wide setting validated at load time.
func (t *Transport) Get(ctx context.Context, target string, headers map[string]string, timeout time.Duration) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch t.cfg.Mode {
	case WebScraperAPI:
		return t.getViaAPI(ctx, target, headers)
	default:
		return t.getDirect(ctx, target, headers)
	}
}

func (t *Transport) getDirect(ctx context.Context, target string, headers map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	finalURL := target
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Content:    body,
		Text:       string(body),
		Headers:    resp.Header,
		FinalURL:   finalURL,
	}, nil
}

// apiEnvelopeRequest is the body POSTed to a managed web-scraper API.
type apiEnvelopeRequest struct {
	URL            string            `json:"url"`
	RenderJS       bool              `json:"render_js,omitempty"`
	Country        string            `json:"country,omitempty"`
	HTTPMethod     string            `json:"http_method,omitempty"`
	HeadersOverride map[string]string `json:"headers_override,omitempty"`
	Body           string            `json:"body,omitempty"` // base64-encoded
}

// apiEnvelopeResponse is the JSON envelope a managed web-scraper API wraps
// the upstream response in.
type apiEnvelopeResponse struct {
	StatusCode int               `json:"status_code"`
	Body       string            `json:"body"`
	Headers    map[string]string `json:"headers"`
	ResolvedURL string           `json:"resolved_url"`
}

func (t *Transport) getViaAPI(ctx context.Context, target string, headers map[string]string) (*Response, error) {
	envelope := apiEnvelopeRequest{
		URL:             target,
		RenderJS:        t.cfg.RenderJS,
		Country:         t.cfg.Country,
		HTTPMethod:      http.MethodGet,
		HeadersOverride: headers,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.APIEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if t.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var env apiEnvelopeResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decoding web_scraper_api envelope: %w", err)
	}

	body := []byte(env.Body)
	if decoded, err := base64.StdEncoding.DecodeString(env.Body); err == nil {
		body = decoded
	}

	hdrs := http.Header{}
	for k, v := range env.Headers {
		hdrs.Set(k, v)
	}

	finalURL := env.ResolvedURL
	if finalURL == "" {
		finalURL = target
	}

	return &Response{
		StatusCode: env.StatusCode,
		Content:    body,
		Text:       string(body),
		Headers:    hdrs,
		FinalURL:   finalURL,
	}, nil
}
