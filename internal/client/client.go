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

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// csrfHeaderName matches the control API's requireCSRF middleware.
const csrfHeaderName = "X-CSRF-Token"

// Client is a client for the harvester control API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	csrfToken  string
}

// New creates a new control API client with the given options.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: "http://localhost", // Default for Unix socket
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	// If no HTTP client set, create default with transport
	if c.httpClient == nil {
		transport, err := DefaultTransport()
		if err != nil {
			return nil, fmt.Errorf("failed to create transport: %w", err)
		}
		c.httpClient = &http.Client{Transport: transport}
	}

	return c, nil
}

// Option configures a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = client
		return nil
	}
}

// WithTransport sets a custom transport.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *Client) error {
		c.httpClient = &http.Client{Transport: transport}
		return nil
	}
}

// WithAPIKey sets the API key for authentication.
func WithAPIKey(apiKey string) Option {
	return func(c *Client) error {
		c.apiKey = apiKey
		return nil
	}
}

// StatusResponse is one retailer's entry from GET /api/status.
type StatusResponse struct {
	Retailer string `json:"retailer"`
	Running  bool   `json:"running"`
	RunID    string `json:"run_id,omitempty"`
	PID      int    `json:"pid,omitempty"`
}

// GetStatus returns status for every retailer tracked by the daemon, or a
// single retailer's status when retailer is non-empty.
func (c *Client) GetStatus(ctx context.Context, retailer string) ([]StatusResponse, error) {
	path := "/api/status"
	if retailer != "" {
		path = "/api/status/" + retailer
	}
	resp, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if retailer != "" {
		var one StatusResponse
		if err := json.NewDecoder(resp.Body).Decode(&one); err != nil {
			return nil, fmt.Errorf("failed to decode status response: %w", err)
		}
		return []StatusResponse{one}, nil
	}
	var all struct {
		Retailers []StatusResponse `json:"retailers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&all); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}
	return all.Retailers, nil
}

// Ping checks whether the control daemon is reachable by requesting global
// status.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.GetStatus(ctx, "")
	return err
}

// StartScraperRequest is the body of POST /api/scraper/start.
type StartScraperRequest struct {
	Retailer     string `json:"retailer"`
	Resume       bool   `json:"resume,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Test         bool   `json:"test,omitempty"`
	Proxy        string `json:"proxy,omitempty"`
	RenderJS     bool   `json:"render_js,omitempty"`
	ProxyCountry string `json:"proxy_country,omitempty"`
}

// StartScraper issues POST /api/scraper/start.
func (c *Client) StartScraper(ctx context.Context, req StartScraperRequest) (map[string]any, error) {
	return c.Post(ctx, "/api/scraper/start", req)
}

// StopScraper issues POST /api/scraper/stop.
func (c *Client) StopScraper(ctx context.Context, retailer string, timeout string) (map[string]any, error) {
	return c.Post(ctx, "/api/scraper/stop", map[string]any{"retailer": retailer, "timeout": timeout})
}

// RestartScraper issues POST /api/scraper/restart.
func (c *Client) RestartScraper(ctx context.Context, retailer, proxy, timeout string) (map[string]any, error) {
	return c.Post(ctx, "/api/scraper/restart", map[string]any{"retailer": retailer, "proxy": proxy, "timeout": timeout})
}

// GetRuns issues GET /api/runs/{retailer}?limit=N.
func (c *Client) GetRuns(ctx context.Context, retailer string, limit int) (map[string]any, error) {
	path := fmt.Sprintf("/api/runs/%s", retailer)
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	return c.Get(ctx, path)
}

// GetLogs issues GET /api/logs/{retailer}/{run_id}, optionally tailing the
// last N lines or slicing from a byte offset.
func (c *Client) GetLogs(ctx context.Context, retailer, runID string, tail, offset int) (*http.Response, error) {
	path := fmt.Sprintf("/api/logs/%s/%s", retailer, runID)
	sep := "?"
	if tail > 0 {
		path = fmt.Sprintf("%s%stail=%d", path, sep, tail)
		sep = "&"
	}
	if offset > 0 {
		path = fmt.Sprintf("%s%soffset=%d", path, sep, offset)
	}
	return c.GetStream(ctx, path, "text/plain")
}

// GetConfig issues GET /api/config and returns the raw YAML document.
func (c *Client) GetConfig(ctx context.Context) ([]byte, error) {
	resp, err := c.get(ctx, "/api/config")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// SaveConfig issues POST /api/config with a YAML document wrapped in a JSON
// {"content": ...} body, triggering server-side validate, backup, and
// atomic replace.
func (c *Client) SaveConfig(ctx context.Context, yamlData []byte) (map[string]any, error) {
	return c.Post(ctx, "/api/config", map[string]string{"content": string(yamlData)})
}

// Export issues GET /api/export/{retailer}/{format}.
func (c *Client) Export(ctx context.Context, retailer, format string) (*http.Response, error) {
	accept := "application/octet-stream"
	return c.GetStream(ctx, fmt.Sprintf("/api/export/%s/%s", retailer, format), accept)
}

// ExportMultiRequest is the body of POST /api/export/multi.
type ExportMultiRequest struct {
	Retailers []string `json:"retailers"`
	Format    string   `json:"format"`
	Combine   bool     `json:"combine"`
}

// ExportMulti issues POST /api/export/multi.
func (c *Client) ExportMulti(ctx context.Context, req ExportMultiRequest) (*http.Response, error) {
	token, err := c.csrfTokenFor(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/export/multi", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(csrfHeaderName, token)
	c.addAuth(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("control API returned error %d: %s", resp.StatusCode, string(body))
	}
	return resp, nil
}

// Get performs a GET request and returns the JSON response as a map.
func (c *Client) Get(ctx context.Context, path string) (map[string]any, error) {
	resp, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return result, nil
}

// GetStream performs a GET request with the specified Accept header and returns the response.
func (c *Client) GetStream(ctx context.Context, path, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	c.addAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("control API returned error %d: %s", resp.StatusCode, string(body))
	}

	return resp, nil
}

// Post performs a POST request with JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (map[string]any, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	resp, err := c.post(ctx, path, bodyReader)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return result, nil
}

// PostYAML performs a POST request with YAML body.
func (c *Client) PostYAML(ctx context.Context, path string, yamlData []byte) (map[string]any, error) {
	token, err := c.csrfTokenFor(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(yamlData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-yaml")
	req.Header.Set(csrfHeaderName, token)
	c.addAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("control API returned error %d: %s", resp.StatusCode, string(body))
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return result, nil
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.addAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("control API returned error %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// get performs a GET request to the controller API.
func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.addAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("control API returned error %d: %s", resp.StatusCode, string(body))
	}

	return resp, nil
}

// addAuth adds authentication headers to the request if configured.
func (c *Client) addAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// csrfTokenFor fetches (and caches) the CSRF token every mutating request
// must echo back, per the control API's requireCSRF middleware.
func (c *Client) csrfTokenFor(ctx context.Context) (string, error) {
	if c.csrfToken != "" {
		return c.csrfToken, nil
	}
	resp, err := c.get(ctx, "/api/csrf-token")
	if err != nil {
		return "", fmt.Errorf("failed to fetch csrf token: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		CSRFToken string `json:"csrf_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode csrf token response: %w", err)
	}
	c.csrfToken = out.CSRFToken
	return c.csrfToken, nil
}

// post performs a POST request to the controller API.
func (c *Client) post(ctx context.Context, path string, body io.Reader) (*http.Response, error) {
	token, err := c.csrfTokenFor(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(csrfHeaderName, token)
	c.addAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("control API returned error %d: %s", resp.StatusCode, string(respBody))
	}

	return resp, nil
}
