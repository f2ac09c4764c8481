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

// Package pipeline composes a transport.Transport and a pacer.Pacer into
// the single get() call every scraper-kind uses: pace, rotate headers,
// fetch, and apply the status-code retry decision table.
package pipeline

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"time"

	pkgerrors "github.com/tombarlow/storeharvester/pkg/errors"

	"github.com/tombarlow/storeharvester/internal/controller/metrics"
	"github.com/tombarlow/storeharvester/internal/pacer"
	"github.com/tombarlow/storeharvester/internal/transport"
)

// userAgents is a rotating pool of realistic desktop browser strings.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// Options configures retry behavior for a Pipeline.
type Options struct {
	MaxRetries   int
	RetryDelay   time.Duration
	MaxDelay     time.Duration
	RequestTimeout time.Duration
}

// DefaultOptions returns the spec's stated defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
		MaxDelay:       30 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// Pipeline is the composed Transport + Pacer + retry caller shared by every
// scraper-kind.
type Pipeline struct {
	transport *transport.Transport
	pacer     *pacer.Pacer
	opts      Options
	proxied   bool
	logger    *slog.Logger
	retailer  string

	uaIndex int
}

// New builds a Pipeline. proxied controls which Pacer delay profile is
// sampled and is derived from the Transport's mode (Direct = false,
// Residential/WebScraperAPI = true). retailer labels the RequestsTotal and
// RetriesTotal metrics.
func New(t *transport.Transport, p *pacer.Pacer, opts Options, proxied bool, logger *slog.Logger, retailer string) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{transport: t, pacer: p, opts: opts, proxied: proxied, logger: logger, retailer: retailer}
}

// Get performs a single logical request, retrying per the spec's status
// decision table. It returns a *pkgerrors.TransportError (never a bare nil
// response) once retries are exhausted.
func (p *Pipeline) Get(ctx context.Context, url string) (*transport.Response, error) {
	headers := map[string]string{
		"User-Agent":      p.nextUserAgent(),
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
		"Accept-Encoding": "gzip, deflate, br",
	}

	var lastErr error
	var lastStatus int

	for attempt := 0; attempt < p.opts.MaxRetries; attempt++ {
		lastAttempt := attempt == p.opts.MaxRetries-1

		if err := p.pacer.BeforeRequest(ctx, p.proxied); err != nil {
			return nil, err
		}

		resp, err := p.transport.Get(ctx, url, headers, p.opts.RequestTimeout)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			metrics.RetriesTotal.WithLabelValues(p.retailer, "transport_error").Inc()
			if !lastAttempt {
				if err := p.sleepRetryDelay(ctx, attempt); err != nil {
					return nil, err
				}
			}
			continue
		}

		lastStatus = resp.StatusCode
		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			metrics.RequestsTotal.WithLabelValues(p.retailer, "success").Inc()
			return resp, nil

		case resp.StatusCode == http.StatusNotFound:
			metrics.RequestsTotal.WithLabelValues(p.retailer, "not_found").Inc()
			return resp, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			metrics.RetriesTotal.WithLabelValues(p.retailer, "429").Inc()
			if !lastAttempt {
				backoff := p.pacer.OnResponse(resp.StatusCode)
				p.logger.Warn("rate limited, backing off", "url", url, "status", resp.StatusCode, "backoff", backoff)
				if err := sleep(ctx, backoff); err != nil {
					return nil, err
				}
			}
			continue

		case resp.StatusCode == http.StatusForbidden:
			metrics.RetriesTotal.WithLabelValues(p.retailer, "403").Inc()
			if !lastAttempt {
				backoff := p.pacer.OnResponse(resp.StatusCode)
				p.logger.Warn("blocked, backing off", "url", url, "status", resp.StatusCode, "backoff", backoff)
				if err := sleep(ctx, backoff); err != nil {
					return nil, err
				}
			}
			continue

		case resp.StatusCode >= 500:
			metrics.RetriesTotal.WithLabelValues(p.retailer, "5xx").Inc()
			if !lastAttempt {
				if err := p.sleepRetryDelay(ctx, attempt); err != nil {
					return nil, err
				}
			}
			continue

		default:
			metrics.RequestsTotal.WithLabelValues(p.retailer, "other").Inc()
			return resp, nil
		}
	}

	if lastStatus == http.StatusForbidden || lastStatus == http.StatusTooManyRequests {
		p.logger.Warn("exhausted retries after repeated blocks", "url", url, "attempts", p.opts.MaxRetries, "final_status", lastStatus)
	}

	metrics.RequestsTotal.WithLabelValues(p.retailer, "retry_exhausted").Inc()
	return nil, &pkgerrors.TransportError{
		URL:         url,
		FinalStatus: lastStatus,
		Attempts:    p.opts.MaxRetries,
		Cause:       lastErr,
	}
}

func (p *Pipeline) sleepRetryDelay(ctx context.Context, attempt int) error {
	delay := time.Duration(float64(p.opts.RetryDelay) * math.Pow(2, float64(attempt)))
	if delay > p.opts.MaxDelay {
		delay = p.opts.MaxDelay
	}
	return sleep(ctx, delay)
}

func (p *Pipeline) nextUserAgent() string {
	ua := userAgents[p.uaIndex%len(userAgents)]
	p.uaIndex++
	return ua
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
