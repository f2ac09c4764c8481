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
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tombarlow/storeharvester/internal/controller/metrics"
)

// rateLimitEntry pairs one client IP's bucket with the last time it was
// touched, so idleEntryTTL-stale buckets can be reclaimed.
type rateLimitEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

// idleEntryTTL bounds how long a per-IP bucket survives without traffic
// before sweep evicts it.
const idleEntryTTL = 10 * time.Minute

// ipRateLimiter enforces a simple per-IP token bucket across the control
// API, the "simple per-IP token bucket" the log-polling section calls for.
// Clients that exceed it receive 429 and are expected to back off
// exponentially.
type ipRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*rateLimitEntry
	rps     rate.Limit
	burst   int
}

// newIPRateLimiter builds a limiter allowing rps requests per second per
// client IP, with burst allowance burst.
func newIPRateLimiter(rps float64, burst int) *ipRateLimiter {
	return &ipRateLimiter{
		entries: make(map[string]*rateLimitEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

// allow reports whether a request from ip may proceed, creating a fresh
// bucket for ip on first sight.
func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	e, ok := l.entries[ip]
	if !ok {
		e = &rateLimitEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.entries[ip] = e
	}
	e.lastUse = time.Now()
	l.mu.Unlock()

	return e.limiter.Allow()
}

// sweep evicts buckets untouched for idleEntryTTL. Callers run it
// periodically from a background goroutine; it is never required for
// correctness, only to bound memory under many distinct client IPs.
func (l *ipRateLimiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, e := range l.entries {
		if now.Sub(e.lastUse) > idleEntryTTL {
			delete(l.entries, ip)
		}
	}
}

// middleware wraps next with the per-IP rate limit check, incrementing the
// rejection metric and writing 429 for requests the bucket refuses.
func (l *ipRateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !l.allow(ip) {
			metrics.ControlAPIRateLimitRejections.WithLabelValues(r.URL.Path).Inc()
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, back off and retry")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the request's remote IP, stripping the port, so
// clients behind NAT on different ports still share one bucket.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
