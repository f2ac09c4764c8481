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

// Package pacer governs inter-request timing for a single retailer: the
// random pre-request delay, periodic long pauses after N requests, and the
// exponential backoff applied on 429/403 responses.
package pacer

import (
	"context"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/tombarlow/storeharvester/internal/controller/metrics"
)

// DelayProfile is a uniform-random delay range, in milliseconds.
type DelayProfile struct {
	MinMillis int
	MaxMillis int
}

func (d DelayProfile) sample(rnd *rand.Rand) time.Duration {
	if d.MaxMillis <= d.MinMillis {
		return time.Duration(d.MinMillis) * time.Millisecond
	}
	spread := d.MaxMillis - d.MinMillis
	return time.Duration(d.MinMillis+rnd.Intn(spread+1)) * time.Millisecond
}

// Config holds the per-retailer pacing options from the spec's recognized
// option table. Direct and Proxied are alternate delay profiles; Pacer
// picks between them per call based on which mode the caller reports.
type Config struct {
	Direct  DelayProfile
	Proxied DelayProfile

	Pause50Min, Pause50Max   time.Duration
	Pause200Min, Pause200Max time.Duration

	RateLimitBaseWait time.Duration
}

// DefaultConfig returns conservative pacing defaults.
func DefaultConfig() Config {
	return Config{
		Direct:            DelayProfile{MinMillis: 1000, MaxMillis: 3000},
		Proxied:           DelayProfile{MinMillis: 500, MaxMillis: 1500},
		Pause50Min:        15 * time.Second,
		Pause50Max:        30 * time.Second,
		Pause200Min:       60 * time.Second,
		Pause200Max:       120 * time.Second,
		RateLimitBaseWait: 30 * time.Second,
	}
}

// Pacer tracks a single retailer's request counter. It holds no package-level
// state; callers construct one Pacer per retailer run and pass it explicitly
// down the call chain, per the re-architected "no global mutable counters"
// design note.
type Pacer struct {
	cfg      Config
	rnd      *rand.Rand
	retailer string

	mu      sync.Mutex
	count   int
	attempt int
}

// New constructs a Pacer for one retailer run. retailer labels the
// PacerBackoffsTotal metric.
func New(cfg Config, retailer string) *Pacer {
	return &Pacer{
		cfg:      cfg,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		retailer: retailer,
	}
}

// BeforeRequest samples the configured delay for the given mode, sleeps for
// it, and — if the request counter just crossed a pause threshold — sleeps
// the long pause too. Both sleeps honor ctx cancellation.
func (p *Pacer) BeforeRequest(ctx context.Context, proxied bool) error {
	p.mu.Lock()
	p.count++
	count := p.count
	profile := p.cfg.Direct
	if proxied {
		profile = p.cfg.Proxied
	}
	delay := profile.sample(p.rnd)
	p.mu.Unlock()

	if err := sleep(ctx, delay); err != nil {
		return err
	}

	pause := p.pauseFor(count)
	if pause > 0 {
		return sleep(ctx, pause)
	}
	return nil
}

// pauseFor returns the long-pause duration triggered by crossing a
// threshold at count, or 0 if no pause applies. 200 is checked first since
// it is the longer tier and both can't fire on disjoint multiples of the
// same count simultaneously in a meaningful way worth stacking.
func (p *Pacer) pauseFor(count int) time.Duration {
	switch {
	case count > 0 && count%200 == 0:
		return randomBetween(p.rnd, p.cfg.Pause200Min, p.cfg.Pause200Max)
	case count > 0 && count%50 == 0:
		return randomBetween(p.rnd, p.cfg.Pause50Min, p.cfg.Pause50Max)
	default:
		return 0
	}
}

// OnResponse records the outcome of a request and, for a 429 or 403 status,
// returns the backoff duration the caller should sleep before retrying:
// 2^attempt * RateLimitBaseWait, where attempt counts consecutive
// blocked responses seen by this Pacer. A non-blocked response resets the
// attempt counter.
func (p *Pacer) OnResponse(status int) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if status == http.StatusTooManyRequests || status == http.StatusForbidden {
		backoff := time.Duration(math.Pow(2, float64(p.attempt))) * p.cfg.RateLimitBaseWait
		p.attempt++
		metrics.PacerBackoffsTotal.WithLabelValues(p.retailer).Inc()
		return backoff
	}
	p.attempt = 0
	return 0
}

func randomBetween(rnd *rand.Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rnd.Int63n(int64(max-min)))
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
