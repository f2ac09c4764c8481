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

package pacer

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOnResponse_ExponentialBackoffFor403(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimitBaseWait = 30 * time.Second
	p := New(cfg, "acme")

	got := []time.Duration{}
	for i := 0; i < 3; i++ {
		got = append(got, p.OnResponse(http.StatusForbidden))
	}

	assert.Equal(t, 30*time.Second, got[0])
	assert.Equal(t, 60*time.Second, got[1])
	assert.Equal(t, 120*time.Second, got[2])

	var total time.Duration
	for _, d := range got {
		total += d
	}
	assert.Less(t, total, 300*time.Second)
}

func TestOnResponse_SuccessResetsAttemptCounter(t *testing.T) {
	p := New(DefaultConfig(), "acme")
	_ = p.OnResponse(http.StatusTooManyRequests)
	_ = p.OnResponse(http.StatusTooManyRequests)

	p.OnResponse(http.StatusOK)
	got := p.OnResponse(http.StatusForbidden)
	assert.Equal(t, p.cfg.RateLimitBaseWait, got)
}

func TestOnResponse_NonBlockedStatusReturnsZero(t *testing.T) {
	p := New(DefaultConfig(), "acme")
	assert.Equal(t, time.Duration(0), p.OnResponse(http.StatusOK))
	assert.Equal(t, time.Duration(0), p.OnResponse(http.StatusNotFound))
}

func TestPauseFor_Thresholds(t *testing.T) {
	cfg := DefaultConfig()
	p := New(cfg, "acme")

	assert.Equal(t, time.Duration(0), p.pauseFor(49))
	assert.GreaterOrEqual(t, p.pauseFor(50), cfg.Pause50Min)
	assert.LessOrEqual(t, p.pauseFor(50), cfg.Pause50Max)
	assert.GreaterOrEqual(t, p.pauseFor(200), cfg.Pause200Min)
}

func TestDelayProfile_SampleWithinRange(t *testing.T) {
	p := New(DefaultConfig(), "acme")
	for i := 0; i < 20; i++ {
		d := p.cfg.Direct.sample(p.rnd)
		assert.GreaterOrEqual(t, d, time.Duration(p.cfg.Direct.MinMillis)*time.Millisecond)
		assert.LessOrEqual(t, d, time.Duration(p.cfg.Direct.MaxMillis)*time.Millisecond)
	}
}
