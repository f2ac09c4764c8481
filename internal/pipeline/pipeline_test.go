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

package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/tombarlow/storeharvester/pkg/errors"

	"github.com/tombarlow/storeharvester/internal/pacer"
	"github.com/tombarlow/storeharvester/internal/transport"
)

func newTestPipeline(t *testing.T, handler http.HandlerFunc, opts Options) (*Pipeline, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tr, err := transport.New(transport.Config{Mode: transport.Direct, UserAgent: "test/1.0"})
	require.NoError(t, err)

	pacerCfg := pacer.DefaultConfig()
	pacerCfg.Direct = pacer.DelayProfile{MinMillis: 0, MaxMillis: 0}
	pacerCfg.RateLimitBaseWait = 10 * time.Millisecond
	p := pacer.New(pacerCfg, "acme")

	return New(tr, p, opts, false, nil, "acme"), srv.URL
}

func TestPipeline_Get_SuccessReturnsImmediately(t *testing.T) {
	calls := 0
	pl, base := newTestPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}, DefaultOptions())

	resp, err := pl.Get(context.Background(), base)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestPipeline_Get_404ReturnsImmediatelyWithoutRetry(t *testing.T) {
	calls := 0
	pl, base := newTestPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}, DefaultOptions())

	resp, err := pl.Get(context.Background(), base)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestPipeline_Get_RetriesOn500ThenSucceeds(t *testing.T) {
	calls := 0
	opts := DefaultOptions()
	opts.RetryDelay = time.Millisecond
	opts.MaxDelay = 5 * time.Millisecond

	pl, base := newTestPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}, opts)

	resp, err := pl.Get(context.Background(), base)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, calls)
}

func TestPipeline_Get_403ExhaustsRetriesReturnsTransportError(t *testing.T) {
	calls := 0
	opts := DefaultOptions()
	opts.MaxRetries = 3

	pl, base := newTestPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}, opts)

	resp, err := pl.Get(context.Background(), base)
	require.Error(t, err)
	assert.Nil(t, resp)

	var transportErr *pkgerrors.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusForbidden, transportErr.FinalStatus)
	assert.Equal(t, 3, transportErr.Attempts)
	assert.Equal(t, 3, calls)
}

func TestPipeline_Get_RotatesUserAgent(t *testing.T) {
	var seen []string
	opts := DefaultOptions()
	opts.MaxRetries = 1

	pl, base := newTestPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}, opts)

	_, err := pl.Get(context.Background(), base)
	require.NoError(t, err)
	_, err = pl.Get(context.Background(), base)
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.NotEqual(t, seen[0], seen[1])
}
