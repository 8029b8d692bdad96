// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/ndl-search/internal/apperr"
)

// fast is a tiny schedule so tests that do not measure backoff finish quickly.
var fast = []time.Duration{time.Millisecond}

func getter(url string) RequestFunc {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

func TestDo_ImmediateSuccess(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("X-Test", "yes")
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	resp, err := Do(context.Background(), ts.Client(), getter(ts.URL), Policy{Op: "test", MaxRetries: 3, Delays: fast}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Equal(t, "yes", resp.Header.Get("X-Test"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDo_RetriesThen200(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("third"))
	}))
	defer ts.Close()

	resp, err := Do(context.Background(), ts.Client(), getter(ts.URL), Policy{Op: "test", MaxRetries: 3, Delays: fast}, nil)
	require.NoError(t, err)
	assert.Equal(t, "third", string(resp.Body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDo_ExhaustsRetries(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, err := Do(context.Background(), ts.Client(), getter(ts.URL), Policy{Op: "test", MaxRetries: 3, Delays: fast}, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindServer, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "after 3 retries")
	// 1 initial + 3 retries = 4 total calls.
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestDo_4xxPassesThrough(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	resp, err := Do(context.Background(), ts.Client(), getter(ts.URL), Policy{Op: "test", MaxRetries: 3, Delays: fast}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDo_TimeoutFailsFast(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	p := Policy{Op: "test", MaxRetries: 3, Delays: fast, Timeout: 50 * time.Millisecond}
	_, err := Do(context.Background(), ts.Client(), getter(ts.URL), p, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindTimeout, apperr.KindOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDo_TimeoutRetriedWhenAllowed(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	p := Policy{Op: "test", MaxRetries: 2, Delays: fast, Timeout: 30 * time.Millisecond, RetryTimeouts: true}
	_, err := Do(context.Background(), ts.Client(), getter(ts.URL), p, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "after 2 retries")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDo_NetworkErrorRetried(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	url := ts.URL
	ts.Close()

	_, err := Do(context.Background(), http.DefaultClient, getter(url), Policy{Op: "test", MaxRetries: 2, Delays: fast}, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "after 2 retries")
}

func TestDo_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	p := Policy{Op: "test", MaxRetries: 5, Delays: []time.Duration{500 * time.Millisecond}}
	_, err := Do(ctx, ts.Client(), getter(ts.URL), p, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDo_BuildErrorNotRetried(t *testing.T) {
	var built int32
	newReq := func(ctx context.Context) (*http.Request, error) {
		atomic.AddInt32(&built, 1)
		return http.NewRequestWithContext(ctx, "BAD METHOD", "http://example.invalid", nil)
	}
	_, err := Do(context.Background(), http.DefaultClient, newReq, Policy{Op: "test", MaxRetries: 3, Delays: fast}, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnknown, apperr.KindOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&built))
}

func TestPolicyDelay(t *testing.T) {
	p := Policy{Delays: []time.Duration{1, 2}}
	assert.Equal(t, time.Duration(1), p.delay(0))
	assert.Equal(t, time.Duration(2), p.delay(1))
	assert.Equal(t, time.Duration(2), p.delay(5))

	assert.Equal(t, 200*time.Millisecond, Policy{}.delay(0))
	assert.Equal(t, time.Duration(0), Policy{Delays: []time.Duration{}}.delay(0))
}
