// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sru

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/ndl-search/internal/apperr"
	"github.com/pdiddy/ndl-search/pkg/types"
)

func testClient(baseURL string) *Client {
	return NewClient(types.SearchConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 2 * time.Second, UserAgent: "test/0.1"},
		BaseURL:    baseURL,
		MaxRetries: 3,
	}, nil, nil)
}

func withFastRetries(t *testing.T) {
	t.Helper()
	old := RetryDelays
	RetryDelays = []time.Duration{time.Millisecond}
	t.Cleanup(func() { RetryDelays = old })
}

var query = types.ValidatedQuery{Text: `title="茶道"`, MaxResults: 20}

type seenRequest struct {
	query  url.Values
	header http.Header
}

func capture(ch chan<- seenRequest, r *http.Request) {
	ch <- seenRequest{query: r.URL.Query(), header: r.Header.Clone()}
}

func TestFetchSendsSRUParameters(t *testing.T) {
	seen := make(chan seenRequest, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capture(seen, r)
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte("<searchRetrieveResponse/>"))
	}))
	defer ts.Close()

	res, err := testClient(ts.URL).Fetch(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "<searchRetrieveResponse/>", res.Payload)
	assert.Equal(t, "application/xml", res.Headers.Get("Content-Type"))

	got := <-seen
	q := got.query
	assert.Equal(t, "searchRetrieve", q.Get("operation"))
	assert.Equal(t, `title="茶道"`, q.Get("query"))
	assert.Equal(t, "dcndl", q.Get("recordSchema"))
	assert.Equal(t, "20", q.Get("maximumRecords"))
	assert.Empty(t, q.Get("startRecord"))
	assert.Equal(t, "test/0.1", got.header.Get("User-Agent"))
	assert.Equal(t, "application/xml", got.header.Get("Accept"))
}

func TestFetchWithOptions(t *testing.T) {
	seen := make(chan seenRequest, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capture(seen, r)
	}))
	defer ts.Close()

	_, err := testClient(ts.URL).FetchWith(context.Background(), query, FetchOptions{StartRecord: 21, Schema: "dc"})
	require.NoError(t, err)
	got := <-seen
	assert.Equal(t, "21", got.query.Get("startRecord"))
	assert.Equal(t, "dc", got.query.Get("recordSchema"))
}

func TestFetchServerErrorsExhaustRetries(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	start := time.Now()
	_, err := testClient(ts.URL).Fetch(context.Background(), query)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, apperr.KindServer, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "after 3 retries")
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	assert.GreaterOrEqual(t, elapsed, 800*time.Millisecond)
}

func TestFetchRecoversAfter503(t *testing.T) {
	withFastRetries(t)
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("first"))
			return
		}
		_, _ = w.Write([]byte("second"))
	}))
	defer ts.Close()

	res, err := testClient(ts.URL).Fetch(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, "second", res.Payload)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchClientErrorNoRetry(t *testing.T) {
	withFastRetries(t)
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	_, err := testClient(ts.URL).Fetch(context.Background(), query)
	require.Error(t, err)
	assert.Equal(t, apperr.KindClient, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchTimeoutNoRetry(t *testing.T) {
	withFastRetries(t)
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	c := testClient(ts.URL)
	c.Timeout = 50 * time.Millisecond

	_, err := c.Fetch(context.Background(), query)
	require.Error(t, err)
	assert.Equal(t, apperr.KindTimeout, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "50ms")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchNetworkError(t *testing.T) {
	withFastRetries(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	closedURL := ts.URL
	ts.Close()

	_, err := testClient(closedURL).Fetch(context.Background(), query)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "after 3 retries")
}

func TestFetchCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := testClient(ts.URL).Fetch(ctx, query)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(types.SearchConfig{}, nil, nil)
	assert.Equal(t, "dcndl", c.Schema)
	assert.Equal(t, 15*time.Second, c.Timeout)
	assert.Equal(t, DefaultMaxRetries, c.MaxRetries)
	assert.NotNil(t, c.HTTP)
	assert.NotNil(t, c.Log)
}

func TestFetchNegativeRetriesDisablesRetry(t *testing.T) {
	withFastRetries(t)
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := NewClient(types.SearchConfig{BaseURL: ts.URL, MaxRetries: -1}, nil, nil)
	_, err := c.Fetch(context.Background(), query)
	require.Error(t, err)
	assert.Equal(t, apperr.KindServer, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "after 0 retries")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
