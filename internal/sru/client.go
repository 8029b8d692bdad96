// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sru fetches raw searchRetrieve responses from the NDL Search SRU
// endpoint with classified retries.
//
// 4xx responses and attempt timeouts fail immediately. 5xx responses and
// transport failures are retried on a fixed schedule (200ms, 600ms,
// 1800ms) up to MaxRetries times; the final error states the retry count.
package sru

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/pdiddy/ndl-search/internal/apperr"
	"github.com/pdiddy/ndl-search/internal/httputil"
	"github.com/pdiddy/ndl-search/internal/logging"
	"github.com/pdiddy/ndl-search/pkg/types"
)

const op = "NDL SRU request"

// DefaultMaxRetries is used when the configuration leaves max_retries at 0.
const DefaultMaxRetries = 3

// RetryDelays is the backoff schedule between attempts. Declared as a var
// so tests can shrink it.
var RetryDelays = []time.Duration{
	200 * time.Millisecond,
	600 * time.Millisecond,
	1800 * time.Millisecond,
}

// FetchOptions carries the request parameters beyond the validated query.
type FetchOptions struct {
	// StartRecord is the 1-based offset of the first record (default 1).
	StartRecord int
	// Schema overrides the configured recordSchema.
	Schema string
}

// Client queries the SRU endpoint.
type Client struct {
	HTTP       *http.Client
	BaseURL    string
	Schema     string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	Log        *zap.Logger
}

// NewClient builds a client from cfg. A nil hc uses a client without its
// own timeout; per-attempt timeouts come from cfg.Timeout. A MaxRetries of
// 0 selects DefaultMaxRetries and a negative value disables retries.
func NewClient(cfg types.SearchConfig, hc *http.Client, log *zap.Logger) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	schema := cfg.RecordSchema
	if schema == "" {
		schema = "dcndl"
	}
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = DefaultMaxRetries
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		HTTP:       hc,
		BaseURL:    cfg.BaseURL,
		Schema:     schema,
		UserAgent:  cfg.UserAgent,
		Timeout:    timeout,
		MaxRetries: retries,
		Log:        logging.OrNop(log).With(zap.String(logging.FieldComponent, "sru")),
	}
}

// Fetch runs q against the endpoint with default options.
func (c *Client) Fetch(ctx context.Context, q types.ValidatedQuery) (types.RawSearchResult, error) {
	return c.FetchWith(ctx, q, FetchOptions{})
}

// FetchWith runs q against the endpoint and returns the raw payload.
func (c *Client) FetchWith(ctx context.Context, q types.ValidatedQuery, opts FetchOptions) (types.RawSearchResult, error) {
	reqURL, err := c.buildURL(q, opts)
	if err != nil {
		return types.RawSearchResult{}, err
	}

	newReq := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		if c.UserAgent != "" {
			req.Header.Set("User-Agent", c.UserAgent)
		}
		req.Header.Set("Accept", "application/xml")
		return req, nil
	}

	policy := httputil.Policy{
		Op:         op,
		MaxRetries: c.MaxRetries,
		Delays:     RetryDelays,
		Timeout:    c.Timeout,
	}

	start := time.Now()
	resp, err := httputil.Do(ctx, c.HTTP, newReq, policy, c.Log)
	if err != nil {
		return types.RawSearchResult{}, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return types.RawSearchResult{}, apperr.Client(op, resp.StatusCode)
	}

	c.Log.Debug("fetched",
		zap.String(logging.FieldQuery, q.Text),
		zap.Int(logging.FieldStatus, resp.StatusCode),
		zap.Int64(logging.FieldDurationMS, time.Since(start).Milliseconds()))

	return types.RawSearchResult{
		Payload: string(resp.Body),
		Status:  resp.StatusCode,
		Headers: resp.Header,
	}, nil
}

func (c *Client) buildURL(q types.ValidatedQuery, opts FetchOptions) (string, error) {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", errors.Wrap(err, "parsing SRU base URL")
	}

	schema := c.Schema
	if opts.Schema != "" {
		schema = opts.Schema
	}

	params := url.Values{
		"operation":      {"searchRetrieve"},
		"query":          {q.Text},
		"recordSchema":   {schema},
		"maximumRecords": {strconv.Itoa(q.MaxResults)},
	}
	if opts.StartRecord > 1 {
		params.Set("startRecord", strconv.Itoa(opts.StartRecord))
	}
	base.RawQuery = params.Encode()
	return base.String(), nil
}
