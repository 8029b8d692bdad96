// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package publish posts normalized records to the downstream sink in
// bounded batches.
//
// Each batch is retried on its own: 5xx responses, transport failures and
// attempt timeouts are retried on the RetryDelays schedule, other 4xx
// responses fail at once, and a 401 is either an error (strict auth) or an
// empty success. Per-record statuses inside a successful response are
// passed through untouched.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/ndl-search/internal/apperr"
	"github.com/pdiddy/ndl-search/internal/httputil"
	"github.com/pdiddy/ndl-search/internal/logging"
	"github.com/pdiddy/ndl-search/pkg/types"
)

const (
	op = "publish"

	// DefaultBatchSize is the maximum number of records per POST.
	DefaultBatchSize = 50
	// DefaultMaxRetries is the number of retries per batch.
	DefaultMaxRetries = 2
	// DefaultTimeout bounds one POST attempt.
	DefaultTimeout = 10 * time.Second
)

// RetryDelays is the backoff schedule between attempts of one batch.
// Declared as a var so tests can shrink it.
var RetryDelays = []time.Duration{
	200 * time.Millisecond,
	600 * time.Millisecond,
}

// Options overrides the configured behavior for one Publish call.
type Options struct {
	// Token replaces the configured bearer token when set.
	Token string
	// StrictAuth makes a 401 an error. It adds to the configured setting.
	StrictAuth bool
	// Timeout replaces the configured per-attempt timeout when positive.
	Timeout time.Duration
	// MaxRetries replaces the configured retry count when non-zero.
	// A negative value disables retries.
	MaxRetries int
}

// Publisher posts records to BaseURL + "/publish".
type Publisher struct {
	HTTP       *http.Client
	BaseURL    string
	Token      string
	UserAgent  string
	StrictAuth bool
	BatchSize  int
	MaxRetries int
	Timeout    time.Duration
	Log        *zap.Logger

	// pace spaces out batch POSTs; nil means no pacing.
	pace *rate.Limiter
}

// New builds a Publisher from cfg. A nil hc uses a client without its own
// timeout; per-attempt timeouts come from cfg.Timeout.
func New(cfg types.PublishConfig, hc *http.Client, log *zap.Logger) *Publisher {
	if hc == nil {
		hc = &http.Client{}
	}
	p := &Publisher{
		HTTP:       hc,
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		Token:      cfg.Token,
		UserAgent:  cfg.UserAgent,
		StrictAuth: cfg.StrictAuth,
		BatchSize:  cfg.BatchSize,
		MaxRetries: cfg.MaxRetries,
		Timeout:    cfg.Timeout,
		Log:        logging.OrNop(log).With(zap.String(logging.FieldComponent, "publish")),
	}
	if p.BatchSize <= 0 {
		p.BatchSize = DefaultBatchSize
	}
	if p.MaxRetries == 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	if cfg.RateLimitRPS > 0 {
		p.pace = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1)
	}
	return p
}

// Endpoint is the URL batches are posted to.
func (p *Publisher) Endpoint() string {
	return p.BaseURL + "/publish"
}

// Publish posts records in batches of at most BatchSize and aggregates
// the per-batch results in order. Success is true only if every batch
// reported success. An empty input returns a successful empty result
// without any request.
//
// The first failing batch stops the run; the results of the batches that
// completed before it are returned alongside the error.
func (p *Publisher) Publish(ctx context.Context, records []types.NormalizedRecord, opts Options) (types.PublishResult, error) {
	out := types.PublishResult{Success: true, Results: []types.PublishItemResult{}}
	if len(records) == 0 {
		return out, nil
	}

	batches := Batches(records, p.BatchSize)
	for i, batch := range batches {
		if p.pace != nil {
			if err := p.pace.Wait(ctx); err != nil {
				return out, err
			}
		}

		res, err := p.publishBatch(ctx, batch, opts)
		if err != nil {
			return out, errors.Wrapf(err, "batch %d of %d", i+1, len(batches))
		}
		out.Results = append(out.Results, res.Results...)
		if !res.Success {
			out.Success = false
		}
		p.Log.Debug("batch published",
			zap.Int(logging.FieldBatch, i+1),
			zap.Int(logging.FieldBatchSize, len(batch)),
			zap.Bool("success", res.Success))
	}
	return out, nil
}

// Batches splits records into consecutive slices of at most size records.
func Batches(records []types.NormalizedRecord, size int) [][]types.NormalizedRecord {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]types.NormalizedRecord
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		out = append(out, records[start:end])
	}
	return out
}

func (p *Publisher) publishBatch(ctx context.Context, batch []types.NormalizedRecord, opts Options) (types.PublishResult, error) {
	body, err := json.Marshal(types.PublishRequest{Records: batch})
	if err != nil {
		return types.PublishResult{}, errors.Wrap(err, "encoding publish request")
	}

	token := p.Token
	if opts.Token != "" {
		token = opts.Token
	}
	timeout := p.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	retries := p.MaxRetries
	if opts.MaxRetries != 0 {
		retries = opts.MaxRetries
	}
	if retries < 0 {
		retries = 0
	}

	newReq := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint(), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if p.UserAgent != "" {
			req.Header.Set("User-Agent", p.UserAgent)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return req, nil
	}

	resp, err := httputil.Do(ctx, p.HTTP, newReq, httputil.Policy{
		Op:            op,
		MaxRetries:    retries,
		Delays:        RetryDelays,
		Timeout:       timeout,
		RetryTimeouts: true,
	}, p.Log)
	if err != nil {
		return types.PublishResult{}, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		if p.StrictAuth || opts.StrictAuth {
			return types.PublishResult{}, apperr.Auth(op, resp.StatusCode)
		}
		p.Log.Warn("publish returned 401, continuing without auth",
			zap.Int(logging.FieldBatchSize, len(batch)))
		return types.PublishResult{Success: true, Results: []types.PublishItemResult{}}, nil
	case resp.StatusCode >= http.StatusBadRequest:
		p.Log.Warn("publish rejected",
			zap.Int(logging.FieldStatus, resp.StatusCode),
			zap.String("body", snippet(resp.Body)))
		return types.PublishResult{}, apperr.Client(op, resp.StatusCode)
	}

	return decodeResult(resp.Body)
}

// decodeResult passes the sink's own result through. An empty body counts
// as a successful batch without per-record results.
func decodeResult(body []byte) (types.PublishResult, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return types.PublishResult{Success: true, Results: []types.PublishItemResult{}}, nil
	}
	var res types.PublishResult
	if err := json.Unmarshal(body, &res); err != nil {
		return types.PublishResult{}, apperr.Parse("decoding publish response", err)
	}
	return res, nil
}

func snippet(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
