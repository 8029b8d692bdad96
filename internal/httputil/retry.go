// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the retry loop shared by the search client and
// the publisher: per-attempt timeouts, a fixed backoff schedule, and
// classification of each attempt into success, fatal, or retryable.
package httputil

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/pdiddy/ndl-search/internal/apperr"
	"github.com/pdiddy/ndl-search/internal/logging"
)

// DefaultSchedule is the backoff schedule used when a Policy sets none.
var DefaultSchedule = []time.Duration{
	200 * time.Millisecond,
	600 * time.Millisecond,
	1800 * time.Millisecond,
}

// Policy controls one call to Do.
type Policy struct {
	// Op names the call in errors and logs.
	Op string

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// Delays is the backoff schedule; attempt n sleeps Delays[n], and the
	// last delay is reused once the schedule runs out. Nil uses DefaultSchedule.
	Delays []time.Duration

	// Timeout bounds each attempt including reading the body. Zero disables it.
	Timeout time.Duration

	// RetryTimeouts treats an attempt timeout like any other missing
	// response. When false a timeout fails immediately.
	RetryTimeouts bool
}

func (p Policy) delay(attempt int) time.Duration {
	delays := p.Delays
	if delays == nil {
		delays = DefaultSchedule
	}
	if len(delays) == 0 {
		return 0
	}
	if attempt >= len(delays) {
		return delays[len(delays)-1]
	}
	return delays[attempt]
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// RequestFunc builds a fresh request bound to the attempt's context.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// Do executes newReq until it yields a response below 500, a fatal
// failure, or the retry budget runs out.
//
// Responses with status < 500 are returned as-is for the caller to
// classify. Status >= 500 and transport failures are retried per the
// policy; after exhaustion Do returns an apperr Server or Network error
// whose message states the retry count. A timed-out attempt returns an
// apperr Timeout error unless RetryTimeouts is set. If ctx ends, Do
// returns ctx.Err().
func Do(ctx context.Context, client *http.Client, newReq RequestFunc, p Policy, log *zap.Logger) (*Response, error) {
	log = logging.OrNop(log)
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	for attempt := 0; ; attempt++ {
		resp, err := once(ctx, client, newReq, p.Timeout)

		var lastErr error
		lastStatus := 0
		switch {
		case err == nil && resp.StatusCode < http.StatusInternalServerError:
			return resp, nil
		case err == nil:
			lastStatus = resp.StatusCode
		default:
			var be *buildError
			if errors.As(err, &be) {
				return nil, be.err
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if isTimeout(err) && !p.RetryTimeouts {
				return nil, apperr.Timeout(p.Op, p.Timeout)
			}
			lastErr = err
		}

		if attempt >= maxRetries {
			if lastErr != nil {
				return nil, apperr.Network(p.Op, maxRetries, lastErr)
			}
			return nil, apperr.Server(p.Op, lastStatus, maxRetries)
		}

		wait := p.delay(attempt)
		fields := []zap.Field{
			zap.String(logging.FieldOperation, p.Op),
			zap.Int(logging.FieldAttempt, attempt+1),
			zap.Int(logging.FieldMaxAttempt, maxRetries+1),
			zap.Duration("backoff", wait),
		}
		if lastErr != nil {
			log.Warn("network error, retrying", append(fields, zap.Error(lastErr))...)
		} else {
			log.Warn("server error, retrying", append(fields, zap.Int(logging.FieldStatus, lastStatus))...)
		}

		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

type buildError struct{ err error }

func (e *buildError) Error() string { return e.err.Error() }

// once performs a single attempt under its own timeout and reads the body
// before the attempt context is released.
func once(ctx context.Context, client *http.Client, newReq RequestFunc, timeout time.Duration) (*Response, error) {
	attemptCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	req, err := newReq(attemptCtx)
	if err != nil {
		return nil, &buildError{err: errors.Wrap(err, "creating request")}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
