// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package apperr defines the failure taxonomy shared by the search client,
// the orchestrator and the publisher. Every failure the core raises is an
// *Error carrying a Kind, so callers branch on KindOf instead of parsing
// messages. Construction and wrapping go through cockroachdb/errors so each
// error carries a stack trace.
package apperr

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/pdiddy/ndl-search/pkg/types"
)

// Kind classifies a failure.
type Kind string

const (
	KindUnknown    Kind = ""
	KindValidation Kind = "validation"
	KindClient     Kind = "client"
	KindTimeout    Kind = "timeout"
	KindServer     Kind = "server"
	KindNetwork    Kind = "network"
	KindParse      Kind = "parse"
	KindRateLimit  Kind = "rate_limit"
	KindAuth       Kind = "auth"
)

// Error is a classified failure.
type Error struct {
	Kind Kind

	// Op names the operation that failed (e.g. "NDL SRU request").
	Op string

	// Status is the last HTTP status seen, 0 when no response arrived.
	Status int

	// Retries is the number of retries attempted before giving up.
	Retries int

	// RetryAfter is the wait in seconds a rate-limited caller should observe.
	RetryAfter int

	// Timeout is the per-attempt limit that was exceeded.
	Timeout time.Duration

	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.cause }

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Client reports a 4xx response; it is never retried.
func Client(op string, status int) error {
	return errors.WithStack(&Error{
		Kind:   KindClient,
		Op:     op,
		Status: status,
		msg:    fmt.Sprintf("%s failed with status %d", op, status),
	})
}

// Timeout reports an attempt that exceeded its deadline; it is never retried.
func Timeout(op string, d time.Duration) error {
	return errors.WithStack(&Error{
		Kind:    KindTimeout,
		Op:      op,
		Timeout: d,
		msg:     fmt.Sprintf("%s timeout after %dms", op, d.Milliseconds()),
	})
}

// Server reports a 5xx response that persisted through every retry.
func Server(op string, status, retries int) error {
	return errors.WithStack(&Error{
		Kind:    KindServer,
		Op:      op,
		Status:  status,
		Retries: retries,
		msg:     fmt.Sprintf("%s failed after %d retries: status %d", op, retries, status),
	})
}

// Network reports a request that never got a response after every retry.
func Network(op string, retries int, cause error) error {
	return errors.WithStack(&Error{
		Kind:    KindNetwork,
		Op:      op,
		Retries: retries,
		msg:     fmt.Sprintf("%s failed after %d retries", op, retries),
		cause:   cause,
	})
}

// Parse reports structurally malformed input.
func Parse(op string, cause error) error {
	return errors.WithStack(&Error{
		Kind:  KindParse,
		Op:    op,
		msg:   op + " failed",
		cause: cause,
	})
}

// RateLimited reports a request rejected by the rate limiter.
func RateLimited(retryAfter int) error {
	err := errors.WithStack(&Error{
		Kind:       KindRateLimit,
		RetryAfter: retryAfter,
		msg:        fmt.Sprintf("rate limit exceeded, try again in %d seconds", retryAfter),
	})
	return errors.WithHintf(err, "wait %d seconds before retrying", retryAfter)
}

// Auth reports an authentication failure.
func Auth(op string, status int) error {
	return errors.WithStack(&Error{
		Kind:   KindAuth,
		Op:     op,
		Status: status,
		msg:    fmt.Sprintf("%s failed with status %d", op, status),
	})
}

// Validation wraps a rejected query. The chain still unwraps to the
// *types.ValidationError so callers can inspect its Kind and Details.
func Validation(verr *types.ValidationError) error {
	return errors.WithStack(&Error{
		Kind:  KindValidation,
		Op:    "query validation",
		msg:   "query rejected",
		cause: verr,
	})
}
