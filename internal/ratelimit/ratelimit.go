// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ratelimit implements a per-key sliding-window rate limiter.
//
// Each key keeps the timestamps of its admitted requests. A check first
// drops timestamps older than the window, then admits the request only if
// fewer than MaxRequests remain. The map is guarded by a mutex, and a
// supervised background sweep removes keys whose window has gone stale.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/pdiddy/ndl-search/pkg/types"
)

// Result is the outcome of one Check.
type Result struct {
	Allowed   bool
	Remaining int
	// ResetTime is when the oldest counted request leaves the window
	// (rejections) or when the current request does (admissions).
	ResetTime time.Time
	// RetryAfter is the number of seconds to wait; only set on rejection.
	RetryAfter int
}

// Limiter is a sliding-window rate limiter safe for concurrent use.
type Limiter struct {
	window      time.Duration
	maxRequests int
	interval    time.Duration
	prefix      string

	now func() time.Time

	mu       sync.Mutex
	requests map[string][]time.Time

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
	started  bool
}

// New creates a limiter. Zero values in cfg fall back to a one-minute
// window and thirty requests per window.
func New(cfg types.RateLimitConfig) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 30
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = cfg.Window
	}
	return &Limiter{
		window:      cfg.Window,
		maxRequests: cfg.MaxRequests,
		interval:    cfg.CleanupInterval,
		prefix:      cfg.KeyPrefix,
		now:         time.Now,
		requests:    make(map[string][]time.Time),
		stop:        make(chan struct{}),
	}
}

// Check records a request for key if the window has room and reports the
// outcome. Rejected requests are not recorded.
func (l *Limiter) Check(key string) Result {
	key = l.prefix + key

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	times := prune(l.requests[key], now.Add(-l.window))

	if len(times) >= l.maxRequests {
		l.requests[key] = times
		oldest := times[0]
		reset := oldest.Add(l.window)
		return Result{
			Allowed:    false,
			Remaining:  0,
			ResetTime:  reset,
			RetryAfter: int(math.Ceil(reset.Sub(now).Seconds())),
		}
	}

	times = append(times, now)
	l.requests[key] = times
	return Result{
		Allowed:   true,
		Remaining: l.maxRequests - len(times),
		ResetTime: now.Add(l.window),
	}
}

// Cleanup drops expired timestamps and removes keys with none left.
func (l *Limiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for key, times := range l.requests {
		times = prune(times, cutoff)
		if len(times) == 0 {
			delete(l.requests, key)
			continue
		}
		l.requests[key] = times
	}
}

// Keys returns the number of keys currently tracked.
func (l *Limiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.requests)
}

// Start runs Cleanup on the configured interval until Stop is called.
// Calling Start more than once has no effect.
func (l *Limiter) Start() {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		t := time.NewTicker(l.interval)
		defer t.Stop()
		for {
			select {
			case <-l.stop:
				return
			case <-t.C:
				l.Cleanup()
			}
		}
	}()
}

// Stop ends the background sweep and waits for it to exit.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
	l.wg.Wait()
}

// prune returns the suffix of times strictly after cutoff. Timestamps are
// appended in order, so the slice stays sorted.
func prune(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return times
	}
	out := make([]time.Time, len(times)-i)
	copy(out, times[i:])
	return out
}
