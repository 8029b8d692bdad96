// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

// EventKind names a step outcome reported to an Observer.
type EventKind string

const (
	EventValidationFailed EventKind = "validation_failed"
	EventRateLimited      EventKind = "rate_limited"
	EventCacheHit         EventKind = "cache_hit"
	EventCacheMiss        EventKind = "cache_miss"
	EventFetched          EventKind = "fetched"
	EventMapped           EventKind = "mapped"
)

// Event describes one step of a search.
type Event struct {
	Kind       EventKind
	Query      string
	Key        string
	Count      int
	RetryAfter int
	Err        error
}

// Observer receives events synchronously, in step order. It must not block.
type Observer func(Event)
