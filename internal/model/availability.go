// Package model holds the cross-layer data shapes shared by the biz,
// data, and service layers.
package model

import "time"

// Lookup paths compared by the benchmark.
const (
	PathFiltered = "filtered" // Bloom filter with authoritative fallback
	PathDirect   = "direct"   // PostgreSQL only
	PathCached   = "cached"   // LRU + Redis in front of PostgreSQL
)

// LookupResult is the composite lookup contract: a filter negative
// short-circuits, a filter positive is always re-verified against the
// authoritative store, so FalsePositive can only be true when
// AuthoritativeQueried is.
type LookupResult struct {
	Handle               string `json:"handle"`
	Exists               bool   `json:"exists"`
	MayExist             bool   `json:"mayExist"`
	AuthoritativeQueried bool   `json:"authoritativeQueried"`
	FalsePositive        bool   `json:"falsePositive"`
	Path                 string `json:"path"`
}

// Write modes for handle registration.
const (
	WriteModeSync     = "sync"     // insert through the circuit breaker
	WriteModeBuffered = "buffered" // enqueue to the event buffer
)

// RegisterResult reports how a registration was handled. Created and
// Buffered are mutually exclusive: a buffered write has been accepted
// but not yet persisted.
type RegisterResult struct {
	Handle   string `json:"handle"`
	Created  bool   `json:"created"`
	Buffered bool   `json:"buffered"`
	EventID  string `json:"eventId,omitempty"`
}

// BufferedEvent is one pending write in the event buffer.
type BufferedEvent struct {
	ID         string    `json:"id"`
	Handle     string    `json:"handle"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
