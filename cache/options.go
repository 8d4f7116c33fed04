package cache

import "github.com/IvanBrykalov/cachesim/store"

// EvictReason explains why an object left the cache.
type EvictReason int

const (
	// EvictPolicy: chosen by the eviction policy to make room.
	EvictPolicy EvictReason = iota
	// EvictExpired: TTL elapsed, removed lazily on access.
	EvictExpired
	// EvictDelete: removed by an OpDelete request.
	EvictDelete
)

func (r EvictReason) String() string {
	switch r {
	case EvictExpired:
		return "expired"
	case EvictDelete:
		return "delete"
	default:
		return "policy"
	}
}

// Metrics exposes engine-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	// Reject is called for objects larger than the cache (also a Miss).
	Reject()
	Evict(reason EvictReason)
	Size(objects int, bytes int64)
}

// Options configures the engine. The zero value is valid.
type Options struct {
	// Metrics receives per-request signals; nil => NoopMetrics.
	Metrics Metrics

	// OnEvict is called with a copy of every object that leaves the cache.
	OnEvict func(obj store.Object, reason EvictReason)

	// DefaultTTL applies to requests whose TTL is 0 (0 = no expiry).
	DefaultTTL int32

	// CheckInvariants audits the policy (policy.Checker) and the byte
	// budget after every request. Slow; meant for tests.
	CheckInvariants bool
}
