// Package cache is the simulation engine: it drives one eviction policy
// over a request stream and keeps the hit/miss statistics.
//
// Design
//
//   - Policies: the engine holds a single policy.Policy and never looks at
//     its internals. Per request it calls Find(req, true); on a miss it
//     calls Insert and then Evict while UsedBytes exceeds Capacity, so the
//     byte budget holds again before the next request. A policy.Overfull
//     policy is also evicted while Overfull reports true.
//
//   - Capacity: an object larger than the whole cache is never inserted.
//     It is counted as a miss and a reject; the first one is logged at warn
//     level, later ones at debug.
//
//   - TTL: requests carry a relative TTL (Options.DefaultTTL when zero).
//     Objects expire at timestamp+ttl; a lookup at or after that time
//     removes the object (EvictExpired) and counts as a miss.
//
//   - Delete: OpDelete removes the object if resident (EvictDelete) and is
//     not counted as a request.
//
//   - Errors: policy failures other than the capacity case mean a broken
//     invariant. Get wraps them in *ConsistencyError and the caller must
//     stop the run. A policy.Failer is asked for a latched error after
//     every lookup.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Reject/Evict/Size signals.
//     By default NoopMetrics is used; metrics/prom exports them.
//
// Basic usage
//
//	p, _ := lru.New(1 << 20)
//	c := cache.New(p, cache.Options{})
//	var req trace.Request
//	for r.Next(&req); req.Valid; r.Next(&req) {
//	    if _, err := c.Get(&req); err != nil {
//	        return err
//	    }
//	}
//	fmt.Println(c.Stats().MissRatio())
//
// A Cache is not safe for concurrent use; simulate several sizes with one
// Cache each (see package sim).
package cache
