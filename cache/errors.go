package cache

import "fmt"

// CapacityError describes an object that can never fit in the cache.
// The engine recovers from it locally: the request is a miss.
type CapacityError struct {
	ID       uint64
	Size     int64
	Capacity int64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("object %d of %d bytes exceeds cache capacity %d", e.ID, e.Size, e.Capacity)
}

// ConsistencyError reports a policy that broke its contract (re-insert,
// failed eviction, index/order disagreement, budget overrun). Statistics
// gathered after it are meaningless.
type ConsistencyError struct {
	Policy string
	Op     string
	Err    error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s: inconsistent state after %s: %v", e.Policy, e.Op, e.Err)
}

func (e *ConsistencyError) Unwrap() error { return e.Err }
