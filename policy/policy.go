// Package policy defines the contract every eviction policy implements.
//
// Request handling is the same for all policies and is driven by the
// cache engine:
//
//  1. Find(req, true): lookup; on a hit the policy "touches" the object
//     (recency bump, frequency increment, class update, ...).
//  2. On a miss: Insert(req), then Evict(req) while UsedBytes() > Capacity()
//     or, for an Overfull policy, while Overfull() reports true.
//  3. Remove(id): explicit removal outside the eviction path.
//
// Policies are single-threaded; each simulated cache owns one instance.
package policy

import (
	"fmt"

	"github.com/IvanBrykalov/cachesim/store"
	"github.com/IvanBrykalov/cachesim/trace"
)

// Policy is a byte-bounded eviction policy over its own object store(s).
type Policy interface {
	// Name returns the policy name as used by the registry.
	Name() string
	// Capacity returns the byte budget.
	Capacity() int64
	// UsedBytes returns the total size of resident objects.
	UsedBytes() int64
	// Len returns the number of resident objects.
	Len() int

	// Find looks req.ID up. With update=false it must not mutate any
	// policy state. It returns a copy of the object as of after the touch.
	Find(req *trace.Request, update bool) (store.Object, bool)
	// Insert admits req. Fails with store.ErrExists if already resident.
	Insert(req *trace.Request) error
	// ToEvict returns the object Evict would pick, without evicting it.
	// Fails with store.ErrEmpty when nothing is resident.
	ToEvict(req *trace.Request) (store.Object, error)
	// Evict removes one victim and returns it.
	// Fails with store.ErrEmpty when nothing is resident.
	Evict(req *trace.Request) (store.Object, error)
	// Remove deletes id. Fails with store.ErrNotFound if absent.
	Remove(id uint64) error
}

// Checker is implemented by policies that can audit their internal
// invariants (index vs ordering structure population, byte totals).
type Checker interface {
	Check() error
}

// Overfull is implemented by policies with an admission segment smaller
// than the whole budget. The engine keeps evicting after an insert while
// Overfull reports true.
type Overfull interface {
	Overfull() bool
}

// Failer is implemented by composed policies whose Find moves objects
// between segments. A failed move cannot be reported by Find itself; the
// policy latches the first such error and Err returns it from then on.
type Failer interface {
	Err() error
}

// Factory builds a fresh policy instance for a byte capacity.
type Factory func(capacity int64) (Policy, error)

// ConfigError reports an invalid policy parameter.
type ConfigError struct {
	Policy string
	Param  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("policy %s: invalid %s: %s", e.Policy, e.Param, e.Reason)
}

// CheckCapacity returns a ConfigError unless capacity > 0.
func CheckCapacity(name string, capacity int64) error {
	if capacity <= 0 {
		return &ConfigError{Policy: name, Param: "capacity", Reason: fmt.Sprintf("must be > 0, got %d", capacity)}
	}
	return nil
}
