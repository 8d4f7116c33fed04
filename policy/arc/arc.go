// Package arc implements ARC as a composition of four LRU instances: two
// data segments (T1: referenced once, T2: referenced again) and two ghost
// segments (B1, B2) that remember only the identity and size of objects
// evicted from the data segments.
//
// The eviction direction follows the ghost lists:
//
//	request id in B1, T2 non-empty: evict T2's LRU, drop id from B1, remember victim in B2
//	request id in B1, T2 empty:     evict T1's LRU, drop id from B1, remember victim in B1
//	request id in B2:               evict T1's LRU, drop id from B2, remember victim in B1
//	otherwise:                      evict T1's LRU, remember victim in B1
//
// There is no adaptive target size: a B1 hit sends eviction to T2 whenever
// T2 holds anything.
package arc

import (
	"errors"
	"fmt"

	"github.com/IvanBrykalov/cachesim/policy"
	"github.com/IvanBrykalov/cachesim/policy/lru"
	"github.com/IvanBrykalov/cachesim/store"
	"github.com/IvanBrykalov/cachesim/trace"
)

// Name is the registry name of the policy.
const Name = "arc"

// Options configures ARC.
type Options struct {
	// GhostListFactor sizes each ghost segment to factor × capacity bytes.
	GhostListFactor int `yaml:"ghost_list_factor"`
}

// ARC is the segment-composed ARC policy.
type ARC struct {
	capacity int64
	ghostCap int64

	t1, t2 *lru.LRU
	b1, b2 *lru.LRU

	err error // first failed promotion
}

// New returns an empty ARC. A zero GhostListFactor defaults to 1.
func New(capacity int64, opt Options) (*ARC, error) {
	if err := policy.CheckCapacity(Name, capacity); err != nil {
		return nil, err
	}
	if opt.GhostListFactor == 0 {
		opt.GhostListFactor = 1
	}
	if opt.GhostListFactor < 0 {
		return nil, &policy.ConfigError{Policy: Name, Param: "ghost_list_factor", Reason: fmt.Sprintf("must be >= 1, got %d", opt.GhostListFactor)}
	}
	a := &ARC{capacity: capacity, ghostCap: capacity * int64(opt.GhostListFactor)}
	var err error
	for _, seg := range []struct {
		p   **lru.LRU
		cap int64
	}{{&a.t1, capacity}, {&a.t2, capacity}, {&a.b1, a.ghostCap}, {&a.b2, a.ghostCap}} {
		if *seg.p, err = lru.New(seg.cap); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *ARC) Name() string     { return Name }
func (a *ARC) Capacity() int64  { return a.capacity }
func (a *ARC) UsedBytes() int64 { return a.t1.UsedBytes() + a.t2.UsedBytes() }
func (a *ARC) Len() int         { return a.t1.Len() + a.t2.Len() }

// Sizes returns the bytes held by T1 and T2.
func (a *ARC) Sizes() (t1, t2 int64) { return a.t1.UsedBytes(), a.t2.UsedBytes() }

// Find checks both data segments. On an updating hit, a T1 object moves to
// T2 (promotion is unconditional); a T2 object is moved to T2's MRU end.
// A failed promotion is latched in Err and the lookup reports a miss.
func (a *ARC) Find(req *trace.Request, update bool) (store.Object, bool) {
	if !update {
		if o, ok := a.t1.Find(req, false); ok {
			return o, true
		}
		return a.t2.Find(req, false)
	}
	if a.t1.Contains(req.ID) {
		o, err := a.t1.Take(req.ID)
		if err == nil {
			o.LastAccess = req.Timestamp
			o.Freq++
			err = a.t2.Adopt(o)
		}
		if err != nil {
			// T1 and T2 are disjoint; failing here means they diverged.
			if a.err == nil {
				a.err = fmt.Errorf("%s: promote id %d: %w", Name, req.ID, err)
			}
			return store.Object{}, false
		}
		return o, true
	}
	return a.t2.Find(req, true)
}

// Err returns the first promotion failure.
func (a *ARC) Err() error { return a.err }

// Insert always admits into T1.
func (a *ARC) Insert(req *trace.Request) error {
	if a.t2.Contains(req.ID) {
		return fmt.Errorf("%s: %w: id %d", Name, store.ErrExists, req.ID)
	}
	return a.t1.Insert(req)
}

type direction struct {
	from     *lru.LRU
	dropFrom *lru.LRU // ghost that forgets the request id, may be nil
	addTo    *lru.LRU // ghost that remembers the victim
}

func (a *ARC) direction(req *trace.Request) direction {
	var d direction
	switch {
	case req != nil && a.b1.Contains(req.ID):
		if a.t2.Len() > 0 {
			d = direction{from: a.t2, dropFrom: a.b1, addTo: a.b2}
		} else {
			d = direction{from: a.t1, dropFrom: a.b1, addTo: a.b1}
		}
	case req != nil && a.b2.Contains(req.ID):
		d = direction{from: a.t1, dropFrom: a.b2, addTo: a.b1}
	default:
		d = direction{from: a.t1, addTo: a.b1}
	}
	// Repeated evictions for one request may drain the chosen segment.
	if d.from.Len() == 0 {
		if d.from == a.t1 {
			d.from = a.t2
		} else {
			d.from = a.t1
		}
	}
	return d
}

func (a *ARC) ToEvict(req *trace.Request) (store.Object, error) {
	return a.direction(req).from.ToEvict(req)
}

func (a *ARC) Evict(req *trace.Request) (store.Object, error) {
	d := a.direction(req)
	victim, err := d.from.Evict(req)
	if err != nil {
		return victim, err
	}
	if d.dropFrom != nil {
		if err := d.dropFrom.Remove(req.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return victim, err
		}
	}
	if err := a.remember(d.addTo, victim, req); err != nil {
		return victim, err
	}
	return victim, nil
}

// remember records the victim in a ghost segment (touching it if already
// there) and trims the ghost to its byte budget.
func (a *ARC) remember(g *lru.LRU, victim store.Object, req *trace.Request) error {
	ts := victim.LastAccess
	if req != nil {
		ts = req.Timestamp
	}
	gr := trace.Request{ID: victim.ID, Size: uint32(victim.Size), Timestamp: ts}
	if _, ok := g.Find(&gr, true); !ok {
		if err := g.Insert(&gr); err != nil {
			return err
		}
	}
	for g.UsedBytes() > a.ghostCap {
		if _, err := g.Evict(&gr); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes id from whichever data segment holds it.
func (a *ARC) Remove(id uint64) error {
	if a.t1.Contains(id) {
		return a.t1.Remove(id)
	}
	if a.t2.Contains(id) {
		return a.t2.Remove(id)
	}
	return fmt.Errorf("%s: %w: id %d", Name, store.ErrNotFound, id)
}

// InGhost reports membership of id in B1 and B2.
func (a *ARC) InGhost(id uint64) (b1, b2 bool) {
	return a.b1.Contains(id), a.b2.Contains(id)
}

// Check verifies every segment and that no id is resident in both T1 and T2.
func (a *ARC) Check() error {
	if a.err != nil {
		return a.err
	}
	for _, seg := range []*lru.LRU{a.t1, a.t2, a.b1, a.b2} {
		if err := seg.Check(); err != nil {
			return fmt.Errorf("%s: %w", Name, err)
		}
	}
	if a.b1.UsedBytes() > a.ghostCap || a.b2.UsedBytes() > a.ghostCap {
		return fmt.Errorf("%s: ghost segment over budget %d", Name, a.ghostCap)
	}
	small, big := a.t1, a.t2
	if small.Len() > big.Len() {
		small, big = big, small
	}
	var dup error
	small.Range(func(o *store.Object) bool {
		if big.Contains(o.ID) {
			dup = fmt.Errorf("%s: id %d resident in both T1 and T2", Name, o.ID)
			return false
		}
		return true
	})
	return dup
}

var (
	_ policy.Policy  = (*ARC)(nil)
	_ policy.Checker = (*ARC)(nil)
	_ policy.Failer  = (*ARC)(nil)
)
