// Package lru implements the LRU eviction policy.
package lru

import (
	"fmt"

	"github.com/IvanBrykalov/cachesim/policy"
	"github.com/IvanBrykalov/cachesim/store"
	"github.com/IvanBrykalov/cachesim/trace"
)

// Name is the registry name of the policy.
const Name = "lru"

// LRU is a classic move-to-tail Least-Recently-Used policy.
// The list head is the LRU end (next victim), the tail is MRU.
// Equal recency cannot happen: every touch moves to a unique position.
type LRU struct {
	capacity int64
	s        *store.Store
	q        store.List
}

// New returns an empty LRU with the given byte capacity.
func New(capacity int64) (*LRU, error) {
	if err := policy.CheckCapacity(Name, capacity); err != nil {
		return nil, err
	}
	return &LRU{capacity: capacity, s: store.New(0)}, nil
}

func (p *LRU) Name() string     { return Name }
func (p *LRU) Capacity() int64  { return p.capacity }
func (p *LRU) UsedBytes() int64 { return p.s.UsedBytes() }
func (p *LRU) Len() int         { return p.s.Len() }

// Contains reports membership without touching the object.
func (p *LRU) Contains(id uint64) bool { return p.s.Contains(id) }

// Find promotes the object to MRU when update is set.
func (p *LRU) Find(req *trace.Request, update bool) (store.Object, bool) {
	h, ok := p.s.Find(req.ID)
	if !ok {
		return store.Object{}, false
	}
	o := p.s.At(h)
	if update {
		o.LastAccess = req.Timestamp
		o.Freq++
		p.s.MoveToTail(&p.q, h)
	}
	return *o, true
}

// Insert places the new object at MRU.
func (p *LRU) Insert(req *trace.Request) error {
	h, err := p.s.Insert(req)
	if err != nil {
		return err
	}
	p.s.Append(&p.q, h)
	return nil
}

// Adopt places an object taken from another policy at MRU, keeping its
// metadata. Used by segmented policies to move objects between segments.
func (p *LRU) Adopt(o store.Object) error {
	h, err := p.s.Adopt(o)
	if err != nil {
		return err
	}
	p.s.Append(&p.q, h)
	return nil
}

// ToEvict returns the LRU object.
func (p *LRU) ToEvict(_ *trace.Request) (store.Object, error) {
	h := p.q.Head()
	if h == store.Nil {
		return store.Object{}, store.ErrEmpty
	}
	return *p.s.At(h), nil
}

// Evict removes the LRU object.
func (p *LRU) Evict(_ *trace.Request) (store.Object, error) {
	h := p.q.Head()
	if h == store.Nil {
		return store.Object{}, store.ErrEmpty
	}
	return p.take(h)
}

// Remove deletes id.
func (p *LRU) Remove(id uint64) error {
	_, err := p.Take(id)
	return err
}

// Take deletes id and returns the removed object.
func (p *LRU) Take(id uint64) (store.Object, error) {
	h, ok := p.s.Find(id)
	if !ok {
		return store.Object{}, fmt.Errorf("%s: %w: id %d", Name, store.ErrNotFound, id)
	}
	return p.take(h)
}

func (p *LRU) take(h store.Handle) (store.Object, error) {
	p.s.Unlink(&p.q, h)
	return p.s.Remove(p.s.At(h).ID)
}

// Range calls fn for resident objects from LRU to MRU until fn returns false.
func (p *LRU) Range(fn func(o *store.Object) bool) {
	for h := p.q.Head(); h != store.Nil; h = p.s.Next(h) {
		if !fn(p.s.At(h)) {
			return
		}
	}
}

// Check verifies that the recency list and the index agree.
func (p *LRU) Check() error {
	if err := p.s.Check(); err != nil {
		return err
	}
	if err := p.s.CheckList(&p.q); err != nil {
		return err
	}
	if p.q.Len() != p.s.Len() {
		return fmt.Errorf("%s: list has %d objects, index has %d", Name, p.q.Len(), p.s.Len())
	}
	return nil
}

var (
	_ policy.Policy  = (*LRU)(nil)
	_ policy.Checker = (*LRU)(nil)
)
