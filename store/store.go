// Package store is the object store shared by all eviction policies: an
// arena of objects addressed by stable handles, an id index, running byte
// accounting and intrusive doubly linked list primitives.
//
// A Store is single-threaded; each simulated cache owns its own.
package store

import (
	"fmt"

	"github.com/IvanBrykalov/cachesim/trace"
)

// Store owns cache objects. UsedBytes always equals the sum of Size over
// resident objects; it is maintained on every Insert/Remove.
type Store struct {
	objs  []Object // objs[0] is reserved for Nil
	free  []Handle
	index map[uint64]Handle
	used  int64
}

// New returns an empty store sized for about hint objects.
func New(hint int) *Store {
	if hint < 0 {
		hint = 0
	}
	s := &Store{
		objs:  make([]Object, 1, hint+1),
		index: make(map[uint64]Handle, hint),
	}
	return s
}

// Len returns the number of resident objects.
func (s *Store) Len() int { return len(s.index) }

// UsedBytes returns the total size of resident objects.
func (s *Store) UsedBytes() int64 { return s.used }

// Contains reports whether id is resident.
func (s *Store) Contains(id uint64) bool {
	_, ok := s.index[id]
	return ok
}

// Find returns the handle of id without mutating anything.
func (s *Store) Find(id uint64) (Handle, bool) {
	h, ok := s.index[id]
	return h, ok
}

// At returns the object behind h. The pointer is valid until the next Insert.
func (s *Store) At(h Handle) *Object { return &s.objs[h] }

// Insert creates an object from req. It fails with ErrExists if the id is
// already resident; callers check Contains first.
func (s *Store) Insert(req *trace.Request) (Handle, error) {
	o := Object{
		ID:         req.ID,
		Size:       int64(req.Size),
		CreateTime: req.Timestamp,
		LastAccess: req.Timestamp,
		Freq:       1,
	}
	if req.TTL > 0 {
		o.ExpireAt = req.Timestamp + int64(req.TTL)
	}
	return s.Adopt(o)
}

// Adopt stores a copy of o (for example an object moved out of another
// store), keeping its metadata. List links are reset.
func (s *Store) Adopt(o Object) (Handle, error) {
	if _, ok := s.index[o.ID]; ok {
		return Nil, fmt.Errorf("%w: id %d", ErrExists, o.ID)
	}
	var h Handle
	if n := len(s.free); n > 0 {
		h = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		s.objs = append(s.objs, Object{})
		h = Handle(len(s.objs) - 1)
	}
	o.prev, o.next, o.linked = Nil, Nil, false
	s.objs[h] = o
	s.index[o.ID] = h
	s.used += o.Size
	return h, nil
}

// Remove deletes id and returns a copy of the removed object. The object
// must have been unlinked from every list first.
func (s *Store) Remove(id uint64) (Object, error) {
	h, ok := s.index[id]
	if !ok {
		return Object{}, notFound(id)
	}
	o := s.objs[h]
	if o.linked {
		return Object{}, fmt.Errorf("%w: id %d", ErrLinked, id)
	}
	delete(s.index, id)
	s.used -= o.Size
	s.objs[h] = Object{}
	s.free = append(s.free, h)
	return o, nil
}

// Resize changes the size of a resident object, keeping UsedBytes exact.
func (s *Store) Resize(h Handle, size int64) {
	o := &s.objs[h]
	s.used += size - o.Size
	o.Size = size
}

// Range calls fn for every resident object until fn returns false.
// Iteration order is unspecified.
func (s *Store) Range(fn func(h Handle, o *Object) bool) {
	for _, h := range s.index {
		if !fn(h, &s.objs[h]) {
			return
		}
	}
}

// ScanBytes recomputes the resident byte total by a full scan.
// Intended for invariant checks only.
func (s *Store) ScanBytes() int64 {
	var total int64
	for _, h := range s.index {
		total += s.objs[h].Size
	}
	return total
}

// Check verifies that the running byte total matches a full scan.
func (s *Store) Check() error {
	if s.used < 0 {
		return fmt.Errorf("store: negative used bytes %d", s.used)
	}
	if scan := s.ScanBytes(); scan != s.used {
		return fmt.Errorf("store: used bytes %d, scan says %d", s.used, scan)
	}
	return nil
}
