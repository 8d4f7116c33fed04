// Package profiler computes reuse (stack) distances over a request stream
// and derives exact LRU miss-ratio curves from them in a single pass.
//
// The stack distance of a request is the number of distinct objects
// referenced since the previous reference to the same object, which is
// the object's depth in an LRU stack. A splay tree keyed by virtual time
// holds one node per live object at its last access time; the distance is
// the number of nodes after that time.
package profiler

import (
	"github.com/IvanBrykalov/cachesim/trace"
)

// Cold is the distance of a first (compulsory) reference.
const Cold int64 = -1

// Profiler computes stack distances incrementally.
type Profiler struct {
	t    tree
	last map[uint64]int64 // id -> virtual time of last reference
	now  int64
}

// New returns an empty Profiler.
func New() *Profiler {
	return &Profiler{last: make(map[uint64]int64)}
}

// Access records a reference to id and returns its stack distance, or Cold.
func (p *Profiler) Access(id uint64) int64 {
	d := Cold
	if prev, ok := p.last[id]; ok {
		d = int64(p.t.greater(prev))
		p.t.remove(prev)
	}
	p.t.insert(p.now)
	p.last[id] = p.now
	p.now++
	return d
}

// Forget drops id, as a delete removes it from an LRU stack. It reports
// whether id was known.
func (p *Profiler) Forget(id uint64) bool {
	prev, ok := p.last[id]
	if !ok {
		return false
	}
	p.t.remove(prev)
	delete(p.last, id)
	return true
}

// Objects returns the number of distinct live objects seen.
func (p *Profiler) Objects() int { return p.t.len() }

// StackDistances rewinds r and returns one distance per non-delete
// request. Delete requests remove the object from the stack, so its next
// reference is Cold; objects below it move up one level, which a real
// LRU of fixed size does not do. Curves are exact only for traces
// without deletes.
func StackDistances(r trace.Reader) []int64 {
	var out []int64
	each(r, func(req *trace.Request, d int64) { out = append(out, d) })
	return out
}

// each replays r through a Profiler, calling fn for every non-delete
// request.
func each(r trace.Reader, fn func(req *trace.Request, d int64)) {
	r.Reset()
	p := New()
	var req trace.Request
	for r.Next(&req); req.Valid; r.Next(&req) {
		if req.Op == trace.OpDelete {
			p.Forget(req.ID)
			continue
		}
		fn(&req, p.Access(req.ID))
	}
}

// FutureStackDistances returns, per non-delete request, the number of
// distinct objects referenced before the next reference to the same
// object, or Cold when there is none. Deletes are ignored. The id stream
// is materialized to walk it backwards.
func FutureStackDistances(r trace.Reader) []int64 {
	r.Reset()
	var ids []uint64
	var req trace.Request
	for r.Next(&req); req.Valid; r.Next(&req) {
		if req.Op != trace.OpDelete {
			ids = append(ids, req.ID)
		}
	}
	out := make([]int64, len(ids))
	p := New()
	for i := len(ids) - 1; i >= 0; i-- {
		out[i] = p.Access(ids[i])
	}
	return out
}

// Since selects the reference point of AccessDistances.
type Since int

const (
	// SinceLast measures from the previous reference.
	SinceLast Since = iota
	// SinceFirst measures from the first reference.
	SinceFirst
)

// AccessDistances returns, per non-delete request, the number of requests
// (not distinct objects) since the previous or first reference to the same
// object, or Cold.
func AccessDistances(r trace.Reader, since Since) []int64 {
	r.Reset()
	seen := make(map[uint64]int64)
	var (
		out []int64
		now int64
		req trace.Request
	)
	for r.Next(&req); req.Valid; r.Next(&req) {
		if req.Op == trace.OpDelete {
			continue
		}
		d := Cold
		if t, ok := seen[req.ID]; ok {
			d = now - t
		}
		if d == Cold || since == SinceLast {
			seen[req.ID] = now
		}
		out = append(out, d)
		now++
	}
	return out
}
