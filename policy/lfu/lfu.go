// Package lfu implements Least-Frequently-Used eviction over a binary heap.
// Ties on frequency go to the object touched least recently.
package lfu

import (
	"container/heap"
	"fmt"

	"github.com/IvanBrykalov/cachesim/policy"
	"github.com/IvanBrykalov/cachesim/store"
	"github.com/IvanBrykalov/cachesim/trace"
)

// Name is the registry name of the policy.
const Name = "lfu"

type entry struct {
	h    store.Handle
	freq int64
	seq  uint64 // logical time of the last touch
}

// pq is a min-heap on (freq, seq). Object.Index mirrors each entry's slot.
type pq struct {
	s     *store.Store
	items []entry
}

func (q *pq) Len() int { return len(q.items) }
func (q *pq) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.freq != b.freq {
		return a.freq < b.freq
	}
	return a.seq < b.seq
}
func (q *pq) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.s.At(q.items[i].h).Index = i
	q.s.At(q.items[j].h).Index = j
}
func (q *pq) Push(x any) {
	e := x.(entry)
	q.s.At(e.h).Index = len(q.items)
	q.items = append(q.items, e)
}
func (q *pq) Pop() any {
	n := len(q.items) - 1
	e := q.items[n]
	q.items = q.items[:n]
	return e
}

// LFU evicts the object with the lowest reference count.
type LFU struct {
	capacity int64
	s        *store.Store
	q        pq
	clock    uint64
}

// New returns an empty LFU.
func New(capacity int64) (*LFU, error) {
	if err := policy.CheckCapacity(Name, capacity); err != nil {
		return nil, err
	}
	s := store.New(0)
	return &LFU{capacity: capacity, s: s, q: pq{s: s}}, nil
}

func (p *LFU) Name() string     { return Name }
func (p *LFU) Capacity() int64  { return p.capacity }
func (p *LFU) UsedBytes() int64 { return p.s.UsedBytes() }
func (p *LFU) Len() int         { return p.s.Len() }

func (p *LFU) Find(req *trace.Request, update bool) (store.Object, bool) {
	h, ok := p.s.Find(req.ID)
	if !ok {
		return store.Object{}, false
	}
	o := p.s.At(h)
	if update {
		o.LastAccess = req.Timestamp
		o.Freq++
		p.clock++
		e := &p.q.items[o.Index]
		e.freq, e.seq = o.Freq, p.clock
		heap.Fix(&p.q, o.Index)
	}
	return *p.s.At(h), true
}

func (p *LFU) Insert(req *trace.Request) error {
	h, err := p.s.Insert(req)
	if err != nil {
		return err
	}
	p.clock++
	heap.Push(&p.q, entry{h: h, freq: p.s.At(h).Freq, seq: p.clock})
	return nil
}

func (p *LFU) ToEvict(_ *trace.Request) (store.Object, error) {
	if p.q.Len() == 0 {
		return store.Object{}, store.ErrEmpty
	}
	return *p.s.At(p.q.items[0].h), nil
}

func (p *LFU) Evict(_ *trace.Request) (store.Object, error) {
	if p.q.Len() == 0 {
		return store.Object{}, store.ErrEmpty
	}
	e := heap.Pop(&p.q).(entry)
	return p.s.Remove(p.s.At(e.h).ID)
}

func (p *LFU) Remove(id uint64) error {
	h, ok := p.s.Find(id)
	if !ok {
		return fmt.Errorf("%s: %w: id %d", Name, store.ErrNotFound, id)
	}
	heap.Remove(&p.q, p.s.At(h).Index)
	_, err := p.s.Remove(id)
	return err
}

func (p *LFU) Check() error {
	if err := p.s.Check(); err != nil {
		return err
	}
	if p.q.Len() != p.s.Len() {
		return fmt.Errorf("%s: heap has %d objects, index has %d", Name, p.q.Len(), p.s.Len())
	}
	for i, e := range p.q.items {
		o := p.s.At(e.h)
		if o.Index != i {
			return fmt.Errorf("%s: id %d at heap slot %d records slot %d", Name, o.ID, i, o.Index)
		}
		if o.Freq != e.freq {
			return fmt.Errorf("%s: id %d heap frequency %d, object says %d", Name, o.ID, e.freq, o.Freq)
		}
	}
	return nil
}

var (
	_ policy.Policy  = (*LFU)(nil)
	_ policy.Checker = (*LFU)(nil)
)
