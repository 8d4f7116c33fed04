// Package fifo implements first-in first-out eviction.
package fifo

import (
	"fmt"

	"github.com/IvanBrykalov/cachesim/policy"
	"github.com/IvanBrykalov/cachesim/store"
	"github.com/IvanBrykalov/cachesim/trace"
)

// Name is the registry name of the policy.
const Name = "fifo"

// FIFO evicts in insertion order; hits never reorder.
type FIFO struct {
	capacity int64
	s        *store.Store
	q        store.List
}

// New returns an empty FIFO with the given byte capacity.
func New(capacity int64) (*FIFO, error) {
	if err := policy.CheckCapacity(Name, capacity); err != nil {
		return nil, err
	}
	return &FIFO{capacity: capacity, s: store.New(0)}, nil
}

func (p *FIFO) Name() string     { return Name }
func (p *FIFO) Capacity() int64  { return p.capacity }
func (p *FIFO) UsedBytes() int64 { return p.s.UsedBytes() }
func (p *FIFO) Len() int         { return p.s.Len() }

func (p *FIFO) Find(req *trace.Request, update bool) (store.Object, bool) {
	h, ok := p.s.Find(req.ID)
	if !ok {
		return store.Object{}, false
	}
	o := p.s.At(h)
	if update {
		o.LastAccess = req.Timestamp
		o.Freq++
	}
	return *o, true
}

func (p *FIFO) Insert(req *trace.Request) error {
	h, err := p.s.Insert(req)
	if err != nil {
		return err
	}
	p.s.Append(&p.q, h)
	return nil
}

func (p *FIFO) ToEvict(_ *trace.Request) (store.Object, error) {
	h := p.q.Head()
	if h == store.Nil {
		return store.Object{}, store.ErrEmpty
	}
	return *p.s.At(h), nil
}

func (p *FIFO) Evict(_ *trace.Request) (store.Object, error) {
	h := p.q.Head()
	if h == store.Nil {
		return store.Object{}, store.ErrEmpty
	}
	p.s.Unlink(&p.q, h)
	return p.s.Remove(p.s.At(h).ID)
}

func (p *FIFO) Remove(id uint64) error {
	h, ok := p.s.Find(id)
	if !ok {
		return fmt.Errorf("%s: %w: id %d", Name, store.ErrNotFound, id)
	}
	p.s.Unlink(&p.q, h)
	_, err := p.s.Remove(id)
	return err
}

func (p *FIFO) Check() error {
	if err := p.s.Check(); err != nil {
		return err
	}
	if err := p.s.CheckList(&p.q); err != nil {
		return err
	}
	if p.q.Len() != p.s.Len() {
		return fmt.Errorf("%s: queue has %d objects, index has %d", Name, p.q.Len(), p.s.Len())
	}
	return nil
}

var (
	_ policy.Policy  = (*FIFO)(nil)
	_ policy.Checker = (*FIFO)(nil)
)
