// Package random implements uniform random eviction with a policy-owned,
// seeded generator, so runs are reproducible.
package random

import (
	"fmt"
	"math/rand"

	"github.com/IvanBrykalov/cachesim/policy"
	"github.com/IvanBrykalov/cachesim/store"
	"github.com/IvanBrykalov/cachesim/trace"
)

// Name is the registry name of the policy.
const Name = "random"

// Options configures Random.
type Options struct {
	Seed int64 `yaml:"seed"`
}

// Random evicts a uniformly sampled resident object.
type Random struct {
	capacity int64
	s        *store.Store
	ids      *store.Dense[struct{}]
	rng      *rand.Rand

	// victim picked by ToEvict and not yet evicted
	pending    uint64
	hasPending bool
}

// New returns an empty Random policy.
func New(capacity int64, opt Options) (*Random, error) {
	if err := policy.CheckCapacity(Name, capacity); err != nil {
		return nil, err
	}
	return &Random{
		capacity: capacity,
		s:        store.New(0),
		ids:      store.NewDense[struct{}](0),
		rng:      rand.New(rand.NewSource(opt.Seed)),
	}, nil
}

func (p *Random) Name() string     { return Name }
func (p *Random) Capacity() int64  { return p.capacity }
func (p *Random) UsedBytes() int64 { return p.s.UsedBytes() }
func (p *Random) Len() int         { return p.s.Len() }

func (p *Random) Find(req *trace.Request, update bool) (store.Object, bool) {
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

func (p *Random) Insert(req *trace.Request) error {
	if _, err := p.s.Insert(req); err != nil {
		return err
	}
	p.ids.Add(req.ID, struct{}{})
	return nil
}

// ToEvict samples a victim and remembers it, so a following Evict removes
// the same object.
func (p *Random) ToEvict(_ *trace.Request) (store.Object, error) {
	id, err := p.pick()
	if err != nil {
		return store.Object{}, err
	}
	h, _ := p.s.Find(id)
	return *p.s.At(h), nil
}

func (p *Random) Evict(_ *trace.Request) (store.Object, error) {
	id, err := p.pick()
	if err != nil {
		return store.Object{}, err
	}
	return p.take(id)
}

func (p *Random) Remove(id uint64) error {
	if !p.s.Contains(id) {
		return fmt.Errorf("%s: %w: id %d", Name, store.ErrNotFound, id)
	}
	_, err := p.take(id)
	return err
}

func (p *Random) pick() (uint64, error) {
	if p.hasPending && p.s.Contains(p.pending) {
		return p.pending, nil
	}
	if p.ids.Len() == 0 {
		return 0, store.ErrEmpty
	}
	id, _ := p.ids.At(p.rng.Intn(p.ids.Len()))
	p.pending, p.hasPending = id, true
	return id, nil
}

func (p *Random) take(id uint64) (store.Object, error) {
	if p.hasPending && p.pending == id {
		p.hasPending = false
	}
	p.ids.Remove(id)
	return p.s.Remove(id)
}

func (p *Random) Check() error {
	if err := p.s.Check(); err != nil {
		return err
	}
	if p.ids.Len() != p.s.Len() {
		return fmt.Errorf("%s: sample array has %d ids, index has %d", Name, p.ids.Len(), p.s.Len())
	}
	for i := 0; i < p.ids.Len(); i++ {
		if id, _ := p.ids.At(i); !p.s.Contains(id) {
			return fmt.Errorf("%s: sampled id %d not resident", Name, id)
		}
	}
	return nil
}

var (
	_ policy.Policy  = (*Random)(nil)
	_ policy.Checker = (*Random)(nil)
)
