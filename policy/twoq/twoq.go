// Package twoq implements the 2Q eviction policy.
package twoq

import (
	"container/list"
	"fmt"

	"github.com/IvanBrykalov/cachesim/policy"
	"github.com/IvanBrykalov/cachesim/store"
	"github.com/IvanBrykalov/cachesim/trace"
)

// Name is the registry name of the policy.
const Name = "2q"

// Options configures 2Q. Ratios are fractions of the byte capacity.
// Common choices: InRatio ≈ 0.25; GhostRatio ≈ 0.5–1.0.
type Options struct {
	InRatio    float64 `yaml:"in_ratio"`
	GhostRatio float64 `yaml:"ghost_ratio"`
}

const (
	inA1 = iota // Object.Segment of A1in members
	inAm
)

type ghost struct {
	id   uint64
	size int64
}

// TwoQ implements 2Q.
//
// Resident queues (one store, two intrusive lists):
//   - A1in (younger queue): FIFO of first-time entries
//   - Am   (mature queue):  LRU of entries referenced again
//
// Ghost A1out: ids only (no payload), tracks recently evicted A1in ids to
// give them a second chance (bypass A1in on re-admission).
type TwoQ struct {
	capacity int64
	capIn    int64 // A1in byte budget
	capGhost int64 // A1out byte budget

	s      *store.Store
	a1     store.List
	am     store.List
	a1Used int64

	// A1out: MRU at Front() -> LRU at Back()
	ghostList *list.List
	ghostIdx  map[uint64]*list.Element // id -> element (element.Value is ghost)
	ghostUsed int64
}

// New returns an empty 2Q policy.
func New(capacity int64, opt Options) (*TwoQ, error) {
	if err := policy.CheckCapacity(Name, capacity); err != nil {
		return nil, err
	}
	if opt.InRatio == 0 {
		opt.InRatio = 0.25
	}
	if opt.GhostRatio == 0 {
		opt.GhostRatio = 0.5
	}
	if opt.InRatio < 0 || opt.InRatio >= 1 {
		return nil, &policy.ConfigError{Policy: Name, Param: "in_ratio", Reason: fmt.Sprintf("must be in (0, 1), got %v", opt.InRatio)}
	}
	if opt.GhostRatio < 0 {
		return nil, &policy.ConfigError{Policy: Name, Param: "ghost_ratio", Reason: fmt.Sprintf("must be > 0, got %v", opt.GhostRatio)}
	}
	capIn := int64(float64(capacity) * opt.InRatio)
	if capIn < 1 {
		capIn = 1
	}
	capGhost := int64(float64(capacity) * opt.GhostRatio)
	if capGhost < 1 {
		capGhost = 1
	}
	return &TwoQ{
		capacity:  capacity,
		capIn:     capIn,
		capGhost:  capGhost,
		s:         store.New(0),
		ghostList: list.New(),
		ghostIdx:  make(map[uint64]*list.Element),
	}, nil
}

func (q *TwoQ) Name() string     { return Name }
func (q *TwoQ) Capacity() int64  { return q.capacity }
func (q *TwoQ) UsedBytes() int64 { return q.s.UsedBytes() }
func (q *TwoQ) Len() int         { return q.s.Len() }

// Find on a hit: an A1in member is promoted to Am (MRU); an Am member is
// moved to MRU.
func (q *TwoQ) Find(req *trace.Request, update bool) (store.Object, bool) {
	h, ok := q.s.Find(req.ID)
	if !ok {
		return store.Object{}, false
	}
	o := q.s.At(h)
	if update {
		o.LastAccess = req.Timestamp
		o.Freq++
		if o.Segment == inA1 {
			q.s.Unlink(&q.a1, h)
			q.a1Used -= o.Size
			o.Segment = inAm
			q.s.Append(&q.am, h)
		} else {
			q.s.MoveToTail(&q.am, h)
		}
	}
	return *q.s.At(h), true
}

// Insert admission rules:
//   - If the id is present in ghosts (A1out), bypass A1in and admit
//     directly to Am (MRU). The ghost entry is dropped.
//   - Otherwise admit into A1in.
func (q *TwoQ) Insert(req *trace.Request) error {
	h, err := q.s.Insert(req)
	if err != nil {
		return err
	}
	o := q.s.At(h)
	if ge, ok := q.ghostIdx[req.ID]; ok {
		q.dropGhost(ge)
		o.Segment = inAm
		q.s.Append(&q.am, h)
		return nil
	}
	o.Segment = inA1
	q.s.Append(&q.a1, h)
	q.a1Used += o.Size
	return nil
}

// victim picks A1in's oldest entry while A1in is over budget (or Am is
// empty), otherwise Am's LRU entry.
func (q *TwoQ) victim() store.Handle {
	if q.a1.Len() > 0 && (q.a1Used > q.capIn || q.am.Len() == 0) {
		return q.a1.Head()
	}
	return q.am.Head()
}

func (q *TwoQ) ToEvict(_ *trace.Request) (store.Object, error) {
	h := q.victim()
	if h == store.Nil {
		return store.Object{}, store.ErrEmpty
	}
	return *q.s.At(h), nil
}

// Evict removes the victim. A1in victims are remembered in A1out;
// evictions from Am do NOT populate ghosts.
func (q *TwoQ) Evict(_ *trace.Request) (store.Object, error) {
	h := q.victim()
	if h == store.Nil {
		return store.Object{}, store.ErrEmpty
	}
	fromA1 := q.s.At(h).Segment == inA1
	o, err := q.take(h)
	if err != nil {
		return o, err
	}
	if fromA1 {
		q.addGhost(o.ID, o.Size)
	}
	return o, nil
}

func (q *TwoQ) Remove(id uint64) error {
	h, ok := q.s.Find(id)
	if !ok {
		return fmt.Errorf("%s: %w: id %d", Name, store.ErrNotFound, id)
	}
	_, err := q.take(h)
	return err
}

func (q *TwoQ) take(h store.Handle) (store.Object, error) {
	o := q.s.At(h)
	if o.Segment == inA1 {
		q.s.Unlink(&q.a1, h)
		q.a1Used -= o.Size
	} else {
		q.s.Unlink(&q.am, h)
	}
	return q.s.Remove(o.ID)
}

// addGhost inserts/moves id to the ghost MRU and trims the ghost budget
// (drop LRU ghosts).
func (q *TwoQ) addGhost(id uint64, size int64) {
	if old := q.ghostIdx[id]; old != nil {
		q.dropGhost(old)
	}
	q.ghostIdx[id] = q.ghostList.PushFront(ghost{id: id, size: size})
	q.ghostUsed += size
	for q.ghostUsed > q.capGhost {
		tail := q.ghostList.Back()
		if tail == nil {
			break
		}
		q.dropGhost(tail)
	}
}

func (q *TwoQ) dropGhost(e *list.Element) {
	g := e.Value.(ghost)
	q.ghostList.Remove(e)
	delete(q.ghostIdx, g.id)
	q.ghostUsed -= g.size
}

// InGhost reports whether id is remembered in A1out.
func (q *TwoQ) InGhost(id uint64) bool {
	_, ok := q.ghostIdx[id]
	return ok
}

func (q *TwoQ) Check() error {
	if err := q.s.Check(); err != nil {
		return err
	}
	for _, l := range []*store.List{&q.a1, &q.am} {
		if err := q.s.CheckList(l); err != nil {
			return err
		}
	}
	if n := q.a1.Len() + q.am.Len(); n != q.s.Len() {
		return fmt.Errorf("%s: queues hold %d objects, index has %d", Name, n, q.s.Len())
	}
	var a1 int64
	for h := q.a1.Head(); h != store.Nil; h = q.s.Next(h) {
		a1 += q.s.At(h).Size
	}
	if a1 != q.a1Used {
		return fmt.Errorf("%s: A1in bytes %d, scan says %d", Name, q.a1Used, a1)
	}
	if q.ghostList.Len() != len(q.ghostIdx) {
		return fmt.Errorf("%s: ghost list/index disagree", Name)
	}
	return nil
}

var (
	_ policy.Policy  = (*TwoQ)(nil)
	_ policy.Checker = (*TwoQ)(nil)
)
