// Package slru implements segmented LRU: N LRU segments of capacity/N bytes
// each. New objects enter segment 0; a hit promotes an object one segment
// up. When a segment overflows, its LRU objects are demoted one segment
// down; only segment 0 evicts, as soon as it holds more than its quota.
package slru

import (
	"fmt"

	"github.com/IvanBrykalov/cachesim/policy"
	"github.com/IvanBrykalov/cachesim/policy/lru"
	"github.com/IvanBrykalov/cachesim/store"
	"github.com/IvanBrykalov/cachesim/trace"
)

// Name is the registry name of the policy.
const Name = "slru"

// Options configures SLRU.
type Options struct {
	// Segments is the number of LRU segments (>= 1). Zero means 4.
	Segments int `yaml:"n_segments"`
}

// SLRU is the segment-composed SLRU policy.
type SLRU struct {
	capacity int64
	quota    int64 // per-segment byte budget
	segs     []*lru.LRU
	err      error // first failed promotion
}

// New returns an empty SLRU.
func New(capacity int64, opt Options) (*SLRU, error) {
	if err := policy.CheckCapacity(Name, capacity); err != nil {
		return nil, err
	}
	if opt.Segments == 0 {
		opt.Segments = 4
	}
	if opt.Segments < 1 {
		return nil, &policy.ConfigError{Policy: Name, Param: "n_segments", Reason: fmt.Sprintf("must be >= 1, got %d", opt.Segments)}
	}
	quota := capacity / int64(opt.Segments)
	if quota < 1 {
		return nil, &policy.ConfigError{Policy: Name, Param: "n_segments",
			Reason: fmt.Sprintf("%d segments leave no room in a %d byte cache", opt.Segments, capacity)}
	}
	p := &SLRU{capacity: capacity, quota: quota, segs: make([]*lru.LRU, opt.Segments)}
	for i := range p.segs {
		seg, err := lru.New(quota)
		if err != nil {
			return nil, err
		}
		p.segs[i] = seg
	}
	return p, nil
}

func (p *SLRU) Name() string    { return Name }
func (p *SLRU) Capacity() int64 { return p.capacity }

func (p *SLRU) UsedBytes() int64 {
	var n int64
	for _, s := range p.segs {
		n += s.UsedBytes()
	}
	return n
}

func (p *SLRU) Len() int {
	n := 0
	for _, s := range p.segs {
		n += s.Len()
	}
	return n
}

// SegmentBytes returns the bytes held by each segment, lowest first.
func (p *SLRU) SegmentBytes() []int64 {
	out := make([]int64, len(p.segs))
	for i, s := range p.segs {
		out[i] = s.UsedBytes()
	}
	return out
}

func (p *SLRU) segmentOf(id uint64) int {
	for i, s := range p.segs {
		if s.Contains(id) {
			return i
		}
	}
	return -1
}

// Find promotes an updating hit one segment up; a hit in the top segment
// is moved to its MRU end. A failed promotion is latched in Err and the
// lookup reports a miss.
func (p *SLRU) Find(req *trace.Request, update bool) (store.Object, bool) {
	i := p.segmentOf(req.ID)
	if i < 0 {
		return store.Object{}, false
	}
	if !update || i == len(p.segs)-1 {
		return p.segs[i].Find(req, update)
	}
	o, err := p.segs[i].Take(req.ID)
	if err == nil {
		o.LastAccess = req.Timestamp
		o.Freq++
		err = p.segs[i+1].Adopt(o)
	}
	if err == nil {
		err = p.demote(i + 1)
	}
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("%s: promote id %d from segment %d: %w", Name, req.ID, i, err)
		}
		return store.Object{}, false
	}
	return o, true
}

// Err returns the first promotion failure.
func (p *SLRU) Err() error { return p.err }

// Overfull reports whether segment 0 holds more than its quota.
func (p *SLRU) Overfull() bool { return p.segs[0].UsedBytes() > p.quota }

// demote cascades overflow down from segment top: while a segment is over
// its quota its LRU object moves one segment down. Segment 0 absorbs the
// overflow until the next admission trims it.
func (p *SLRU) demote(top int) error {
	for j := top; j > 0; j-- {
		for p.segs[j].UsedBytes() > p.quota {
			o, err := p.segs[j].Evict(nil)
			if err != nil {
				return err
			}
			if err := p.segs[j-1].Adopt(o); err != nil {
				return err
			}
		}
	}
	return nil
}

// Insert admits into segment 0.
func (p *SLRU) Insert(req *trace.Request) error {
	if i := p.segmentOf(req.ID); i >= 0 {
		return fmt.Errorf("%s: %w: id %d in segment %d", Name, store.ErrExists, req.ID, i)
	}
	return p.segs[0].Insert(req)
}

// lowest returns the lowest non-empty segment, or nil.
func (p *SLRU) lowest() *lru.LRU {
	for _, s := range p.segs {
		if s.Len() > 0 {
			return s
		}
	}
	return nil
}

func (p *SLRU) ToEvict(req *trace.Request) (store.Object, error) {
	s := p.lowest()
	if s == nil {
		return store.Object{}, store.ErrEmpty
	}
	return s.ToEvict(req)
}

func (p *SLRU) Evict(req *trace.Request) (store.Object, error) {
	s := p.lowest()
	if s == nil {
		return store.Object{}, store.ErrEmpty
	}
	return s.Evict(req)
}

func (p *SLRU) Remove(id uint64) error {
	i := p.segmentOf(id)
	if i < 0 {
		return fmt.Errorf("%s: %w: id %d", Name, store.ErrNotFound, id)
	}
	return p.segs[i].Remove(id)
}

// Check verifies every segment, the quota of segments above 0 and that no
// id is resident in two segments. Segment 0 may exceed its quota after a
// demotion of a larger object.
func (p *SLRU) Check() error {
	if p.err != nil {
		return p.err
	}
	seen := make(map[uint64]int, p.Len())
	for i, s := range p.segs {
		if err := s.Check(); err != nil {
			return fmt.Errorf("%s: segment %d: %w", Name, i, err)
		}
		if i > 0 && s.UsedBytes() > p.quota {
			return fmt.Errorf("%s: segment %d holds %d bytes, quota %d", Name, i, s.UsedBytes(), p.quota)
		}
		var dup error
		s.Range(func(o *store.Object) bool {
			if j, ok := seen[o.ID]; ok {
				dup = fmt.Errorf("%s: id %d in segments %d and %d", Name, o.ID, j, i)
				return false
			}
			seen[o.ID] = i
			return true
		})
		if dup != nil {
			return dup
		}
	}
	return nil
}

var (
	_ policy.Policy  = (*SLRU)(nil)
	_ policy.Checker  = (*SLRU)(nil)
	_ policy.Overfull = (*SLRU)(nil)
	_ policy.Failer   = (*SLRU)(nil)
)
