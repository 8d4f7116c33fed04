// Package lhd implements LHD (Least Hit Density) eviction.
//
// Every resident object carries a tag (last reference time, the ages of its
// last two hits, size, explorer flag). Objects are grouped into classes by
// their recent hit ages; each class keeps age histograms of hits and
// evictions from which a hit density per age bucket is derived at every
// reconfiguration. On eviction a handful of random candidates plus the
// recently admitted ring are ranked by hit density and the lowest loses.
package lhd

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/IvanBrykalov/cachesim/policy"
	"github.com/IvanBrykalov/cachesim/store"
	"github.com/IvanBrykalov/cachesim/trace"
)

// Name is the registry name of the policy.
const Name = "lhd"

// Options configures LHD. Zero fields take the defaults listed.
type Options struct {
	// Associativity is the number of random eviction candidates (32).
	Associativity int `yaml:"associativity"`
	// Admissions is the size of the recently-admitted candidate ring (8).
	Admissions int `yaml:"admissions"`
	// ByteHitRate ranks by raw hit density instead of density per byte,
	// optimizing byte hit rate rather than object hit rate.
	ByteHitRate bool `yaml:"byte_hit_rate"`
	// MaxAge is the number of age buckets per class (20000).
	MaxAge int `yaml:"max_age"`
	// ReconfigureInterval is the number of references between model
	// updates (1<<20).
	ReconfigureInterval int64 `yaml:"reconfigure_interval"`
	// HitAgeClasses is the number of hit-age classes (16).
	HitAgeClasses int `yaml:"hit_age_classes"`
	// ExploreInverseProbability: one reference in N marks an explorer (32).
	ExploreInverseProbability int `yaml:"explore_inverse_probability"`
	// ExplorerBudgetFraction caps the bytes held by explorers (0.01).
	ExplorerBudgetFraction float64 `yaml:"explorer_budget_fraction"`
	// Seed seeds the policy's own generator.
	Seed int64 `yaml:"seed"`
}

const (
	ewmaDecay = 0.9

	// tolerated fraction of age-histogram overflows per interval
	ageCoarseningErrorTolerance = 0.01

	// explorers are only marked during the first reconfigurations
	exploreReconfigurations = 50

	initialAgeCoarseningShift = 10
	maxAgeCoarseningShift     = 40
)

func (o *Options) defaults() error {
	if o.Associativity == 0 {
		o.Associativity = 32
	}
	if o.Admissions == 0 {
		o.Admissions = 8
	}
	if o.MaxAge == 0 {
		o.MaxAge = 20000
	}
	if o.ReconfigureInterval == 0 {
		o.ReconfigureInterval = 1 << 20
	}
	if o.HitAgeClasses == 0 {
		o.HitAgeClasses = 16
	}
	if o.ExploreInverseProbability == 0 {
		o.ExploreInverseProbability = 32
	}
	if o.ExplorerBudgetFraction == 0 {
		o.ExplorerBudgetFraction = 0.01
	}
	bad := func(param string, v any) error {
		return &policy.ConfigError{Policy: Name, Param: param, Reason: fmt.Sprintf("must be positive, got %v", v)}
	}
	switch {
	case o.Associativity < 0:
		return bad("associativity", o.Associativity)
	case o.Admissions < 0:
		return bad("admissions", o.Admissions)
	case o.MaxAge < 2:
		return &policy.ConfigError{Policy: Name, Param: "max_age", Reason: fmt.Sprintf("must be >= 2, got %d", o.MaxAge)}
	case o.ReconfigureInterval < 0:
		return bad("reconfigure_interval", o.ReconfigureInterval)
	case o.HitAgeClasses < 0:
		return bad("hit_age_classes", o.HitAgeClasses)
	case o.ExploreInverseProbability < 0:
		return bad("explore_inverse_probability", o.ExploreInverseProbability)
	case o.ExplorerBudgetFraction < 0 || o.ExplorerBudgetFraction > 1:
		return &policy.ConfigError{Policy: Name, Param: "explorer_budget_fraction", Reason: fmt.Sprintf("must be in [0, 1], got %v", o.ExplorerBudgetFraction)}
	}
	return nil
}

type tag struct {
	timestamp      uint64
	lastHitAge     uint64
	lastLastHitAge uint64
	size           int64
	explorer       bool
}

type admitted struct {
	id    uint64
	valid bool
}

// LHD is the hit-density policy.
type LHD struct {
	capacity int64
	opt      Options
	maxAge   uint64

	s    *store.Store
	tags *store.Dense[tag]
	rng  *rand.Rand

	classes []class

	// time is measured in references
	timestamp           uint64
	nextReconfiguration int64
	reconfigurations    int

	ageCoarseningShift uint
	ewmaNumObjects     float64
	ewmaNumObjectsMass float64
	overflows          uint64

	recentlyAdmitted []admitted
	admittedHead     int

	ewmaVictimHitDensity float64
	explorerBudget       int64

	// victim ranked by ToEvict, consumed by the next Evict
	pending    uint64
	hasPending bool
}

// New returns an empty LHD.
func New(capacity int64, opt Options) (*LHD, error) {
	if err := policy.CheckCapacity(Name, capacity); err != nil {
		return nil, err
	}
	if err := opt.defaults(); err != nil {
		return nil, err
	}
	p := &LHD{
		capacity:            capacity,
		opt:                 opt,
		maxAge:              uint64(opt.MaxAge),
		s:                   store.New(0),
		tags:                store.NewDense[tag](0),
		rng:                 rand.New(rand.NewSource(opt.Seed)),
		nextReconfiguration: opt.ReconfigureInterval,
		ageCoarseningShift:  initialAgeCoarseningShift,
		recentlyAdmitted:    make([]admitted, opt.Admissions),
		explorerBudget:      int64(float64(capacity) * opt.ExplorerBudgetFraction),
	}
	p.classes = newClasses(opt.HitAgeClasses, opt.MaxAge)
	return p, nil
}

func (p *LHD) Name() string     { return Name }
func (p *LHD) Capacity() int64  { return p.capacity }
func (p *LHD) UsedBytes() int64 { return p.s.UsedBytes() }
func (p *LHD) Len() int         { return p.s.Len() }

// AgeCoarseningShift returns the current age right-shift.
func (p *LHD) AgeCoarseningShift() uint { return p.ageCoarseningShift }

// Reconfigurations returns how many model updates have run.
func (p *LHD) Reconfigurations() int { return p.reconfigurations }

func (p *LHD) Find(req *trace.Request, update bool) (store.Object, bool) {
	h, ok := p.s.Find(req.ID)
	if !ok {
		return store.Object{}, false
	}
	o := p.s.At(h)
	if update {
		o.LastAccess = req.Timestamp
		o.Freq++
		p.hasPending = false
		p.reference(req.ID, o.Size, false)
	}
	return *o, true
}

func (p *LHD) Insert(req *trace.Request) error {
	h, err := p.s.Insert(req)
	if err != nil {
		return err
	}
	p.hasPending = false
	p.reference(req.ID, p.s.At(h).Size, true)
	return nil
}

// ToEvict ranks candidates and remembers the winner, so that the next
// Evict removes the same object.
func (p *LHD) ToEvict(_ *trace.Request) (store.Object, error) {
	id, err := p.victim()
	if err != nil {
		return store.Object{}, err
	}
	p.pending, p.hasPending = id, true
	h, _ := p.s.Find(id)
	return *p.s.At(h), nil
}

func (p *LHD) Evict(_ *trace.Request) (store.Object, error) {
	var id uint64
	if p.hasPending && p.s.Contains(p.pending) {
		id = p.pending
	} else {
		var err error
		if id, err = p.victim(); err != nil {
			return store.Object{}, err
		}
	}
	p.hasPending = false
	p.replaced(id)
	return p.s.Remove(id)
}

// Remove deletes id without recording an eviction in the model.
func (p *LHD) Remove(id uint64) error {
	t, ok := p.tags.Get(id)
	if !ok {
		return fmt.Errorf("%s: %w: id %d", Name, store.ErrNotFound, id)
	}
	if t.explorer {
		p.explorerBudget += t.size
	}
	p.tags.Remove(id)
	p.hasPending = false
	_, err := p.s.Remove(id)
	return err
}

func (p *LHD) victim() (uint64, error) {
	if p.tags.Len() == 0 {
		return 0, store.ErrEmpty
	}
	return p.rank(), nil
}

// reference records a hit (or the admission) of id.
func (p *LHD) reference(id uint64, size int64, insert bool) {
	var t *tag
	if insert {
		p.tags.Add(id, tag{lastLastHitAge: p.maxAge})
		t, _ = p.tags.Get(id)
	} else {
		t, _ = p.tags.Get(id)
		age := p.age(t)
		p.classOf(t).hits[age]++
		if t.explorer {
			p.explorerBudget += t.size
		}
		t.lastLastHitAge = t.lastHitAge
		t.lastHitAge = age
	}
	t.timestamp = p.timestamp
	t.size = size

	// With some probability a reference makes the object an explorer that
	// is not evicted, within a bounded byte budget.
	explore := p.rng.Intn(p.opt.ExploreInverseProbability) == 0
	if explore && p.explorerBudget > 0 && p.reconfigurations < exploreReconfigurations {
		t.explorer = true
		p.explorerBudget -= t.size
	} else {
		t.explorer = false
	}

	// A new object that already looks like a victim is tracked as a
	// candidate, so large cold objects cannot hide from sampling.
	if insert && !explore && len(p.recentlyAdmitted) > 0 && p.hitDensity(t) < p.ewmaVictimHitDensity {
		p.recentlyAdmitted[p.admittedHead%len(p.recentlyAdmitted)] = admitted{id: id, valid: true}
		p.admittedHead++
	}

	p.timestamp++
	p.nextReconfiguration--
	if p.nextReconfiguration == 0 {
		p.reconfigure()
		p.nextReconfiguration = p.opt.ReconfigureInterval
		p.reconfigurations++
	}
}

// rank samples candidates and returns the one with the lowest hit density.
func (p *LHD) rank() uint64 {
	var (
		victim     uint64
		victimRank = math.MaxFloat64
		found      bool
	)
	consider := func(id uint64, t *tag) {
		if r := p.hitDensity(t); !found || r < victimRank {
			victim, victimRank, found = id, r, true
		}
	}
	for i := 0; i < p.opt.Associativity; i++ {
		id, t := p.tags.At(p.rng.Intn(p.tags.Len()))
		consider(id, t)
	}
	for _, a := range p.recentlyAdmitted {
		if !a.valid {
			continue
		}
		if t, ok := p.tags.Get(a.id); ok {
			consider(a.id, t)
		}
	}
	if !found {
		// Associativity 0 and an empty ring: fall back to one sample.
		id, t := p.tags.At(p.rng.Intn(p.tags.Len()))
		consider(id, t)
	}
	p.ewmaVictimHitDensity = ewmaDecay*p.ewmaVictimHitDensity + (1-ewmaDecay)*victimRank
	return victim
}

// replaced records the eviction of id and swap-removes its tag.
func (p *LHD) replaced(id uint64) {
	t, _ := p.tags.Get(id)
	age := p.age(t)
	p.classOf(t).evictions[age]++
	if t.explorer {
		p.explorerBudget += t.size
	}
	p.tags.Remove(id)
}

// age returns the coarsened age of t, clamped to the overflow bucket.
func (p *LHD) age(t *tag) uint64 {
	a := (p.timestamp - t.timestamp) >> p.ageCoarseningShift
	if a >= p.maxAge {
		p.overflows++
		return p.maxAge - 1
	}
	return a
}

// hitAgeClass returns something like log2(maxAge / age).
func (p *LHD) hitAgeClass(age uint64) int {
	top := p.opt.HitAgeClasses - 1
	if age == 0 {
		return top
	}
	log := 0
	for age < p.maxAge && log < top {
		age <<= 1
		log++
	}
	return log
}

func (p *LHD) classOf(t *tag) *class {
	return &p.classes[p.hitAgeClass(t.lastHitAge+t.lastLastHitAge)]
}

func (p *LHD) hitDensity(t *tag) float64 {
	age := p.age(t)
	if age == p.maxAge-1 {
		return -math.MaxFloat64
	}
	density := p.classOf(t).densities[age]
	if !p.opt.ByteHitRate {
		size := t.size
		if size < 1 {
			size = 1
		}
		density /= float64(size)
	}
	if t.explorer {
		density += 1
	}
	return density
}

// Check verifies that the tag array and the object store agree.
func (p *LHD) Check() error {
	if err := p.s.Check(); err != nil {
		return err
	}
	if p.tags.Len() != p.s.Len() {
		return fmt.Errorf("%s: %d tags, %d objects", Name, p.tags.Len(), p.s.Len())
	}
	for i := 0; i < p.tags.Len(); i++ {
		id, t := p.tags.At(i)
		h, ok := p.s.Find(id)
		if !ok {
			return fmt.Errorf("%s: tag for absent id %d", Name, id)
		}
		if got, _ := p.tags.Get(id); got != t {
			return fmt.Errorf("%s: index of id %d points to the wrong slot", Name, id)
		}
		if t.size != p.s.At(h).Size {
			return fmt.Errorf("%s: id %d tag size %d, object size %d", Name, id, t.size, p.s.At(h).Size)
		}
	}
	return nil
}

var (
	_ policy.Policy  = (*LHD)(nil)
	_ policy.Checker = (*LHD)(nil)
)
