package lhd

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/cachesim/policy"
	"github.com/IvanBrykalov/cachesim/store"
	"github.com/IvanBrykalov/cachesim/trace"
)

// access runs one request through the common state machine and returns the
// hit flag and evicted ids.
func access(t *testing.T, p *LHD, r *trace.Request) (bool, []uint64) {
	t.Helper()
	if _, ok := p.Find(r, true); ok {
		return true, nil
	}
	require.NoError(t, p.Insert(r))
	var victims []uint64
	for p.UsedBytes() > p.Capacity() {
		v, err := p.Evict(r)
		require.NoError(t, err)
		victims = append(victims, v.ID)
	}
	return false, victims
}

func cyclic(n, objects int) trace.Reader {
	ids := make([]uint64, n)
	for i := range ids {
		ids[i] = uint64(i % objects)
	}
	return trace.FromIDs(ids...)
}

func replay(t *testing.T, p *LHD, r trace.Reader) (hits int, victims []uint64) {
	t.Helper()
	var req trace.Request
	for r.Next(&req); req.Valid; r.Next(&req) {
		hit, v := access(t, p, &req)
		if hit {
			hits++
		}
		victims = append(victims, v...)
	}
	require.NoError(t, p.Check())
	return hits, victims
}

func TestLHD_SameSeedSameEvictions(t *testing.T) {
	t.Parallel()

	run := func(seed int64) []uint64 {
		p, err := New(200, Options{MaxAge: 64, ReconfigureInterval: 500, Seed: seed})
		require.NoError(t, err)
		z, err := trace.NewZipf(trace.ZipfConfig{Objects: 500, Requests: 5000, S: 1.1, V: 1, MinSize: 1, MaxSize: 10, Seed: 2})
		require.NoError(t, err)
		_, victims := replay(t, p, z)
		return victims
	}
	a := run(1)
	require.NotEmpty(t, a)
	assert.Equal(t, a, run(1))
}

func TestLHD_ReconfiguresEveryInterval(t *testing.T) {
	t.Parallel()

	p, err := New(30, Options{MaxAge: 32, ReconfigureInterval: 100})
	require.NoError(t, err)
	replay(t, p, cyclic(1000, 40))
	assert.Equal(t, 10, p.Reconfigurations())
}

// At the 6th reconfiguration the shift is derived from the live object
// count: ~51 objects / (1% of 100 buckets) rounds up to 2^6.
func TestLHD_AgeCoarseningFollowsObjectCount(t *testing.T) {
	t.Parallel()

	p, err := New(50, Options{MaxAge: 100, ReconfigureInterval: 100})
	require.NoError(t, err)
	replay(t, p, cyclic(500, 200))
	assert.Equal(t, uint(initialAgeCoarseningShift), p.AgeCoarseningShift(), "untouched before the 6th reconfiguration")

	replay(t, p, cyclic(100, 200))
	assert.Equal(t, uint(6), p.AgeCoarseningShift())
}

// Persistent overflow of the age histogram widens the coarsening outside
// the scheduled reconfigurations.
func TestLHD_OverflowWidensCoarsening(t *testing.T) {
	t.Parallel()

	p, err := New(1000, Options{MaxAge: 16, ReconfigureInterval: 100})
	require.NoError(t, err)
	p.ageCoarseningShift = 0

	replay(t, p, cyclic(100, 50))
	require.Equal(t, 1, p.Reconfigurations())
	assert.Greater(t, p.AgeCoarseningShift(), uint(0))
}

func TestLHD_CompressMergesBuckets(t *testing.T) {
	t.Parallel()

	h := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	compress(h, 1)
	assert.Equal(t, []float64{3, 7, 11, 7, 0, 0, 0, 8}, h)
}

func TestLHD_StretchSplitsBuckets(t *testing.T) {
	t.Parallel()

	h := []float64{8, 4, 2, 2, 1, 1, 1, 10}
	stretch(h, 1)
	assert.Equal(t, []float64{4, 4, 2, 2, 1, 1, 1, 13}, h)
}

func TestLHD_HitAgeClass(t *testing.T) {
	t.Parallel()

	p, err := New(10, Options{})
	require.NoError(t, err)
	assert.Equal(t, 15, p.hitAgeClass(0))
	assert.Equal(t, 15, p.hitAgeClass(1))
	assert.Equal(t, 1, p.hitAgeClass(10000))
	assert.Equal(t, 0, p.hitAgeClass(20000))
}

func TestLHD_HitDensityObjectVsByte(t *testing.T) {
	t.Parallel()

	obj, err := New(100, Options{})
	require.NoError(t, err)
	byteRate, err := New(100, Options{ByteHitRate: true})
	require.NoError(t, err)

	small := tag{lastLastHitAge: obj.maxAge, size: 1}
	big := tag{lastLastHitAge: obj.maxAge, size: 10}

	assert.InDelta(t, 1.0, obj.hitDensity(&small), 1e-12)
	assert.InDelta(t, 0.1, obj.hitDensity(&big), 1e-12)
	assert.InDelta(t, 1.0, byteRate.hitDensity(&big), 1e-12)

	big.explorer = true
	assert.InDelta(t, 1.1, obj.hitDensity(&big), 1e-12)
}

func TestLHD_OverflowAgeRanksLowest(t *testing.T) {
	t.Parallel()

	p, err := New(100, Options{MaxAge: 8})
	require.NoError(t, err)
	p.timestamp = 8 << p.ageCoarseningShift
	old := tag{lastLastHitAge: p.maxAge, size: 1}

	assert.Equal(t, -math.MaxFloat64, p.hitDensity(&old))
	assert.Equal(t, uint64(1), p.overflows)
}

func TestLHD_RemoveSwapsTags(t *testing.T) {
	t.Parallel()

	p, err := New(100, Options{MaxAge: 16})
	require.NoError(t, err)
	for id := uint64(0); id < 10; id++ {
		require.NoError(t, p.Insert(&trace.Request{ID: id, Size: uint32(id + 1)}))
	}
	for _, id := range []uint64{0, 5, 9} {
		require.NoError(t, p.Remove(id))
		require.NoError(t, p.Check())
	}
	assert.ErrorIs(t, p.Remove(5), store.ErrNotFound)
	assert.Equal(t, 7, p.Len())
	assert.Equal(t, int64(55-1-6-10), p.UsedBytes())
}

func TestLHD_ToEvictMatchesEvict(t *testing.T) {
	t.Parallel()

	p, err := New(100, Options{MaxAge: 16, Seed: 3})
	require.NoError(t, err)
	for id := uint64(0); id < 20; id++ {
		require.NoError(t, p.Insert(&trace.Request{ID: id, Size: 1}))
	}
	want, err := p.ToEvict(nil)
	require.NoError(t, err)
	got, err := p.Evict(nil)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	require.NoError(t, p.Check())

	empty, _ := New(10, Options{MaxAge: 16})
	_, err = empty.Evict(nil)
	assert.ErrorIs(t, err, store.ErrEmpty)
}

func TestLHD_Options(t *testing.T) {
	t.Parallel()

	var ce *policy.ConfigError
	_, err := New(10, Options{MaxAge: 1})
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "max_age", ce.Param)

	_, err = New(10, Options{Associativity: -1})
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "associativity", ce.Param)

	_, err = New(10, Options{ExplorerBudgetFraction: 2})
	require.ErrorAs(t, err, &ce)

	p, err := New(10, Options{})
	require.NoError(t, err)
	assert.Equal(t, 32, p.opt.Associativity)
	assert.Equal(t, 8, p.opt.Admissions)
	assert.Equal(t, int64(1<<20), p.opt.ReconfigureInterval)
}

func explorerBytes(p *LHD) int64 {
	var n int64
	for i := 0; i < p.tags.Len(); i++ {
		if _, t := p.tags.At(i); t.explorer {
			n += t.size
		}
	}
	return n
}

// Explorer bytes always equal the budget spent. The budget can be
// overdrawn by less than one object.
func TestLHD_ExplorersStayWithinBudget(t *testing.T) {
	t.Parallel()

	const maxSize = 100
	p, err := New(10_000, Options{ReconfigureInterval: 5000, ExploreInverseProbability: 4, ExplorerBudgetFraction: 0.1, Seed: 9})
	require.NoError(t, err)
	initial := p.explorerBudget
	require.Equal(t, int64(1000), initial)

	z, err := trace.NewZipf(trace.ZipfConfig{Objects: 5000, Requests: 30_000, S: 1.1, V: 1, MinSize: 1, MaxSize: maxSize, Seed: 9})
	require.NoError(t, err)
	var (
		req  trace.Request
		n    int
		peak int64
	)
	for z.Next(&req); req.Valid; z.Next(&req) {
		access(t, p, &req)
		n++
		if n%101 == 0 && p.s.Contains(req.ID) {
			require.NoError(t, p.Remove(req.ID))
		}
		spent := explorerBytes(p)
		require.Equal(t, initial-p.explorerBudget, spent, "request %d", n)
		require.Less(t, spent, initial+maxSize, "request %d", n)
		peak = max(peak, spent)
	}
	require.NoError(t, p.Check())
	assert.Positive(t, peak)
}

// An admission that already ranks below the recent victims is tracked in
// the admission ring and is found as the victim even with one sample.
func TestLHD_ColdAdmissionIsRankedFromRing(t *testing.T) {
	t.Parallel()

	p, err := New(100, Options{Associativity: 1, Admissions: 4, ExploreInverseProbability: 1 << 30, Seed: 5})
	require.NoError(t, err)
	for id := uint64(0); id < 40; id++ {
		require.NoError(t, p.Insert(&trace.Request{ID: id, Size: 1}))
	}
	for _, a := range p.recentlyAdmitted {
		assert.False(t, a.valid, "no admission was below a zero threshold")
	}

	p.ewmaVictimHitDensity = 0.5 // unit objects rank 1, a 50 byte one 0.02
	require.NoError(t, p.Insert(&trace.Request{ID: 100, Size: 50}))
	assert.Equal(t, admitted{id: 100, valid: true}, p.recentlyAdmitted[0])
	assert.Equal(t, 1, p.admittedHead)

	victim, err := p.ToEvict(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), victim.ID)
	assert.InDelta(t, 0.9*0.5+0.1*0.02, p.ewmaVictimHitDensity, 1e-12)
}
