package random

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/cachesim/store"
	"github.com/IvanBrykalov/cachesim/trace"
)

// evictions replays a Zipf trace and records every evicted id.
func evictions(t *testing.T, seed int64) []uint64 {
	t.Helper()
	p, err := New(20, Options{Seed: seed})
	require.NoError(t, err)
	z, err := trace.NewZipf(trace.ZipfConfig{Objects: 100, Requests: 3000, S: 1.05, V: 1, MinSize: 1, MaxSize: 3, Seed: 1})
	require.NoError(t, err)

	var (
		out []uint64
		r   trace.Request
	)
	for z.Next(&r); r.Valid; z.Next(&r) {
		if _, ok := p.Find(&r, true); ok {
			continue
		}
		require.NoError(t, p.Insert(&r))
		for p.UsedBytes() > p.Capacity() {
			v, err := p.Evict(&r)
			require.NoError(t, err)
			out = append(out, v.ID)
		}
		require.NoError(t, p.Check())
	}
	return out
}

func TestRandom_SameSeedSameEvictions(t *testing.T) {
	t.Parallel()

	a := evictions(t, 42)
	b := evictions(t, 42)
	require.NotEmpty(t, a)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, evictions(t, 43))
}

func TestRandom_ToEvictMatchesEvict(t *testing.T) {
	t.Parallel()

	p, _ := New(100, Options{Seed: 5})
	for id := uint64(0); id < 10; id++ {
		require.NoError(t, p.Insert(&trace.Request{ID: id, Size: 1}))
	}
	want, err := p.ToEvict(nil)
	require.NoError(t, err)
	again, _ := p.ToEvict(nil)
	assert.Equal(t, want.ID, again.ID, "ToEvict must be stable until eviction")

	got, err := p.Evict(nil)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, 9, p.Len())
}

func TestRandom_RemoveAndEmpty(t *testing.T) {
	t.Parallel()

	p, _ := New(10, Options{})
	_, err := p.Evict(nil)
	assert.ErrorIs(t, err, store.ErrEmpty)

	require.NoError(t, p.Insert(&trace.Request{ID: 1, Size: 4}))
	require.NoError(t, p.Insert(&trace.Request{ID: 2, Size: 4}))
	require.NoError(t, p.Remove(1))
	assert.ErrorIs(t, p.Remove(1), store.ErrNotFound)

	v, err := p.Evict(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v.ID)
	assert.Equal(t, int64(0), p.UsedBytes())
	require.NoError(t, p.Check())
}
