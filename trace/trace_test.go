package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(r Reader) []Request {
	var (
		out []Request
		req Request
	)
	for r.Next(&req); req.Valid; r.Next(&req) {
		out = append(out, req)
	}
	return out
}

func TestSliceReader_EndAndReset(t *testing.T) {
	t.Parallel()

	r := FromIDs(1, 2, 3)
	got := drain(r)
	require.Len(t, got, 3)
	assert.Equal(t, uint64(2), got[1].ID)
	assert.Equal(t, int64(1), got[1].Timestamp)

	var req Request
	r.Next(&req)
	assert.False(t, req.Valid, "exhausted reader must report invalid")

	r.Reset()
	assert.Len(t, drain(r), 3)
}

func TestSliceReader_CloneIsIndependent(t *testing.T) {
	t.Parallel()

	r := FromIDs(1, 2, 3)
	var req Request
	r.Next(&req)

	c := r.Clone()
	assert.Len(t, drain(c), 3, "clone starts at the beginning")
	assert.Len(t, drain(r), 2, "original keeps its position")
}

func TestZipf_DeterministicAcrossResetAndClone(t *testing.T) {
	t.Parallel()

	z, err := NewZipf(ZipfConfig{Objects: 100, Requests: 500, S: 1.2, V: 1, MinSize: 10, MaxSize: 20, Seed: 7})
	require.NoError(t, err)

	first := drain(z)
	require.Len(t, first, 500)
	z.Reset()
	assert.Equal(t, first, drain(z))
	assert.Equal(t, first, drain(z.Clone()))

	sizes := map[uint64]uint32{}
	for _, r := range first {
		assert.Less(t, r.ID, uint64(100))
		assert.GreaterOrEqual(t, r.Size, uint32(10))
		assert.LessOrEqual(t, r.Size, uint32(20))
		if s, ok := sizes[r.ID]; ok {
			assert.Equal(t, s, r.Size, "size is a function of the id")
		}
		sizes[r.ID] = r.Size
	}
}

func TestZipf_Validate(t *testing.T) {
	t.Parallel()

	ok := ZipfConfig{Objects: 10, Requests: 1, S: 1.1, V: 1, MinSize: 1, MaxSize: 1}
	require.NoError(t, ok.Validate())

	cases := map[string]func(c *ZipfConfig){
		"objects":  func(c *ZipfConfig) { c.Objects = 0 },
		"requests": func(c *ZipfConfig) { c.Requests = -1 },
		"s":        func(c *ZipfConfig) { c.S = 1 },
		"v":        func(c *ZipfConfig) { c.V = 0.5 },
		"min_size": func(c *ZipfConfig) { c.MinSize = 0 },
		"max_size": func(c *ZipfConfig) { c.MaxSize = 0 },
		"ttl":      func(c *ZipfConfig) { c.TTL = -1 },
	}
	for name, mutate := range cases {
		c := ok
		mutate(&c)
		_, err := NewZipf(c)
		assert.Error(t, err, name)
	}
}

func TestCountRewinds(t *testing.T) {
	t.Parallel()

	r := FromIDs(5, 6, 7, 8)
	assert.Equal(t, 4, Count(r))
	assert.Len(t, drain(r), 4)
}

func TestKeyOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, KeyOf("obj-1"), KeyOf("obj-1"))
	assert.NotEqual(t, KeyOf("obj-1"), KeyOf("obj-2"))
}
