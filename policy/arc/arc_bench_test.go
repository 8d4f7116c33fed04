package arc

import (
	"testing"

	hashiarc "github.com/hashicorp/golang-lru/arc/v2"

	"github.com/IvanBrykalov/cachesim/trace"
)

func benchTrace(b *testing.B) []trace.Request {
	b.Helper()
	z, err := trace.NewZipf(trace.ZipfConfig{Objects: 1 << 16, Requests: 1 << 16, S: 1.1, V: 1, MinSize: 1, MaxSize: 1, Seed: 1})
	if err != nil {
		b.Fatal(err)
	}
	reqs := make([]trace.Request, 0, 1<<16)
	var r trace.Request
	for z.Next(&r); r.Valid; z.Next(&r) {
		reqs = append(reqs, r)
	}
	return reqs
}

func BenchmarkARC(b *testing.B) {
	reqs := benchTrace(b)
	a, err := New(4096, Options{})
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r := &reqs[i%len(reqs)]
		if _, ok := a.Find(r, true); ok {
			continue
		}
		_ = a.Insert(r)
		for a.UsedBytes() > a.Capacity() {
			_, _ = a.Evict(r)
		}
	}
}

// BenchmarkHashicorpARC is the reference point for BenchmarkARC.
func BenchmarkHashicorpARC(b *testing.B) {
	reqs := benchTrace(b)
	c, err := hashiarc.NewARC[uint64, struct{}](4096)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := reqs[i%len(reqs)].ID
		if _, ok := c.Get(id); !ok {
			c.Add(id, struct{}{})
		}
	}
}
