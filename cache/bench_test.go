package cache

import (
	"testing"

	"github.com/IvanBrykalov/cachesim/trace"
)

// benchmarkPolicy replays a materialized Zipf trace so that generation
// costs stay out of the loop.
func benchmarkPolicy(b *testing.B, name string) {
	z, err := trace.NewZipf(trace.ZipfConfig{Objects: 100_000, Requests: 1 << 16, S: 1.1, V: 1, MinSize: 1, MaxSize: 1, Seed: 1})
	if err != nil {
		b.Fatal(err)
	}
	reqs := make([]trace.Request, 0, 1<<16)
	var req trace.Request
	for z.Next(&req); req.Valid; z.Next(&req) {
		reqs = append(reqs, req)
	}
	c := New(newPolicy(b, name, 10_000), Options{})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Get(&reqs[i&(len(reqs)-1)]); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCache_LRU(b *testing.B)    { benchmarkPolicy(b, "lru") }
func BenchmarkCache_FIFO(b *testing.B)   { benchmarkPolicy(b, "fifo") }
func BenchmarkCache_LFU(b *testing.B)    { benchmarkPolicy(b, "lfu") }
func BenchmarkCache_Random(b *testing.B) { benchmarkPolicy(b, "random") }
func BenchmarkCache_TwoQ(b *testing.B)   { benchmarkPolicy(b, "2q") }
func BenchmarkCache_ARC(b *testing.B)    { benchmarkPolicy(b, "arc") }
func BenchmarkCache_SLRU(b *testing.B)   { benchmarkPolicy(b, "slru") }
func BenchmarkCache_LHD(b *testing.B)    { benchmarkPolicy(b, "lhd") }
