package profiler

import (
	"fmt"

	"github.com/IvanBrykalov/cachesim/sim"
	"github.com/IvanBrykalov/cachesim/trace"
)

// histogram summarizes a trace per stack distance, up to a maximum cache
// size counted in objects. Cumulated, hits[c] is the hit count of an LRU
// cache of c objects: a request hits exactly when its distance is below c.
type histogram struct {
	hits       []int64
	hitBytes   []int64
	requests   int64
	totalBytes int64
}

func profile(r trace.Reader, maxSize int) histogram {
	h := histogram{hits: make([]int64, maxSize+1), hitBytes: make([]int64, maxSize+1)}
	each(r, func(req *trace.Request, d int64) {
		h.requests++
		h.totalBytes += int64(req.Size)
		if d != Cold && d < int64(maxSize) {
			h.hits[d+1]++
			h.hitBytes[d+1] += int64(req.Size)
		}
	})
	for c := 1; c <= maxSize; c++ {
		h.hits[c] += h.hits[c-1]
		h.hitBytes[c] += h.hitBytes[c-1]
	}
	return h
}

// LRUHitCounts returns the hit count of an LRU cache of c objects for
// every c in 0..maxSize.
func LRUHitCounts(r trace.Reader, maxSize int) []int64 {
	return profile(r, max(maxSize, 0)).hits
}

// LRUMissCounts returns the miss count of an LRU cache of c objects for
// every c in 0..maxSize.
func LRUMissCounts(r trace.Reader, maxSize int) []int64 {
	h := profile(r, max(maxSize, 0))
	out := make([]int64, len(h.hits))
	for c, hits := range h.hits {
		out[c] = h.requests - hits
	}
	return out
}

// LRUMissRatioCurve returns the exact LRU curve at the given sizes, which
// count objects. Byte fields use the request sizes.
func LRUMissRatioCurve(r trace.Reader, sizes []int64) (sim.MissRatioCurve, error) {
	var maxSize int64
	for _, s := range sizes {
		if s < 0 {
			return nil, fmt.Errorf("profiler: cache size must be >= 0, got %d", s)
		}
		maxSize = max(maxSize, s)
	}
	h := profile(r, int(maxSize))
	curve := make(sim.MissRatioCurve, len(sizes))
	for i, s := range sizes {
		curve[i] = sim.Point{
			Policy:         "lru",
			CacheSize:      s,
			Requests:       h.requests,
			Misses:         h.requests - h.hits[s],
			BytesRequested: h.totalBytes,
			MissBytes:      h.totalBytes - h.hitBytes[s],
		}
	}
	return curve, nil
}
