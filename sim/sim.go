// Package sim runs eviction policies over a request stream at several
// cache sizes and collects the resulting miss-ratio curves.
//
// Each (policy, size) pair is an independent job: a fresh policy instance,
// a fresh cache.Cache and a private clone of the reader. Jobs run on a
// bounded errgroup pool; they share nothing but the progress counter and
// the result slice, where every job owns its slot.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/internal/util"
	"github.com/IvanBrykalov/cachesim/policy"
	"github.com/IvanBrykalov/cachesim/trace"
)

// Point is the outcome of one simulated cache.
type Point struct {
	Policy         string `yaml:"policy"`
	CacheSize      int64  `yaml:"cache_size"`
	Requests       int64  `yaml:"requests"`
	Misses         int64  `yaml:"misses"`
	BytesRequested int64  `yaml:"bytes_requested"`
	MissBytes      int64  `yaml:"miss_bytes"`
	Evictions      int64  `yaml:"evictions"`
	Expired        int64  `yaml:"expired"`
	Rejects        int64  `yaml:"rejects"`
}

// MissRatio returns Misses/Requests.
func (p Point) MissRatio() float64 {
	if p.Requests == 0 {
		return 0
	}
	return float64(p.Misses) / float64(p.Requests)
}

// ByteMissRatio returns MissBytes/BytesRequested.
func (p Point) ByteMissRatio() float64 {
	if p.BytesRequested == 0 {
		return 0
	}
	return float64(p.MissBytes) / float64(p.BytesRequested)
}

func pointOf(label string, size int64, st cache.Stats) Point {
	return Point{
		Policy:         label,
		CacheSize:      size,
		Requests:       st.Requests,
		Misses:         st.Misses,
		BytesRequested: st.BytesRequested,
		MissBytes:      st.MissBytes,
		Evictions:      st.Evictions,
		Expired:        st.Expired,
		Rejects:        st.Rejects,
	}
}

// MissRatioCurve holds one Point per cache size, in the order requested.
type MissRatioCurve []Point

// Named is a policy constructor with the label its points carry.
type Named struct {
	Label   string
	Factory policy.Factory
}

// Options tune a run. The zero value is valid.
type Options struct {
	// Workers bounds concurrent jobs (0 => one per GOMAXPROCS).
	Workers int

	// WarmupRequests are processed but not counted. When zero,
	// WarmupFraction of the trace is used instead.
	WarmupRequests int
	WarmupFraction float64

	// DefaultTTL and CheckInvariants are passed to every cache.Options.
	DefaultTTL      int32
	CheckInvariants bool

	// Metrics, if set, returns the sink for one job. Called from worker
	// goroutines.
	Metrics func(label string, size int64) cache.Metrics

	// Progress, if set, is called after every finished job, serialized.
	Progress func(done, total int)
}

// ErrNoSizes is returned when a run is asked for no cache sizes.
var ErrNoSizes = errors.New("sim: no cache sizes")

// ctxCheckEvery is how many requests pass between cancellation checks.
const ctxCheckEvery = 1 << 16

// Simulate replays r from the start against p and returns the statistics.
func Simulate(p policy.Policy, r trace.Reader) (Point, error) {
	r.Reset()
	c := cache.New(p, cache.Options{})
	if err := replay(context.Background(), c, r, 0); err != nil {
		return Point{}, err
	}
	return pointOf(p.Name(), p.Capacity(), c.Stats()), nil
}

// Run simulates the policy built by f at every size in sizes.
func Run(ctx context.Context, f policy.Factory, r trace.Reader, sizes []int64, opt Options) (MissRatioCurve, error) {
	curves, err := RunPolicies(ctx, []Named{{Factory: f}}, r, sizes, opt)
	if err != nil {
		return nil, err
	}
	return curves[0], nil
}

// RunPolicies simulates every policy at every size. Curves come back in
// the order of policies. An empty Label is replaced by the policy's Name.
// Jobs are independent: a failing job does not stop the others, and the
// first error is returned once every job has finished. Cancelling ctx
// stops all of them.
func RunPolicies(ctx context.Context, policies []Named, r trace.Reader, sizes []int64, opt Options) ([]MissRatioCurve, error) {
	if len(sizes) == 0 {
		return nil, ErrNoSizes
	}
	for _, s := range sizes {
		if s <= 0 {
			return nil, fmt.Errorf("sim: cache size must be > 0, got %d", s)
		}
	}
	warmup, err := warmupOf(r, opt)
	if err != nil {
		return nil, err
	}

	total := len(policies) * len(sizes)
	curves := make([]MissRatioCurve, len(policies))
	for i := range curves {
		curves[i] = make(MissRatioCurve, len(sizes))
	}
	workers := opt.Workers
	if workers <= 0 {
		workers = util.ReasonableWorkerCount(total)
	}
	logrus.Infof("sim: %d policies x %d sizes on %d workers, warmup %d requests", len(policies), len(sizes), workers, warmup)

	var (
		mu   sync.Mutex
		done int
	)
	var g errgroup.Group
	g.SetLimit(workers)
	for pi, np := range policies {
		for si, size := range sizes {
			reader := r.Clone()
			g.Go(func() error {
				pt, err := runOne(ctx, np, reader, size, warmup, opt)
				if err != nil {
					return err
				}
				curves[pi][si] = pt

				mu.Lock()
				done++
				logrus.Debugf("sim: %d/%d jobs done", done, total)
				if opt.Progress != nil {
					opt.Progress(done, total)
				}
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return curves, nil
}

func runOne(ctx context.Context, np Named, r trace.Reader, size int64, warmup int, opt Options) (Point, error) {
	if err := ctx.Err(); err != nil {
		return Point{}, err
	}
	p, err := np.Factory(size)
	if err != nil {
		return Point{}, err
	}
	label := np.Label
	if label == "" {
		label = p.Name()
	}
	copt := cache.Options{DefaultTTL: opt.DefaultTTL, CheckInvariants: opt.CheckInvariants}
	if opt.Metrics != nil {
		copt.Metrics = opt.Metrics(label, size)
	}
	c := cache.New(p, copt)

	logrus.Infof("sim: %s size %d started", label, size)
	if err := replay(ctx, c, r, warmup); err != nil {
		return Point{}, fmt.Errorf("sim: %s size %d: %w", label, size, err)
	}
	pt := pointOf(label, size, c.Stats())
	logrus.Infof("sim: %s size %d done: %d requests, miss ratio %.4f, byte miss ratio %.4f",
		label, size, pt.Requests, pt.MissRatio(), pt.ByteMissRatio())
	return pt, nil
}

// replay feeds r to c; the first warmup requests are not counted.
func replay(ctx context.Context, c *cache.Cache, r trace.Reader, warmup int) error {
	var req trace.Request
	n := 0
	for r.Next(&req); req.Valid; r.Next(&req) {
		if _, err := c.Get(&req); err != nil {
			return err
		}
		n++
		if n == warmup {
			c.ResetStats()
		}
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

func warmupOf(r trace.Reader, opt Options) (int, error) {
	switch {
	case opt.WarmupRequests < 0:
		return 0, fmt.Errorf("sim: warmup requests must be >= 0, got %d", opt.WarmupRequests)
	case opt.WarmupFraction < 0 || opt.WarmupFraction >= 1:
		return 0, fmt.Errorf("sim: warmup fraction must be in [0, 1), got %v", opt.WarmupFraction)
	case opt.WarmupRequests > 0:
		return opt.WarmupRequests, nil
	case opt.WarmupFraction > 0:
		return int(float64(trace.Count(r)) * opt.WarmupFraction), nil
	}
	return 0, nil
}

// StepSizes returns step, 2*step, ... up to maxSize; maxSize itself is
// always the last size.
func StepSizes(maxSize, step int64) ([]int64, error) {
	if step <= 0 || maxSize <= 0 {
		return nil, fmt.Errorf("sim: step sizes need max > 0 and step > 0, got max %d step %d", maxSize, step)
	}
	var out []int64
	for s := step; s < maxSize; s += step {
		out = append(out, s)
	}
	return append(out, maxSize), nil
}
