package cache

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/IvanBrykalov/cachesim/policy"
	"github.com/IvanBrykalov/cachesim/store"
	"github.com/IvanBrykalov/cachesim/trace"
)

// Stats are the counters of one simulated cache.
type Stats struct {
	Requests       int64
	Hits           int64
	Misses         int64
	BytesRequested int64
	MissBytes      int64

	Evictions int64 // policy evictions
	Expired   int64
	Deletes   int64
	Rejects   int64 // objects larger than the cache
}

// MissRatio returns Misses/Requests (0 for an empty run).
func (s Stats) MissRatio() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Misses) / float64(s.Requests)
}

// ByteMissRatio returns MissBytes/BytesRequested (0 for an empty run).
func (s Stats) ByteMissRatio() float64 {
	if s.BytesRequested == 0 {
		return 0
	}
	return float64(s.MissBytes) / float64(s.BytesRequested)
}

// Cache runs requests against one policy instance.
type Cache struct {
	p       policy.Policy
	opt     Options
	checker policy.Checker // nil unless CheckInvariants
	bounded policy.Overfull
	failer  policy.Failer

	stats Stats

	// expiring is set once an object with a TTL was admitted; until then
	// the expiry peek is skipped.
	expiring bool
	rejected bool
}

// New wraps p. Defaults: nil Metrics => NoopMetrics.
func New(p policy.Policy, opt Options) *Cache {
	if p == nil {
		panic("cache: nil policy")
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	c := &Cache{p: p, opt: opt}
	c.bounded, _ = p.(policy.Overfull)
	c.failer, _ = p.(policy.Failer)
	if opt.CheckInvariants {
		c.checker, _ = p.(policy.Checker)
	}
	return c
}

// Policy returns the wrapped policy.
func (c *Cache) Policy() policy.Policy { return c.p }

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats { return c.stats }

// ResetStats zeroes the counters; resident objects stay.
func (c *Cache) ResetStats() { c.stats = Stats{} }

// Get processes one request and reports whether it hit. A non-nil error is
// always a *ConsistencyError.
func (c *Cache) Get(req *trace.Request) (bool, error) {
	r := *req
	if r.TTL == 0 {
		r.TTL = c.opt.DefaultTTL
	}
	if r.Op == trace.OpDelete {
		return false, c.delete(&r)
	}

	c.stats.Requests++
	c.stats.BytesRequested += int64(r.Size)

	if c.expiring {
		if obj, ok := c.p.Find(&r, false); ok && obj.Expired(r.Timestamp) {
			if err := c.p.Remove(r.ID); err != nil {
				return false, c.inconsistent("expire", err)
			}
			c.stats.Expired++
			c.evicted(obj, EvictExpired)
		}
	}

	_, ok := c.p.Find(&r, true)
	if c.failer != nil {
		if err := c.failer.Err(); err != nil {
			return false, c.inconsistent("find", err)
		}
	}
	if ok {
		c.stats.Hits++
		c.opt.Metrics.Hit()
		return true, c.audit("hit")
	}

	c.stats.Misses++
	c.stats.MissBytes += int64(r.Size)
	c.opt.Metrics.Miss()

	if int64(r.Size) > c.p.Capacity() {
		c.reject(&r)
		return false, nil
	}
	if err := c.p.Insert(&r); err != nil {
		return false, c.inconsistent("insert", err)
	}
	if r.TTL > 0 {
		c.expiring = true
	}
	for c.p.UsedBytes() > c.p.Capacity() || c.overfull() {
		obj, err := c.p.Evict(&r)
		if err != nil {
			return false, c.inconsistent("evict", err)
		}
		c.stats.Evictions++
		c.evicted(obj, EvictPolicy)
	}
	return false, c.audit("insert")
}

func (c *Cache) overfull() bool {
	return c.bounded != nil && c.bounded.Overfull()
}

func (c *Cache) delete(r *trace.Request) error {
	obj, ok := c.p.Find(r, false)
	if !ok {
		return nil
	}
	if err := c.p.Remove(r.ID); err != nil {
		return c.inconsistent("delete", err)
	}
	c.stats.Deletes++
	c.evicted(obj, EvictDelete)
	return c.audit("delete")
}

func (c *Cache) reject(r *trace.Request) {
	c.stats.Rejects++
	c.opt.Metrics.Reject()
	err := &CapacityError{ID: r.ID, Size: int64(r.Size), Capacity: c.p.Capacity()}
	if !c.rejected {
		c.rejected = true
		logrus.Warnf("%s: %v; counted as a miss (further rejects logged at debug level)", c.p.Name(), err)
		return
	}
	logrus.Debugf("%s: %v", c.p.Name(), err)
}

func (c *Cache) evicted(obj store.Object, reason EvictReason) {
	c.opt.Metrics.Evict(reason)
	if cb := c.opt.OnEvict; cb != nil {
		cb(obj, reason)
	}
}

// audit publishes the size gauges and, with CheckInvariants, verifies the
// policy.
func (c *Cache) audit(op string) error {
	used := c.p.UsedBytes()
	c.opt.Metrics.Size(c.p.Len(), used)
	if !c.opt.CheckInvariants {
		return nil
	}
	if used > c.p.Capacity() || used < 0 {
		return c.inconsistent(op, fmt.Errorf("used %d bytes of %d", used, c.p.Capacity()))
	}
	if c.checker != nil {
		if err := c.checker.Check(); err != nil {
			return c.inconsistent(op, err)
		}
	}
	return nil
}

func (c *Cache) inconsistent(op string, err error) error {
	return &ConsistencyError{Policy: c.p.Name(), Op: op, Err: err}
}
