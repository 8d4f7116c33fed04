package lhd

import "github.com/sirupsen/logrus"

// class holds the age histograms of one object class.
type class struct {
	hits      []float64
	evictions []float64
	densities []float64
}

// newClasses allocates n classes with maxAge buckets each. Densities start
// at (c+1)/(a+1): younger objects and classes with recent hits first.
func newClasses(n, maxAge int) []class {
	cls := make([]class, n)
	for c := range cls {
		cl := &cls[c]
		cl.hits = make([]float64, maxAge)
		cl.evictions = make([]float64, maxAge)
		cl.densities = make([]float64, maxAge)
		for a := range cl.densities {
			cl.densities[a] = float64(c+1) / float64(a+1)
		}
	}
	return cls
}

// reconfigure decays the histograms, adapts the age coarsening and
// recomputes hit densities.
func (p *LHD) reconfigure() {
	for i := range p.classes {
		cl := &p.classes[i]
		for a := range cl.hits {
			cl.hits[a] *= ewmaDecay
			cl.evictions[a] *= ewmaDecay
		}
	}
	p.adaptAgeCoarsening()
	p.modelHitDensity()
	logrus.Debugf("lhd: reconfiguration %d at t=%d, shift %d, overflows %d, objects %d",
		p.reconfigurations+1, p.timestamp, p.ageCoarseningShift, p.overflows, p.s.Len())
	p.overflows = 0
}

// adaptAgeCoarsening re-derives the age shift from an EWMA of the object
// count so that maxAge buckets span the working set. It runs early in the
// trace (5th and 25th reconfiguration) and whenever the overflow bucket
// caught more than the tolerated share of age lookups.
func (p *LHD) adaptAgeCoarsening() {
	p.ewmaNumObjects = p.ewmaNumObjects*ewmaDecay + float64(p.s.Len())
	p.ewmaNumObjectsMass = p.ewmaNumObjectsMass*ewmaDecay + 1
	numObjects := p.ewmaNumObjects / p.ewmaNumObjectsMass
	optimal := numObjects / (ageCoarseningErrorTolerance * float64(p.maxAge))

	overflowing := float64(p.overflows) > ageCoarseningErrorTolerance*float64(p.opt.ReconfigureInterval)
	if p.reconfigurations != 5 && p.reconfigurations != 25 && !overflowing {
		return
	}

	shift := uint(1)
	for shift < maxAgeCoarseningShift && float64(uint64(1)<<shift) < optimal {
		shift++
	}
	if overflowing && shift <= p.ageCoarseningShift && p.ageCoarseningShift < maxAgeCoarseningShift {
		// The object count underestimates lifetimes; widen anyway.
		shift = p.ageCoarseningShift + 1
	}
	delta := int(shift) - int(p.ageCoarseningShift)
	if delta == 0 {
		return
	}
	logrus.Debugf("lhd: age coarsening shift %d -> %d (objects %.0f, overflows %d)",
		p.ageCoarseningShift, shift, numObjects, p.overflows)
	p.ageCoarseningShift = shift

	// Increase the weight to delay another shift for a while.
	p.ewmaNumObjects *= 8
	p.ewmaNumObjectsMass *= 8

	for i := range p.classes {
		cl := &p.classes[i]
		if delta < 0 {
			stretch(cl.hits, uint(-delta))
			stretch(cl.evictions, uint(-delta))
		} else {
			compress(cl.hits, uint(delta))
			compress(cl.evictions, uint(delta))
		}
	}
}

// stretch rescales a histogram to a finer age resolution (smaller shift):
// buckets that no longer fit fold into the overflow bucket, the rest are
// split evenly over 2^d buckets.
func stretch(h []float64, d uint) {
	last := len(h) - 1
	for a := len(h) >> d; a < last; a++ {
		h[last] += h[a]
	}
	div := float64(uint64(1) << d)
	for a := last - 1; a >= 0; a-- {
		h[a] = h[a>>d] / div
	}
}

// compress rescales a histogram to a coarser age resolution (larger
// shift): each group of 2^d buckets merges into one. The overflow bucket
// keeps its own count.
func compress(h []float64, d uint) {
	last := len(h) - 1
	n := len(h) >> d
	for a := 0; a < n; a++ {
		var sum float64
		for i := a << d; i < (a+1)<<d && i < last; i++ {
			sum += h[i]
		}
		h[a] = sum
	}
	for a := n; a < last; a++ {
		h[a] = 0
	}
}

// modelHitDensity computes hits / expected lifetime per age bucket in one
// backward pass: events at later ages accumulate into the lifetime sum.
func (p *LHD) modelHitDensity() {
	last := len(p.classes[0].hits) - 1
	for i := range p.classes {
		cl := &p.classes[i]
		totalEvents := cl.hits[last] + cl.evictions[last]
		totalHits := cl.hits[last]
		lifetime := totalEvents
		for a := last - 1; a >= 0; a-- {
			totalHits += cl.hits[a]
			totalEvents += cl.hits[a] + cl.evictions[a]
			lifetime += totalEvents
			if totalEvents > 1e-5 {
				cl.densities[a] = totalHits / lifetime
			} else {
				cl.densities[a] = 0
			}
		}
	}
}
