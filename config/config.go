// Package config loads experiment files: a workload, the policies to
// compare and the cache sizes to simulate them at.
//
//	seed: 42
//	workers: 4
//	warmup_fraction: 0.1
//	max_size: 65536
//	size_step: 8192
//	workload:
//	  zipf: {objects: 100000, requests: 1000000, s: 1.1, v: 1, min_size: 1, max_size: 64}
//	policies:
//	  - lru
//	  - name: slru
//	    n_segments: 4
//	  - name: lhd
//	    associativity: 64
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/IvanBrykalov/cachesim/policy/registry"
	"github.com/IvanBrykalov/cachesim/sim"
	"github.com/IvanBrykalov/cachesim/trace"
)

// Workload selects the request source. Only synthetic workloads are
// built in.
type Workload struct {
	Zipf *trace.ZipfConfig `yaml:"zipf"`
}

// Experiment is the top-level experiment file.
type Experiment struct {
	// Seed is the default seed of the workload and of randomized policies.
	Seed    int64 `yaml:"seed"`
	Workers int   `yaml:"workers"`

	WarmupRequests int     `yaml:"warmup_requests"`
	WarmupFraction float64 `yaml:"warmup_fraction"`

	DefaultTTL      int32 `yaml:"default_ttl"`
	CheckInvariants bool  `yaml:"check_invariants"`

	// Either Sizes or MaxSize (with SizeStep, default MaxSize/10).
	Sizes    []int64 `yaml:"sizes"`
	MaxSize  int64   `yaml:"max_size"`
	SizeStep int64   `yaml:"size_step"`

	Workload Workload        `yaml:"workload"`
	Policies []registry.Spec `yaml:"policies"`
}

// Load reads and validates the experiment at path.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func Load(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading experiment: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes and validates an experiment.
func Parse(r io.Reader) (*Experiment, error) {
	var e Experiment
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&e); err != nil {
		return nil, fmt.Errorf("parsing experiment: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// Validate checks the experiment and resolves every policy spec, so that
// unknown policies and parameters fail before any simulation starts.
func (e *Experiment) Validate() error {
	switch {
	case e.Workers < 0:
		return fmt.Errorf("workers must be >= 0, got %d", e.Workers)
	case e.WarmupRequests < 0:
		return fmt.Errorf("warmup_requests must be >= 0, got %d", e.WarmupRequests)
	case e.WarmupFraction < 0 || e.WarmupFraction >= 1:
		return fmt.Errorf("warmup_fraction must be in [0, 1), got %v", e.WarmupFraction)
	case e.DefaultTTL < 0:
		return fmt.Errorf("default_ttl must be >= 0, got %d", e.DefaultTTL)
	case e.Workload.Zipf == nil:
		return fmt.Errorf("workload: zipf section required")
	case len(e.Policies) == 0:
		return fmt.Errorf("at least one policy required")
	}
	if err := e.Workload.Zipf.Validate(); err != nil {
		return fmt.Errorf("workload: %w", err)
	}
	if _, err := e.CacheSizes(); err != nil {
		return err
	}
	_, err := e.Named()
	return err
}

// CacheSizes returns the sizes to simulate.
func (e *Experiment) CacheSizes() ([]int64, error) {
	if len(e.Sizes) > 0 {
		if e.MaxSize != 0 || e.SizeStep != 0 {
			return nil, fmt.Errorf("sizes and max_size/size_step are exclusive")
		}
		for _, s := range e.Sizes {
			if s <= 0 {
				return nil, fmt.Errorf("sizes: must be > 0, got %d", s)
			}
		}
		return e.Sizes, nil
	}
	if e.MaxSize <= 0 {
		return nil, fmt.Errorf("either sizes or max_size required")
	}
	step := e.SizeStep
	if step == 0 {
		step = max(e.MaxSize/10, 1)
	}
	return sim.StepSizes(e.MaxSize, step)
}

// Named resolves the policy specs, labelled by their text form.
func (e *Experiment) Named() ([]sim.Named, error) {
	out := make([]sim.Named, len(e.Policies))
	for i, s := range e.Policies {
		f, err := registry.Factory(s, e.Seed)
		if err != nil {
			return nil, fmt.Errorf("policies[%d]: %w", i, err)
		}
		out[i] = sim.Named{Label: s.String(), Factory: f}
	}
	return out, nil
}

// Reader builds the workload. A zero workload seed takes the experiment
// seed.
func (e *Experiment) Reader() (trace.Reader, error) {
	cfg := *e.Workload.Zipf
	if cfg.Seed == 0 {
		cfg.Seed = e.Seed
	}
	return trace.NewZipf(cfg)
}

// Options maps the run settings onto sim.Options.
func (e *Experiment) Options() sim.Options {
	return sim.Options{
		Workers:         e.Workers,
		WarmupRequests:  e.WarmupRequests,
		WarmupFraction:  e.WarmupFraction,
		DefaultTTL:      e.DefaultTTL,
		CheckInvariants: e.CheckInvariants,
	}
}
