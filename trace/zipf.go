package trace

import (
	"fmt"
	"math/rand"

	"github.com/IvanBrykalov/cachesim/internal/util"
)

// ZipfConfig describes a synthetic workload: Requests draws from Objects
// distinct ids with Zipf(S, V) popularity. Object sizes are a pure
// function of the id, uniform in [MinSize, MaxSize].
type ZipfConfig struct {
	Objects  uint64  `yaml:"objects"`
	Requests int     `yaml:"requests"`
	S        float64 `yaml:"s"`
	V        float64 `yaml:"v"`
	MinSize  uint32  `yaml:"min_size"`
	MaxSize  uint32  `yaml:"max_size"`
	TTL      int32   `yaml:"ttl"`
	Seed     int64   `yaml:"seed"`
}

// Validate reports the first invalid field.
func (c ZipfConfig) Validate() error {
	switch {
	case c.Objects == 0:
		return fmt.Errorf("zipf: objects must be > 0")
	case c.Requests < 0:
		return fmt.Errorf("zipf: requests must be >= 0, got %d", c.Requests)
	case c.S <= 1:
		return fmt.Errorf("zipf: s must be > 1, got %v", c.S)
	case c.V < 1:
		return fmt.Errorf("zipf: v must be >= 1, got %v", c.V)
	case c.MinSize == 0:
		return fmt.Errorf("zipf: min_size must be > 0")
	case c.MaxSize < c.MinSize:
		return fmt.Errorf("zipf: max_size %d below min_size %d", c.MaxSize, c.MinSize)
	case c.TTL < 0:
		return fmt.Errorf("zipf: ttl must be >= 0, got %d", c.TTL)
	}
	return nil
}

// ZipfReader generates a ZipfConfig workload lazily. Reset reseeds the
// generator, so every pass (and every clone) yields the same sequence.
type ZipfReader struct {
	cfg  ZipfConfig
	rng  *rand.Rand
	zipf *rand.Zipf
	pos  int
}

// NewZipf validates cfg and returns a reader positioned at the start.
func NewZipf(cfg ZipfConfig) (*ZipfReader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	z := &ZipfReader{cfg: cfg}
	z.Reset()
	return z, nil
}

func (z *ZipfReader) Next(r *Request) {
	if z.pos >= z.cfg.Requests {
		r.Valid = false
		return
	}
	id := z.zipf.Uint64()
	*r = Request{
		ID:        id,
		Size:      z.sizeOf(id),
		Timestamp: int64(z.pos),
		TTL:       z.cfg.TTL,
		Op:        OpGet,
		Valid:     true,
	}
	z.pos++
}

func (z *ZipfReader) Reset() {
	// rand.Rand is NOT goroutine-safe: each reader owns one.
	z.rng = rand.New(rand.NewSource(z.cfg.Seed))
	z.zipf = rand.NewZipf(z.rng, z.cfg.S, z.cfg.V, z.cfg.Objects-1)
	z.pos = 0
}

func (z *ZipfReader) Clone() Reader {
	c := &ZipfReader{cfg: z.cfg}
	c.Reset()
	return c
}

func (z *ZipfReader) sizeOf(id uint64) uint32 {
	span := uint64(z.cfg.MaxSize-z.cfg.MinSize) + 1
	return z.cfg.MinSize + uint32(util.Hash64(id)%span)
}
