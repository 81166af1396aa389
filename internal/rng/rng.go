package rng

import (
	"time"

	"github.com/MichaelTJones/pcg"
)

// Source is the subset of random number generation the simulation needs.
// Everything that makes a random decision takes a Source so tests can
// inject a seeded generator.
type Source interface {
	Float64() float64
	Intn(n int) int
}

const pcgSequence = 0xda3e39cb94b95bdb

// Rand is a PCG32-backed Source. It is not safe for concurrent use.
type Rand struct {
	r *pcg.PCG32
}

// New returns a generator seeded with the given value. A zero seed picks
// one from the wall clock.
func New(seed int64) *Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := &Rand{r: pcg.NewPCG32()}
	r.Seed(seed)
	return r
}

func (r *Rand) Seed(s int64) {
	r.r.Seed(uint64(s), pcgSequence)
}

// Intn returns a uniform value in [0,n). n must be positive.
func (r *Rand) Intn(n int) int {
	return int(r.r.Bounded(uint32(n)))
}

// Float64 returns a uniform value in [0,1).
func (r *Rand) Float64() float64 {
	return float64(r.r.Random()) / (1 << 32)
}

// Uniform returns a value uniformly distributed in [lo,hi).
func Uniform(s Source, lo, hi float64) float64 {
	return lo + (hi-lo)*s.Float64()
}

// Chance reports true with probability p.
func Chance(s Source, p float64) bool {
	return s.Float64() < p
}

// Pick returns n distinct indices from [0,total) in random order, or fewer
// if total < n.
func Pick(s Source, total, n int) []int {
	if n > total {
		n = total
	}
	if n <= 0 {
		return nil
	}
	idx := make([]int, total)
	for i := range idx {
		idx[i] = i
	}
	// Partial Fisher-Yates
	for i := 0; i < n; i++ {
		j := i + s.Intn(total-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:n]
}
