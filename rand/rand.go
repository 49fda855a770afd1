// Package rand wraps a PCG32 generator for reproducible per-tile
// sampling. PCG is a small counter-based generator whose output stream
// depends only on the seed, which keeps sampled tile contents identical
// across runs and platforms.
package rand

import (
	"github.com/MichaelTJones/pcg"
)

// The sequence constant selects one fixed PCG stream; it must never
// change or previously generated pyramids stop being reproducible.
const sequence = 0xda3e39cb94b95bdb

type Rand struct {
	r *pcg.PCG32
}

func New(seed uint64) *Rand {
	r := &Rand{r: pcg.NewPCG32()}
	r.r.Seed(seed, sequence)
	return r
}

// Seed resets the generator state.
func (r *Rand) Seed(seed uint64) {
	r.r.Seed(seed, sequence)
}

func (r *Rand) Uint32() uint32 {
	return r.r.Random()
}

// Intn returns an unbiased integer in [0, n). n must be > 0.
func (r *Rand) Intn(n int) int {
	return int(r.r.Bounded(uint32(n)))
}

// SampleN returns n elements drawn uniformly without replacement from
// items, using a partial Fisher-Yates shuffle over a copy. If n >= len(items)
// a copy of the whole slice is returned. The result order is the
// selection order of the generator, so equal seeds yield equal output.
func SampleN[T any](r *Rand, items []T, n int) []T {
	if n >= len(items) {
		out := make([]T, len(items))
		copy(out, items)
		return out
	}
	pool := make([]T, len(items))
	copy(pool, items)
	out := make([]T, n)
	for i := 0; i < n; i++ {
		j := i + r.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
		out[i] = pool[i]
	}
	return out
}
