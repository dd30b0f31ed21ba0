package entropy

import mathrand "math/rand/v2"

// Source yields uniform random floats in [0, 1). Every engine
// function that rolls dice takes a Source parameter instead of
// touching a global generator.
type Source interface {
	Float() float64
}

// Seeded is a deterministic Source backed by a PCG generator.
// Two Seeded sources with the same seed produce identical streams.
type Seeded struct {
	rng *mathrand.Rand
}

// NewSeeded creates a deterministic source from a seed.
func NewSeeded(seed uint64) *Seeded {
	return &Seeded{rng: mathrand.New(mathrand.NewPCG(seed, seed))}
}

// Float returns the next float64 in [0, 1).
func (s *Seeded) Float() float64 {
	return s.rng.Float64()
}

// Crypto is a Source backed by crypto/rand, used when no random.org
// client is configured.
type Crypto struct{}

// Float returns a uniform float64 in [0, 1).
func (Crypto) Float() float64 {
	return cryptoRandFloat()
}

// Uniform maps one draw from src into [lo, hi).
func Uniform(src Source, lo, hi float64) float64 {
	return lo + src.Float()*(hi-lo)
}

// Pick returns a uniformly chosen index in [0, n). Panics if n <= 0.
func Pick(src Source, n int) int {
	if n <= 0 {
		panic("entropy: Pick with non-positive n")
	}
	i := int(src.Float() * float64(n))
	if i >= n { // Float() can be arbitrarily close to 1
		i = n - 1
	}
	return i
}
