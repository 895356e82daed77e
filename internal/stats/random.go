package stats

import (
	"math"
	"math/rand/v2"
)

// Source is a uniform random capability. Float64 returns a value in [0, 1);
// Uint64 is used to seed forked streams. *rand.Rand satisfies it.
type Source interface {
	Float64() float64
	Uint64() uint64
}

// pcgIncrement is the second PCG state word; any odd-mixing constant works.
const pcgIncrement = 0x9e3779b97f4a7c15

// NewSource returns a deterministic source for the given seed.
func NewSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^pcgIncrement)) //nolint:gosec // statistical sampling, not security
}

// NewSystemSource returns a source seeded from the runtime's random state.
func NewSystemSource() *rand.Rand {
	return NewSource(rand.Uint64()) //nolint:gosec // statistical sampling, not security
}

// Fork derives an independent stream from src. Forking the same parent in
// the same order always yields the same children, which keeps fan-out work
// reproducible under a fixed seed.
func Fork(src Source) *rand.Rand {
	return NewSource(src.Uint64())
}

// Normal draws from N(mean, stdDev²) with the Box–Muller transform.
func Normal(src Source, mean, stdDev float64) float64 {
	// 1-u keeps u1 in (0, 1] so the log is finite.
	u1 := 1 - src.Float64()
	u2 := src.Float64()
	z0 := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	return z0*stdDev + mean
}

// LogNormal draws a strictly positive value whose arithmetic mean and
// standard deviation match the targets. The underlying normal parameters
// come from the usual moment-matching identities:
//
//	mu    = ln(m² / sqrt(v + m²))
//	sigma = sqrt(ln(1 + v/m²))
//
// A non-positive mean cannot be matched and yields 0.
func LogNormal(src Source, mean, stdDev float64) float64 {
	if mean <= 0 {
		return 0
	}
	variance := stdDev * stdDev
	m2 := mean * mean
	mu := math.Log(m2 / math.Sqrt(variance+m2))
	sigma := math.Sqrt(math.Log(1 + variance/m2))
	return math.Exp(Normal(src, mu, sigma))
}
