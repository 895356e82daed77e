// Package stats implements the numerical primitives behind the workflow
// analytics: descriptive statistics, tail probabilities, percentile
// interpolation, random variates, Markov chain helpers and Beta posteriors.
//
// Every function is pure with respect to its inputs. Randomness is supplied
// by the caller through a Source so results are reproducible under a fixed
// seed.
package stats

import "math"

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev returns the population standard deviation of xs.
// Fewer than two samples yield 0.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	avg := Mean(xs)
	var sq float64
	for _, x := range xs {
		d := x - avg
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)))
}

// ZScore returns how many standard deviations value lies from mean.
// A zero standard deviation yields 0 rather than an infinity.
func ZScore(value, mean, stdDev float64) float64 {
	if stdDev == 0 {
		return 0
	}
	return (value - mean) / stdDev
}

// Coefficients of the Abramowitz & Stegun 26.2.17 approximation of the
// standard normal upper tail.
const (
	asP  = 0.2316419
	asB1 = 0.319381530
	asB2 = -0.356563782
	asB3 = 1.781477937
	asB4 = -1.821255978
	asB5 = 1.330274429
)

// PValueFromZScore returns the two-tailed p-value of z under a standard
// normal model. Absolute error is below 7.5e-8.
func PValueFromZScore(z float64) float64 {
	absZ := math.Abs(z)
	t := 1 / (1 + asP*absZ)
	d := math.Exp(-absZ*absZ/2) / math.Sqrt(2*math.Pi)
	tail := d * t * (asB1 + t*(asB2+t*(asB3+t*(asB4+t*asB5))))
	return 2 * tail
}

// Percentile returns the p-th percentile (p in [0, 100]) of an ascending
// slice using linear interpolation between the two nearest ranks.
// An empty slice yields 0. p outside [0, 100] is clamped.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	p = math.Max(0, math.Min(100, p))

	idx := p / 100 * float64(n-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper {
		return sorted[lower]
	}
	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
