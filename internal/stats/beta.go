package stats

import "math"

// betaZ is the two-sided 95% normal quantile used for Beta intervals.
const betaZ = 1.96

// Interval is a closed probability interval.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// BetaMean returns the mean of Beta(alpha, beta). Degenerate parameters
// (alpha+beta <= 0) yield 0.
func BetaMean(alpha, beta float64) float64 {
	if alpha+beta <= 0 {
		return 0
	}
	return alpha / (alpha + beta)
}

// BetaVariance returns the variance of Beta(alpha, beta).
func BetaVariance(alpha, beta float64) float64 {
	s := alpha + beta
	if s <= 0 {
		return 0
	}
	return alpha * beta / (s * s * (s + 1))
}

// BetaConfidenceInterval returns the normal-approximation 95% interval of
// Beta(alpha, beta): mean ± 1.96 sd, clamped to [0, 1].
func BetaConfidenceInterval(alpha, beta float64) Interval {
	mean := BetaMean(alpha, beta)
	sd := math.Sqrt(BetaVariance(alpha, beta))
	return Interval{
		Lower: math.Max(0, mean-betaZ*sd),
		Upper: math.Min(1, mean+betaZ*sd),
	}
}
