package stats

import (
	"context"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, Mean([]float64{}))
	assert.InDelta(t, 2.5, Mean([]float64{1, 2, 3, 4}), 1e-12)
}

func TestStdDev(t *testing.T) {
	assert.Equal(t, 0.0, StdDev(nil))
	assert.Equal(t, 0.0, StdDev([]float64{42}), "single sample has no spread")
	// Population stddev of 2,4,4,4,5,5,7,9 is exactly 2.
	assert.InDelta(t, 2.0, StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-12)
}

func TestZScore(t *testing.T) {
	assert.Equal(t, 0.0, ZScore(10, 3, 0), "zero stddev yields zero, not Inf")
	assert.InDelta(t, 2.0, ZScore(7, 3, 2), 1e-12)
	assert.InDelta(t, -1.5, ZScore(0, 3, 2), 1e-12)
}

func TestPValueFromZScore(t *testing.T) {
	cases := []struct {
		z    float64
		want float64
	}{
		{0, 1.0},
		{1.0, 0.3173105},
		{1.959964, 0.05},
		{2.575829, 0.01},
		{3.0, 0.0026998},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, PValueFromZScore(tc.z), 1e-6, "z=%v", tc.z)
		assert.InDelta(t, PValueFromZScore(tc.z), PValueFromZScore(-tc.z), 1e-15, "two-tailed symmetry at z=%v", tc.z)
	}
}

func TestPercentile(t *testing.T) {
	assert.Equal(t, 0.0, Percentile(nil, 50))

	xs := []float64{10, 20, 30, 40, 50}
	assert.Equal(t, 10.0, Percentile(xs, 0))
	assert.Equal(t, 30.0, Percentile(xs, 50))
	assert.Equal(t, 50.0, Percentile(xs, 100))
	assert.InDelta(t, 14.0, Percentile(xs, 10), 1e-12)
	assert.InDelta(t, 45.0, Percentile(xs, 87.5), 1e-12)

	assert.Equal(t, 7.0, Percentile([]float64{7}, 95))
}

func TestPercentile_MonotoneInP(t *testing.T) {
	src := NewSource(7)
	xs := make([]float64, 257)
	for i := range xs {
		xs[i] = Normal(src, 0, 10)
	}
	sort.Float64s(xs)

	prev := math.Inf(-1)
	for p := 0.0; p <= 100; p += 0.5 {
		v := Percentile(xs, p)
		require.GreaterOrEqual(t, v, prev, "percentile must not decrease at p=%v", p)
		prev = v
	}
}

func TestNormal_Moments(t *testing.T) {
	src := NewSource(1)
	xs := make([]float64, 50_000)
	for i := range xs {
		xs[i] = Normal(src, 5, 2)
	}
	assert.InDelta(t, 5, Mean(xs), 0.05)
	assert.InDelta(t, 2, StdDev(xs), 0.05)
}

func TestLogNormal_MomentMatching(t *testing.T) {
	src := NewSource(2)
	xs := make([]float64, 100_000)
	for i := range xs {
		xs[i] = LogNormal(src, 7, 3)
		require.Greater(t, xs[i], 0.0)
	}
	assert.InDelta(t, 7, Mean(xs), 0.1)
	assert.InDelta(t, 3, StdDev(xs), 0.15)
}

func TestLogNormal_NonPositiveMean(t *testing.T) {
	assert.Equal(t, 0.0, LogNormal(NewSource(3), 0, 1))
}

func TestNewSource_Deterministic(t *testing.T) {
	a, b := NewSource(99), NewSource(99)
	for range 100 {
		require.Equal(t, a.Float64(), b.Float64())
	}
}

func TestFork_Deterministic(t *testing.T) {
	a, b := NewSource(5), NewSource(5)
	ca, cb := Fork(a), Fork(b)
	for range 50 {
		require.Equal(t, ca.Uint64(), cb.Uint64())
	}
}

func TestSteadyState_Empty(t *testing.T) {
	assert.Equal(t, []float64{}, SteadyState(nil, 0, 0))
}

func TestSteadyState_TwoStateChain(t *testing.T) {
	// Stationary distribution of [[0.9 0.1] [0.5 0.5]] is [5/6, 1/6].
	m := [][]float64{{0.9, 0.1}, {0.5, 0.5}}
	ss := SteadyState(m, 0, 0)
	require.Len(t, ss, 2)
	assert.InDelta(t, 5.0/6, ss[0], 1e-8)
	assert.InDelta(t, 1.0/6, ss[1], 1e-8)
	assert.InDelta(t, 1.0, ss[0]+ss[1], 1e-9)
}

func TestSteadyState_DoesNotMutateInput(t *testing.T) {
	m := [][]float64{{0, 1}, {1, 0}}
	_ = SteadyState(m, 10, 0)
	assert.Equal(t, [][]float64{{0, 1}, {1, 0}}, m)
}

func TestSteadyState_IterationBudgetReturnsLastIterate(t *testing.T) {
	// Five iterations are far from enough for this chain to settle; the last
	// iterate is still a probability vector.
	m := [][]float64{{0.99, 0.01}, {0.5, 0.5}}
	ss := SteadyState(m, 5, 0)
	require.Len(t, ss, 2)
	assert.InDelta(t, 1.0, ss[0]+ss[1], 1e-12)
	assert.Greater(t, math.Abs(ss[0]-50.0/51), 1e-3)
}

func TestHittingTimes_DeterministicChain(t *testing.T) {
	m := [][]float64{
		{0, 1, 0},
		{0, 0, 1},
		{0, 0, 1},
	}
	times, err := HittingTimes(context.Background(), NewSource(11), m, 2, HittingTimeOptions{Walks: 500})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 1, 0}, times)
}

func TestHittingTimes_UnreachableTargetHitsCap(t *testing.T) {
	m := [][]float64{
		{1, 0},
		{0, 1},
	}
	times, err := HittingTimes(context.Background(), NewSource(1), m, 1, HittingTimeOptions{Walks: 10, MaxSteps: 50})
	require.NoError(t, err)
	assert.Equal(t, []float64{50, 0}, times)
}

func TestHittingTimes_GeometricExpectation(t *testing.T) {
	// From state 0 the walk leaves with probability 0.25 per step: E[T] = 4.
	m := [][]float64{
		{0.75, 0.25},
		{0, 1},
	}
	times, err := HittingTimes(context.Background(), NewSource(3), m, 1, HittingTimeOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 4.0, times[0], 0.15)
	assert.Equal(t, 0.0, times[1])
}

func TestHittingTimes_FixedSeedReproducible(t *testing.T) {
	m := [][]float64{
		{0.5, 0.3, 0.2},
		{0.1, 0.6, 0.3},
		{0, 0, 1},
	}
	opts := HittingTimeOptions{Walks: 2000, Workers: 3}
	a, err := HittingTimes(context.Background(), NewSource(42), m, 2, opts)
	require.NoError(t, err)
	b, err := HittingTimes(context.Background(), NewSource(42), m, 2, opts)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHittingTimes_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := [][]float64{{0.5, 0.5}, {0, 1}}
	_, err := HittingTimes(ctx, NewSource(1), m, 1, HittingTimeOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBetaMean(t *testing.T) {
	assert.Equal(t, 0.5, BetaMean(2, 2))
	assert.InDelta(t, 0.75, BetaMean(6, 2), 1e-12)
	assert.Equal(t, 0.0, BetaMean(0, 0))
}

func TestBetaConfidenceInterval_Ordering(t *testing.T) {
	for _, ab := range [][2]float64{{2, 2}, {1, 30}, {30, 1}, {2, 50}, {500, 500}, {0.5, 0.5}} {
		a, b := ab[0], ab[1]
		ci := BetaConfidenceInterval(a, b)
		m := BetaMean(a, b)
		assert.GreaterOrEqual(t, ci.Lower, 0.0)
		assert.LessOrEqual(t, ci.Lower, m)
		assert.LessOrEqual(t, m, ci.Upper)
		assert.LessOrEqual(t, ci.Upper, 1.0)
		assert.GreaterOrEqual(t, m, 0.0)
		assert.LessOrEqual(t, m, 1.0)
	}
}

func TestBetaConfidenceInterval_Prior(t *testing.T) {
	// Beta(2,2): variance 1/20, sd ≈ 0.2236.
	ci := BetaConfidenceInterval(2, 2)
	sd := math.Sqrt(0.05)
	assert.InDelta(t, 0.5-1.96*sd, ci.Lower, 1e-12)
	assert.InDelta(t, 0.5+1.96*sd, ci.Upper, 1e-12)
}
