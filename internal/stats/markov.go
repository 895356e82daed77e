package stats

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Power-iteration defaults for SteadyState.
const (
	SteadyStateMaxIterations = 1000
	SteadyStateTolerance     = 1e-10
)

// Random-walk defaults for HittingTimes.
const (
	HittingTimeWalks    = 10_000
	HittingTimeMaxSteps = 1000
)

// ctxCheckEvery is how many iterations of a hot loop run between
// cancellation checks.
const ctxCheckEvery = 256

// SteadyState approximates the stationary distribution of a row-stochastic
// matrix by power iteration from the uniform vector. Iteration stops once
// the L1 distance between successive iterates drops below tolerance; if
// that never happens the last iterate is returned. Non-positive arguments
// select the package defaults.
func SteadyState(matrix [][]float64, maxIterations int, tolerance float64) []float64 {
	n := len(matrix)
	if n == 0 {
		return []float64{}
	}
	if maxIterations <= 0 {
		maxIterations = SteadyStateMaxIterations
	}
	if tolerance <= 0 {
		tolerance = SteadyStateTolerance
	}

	state := make([]float64, n)
	for i := range state {
		state[i] = 1 / float64(n)
	}

	for range maxIterations {
		next := make([]float64, n)
		for i := range n {
			if state[i] == 0 {
				continue
			}
			for j := range n {
				next[j] += state[i] * matrix[i][j]
			}
		}

		var diff float64
		for i := range n {
			diff += math.Abs(state[i] - next[i])
		}
		state = next
		if diff < tolerance {
			break
		}
	}
	return state
}

// HittingTimeOptions tunes HittingTimes. Zero fields select the defaults.
type HittingTimeOptions struct {
	Walks    int
	MaxSteps int
	Workers  int
}

func (o HittingTimeOptions) withDefaults() HittingTimeOptions {
	if o.Walks <= 0 {
		o.Walks = HittingTimeWalks
	}
	if o.MaxSteps <= 0 {
		o.MaxSteps = HittingTimeMaxSteps
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	return o
}

// HittingTimes estimates, for every state, the expected number of steps to
// first reach target. Each non-target state is estimated from opts.Walks
// random walks capped at opts.MaxSteps steps; a walk that never reaches the
// target contributes the cap. target itself is 0 by definition.
//
// Start states are simulated concurrently, each on a stream forked from src
// in state order, so a fixed-seed src gives identical results regardless of
// scheduling. The only error is ctx's.
func HittingTimes(ctx context.Context, src Source, matrix [][]float64, target int, opts HittingTimeOptions) ([]float64, error) {
	n := len(matrix)
	times := make([]float64, n)
	if n == 0 || target < 0 || target >= n {
		return times, nil
	}
	opts = opts.withDefaults()

	sources := make([]Source, n)
	for i := range sources {
		sources[i] = Fork(src)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for start := range n {
		if start == target {
			continue
		}
		g.Go(func() error {
			avg, err := meanStepsToTarget(ctx, sources[start], matrix, start, target, opts)
			if err != nil {
				return err
			}
			times[start] = avg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return times, nil
}

func meanStepsToTarget(ctx context.Context, src Source, matrix [][]float64, start, target int, opts HittingTimeOptions) (float64, error) {
	var total int
	for walk := range opts.Walks {
		if walk%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		state, steps := start, 0
		for state != target && steps < opts.MaxSteps {
			state = nextState(src, matrix[state], state)
			steps++
		}
		total += steps
	}
	return float64(total) / float64(opts.Walks), nil
}

// nextState samples a successor by walking the cumulative distribution of
// row. Rounding can leave the draw just above the final cumulative sum; the
// last reachable state absorbs that remainder.
func nextState(src Source, row []float64, current int) int {
	r := src.Float64()
	var cum float64
	last := current
	for next, p := range row {
		if p <= 0 {
			continue
		}
		cum += p
		last = next
		if r < cum {
			return next
		}
	}
	return last
}
