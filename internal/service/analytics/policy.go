package analytics

import (
	"errors"
	"fmt"
)

// Fallbacks and guards applied when history is too thin to estimate from.
const (
	// DefaultStageDurationDays is the stage duration assumed when an
	// organization has no finished stages at all.
	DefaultStageDurationDays = 7.0

	// DefaultStageStdDevDays pairs with DefaultStageDurationDays in the
	// simulator's fallback distribution.
	DefaultStageStdDevDays = 3.0

	// MinStageStdDevDays floors fitted spreads so log-normal sampling never
	// degenerates to a constant.
	MinStageStdDevDays = 0.5

	// MinStageDurationDays floors observed stage durations; zero-length
	// stages are data-entry artifacts.
	MinStageDurationDays = 0.1

	// PriorAlpha and PriorBeta form the weak Beta(2, 2) prior on meeting a
	// stage deadline: two pseudo-successes and two pseudo-failures.
	PriorAlpha = 2.0
	PriorBeta  = 2.0

	// TargetStatus is the terminal status for hitting-time estimation. When
	// it is never observed the last discovered status is used instead.
	TargetStatus = "published"
)

// Request defaults and boundary limits.
const (
	DefaultDaysBack    = 30
	MinDaysBack        = 1
	MaxDaysBack        = 365
	DefaultZThreshold  = 2.0
	MinZThreshold      = 1.0
	MaxZThreshold      = 5.0
	DefaultSimulations = 10_000
	MinSimulations     = 100
	MaxSimulations     = 100_000
)

// Completion curve sampling: every CurveStepDays up to CurveHorizonDays.
const (
	CurveStepDays    = 7
	CurveHorizonDays = 90
)

// Risk ladder thresholds. A level applies when the buffer ratio or the
// posterior probability falls below its pair; levels are checked from
// critical downwards.
var riskLadder = []struct {
	buffer      float64
	probability float64
}{
	{0.5, 0.3}, // critical
	{1.0, 0.5}, // high
	{1.5, 0.7}, // medium
}

// ErrInvalidParams is returned by the Check helpers when a caller-supplied
// parameter is outside its accepted range.
var ErrInvalidParams = errors.New("invalid parameters")

// CheckDaysBack validates the anomaly window length.
func CheckDaysBack(days int) error {
	if days < MinDaysBack || days > MaxDaysBack {
		return fmt.Errorf("%w: days_back must be between %d and %d", ErrInvalidParams, MinDaysBack, MaxDaysBack)
	}
	return nil
}

// CheckZThreshold validates the anomaly z-score threshold.
func CheckZThreshold(z float64) error {
	// Written as a negated range so NaN is rejected too.
	if !(z >= MinZThreshold && z <= MaxZThreshold) {
		return fmt.Errorf("%w: z_threshold must be between %g and %g", ErrInvalidParams, MinZThreshold, MaxZThreshold)
	}
	return nil
}

// CheckSimulations validates the Monte Carlo trial count.
func CheckSimulations(n int) error {
	if n < MinSimulations || n > MaxSimulations {
		return fmt.Errorf("%w: simulations must be between %d and %d", ErrInvalidParams, MinSimulations, MaxSimulations)
	}
	return nil
}
