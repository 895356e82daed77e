package analytics

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/quire/internal/model"
)

func TestReport_MergesAllAnalyzers(t *testing.T) {
	store := simulationFixture()
	store.events = lifecycle(uuid.New(), testNow.Add(-days(3)), "draft", "in_review", "published")
	store.activity = observations(2, 3, 4)

	svc := newTestService(store, 9)
	svc.cfg.DefaultSimulations = 500
	orgID := uuid.New()

	report, err := svc.Report(context.Background(), orgID)
	require.NoError(t, err)

	assert.Equal(t, orgID, report.OrganizationID)
	assert.Equal(t, testNow, report.GeneratedAt)
	assert.Equal(t, []string{"draft", "in_review", "published"}, report.TransitionAnalysis.States)
	assert.Len(t, report.ActivityAnomalies.Manuscripts, 3)
	assert.Equal(t, DefaultDaysBack, store.gotDaysBack)
	assert.Len(t, report.DeadlinePredictions, 2)
	require.Len(t, report.MonteCarloSimulations.Manuscripts, 2)
	assert.Equal(t, 500, report.MonteCarloSimulations.Manuscripts[0].Simulations)
}

func TestReport_FixedSeedIsReproducible(t *testing.T) {
	run := func() model.AnalyticsReport {
		store := simulationFixture()
		store.events = lifecycle(uuid.New(), testNow, "draft", "in_review", "draft", "in_review", "published")
		svc := newTestService(store, 77)
		svc.cfg.DefaultSimulations = 300
		report, err := svc.Report(context.Background(), uuid.New())
		require.NoError(t, err)
		return report
	}

	a, b := run(), run()
	assert.Equal(t, a.TransitionAnalysis.ExpectedHittingTimes, b.TransitionAnalysis.ExpectedHittingTimes)
	for i := range a.MonteCarloSimulations.Manuscripts {
		assert.Equal(t, a.MonteCarloSimulations.Manuscripts[i].Percentiles, b.MonteCarloSimulations.Manuscripts[i].Percentiles)
	}
}

func TestReport_FirstErrorWins(t *testing.T) {
	boom := errors.New("replica lag")
	store := simulationFixture()
	store.activityErr = boom
	svc := newTestService(store, 1)

	report, err := svc.Report(context.Background(), uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, model.AnalyticsReport{}, report)
}

func TestCheckParams(t *testing.T) {
	assert.NoError(t, CheckDaysBack(1))
	assert.NoError(t, CheckDaysBack(365))
	assert.ErrorIs(t, CheckDaysBack(0), ErrInvalidParams)
	assert.ErrorIs(t, CheckDaysBack(366), ErrInvalidParams)

	assert.NoError(t, CheckZThreshold(1))
	assert.NoError(t, CheckZThreshold(2.5))
	assert.NoError(t, CheckZThreshold(5))
	assert.ErrorIs(t, CheckZThreshold(0.99), ErrInvalidParams)
	assert.ErrorIs(t, CheckZThreshold(5.01), ErrInvalidParams)
	assert.ErrorIs(t, CheckZThreshold(math.NaN()), ErrInvalidParams)

	assert.NoError(t, CheckSimulations(100))
	assert.NoError(t, CheckSimulations(100_000))
	assert.ErrorIs(t, CheckSimulations(99), ErrInvalidParams)
	assert.ErrorIs(t, CheckSimulations(100_001), ErrInvalidParams)
}
