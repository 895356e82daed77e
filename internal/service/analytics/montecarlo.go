package analytics

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/quire/internal/model"
	"github.com/ashita-ai/quire/internal/stats"
)

// trialCtxCheckEvery is how many trials run between context checks.
const trialCtxCheckEvery = 512

func (s *Service) monteCarlo(ctx context.Context, orgID uuid.UUID, simulations int, src stats.Source) (model.MonteCarloReport, error) {
	if simulations <= 0 {
		simulations = s.cfg.DefaultSimulations
	}

	facts, err := s.fetchStageFacts(ctx, orgID)
	if err != nil {
		return model.MonteCarloReport{}, err
	}

	byStage, fallback := fitStageDistributions(facts.history)

	// Children are forked before fan-out so each manuscript's stream depends
	// only on the root seed and its position.
	srcs := make([]stats.Source, len(facts.manuscripts))
	for i := range srcs {
		srcs[i] = stats.Fork(src)
	}

	now := s.now()
	results := make([]model.SimulationResult, len(facts.manuscripts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, m := range facts.manuscripts {
		g.Go(func() error {
			r, err := simulateManuscript(gctx, srcs[i], m, byStage, fallback, simulations, now)
			if err != nil {
				return err
			}
			results[i] = r
			if r.Simulations > 0 {
				s.trials.Add(gctx, int64(r.Simulations), metric.WithAttributes(attribute.String("org_id", orgID.String())))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.MonteCarloReport{}, err
	}

	s.logger.Info("monte carlo simulation complete",
		"org_id", orgID, "manuscripts", len(results), "simulations", simulations, "stage_types", len(byStage))

	return model.MonteCarloReport{
		Manuscripts:        results,
		StageDistributions: byStage,
	}, nil
}

// fitStageDistributions groups finished-stage durations by stage name and
// also fits one organization-wide fallback. Spreads are floored at
// MinStageStdDevDays. With no history the fallback is
// DefaultStageDurationDays / DefaultStageStdDevDays.
func fitStageDistributions(hist []model.StageDuration) (map[string]model.DurationDistribution, model.DurationDistribution) {
	grouped := make(map[string][]float64)
	for _, h := range hist {
		grouped[h.StageName] = append(grouped[h.StageName], h.DurationDays)
	}

	byStage := make(map[string]model.DurationDistribution, len(grouped))
	for name, ds := range grouped {
		byStage[name] = model.DurationDistribution{
			Mean:   stats.Mean(ds),
			StdDev: max(MinStageStdDevDays, stats.StdDev(ds)),
		}
	}

	fallback := model.DurationDistribution{Mean: DefaultStageDurationDays, StdDev: DefaultStageStdDevDays}
	if len(hist) > 0 {
		all := durationsOf(hist)
		fallback = model.DurationDistribution{
			Mean:   stats.Mean(all),
			StdDev: max(MinStageStdDevDays, stats.StdDev(all)),
		}
	}
	return byStage, fallback
}

// simulateManuscript runs the trials for one manuscript. Each trial sums
// one log-normal draw per pending stage, taken from that stage's own
// distribution when history exists for its name.
func simulateManuscript(
	ctx context.Context,
	src stats.Source,
	m model.ManuscriptProjection,
	byStage map[string]model.DurationDistribution,
	fallback model.DurationDistribution,
	simulations int,
	now time.Time,
) (model.SimulationResult, error) {
	var pending []model.DurationDistribution
	for _, st := range m.Stages {
		if st.Finished() {
			continue
		}
		d, ok := byStage[st.Name]
		if !ok {
			d = fallback
		}
		pending = append(pending, d)
	}

	if len(pending) == 0 {
		return model.SimulationResult{
			ManuscriptID:      m.ManuscriptID,
			ManuscriptName:    m.ManuscriptName,
			ProbabilityByDate: []model.DateProbability{},
		}, nil
	}

	totals := make([]float64, simulations)
	for i := range totals {
		if i%trialCtxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return model.SimulationResult{}, err
			}
		}
		var total float64
		for _, d := range pending {
			total += stats.LogNormal(src, d.Mean, d.StdDev)
		}
		totals[i] = total
	}
	slices.Sort(totals)

	return model.SimulationResult{
		ManuscriptID:   m.ManuscriptID,
		ManuscriptName: m.ManuscriptName,
		Simulations:    simulations,
		Percentiles: model.PercentileLadder{
			P10: stats.Percentile(totals, 10),
			P25: stats.Percentile(totals, 25),
			P50: stats.Percentile(totals, 50),
			P75: stats.Percentile(totals, 75),
			P90: stats.Percentile(totals, 90),
			P95: stats.Percentile(totals, 95),
		},
		MeanCompletionDays: stats.Mean(totals),
		StdDevDays:         stats.StdDev(totals),
		ProbabilityByDate:  completionCurve(totals, now),
	}, nil
}

// completionCurve reports, every CurveStepDays up to CurveHorizonDays, the
// fraction of sorted trial totals finished by that day.
func completionCurve(sorted []float64, now time.Time) []model.DateProbability {
	curve := make([]model.DateProbability, 0, CurveHorizonDays/CurveStepDays)
	for day := CurveStepDays; day <= CurveHorizonDays; day += CurveStepDays {
		done := sort.Search(len(sorted), func(i int) bool { return sorted[i] > float64(day) })
		curve = append(curve, model.DateProbability{
			Date:        now.AddDate(0, 0, day).Format(time.DateOnly),
			Days:        day,
			Probability: float64(done) / float64(len(sorted)),
		})
	}
	return curve
}
