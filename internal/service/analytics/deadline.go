package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/quire/internal/model"
	"github.com/ashita-ai/quire/internal/stats"
)

// stageFacts is what the predictor and the simulator both fetch: current
// manuscripts with their stages, and the organization's finished stages.
type stageFacts struct {
	manuscripts []model.ManuscriptProjection
	history     []model.StageDuration
}

// fetchStageFacts issues both reads concurrently.
func (s *Service) fetchStageFacts(ctx context.Context, orgID uuid.UUID) (stageFacts, error) {
	var f stageFacts
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ms, err := s.store.ManuscriptsWithStages(gctx, orgID)
		if err != nil {
			return fmt.Errorf("analytics: manuscripts with stages: %w", err)
		}
		f.manuscripts = ms
		return nil
	})
	g.Go(func() error {
		hist, err := s.store.HistoricalStageDurations(gctx, orgID)
		if err != nil {
			return fmt.Errorf("analytics: historical stage durations: %w", err)
		}
		f.history = hist
		return nil
	})
	if err := g.Wait(); err != nil {
		return stageFacts{}, err
	}
	return f, nil
}

func (s *Service) deadlinePredictions(ctx context.Context, orgID uuid.UUID) ([]model.DeadlinePrediction, error) {
	facts, err := s.fetchStageFacts(ctx, orgID)
	if err != nil {
		return nil, err
	}

	prior := DefaultStageDurationDays
	if len(facts.history) > 0 {
		prior = stats.Mean(durationsOf(facts.history))
	}

	now := s.now()
	out := make([]model.DeadlinePrediction, 0, len(facts.manuscripts))
	for _, m := range facts.manuscripts {
		out = append(out, predictDeadline(m, prior, now))
	}

	s.logger.Info("deadline predictions complete", "org_id", orgID, "manuscripts", len(out))
	return out, nil
}

// predictDeadline applies the Beta-Binomial model to one manuscript.
// priorVelocity is the stage duration assumed when the manuscript has not
// finished any stage yet.
func predictDeadline(m model.ManuscriptProjection, priorVelocity float64, now time.Time) model.DeadlinePrediction {
	var (
		completed []float64
		pending   int
		successes int
		failures  int
	)
	for _, st := range m.Stages {
		if !st.Finished() {
			pending++
			continue
		}
		completed = append(completed, stageDays(st.CreatedAt, *st.FinishedAt))
		if st.DeadlineAt != nil {
			if !st.FinishedAt.After(*st.DeadlineAt) {
				successes++
			} else {
				failures++
			}
		}
	}

	alpha := PriorAlpha + float64(successes)
	beta := PriorBeta + float64(failures)
	probability := stats.BetaMean(alpha, beta)
	ci := stats.BetaConfidenceInterval(alpha, beta)

	velocity := priorVelocity
	if len(completed) > 0 {
		velocity = stats.Mean(completed)
	}
	var completedTotal float64
	for _, d := range completed {
		completedTotal += d
	}
	remaining := float64(pending) * velocity

	risk := model.RiskLow
	if m.Deadline != nil {
		daysUntil := m.Deadline.Sub(now).Hours() / 24
		risk = classifyRisk(daysUntil/max(1, remaining), probability)
	}

	return model.DeadlinePrediction{
		ManuscriptID:                 m.ManuscriptID,
		ManuscriptName:               m.ManuscriptName,
		Deadline:                     m.Deadline,
		ProbabilityOfMeetingDeadline: probability,
		ExpectedRemainingDays:        remaining,
		ExpectedCompletionDays:       completedTotal + remaining,
		ConfidenceInterval:           model.ConfidenceInterval{Lower: ci.Lower, Upper: ci.Upper},
		RiskLevel:                    risk,
		Factors: model.PredictionFactors{
			StagesCompleted:  len(completed),
			TotalStages:      len(m.Stages),
			AvgStageVelocity: velocity,
			CommentActivity:  m.CommentCount,
		},
	}
}

// classifyRisk walks the ladder from critical down; the first rung whose
// buffer or probability threshold is undercut wins.
func classifyRisk(bufferRatio, probability float64) model.RiskLevel {
	levels := []model.RiskLevel{model.RiskCritical, model.RiskHigh, model.RiskMedium}
	for i, rung := range riskLadder {
		if bufferRatio < rung.buffer || probability < rung.probability {
			return levels[i]
		}
	}
	return model.RiskLow
}

// stageDays is the duration between two instants in fractional days,
// floored at MinStageDurationDays.
func stageDays(from, to time.Time) float64 {
	return max(MinStageDurationDays, to.Sub(from).Hours()/24)
}

func durationsOf(hist []model.StageDuration) []float64 {
	out := make([]float64, len(hist))
	for i, h := range hist {
		out[i] = h.DurationDays
	}
	return out
}
