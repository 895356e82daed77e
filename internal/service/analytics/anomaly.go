package analytics

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/ashita-ai/quire/internal/model"
	"github.com/ashita-ai/quire/internal/stats"
)

func (s *Service) activityAnomalies(ctx context.Context, orgID uuid.UUID, daysBack int, zThreshold float64) (model.ActivityAnomalyReport, error) {
	if daysBack == 0 {
		daysBack = DefaultDaysBack
	}
	if zThreshold == 0 {
		zThreshold = DefaultZThreshold
	}

	obs, err := s.store.ActivityCounts(ctx, orgID, daysBack)
	if err != nil {
		return model.ActivityAnomalyReport{}, fmt.Errorf("analytics: activity counts: %w", err)
	}

	report := detectAnomalies(obs, zThreshold)
	report.DaysBack = daysBack

	s.logger.Info("anomaly detection complete",
		"org_id", orgID, "manuscripts", len(report.Manuscripts), "anomalies", len(report.Anomalies))
	return report, nil
}

// detectAnomalies scores each manuscript's daily activity rate against the
// organization-wide distribution. A manuscript is anomalous when its
// |z| is strictly greater than zThreshold.
func detectAnomalies(obs []model.ActivityObservation, zThreshold float64) model.ActivityAnomalyReport {
	rates := make([]float64, len(obs))
	for i, o := range obs {
		rates[i] = float64(o.ActivityCount) / float64(max(1, o.DaysObserved))
	}

	mean := stats.Mean(rates)
	sd := stats.StdDev(rates)

	report := model.ActivityAnomalyReport{
		GlobalMeanRate:   mean,
		GlobalStdDev:     sd,
		AnomalyThreshold: zThreshold,
		Manuscripts:      make([]model.ActivityRate, 0, len(obs)),
		Anomalies:        []model.ActivityRate{},
	}
	for i, o := range obs {
		z := stats.ZScore(rates[i], mean, sd)
		r := model.ActivityRate{
			ManuscriptID:   o.ManuscriptID,
			ManuscriptName: o.ManuscriptName,
			ObservedRate:   rates[i],
			ExpectedRate:   mean,
			ZScore:         z,
			IsAnomaly:      math.Abs(z) > zThreshold,
			PValue:         stats.PValueFromZScore(z),
		}
		report.Manuscripts = append(report.Manuscripts, r)
		if r.IsAnomaly {
			report.Anomalies = append(report.Anomalies, r)
		}
	}
	return report
}
