package analytics

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/quire/internal/model"
	"github.com/ashita-ai/quire/internal/stats"
)

// Report runs all four analyzers concurrently with their default
// parameters and merges the results. The first analyzer error cancels the
// rest and is returned.
func (s *Service) Report(ctx context.Context, orgID uuid.UUID) (model.AnalyticsReport, error) {
	report := model.AnalyticsReport{OrganizationID: orgID}
	err := s.instrument(ctx, "report", orgID, func(ctx context.Context) error {
		root := s.source()
		markovSrc := stats.Fork(root)
		simSrc := stats.Fork(root)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			report.TransitionAnalysis, err = s.transitionMatrix(gctx, orgID, markovSrc)
			return err
		})
		g.Go(func() error {
			var err error
			report.ActivityAnomalies, err = s.activityAnomalies(gctx, orgID, DefaultDaysBack, DefaultZThreshold)
			return err
		})
		g.Go(func() error {
			var err error
			report.DeadlinePredictions, err = s.deadlinePredictions(gctx, orgID)
			return err
		})
		g.Go(func() error {
			var err error
			report.MonteCarloSimulations, err = s.monteCarlo(gctx, orgID, s.cfg.DefaultSimulations, simSrc)
			return err
		})
		if err := g.Wait(); err != nil {
			return err
		}
		report.GeneratedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return model.AnalyticsReport{}, err
	}

	s.logger.Info("analytics report generated", "org_id", orgID)
	return report, nil
}
