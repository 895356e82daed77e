// Package analytics turns an organization's workflow history into forecasts
// and anomaly signals: a Markov model of status transitions, activity
// outlier detection, Bayesian deadline predictions and Monte Carlo
// completion forecasts.
//
// Every call is a fresh computation over the facts the Store returns at
// that moment. Nothing is cached between calls and nothing is written back.
// Both the HTTP API and the MCP server delegate here.
package analytics

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashita-ai/quire/internal/model"
	"github.com/ashita-ai/quire/internal/stats"
	"github.com/ashita-ai/quire/internal/telemetry"
)

// Store is the read-only data access the analyzers need. *storage.DB
// implements it.
type Store interface {
	ManuscriptStatusHistory(ctx context.Context, orgID uuid.UUID) ([]model.StatusEvent, error)
	ActivityCounts(ctx context.Context, orgID uuid.UUID, daysBack int) ([]model.ActivityObservation, error)
	ManuscriptsWithStages(ctx context.Context, orgID uuid.UUID) ([]model.ManuscriptProjection, error)
	HistoricalStageDurations(ctx context.Context, orgID uuid.UUID) ([]model.StageDuration, error)
}

// Config tunes the engine. Zero values select defaults.
type Config struct {
	// Workers bounds the goroutines used by simulation fan-out.
	// Default: runtime.GOMAXPROCS(0).
	Workers int

	// Timeout caps each analytics call. Zero disables the cap.
	Timeout time.Duration

	// DefaultSimulations is the Monte Carlo trial count used when the
	// caller passes 0. Default: DefaultSimulations.
	DefaultSimulations int

	// Seed pins the random source. Nil means a fresh system-seeded source
	// per call.
	Seed *uint64
}

// Service runs the analyzers. It holds only immutable dependencies and is
// safe for concurrent use.
type Service struct {
	store  Store
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	tracer   trace.Tracer
	duration metric.Float64Histogram
	trials   metric.Int64Counter
}

// New creates an analytics Service.
func New(store Store, cfg Config, logger *slog.Logger) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.DefaultSimulations <= 0 {
		cfg.DefaultSimulations = DefaultSimulations
	}
	if logger == nil {
		logger = slog.Default()
	}

	meter := telemetry.Meter("quire/analytics")
	dur, _ := meter.Float64Histogram("quire.analytics.duration",
		metric.WithDescription("Time to run one analyzer (ms)"),
		metric.WithUnit("ms"),
	)
	trials, _ := meter.Int64Counter("quire.analytics.simulated_trials",
		metric.WithDescription("Monte Carlo trials executed"),
	)

	return &Service{
		store:    store,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		tracer:   telemetry.Tracer("quire/analytics"),
		duration: dur,
		trials:   trials,
	}
}

// source returns the root random stream for one call.
func (s *Service) source() stats.Source {
	if s.cfg.Seed != nil {
		return stats.NewSource(*s.cfg.Seed)
	}
	return stats.NewSystemSource()
}

// instrument applies the call timeout and records a span and a duration
// sample around fn.
func (s *Service) instrument(ctx context.Context, op string, orgID uuid.UUID, fn func(context.Context) error) error {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	ctx, span := s.tracer.Start(ctx, "analytics."+op, trace.WithAttributes(
		attribute.String("quire.org_id", orgID.String()),
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	s.duration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(attribute.String("op", op)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// TransitionMatrix fits a Markov chain to the organization's status
// histories.
func (s *Service) TransitionMatrix(ctx context.Context, orgID uuid.UUID) (model.TransitionMatrix, error) {
	var out model.TransitionMatrix
	err := s.instrument(ctx, "transitions", orgID, func(ctx context.Context) error {
		var err error
		out, err = s.transitionMatrix(ctx, orgID, s.source())
		return err
	})
	return out, err
}

// ActivityAnomalies flags manuscripts whose activity rate over the trailing
// daysBack window is an outlier. Zero arguments select the defaults.
func (s *Service) ActivityAnomalies(ctx context.Context, orgID uuid.UUID, daysBack int, zThreshold float64) (model.ActivityAnomalyReport, error) {
	var out model.ActivityAnomalyReport
	err := s.instrument(ctx, "anomalies", orgID, func(ctx context.Context) error {
		var err error
		out, err = s.activityAnomalies(ctx, orgID, daysBack, zThreshold)
		return err
	})
	return out, err
}

// DeadlinePredictions estimates, per manuscript, the probability of
// meeting its deadline.
func (s *Service) DeadlinePredictions(ctx context.Context, orgID uuid.UUID) ([]model.DeadlinePrediction, error) {
	var out []model.DeadlinePrediction
	err := s.instrument(ctx, "deadlines", orgID, func(ctx context.Context) error {
		var err error
		out, err = s.deadlinePredictions(ctx, orgID)
		return err
	})
	return out, err
}

// MonteCarlo simulates completion times for every manuscript. A zero
// simulations count selects the configured default.
func (s *Service) MonteCarlo(ctx context.Context, orgID uuid.UUID, simulations int) (model.MonteCarloReport, error) {
	var out model.MonteCarloReport
	err := s.instrument(ctx, "simulations", orgID, func(ctx context.Context) error {
		var err error
		out, err = s.monteCarlo(ctx, orgID, simulations, s.source())
		return err
	})
	return out, err
}
