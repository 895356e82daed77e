package analytics

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/quire/internal/model"
)

// fakeStore serves canned facts and optional per-query errors.
type fakeStore struct {
	events      []model.StatusEvent
	activity    []model.ActivityObservation
	manuscripts []model.ManuscriptProjection
	history     []model.StageDuration

	historyErr     error
	activityErr    error
	manuscriptsErr error
	durationsErr   error

	gotDaysBack int
}

func (f *fakeStore) ManuscriptStatusHistory(ctx context.Context, _ uuid.UUID) ([]model.StatusEvent, error) {
	return f.events, f.historyErr
}

func (f *fakeStore) ActivityCounts(ctx context.Context, _ uuid.UUID, daysBack int) ([]model.ActivityObservation, error) {
	f.gotDaysBack = daysBack
	return f.activity, f.activityErr
}

func (f *fakeStore) ManuscriptsWithStages(ctx context.Context, _ uuid.UUID) ([]model.ManuscriptProjection, error) {
	return f.manuscripts, f.manuscriptsErr
}

func (f *fakeStore) HistoricalStageDurations(ctx context.Context, _ uuid.UUID) ([]model.StageDuration, error) {
	return f.history, f.durationsErr
}

var testNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func newTestService(store Store, seed uint64) *Service {
	svc := New(store, Config{Workers: 4, Seed: &seed}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return testNow }
	return svc
}

func days(n float64) time.Duration {
	return time.Duration(n * 24 * float64(time.Hour))
}

func ptr[T any](v T) *T { return &v }

// finished builds a completed stage that started `start` days before
// testNow and took `took` days.
func finished(name string, start, took float64, deadline *time.Time) model.StageRecord {
	created := testNow.Add(-days(start))
	return model.StageRecord{
		Name:       name,
		CreatedAt:  created,
		FinishedAt: ptr(created.Add(days(took))),
		DeadlineAt: deadline,
	}
}

func pendingStage(name string) model.StageRecord {
	return model.StageRecord{Name: name, CreatedAt: testNow.Add(-days(1))}
}
