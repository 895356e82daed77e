package storage

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/quire/internal/model"
)

// minStageDays floors finished-stage durations; zero-length stages are
// data-entry artifacts.
const minStageDays = 0.1

// ManuscriptStatusHistory returns every recorded status change for the
// org's manuscripts ordered by time. When the history log holds nothing for
// the org, each manuscript's current status at its creation time stands in.
func (db *DB) ManuscriptStatusHistory(ctx context.Context, orgID uuid.UUID) ([]model.StatusEvent, error) {
	events, err := db.queryStatusEvents(ctx,
		`SELECT h.manuscript_id, h.status, h.changed_at
		 FROM manuscript_status_history h
		 JOIN manuscript m ON m.id = h.manuscript_id
		 WHERE m.organization_id = $1
		 ORDER BY h.changed_at, h.id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("storage: status history: %w", err)
	}
	if len(events) > 0 {
		return events, nil
	}

	events, err = db.queryStatusEvents(ctx,
		`SELECT id, status, created_at
		 FROM manuscript
		 WHERE organization_id = $1
		 ORDER BY created_at, id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("storage: current statuses: %w", err)
	}
	return events, nil
}

func (db *DB) queryStatusEvents(ctx context.Context, query string, orgID uuid.UUID) ([]model.StatusEvent, error) {
	rows, err := db.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []model.StatusEvent{}
	for rows.Next() {
		var e model.StatusEvent
		if err := rows.Scan(&e.ManuscriptID, &e.Status, &e.ChangedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ActivityCounts returns, per manuscript, the comments created in the
// trailing daysBack window and how many days of that window the manuscript
// existed for (at least 1).
func (db *DB) ActivityCounts(ctx context.Context, orgID uuid.UUID, daysBack int) ([]model.ActivityObservation, error) {
	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -daysBack)

	rows, err := db.pool.Query(ctx,
		`SELECT m.id, m.name, m.created_at,
		        COUNT(c.id) FILTER (WHERE c.created_at >= $2)::int
		 FROM manuscript m
		 LEFT JOIN comment c ON c.manuscript_id = m.id
		 WHERE m.organization_id = $1
		 GROUP BY m.id, m.name, m.created_at
		 ORDER BY m.created_at, m.id`, orgID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("storage: activity counts: %w", err)
	}
	defer rows.Close()

	out := []model.ActivityObservation{}
	for rows.Next() {
		var (
			o         model.ActivityObservation
			createdAt time.Time
		)
		if err := rows.Scan(&o.ManuscriptID, &o.ManuscriptName, &createdAt, &o.ActivityCount); err != nil {
			return nil, fmt.Errorf("storage: scan activity count: %w", err)
		}
		o.DaysObserved = daysObserved(createdAt, now, daysBack)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: activity counts rows: %w", err)
	}
	return out, nil
}

// daysObserved is the manuscript's age in whole days (rounded up, at least
// 1) capped at the window length.
func daysObserved(createdAt, now time.Time, daysBack int) int {
	age := int(math.Ceil(now.Sub(createdAt).Hours() / 24))
	return min(max(1, age), daysBack)
}

// ManuscriptsWithStages returns the org's manuscripts with their stages in
// creation order and their comment counts. All three reads share one
// REPEATABLE READ snapshot so stages and counts describe the same moment.
func (db *DB) ManuscriptsWithStages(ctx context.Context, orgID uuid.UUID) ([]model.ManuscriptProjection, error) {
	var out []model.ManuscriptProjection
	err := withRetry(ctx, snapshotRetries, snapshotBaseDelay, func() error {
		return pgx.BeginTxFunc(ctx, db.pool, pgx.TxOptions{
			IsoLevel:   pgx.RepeatableRead,
			AccessMode: pgx.ReadOnly,
		}, func(tx pgx.Tx) error {
			var err error
			out, err = readProjections(ctx, tx, orgID)
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("storage: manuscripts with stages: %w", err)
	}
	return out, nil
}

func readProjections(ctx context.Context, tx pgx.Tx, orgID uuid.UUID) ([]model.ManuscriptProjection, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, name, deadline_at, status
		 FROM manuscript
		 WHERE organization_id = $1
		 ORDER BY created_at, id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("manuscripts: %w", err)
	}
	projections := []model.ManuscriptProjection{}
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var p model.ManuscriptProjection
		if err := rows.Scan(&p.ManuscriptID, &p.ManuscriptName, &p.Deadline, &p.Status); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan manuscript: %w", err)
		}
		p.Stages = []model.StageRecord{}
		index[p.ManuscriptID] = len(projections)
		projections = append(projections, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("manuscripts rows: %w", err)
	}
	if len(projections) == 0 {
		return projections, nil
	}

	rows, err = tx.Query(ctx,
		`SELECT s.manuscript_id, s.name, s.created_at, s.finished_at, s.deadline_at
		 FROM publishing_stage s
		 JOIN manuscript m ON m.id = s.manuscript_id
		 WHERE m.organization_id = $1
		 ORDER BY s.manuscript_id, s.created_at, s.id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("stages: %w", err)
	}
	for rows.Next() {
		var (
			id uuid.UUID
			st model.StageRecord
		)
		if err := rows.Scan(&id, &st.Name, &st.CreatedAt, &st.FinishedAt, &st.DeadlineAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		if i, ok := index[id]; ok {
			projections[i].Stages = append(projections[i].Stages, st)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stages rows: %w", err)
	}

	rows, err = tx.Query(ctx,
		`SELECT c.manuscript_id, COUNT(*)::int
		 FROM comment c
		 JOIN manuscript m ON m.id = c.manuscript_id
		 WHERE m.organization_id = $1
		 GROUP BY c.manuscript_id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("comment counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id    uuid.UUID
			count int
		)
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("scan comment count: %w", err)
		}
		if i, ok := index[id]; ok {
			projections[i].CommentCount = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("comment counts rows: %w", err)
	}
	return projections, nil
}

// HistoricalStageDurations returns the duration in days of every finished
// stage across the org's manuscripts, floored at 0.1 day.
func (db *DB) HistoricalStageDurations(ctx context.Context, orgID uuid.UUID) ([]model.StageDuration, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT s.name, EXTRACT(EPOCH FROM (s.finished_at - s.created_at))::float8 / 86400
		 FROM publishing_stage s
		 JOIN manuscript m ON m.id = s.manuscript_id
		 WHERE m.organization_id = $1 AND s.finished_at IS NOT NULL
		 ORDER BY s.finished_at, s.id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("storage: historical stage durations: %w", err)
	}
	defer rows.Close()

	out := []model.StageDuration{}
	for rows.Next() {
		var d model.StageDuration
		if err := rows.Scan(&d.StageName, &d.DurationDays); err != nil {
			return nil, fmt.Errorf("storage: scan stage duration: %w", err)
		}
		d.DurationDays = max(minStageDays, d.DurationDays)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: historical stage durations rows: %w", err)
	}
	return out, nil
}
