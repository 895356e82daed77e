package storage

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Snapshot reads retry a few times when Postgres aborts them. On a hot
// standby a long REPEATABLE READ transaction can be cancelled by WAL replay
// with a serialization failure; a fresh snapshot usually succeeds.
const (
	snapshotRetries   = 3
	snapshotBaseDelay = 25 * time.Millisecond
)

// isTransient reports whether err is a Postgres abort that a rerun of the
// same read can clear.
func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001": // serialization_failure, incl. conflict with recovery
		return true
	case "40P01": // deadlock_detected
		return true
	default:
		return false
	}
}

// withRetry runs fn, rerunning it up to retries times on transient aborts.
// Waits grow from baseDelay with full jitter and stop early on ctx.
func withRetry(ctx context.Context, retries int, baseDelay time.Duration, fn func() error) error {
	var err error
	for attempt := range retries + 1 {
		err = fn()
		if err == nil || !isTransient(err) || attempt == retries {
			return err
		}
		wait := baseDelay + time.Duration(rand.Int64N(int64(baseDelay))) //nolint:gosec // jitter only
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		baseDelay *= 2
	}
	return err
}
