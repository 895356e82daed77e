// Package testutil provides shared test infrastructure for integration tests
// that require a PostgreSQL container.
//
// Usage in TestMain:
//
//	func TestMain(m *testing.M) {
//	    tc := testutil.MustStartPostgres()
//	    defer tc.Terminate()
//	    testDB, _ = tc.NewTestDB(context.Background(), testutil.TestLogger())
//	    os.Exit(m.Run())
//	}
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ashita-ai/quire/internal/storage"
	"github.com/ashita-ai/quire/migrations"
)

// TestContainer wraps a testcontainers container with a DSN for connecting.
type TestContainer struct {
	Container testcontainers.Container
	DSN       string
}

// MustStartPostgres starts a PostgreSQL container. Calls os.Exit(1) on
// failure (suitable for TestMain).
func MustStartPostgres() *TestContainer {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "quire",
			"POSTGRES_PASSWORD": "quire",
			"POSTGRES_DB":       "quire",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "testutil: failed to start container: %v\n", err)
		os.Exit(1)
	}

	host, err := container.Host(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "testutil: failed to get container host: %v\n", err)
		os.Exit(1)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		fmt.Fprintf(os.Stderr, "testutil: failed to get container port: %v\n", err)
		os.Exit(1)
	}

	dsn := fmt.Sprintf("postgres://quire:quire@%s:%s/quire?sslmode=disable", host, port.Port())
	return &TestContainer{Container: container, DSN: dsn}
}

// NewTestDB creates a storage.DB connected to this container and runs all migrations.
func (tc *TestContainer) NewTestDB(ctx context.Context, logger *slog.Logger) (*storage.DB, error) {
	db, err := storage.New(ctx, tc.DSN, logger)
	if err != nil {
		return nil, fmt.Errorf("testutil: create DB: %w", err)
	}
	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return nil, fmt.Errorf("testutil: run migrations: %w", err)
	}
	return db, nil
}

// Terminate stops and removes the container.
func (tc *TestContainer) Terminate() {
	_ = tc.Container.Terminate(context.Background())
}

// TestLogger returns a logger configured for test output (warns only).
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// Seeder inserts read-model rows for integration tests. Production code
// never writes these tables.
type Seeder struct {
	DB *storage.DB
}

// Organization inserts an organization and returns its ID.
func (s Seeder) Organization(ctx context.Context, name string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.DB.Pool().Exec(ctx,
		`INSERT INTO organization (id, name, slug) VALUES ($1, $2, $3)`,
		id, name, name+"-"+id.String()[:8])
	return id, err
}

// Manuscript inserts a manuscript created at createdAt.
func (s Seeder) Manuscript(ctx context.Context, orgID uuid.UUID, name, status string, createdAt time.Time, deadline *time.Time) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.DB.Pool().Exec(ctx,
		`INSERT INTO manuscript (id, organization_id, name, status, deadline_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, orgID, name, status, deadline, createdAt)
	return id, err
}

// Stage inserts a publishing stage.
func (s Seeder) Stage(ctx context.Context, manuscriptID uuid.UUID, name string, createdAt time.Time, finishedAt, deadline *time.Time) error {
	_, err := s.DB.Pool().Exec(ctx,
		`INSERT INTO publishing_stage (id, manuscript_id, name, created_at, finished_at, deadline_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), manuscriptID, name, createdAt, finishedAt, deadline)
	return err
}

// Comment inserts a comment created at createdAt.
func (s Seeder) Comment(ctx context.Context, manuscriptID uuid.UUID, createdAt time.Time) error {
	_, err := s.DB.Pool().Exec(ctx,
		`INSERT INTO comment (id, manuscript_id, text, created_at) VALUES ($1, $2, 'note', $3)`,
		uuid.New(), manuscriptID, createdAt)
	return err
}

// Status appends a status-history row.
func (s Seeder) Status(ctx context.Context, manuscriptID uuid.UUID, status string, at time.Time) error {
	_, err := s.DB.Pool().Exec(ctx,
		`INSERT INTO manuscript_status_history (manuscript_id, status, changed_at) VALUES ($1, $2, $3)`,
		manuscriptID, status, at)
	return err
}
