// Package quire is the public API for embedding the quire analytics server.
//
// Consumers import this package to construct and extend the server without
// forking it:
//
//	app, err := quire.New(
//	    quire.WithVersion(version),
//	    quire.WithLogger(logger),
//	    quire.WithExtraRoutes(myRoutes),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// quire (root) imports internal/*, but internal/* never imports quire (root).
package quire

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/ashita-ai/quire/api"
	"github.com/ashita-ai/quire/internal/auth"
	"github.com/ashita-ai/quire/internal/authz"
	"github.com/ashita-ai/quire/internal/config"
	"github.com/ashita-ai/quire/internal/mcp"
	"github.com/ashita-ai/quire/internal/model"
	"github.com/ashita-ai/quire/internal/ratelimit"
	"github.com/ashita-ai/quire/internal/server"
	"github.com/ashita-ai/quire/internal/service/analytics"
	"github.com/ashita-ai/quire/internal/storage"
	"github.com/ashita-ai/quire/internal/telemetry"
	"github.com/ashita-ai/quire/migrations"
)

const (
	// shutdownTimeout bounds the HTTP drain when Run returns on cancellation.
	shutdownTimeout = 30 * time.Second

	orgCacheTTL = 30 * time.Second
)

// App is a fully wired quire server.
type App struct {
	db           *storage.DB
	srv          *server.Server
	limiter      ratelimit.Limiter
	orgCache     *authz.OrgCache
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
}

// New loads configuration, connects to the database, applies migrations and
// wires the analytics engine behind the HTTP and MCP surfaces. It does not
// accept connections. Call Run.
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.randomSeed != nil {
		cfg.RandomSeed = o.randomSeed
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("quire starting", "version", version, "port", cfg.Port)

	ctx := context.Background()

	otelShutdown, err := telemetry.Init(ctx, telemetry.Options{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.ServiceName,
		Version:     version,
		Insecure:    cfg.OTELInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	db, err := storage.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		_ = otelShutdown(ctx)
		return nil, fmt.Errorf("storage: %w", err)
	}
	db.RegisterPoolMetrics()

	if err := runMigrations(ctx, db, cfg, o.extraMigrations, logger); err != nil {
		db.Close()
		_ = otelShutdown(ctx)
		return nil, err
	}

	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTExpiration)
	if err != nil {
		db.Close()
		_ = otelShutdown(ctx)
		return nil, fmt.Errorf("auth: %w", err)
	}

	svc := analytics.New(db, analytics.Config{
		Workers:            cfg.AnalyticsWorkers,
		Timeout:            cfg.AnalyticsTimeout,
		DefaultSimulations: cfg.DefaultSimulations,
		Seed:               cfg.RandomSeed,
	}, logger)
	if cfg.RandomSeed != nil {
		logger.Warn("analytics random source is pinned", "seed", *cfg.RandomSeed)
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		logger.Info("rate limiting enabled", "rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting disabled")
	}

	// Both surfaces resolve the organization on every call; share one cache.
	orgCache := authz.NewOrgCache(db, orgCacheTTL)
	orgs := cachedOrgs{DB: db, cache: orgCache}

	mcpSrv := mcp.New(svc, orgs, logger, version)

	var middlewares []func(http.Handler) http.Handler
	for _, mw := range o.middlewares {
		middlewares = append(middlewares, mw)
	}

	srv := server.New(server.ServerConfig{
		DB:           orgs,
		Analytics:    svc,
		JWTMgr:       jwtMgr,
		Logger:       logger,
		Limiter:      limiter,
		MCPServer:    mcpSrv.MCPServer(),
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Version:      version,
		OpenAPISpec:  api.OpenAPISpec,
		ExtraRoutes:  extraRoutes(o.routeRegistrars),
		Middleware:   middlewares,
	})

	return &App{
		db:           db,
		srv:          srv,
		limiter:      limiter,
		orgCache:     orgCache,
		otelShutdown: otelShutdown,
		logger:       logger,
	}, nil
}

func runMigrations(ctx context.Context, db *storage.DB, cfg config.Config, extra []fs.FS, logger *slog.Logger) error {
	if cfg.SkipEmbeddedMigrations {
		logger.Info("embedded migrations skipped by config")
	} else if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	for i, dir := range extra {
		if err := db.RunMigrations(ctx, dir); err != nil {
			return fmt.Errorf("extra migrations[%d]: %w", i, err)
		}
	}
	return nil
}

// extraRoutes adapts public registrars to the server's mux hook.
func extraRoutes(registrars []RouteRegistrar) func(*http.ServeMux) {
	if len(registrars) == 0 {
		return nil
	}
	return func(mux *http.ServeMux) {
		for _, register := range registrars {
			register(mux, roleHelper{})
		}
	}
}

// cachedOrgs serves organization lookups from the cache and everything else
// from the database.
type cachedOrgs struct {
	*storage.DB
	cache *authz.OrgCache
}

func (c cachedOrgs) GetOrganization(ctx context.Context, id uuid.UUID) (model.Organization, error) {
	return c.cache.GetOrganization(ctx, id)
}

type roleHelper struct{}

func (roleHelper) RequireRole(role Role) func(http.Handler) http.Handler {
	return server.RequireRole(model.Role(role))
}

// Handler returns the fully wrapped HTTP handler, for tests and for callers
// that manage their own listener.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}

// Run serves HTTP until ctx is cancelled or the listener fails. On return,
// Shutdown has already been called.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		_ = a.Shutdown(context.Background())
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Shutdown drains in-flight requests, then releases background resources
// and the database pool.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("quire shutting down")

	var errs []error
	if err := a.srv.Shutdown(ctx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
		errs = append(errs, err)
	}
	a.orgCache.Close()
	if err := a.limiter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("rate limiter: %w", err))
	}
	if err := a.otelShutdown(context.Background()); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}
	a.db.Close()

	a.logger.Info("quire stopped")
	return errors.Join(errs...)
}
