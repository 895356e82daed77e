// Package server implements the quire HTTP API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/quire/internal/auth"
	"github.com/ashita-ai/quire/internal/ctxutil"
	"github.com/ashita-ai/quire/internal/model"
	"github.com/ashita-ai/quire/internal/ratelimit"
)

// Server is the quire HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Optional fields (nil-safe): Limiter, MCPServer, OpenAPISpec, ExtraRoutes,
// Middleware.
type ServerConfig struct {
	// Required dependencies.
	DB        Database
	Analytics Analytics
	JWTMgr    *auth.JWTManager
	Logger    *slog.Logger

	// Optional dependencies (nil = disabled).
	Limiter   ratelimit.Limiter
	MCPServer *mcpserver.MCPServer

	// HTTP server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Version      string

	OpenAPISpec []byte

	// ExtraRoutes is called with the mux after the built-in routes are
	// registered. Routes added here sit behind the same middleware chain.
	ExtraRoutes func(mux *http.ServeMux)

	// Middleware wraps the whole handler, outside request ID assignment.
	// The first element is the outermost.
	Middleware []func(http.Handler) http.Handler
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := NewHandlers(HandlersDeps{
		DB:          cfg.DB,
		Analytics:   cfg.Analytics,
		Logger:      cfg.Logger,
		Version:     cfg.Version,
		OpenAPISpec: cfg.OpenAPISpec,
	})

	reqIDFunc := func(r *http.Request) string {
		return ctxutil.RequestIDFromContext(r.Context())
	}
	analyticsRL := ratelimit.Middleware(cfg.Limiter, subjectKeyFunc, reqIDFunc, cfg.Logger)

	readRole := requireRole(model.RoleReader)
	analystRole := requireRole(model.RoleAnalyst)

	mux := http.NewServeMux()

	// Cheap analyzers (reader+).
	mux.Handle("GET /v1/organizations/{org_id}/analytics/transitions",
		analyticsRL(readRole(http.HandlerFunc(h.HandleTransitions))))
	mux.Handle("GET /v1/organizations/{org_id}/analytics/anomalies",
		analyticsRL(readRole(http.HandlerFunc(h.HandleAnomalies))))
	mux.Handle("GET /v1/organizations/{org_id}/analytics/deadlines",
		analyticsRL(readRole(http.HandlerFunc(h.HandleDeadlines))))

	// Simulation-backed endpoints (analyst+).
	mux.Handle("GET /v1/organizations/{org_id}/analytics/simulations",
		analyticsRL(analystRole(http.HandlerFunc(h.HandleSimulations))))
	mux.Handle("GET /v1/organizations/{org_id}/analytics/report",
		analyticsRL(analystRole(http.HandlerFunc(h.HandleReport))))

	// MCP StreamableHTTP transport (auth required, reader+; tools enforce
	// their own role checks).
	if cfg.MCPServer != nil {
		mcpHTTP := mcpserver.NewStreamableHTTPServer(cfg.MCPServer)
		mux.Handle("/mcp", readRole(mcpHTTP))
	}

	mux.HandleFunc("GET /openapi.yaml", h.HandleOpenAPISpec)
	mux.HandleFunc("GET /health", h.HandleHealth)

	if cfg.ExtraRoutes != nil {
		cfg.ExtraRoutes(mux)
	}

	// Middleware chain (outermost executes first):
	// caller middleware → request ID → security headers → tracing → logging → auth → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = authMiddleware(cfg.JWTMgr, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		handler = cfg.Middleware[i](handler)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler: handler,
		logger:  cfg.Logger,
	}
}

// subjectKeyFunc keys rate limiting on the token subject. Admins are exempt.
func subjectKeyFunc(r *http.Request) string {
	claims := ctxutil.ClaimsFromContext(r.Context())
	if claims == nil || claims.Role == model.RoleAdmin {
		return ""
	}
	return claims.Subject
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
