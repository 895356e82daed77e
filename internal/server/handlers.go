package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/quire/internal/authz"
	"github.com/ashita-ai/quire/internal/ctxutil"
	"github.com/ashita-ai/quire/internal/model"
	"github.com/ashita-ai/quire/internal/service/analytics"
	"github.com/ashita-ai/quire/internal/storage"
)

// Database is the slice of *storage.DB the handlers use.
type Database interface {
	Ping(ctx context.Context) error
	GetOrganization(ctx context.Context, id uuid.UUID) (model.Organization, error)
}

// Analytics is the analyzer surface the handlers expose. *analytics.Service
// implements it.
type Analytics interface {
	TransitionMatrix(ctx context.Context, orgID uuid.UUID) (model.TransitionMatrix, error)
	ActivityAnomalies(ctx context.Context, orgID uuid.UUID, daysBack int, zThreshold float64) (model.ActivityAnomalyReport, error)
	DeadlinePredictions(ctx context.Context, orgID uuid.UUID) ([]model.DeadlinePrediction, error)
	MonteCarlo(ctx context.Context, orgID uuid.UUID, simulations int) (model.MonteCarloReport, error)
	Report(ctx context.Context, orgID uuid.UUID) (model.AnalyticsReport, error)
}

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	db          Database
	analytics   Analytics
	logger      *slog.Logger
	startedAt   time.Time
	version     string
	openapiSpec []byte
}

// HandlersDeps holds all dependencies for constructing Handlers.
type HandlersDeps struct {
	DB          Database
	Analytics   Analytics
	Logger      *slog.Logger
	Version     string
	OpenAPISpec []byte
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		db:          d.DB,
		analytics:   d.Analytics,
		logger:      d.Logger,
		startedAt:   time.Now(),
		version:     d.Version,
		openapiSpec: d.OpenAPISpec,
	}
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	pgStatus := "connected"
	status := "healthy"
	httpStatus := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		pgStatus = "disconnected"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, r, httpStatus, model.HealthResponse{
		Status:   status,
		Version:  h.version,
		Postgres: pgStatus,
		Uptime:   int64(time.Since(h.startedAt).Seconds()),
	})
}

// HandleOpenAPISpec serves the embedded OpenAPI specification.
func (h *Handlers) HandleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if len(h.openapiSpec) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.openapiSpec)
}

// resolveOrg parses the {org_id} path value, checks the caller may read it
// and confirms it exists. On failure the error response has been written
// and ok is false.
func (h *Handlers) resolveOrg(w http.ResponseWriter, r *http.Request) (orgID uuid.UUID, ok bool) {
	orgID, err := uuid.Parse(r.PathValue("org_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "org_id must be a UUID")
		return uuid.Nil, false
	}

	err = authz.CheckOrgAccess(r.Context(), ctxutil.ClaimsFromContext(r.Context()), orgID, h.db)
	switch {
	case err == nil:
		return orgID, true
	case errors.Is(err, authz.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "authentication required")
	case errors.Is(err, authz.ErrForbidden):
		writeError(w, r, http.StatusForbidden, model.ErrCodeForbidden, "no access to this organization")
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "organization not found")
	default:
		h.writeInternalError(w, r, "get organization", err)
	}
	return uuid.Nil, false
}

// writeAnalyticsError maps an analyzer error onto the API error envelope.
func (h *Handlers) writeAnalyticsError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, analytics.ErrInvalidParams):
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("analytics timed out",
			"op", op,
			"request_id", ctxutil.RequestIDFromContext(r.Context()),
		)
		writeError(w, r, http.StatusGatewayTimeout, model.ErrCodeTimeout, "analytics computation timed out")
	default:
		h.writeInternalError(w, r, op, err)
	}
}

func (h *Handlers) writeInternalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, context.Canceled) {
		// Client went away; nobody is listening for the response.
		h.logger.Debug("request canceled", "op", op, "request_id", ctxutil.RequestIDFromContext(r.Context()))
	} else {
		h.logger.Error(op+" failed", "error", err, "request_id", ctxutil.RequestIDFromContext(r.Context()))
	}
	writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error")
}

// writeJSON writes a JSON response with the standard envelope.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Data: data,
		Meta: model.ResponseMeta{
			RequestID: ctxutil.RequestIDFromContext(r.Context()),
			Timestamp: time.Now().UTC(),
		},
	})
}

// writeError writes a JSON error response with the standard envelope.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIError{
		Error: model.ErrorDetail{Code: code, Message: message},
		Meta: model.ResponseMeta{
			RequestID: ctxutil.RequestIDFromContext(r.Context()),
			Timestamp: time.Now().UTC(),
		},
	})
}
