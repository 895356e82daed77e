package server

import (
	"net/http"
	"strconv"

	"github.com/ashita-ai/quire/internal/model"
	"github.com/ashita-ai/quire/internal/service/analytics"
)

// HandleTransitions handles GET /v1/organizations/{org_id}/analytics/transitions.
func (h *Handlers) HandleTransitions(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.resolveOrg(w, r)
	if !ok {
		return
	}
	result, err := h.analytics.TransitionMatrix(r.Context(), orgID)
	if err != nil {
		h.writeAnalyticsError(w, r, "transition matrix", err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// HandleAnomalies handles GET /v1/organizations/{org_id}/analytics/anomalies.
// Query: days_back (int, 1..365, default 30), z_threshold (float, 1..5,
// default 2.0).
func (h *Handlers) HandleAnomalies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	daysBack := analytics.DefaultDaysBack
	if v := q.Get("days_back"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "days_back must be an integer")
			return
		}
		daysBack = n
	}
	if err := analytics.CheckDaysBack(daysBack); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	zThreshold := analytics.DefaultZThreshold
	if v := q.Get("z_threshold"); v != "" {
		z, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "z_threshold must be a number")
			return
		}
		zThreshold = z
	}
	if err := analytics.CheckZThreshold(zThreshold); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	orgID, ok := h.resolveOrg(w, r)
	if !ok {
		return
	}
	result, err := h.analytics.ActivityAnomalies(r.Context(), orgID, daysBack, zThreshold)
	if err != nil {
		h.writeAnalyticsError(w, r, "activity anomalies", err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// HandleDeadlines handles GET /v1/organizations/{org_id}/analytics/deadlines.
func (h *Handlers) HandleDeadlines(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.resolveOrg(w, r)
	if !ok {
		return
	}
	result, err := h.analytics.DeadlinePredictions(r.Context(), orgID)
	if err != nil {
		h.writeAnalyticsError(w, r, "deadline predictions", err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// HandleSimulations handles GET /v1/organizations/{org_id}/analytics/simulations.
// Query: simulations (int, 100..100000). Omitted means the server default.
func (h *Handlers) HandleSimulations(w http.ResponseWriter, r *http.Request) {
	simulations := 0
	if v := r.URL.Query().Get("simulations"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "simulations must be an integer")
			return
		}
		if err := analytics.CheckSimulations(n); err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
			return
		}
		simulations = n
	}

	orgID, ok := h.resolveOrg(w, r)
	if !ok {
		return
	}
	result, err := h.analytics.MonteCarlo(r.Context(), orgID, simulations)
	if err != nil {
		h.writeAnalyticsError(w, r, "monte carlo", err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// HandleReport handles GET /v1/organizations/{org_id}/analytics/report.
func (h *Handlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.resolveOrg(w, r)
	if !ok {
		return
	}
	result, err := h.analytics.Report(r.Context(), orgID)
	if err != nil {
		h.writeAnalyticsError(w, r, "report", err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}
