package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/quire/internal/auth"
	"github.com/ashita-ai/quire/internal/ctxutil"
	"github.com/ashita-ai/quire/internal/model"
	"github.com/ashita-ai/quire/internal/storage"
)

type fakeAnalytics struct {
	mu       sync.Mutex
	err      error
	lastOrg  uuid.UUID
	daysBack int
	z        float64
	sims     int
}

func (f *fakeAnalytics) record(orgID uuid.UUID) {
	f.mu.Lock()
	f.lastOrg = orgID
	f.mu.Unlock()
}

func (f *fakeAnalytics) TransitionMatrix(_ context.Context, orgID uuid.UUID) (model.TransitionMatrix, error) {
	f.record(orgID)
	return model.TransitionMatrix{States: []string{"draft", "published"}, TargetState: "published"}, f.err
}

func (f *fakeAnalytics) ActivityAnomalies(_ context.Context, orgID uuid.UUID, daysBack int, z float64) (model.ActivityAnomalyReport, error) {
	f.record(orgID)
	f.daysBack, f.z = daysBack, z
	return model.ActivityAnomalyReport{DaysBack: daysBack, AnomalyThreshold: z}, f.err
}

func (f *fakeAnalytics) DeadlinePredictions(_ context.Context, orgID uuid.UUID) ([]model.DeadlinePrediction, error) {
	f.record(orgID)
	return []model.DeadlinePrediction{{ManuscriptName: "Field Notes", RiskLevel: model.RiskHigh}}, f.err
}

func (f *fakeAnalytics) MonteCarlo(_ context.Context, orgID uuid.UUID, n int) (model.MonteCarloReport, error) {
	f.record(orgID)
	f.sims = n
	return model.MonteCarloReport{}, f.err
}

func (f *fakeAnalytics) Report(_ context.Context, orgID uuid.UUID) (model.AnalyticsReport, error) {
	f.record(orgID)
	return model.AnalyticsReport{OrganizationID: orgID}, f.err
}

type fakeOrgs struct {
	known map[uuid.UUID]bool
	err   error
}

func (f *fakeOrgs) GetOrganization(_ context.Context, id uuid.UUID) (model.Organization, error) {
	if f.err != nil {
		return model.Organization{}, f.err
	}
	if !f.known[id] {
		return model.Organization{}, storage.ErrNotFound
	}
	return model.Organization{ID: id}, nil
}

var (
	homeOrg  = uuid.New()
	otherOrg = uuid.New()
)

func newTestServer(t *testing.T) (*Server, *fakeAnalytics, *fakeOrgs) {
	t.Helper()
	svc := &fakeAnalytics{}
	orgs := &fakeOrgs{known: map[uuid.UUID]bool{homeOrg: true, otherOrg: true}}
	return New(svc, orgs, slog.New(slog.NewTextHandler(io.Discard, nil)), "test"), svc, orgs
}

func ctxWithRole(role model.Role) context.Context {
	return ctxutil.WithClaims(context.Background(), &auth.Claims{OrgID: homeOrg, Role: role})
}

func toolRequest(name string, args map[string]any) mcplib.CallToolRequest {
	return mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: name, Arguments: args},
	}
}

// parseToolText extracts the first TextContent text from a CallToolResult.
func parseToolText(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no TextContent found in tool result")
	return ""
}

func TestHandleTransitions(t *testing.T) {
	s, svc, _ := newTestServer(t)

	result, err := s.handleTransitions(ctxWithRole(model.RoleReader), toolRequest("quire_transitions", nil))
	require.NoError(t, err)
	require.False(t, result.IsError, parseToolText(t, result))

	var tm model.TransitionMatrix
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &tm))
	assert.Equal(t, "published", tm.TargetState)
	assert.Equal(t, homeOrg, svc.lastOrg, "defaults to the caller's organization")
}

func TestHandleTools_NoClaims(t *testing.T) {
	s, _, _ := newTestServer(t)
	result, err := s.handleDeadlines(context.Background(), toolRequest("quire_deadlines", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, parseToolText(t, result), "authentication")
}

func TestHandleTools_OrganizationScoping(t *testing.T) {
	s, svc, _ := newTestServer(t)
	args := map[string]any{"organization_id": otherOrg.String()}

	result, err := s.handleDeadlines(ctxWithRole(model.RoleAnalyst), toolRequest("quire_deadlines", args))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, parseToolText(t, result), "no access")

	result, err = s.handleDeadlines(ctxWithRole(model.RoleAdmin), toolRequest("quire_deadlines", args))
	require.NoError(t, err)
	require.False(t, result.IsError, parseToolText(t, result))
	assert.Equal(t, otherOrg, svc.lastOrg)

	result, err = s.handleDeadlines(ctxWithRole(model.RoleAdmin), toolRequest("quire_deadlines",
		map[string]any{"organization_id": "acme"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, parseToolText(t, result), "UUID")

	result, err = s.handleDeadlines(ctxWithRole(model.RoleAdmin), toolRequest("quire_deadlines",
		map[string]any{"organization_id": uuid.NewString()}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, parseToolText(t, result), "not found")
}

func TestHandleAnomalies_Params(t *testing.T) {
	s, svc, _ := newTestServer(t)
	ctx := ctxWithRole(model.RoleReader)

	result, err := s.handleAnomalies(ctx, toolRequest("quire_anomalies", nil))
	require.NoError(t, err)
	require.False(t, result.IsError, parseToolText(t, result))
	assert.Equal(t, 30, svc.daysBack)
	assert.InDelta(t, 2.0, svc.z, 1e-12)

	result, err = s.handleAnomalies(ctx, toolRequest("quire_anomalies", map[string]any{
		"days_back":   float64(14),
		"z_threshold": 2.5,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, parseToolText(t, result))
	assert.Equal(t, 14, svc.daysBack)
	assert.InDelta(t, 2.5, svc.z, 1e-12)

	for name, args := range map[string]map[string]any{
		"days_back zero":       {"days_back": float64(0)},
		"days_back too large":  {"days_back": float64(366)},
		"days_back fractional": {"days_back": 7.5},
		"days_back text":       {"days_back": "week"},
		"z too small":          {"z_threshold": 0.99},
		"z too large":          {"z_threshold": 5.5},
		"z wrong type":         {"z_threshold": true},
	} {
		t.Run(name, func(t *testing.T) {
			result, err := s.handleAnomalies(ctx, toolRequest("quire_anomalies", args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
		})
	}
}

func TestHandleSimulations(t *testing.T) {
	s, svc, _ := newTestServer(t)

	result, err := s.handleSimulations(ctxWithRole(model.RoleReader), toolRequest("quire_simulations", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, parseToolText(t, result), "analyst")

	analyst := ctxWithRole(model.RoleAnalyst)
	result, err = s.handleSimulations(analyst, toolRequest("quire_simulations", nil))
	require.NoError(t, err)
	require.False(t, result.IsError, parseToolText(t, result))
	assert.Equal(t, 0, svc.sims, "omitted count selects the server default")

	result, err = s.handleSimulations(analyst, toolRequest("quire_simulations", map[string]any{"simulations": float64(2500)}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, 2500, svc.sims)

	for _, n := range []any{float64(99), float64(100_001), 250.5} {
		result, err = s.handleSimulations(analyst, toolRequest("quire_simulations", map[string]any{"simulations": n}))
		require.NoError(t, err)
		assert.True(t, result.IsError, "simulations=%v", n)
	}
}

func TestHandleReport(t *testing.T) {
	s, _, _ := newTestServer(t)

	result, err := s.handleReport(ctxWithRole(model.RoleAnalyst), toolRequest("quire_report", nil))
	require.NoError(t, err)
	require.False(t, result.IsError, parseToolText(t, result))

	var report model.AnalyticsReport
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &report))
	assert.Equal(t, homeOrg, report.OrganizationID)
}

func TestHandleTools_AnalyticsErrors(t *testing.T) {
	s, svc, orgs := newTestServer(t)
	ctx := ctxWithRole(model.RoleReader)

	svc.err = context.DeadlineExceeded
	result, err := s.handleTransitions(ctx, toolRequest("quire_transitions", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, parseToolText(t, result), "timed out")

	svc.err = errors.New("analytics: status history: connection reset")
	result, err = s.handleTransitions(ctx, toolRequest("quire_transitions", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "internal error", parseToolText(t, result))

	svc.err = nil
	orgs.err = errors.New("pool closed")
	result, err = s.handleTransitions(ctx, toolRequest("quire_transitions", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "internal error", parseToolText(t, result))
}

func TestIntArg(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]any
		want    int
		present bool
		wantErr bool
	}{
		{"absent", map[string]any{}, 0, false, false},
		{"null", map[string]any{"n": nil}, 0, false, false},
		{"whole float", map[string]any{"n": float64(42)}, 42, true, false},
		{"int", map[string]any{"n": 7}, 7, true, false},
		{"numeric string", map[string]any{"n": "12"}, 12, true, false},
		{"json number", map[string]any{"n": json.Number("300")}, 300, true, false},
		{"fraction", map[string]any{"n": 1.5}, 0, true, true},
		{"bool", map[string]any{"n": false}, 0, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, present, err := intArg(tt.args, "n")
			assert.Equal(t, tt.present, present)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
