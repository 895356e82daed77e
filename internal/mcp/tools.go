package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/quire/internal/authz"
	"github.com/ashita-ai/quire/internal/ctxutil"
	"github.com/ashita-ai/quire/internal/model"
	"github.com/ashita-ai/quire/internal/service/analytics"
	"github.com/ashita-ai/quire/internal/storage"
)

func orgIDOption() mcplib.ToolOption {
	return mcplib.WithString("organization_id",
		mcplib.Description("Organization UUID. Defaults to your own organization; only admins may name another."),
	)
}

func readOnlyAnnotations() []mcplib.ToolOption {
	return []mcplib.ToolOption{
		mcplib.WithReadOnlyHintAnnotation(true),
		mcplib.WithIdempotentHintAnnotation(true),
		mcplib.WithOpenWorldHintAnnotation(false),
	}
}

func newTool(name, description string, opts ...mcplib.ToolOption) mcplib.Tool {
	all := append([]mcplib.ToolOption{mcplib.WithDescription(description)}, readOnlyAnnotations()...)
	all = append(all, orgIDOption())
	return mcplib.NewTool(name, append(all, opts...)...)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(newTool("quire_transitions",
		`Fit a Markov chain to the organization's manuscript status history.

WHAT YOU GET BACK:
- states: statuses in first-seen order
- matrix: row-stochastic transition probabilities between states
- steady_state: long-run share of time spent in each status
- expected_hitting_times: mean steps from each status to "published"`,
	), s.handleTransitions)

	s.mcpServer.AddTool(newTool("quire_anomalies",
		`Flag manuscripts whose recent comment activity is unusually high or low.

Each manuscript's rate is comments per day over the trailing window. A
manuscript is flagged when the absolute z-score of its rate exceeds
z_threshold.`,
		mcplib.WithNumber("days_back",
			mcplib.Description("Trailing window in days (integer)"),
			mcplib.Min(analytics.MinDaysBack),
			mcplib.Max(analytics.MaxDaysBack),
			mcplib.DefaultNumber(analytics.DefaultDaysBack),
		),
		mcplib.WithNumber("z_threshold",
			mcplib.Description("Absolute z-score above which a rate is anomalous"),
			mcplib.Min(analytics.MinZThreshold),
			mcplib.Max(analytics.MaxZThreshold),
			mcplib.DefaultNumber(analytics.DefaultZThreshold),
		),
	), s.handleAnomalies)

	s.mcpServer.AddTool(newTool("quire_deadlines",
		`Estimate, for every manuscript, the probability of meeting its deadline.

Probabilities come from a Beta posterior over the organization's history of
on-time stages. Each prediction carries a risk level (low, medium, high,
critical) and the factors behind it.`,
	), s.handleDeadlines)

	s.mcpServer.AddTool(newTool("quire_simulations",
		`Run a Monte Carlo simulation of remaining work for every manuscript.

Returns a percentile ladder of completion days and the probability of
finishing by each weekly checkpoint. Requires the analyst role.`,
		mcplib.WithNumber("simulations",
			mcplib.Description("Trials per manuscript (integer). Omit to use the server default."),
			mcplib.Min(analytics.MinSimulations),
			mcplib.Max(analytics.MaxSimulations),
		),
	), s.handleSimulations)

	s.mcpServer.AddTool(newTool("quire_report",
		`Run every analyzer with default parameters and return one combined
report. Requires the analyst role.`,
	), s.handleReport)
}

func (s *Server) handleTransitions(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	orgID, errRes := s.resolveOrg(ctx, request, model.RoleReader)
	if errRes != nil {
		return errRes, nil
	}
	result, err := s.analytics.TransitionMatrix(ctx, orgID)
	if err != nil {
		return s.analyticsError("quire_transitions", err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleAnomalies(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	args := request.GetArguments()

	daysBack, present, err := intArg(args, "days_back")
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if !present {
		daysBack = analytics.DefaultDaysBack
	}
	if err := analytics.CheckDaysBack(daysBack); err != nil {
		return errorResult(err.Error()), nil
	}

	zThreshold, present, err := floatArg(args, "z_threshold")
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if !present {
		zThreshold = analytics.DefaultZThreshold
	}
	if err := analytics.CheckZThreshold(zThreshold); err != nil {
		return errorResult(err.Error()), nil
	}

	orgID, errRes := s.resolveOrg(ctx, request, model.RoleReader)
	if errRes != nil {
		return errRes, nil
	}
	result, err := s.analytics.ActivityAnomalies(ctx, orgID, daysBack, zThreshold)
	if err != nil {
		return s.analyticsError("quire_anomalies", err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleDeadlines(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	orgID, errRes := s.resolveOrg(ctx, request, model.RoleReader)
	if errRes != nil {
		return errRes, nil
	}
	result, err := s.analytics.DeadlinePredictions(ctx, orgID)
	if err != nil {
		return s.analyticsError("quire_deadlines", err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleSimulations(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	simulations, present, err := intArg(request.GetArguments(), "simulations")
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if present {
		if err := analytics.CheckSimulations(simulations); err != nil {
			return errorResult(err.Error()), nil
		}
	}

	orgID, errRes := s.resolveOrg(ctx, request, model.RoleAnalyst)
	if errRes != nil {
		return errRes, nil
	}
	result, err := s.analytics.MonteCarlo(ctx, orgID, simulations)
	if err != nil {
		return s.analyticsError("quire_simulations", err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleReport(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	orgID, errRes := s.resolveOrg(ctx, request, model.RoleAnalyst)
	if errRes != nil {
		return errRes, nil
	}
	result, err := s.analytics.Report(ctx, orgID)
	if err != nil {
		return s.analyticsError("quire_report", err), nil
	}
	return jsonResult(result)
}

// resolveOrg picks the target organization for a tool call and enforces the
// caller's role and tenancy. A non-nil result is the error to return.
func (s *Server) resolveOrg(ctx context.Context, request mcplib.CallToolRequest, minRole model.Role) (uuid.UUID, *mcplib.CallToolResult) {
	claims := ctxutil.ClaimsFromContext(ctx)
	if claims == nil {
		return uuid.Nil, errorResult("authentication required")
	}
	if !model.RoleAtLeast(claims.Role, minRole) {
		return uuid.Nil, errorResult(fmt.Sprintf("this tool requires the %s role", minRole))
	}

	orgID := claims.OrgID
	if raw := request.GetString("organization_id", ""); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, errorResult("organization_id must be a UUID")
		}
		orgID = id
	}

	err := authz.CheckOrgAccess(ctx, claims, orgID, s.orgs)
	switch {
	case err == nil:
		return orgID, nil
	case errors.Is(err, authz.ErrForbidden):
		return uuid.Nil, errorResult("no access to this organization")
	case errors.Is(err, storage.ErrNotFound):
		return uuid.Nil, errorResult("organization not found")
	default:
		s.logger.Error("mcp: get organization failed", "error", err, "org_id", orgID)
		return uuid.Nil, errorResult("internal error")
	}
}

func (s *Server) analyticsError(tool string, err error) *mcplib.CallToolResult {
	switch {
	case errors.Is(err, analytics.ErrInvalidParams):
		return errorResult(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn("mcp: analytics timed out", "tool", tool)
		return errorResult("analytics computation timed out")
	default:
		s.logger.Error("mcp: tool failed", "tool", tool, "error", err)
		return errorResult("internal error")
	}
}

// intArg reads an optional integer argument. JSON numbers arrive as float64
// and must be whole; numeric strings are accepted too.
func intArg(args map[string]any, key string) (n int, present bool, err error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch x := v.(type) {
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.Abs(x) > math.MaxInt32 {
			return 0, true, fmt.Errorf("%s must be an integer", key)
		}
		return int(x), true, nil
	case int:
		return x, true, nil
	case int64:
		return int(x), true, nil
	case json.Number:
		i, err := strconv.Atoi(x.String())
		if err != nil {
			return 0, true, fmt.Errorf("%s must be an integer", key)
		}
		return i, true, nil
	case string:
		i, err := strconv.Atoi(x)
		if err != nil {
			return 0, true, fmt.Errorf("%s must be an integer", key)
		}
		return i, true, nil
	default:
		return 0, true, fmt.Errorf("%s must be an integer", key)
	}
}

// floatArg reads an optional numeric argument.
func floatArg(args map[string]any, key string) (f float64, present bool, err error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch x := v.(type) {
	case float64:
		return x, true, nil
	case int:
		return float64(x), true, nil
	case int64:
		return float64(x), true, nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, true, fmt.Errorf("%s must be a number", key)
		}
		return f, true, nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, true, fmt.Errorf("%s must be a number", key)
		}
		return f, true, nil
	default:
		return 0, true, fmt.Errorf("%s must be a number", key)
	}
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal result: %w", err)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
