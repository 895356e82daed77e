package mcp

import (
	"context"
	"fmt"
	"strconv"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/quire/internal/service/analytics"
)

func (s *Server) registerPrompts() {
	// deadline-review walks an agent through triaging at-risk manuscripts.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("deadline-review",
			mcplib.WithPromptDescription("Triage manuscripts that are at risk of missing their deadlines"),
			mcplib.WithArgument("min_risk",
				mcplib.ArgumentDescription("Lowest risk level to include: medium, high or critical (default high)"),
			),
		),
		s.handleDeadlineReviewPrompt,
	)

	// workflow-health summarizes how manuscripts move and where they stall.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("workflow-health",
			mcplib.WithPromptDescription("Summarize workflow flow, stalls and unusual activity"),
			mcplib.WithArgument("days_back",
				mcplib.ArgumentDescription("Activity window in days (default 30)"),
			),
		),
		s.handleWorkflowHealthPrompt,
	)
}

func (s *Server) handleDeadlineReviewPrompt(_ context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	minRisk := request.Params.Arguments["min_risk"]
	if minRisk == "" {
		minRisk = "high"
	}
	switch minRisk {
	case "medium", "high", "critical":
	default:
		return nil, fmt.Errorf("min_risk must be medium, high or critical")
	}

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Review manuscripts at %s risk or worse", minRisk),
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Review manuscripts that may miss their deadlines.

1. CALL quire_deadlines. Keep predictions whose risk_level is %s or worse
   (order: low < medium < high < critical).

2. For each kept manuscript, report deadline, probability_of_meeting_deadline,
   expected_remaining_days and how many of its stages are complete
   (factors.stages_completed of factors.total_stages).

3. If you have the analyst role, CALL quire_simulations and compare each
   kept manuscript's percentiles.p50 and percentiles.p90 with its deadline.

4. Finish with a short ranked list: most urgent first, one line each,
   with the single most useful next action.`, minRisk),
				},
			},
		},
	}, nil
}

func (s *Server) handleWorkflowHealthPrompt(_ context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	daysBack := analytics.DefaultDaysBack
	if raw := request.Params.Arguments["days_back"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("days_back must be an integer")
		}
		if err := analytics.CheckDaysBack(n); err != nil {
			return nil, err
		}
		daysBack = n
	}

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Workflow health over the last %d days", daysBack),
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Assess the health of this organization's manuscript workflow.

1. CALL quire_transitions. Describe the main path through the states and any
   status with a high self-transition probability (manuscripts linger there).
   Use expected_hitting_times to say how many steps each status is from
   publication.

2. CALL quire_anomalies with days_back=%d. List manuscripts with
   is_anomaly=true, giving observed_rate against expected_rate, and say
   whether each is unusually busy or quiet.

3. Summarize in at most five bullets.`, daysBack),
				},
			},
		},
	}, nil
}
