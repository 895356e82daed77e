package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/quire/internal/service/analytics"
)

const policyURI = "quire://analytics/policy"

func (s *Server) registerResources() {
	// quire://analytics/policy: parameter bounds and modeling fallbacks.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			policyURI,
			"Analytics Policy",
			mcplib.WithResourceDescription("Accepted parameter ranges, defaults and the fallbacks used when history is thin"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handlePolicy,
	)
}

type paramRange struct {
	Default any `json:"default"`
	Min     any `json:"min"`
	Max     any `json:"max"`
}

type policyDoc struct {
	Parameters map[string]paramRange `json:"parameters"`
	Fallbacks  map[string]float64    `json:"fallbacks"`
	Target     string                `json:"target_status"`
}

func (s *Server) handlePolicy(_ context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	doc := policyDoc{
		Parameters: map[string]paramRange{
			"days_back":   {analytics.DefaultDaysBack, analytics.MinDaysBack, analytics.MaxDaysBack},
			"z_threshold": {analytics.DefaultZThreshold, analytics.MinZThreshold, analytics.MaxZThreshold},
			"simulations": {analytics.DefaultSimulations, analytics.MinSimulations, analytics.MaxSimulations},
		},
		Fallbacks: map[string]float64{
			"default_stage_duration_days": analytics.DefaultStageDurationDays,
			"default_stage_std_dev_days":  analytics.DefaultStageStdDevDays,
			"min_stage_std_dev_days":      analytics.MinStageStdDevDays,
			"min_stage_duration_days":     analytics.MinStageDurationDays,
			"prior_alpha":                 analytics.PriorAlpha,
			"prior_beta":                  analytics.PriorBeta,
		},
		Target: analytics.TargetStatus,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal policy: %w", err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      policyURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
