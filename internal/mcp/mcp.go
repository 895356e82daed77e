// Package mcp implements the Model Context Protocol server for quire.
//
// The MCP server exposes the analytics endpoints of the HTTP API as
// read-only tools, plus prompts and a policy resource that help an agent
// use them. It is mounted on the HTTP server at /mcp, behind the same
// bearer-token authentication.
package mcp

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/quire/internal/model"
)

// Analytics is the analyzer surface the tools expose. *analytics.Service
// implements it.
type Analytics interface {
	TransitionMatrix(ctx context.Context, orgID uuid.UUID) (model.TransitionMatrix, error)
	ActivityAnomalies(ctx context.Context, orgID uuid.UUID, daysBack int, zThreshold float64) (model.ActivityAnomalyReport, error)
	DeadlinePredictions(ctx context.Context, orgID uuid.UUID) ([]model.DeadlinePrediction, error)
	MonteCarlo(ctx context.Context, orgID uuid.UUID, simulations int) (model.MonteCarloReport, error)
	Report(ctx context.Context, orgID uuid.UUID) (model.AnalyticsReport, error)
}

// Organizations looks up tenants. *storage.DB implements it.
type Organizations interface {
	GetOrganization(ctx context.Context, id uuid.UUID) (model.Organization, error)
}

// Server wraps the MCP server with quire's analytics service.
type Server struct {
	mcpServer *mcpserver.MCPServer
	analytics Analytics
	orgs      Organizations
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all tools, prompts and
// resources.
func New(svc Analytics, orgs Organizations, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		analytics: svc,
		orgs:      orgs,
		logger:    logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"quire",
		version,
		mcpserver.WithResourceCapabilities(false, false),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithInstructions(serverInstructions),
	)

	s.registerTools()
	s.registerPrompts()
	s.registerResources()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

const serverInstructions = `quire forecasts manuscript workflows for a publishing organization.

All tools are read-only and scoped to your organization. Start with
quire_report for an overview, or call the individual analyzers:
quire_transitions, quire_anomalies, quire_deadlines and quire_simulations.
Admins may pass organization_id to inspect another organization.`
