// Package mcpserver exposes the warehouse reports over the Model Context
// Protocol, so agent clients can query activity scores without shelling out
// to the CLI.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/clifelab/devpulse/internal/lake"
	"github.com/clifelab/devpulse/schema"
)

// NewServer initializes and configures the MCP server without starting it.
// Exposed for unit testing.
func NewServer(baseCfg *schema.Config, store *lake.Store, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"DevPulse Warehouse Server",
		version,
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		store:   store,
	}

	s.AddTool(mcp.NewTool("get_employee_scores",
		mcp.WithDescription("Rank employees by composite development activity score over the analysis window."),
		mcp.WithNumber("months", mcp.Description("Analysis window in months. Defaults to the configured window.")),
		mcp.WithNumber("top", mcp.Description("Limit the number of rows returned.")),
	), h.handleEmployeeScores)

	s.AddTool(mcp.NewTool("get_suspicious_committers",
		mcp.WithDescription("Rank committers by anomaly score: duplicate messages, commit bursts, padding patterns."),
		mcp.WithNumber("months", mcp.Description("Analysis window in months. Defaults to the configured window.")),
		mcp.WithNumber("top", mcp.Description("Limit the number of rows returned.")),
	), h.handleSuspiciousCommitters)

	s.AddTool(mcp.NewTool("get_manager_activity",
		mcp.WithDescription("Aggregate development activity per line manager: headcount, commits, score bands."),
		mcp.WithNumber("months", mcp.Description("Analysis window in months. Defaults to the configured window.")),
	), h.handleManagerActivity)

	s.AddTool(mcp.NewTool("get_warehouse_status",
		mcp.WithDescription("Report warehouse table counts and the last ingest time."),
	), h.handleWarehouseStatus)

	return s
}

// Serve starts the MCP server on stdio.
func Serve(baseCfg *schema.Config, store *lake.Store, version string) error {
	return server.ServeStdio(NewServer(baseCfg, store, version))
}
