package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/clifelab/devpulse/core/report"
	"github.com/clifelab/devpulse/internal"
	"github.com/clifelab/devpulse/internal/lake"
	"github.com/clifelab/devpulse/schema"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *schema.Config
	store   *lake.Store
}

// windowCfg copies the base config with per-request overrides applied.
func (h *toolHandler) windowCfg(request mcp.CallToolRequest) schema.Config {
	cfg := *h.baseCfg
	if m := request.GetInt("months", 0); m > 0 {
		cfg.Months = m
	}
	if top := request.GetInt("top", 0); top > 0 {
		cfg.Top = top
	}
	return cfg
}

// buildReport loads the shared inputs and runs one report function.
func (h *toolHandler) buildReport(cfg schema.Config, fn func(*report.Builder) *schema.Report) (*mcp.CallToolResult, error) {
	in, err := internal.LoadReportInputs(h.store, &cfg, time.Now())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("warehouse read failed: %v", err)), nil
	}
	r := fn(report.New(in))

	jsonData, _ := json.MarshalIndent(r, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleEmployeeScores(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.buildReport(h.windowCfg(request), (*report.Builder).ActiveEmployeeScore)
}

func (h *toolHandler) handleSuspiciousCommitters(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.buildReport(h.windowCfg(request), (*report.Builder).SuspiciousCommitters)
}

func (h *toolHandler) handleManagerActivity(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.buildReport(h.windowCfg(request), (*report.Builder).LineManagerDevActivity)
}

func (h *toolHandler) handleWarehouseStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := h.store.Status()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("status read failed: %v", err)), nil
	}
	jsonData, _ := json.MarshalIndent(status, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}
