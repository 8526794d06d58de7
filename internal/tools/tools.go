// Package tools defines the MCP tools served to logged in users.
package tools

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/dgellow/mcp-boilerplate/internal/billing"
	"github.com/dgellow/mcp-boilerplate/internal/log"
	"github.com/dgellow/mcp-boilerplate/internal/metrics"
	"github.com/dgellow/mcp-boilerplate/internal/oauth"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

const DefaultMeterEvent = "metered_add_usage"

// Prices configures the paid tools. A tool whose price is empty is not
// registered.
type Prices struct {
	OneTime      string
	Subscription string
	Metered      string
	MeterEvent   string
}

// Deps are the services tool handlers call into. Billing tools are only
// registered when Gate and Reporter are set.
type Deps struct {
	Gate     *billing.Gate
	Reporter *billing.Reporter
	Metrics  *metrics.Metrics
}

// All returns every tool enabled by deps and prices.
func All(deps Deps, prices Prices) []mcpserver.ServerTool {
	tools := []mcpserver.ServerTool{addTool(deps), calculateTool(deps)}
	if deps.Reporter != nil {
		tools = append(tools, paymentHistoryTool(deps), subscriptionStatusTool(deps))
	}
	if deps.Gate == nil {
		log.LogWarn("Stripe is not configured, paid tools are disabled")
		return tools
	}
	for _, paid := range paidTools(prices) {
		if paid.PriceID == "" {
			log.LogWarnWithFields("tools", "No price configured, skipping paid tool", map[string]any{"tool": paid.Name})
			continue
		}
		tools = append(tools, paidAddTool(deps, paid))
	}
	return tools
}

// Register adds all tools to s.
func Register(s *mcpserver.MCPServer, deps Deps, prices Prices) {
	tools := All(deps, prices)
	s.AddTools(tools...)

	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Tool.Name)
	}
	log.LogInfoWithFields("tools", "Registered MCP tools", map[string]any{"tools": names})
}

// instrument counts calls to a handler by outcome.
func instrument(m *metrics.Metrics, name string, handler mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := handler(ctx, request)
		if m == nil {
			return result, err
		}
		outcome := "ok"
		if err != nil || (result != nil && result.IsError) {
			outcome = "error"
		}
		m.ToolCalls.WithLabelValues(name, outcome).Inc()
		return result, err
	}
}

func userEmail(ctx context.Context) string {
	props, ok := oauth.PropsFromContext(ctx)
	if !ok {
		return ""
	}
	if props.UserEmail != "" {
		return props.UserEmail
	}
	return props.Email
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultErrorFromErr("failed to encode result", err), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}
