package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

func addTool(deps Deps) mcpserver.ServerTool {
	tool := mcp.NewTool("add",
		mcp.WithDescription("This tool adds two numbers together."),
		mcp.WithNumber("a", mcp.Required()),
		mcp.WithNumber("b", mcp.Required()),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: instrument(deps.Metrics, "add", handleAdd)}
}

func handleAdd(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, b, err := operands(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatNumber(a + b)), nil
}

func calculateTool(deps Deps) mcpserver.ServerTool {
	tool := mcp.NewTool("calculate",
		mcp.WithDescription("This tool performs a calculation on two numbers."),
		mcp.WithString("operation",
			mcp.Required(),
			mcp.Enum("add", "subtract", "multiply", "divide"),
		),
		mcp.WithNumber("a", mcp.Required()),
		mcp.WithNumber("b", mcp.Required()),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: instrument(deps.Metrics, "calculate", handleCalculate)}
}

func handleCalculate(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	operation, err := request.RequireString("operation")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	a, b, err := operands(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result float64
	switch operation {
	case "add":
		result = a + b
	case "subtract":
		result = a - b
	case "multiply":
		result = a * b
	case "divide":
		if b == 0 {
			return mcp.NewToolResultText("Error: Cannot divide by zero"), nil
		}
		result = a / b
	default:
		return mcp.NewToolResultError(fmt.Sprintf("Unknown operation: %s", operation)), nil
	}
	return mcp.NewToolResultText(formatNumber(result)), nil
}

func operands(request mcp.CallToolRequest) (float64, float64, error) {
	a, err := request.RequireFloat("a")
	if err != nil {
		return 0, 0, err
	}
	b, err := request.RequireFloat("b")
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}
