package tools

import (
	"context"
	"errors"

	"github.com/dgellow/mcp-boilerplate/internal/billing"
	"github.com/dgellow/mcp-boilerplate/internal/log"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

const (
	paymentReason = "This tool is part of a paid plan. Complete the checkout at the link below, " +
		"then call the tool again to get your result."
	meteredNotice = "METER INFO: Your first 3 additions are free, then we charge 10 cents per addition. "
)

func paidTools(prices Prices) []billing.PaidTool {
	meterEvent := prices.MeterEvent
	if meterEvent == "" {
		meterEvent = DefaultMeterEvent
	}
	return []billing.PaidTool{
		{
			Name:     "onetime_add",
			PriceID:  prices.OneTime,
			Mode:     billing.ModePayment,
			Quantity: 1,
			Reason:   paymentReason,
		},
		{
			Name:    "subscription_add",
			PriceID: prices.Subscription,
			Mode:    billing.ModeSubscription,
			Reason:  paymentReason,
		},
		{
			Name:       "metered_add",
			PriceID:    prices.Metered,
			Mode:       billing.ModeSubscription,
			MeterEvent: meterEvent,
			Reason:     meteredNotice + paymentReason,
		},
	}
}

var paidDescriptions = map[string]string{
	"onetime_add":      "Adds two numbers together for one-time payment.",
	"subscription_add": "Adds two numbers together for subscription.",
	"metered_add":      "Adds two numbers together for metered usage.",
}

func paidAddTool(deps Deps, paid billing.PaidTool) mcpserver.ServerTool {
	tool := mcp.NewTool(paid.Name,
		mcp.WithDescription(paidDescriptions[paid.Name]),
		mcp.WithNumber("a", mcp.Required()),
		mcp.WithNumber("b", mcp.Required()),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: instrument(deps.Metrics, paid.Name, gated(deps.Gate, paid, handleAdd))}
}

// gated runs handler only once the user has paid for the tool.
func gated(gate *billing.Gate, paid billing.PaidTool, handler mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		customerID, required, err := gate.Check(ctx, userEmail(ctx), paid)
		if errors.Is(err, billing.ErrNoEmail) {
			return mcp.NewToolResultError("Your email is not available, please log in again to use paid tools."), nil
		}
		if err != nil {
			log.LogErrorWithFields("tools", "Payment check failed", map[string]any{
				"tool":  paid.Name,
				"error": err.Error(),
			})
			return mcp.NewToolResultErrorFromErr("Could not verify your payment status", err), nil
		}
		if required != nil {
			return jsonResult(required)
		}

		result, err := handler(ctx, request)
		if err != nil || result == nil || result.IsError {
			return result, err
		}
		if err := gate.RecordUsage(ctx, paid, customerID); err != nil {
			log.LogWarnWithFields("tools", "Failed to record usage", map[string]any{
				"tool":        paid.Name,
				"customer_id": customerID,
				"error":       err.Error(),
			})
		}
		return result, nil
	}
}

func paymentHistoryTool(deps Deps) mcpserver.ServerTool {
	tool := mcp.NewTool("check_payment_history",
		mcp.WithDescription("This tool checks for active subscriptions and one-time purchases for the logged in user's Stripe customer ID."),
	)
	handler := func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(deps.Reporter.PaymentHistory(ctx, userEmail(ctx)))
	}
	return mcpserver.ServerTool{Tool: tool, Handler: instrument(deps.Metrics, "check_payment_history", handler)}
}

func subscriptionStatusTool(deps Deps) mcpserver.ServerTool {
	tool := mcp.NewTool("check_user_subscription_status",
		mcp.WithDescription("This tool checks for active subscriptions and the status of the logged in user's Stripe customer ID."),
	)
	handler := func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(deps.Reporter.SubscriptionStatus(ctx, userEmail(ctx)))
	}
	return mcpserver.ServerTool{Tool: tool, Handler: instrument(deps.Metrics, "check_user_subscription_status", handler)}
}
