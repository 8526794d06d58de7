package billing

import (
	"context"
	"fmt"
	"slices"

	"github.com/dgellow/mcp-boilerplate/internal/log"
	"github.com/dgellow/mcp-boilerplate/internal/metrics"
	"github.com/stripe/stripe-go/v79"
)

// Mode is the Stripe checkout mode of a paid tool.
type Mode string

const (
	ModePayment      Mode = "payment"
	ModeSubscription Mode = "subscription"
)

const StatusPaymentRequired = "payment_required"

// PaidTool is the billing configuration of one paid tool.
type PaidTool struct {
	Name    string
	PriceID string
	Mode    Mode
	// Quantity is sent on the checkout line item when non-zero.
	Quantity int64
	// MeterEvent is recorded after every successful call when set.
	MeterEvent string
	Reason     string
}

// PaymentRequired is returned to the MCP client in place of the tool result.
type PaymentRequired struct {
	Status string              `json:"status"`
	Data   PaymentRequiredData `json:"data"`
}

type PaymentRequiredData struct {
	PaymentType   string `json:"paymentType"`
	CheckoutURL   string `json:"checkoutUrl"`
	PaymentReason string `json:"paymentReason"`
}

// Gate decides whether a user has paid for a tool.
type Gate struct {
	api        API
	customers  *Customers
	successURL string
	metrics    *metrics.Metrics
}

func NewGate(api API, customers *Customers, successURL string, m *metrics.Metrics) *Gate {
	return &Gate{api: api, customers: customers, successURL: successURL, metrics: m}
}

// Check resolves the user's customer and reports whether the tool is paid
// for. When it is not, the returned PaymentRequired carries a fresh
// checkout link.
func (g *Gate) Check(ctx context.Context, email string, tool PaidTool) (string, *PaymentRequired, error) {
	customerID, err := g.customers.Ensure(ctx, email)
	if err != nil {
		return "", nil, fmt.Errorf("resolving customer: %w", err)
	}

	paid, err := g.isPaid(ctx, customerID, tool)
	if err != nil {
		return "", nil, err
	}
	if paid {
		return customerID, nil, nil
	}

	session, err := g.api.CreateCheckout(ctx, CheckoutRequest{
		CustomerID: customerID,
		PriceID:    tool.PriceID,
		Mode:       tool.Mode,
		Quantity:   tool.Quantity,
		SuccessURL: g.successURL,
		Tool:       tool.Name,
	})
	if err != nil {
		return "", nil, stripeFailure("creating checkout session", err)
	}

	if g.metrics != nil {
		g.metrics.PaymentRequired.WithLabelValues(tool.Name).Inc()
	}
	log.LogInfoWithFields("billing", "Payment required", map[string]any{
		"tool":        tool.Name,
		"customer_id": customerID,
		"session_id":  session.ID,
	})

	return customerID, &PaymentRequired{
		Status: StatusPaymentRequired,
		Data: PaymentRequiredData{
			PaymentType:   string(tool.Mode),
			CheckoutURL:   session.URL,
			PaymentReason: tool.Reason,
		},
	}, nil
}

func (g *Gate) isPaid(ctx context.Context, customerID string, tool PaidTool) (bool, error) {
	switch tool.Mode {
	case ModeSubscription:
		subs, err := g.api.ActiveSubscriptions(ctx, customerID)
		if err != nil {
			return false, stripeFailure("listing subscriptions", err)
		}
		return slices.ContainsFunc(subs, func(sub *stripe.Subscription) bool {
			return subscriptionHasPrice(sub, tool.PriceID)
		}), nil

	case ModePayment:
		sessions, err := g.api.CompletedCheckouts(ctx, customerID)
		if err != nil {
			return false, stripeFailure("listing checkout sessions", err)
		}
		return slices.ContainsFunc(sessions, func(s *stripe.CheckoutSession) bool {
			return s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid && s.Metadata["tool"] == tool.Name
		}), nil

	default:
		return false, fmt.Errorf("unknown payment mode %q", tool.Mode)
	}
}

func subscriptionHasPrice(sub *stripe.Subscription, priceID string) bool {
	if sub == nil || sub.Items == nil {
		return false
	}
	for _, item := range sub.Items.Data {
		if item.Price != nil && item.Price.ID == priceID {
			return true
		}
	}
	return false
}

// RecordUsage sends the tool's meter event for customerID. Tools without a
// meter event are a no-op.
func (g *Gate) RecordUsage(ctx context.Context, tool PaidTool, customerID string) error {
	if tool.MeterEvent == "" {
		return nil
	}
	if err := g.api.MeterEvent(ctx, tool.MeterEvent, customerID); err != nil {
		return stripeFailure("recording meter event "+tool.MeterEvent, err)
	}
	log.LogDebugWithFields("billing", "Recorded usage", map[string]any{
		"tool":        tool.Name,
		"event":       tool.MeterEvent,
		"customer_id": customerID,
	})
	return nil
}

// stripeFailure logs the readable Stripe message and wraps err under op.
func stripeFailure(op string, err error) error {
	log.LogWarnWithFields("billing", "Stripe request failed", map[string]any{
		"operation": op,
		"error":     errorMessage(err),
	})
	return fmt.Errorf("%s: %w", op, err)
}
