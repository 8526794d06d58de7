package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dgellow/mcp-boilerplate/internal/billing"
	"github.com/dgellow/mcp-boilerplate/internal/metrics"
	"github.com/dgellow/mcp-boilerplate/internal/oauth"
	"github.com/dgellow/mcp-boilerplate/internal/oauthsession"
	"github.com/dgellow/mcp-boilerplate/internal/testutil"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

var testPrices = Prices{
	OneTime:      "price_once",
	Subscription: "price_sub",
	Metered:      "price_metered",
}

func loggedIn(email string) context.Context {
	return oauth.WithProps(context.Background(), oauthsession.Props{
		Name:      "Ada Lovelace",
		Email:     email,
		UserEmail: email,
	})
}

func newDeps(api *testutil.MockBillingAPI, m *metrics.Metrics) Deps {
	customers := billing.NewCustomers(api, nil)
	return Deps{
		Gate:     billing.NewGate(api, customers, "https://mcp.example.com/payment/success", m),
		Reporter: billing.NewReporter(api, customers, "https://mcp.example.com"),
		Metrics:  m,
	}
}

func findTool(t *testing.T, tools []mcpserver.ServerTool, name string) mcpserver.ServerTool {
	t.Helper()
	for _, tool := range tools {
		if tool.Tool.Name == name {
			return tool
		}
	}
	t.Fatalf("tool %s not registered", name)
	return mcpserver.ServerTool{}
}

func toolNames(tools []mcpserver.ServerTool) []string {
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Tool.Name)
	}
	return names
}

func TestAll(t *testing.T) {
	t.Run("everything configured", func(t *testing.T) {
		tools := All(newDeps(&testutil.MockBillingAPI{}, nil), testPrices)
		assert.ElementsMatch(t, []string{
			"add",
			"calculate",
			"check_payment_history",
			"check_user_subscription_status",
			"onetime_add",
			"subscription_add",
			"metered_add",
		}, toolNames(tools))
	})

	t.Run("missing price skips tool", func(t *testing.T) {
		prices := testPrices
		prices.Metered = ""
		tools := All(newDeps(&testutil.MockBillingAPI{}, nil), prices)
		assert.NotContains(t, toolNames(tools), "metered_add")
		assert.Contains(t, toolNames(tools), "onetime_add")
	})

	t.Run("no billing", func(t *testing.T) {
		tools := All(Deps{}, testPrices)
		assert.Equal(t, []string{"add", "calculate"}, toolNames(tools))
	})
}

func TestRegisterListsTools(t *testing.T) {
	s := mcpserver.NewMCPServer("test", "1.0.0", mcpserver.WithToolCapabilities(true))
	Register(s, newDeps(&testutil.MockBillingAPI{}, nil), testPrices)

	resp := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	body, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"check_payment_history"`)
	assert.Contains(t, string(body), `"metered_add"`)
	assert.Contains(t, string(body), "Adds two numbers together for subscription.")
}

func TestPaidTool_PaymentRequired(t *testing.T) {
	api := &testutil.MockBillingAPI{}
	m := metrics.New()
	api.On("FindCustomerByEmail", mock.Anything, "ada@example.com").Return(nil, nil)
	api.On("CreateCustomer", mock.Anything, "ada@example.com").Return(&stripe.Customer{ID: "cus_new"}, nil)
	api.On("CompletedCheckouts", mock.Anything, "cus_new").Return([]*stripe.CheckoutSession{}, nil)
	api.On("CreateCheckout", mock.Anything, mock.MatchedBy(func(req billing.CheckoutRequest) bool {
		return req.Tool == "onetime_add" && req.PriceID == "price_once" && req.Quantity == 1
	})).Return(&stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/pay/cs_1"}, nil)

	tool := findTool(t, All(newDeps(api, m), testPrices), "onetime_add")
	result, err := tool.Handler(loggedIn("ada@example.com"), callRequest("onetime_add", map[string]any{"a": 1.0, "b": 2.0}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var payload billing.PaymentRequired
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &payload))
	assert.Equal(t, "payment_required", payload.Status)
	assert.Equal(t, "payment", payload.Data.PaymentType)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_1", payload.Data.CheckoutURL)
	assert.Equal(t, paymentReason, payload.Data.PaymentReason)
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.PaymentRequired.WithLabelValues("onetime_add")))
}

func TestPaidTool_Subscribed(t *testing.T) {
	api := &testutil.MockBillingAPI{}
	api.On("FindCustomerByEmail", mock.Anything, "ada@example.com").Return(&stripe.Customer{ID: "cus_123"}, nil)
	api.On("ActiveSubscriptions", mock.Anything, "cus_123").Return([]*stripe.Subscription{
		testutil.Subscription("sub_1", testutil.Price("price_sub", "prod_sub")),
	}, nil)

	tool := findTool(t, All(newDeps(api, nil), testPrices), "subscription_add")
	result, err := tool.Handler(loggedIn("ada@example.com"), callRequest("subscription_add", map[string]any{"a": 4.0, "b": 5.0}))
	require.NoError(t, err)
	assert.Equal(t, "9", resultText(t, result))
	api.AssertNotCalled(t, "CreateCheckout", mock.Anything, mock.Anything)
	api.AssertNotCalled(t, "MeterEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaidTool_MeteredRecordsUsage(t *testing.T) {
	api := &testutil.MockBillingAPI{}
	m := metrics.New()
	api.On("FindCustomerByEmail", mock.Anything, "ada@example.com").Return(&stripe.Customer{ID: "cus_123"}, nil)
	api.On("ActiveSubscriptions", mock.Anything, "cus_123").Return([]*stripe.Subscription{
		testutil.Subscription("sub_1", testutil.Price("price_metered", "prod_metered")),
	}, nil)
	api.On("MeterEvent", mock.Anything, "metered_add_usage", "cus_123").Return(nil).Once()

	tool := findTool(t, All(newDeps(api, m), testPrices), "metered_add")
	result, err := tool.Handler(loggedIn("ada@example.com"), callRequest("metered_add", map[string]any{"a": 1.0, "b": 1.0}))
	require.NoError(t, err)
	assert.Equal(t, "2", resultText(t, result))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.ToolCalls.WithLabelValues("metered_add", "ok")))
	api.AssertExpectations(t)
}

func TestPaidTool_MeteredReason(t *testing.T) {
	for _, paid := range paidTools(testPrices) {
		if paid.Name == "metered_add" {
			assert.Equal(t, "metered_add_usage", paid.MeterEvent)
			assert.Equal(t, "METER INFO: Your first 3 additions are free, then we charge 10 cents per addition. "+paymentReason, paid.Reason)
			return
		}
	}
	t.Fatal("metered_add missing")
}

func TestPaidTool_NotLoggedIn(t *testing.T) {
	api := &testutil.MockBillingAPI{}
	m := metrics.New()

	tool := findTool(t, All(newDeps(api, m), testPrices), "subscription_add")
	result, err := tool.Handler(context.Background(), callRequest("subscription_add", map[string]any{"a": 1.0, "b": 1.0}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.ToolCalls.WithLabelValues("subscription_add", "error")))
	api.AssertNotCalled(t, "FindCustomerByEmail", mock.Anything, mock.Anything)
}

func TestPaidTool_InvalidArgumentsSkipUsage(t *testing.T) {
	api := &testutil.MockBillingAPI{}
	api.On("FindCustomerByEmail", mock.Anything, "ada@example.com").Return(&stripe.Customer{ID: "cus_123"}, nil)
	api.On("ActiveSubscriptions", mock.Anything, "cus_123").Return([]*stripe.Subscription{
		testutil.Subscription("sub_1", testutil.Price("price_metered", "prod_metered")),
	}, nil)

	tool := findTool(t, All(newDeps(api, nil), testPrices), "metered_add")
	result, err := tool.Handler(loggedIn("ada@example.com"), callRequest("metered_add", map[string]any{"a": 1.0}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	api.AssertNotCalled(t, "MeterEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentHistoryTool(t *testing.T) {
	api := &testutil.MockBillingAPI{}
	api.On("FindCustomerByEmail", mock.Anything, "ada@example.com").Return(&stripe.Customer{ID: "cus_123"}, nil)
	api.On("ActiveSubscriptions", mock.Anything, "cus_123").Return([]*stripe.Subscription{}, nil)
	api.On("Charges", mock.Anything, "cus_123").Return([]*stripe.Charge{}, nil)
	api.On("PortalSession", mock.Anything, "cus_123", "https://mcp.example.com/").
		Return(&stripe.BillingPortalSession{URL: "https://billing.stripe.com/p/session/1"}, nil)

	tool := findTool(t, All(newDeps(api, nil), testPrices), "check_payment_history")
	result, err := tool.Handler(loggedIn("ada@example.com"), mcp.CallToolRequest{})
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "\n  \"userEmail\": \"ada@example.com\"")

	var report billing.Report
	require.NoError(t, json.Unmarshal([]byte(text), &report))
	assert.Equal(t, "cus_123", report.StripeCustomerID)
	assert.Equal(t, "No active subscriptions found. No one-time payment history found.", report.StatusMessage)
}

func TestSubscriptionStatusToolWithoutEmail(t *testing.T) {
	api := &testutil.MockBillingAPI{}

	tool := findTool(t, All(newDeps(api, nil), testPrices), "check_user_subscription_status")
	result, err := tool.Handler(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)

	var report billing.Report
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &report))
	assert.True(t, report.IsError)
	assert.Nil(t, report.UserEmail)
}
