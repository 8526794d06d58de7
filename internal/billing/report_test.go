package billing_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dgellow/mcp-boilerplate/internal/billing"
	"github.com/dgellow/mcp-boilerplate/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

const (
	baseURL   = "https://mcp.example.com"
	portalURL = "https://billing.stripe.com/p/session/test_123"
)

func newReporter(api *testutil.MockBillingAPI, base string) *billing.Reporter {
	return billing.NewReporter(api, billing.NewCustomers(api, nil), base)
}

func withCustomer(api *testutil.MockBillingAPI) {
	api.On("FindCustomerByEmail", mock.Anything, "ada@example.com").Return(&stripe.Customer{ID: "cus_123"}, nil)
}

func TestReporter_NoCustomer(t *testing.T) {
	tests := []struct {
		name              string
		email             string
		history           bool
		wantStatus        string
		wantInstructions  string
		wantNullUserEmail bool
	}{
		{
			name:             "history with email",
			email:            "ada@example.com",
			history:          true,
			wantStatus:       "Could not identify your Stripe customer ID. No customer record was found for your email: ada@example.com. Have you previously completed a checkout or used a paid feature?",
			wantInstructions: "AI_AGENT_ACTION: Inform the user that no Stripe customer account was found for their email ada@example.com.",
		},
		{
			name:              "history without email",
			history:           true,
			wantStatus:        "Could not identify your Stripe customer ID. Your email is not available to the agent, and no existing customer ID was found in your session state.",
			wantInstructions:  "AI_AGENT_ACTION: Inform the user that their email is not available",
			wantNullUserEmail: true,
		},
		{
			name:       "subscription status",
			email:      "ada@example.com",
			wantStatus: "Could not identify your Stripe customer ID. Have you previously interacted with a paid feature or logged in?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &testutil.MockBillingAPI{}
			api.On("FindCustomerByEmail", mock.Anything, mock.Anything).Return(nil, nil)
			reporter := newReporter(api, baseURL)

			var report *billing.Report
			if tt.history {
				report = reporter.PaymentHistory(context.Background(), tt.email)
			} else {
				report = reporter.SubscriptionStatus(context.Background(), tt.email)
			}

			assert.True(t, report.IsError)
			assert.Equal(t, tt.wantStatus, report.StatusMessage)
			assert.Contains(t, report.AgentInstructions, tt.wantInstructions)
			assert.Empty(t, report.StripeCustomerID)
			if tt.wantNullUserEmail {
				assert.Nil(t, report.UserEmail)
			}
			api.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
		})
	}
}

func TestReporter_SearchFailure(t *testing.T) {
	api := &testutil.MockBillingAPI{}
	api.On("FindCustomerByEmail", mock.Anything, "ada@example.com").Return(nil, &stripe.Error{Msg: "Invalid API Key provided"})

	report := newReporter(api, baseURL).PaymentHistory(context.Background(), "ada@example.com")
	assert.True(t, report.IsError)
	assert.Equal(t, "Error finding Stripe customer for email ada@example.com: Invalid API Key provided", report.Error)
}

func TestReporter_PaymentHistory(t *testing.T) {
	api := &testutil.MockBillingAPI{}
	withCustomer(api)

	sub := testutil.Subscription("sub_1",
		testutil.Price("price_sub", "prod_sub"),
		testutil.Price("price_gone", "prod_gone"),
		&stripe.Price{ID: "price_no_product"},
	)
	sub.CurrentPeriodEnd = 1767225600
	api.On("ActiveSubscriptions", mock.Anything, "cus_123").Return([]*stripe.Subscription{sub}, nil)
	api.On("Product", mock.Anything, "prod_sub").Return(&stripe.Product{ID: "prod_sub", Name: "Pro plan"}, nil)
	api.On("Product", mock.Anything, "prod_gone").Return(nil, &stripe.Error{Msg: "No such product: 'prod_gone'"})
	api.On("Charges", mock.Anything, "cus_123").Return([]*stripe.Charge{
		{ID: "ch_ok", Paid: true, Amount: 500, Currency: stripe.CurrencyUSD, Status: stripe.ChargeStatusSucceeded, Created: 1700000000, ReceiptURL: "https://pay.stripe.com/receipts/ch_ok"},
		{ID: "ch_refunded", Paid: true, Refunded: true},
		{ID: "ch_invoice", Paid: true, Invoice: &stripe.Invoice{ID: "in_1"}},
		{ID: "ch_failed", Paid: false},
	}, nil)
	api.On("PortalSession", mock.Anything, "cus_123", baseURL+"/").Return(&stripe.BillingPortalSession{URL: portalURL}, nil)

	report := newReporter(api, baseURL+"/").PaymentHistory(context.Background(), "ada@example.com")
	require.False(t, report.IsError, report.Error)
	require.NotNil(t, report.UserEmail)
	assert.Equal(t, "ada@example.com", *report.UserEmail)
	assert.Equal(t, "cus_123", report.StripeCustomerID)
	assert.Equal(t, "Found 1 active subscription(s). Found 1 relevant one-time payment(s).", report.StatusMessage)

	require.Len(t, report.Subscriptions, 1)
	assert.Equal(t, []billing.ProductItem{
		{ProductName: "Pro plan", ProductID: "prod_sub"},
		{ProductName: "Could not retrieve product name (ID: prod_gone, Error: No such product: 'prod_gone')", ProductID: "prod_gone"},
		{ProductName: "Unknown Product", ProductID: "N/A"},
	}, report.Subscriptions[0].Items)
	assert.Nil(t, report.Subscriptions[0].CancelAt)
	assert.Nil(t, report.Subscriptions[0].EndedAt)

	require.Len(t, report.OneTimePayments, 1)
	assert.Equal(t, billing.PaymentRow{
		ID:          "ch_ok",
		Amount:      500,
		Currency:    "usd",
		Status:      "succeeded",
		Description: "N/A",
		Created:     1700000000,
		ReceiptURL:  "https://pay.stripe.com/receipts/ch_ok",
	}, report.OneTimePayments[0])

	require.NotNil(t, report.BillingPortal)
	require.NotNil(t, report.BillingPortal.URL)
	assert.Equal(t, portalURL, *report.BillingPortal.URL)
	assert.Equal(t, "Manage your billing and subscriptions here.", report.BillingPortal.Message)

	assert.Contains(t, report.AgentInstructions, "AI_AGENT_ACTION: Present the user's subscription details")
	assert.Contains(t, report.AgentInstructions, "Also, list any one-time payments")
	assert.Contains(t, report.AgentInstructions, "A billing portal is available. Ask the user: 'Would you like to open the billing portal?'")
	assert.Contains(t, report.AgentInstructions, "open the URL "+portalURL+" in their default browser.")
}

func TestReporter_JSONShape(t *testing.T) {
	api := &testutil.MockBillingAPI{}
	withCustomer(api)
	api.On("ActiveSubscriptions", mock.Anything, "cus_123").Return([]*stripe.Subscription{}, nil)
	api.On("Charges", mock.Anything, "cus_123").Return([]*stripe.Charge{}, nil)
	api.On("PortalSession", mock.Anything, "cus_123", baseURL+"/").Return(&stripe.BillingPortalSession{URL: portalURL}, nil)

	report := newReporter(api, baseURL).PaymentHistory(context.Background(), "ada@example.com")
	body, err := json.MarshalIndent(report, "", "  ")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "ada@example.com", decoded["userEmail"])
	assert.Equal(t, "cus_123", decoded["stripeCustomerId"])
	assert.Equal(t, "No active subscriptions found. No one-time payment history found.", decoded["statusMessage"])
	assert.Equal(t, map[string]any{"url": portalURL, "message": "Manage your billing and subscriptions here."}, decoded["billingPortal"])
	assert.NotContains(t, decoded, "isError")
	assert.NotContains(t, decoded, "error")
}

func TestReporter_SubscriptionStatusSkipsCharges(t *testing.T) {
	api := &testutil.MockBillingAPI{}
	withCustomer(api)

	sub := testutil.Subscription("sub_1", testutil.Price("price_sub", "prod_sub"))
	sub.CancelAtPeriodEnd = true
	sub.CancelAt = 1767225600
	api.On("ActiveSubscriptions", mock.Anything, "cus_123").Return([]*stripe.Subscription{sub}, nil)
	api.On("Product", mock.Anything, "prod_sub").Return(&stripe.Product{Name: "Pro plan"}, nil)
	api.On("PortalSession", mock.Anything, "cus_123", baseURL+"/").Return(&stripe.BillingPortalSession{URL: portalURL}, nil)

	report := newReporter(api, baseURL).SubscriptionStatus(context.Background(), "ada@example.com")
	assert.False(t, report.IsError)
	assert.Empty(t, report.OneTimePayments)
	assert.Equal(t, "Found 1 active subscription(s).", report.StatusMessage)
	require.NotNil(t, report.Subscriptions[0].CancelAt)
	assert.Equal(t, int64(1767225600), *report.Subscriptions[0].CancelAt)
	assert.Contains(t, report.AgentInstructions, "Some subscriptions are ending or have been cancelled.")
	api.AssertNotCalled(t, "Charges", mock.Anything, mock.Anything)
}

func TestReporter_Portal(t *testing.T) {
	tests := []struct {
		name        string
		base        string
		session     *stripe.BillingPortalSession
		err         error
		wantMessage string
	}{
		{
			name:        "no portal configuration",
			base:        baseURL,
			err:         &stripe.Error{Msg: "No configuration provided and your test mode default configuration has not been created."},
			wantMessage: "Could not generate a link to the customer billing portal: No configuration provided and your test mode default configuration has not been created.",
		},
		{
			name:        "other error",
			base:        baseURL,
			err:         &stripe.Error{Msg: "boom"},
			wantMessage: "Could not generate a link to the customer billing portal at this time due to an unexpected error.",
		},
		{
			name:        "empty url",
			base:        baseURL,
			session:     &stripe.BillingPortalSession{},
			wantMessage: "Could not retrieve billing portal URL, but session creation was reported as successful.",
		},
		{
			name:        "no base url",
			wantMessage: "Billing portal link could not be generated: the base URL is not configured.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &testutil.MockBillingAPI{}
			withCustomer(api)
			api.On("ActiveSubscriptions", mock.Anything, "cus_123").Return([]*stripe.Subscription{}, nil)
			if tt.session != nil {
				api.On("PortalSession", mock.Anything, "cus_123", mock.Anything).Return(tt.session, nil)
			} else {
				api.On("PortalSession", mock.Anything, "cus_123", mock.Anything).Return(nil, tt.err)
			}

			report := newReporter(api, tt.base).SubscriptionStatus(context.Background(), "ada@example.com")
			require.NotNil(t, report.BillingPortal)
			assert.Nil(t, report.BillingPortal.URL)
			assert.Equal(t, tt.wantMessage, report.BillingPortal.Message)
			assert.Contains(t, report.AgentInstructions, "Inform the user about the billing portal status: '"+tt.wantMessage+"'.")
		})
	}
}

func TestReporter_ChargesFailure(t *testing.T) {
	api := &testutil.MockBillingAPI{}
	withCustomer(api)
	api.On("ActiveSubscriptions", mock.Anything, "cus_123").Return([]*stripe.Subscription{}, nil)
	api.On("Charges", mock.Anything, "cus_123").Return(nil, &stripe.Error{Msg: "boom"})
	api.On("PortalSession", mock.Anything, "cus_123", mock.Anything).Return(&stripe.BillingPortalSession{URL: portalURL}, nil)

	report := newReporter(api, baseURL).PaymentHistory(context.Background(), "ada@example.com")
	assert.False(t, report.IsError)
	assert.Equal(t, "No active subscriptions found. Could not retrieve one-time payment history due to an error.", report.StatusMessage)
}

func TestReporter_SubscriptionsFailure(t *testing.T) {
	api := &testutil.MockBillingAPI{}
	withCustomer(api)
	api.On("ActiveSubscriptions", mock.Anything, "cus_123").Return(nil, &stripe.Error{Msg: "boom"})

	report := newReporter(api, baseURL).PaymentHistory(context.Background(), "ada@example.com")
	assert.True(t, report.IsError)
	assert.Equal(t, "An error occurred while checking payment status: boom", report.Error)
	assert.Empty(t, report.StripeCustomerID)
	assert.Nil(t, report.UserEmail)
}
