package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgellow/mcp-boilerplate/internal/log"
	"github.com/stripe/stripe-go/v79"
)

const (
	unknownProductName = "Unknown Product"
	unknownProductID   = "N/A"
)

// Report is the JSON document returned by the payment status tools.
type Report struct {
	UserEmail         *string           `json:"userEmail"`
	StripeCustomerID  string            `json:"stripeCustomerId,omitempty"`
	Subscriptions     []SubscriptionRow `json:"subscriptions,omitempty"`
	OneTimePayments   []PaymentRow      `json:"oneTimePayments,omitempty"`
	BillingPortal     *BillingPortal    `json:"billingPortal,omitempty"`
	StatusMessage     string            `json:"statusMessage,omitempty"`
	Error             string            `json:"error,omitempty"`
	IsError           bool              `json:"isError,omitempty"`
	AgentInstructions string            `json:"agentInstructions,omitempty"`
}

type SubscriptionRow struct {
	ID                string        `json:"id"`
	Status            string        `json:"status"`
	Items             []ProductItem `json:"items"`
	CurrentPeriodEnd  int64         `json:"current_period_end"`
	CancelAtPeriodEnd bool          `json:"cancel_at_period_end"`
	CancelAt          *int64        `json:"cancel_at"`
	EndedAt           *int64        `json:"ended_at"`
}

type ProductItem struct {
	ProductName string `json:"productName"`
	ProductID   string `json:"productId"`
}

type PaymentRow struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	Description string `json:"description"`
	Created     int64  `json:"created"`
	ReceiptURL  string `json:"receipt_url,omitempty"`
}

type BillingPortal struct {
	URL     *string `json:"url"`
	Message string  `json:"message"`
}

// Reporter builds payment status reports for the logged in user.
type Reporter struct {
	api       API
	customers *Customers
	baseURL   string
}

func NewReporter(api API, customers *Customers, baseURL string) *Reporter {
	return &Reporter{api: api, customers: customers, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// PaymentHistory reports subscriptions, one-time payments and a billing
// portal link.
func (r *Reporter) PaymentHistory(ctx context.Context, email string) *Report {
	return r.build(ctx, email, true)
}

// SubscriptionStatus reports subscriptions and a billing portal link.
func (r *Reporter) SubscriptionStatus(ctx context.Context, email string) *Report {
	return r.build(ctx, email, false)
}

func (r *Reporter) build(ctx context.Context, email string, withPayments bool) *Report {
	report := &Report{}

	customerID, err := r.customers.Lookup(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, ErrNoEmail), errors.Is(err, ErrNoCustomer):
		report.UserEmail = nullable(email)
		noCustomer(report, email, withPayments)
		return report
	default:
		report.Error = fmt.Sprintf("Error finding Stripe customer for email %s: %s", email, errorMessage(err))
		report.IsError = true
		return report
	}
	report.UserEmail = nullable(email)
	report.StripeCustomerID = customerID

	subs, err := r.api.ActiveSubscriptions(ctx, customerID)
	if err != nil {
		log.LogErrorWithFields("billing", "Failed to list subscriptions", map[string]any{
			"customer_id": customerID,
			"error":       err.Error(),
		})
		return &Report{
			Error:   "An error occurred while checking payment status: " + errorMessage(err),
			IsError: true,
		}
	}

	report.Subscriptions = make([]SubscriptionRow, 0, len(subs))
	if len(subs) > 0 {
		report.StatusMessage = fmt.Sprintf("Found %d active subscription(s).", len(subs))
	} else {
		report.StatusMessage = "No active subscriptions found."
	}
	for _, sub := range subs {
		report.Subscriptions = append(report.Subscriptions, r.subscriptionRow(ctx, sub))
	}

	if withPayments {
		r.addPayments(ctx, report, customerID)
	}

	report.BillingPortal = r.portal(ctx, customerID)
	report.AgentInstructions = agentInstructions(report)
	return report
}

func noCustomer(report *Report, email string, withPayments bool) {
	report.IsError = true
	switch {
	case !withPayments:
		report.StatusMessage = "Could not identify your Stripe customer ID. Have you previously interacted with a paid feature or logged in?"
	case email != "":
		report.StatusMessage = "Could not identify your Stripe customer ID. " +
			fmt.Sprintf("No customer record was found for your email: %s. Have you previously completed a checkout or used a paid feature?", email)
		report.AgentInstructions = fmt.Sprintf("AI_AGENT_ACTION: Inform the user that no Stripe customer account was found for their email %s. "+
			"Advise them to check the email provided or complete a transaction if they expect to have an account.", email)
	default:
		report.StatusMessage = "Could not identify your Stripe customer ID. " +
			"Your email is not available to the agent, and no existing customer ID was found in your session state."
		report.AgentInstructions = "AI_AGENT_ACTION: Inform the user that their email is not available and no customer ID is in their session state, " +
			"so subscription status cannot be checked. Ask them to ensure their email is correctly configured/provided or to log in again."
	}
}

func (r *Reporter) subscriptionRow(ctx context.Context, sub *stripe.Subscription) SubscriptionRow {
	row := SubscriptionRow{
		ID:                sub.ID,
		Status:            string(sub.Status),
		Items:             []ProductItem{},
		CurrentPeriodEnd:  sub.CurrentPeriodEnd,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		CancelAt:          timestamp(sub.CancelAt),
		EndedAt:           timestamp(sub.EndedAt),
	}
	if sub.Items == nil {
		return row
	}

	for _, item := range sub.Items.Data {
		product := ProductItem{ProductName: unknownProductName, ProductID: unknownProductID}
		if item.Price != nil && item.Price.Product != nil && item.Price.Product.ID != "" {
			product.ProductID = item.Price.Product.ID
			p, err := r.api.Product(ctx, product.ProductID)
			switch {
			case err != nil:
				product.ProductName = fmt.Sprintf("Could not retrieve product name (ID: %s, Error: %s)", product.ProductID, errorMessage(err))
			case p != nil && p.Name != "":
				product.ProductName = p.Name
			}
		}
		row.Items = append(row.Items, product)
	}
	return row
}

func (r *Reporter) addPayments(ctx context.Context, report *Report, customerID string) {
	charges, err := r.api.Charges(ctx, customerID)
	if err != nil {
		log.LogWarnWithFields("billing", "Failed to list charges", map[string]any{
			"customer_id": customerID,
			"error":       err.Error(),
		})
		appendStatus(report, "Could not retrieve one-time payment history due to an error.")
		return
	}
	if len(charges) == 0 {
		appendStatus(report, "No one-time payment history found.")
		return
	}

	for _, charge := range charges {
		// Subscription charges carry an invoice.
		if !charge.Paid || charge.Refunded || charge.Invoice != nil {
			continue
		}
		description := charge.Description
		if description == "" {
			description = "N/A"
		}
		report.OneTimePayments = append(report.OneTimePayments, PaymentRow{
			ID:          charge.ID,
			Amount:      charge.Amount,
			Currency:    string(charge.Currency),
			Status:      string(charge.Status),
			Description: description,
			Created:     charge.Created,
			ReceiptURL:  charge.ReceiptURL,
		})
	}

	if len(report.OneTimePayments) > 0 {
		appendStatus(report, fmt.Sprintf("Found %d relevant one-time payment(s).", len(report.OneTimePayments)))
	} else {
		appendStatus(report, "No relevant one-time payments found.")
	}
}

func (r *Reporter) portal(ctx context.Context, customerID string) *BillingPortal {
	portal := &BillingPortal{}
	if r.baseURL == "" {
		portal.Message = "Billing portal link could not be generated: the base URL is not configured."
		return portal
	}

	session, err := r.api.PortalSession(ctx, customerID, r.baseURL+"/")
	switch {
	case err != nil:
		msg := errorMessage(err)
		log.LogWarnWithFields("billing", "Failed to create billing portal session", map[string]any{
			"customer_id": customerID,
			"error":       msg,
		})
		if strings.Contains(msg, "No configuration provided") {
			portal.Message = "Could not generate a link to the customer billing portal: " + msg
		} else {
			portal.Message = "Could not generate a link to the customer billing portal at this time due to an unexpected error."
		}
	case session.URL == "":
		portal.Message = "Could not retrieve billing portal URL, but session creation was reported as successful."
	default:
		portal.URL = &session.URL
		portal.Message = "Manage your billing and subscriptions here."
	}
	return portal
}

func agentInstructions(report *Report) string {
	var b strings.Builder
	b.WriteString("AI_AGENT_ACTION: Present the user's subscription details (userEmail, subscriptions) in Markdown format. " +
		"Do NOT display the stripeCustomerId or the productId for subscription items. " +
		"For each subscription, clearly state its status and product name. " +
		"If the subscription has an end date (from 'ended_at'), mention it. " +
		"If it's set to cancel (from 'cancel_at_period_end' is true and 'cancel_at' is set), state the cancellation date. " +
		"Otherwise, if it's active, state its renewal date (from 'current_period_end'). " +
		"All relevant dates are provided as Unix timestamps in the subscription data; " +
		"please convert them to a human-readable format (e.g., YYYY-MM-DD or Month Day, Year) when presenting to the user. ")

	if len(report.OneTimePayments) > 0 {
		b.WriteString("Also, list any one-time payments, including the product name (if available) or description, " +
			"amount (formatted with currency), status, and date of purchase (human-readable). Provide the receipt URL if available. ")
	}

	switch portal := report.BillingPortal; {
	case portal != nil && portal.URL != nil:
		if anyEndingOrCancelled(report.Subscriptions) {
			b.WriteString("Some subscriptions are ending or have been cancelled. You can manage or potentially renew them at the billing portal. " +
				"Ask the user: 'Would you like to open the billing portal to manage your subscriptions?' ")
		} else {
			b.WriteString("A billing portal is available. Ask the user: 'Would you like to open the billing portal?' ")
		}
		fmt.Fprintf(&b, "If they respond affirmatively, run the appropriate command for their OS to open the URL %s in their default browser.", *portal.URL)
	case portal != nil && portal.Message != "":
		fmt.Fprintf(&b, "Inform the user about the billing portal status: '%s'.", portal.Message)
	default:
		b.WriteString("Inform the user that no billing portal information is available.")
	}
	return b.String()
}

func anyEndingOrCancelled(subs []SubscriptionRow) bool {
	for _, sub := range subs {
		if sub.CancelAtPeriodEnd || (sub.Status != string(stripe.SubscriptionStatusActive) && sub.EndedAt != nil) {
			return true
		}
	}
	return false
}

func appendStatus(report *Report, msg string) {
	if report.StatusMessage != "" {
		report.StatusMessage += " "
	}
	report.StatusMessage += msg
}

func timestamp(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}

// nullable renders an empty email as JSON null.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
