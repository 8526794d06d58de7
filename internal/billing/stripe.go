// Package billing wraps Stripe: customer resolution, the paid tool gate,
// payment reports and the webhook endpoint.
package billing

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

const (
	subscriptionListLimit = 10
	chargeListLimit       = 20
	checkoutListLimit     = 100
)

// CheckoutRequest describes the checkout session opened for an unpaid tool.
type CheckoutRequest struct {
	CustomerID string
	PriceID    string
	Mode       Mode
	Quantity   int64
	SuccessURL string
	Tool       string
}

// API is the slice of the Stripe API the package uses.
type API interface {
	// FindCustomerByEmail returns nil without error when no customer matches.
	FindCustomerByEmail(ctx context.Context, email string) (*stripe.Customer, error)
	CreateCustomer(ctx context.Context, email string) (*stripe.Customer, error)
	ActiveSubscriptions(ctx context.Context, customerID string) ([]*stripe.Subscription, error)
	Product(ctx context.Context, productID string) (*stripe.Product, error)
	Charges(ctx context.Context, customerID string) ([]*stripe.Charge, error)
	PortalSession(ctx context.Context, customerID, returnURL string) (*stripe.BillingPortalSession, error)
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*stripe.CheckoutSession, error)
	CompletedCheckouts(ctx context.Context, customerID string) ([]*stripe.CheckoutSession, error)
	MeterEvent(ctx context.Context, eventName, customerID string) error
}

// StripeClient implements API over the stripe-go client.
type StripeClient struct {
	sc *client.API
}

var _ API = (*StripeClient)(nil)

// NewStripeClient creates a client for secretKey. backends may be nil to
// use the SDK defaults.
func NewStripeClient(secretKey string, backends *stripe.Backends) *StripeClient {
	return &StripeClient{sc: client.New(secretKey, backends)}
}

func (c *StripeClient) FindCustomerByEmail(ctx context.Context, email string) (*stripe.Customer, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	iter := c.sc.Customers.List(params)
	if iter.Next() {
		return iter.Customer(), nil
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}

func (c *StripeClient) CreateCustomer(ctx context.Context, email string) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.Context = ctx
	return c.sc.Customers.New(params)
}

func (c *StripeClient) ActiveSubscriptions(ctx context.Context, customerID string) ([]*stripe.Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(subscriptionListLimit)

	var subs []*stripe.Subscription
	iter := c.sc.Subscriptions.List(params)
	for len(subs) < subscriptionListLimit && iter.Next() {
		subs = append(subs, iter.Subscription())
	}
	return subs, iter.Err()
}

func (c *StripeClient) Product(ctx context.Context, productID string) (*stripe.Product, error) {
	params := &stripe.ProductParams{}
	params.Context = ctx
	return c.sc.Products.Get(productID, params)
}

func (c *StripeClient) Charges(ctx context.Context, customerID string) ([]*stripe.Charge, error) {
	params := &stripe.ChargeListParams{Customer: stripe.String(customerID)}
	params.Context = ctx
	params.Limit = stripe.Int64(chargeListLimit)

	var charges []*stripe.Charge
	iter := c.sc.Charges.List(params)
	for len(charges) < chargeListLimit && iter.Next() {
		charges = append(charges, iter.Charge())
	}
	return charges, iter.Err()
}

func (c *StripeClient) PortalSession(ctx context.Context, customerID, returnURL string) (*stripe.BillingPortalSession, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	return c.sc.BillingPortalSessions.New(params)
}

func (c *StripeClient) CreateCheckout(ctx context.Context, req CheckoutRequest) (*stripe.CheckoutSession, error) {
	item := &stripe.CheckoutSessionLineItemParams{Price: stripe.String(req.PriceID)}
	if req.Quantity > 0 {
		item.Quantity = stripe.Int64(req.Quantity)
	}
	params := &stripe.CheckoutSessionParams{
		Customer:   stripe.String(req.CustomerID),
		SuccessURL: stripe.String(req.SuccessURL),
		Mode:       stripe.String(string(req.Mode)),
		LineItems:  []*stripe.CheckoutSessionLineItemParams{item},
	}
	params.Context = ctx
	params.AddMetadata("tool", req.Tool)
	return c.sc.CheckoutSessions.New(params)
}

func (c *StripeClient) CompletedCheckouts(ctx context.Context, customerID string) ([]*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.CheckoutSessionStatusComplete)),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(checkoutListLimit)

	var sessions []*stripe.CheckoutSession
	iter := c.sc.CheckoutSessions.List(params)
	for len(sessions) < checkoutListLimit && iter.Next() {
		sessions = append(sessions, iter.CheckoutSession())
	}
	return sessions, iter.Err()
}

func (c *StripeClient) MeterEvent(ctx context.Context, eventName, customerID string) error {
	params := &stripe.BillingMeterEventParams{
		EventName: stripe.String(eventName),
		Payload: map[string]string{
			"stripe_customer_id": customerID,
			"value":              "1",
		},
	}
	params.Context = ctx
	_, err := c.sc.BillingMeterEvents.New(params)
	return err
}

// errorMessage returns the human readable part of a Stripe error. The SDK's
// Error() renders the whole error object as JSON.
func errorMessage(err error) string {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return stripeErr.Msg
	}
	return err.Error()
}
