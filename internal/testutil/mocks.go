package testutil

import (
	"context"

	"github.com/dgellow/mcp-boilerplate/internal/billing"
	"github.com/dgellow/mcp-boilerplate/internal/storage"
	"github.com/stretchr/testify/mock"
	"github.com/stripe/stripe-go/v79"
)

type MockBillingAPI struct {
	mock.Mock
}

var _ billing.API = (*MockBillingAPI)(nil)

func (m *MockBillingAPI) FindCustomerByEmail(ctx context.Context, email string) (*stripe.Customer, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.Customer), args.Error(1)
}

func (m *MockBillingAPI) CreateCustomer(ctx context.Context, email string) (*stripe.Customer, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.Customer), args.Error(1)
}

func (m *MockBillingAPI) ActiveSubscriptions(ctx context.Context, customerID string) ([]*stripe.Subscription, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*stripe.Subscription), args.Error(1)
}

func (m *MockBillingAPI) Product(ctx context.Context, productID string) (*stripe.Product, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.Product), args.Error(1)
}

func (m *MockBillingAPI) Charges(ctx context.Context, customerID string) ([]*stripe.Charge, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*stripe.Charge), args.Error(1)
}

func (m *MockBillingAPI) PortalSession(ctx context.Context, customerID, returnURL string) (*stripe.BillingPortalSession, error) {
	args := m.Called(ctx, customerID, returnURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.BillingPortalSession), args.Error(1)
}

func (m *MockBillingAPI) CreateCheckout(ctx context.Context, req billing.CheckoutRequest) (*stripe.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.CheckoutSession), args.Error(1)
}

func (m *MockBillingAPI) CompletedCheckouts(ctx context.Context, customerID string) ([]*stripe.CheckoutSession, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*stripe.CheckoutSession), args.Error(1)
}

func (m *MockBillingAPI) MeterEvent(ctx context.Context, eventName, customerID string) error {
	args := m.Called(ctx, eventName, customerID)
	return args.Error(0)
}

// NewUserStore returns memory storage with the given users already logged in.
func NewUserStore(ctx context.Context, emails ...string) *storage.MemoryStorage {
	store := storage.NewMemoryStorage()
	for _, email := range emails {
		_ = store.UpsertUser(ctx, email, "")
	}
	return store
}

// Subscription builds an active subscription with one item per price.
func Subscription(id string, prices ...*stripe.Price) *stripe.Subscription {
	sub := &stripe.Subscription{
		ID:     id,
		Status: stripe.SubscriptionStatusActive,
		Items:  &stripe.SubscriptionItemList{},
	}
	for _, price := range prices {
		sub.Items.Data = append(sub.Items.Data, &stripe.SubscriptionItem{Price: price})
	}
	return sub
}

// Price builds a price for productID.
func Price(id, productID string) *stripe.Price {
	return &stripe.Price{ID: id, Product: &stripe.Product{ID: productID}}
}
