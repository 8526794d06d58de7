package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgellow/mcp-boilerplate/internal/emailutil"
	"github.com/dgellow/mcp-boilerplate/internal/log"
	"github.com/dgellow/mcp-boilerplate/internal/storage"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNoCustomer is returned by Lookup when the email has no Stripe customer.
	ErrNoCustomer = errors.New("no stripe customer")
	ErrNoEmail    = errors.New("user email not available")
)

// UserStore is the part of storage.Storage that remembers customer ids.
type UserStore interface {
	GetUser(ctx context.Context, email string) (*storage.User, error)
	SetStripeCustomerID(ctx context.Context, email, customerID string) error
}

// Customers maps user emails to Stripe customer ids. Results are cached in
// process and persisted on the user record.
type Customers struct {
	api   API
	users UserStore
	cache sync.Map // normalized email -> customer id
	group singleflight.Group
}

func NewCustomers(api API, users UserStore) *Customers {
	return &Customers{api: api, users: users}
}

// Lookup returns the customer id for email without creating one.
func (c *Customers) Lookup(ctx context.Context, email string) (string, error) {
	return c.resolve(ctx, email, false)
}

// Ensure returns the customer id for email, creating the customer if needed.
func (c *Customers) Ensure(ctx context.Context, email string) (string, error) {
	return c.resolve(ctx, email, true)
}

func (c *Customers) resolve(ctx context.Context, email string, create bool) (string, error) {
	email = emailutil.Normalize(email)
	if email == "" {
		return "", ErrNoEmail
	}
	if id, ok := c.cache.Load(email); ok {
		return id.(string), nil
	}

	key := "lookup:" + email
	if create {
		key = "ensure:" + email
	}
	// The shared lookup outlives any single caller's cancellation.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		if id, ok := c.cache.Load(email); ok {
			return id.(string), nil
		}
		return c.fetch(shared, email, create)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Customers) fetch(ctx context.Context, email string, create bool) (string, error) {
	if c.users != nil {
		user, err := c.users.GetUser(ctx, email)
		switch {
		case err == nil && user.StripeCustomerID != "":
			c.cache.Store(email, user.StripeCustomerID)
			return user.StripeCustomerID, nil
		case err != nil && !errors.Is(err, storage.ErrUserNotFound):
			log.LogWarnWithFields("billing", "Failed to read user record", map[string]any{
				"email": email,
				"error": err.Error(),
			})
		}
	}

	customer, err := c.api.FindCustomerByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("finding customer: %w", err)
	}
	if customer == nil {
		if !create {
			return "", ErrNoCustomer
		}
		customer, err = c.api.CreateCustomer(ctx, email)
		if err != nil {
			return "", fmt.Errorf("creating customer: %w", err)
		}
		log.LogInfoWithFields("billing", "Created Stripe customer", map[string]any{
			"email":       email,
			"customer_id": customer.ID,
		})
	}

	c.remember(ctx, email, customer.ID)
	return customer.ID, nil
}

func (c *Customers) remember(ctx context.Context, email, customerID string) {
	c.cache.Store(email, customerID)
	if c.users == nil {
		return
	}
	if err := c.users.SetStripeCustomerID(ctx, email, customerID); err != nil {
		log.LogWarnWithFields("billing", "Failed to persist customer id", map[string]any{
			"email":       email,
			"customer_id": customerID,
			"error":       err.Error(),
		})
	}
}
