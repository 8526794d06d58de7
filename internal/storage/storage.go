package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ory/fosite"
)

// ErrUserNotFound is returned when a user doesn't exist
var ErrUserNotFound = errors.New("user not found")

// User is a person who has completed the Google login at least once.
type User struct {
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	StripeCustomerID string    `json:"stripe_customer_id,omitempty"`
	FirstSeen        time.Time `json:"first_seen"`
	LastSeen         time.Time `json:"last_seen"`
}

// Storage combines fosite's token storage with the client registry and
// user records. Token storage itself comes from the embedded fosite
// MemoryStore in both implementations; compose.Compose type-asserts the
// store for each grant it needs.
type Storage interface {
	fosite.ClientManager

	CreateClient(ctx context.Context, client *Client) error
	GetClientWithMetadata(ctx context.Context, clientID string) (*Client, error)

	// UpsertUser records a login. Name is refreshed, FirstSeen is kept.
	UpsertUser(ctx context.Context, email, name string) error
	GetUser(ctx context.Context, email string) (*User, error)
	SetStripeCustomerID(ctx context.Context, email, customerID string) error

	Close() error
}
