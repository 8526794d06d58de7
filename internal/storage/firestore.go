package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/dgellow/mcp-boilerplate/internal/emailutil"
	"github.com/dgellow/mcp-boilerplate/internal/log"
	"github.com/ory/fosite"
	"github.com/ory/fosite/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const usersCollection = "mcp_boilerplate_users"

// FirestoreStorage persists registered clients and users in Firestore.
// Issued tokens stay in the embedded MemoryStore.
//
// Error handling strategy:
// - Reads return errors, the auth flow cannot proceed on missing data
// - Client writes log and fall back to the in-memory cache
type FirestoreStorage struct {
	*storage.MemoryStore
	client       *firestore.Client
	collection   string
	clients      map[string]*Client
	clientsMutex sync.RWMutex
}

var _ Storage = (*FirestoreStorage)(nil)

// OAuthClientEntity is the Firestore document for a registered client.
type OAuthClientEntity struct {
	ID            string   `firestore:"id"`
	Secret        []byte   `firestore:"secret,omitempty"` // bcrypt hash
	RedirectURIs  []string `firestore:"redirect_uris"`
	Scopes        []string `firestore:"scopes"`
	GrantTypes    []string `firestore:"grant_types"`
	ResponseTypes []string `firestore:"response_types"`
	Audience      []string `firestore:"audience"`
	Public        bool     `firestore:"public"`
	Name          string   `firestore:"client_name,omitempty"`
	URI           string   `firestore:"client_uri,omitempty"`
	PolicyURI     string   `firestore:"policy_uri,omitempty"`
	TOSURI        string   `firestore:"tos_uri,omitempty"`
	Contacts      []string `firestore:"contacts,omitempty"`
	CreatedAt     int64    `firestore:"created_at"`
}

// UserDoc is the Firestore document for a user, keyed by normalized email.
type UserDoc struct {
	Email            string    `firestore:"email"`
	Name             string    `firestore:"name"`
	StripeCustomerID string    `firestore:"stripe_customer_id,omitempty"`
	FirstSeen        time.Time `firestore:"first_seen"`
	LastSeen         time.Time `firestore:"last_seen"`
}

func clientToEntity(c *Client) *OAuthClientEntity {
	return &OAuthClientEntity{
		ID:            c.ID,
		Secret:        c.Secret,
		RedirectURIs:  c.RedirectURIs,
		Scopes:        c.Scopes,
		GrantTypes:    c.GrantTypes,
		ResponseTypes: c.ResponseTypes,
		Audience:      c.Audience,
		Public:        c.Public,
		Name:          c.Name,
		URI:           c.URI,
		PolicyURI:     c.PolicyURI,
		TOSURI:        c.TOSURI,
		Contacts:      c.Contacts,
		CreatedAt:     c.CreatedAt,
	}
}

func (e *OAuthClientEntity) toClient() *Client {
	return &Client{
		ID:            e.ID,
		Secret:        e.Secret,
		RedirectURIs:  e.RedirectURIs,
		Scopes:        e.Scopes,
		GrantTypes:    e.GrantTypes,
		ResponseTypes: e.ResponseTypes,
		Audience:      e.Audience,
		Public:        e.Public,
		Name:          e.Name,
		URI:           e.URI,
		PolicyURI:     e.PolicyURI,
		TOSURI:        e.TOSURI,
		Contacts:      e.Contacts,
		CreatedAt:     e.CreatedAt,
	}
}

// NewFirestoreStorage connects to Firestore and warms the client cache.
func NewFirestoreStorage(ctx context.Context, projectID, database, collection string) (*FirestoreStorage, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection is required")
	}

	var client *firestore.Client
	var err error
	if database != "" && database != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	s := &FirestoreStorage{
		MemoryStore: storage.NewMemoryStore(),
		client:      client,
		collection:  collection,
		clients:     make(map[string]*Client),
	}

	if err := s.loadClients(ctx); err != nil {
		// Not fatal, clients are loaded lazily on cache miss.
		log.LogError("Failed to load clients from Firestore: %v", err)
	}
	return s, nil
}

func (s *FirestoreStorage) loadClients(ctx context.Context) error {
	iter := s.client.Collection(s.collection).Documents(ctx)
	defer iter.Stop()

	s.clientsMutex.Lock()
	defer s.clientsMutex.Unlock()

	loaded := 0
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return fmt.Errorf("iterating Firestore documents: %w", err)
		}

		var entity OAuthClientEntity
		if err := doc.DataTo(&entity); err != nil {
			log.LogError("Failed to unmarshal client from Firestore (client_id: %s): %v", doc.Ref.ID, err)
			continue
		}
		s.clients[entity.ID] = entity.toClient()
		loaded++
	}

	log.Logf("Loaded %d OAuth clients from Firestore", loaded)
	return nil
}

func (s *FirestoreStorage) GetClient(ctx context.Context, id string) (fosite.Client, error) {
	client, err := s.GetClientWithMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	return client.ToFositeClient(), nil
}

// GetClientWithMetadata reads through the cache. Concurrent misses for a
// freshly registered client may each read Firestore; the reads are
// idempotent.
func (s *FirestoreStorage) GetClientWithMetadata(ctx context.Context, clientID string) (*Client, error) {
	s.clientsMutex.RLock()
	cached, ok := s.clients[clientID]
	s.clientsMutex.RUnlock()
	if ok {
		copied := *cached
		return &copied, nil
	}

	doc, err := s.client.Collection(s.collection).Doc(clientID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fosite.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get client from Firestore: %w", err)
	}

	var entity OAuthClientEntity
	if err := doc.DataTo(&entity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal client: %w", err)
	}

	client := entity.toClient()
	s.clientsMutex.Lock()
	s.clients[clientID] = client
	s.clientsMutex.Unlock()

	copied := *client
	return &copied, nil
}

func (s *FirestoreStorage) CreateClient(ctx context.Context, client *Client) error {
	if client.CreatedAt == 0 {
		client.CreatedAt = time.Now().Unix()
	}

	if _, err := s.client.Collection(s.collection).Doc(client.ID).Set(ctx, clientToEntity(client)); err != nil {
		log.LogErrorWithFields("storage", "Failed to store client in Firestore", map[string]any{
			"client_id": client.ID,
			"error":     err.Error(),
		})
	}

	stored := *client
	s.clientsMutex.Lock()
	s.clients[client.ID] = &stored
	s.clientsMutex.Unlock()

	log.LogInfoWithFields("storage", "Registered client", map[string]any{
		"client_id": client.ID,
		"public":    client.Public,
	})
	return nil
}

func (s *FirestoreStorage) UpsertUser(ctx context.Context, email, name string) error {
	email = emailutil.Normalize(email)
	ref := s.client.Collection(usersCollection).Doc(email)
	now := time.Now()

	_, err := ref.Get(ctx)
	if err == nil {
		updates := []firestore.Update{{Path: "last_seen", Value: now}}
		if name != "" {
			updates = append(updates, firestore.Update{Path: "name", Value: name})
		}
		_, err = ref.Update(ctx, updates)
		return err
	}
	if status.Code(err) == codes.NotFound {
		_, err = ref.Set(ctx, UserDoc{Email: email, Name: name, FirstSeen: now, LastSeen: now})
		return err
	}
	return err
}

func (s *FirestoreStorage) GetUser(ctx context.Context, email string) (*User, error) {
	doc, err := s.client.Collection(usersCollection).Doc(emailutil.Normalize(email)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var userDoc UserDoc
	if err := doc.DataTo(&userDoc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	user := User(userDoc)
	return &user, nil
}

func (s *FirestoreStorage) SetStripeCustomerID(ctx context.Context, email, customerID string) error {
	_, err := s.client.Collection(usersCollection).Doc(emailutil.Normalize(email)).Update(ctx, []firestore.Update{
		{Path: "stripe_customer_id", Value: customerID},
	})
	if status.Code(err) == codes.NotFound {
		return ErrUserNotFound
	}
	return err
}

func (s *FirestoreStorage) Close() error {
	return s.client.Close()
}
