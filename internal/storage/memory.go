package storage

import (
	"context"
	"sync"
	"time"

	"github.com/dgellow/mcp-boilerplate/internal/emailutil"
	"github.com/dgellow/mcp-boilerplate/internal/log"
	"github.com/ory/fosite"
	"github.com/ory/fosite/storage"
)

var _ Storage = (*MemoryStorage)(nil)

// MemoryStorage keeps everything in process. Tokens live in the embedded
// fosite MemoryStore, clients and users in mutex-guarded maps.
type MemoryStorage struct {
	*storage.MemoryStore
	clients      map[string]*Client
	clientsMutex sync.RWMutex
	users        map[string]*User
	usersMutex   sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		MemoryStore: storage.NewMemoryStore(),
		clients:     make(map[string]*Client),
		users:       make(map[string]*User),
	}
}

// GetClient implements fosite.ClientManager
func (s *MemoryStorage) GetClient(_ context.Context, id string) (fosite.Client, error) {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()

	client, ok := s.clients[id]
	if !ok {
		return nil, fosite.ErrNotFound
	}
	return client.ToFositeClient(), nil
}

func (s *MemoryStorage) GetClientWithMetadata(_ context.Context, clientID string) (*Client, error) {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()

	client, ok := s.clients[clientID]
	if !ok {
		return nil, fosite.ErrNotFound
	}
	copied := *client
	return &copied, nil
}

func (s *MemoryStorage) CreateClient(_ context.Context, client *Client) error {
	if client.CreatedAt == 0 {
		client.CreatedAt = time.Now().Unix()
	}
	stored := *client

	s.clientsMutex.Lock()
	s.clients[client.ID] = &stored
	count := len(s.clients)
	s.clientsMutex.Unlock()

	log.LogInfoWithFields("storage", "Registered client", map[string]any{
		"client_id":     client.ID,
		"public":        client.Public,
		"redirect_uris": client.RedirectURIs,
		"total":         count,
	})
	return nil
}

func (s *MemoryStorage) UpsertUser(_ context.Context, email, name string) error {
	email = emailutil.Normalize(email)
	now := time.Now()

	s.usersMutex.Lock()
	defer s.usersMutex.Unlock()

	if user, ok := s.users[email]; ok {
		user.LastSeen = now
		if name != "" {
			user.Name = name
		}
		return nil
	}
	s.users[email] = &User{Email: email, Name: name, FirstSeen: now, LastSeen: now}
	return nil
}

func (s *MemoryStorage) GetUser(_ context.Context, email string) (*User, error) {
	s.usersMutex.RLock()
	defer s.usersMutex.RUnlock()

	user, ok := s.users[emailutil.Normalize(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *MemoryStorage) SetStripeCustomerID(_ context.Context, email, customerID string) error {
	s.usersMutex.Lock()
	defer s.usersMutex.Unlock()

	user, ok := s.users[emailutil.Normalize(email)]
	if !ok {
		return ErrUserNotFound
	}
	user.StripeCustomerID = customerID
	return nil
}

func (s *MemoryStorage) Close() error { return nil }
