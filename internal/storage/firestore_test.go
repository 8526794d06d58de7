package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirestoreStorageConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("missing GCP project ID", func(t *testing.T) {
		_, err := NewFirestoreStorage(ctx, "", "(default)", "clients")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "projectID is required")
	})

	t.Run("missing collection", func(t *testing.T) {
		_, err := NewFirestoreStorage(ctx, "test-project", "(default)", "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "collection is required")
	})
}

func TestOAuthClientEntityRoundTrip(t *testing.T) {
	client := &Client{
		ID:            "abc",
		Secret:        []byte("hash"),
		RedirectURIs:  []string{"https://app.example.com/cb"},
		Scopes:        []string{"read", "write"},
		GrantTypes:    []string{"authorization_code", "refresh_token"},
		ResponseTypes: []string{"code"},
		Audience:      []string{"https://mcp.example.com"},
		Name:          "App",
		URI:           "https://app.example.com",
		PolicyURI:     "https://app.example.com/privacy",
		TOSURI:        "https://app.example.com/tos",
		Contacts:      []string{"a@example.com"},
		CreatedAt:     42,
	}

	assert.Equal(t, client, clientToEntity(client).toClient())
}
