package oauth

import (
	"strings"
	"testing"
	"time"

	"github.com/dgellow/mcp-boilerplate/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOAuthProvider(t *testing.T) {
	t.Run("valid configuration", func(t *testing.T) {
		provider, err := NewOAuthProvider(ProviderConfig{
			Issuer:        "https://test.example.com",
			TokenTTL:      time.Hour,
			SigningSecret: []byte(strings.Repeat("a", 32)),
		}, storage.NewMemoryStorage())
		require.NoError(t, err)
		require.NotNil(t, provider)
	})

	t.Run("signing secret too short", func(t *testing.T) {
		provider, err := NewOAuthProvider(ProviderConfig{
			Issuer:        "https://test.example.com",
			SigningSecret: []byte("short"),
		}, storage.NewMemoryStorage())
		require.Error(t, err)
		assert.Nil(t, provider)
		assert.Contains(t, err.Error(), "at least 32 bytes")
	})

	t.Run("invalid issuer", func(t *testing.T) {
		_, err := NewOAuthProvider(ProviderConfig{
			Issuer:        "://invalid",
			SigningSecret: []byte(strings.Repeat("a", 32)),
		}, storage.NewMemoryStorage())
		assert.Error(t, err)
	})
}

func TestGenerateSigningSecret(t *testing.T) {
	t.Run("provided secret is used", func(t *testing.T) {
		provided := strings.Repeat("a", 32)
		secret, err := GenerateSigningSecret(provided)
		require.NoError(t, err)
		assert.Equal(t, []byte(provided), secret)
	})

	t.Run("provided secret too short", func(t *testing.T) {
		_, err := GenerateSigningSecret("short")
		assert.Error(t, err)
	})

	t.Run("generated secrets are random", func(t *testing.T) {
		secret1, err1 := GenerateSigningSecret("")
		secret2, err2 := GenerateSigningSecret("")

		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.Len(t, secret1, 32)
		assert.NotEqual(t, secret1, secret2)
	})
}
