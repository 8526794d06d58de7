package oauth

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/dgellow/mcp-boilerplate/internal/log"
	"github.com/dgellow/mcp-boilerplate/internal/urlutil"
	"github.com/ory/fosite"
	"github.com/ory/fosite/compose"
)

// ProviderConfig configures the fosite OAuth 2.1 provider.
type ProviderConfig struct {
	Issuer         string
	TokenTTL       time.Duration
	SigningSecret  []byte
	RelaxedEntropy bool
}

// NewOAuthProvider builds a fosite provider with the authorization code,
// PKCE, refresh token and introspection handlers. store must provide
// fosite's client and token storages, as storage.MemoryStorage and
// storage.FirestoreStorage do.
func NewOAuthProvider(cfg ProviderConfig, store fosite.Storage) (fosite.OAuth2Provider, error) {
	if len(cfg.SigningSecret) < 32 {
		return nil, fmt.Errorf("signing secret must be at least 32 bytes long for security, got %d bytes", len(cfg.SigningSecret))
	}
	tokenTTL := cfg.TokenTTL
	if tokenTTL == 0 {
		tokenTTL = time.Hour
	}
	tokenURL, err := urlutil.JoinPath(cfg.Issuer, "token")
	if err != nil {
		return nil, fmt.Errorf("invalid issuer: %w", err)
	}

	minEntropy := 8
	if cfg.RelaxedEntropy {
		minEntropy = 0
		log.LogWarn("Development mode enabled - OAuth state entropy check disabled")
	}

	fositeConfig := &fosite.Config{
		GlobalSecret:                   cfg.SigningSecret,
		AccessTokenLifespan:            tokenTTL,
		RefreshTokenLifespan:           tokenTTL * 24 * 30,
		AuthorizeCodeLifespan:          10 * time.Minute,
		TokenURL:                       tokenURL,
		ScopeStrategy:                  fosite.HierarchicScopeStrategy,
		AudienceMatchingStrategy:       fosite.DefaultAudienceMatchingStrategy,
		EnforcePKCEForPublicClients:    true,
		EnablePKCEPlainChallengeMethod: false,
		MinParameterEntropy:            minEntropy,
	}

	return compose.Compose(
		fositeConfig,
		store,
		&compose.CommonStrategy{
			CoreStrategy: compose.NewOAuth2HMACStrategy(fositeConfig),
		},
		compose.OAuth2AuthorizeExplicitFactory,
		compose.OAuth2PKCEFactory,
		compose.OAuth2RefreshTokenGrantFactory,
		compose.OAuth2TokenIntrospectionFactory,
		compose.OAuth2TokenRevocationFactory,
	), nil
}

// GenerateSigningSecret returns the configured secret, or a random one
// when none is set. Random secrets invalidate tokens on restart.
func GenerateSigningSecret(provided string) ([]byte, error) {
	if provided != "" {
		if len(provided) < 32 {
			return nil, fmt.Errorf("signing secret must be at least 32 bytes long for security, got %d bytes", len(provided))
		}
		return []byte(provided), nil
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate signing secret: %w", err)
	}
	log.LogWarn("Generated random JWT secret. Set auth.jwtSecret for tokens that survive restarts")
	return secret, nil
}
