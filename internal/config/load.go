package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dgellow/mcp-boilerplate/internal/log"
)

const (
	// VersionPrefix is the accepted config version, optionally followed by
	// a "-<variant>" suffix.
	VersionPrefix = "v0.0.1-DEV_EDITION"

	DefaultName     = "MCP Boilerplate"
	DefaultProvider = "google"
	DefaultAddr     = ":8080"
	DefaultTokenTTL = time.Hour
)

// secretFields must be given as {"$env": "VAR"} references, per section.
var secretFields = map[string][]string{
	"auth":   {"googleClientSecret", "cookieEncryptionKey", "jwtSecret"},
	"stripe": {"secretKey", "webhookSecret"},
}

// Load loads and processes the config with immediate env var resolution
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse is Load for an in-memory config document.
func Parse(data []byte) (Config, error) {
	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if !strings.HasPrefix(version, VersionPrefix) {
		return Config{}, fmt.Errorf("unsupported config version: %s", version)
	}

	if err := validateRawConfig(rawConfig); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	// The custom UnmarshalJSON methods resolve env vars immediately
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&config)

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validateRawConfig rejects secrets written inline, before env resolution
func validateRawConfig(rawConfig map[string]any) error {
	for section, names := range secretFields {
		values, ok := rawConfig[section].(map[string]any)
		if !ok {
			continue
		}
		for _, name := range names {
			value, exists := values[name]
			if !exists {
				continue
			}
			if err := validateEnvVarReference(value, name, section+"."+name); err != nil {
				return fmt.Errorf("%s: %s", err.Path, err.Message)
			}
		}
	}
	return nil
}

func applyDefaults(config *Config) {
	if config.Server.Name == "" {
		config.Server.Name = DefaultName
	}
	if config.Server.Provider == "" {
		config.Server.Provider = DefaultProvider
	}
	if config.Server.Addr == "" {
		config.Server.Addr = DefaultAddr
	}
	if config.Auth.TokenTTL == 0 {
		config.Auth.TokenTTL = DefaultTokenTTL
	}
	if config.Auth.Storage == "" {
		config.Auth.Storage = StorageMemory
	}
	if config.Auth.GoogleRedirectURI == "" && config.Server.BaseURL != "" {
		config.Auth.GoogleRedirectURI = config.Server.BaseURL + "/callback"
	}
}

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	if config.Server.BaseURL == "" {
		return fmt.Errorf("server.baseURL is required")
	}
	u, err := url.Parse(config.Server.BaseURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("server.baseURL must be an absolute URL, got %q", config.Server.BaseURL)
	}
	if config.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	if err := validateAuthConfig(&config.Auth); err != nil {
		return fmt.Errorf("auth config: %w", err)
	}

	if config.Stripe != nil {
		if err := validateStripeConfig(config.Stripe); err != nil {
			return fmt.Errorf("stripe config: %w", err)
		}
	}

	return nil
}

func validateAuthConfig(auth *AuthConfig) error {
	if auth.GoogleClientID == "" {
		return fmt.Errorf("googleClientId is required")
	}
	if auth.GoogleClientSecret == "" {
		return fmt.Errorf("googleClientSecret is required")
	}
	if auth.CookieEncryptionKey == "" {
		return fmt.Errorf("cookieEncryptionKey is required. Generate with: openssl rand -hex 32")
	}
	if auth.JWTSecret != "" && len(auth.JWTSecret) < 32 {
		return fmt.Errorf("jwtSecret must be at least 32 characters (got %d). Generate with: openssl rand -base64 32", len(auth.JWTSecret))
	}
	if auth.TokenTTL < 0 {
		return fmt.Errorf("tokenTtl cannot be negative")
	}

	switch auth.Storage {
	case StorageMemory:
		if auth.JWTSecret == "" {
			log.LogWarn("No jwtSecret configured, tokens will not survive a restart")
		}
	case StorageFirestore:
		if auth.GCPProject == "" {
			return fmt.Errorf("gcpProject is required when using firestore storage")
		}
		if auth.JWTSecret == "" {
			return fmt.Errorf("jwtSecret is required when using firestore storage")
		}
	default:
		return fmt.Errorf("storage must be %q or %q, got %q", StorageMemory, StorageFirestore, auth.Storage)
	}
	return nil
}

func validateStripeConfig(stripe *StripeConfig) error {
	if stripe.SecretKey == "" {
		return fmt.Errorf("secretKey is required")
	}
	if stripe.WebhookSecret == "" {
		log.LogWarn("No stripe.webhookSecret configured, webhook requests will be rejected")
	}
	if stripe.OneTimePriceID == "" && stripe.SubscriptionPriceID == "" && stripe.MeteredPriceID == "" {
		log.LogWarn("No Stripe price configured, paid tools are disabled")
	}
	return nil
}
