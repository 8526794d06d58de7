package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// StorageKind selects where clients, tokens and users are kept
type StorageKind string

const (
	StorageMemory    StorageKind = "memory"
	StorageFirestore StorageKind = "firestore"
)

// ServerConfig describes the public face of the server. BaseURL doubles
// as the OAuth issuer.
type ServerConfig struct {
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	Logo           string   `json:"logo,omitempty"`
	Provider       string   `json:"provider"`
	Addr           string   `json:"addr"`
	BaseURL        string   `json:"baseURL"`
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
}

// AuthConfig configures the Google login and the authorization server
type AuthConfig struct {
	GoogleClientID      string        `json:"googleClientId"`
	GoogleClientSecret  Secret        `json:"googleClientSecret"`
	GoogleRedirectURI   string        `json:"googleRedirectUri"`
	HostedDomain        string        `json:"hostedDomain,omitempty"`
	CookieEncryptionKey Secret        `json:"cookieEncryptionKey"`
	JWTSecret           Secret        `json:"jwtSecret,omitempty"`
	TokenTTL            time.Duration `json:"tokenTtl"`
	Storage             StorageKind   `json:"storage"`
	GCPProject          string        `json:"gcpProject,omitempty"`
	FirestoreDatabase   string        `json:"firestoreDatabase,omitempty"`
	FirestoreCollection string        `json:"firestoreCollection,omitempty"`
}

// StripeConfig enables the billing tools. Empty price ids leave the
// matching paid tool unregistered.
type StripeConfig struct {
	SecretKey           Secret `json:"secretKey"`
	WebhookSecret       Secret `json:"webhookSecret"`
	OneTimePriceID      string `json:"oneTimePriceId,omitempty"`
	SubscriptionPriceID string `json:"subscriptionPriceId,omitempty"`
	MeteredPriceID      string `json:"meteredPriceId,omitempty"`
	MeterEventName      string `json:"meterEventName,omitempty"`
}

// Config represents the config structure with resolved values
type Config struct {
	Version string        `json:"version"`
	Server  ServerConfig  `json:"server"`
	Auth    AuthConfig    `json:"auth"`
	Stripe  *StripeConfig `json:"stripe,omitempty"`
}

// ParseConfigValue parses a JSON value that is either a plain string or
// an {"$env": "VAR"} reference resolved immediately.
//
// The explicit JSON syntax is used instead of shell-style $VAR so config
// files can pass through startup scripts without accidental expansion.
func ParseConfigValue(raw json.RawMessage) (string, error) {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}

	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", fmt.Errorf("config value must be string or reference object")
	}

	envVar, ok := ref["$env"]
	if !ok {
		return "", fmt.Errorf("unknown reference type in config value")
	}
	value := os.Getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("environment variable %s not set", envVar)
	}
	// Strip surrounding quotes if present (only matching pairs)
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return value, nil
}

// parseField resolves an optional field, naming it in errors.
func parseField(raw json.RawMessage, name string) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	value, err := ParseConfigValue(raw)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", name, err)
	}
	return value, nil
}
