package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dgellow/mcp-boilerplate/internal/emailutil"
)

type fieldRef struct {
	name string
	raw  json.RawMessage
	set  func(string)
}

func resolveFields(fields ...fieldRef) error {
	for _, f := range fields {
		value, err := parseField(f.raw, f.name)
		if err != nil {
			return err
		}
		f.set(value)
	}
	return nil
}

// UnmarshalJSON implements custom unmarshaling for ServerConfig
func (s *ServerConfig) UnmarshalJSON(data []byte) error {
	type rawServer struct {
		Name           string          `json:"name"`
		Description    string          `json:"description"`
		Logo           string          `json:"logo"`
		Provider       string          `json:"provider"`
		Addr           json.RawMessage `json:"addr"`
		BaseURL        json.RawMessage `json:"baseURL"`
		AllowedOrigins []string        `json:"allowedOrigins"`
	}

	var raw rawServer
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Name = raw.Name
	s.Description = raw.Description
	s.Logo = raw.Logo
	s.Provider = raw.Provider
	s.AllowedOrigins = raw.AllowedOrigins

	return resolveFields(
		fieldRef{"addr", raw.Addr, func(v string) { s.Addr = v }},
		fieldRef{"baseURL", raw.BaseURL, func(v string) { s.BaseURL = strings.TrimSuffix(v, "/") }},
	)
}

// UnmarshalJSON implements custom unmarshaling for AuthConfig
func (a *AuthConfig) UnmarshalJSON(data []byte) error {
	type rawAuth struct {
		GoogleClientID      json.RawMessage `json:"googleClientId"`
		GoogleClientSecret  json.RawMessage `json:"googleClientSecret"`
		GoogleRedirectURI   json.RawMessage `json:"googleRedirectUri"`
		HostedDomain        string          `json:"hostedDomain"`
		CookieEncryptionKey json.RawMessage `json:"cookieEncryptionKey"`
		JWTSecret           json.RawMessage `json:"jwtSecret"`
		TokenTTL            string          `json:"tokenTtl"`
		Storage             StorageKind     `json:"storage"`
		GCPProject          json.RawMessage `json:"gcpProject"`
		FirestoreDatabase   string          `json:"firestoreDatabase"`
		FirestoreCollection string          `json:"firestoreCollection"`
	}

	var raw rawAuth
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	a.HostedDomain = emailutil.Normalize(raw.HostedDomain)
	a.Storage = raw.Storage
	a.FirestoreDatabase = raw.FirestoreDatabase
	a.FirestoreCollection = raw.FirestoreCollection

	if raw.TokenTTL != "" {
		tokenTTL, err := time.ParseDuration(raw.TokenTTL)
		if err != nil {
			return fmt.Errorf("parsing tokenTtl: %w", err)
		}
		a.TokenTTL = tokenTTL
	}

	return resolveFields(
		fieldRef{"googleClientId", raw.GoogleClientID, func(v string) { a.GoogleClientID = v }},
		fieldRef{"googleClientSecret", raw.GoogleClientSecret, func(v string) { a.GoogleClientSecret = Secret(v) }},
		fieldRef{"googleRedirectUri", raw.GoogleRedirectURI, func(v string) { a.GoogleRedirectURI = v }},
		fieldRef{"cookieEncryptionKey", raw.CookieEncryptionKey, func(v string) { a.CookieEncryptionKey = Secret(v) }},
		fieldRef{"jwtSecret", raw.JWTSecret, func(v string) { a.JWTSecret = Secret(v) }},
		fieldRef{"gcpProject", raw.GCPProject, func(v string) { a.GCPProject = v }},
	)
}

// UnmarshalJSON implements custom unmarshaling for StripeConfig
func (s *StripeConfig) UnmarshalJSON(data []byte) error {
	type rawStripe struct {
		SecretKey           json.RawMessage `json:"secretKey"`
		WebhookSecret       json.RawMessage `json:"webhookSecret"`
		OneTimePriceID      json.RawMessage `json:"oneTimePriceId"`
		SubscriptionPriceID json.RawMessage `json:"subscriptionPriceId"`
		MeteredPriceID      json.RawMessage `json:"meteredPriceId"`
		MeterEventName      string          `json:"meterEventName"`
	}

	var raw rawStripe
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.MeterEventName = raw.MeterEventName

	return resolveFields(
		fieldRef{"secretKey", raw.SecretKey, func(v string) { s.SecretKey = Secret(v) }},
		fieldRef{"webhookSecret", raw.WebhookSecret, func(v string) { s.WebhookSecret = Secret(v) }},
		fieldRef{"oneTimePriceId", raw.OneTimePriceID, func(v string) { s.OneTimePriceID = v }},
		fieldRef{"subscriptionPriceId", raw.SubscriptionPriceID, func(v string) { s.SubscriptionPriceID = v }},
		fieldRef{"meteredPriceId", raw.MeteredPriceID, func(v string) { s.MeteredPriceID = v }},
	)
}
