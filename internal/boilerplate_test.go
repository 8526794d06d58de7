package internal

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgellow/mcp-boilerplate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "https://mcp.example.com"

func testConfig(withStripe bool) config.Config {
	cfg := config.Config{
		Version: config.VersionPrefix,
		Server: config.ServerConfig{
			Name:     "Test Boilerplate",
			Provider: "google",
			Addr:     ":0",
			BaseURL:  testBaseURL,
		},
		Auth: config.AuthConfig{
			GoogleClientID:      "google-client",
			GoogleClientSecret:  "google-secret",
			GoogleRedirectURI:   testBaseURL + "/callback",
			CookieEncryptionKey: "cookie-key",
			JWTSecret:           "0123456789abcdef0123456789abcdef",
			TokenTTL:            time.Hour,
			Storage:             config.StorageMemory,
		},
	}
	if withStripe {
		cfg.Stripe = &config.StripeConfig{
			SecretKey:     "sk_test_123",
			WebhookSecret: "whsec_123",
		}
	}
	return cfg
}

func newTestHandler(t *testing.T, withStripe bool) http.Handler {
	t.Helper()
	app, err := New(context.Background(), testConfig(withStripe))
	require.NoError(t, err)
	return app.Handler()
}

func do(h http.Handler, method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	h := newTestHandler(t, true)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "health", method: http.MethodGet, path: "/health", wantStatus: http.StatusOK, wantBody: `"status":"ok"`},
		{name: "home", method: http.MethodGet, path: "/", wantStatus: http.StatusOK, wantBody: "Test Boilerplate"},
		{name: "unknown path", method: http.MethodGet, path: "/nope", wantStatus: http.StatusNotFound},
		{name: "payment success", method: http.MethodGet, path: "/payment/success", wantStatus: http.StatusOK, wantBody: "Payment successful"},
		{name: "webhook wrong method", method: http.MethodGet, path: "/webhooks/stripe", wantStatus: http.StatusMethodNotAllowed},
		{name: "webhook unsigned", method: http.MethodPost, path: "/webhooks/stripe", wantStatus: http.StatusBadRequest, wantBody: "No Stripe signature found"},
		{name: "protected resource metadata", method: http.MethodGet, path: "/.well-known/oauth-protected-resource", wantStatus: http.StatusOK, wantBody: testBaseURL},
		{name: "authorize unknown client", method: http.MethodGet, path: "/authorize?response_type=code&client_id=nobody&state=inspector-state-1234", wantStatus: http.StatusUnauthorized, wantBody: "invalid_client"},
		{name: "callback without state", method: http.MethodGet, path: "/callback/google?code=abc", wantStatus: http.StatusBadRequest, wantBody: "Invalid state"},
		{name: "register wrong method", method: http.MethodGet, path: "/register", wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, tt.method, tt.path, strings.NewReader("{}"))
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestWellKnownIssuer(t *testing.T) {
	h := newTestHandler(t, false)

	rec := do(h, http.MethodGet, "/.well-known/oauth-authorization-server", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var metadata map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &metadata))
	assert.Equal(t, testBaseURL, metadata["issuer"])
	assert.Equal(t, testBaseURL+"/authorize", metadata["authorization_endpoint"])
	assert.Equal(t, testBaseURL+"/token", metadata["token_endpoint"])
	assert.Equal(t, testBaseURL+"/register", metadata["registration_endpoint"])
}

func TestMCPEndpointsRequireBearerToken(t *testing.T) {
	h := newTestHandler(t, false)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/mcp"},
		{http.MethodGet, "/sse"},
		{http.MethodPost, "/message"},
	} {
		t.Run(tc.path, func(t *testing.T) {
			rec := do(h, tc.method, tc.path, strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t,
				`Bearer resource_metadata="`+testBaseURL+`/.well-known/oauth-protected-resource"`,
				rec.Header().Get("WWW-Authenticate"))
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader("{}"))
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid or expired token")
}

func TestWebhookDisabledWithoutStripe(t *testing.T) {
	h := newTestHandler(t, false)

	rec := do(h, http.MethodPost, "/webhooks/stripe", strings.NewReader("{}"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestHandler(t, false)

	do(h, http.MethodGet, "/", nil)

	rec := do(h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mcp_boilerplate_http_requests_total")
}

func TestNewRejectsShortSigningSecret(t *testing.T) {
	cfg := testConfig(false)
	cfg.Auth.JWTSecret = "short"

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to setup authentication")
}
