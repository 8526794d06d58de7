package integration

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"
)

const (
	fakeGooglePort = "9090"
	fakeGoogleURL  = "http://localhost:" + fakeGooglePort

	testUserEmail = "test@test.com"
	testUserName  = "Test User"
)

// FakeGoogleServer stands in for Google's OAuth and userinfo endpoints
type FakeGoogleServer struct {
	server *http.Server
}

// NewFakeGoogleServer creates a new fake Google server
func NewFakeGoogleServer(port string) *FakeGoogleServer {
	mux := http.NewServeMux()

	// Consent is implicit: redirect straight back with a code
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		redirectURI := r.URL.Query().Get("redirect_uri")
		q := url.Values{
			"code":  {"test-auth-code"},
			"state": {r.URL.Query().Get("state")},
		}
		http.Redirect(w, r, redirectURI+"?"+q.Encode(), http.StatusFound)
	})

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if r.FormValue("code") != "test-auth-code" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":             "invalid_grant",
				"error_description": "Invalid authorization code",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})

	mux.HandleFunc("/oauth2/v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-access-token" {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "1234567890",
			"email": testUserEmail,
			"name":  testUserName,
			"hd":    "test.com",
		})
	})

	return &FakeGoogleServer{
		server: &http.Server{
			Addr:              ":" + port,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start listens synchronously so the server is reachable on return
func (f *FakeGoogleServer) Start() error {
	ln, err := net.Listen("tcp", f.server.Addr)
	if err != nil {
		return err
	}
	go func() {
		if err := f.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(err)
		}
	}()
	return nil
}

// Stop stops the fake Google server
func (f *FakeGoogleServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return f.server.Shutdown(ctx)
}
