package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dgellow/mcp-boilerplate/internal/approval"
	"github.com/dgellow/mcp-boilerplate/internal/cookie"
	"github.com/dgellow/mcp-boilerplate/internal/crypto"
	"github.com/dgellow/mcp-boilerplate/internal/emailutil"
	"github.com/dgellow/mcp-boilerplate/internal/envutil"
	"github.com/dgellow/mcp-boilerplate/internal/idp"
	jsonwriter "github.com/dgellow/mcp-boilerplate/internal/json"
	"github.com/dgellow/mcp-boilerplate/internal/log"
	"github.com/dgellow/mcp-boilerplate/internal/metrics"
	"github.com/dgellow/mcp-boilerplate/internal/oauth"
	"github.com/dgellow/mcp-boilerplate/internal/oauthsession"
	"github.com/dgellow/mcp-boilerplate/internal/storage"
	"github.com/ory/fosite"
)

const upstreamTimeout = 30 * time.Second

var (
	registeredGrantTypes    = []string{"authorization_code", "refresh_token"}
	registeredResponseTypes = []string{"code"}
)

// AuthHandlersConfig holds the settings the OAuth handlers need.
type AuthHandlersConfig struct {
	Issuer       string
	CookieSecret string
	HostedDomain string
	Server       approval.ServerInfo
}

// AuthHandlers provides OAuth HTTP handlers with dependency injection
type AuthHandlers struct {
	authServer oauth.AuthorizationServer
	provider   fosite.OAuth2Provider
	idp        idp.Provider
	storage    storage.Storage
	config     AuthHandlersConfig
	metrics    *metrics.Metrics
}

// NewAuthHandlers creates new auth handlers with dependency injection
func NewAuthHandlers(
	authServer oauth.AuthorizationServer,
	provider fosite.OAuth2Provider,
	idpProvider idp.Provider,
	store storage.Storage,
	cfg AuthHandlersConfig,
	m *metrics.Metrics,
) *AuthHandlers {
	return &AuthHandlers{
		authServer: authServer,
		provider:   provider,
		idp:        idpProvider,
		storage:    store,
		config:     cfg,
		metrics:    m,
	}
}

// WellKnownHandler serves OAuth 2.0 Authorization Server Metadata (RFC 8414)
func (h *AuthHandlers) WellKnownHandler(w http.ResponseWriter, r *http.Request) {
	metadata, err := oauth.AuthorizationServerMetadata(h.config.Issuer)
	if err != nil {
		log.LogError("Failed to build authorization server metadata: %v", err)
		jsonwriter.WriteInternalServerError(w, "Internal server error")
		return
	}
	writeJSON(w, metadata)
}

// ProtectedResourceMetadataHandler serves OAuth 2.0 Protected Resource Metadata (RFC 9728)
func (h *AuthHandlers) ProtectedResourceMetadataHandler(w http.ResponseWriter, r *http.Request) {
	metadata, err := oauth.ProtectedResourceMetadata(h.config.Issuer)
	if err != nil {
		log.LogError("Failed to build protected resource metadata: %v", err)
		jsonwriter.WriteInternalServerError(w, "Internal server error")
		return
	}
	writeJSON(w, metadata)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.LogError("Failed to encode response: %v", err)
	}
}

// AuthorizeHandler shows the consent dialog on GET, unless the browser
// already approved the client, and accepts the dialog's form on POST.
// Both paths end with a redirect to Google.
func (h *AuthHandlers) AuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	if h.config.CookieSecret == "" {
		log.LogErrorWithFields("auth", "Cookie secret is not configured", nil)
		jsonwriter.WriteInternalServerError(w, "Server configuration error")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.authorizeGet(w, r)
	case http.MethodPost:
		h.authorizePost(w, r)
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AuthHandlers) authorizeGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Some MCP clients omit state, which fosite rejects
	if envutil.IsDev() && r.URL.Query().Get("state") == "" {
		generated, err := crypto.GenerateSecureToken()
		if err != nil {
			jsonwriter.WriteInternalServerError(w, "Internal server error")
			return
		}
		log.LogWarn("Development mode: generating state parameter for client without one")
		q := r.URL.Query()
		q.Set("state", generated)
		r.URL.RawQuery = q.Encode()
	}

	req, err := h.authServer.ParseAuthRequest(ctx, r)
	if err != nil {
		rfcErr := fosite.ErrorToRFC6749Error(err)
		log.LogErrorWithFields("auth", "Invalid authorization request", map[string]any{
			"error":       rfcErr.ErrorField,
			"description": rfcErr.GetDescription(),
		})
		jsonwriter.WriteError(w, rfcErr.CodeField, rfcErr.ErrorField, rfcErr.GetDescription())
		return
	}

	state := &approval.State{OAuthReqInfo: req}
	if approval.CheckPriorApproval(cookie.Header(r), req.ClientID, h.config.CookieSecret) {
		log.LogDebugWithFields("auth", "Client previously approved, skipping dialog", map[string]any{
			"client_id": req.ClientID,
		})
		h.redirectUpstream(w, r, state, nil)
		return
	}

	client, err := h.authServer.LookupClient(ctx, req.ClientID)
	if err != nil {
		log.LogErrorWithFields("auth", "Failed to load client", map[string]any{
			"client_id": req.ClientID,
			"error":     err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Failed to load client")
		return
	}

	approval.PresentConsent(w, r, approval.DialogOptions{
		Client: client,
		Server: h.config.Server,
		State:  state,
	})
}

func (h *AuthHandlers) authorizePost(w http.ResponseWriter, r *http.Request) {
	state, headers, err := approval.AcceptSubmission(r, h.config.CookieSecret)
	switch {
	case errors.Is(err, approval.ErrEmptySecret):
		log.LogError("Cookie secret is not configured")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	case errors.Is(err, approval.ErrMethodNotAllowed):
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	case err != nil:
		log.LogWarn("Rejected consent submission: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.redirectUpstream(w, r, state, headers)
}

// redirectUpstream sends the user agent to Google with the pending request
// as state, attaching headers (the approval cookie) when set.
func (h *AuthHandlers) redirectUpstream(w http.ResponseWriter, r *http.Request, state *approval.State, headers http.Header) {
	encoded, err := approval.EncodeState(state)
	if err != nil {
		log.LogError("Failed to encode state: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	for key, values := range headers {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	http.Redirect(w, r, h.idp.AuthURL(encoded), http.StatusFound)
}

// CallbackHandler finishes the Google login and hands the identity over
// to the authorization server.
func (h *AuthHandlers) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errCode := query.Get("error"); errCode != "" {
		log.LogErrorWithFields("auth", "Google returned an error", map[string]any{
			"error":       errCode,
			"description": query.Get("error_description"),
		})
		h.countLogin("error")
		http.Error(w, "Authentication failed: "+errCode, http.StatusBadRequest)
		return
	}

	state, err := approval.DecodeState(query.Get("state"))
	if err != nil {
		log.LogWarn("Invalid callback state: %v", err)
		h.countLogin("error")
		http.Error(w, "Invalid state", http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		h.countLogin("error")
		http.Error(w, "Missing code", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), upstreamTimeout)
	defer cancel()

	token := h.idp.ExchangeCode(ctx, code)
	if token.Err != nil {
		h.countLogin("error")
		http.Error(w, token.Err.Message, token.Err.Status)
		return
	}

	profile, profileErr := h.idp.FetchProfile(ctx, token.Token)
	if profileErr != nil {
		h.countLogin("error")
		http.Error(w, profileErr.Message, profileErr.Status)
		return
	}

	if profile.ID == "" {
		h.countLogin("error")
		http.Error(w, "Missing user id", http.StatusBadRequest)
		return
	}

	if h.config.HostedDomain != "" && !emailutil.InDomain(profile.Email, h.config.HostedDomain) {
		log.LogWarnWithFields("auth", "Login outside the hosted domain", map[string]any{
			"email":  profile.Email,
			"domain": h.config.HostedDomain,
		})
		h.countLogin("denied")
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	if err := h.storage.UpsertUser(ctx, profile.Email, profile.Name); err != nil {
		log.LogWarnWithFields("auth", "Failed to track user", map[string]any{
			"email": profile.Email,
			"error": err.Error(),
		})
	}

	label := profile.Name
	if label == "" {
		label = profile.Email
	}
	redirectTo, err := h.authServer.CompleteAuthorization(ctx, oauth.Completion{
		Request:  state.OAuthReqInfo,
		UserID:   profile.ID,
		Metadata: oauth.CompletionMetadata{Label: label},
		Scope:    state.OAuthReqInfo.Scope,
		Props: oauthsession.Props{
			Name:        profile.Name,
			Email:       profile.Email,
			UserEmail:   profile.Email,
			AccessToken: token.Token,
		},
	})
	if err != nil {
		log.LogErrorWithFields("auth", "Failed to complete authorization", map[string]any{
			"client_id": state.ClientID(),
			"error":     err.Error(),
		})
		h.countLogin("error")
		rfcErr := fosite.ErrorToRFC6749Error(err)
		http.Error(w, fmt.Sprintf("Authorization failed: %s", rfcErr.GetDescription()), rfcErr.CodeField)
		return
	}

	h.countLogin("success")
	log.LogInfoWithFields("auth", "User logged in", map[string]any{
		"email":     profile.Email,
		"client_id": state.ClientID(),
	})
	http.Redirect(w, r, redirectTo, http.StatusFound)
}

func (h *AuthHandlers) countLogin(result string) {
	if h.metrics != nil {
		h.metrics.Logins.WithLabelValues(result).Inc()
	}
}

// TokenHandler handles OAuth 2.0 token requests
func (h *AuthHandlers) TokenHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// fosite fills the session from the stored authorization code
	accessRequest, err := h.provider.NewAccessRequest(ctx, r, oauthsession.Empty())
	if err != nil {
		log.LogError("Access request error: %v", err)
		h.provider.WriteAccessError(ctx, w, accessRequest, err)
		return
	}

	response, err := h.provider.NewAccessResponse(ctx, accessRequest)
	if err != nil {
		log.LogError("Access response error: %v", err)
		h.provider.WriteAccessError(ctx, w, accessRequest, err)
		return
	}

	h.provider.WriteAccessResponse(ctx, w, accessRequest, response)
}

// RegisterHandler handles dynamic client registration (RFC 7591)
func (h *AuthHandlers) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonwriter.WriteMethodNotAllowed(w)
		return
	}

	var metadata map[string]any
	if err := json.NewDecoder(r.Body).Decode(&metadata); err != nil {
		jsonwriter.WriteBadRequest(w, "Invalid request body")
		return
	}

	reg, err := oauth.ParseClientRegistration(metadata)
	if err != nil {
		log.LogError("Client registration parsing error: %v", err)
		jsonwriter.WriteError(w, http.StatusBadRequest, "invalid_client_metadata", err.Error())
		return
	}

	clientID, err := crypto.GenerateSecureToken()
	if err != nil {
		jsonwriter.WriteInternalServerError(w, "Failed to create client")
		return
	}

	client := &storage.Client{
		ID:            clientID,
		RedirectURIs:  reg.RedirectURIs,
		Scopes:        reg.Scopes,
		GrantTypes:    registeredGrantTypes,
		ResponseTypes: registeredResponseTypes,
		Audience:      []string{h.config.Issuer},
		Public:        reg.Public(),
		Name:          reg.ClientName,
		URI:           reg.ClientURI,
		PolicyURI:     reg.PolicyURI,
		TOSURI:        reg.TOSURI,
		Contacts:      reg.Contacts,
		CreatedAt:     time.Now().Unix(),
	}

	var plaintextSecret string
	if !reg.Public() {
		plaintextSecret, err = crypto.GenerateSecureToken()
		if err != nil {
			jsonwriter.WriteInternalServerError(w, "Failed to create client")
			return
		}
		client.Secret, err = crypto.HashClientSecret(plaintextSecret)
		if err != nil {
			log.LogError("Failed to hash client secret: %v", err)
			jsonwriter.WriteInternalServerError(w, "Failed to create client")
			return
		}
	}

	if err := h.storage.CreateClient(r.Context(), client); err != nil {
		log.LogError("Failed to create client: %v", err)
		jsonwriter.WriteInternalServerError(w, "Failed to create client")
		return
	}

	log.LogInfoWithFields("auth", "Client registered", map[string]any{
		"client_id":   clientID,
		"client_name": reg.ClientName,
		"auth_method": reg.TokenEndpointAuthMethod,
	})

	response := oauth.BuildClientMetadata(clientID, plaintextSecret, reg, client.GrantTypes, client.ResponseTypes, client.CreatedAt)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.LogError("Failed to encode registration response: %v", err)
	}
}
