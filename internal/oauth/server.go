package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgellow/mcp-boilerplate/internal/log"
	"github.com/dgellow/mcp-boilerplate/internal/oauthsession"
	"github.com/dgellow/mcp-boilerplate/internal/storage"
	"github.com/ory/fosite"
)

// ErrMissingClientID is returned when a relayed request has no client.
var ErrMissingClientID = errors.New("authorization request has no client id")

// Server implements AuthorizationServer on top of fosite.
type Server struct {
	provider fosite.OAuth2Provider
	store    storage.Storage
}

var _ AuthorizationServer = (*Server)(nil)

func NewServer(provider fosite.OAuth2Provider, store storage.Storage) *Server {
	return &Server{provider: provider, store: store}
}

// ParseAuthRequest validates the incoming request with fosite (client,
// redirect_uri, response_type, scopes, state entropy) and flattens it into
// a relayable AuthRequest. Errors are fosite RFC 6749 errors.
func (s *Server) ParseAuthRequest(ctx context.Context, r *http.Request) (*AuthRequest, error) {
	ar, err := s.provider.NewAuthorizeRequest(ctx, r)
	if err != nil {
		return nil, err
	}

	form := ar.GetRequestForm()
	return &AuthRequest{
		ResponseType:        strings.Join(ar.GetResponseTypes(), " "),
		ClientID:            ar.GetClient().GetID(),
		RedirectURI:         form.Get("redirect_uri"),
		Scope:               []string(ar.GetRequestedScopes()),
		State:               ar.GetState(),
		CodeChallenge:       form.Get("code_challenge"),
		CodeChallengeMethod: form.Get("code_challenge_method"),
	}, nil
}

func (s *Server) LookupClient(ctx context.Context, clientID string) (*ClientInfo, error) {
	client, err := s.store.GetClientWithMetadata(ctx, clientID)
	if err != nil {
		return nil, err
	}

	method := "client_secret_post"
	if client.Public {
		method = "none"
	}
	return &ClientInfo{
		ClientID:                client.ID,
		ClientName:              client.Name,
		ClientURI:               client.URI,
		PolicyURI:               client.PolicyURI,
		TOSURI:                  client.TOSURI,
		Contacts:                client.Contacts,
		RedirectURIs:            client.RedirectURIs,
		TokenEndpointAuthMethod: method,
	}, nil
}

// CompleteAuthorization rebuilds the fosite authorize request from the
// relayed descriptor, issues the code and returns the client redirect.
// The relayed state is not signed, so the client and redirect URI are
// validated again against the registration here.
func (s *Server) CompleteAuthorization(ctx context.Context, c Completion) (string, error) {
	if c.Request == nil || c.Request.ClientID == "" {
		return "", ErrMissingClientID
	}

	client, err := s.store.GetClient(ctx, c.Request.ClientID)
	if err != nil {
		return "", fmt.Errorf("loading client %s: %w", c.Request.ClientID, err)
	}

	redirectURI, err := fosite.MatchRedirectURIWithClientRedirectURIs(c.Request.RedirectURI, client)
	if err != nil {
		return "", fmt.Errorf("redirect uri: %w", err)
	}

	ar := fosite.NewAuthorizeRequest()
	ar.Client = client
	ar.RedirectURI = redirectURI
	ar.State = c.Request.State
	ar.ResponseTypes = fosite.Arguments(strings.Fields(c.Request.ResponseType))
	ar.RequestedAt = time.Now().UTC()
	ar.Form = relayedForm(c.Request)
	for _, scope := range c.Request.Scope {
		ar.AppendRequestedScope(scope)
	}
	for _, scope := range c.Scope {
		ar.GrantScope(scope)
	}

	session := oauthsession.New(c.UserID, c.Metadata.Label, c.Props)
	resp, err := s.provider.NewAuthorizeResponse(ctx, ar, session)
	if err != nil {
		return "", err
	}

	log.LogInfoWithFields("oauth", "Authorization code issued", map[string]any{
		"client_id": client.GetID(),
		"subject":   c.UserID,
		"scopes":    []string(ar.GetGrantedScopes()),
	})

	return withParameters(redirectURI, resp.GetParameters()), nil
}

// relayedForm restores the form values fosite's handlers read back when
// the code is redeemed (redirect_uri equality, PKCE challenge).
func relayedForm(req *AuthRequest) url.Values {
	form := url.Values{}
	form.Set("client_id", req.ClientID)
	form.Set("response_type", req.ResponseType)
	if req.RedirectURI != "" {
		form.Set("redirect_uri", req.RedirectURI)
	}
	if len(req.Scope) > 0 {
		form.Set("scope", strings.Join(req.Scope, " "))
	}
	if req.State != "" {
		form.Set("state", req.State)
	}
	if req.CodeChallenge != "" {
		form.Set("code_challenge", req.CodeChallenge)
		form.Set("code_challenge_method", req.CodeChallengeMethod)
	}
	return form
}

func withParameters(u *url.URL, params url.Values) string {
	redirect := *u
	q := redirect.Query()
	for key, values := range params {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	redirect.RawQuery = q.Encode()
	return redirect.String()
}
