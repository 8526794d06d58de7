package oauth

import (
	"context"
	"net/http"

	"github.com/dgellow/mcp-boilerplate/internal/oauthsession"
)

// AuthRequest describes a pending authorization request. It is relayed
// as JSON through the consent form and the Google state parameter.
type AuthRequest struct {
	ResponseType        string   `json:"responseType"`
	ClientID            string   `json:"clientId"`
	RedirectURI         string   `json:"redirectUri"`
	Scope               []string `json:"scope"`
	State               string   `json:"state"`
	CodeChallenge       string   `json:"codeChallenge,omitempty"`
	CodeChallengeMethod string   `json:"codeChallengeMethod,omitempty"`
}

// ClientInfo is the registration metadata shown on the consent dialog.
type ClientInfo struct {
	ClientID                string
	ClientName              string
	ClientURI               string
	PolicyURI               string
	TOSURI                  string
	Contacts                []string
	RedirectURIs            []string
	TokenEndpointAuthMethod string
}

// CompletionMetadata is stored alongside the grant for display.
type CompletionMetadata struct {
	Label string
}

// Completion is handed over once the user has been identified upstream.
type Completion struct {
	Request  *AuthRequest
	UserID   string
	Metadata CompletionMetadata
	Scope    []string
	Props    oauthsession.Props
}

// AuthorizationServer is the part of the OAuth server the consent and
// callback handlers depend on.
type AuthorizationServer interface {
	ParseAuthRequest(ctx context.Context, r *http.Request) (*AuthRequest, error)
	LookupClient(ctx context.Context, clientID string) (*ClientInfo, error)
	// CompleteAuthorization issues the authorization code and returns the
	// URL the user agent is sent back to.
	CompleteAuthorization(ctx context.Context, c Completion) (string, error)
}

type contextKey string

const propsContextKey contextKey = "props"

// WithProps returns ctx carrying the token's props.
func WithProps(ctx context.Context, props oauthsession.Props) context.Context {
	return context.WithValue(ctx, propsContextKey, props)
}

// PropsFromContext returns the props of the bearer token that authorized
// the current request.
func PropsFromContext(ctx context.Context) (oauthsession.Props, bool) {
	props, ok := ctx.Value(propsContextKey).(oauthsession.Props)
	return props, ok
}
