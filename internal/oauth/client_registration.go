package oauth

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	AuthMethodNone              = "none"
	AuthMethodClientSecretPost  = "client_secret_post"
	AuthMethodClientSecretBasic = "client_secret_basic"
)

// ClientRegistration is a parsed RFC 7591 registration request.
type ClientRegistration struct {
	RedirectURIs            []string
	Scopes                  []string
	TokenEndpointAuthMethod string

	ClientName string
	ClientURI  string
	PolicyURI  string
	TOSURI     string
	Contacts   []string
}

// Public reports whether the client authenticates without a secret.
func (r *ClientRegistration) Public() bool {
	return r.TokenEndpointAuthMethod == AuthMethodNone
}

// ParseClientRegistration parses MCP client registration metadata.
func ParseClientRegistration(metadata map[string]any) (*ClientRegistration, error) {
	reg := &ClientRegistration{
		RedirectURIs: stringList(metadata["redirect_uris"]),
		Scopes:       SupportedScopes,
		Contacts:     stringList(metadata["contacts"]),
		ClientName:   stringField(metadata, "client_name"),
		ClientURI:    stringField(metadata, "client_uri"),
		PolicyURI:    stringField(metadata, "policy_uri"),
		TOSURI:       stringField(metadata, "tos_uri"),
	}

	if len(reg.RedirectURIs) == 0 {
		return nil, fmt.Errorf("no valid redirect URIs provided")
	}
	for _, uri := range reg.RedirectURIs {
		u, err := url.Parse(uri)
		if err != nil || !u.IsAbs() || u.Fragment != "" {
			return nil, fmt.Errorf("invalid redirect URI: %s", uri)
		}
	}

	if scope := strings.TrimSpace(stringField(metadata, "scope")); scope != "" {
		reg.Scopes = strings.Fields(scope)
	}

	switch method := stringField(metadata, "token_endpoint_auth_method"); method {
	case "":
		reg.TokenEndpointAuthMethod = AuthMethodClientSecretBasic
	case AuthMethodNone, AuthMethodClientSecretPost, AuthMethodClientSecretBasic:
		reg.TokenEndpointAuthMethod = method
	default:
		return nil, fmt.Errorf("unsupported token_endpoint_auth_method: %s", method)
	}

	return reg, nil
}

func stringField(metadata map[string]any, key string) string {
	s, _ := metadata[key].(string)
	return s
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ClientMetadata is the RFC 7591 registration response.
type ClientMetadata struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret,omitempty"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at,omitempty"`
	ClientSecretExpiresAt   *int64   `json:"client_secret_expires_at,omitempty"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	Scope                   string   `json:"scope"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	ClientName              string   `json:"client_name,omitempty"`
	ClientURI               string   `json:"client_uri,omitempty"`
	PolicyURI               string   `json:"policy_uri,omitempty"`
	TOSURI                  string   `json:"tos_uri,omitempty"`
	Contacts                []string `json:"contacts,omitempty"`
}

// BuildClientMetadata creates the registration response. The plaintext
// secret is only ever returned here.
func BuildClientMetadata(clientID, plaintextSecret string, reg *ClientRegistration, grantTypes, responseTypes []string, issuedAt int64) ClientMetadata {
	md := ClientMetadata{
		ClientID:                clientID,
		ClientIDIssuedAt:        issuedAt,
		RedirectURIs:            reg.RedirectURIs,
		GrantTypes:              grantTypes,
		ResponseTypes:           responseTypes,
		Scope:                   strings.Join(reg.Scopes, " "),
		TokenEndpointAuthMethod: reg.TokenEndpointAuthMethod,
		ClientName:              reg.ClientName,
		ClientURI:               reg.ClientURI,
		PolicyURI:               reg.PolicyURI,
		TOSURI:                  reg.TOSURI,
		Contacts:                reg.Contacts,
	}
	if plaintextSecret != "" {
		md.ClientSecret = plaintextSecret
		never := int64(0)
		md.ClientSecretExpiresAt = &never
	}
	return md
}
