package oauth

import (
	"github.com/dgellow/mcp-boilerplate/internal/urlutil"
)

// SupportedScopes is advertised in the metadata and granted to clients
// that register without a scope.
var SupportedScopes = []string{"openid", "profile", "email", "offline_access"}

// AuthorizationServerMetadata builds OAuth 2.0 Authorization Server Metadata per RFC 8414
// https://datatracker.ietf.org/doc/html/rfc8414
func AuthorizationServerMetadata(issuer string) (map[string]any, error) {
	authzEndpoint, err := urlutil.JoinPath(issuer, "authorize")
	if err != nil {
		return nil, err
	}

	tokenEndpoint, err := urlutil.JoinPath(issuer, "token")
	if err != nil {
		return nil, err
	}

	registerEndpoint, err := urlutil.JoinPath(issuer, "register")
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"issuer":                           issuer,
		"authorization_endpoint":           authzEndpoint,
		"token_endpoint":                   tokenEndpoint,
		"registration_endpoint":            registerEndpoint,
		"response_types_supported":         []string{"code"},
		"grant_types_supported":            []string{"authorization_code", "refresh_token"},
		"code_challenge_methods_supported": []string{"S256"},
		"token_endpoint_auth_methods_supported": []string{
			"none",
			"client_secret_post",
		},
		"scopes_supported": SupportedScopes,
	}, nil
}

// AuthorizationServerMetadataURI returns the well-known URI for the authorization server metadata.
func AuthorizationServerMetadataURI(issuer string) (string, error) {
	return urlutil.JoinPath(issuer, ".well-known", "oauth-authorization-server")
}

// ProtectedResourceMetadata builds OAuth 2.0 Protected Resource Metadata
// per RFC 9728. The MCP endpoints and the authorization server share the
// issuer origin.
func ProtectedResourceMetadata(issuer string) (map[string]any, error) {
	authzServerURL, err := AuthorizationServerMetadataURI(issuer)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"resource":                 issuer,
		"authorization_servers":    []string{issuer},
		"bearer_methods_supported": []string{"header"},
		"scopes_supported":         SupportedScopes,
		"_links": map[string]any{
			"oauth-authorization-server": map[string]string{
				"href": authzServerURL,
			},
		},
	}, nil
}

// ProtectedResourceMetadataURI is the URI advertised in WWW-Authenticate
// challenges.
func ProtectedResourceMetadataURI(issuer string) (string, error) {
	return urlutil.JoinPath(issuer, ".well-known", "oauth-protected-resource")
}
