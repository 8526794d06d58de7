package oauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClientRegistration(t *testing.T) {
	tests := []struct {
		name             string
		metadata         map[string]any
		wantRedirectURIs []string
		wantScopes       []string
		wantMethod       string
		wantPublic       bool
		wantErr          bool
		errContains      string
	}{
		{
			name: "valid_with_single_redirect_uri",
			metadata: map[string]any{
				"redirect_uris": []any{"https://example.com/callback"},
			},
			wantRedirectURIs: []string{"https://example.com/callback"},
			wantScopes:       SupportedScopes,
			wantMethod:       AuthMethodClientSecretBasic,
		},
		{
			name: "public_client",
			metadata: map[string]any{
				"redirect_uris":              []any{"http://localhost:3334/oauth/callback"},
				"token_endpoint_auth_method": "none",
			},
			wantRedirectURIs: []string{"http://localhost:3334/oauth/callback"},
			wantScopes:       SupportedScopes,
			wantMethod:       AuthMethodNone,
			wantPublic:       true,
		},
		{
			name: "valid_with_custom_scopes",
			metadata: map[string]any{
				"redirect_uris": []any{"https://example.com/callback"},
				"scope":         "openid profile email",
			},
			wantRedirectURIs: []string{"https://example.com/callback"},
			wantScopes:       []string{"openid", "profile", "email"},
			wantMethod:       AuthMethodClientSecretBasic,
		},
		{
			name: "valid_with_empty_scope_uses_default",
			metadata: map[string]any{
				"redirect_uris": []any{"https://example.com/callback"},
				"scope":         "   ",
			},
			wantRedirectURIs: []string{"https://example.com/callback"},
			wantScopes:       SupportedScopes,
			wantMethod:       AuthMethodClientSecretBasic,
		},
		{
			name:        "missing_redirect_uris",
			metadata:    map[string]any{},
			wantErr:     true,
			errContains: "no valid redirect URIs",
		},
		{
			name: "redirect_uris_wrong_type",
			metadata: map[string]any{
				"redirect_uris": "https://example.com/callback",
			},
			wantErr:     true,
			errContains: "no valid redirect URIs",
		},
		{
			name: "redirect_uri_non_string_elements_ignored",
			metadata: map[string]any{
				"redirect_uris": []any{123, "https://example.com/callback", nil},
			},
			wantRedirectURIs: []string{"https://example.com/callback"},
			wantScopes:       SupportedScopes,
			wantMethod:       AuthMethodClientSecretBasic,
		},
		{
			name: "relative_redirect_uri",
			metadata: map[string]any{
				"redirect_uris": []any{"/callback"},
			},
			wantErr:     true,
			errContains: "invalid redirect URI",
		},
		{
			name: "redirect_uri_with_fragment",
			metadata: map[string]any{
				"redirect_uris": []any{"https://example.com/callback#frag"},
			},
			wantErr:     true,
			errContains: "invalid redirect URI",
		},
		{
			name: "unsupported_auth_method",
			metadata: map[string]any{
				"redirect_uris":              []any{"https://example.com/callback"},
				"token_endpoint_auth_method": "private_key_jwt",
			},
			wantErr:     true,
			errContains: "unsupported token_endpoint_auth_method",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := ParseClientRegistration(tt.metadata)

			if tt.wantErr {
				require.Error(t, err)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantRedirectURIs, reg.RedirectURIs)
			assert.Equal(t, tt.wantScopes, reg.Scopes)
			assert.Equal(t, tt.wantMethod, reg.TokenEndpointAuthMethod)
			assert.Equal(t, tt.wantPublic, reg.Public())
		})
	}
}

func TestParseClientRegistrationDisplayMetadata(t *testing.T) {
	reg, err := ParseClientRegistration(map[string]any{
		"redirect_uris": []any{"https://example.com/callback"},
		"client_name":   "Inspector",
		"client_uri":    "https://inspector.example.com",
		"policy_uri":    "https://inspector.example.com/privacy",
		"tos_uri":       "https://inspector.example.com/tos",
		"contacts":      []any{"ops@example.com", "dev@example.com"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Inspector", reg.ClientName)
	assert.Equal(t, "https://inspector.example.com", reg.ClientURI)
	assert.Equal(t, "https://inspector.example.com/privacy", reg.PolicyURI)
	assert.Equal(t, "https://inspector.example.com/tos", reg.TOSURI)
	assert.Equal(t, []string{"ops@example.com", "dev@example.com"}, reg.Contacts)
}

func TestBuildClientMetadata(t *testing.T) {
	reg := &ClientRegistration{
		RedirectURIs:            []string{"https://example.com/callback"},
		Scopes:                  []string{"openid", "email"},
		TokenEndpointAuthMethod: AuthMethodClientSecretPost,
		ClientName:              "Inspector",
	}

	md := BuildClientMetadata("client-1", "s3cret", reg, []string{"authorization_code"}, []string{"code"}, 1700000000)
	assert.Equal(t, "client-1", md.ClientID)
	assert.Equal(t, "s3cret", md.ClientSecret)
	require.NotNil(t, md.ClientSecretExpiresAt)
	assert.Zero(t, *md.ClientSecretExpiresAt)
	assert.Equal(t, "openid email", md.Scope)
	assert.Equal(t, "Inspector", md.ClientName)

	public := BuildClientMetadata("client-2", "", reg, nil, nil, 0)
	assert.Empty(t, public.ClientSecret)
	assert.Nil(t, public.ClientSecretExpiresAt)
}
