package approval

import (
	"encoding/base64"
	"testing"

	"github.com/dgellow/mcp-boilerplate/internal/oauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateRoundTrip(t *testing.T) {
	original := &State{OAuthReqInfo: &oauth.AuthRequest{
		ResponseType:        "code",
		ClientID:            "client-a",
		RedirectURI:         "http://localhost:3334/oauth/callback",
		Scope:               []string{"email", "offline_access"},
		State:               "client-state-1234",
		CodeChallenge:       "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		CodeChallengeMethod: "S256",
	}}

	encoded, err := EncodeState(original)
	require.NoError(t, err)

	decoded, err := DecodeState(encoded)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestStateWireFormat(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(`{"oauthReqInfo":{"clientId":"xyz","scope":["email"],"redirectUri":"https://app.example.com/cb"}}`))

	s, err := DecodeState(encoded)
	require.NoError(t, err)
	assert.Equal(t, "xyz", s.ClientID())
	assert.Equal(t, []string{"email"}, s.OAuthReqInfo.Scope)
	assert.Equal(t, "https://app.example.com/cb", s.OAuthReqInfo.RedirectURI)
}

func TestDecodeStateErrors(t *testing.T) {
	b64 := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

	tests := []struct {
		name      string
		encoded   string
		wantNoCID bool
	}{
		{"empty", "", false},
		{"not base64", "%%%", false},
		{"not json", b64("nope"), false},
		{"no request", b64(`{}`), true},
		{"null request", b64(`{"oauthReqInfo":null}`), true},
		{"empty client id", b64(`{"oauthReqInfo":{"clientId":""}}`), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := DecodeState(tt.encoded)
			require.Error(t, err)
			assert.Nil(t, s)
			if tt.wantNoCID {
				assert.ErrorIs(t, err, ErrMissingClientID)
			}
		})
	}
}

func TestStateClientIDNilSafe(t *testing.T) {
	var s *State
	assert.Empty(t, s.ClientID())
	assert.Empty(t, (&State{}).ClientID())
}
