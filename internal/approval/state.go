package approval

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgellow/mcp-boilerplate/internal/oauth"
)

// ErrMissingClientID is returned when a decoded state carries no client.
var ErrMissingClientID = errors.New("state has no client id")

// State is the pending authorization request carried through the consent
// form and the upstream redirect.
type State struct {
	OAuthReqInfo *oauth.AuthRequest `json:"oauthReqInfo"`
}

// ClientID returns the client of the relayed request, or "".
func (s *State) ClientID() string {
	if s == nil || s.OAuthReqInfo == nil {
		return ""
	}
	return s.OAuthReqInfo.ClientID
}

// EncodeState serializes s as base64 JSON.
func EncodeState(s *State) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("could not encode state: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeState parses a state produced by EncodeState. A state without a
// client id is rejected with ErrMissingClientID.
func DecodeState(encoded string) (*State, error) {
	if encoded == "" {
		return nil, errors.New("missing state")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("could not decode state: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("could not decode state: %w", err)
	}
	if s.ClientID() == "" {
		return nil, ErrMissingClientID
	}
	return &s, nil
}
