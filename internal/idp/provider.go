// Package idp talks to the upstream identity provider.
package idp

import "context"

// Profile is the authenticated user as reported by the identity provider.
type Profile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Picture      string `json:"picture,omitempty"`
	HostedDomain string `json:"hd,omitempty"`
}

// ErrorResponse is a failure ready to be written back to the user agent
// as plain text.
type ErrorResponse struct {
	Status  int
	Message string
}

func (e *ErrorResponse) Error() string {
	return e.Message
}

// TokenResult is the outcome of a code exchange. Exactly one of Token and
// Err is set.
type TokenResult struct {
	Token string
	Err   *ErrorResponse
}

func tokenOK(token string) TokenResult {
	return TokenResult{Token: token}
}

func tokenErr(status int, message string) TokenResult {
	return TokenResult{Err: &ErrorResponse{Status: status, Message: message}}
}

// Provider abstracts identity provider operations.
type Provider interface {
	// Type returns the provider type identifier, shown on the consent dialog.
	Type() string

	// AuthURL generates the authorization URL for the OAuth flow.
	AuthURL(state string) string

	ExchangeCode(ctx context.Context, code string) TokenResult

	FetchProfile(ctx context.Context, accessToken string) (*Profile, *ErrorResponse)
}
