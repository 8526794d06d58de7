package oauthsession

import (
	"time"

	"github.com/ory/fosite"
)

// Props is the properties bag carried in every token issued after a
// Google login. MCP tool handlers read it from the request context.
type Props struct {
	Login       string `json:"login,omitempty"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	UserEmail   string `json:"userEmail"`
	AccessToken string `json:"accessToken"`
}

// Session extends DefaultSession with the login props.
type Session struct {
	*fosite.DefaultSession
	Props Props `json:"props"`
}

// New returns a session for subject with the display label as username.
func New(subject, label string, props Props) *Session {
	return &Session{
		DefaultSession: &fosite.DefaultSession{
			Subject:   subject,
			Username:  label,
			ExpiresAt: make(map[fosite.TokenType]time.Time),
		},
		Props: props,
	}
}

// Empty is the template fosite fills when loading a stored request.
func Empty() *Session {
	return &Session{DefaultSession: &fosite.DefaultSession{}}
}

// Clone implements fosite.Session
func (s *Session) Clone() fosite.Session {
	if s == nil {
		return nil
	}
	clone := &Session{Props: s.Props}
	if s.DefaultSession != nil {
		clone.DefaultSession = s.DefaultSession.Clone().(*fosite.DefaultSession)
	}
	return clone
}
