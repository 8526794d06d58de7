package storage

import "github.com/ory/fosite"

// Client is a dynamically registered OAuth client plus the RFC 7591
// display metadata shown on the consent dialog.
type Client struct {
	ID            string
	Secret        []byte // bcrypt hash, nil for public clients
	RedirectURIs  []string
	Scopes        []string
	GrantTypes    []string
	ResponseTypes []string
	Audience      []string
	Public        bool

	Name      string
	URI       string
	PolicyURI string
	TOSURI    string
	Contacts  []string

	CreatedAt int64
}

func (c *Client) ToFositeClient() *fosite.DefaultClient {
	return &fosite.DefaultClient{
		ID:            c.ID,
		Secret:        c.Secret,
		RedirectURIs:  c.RedirectURIs,
		Scopes:        c.Scopes,
		GrantTypes:    c.GrantTypes,
		ResponseTypes: c.ResponseTypes,
		Audience:      c.Audience,
		Public:        c.Public,
	}
}
