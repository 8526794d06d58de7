package cookie

import (
	"net/http"
	"strings"
	"time"
)

// ApprovedClients is the browser-held record of OAuth clients the user
// has consented to.
const ApprovedClients = "mcp-boilerplate-clients"

// ApprovedClientsMaxAge is one year.
const ApprovedClientsMaxAge = 365 * 24 * time.Hour

// NewApprovedClients builds the approval cookie. It is always Secure,
// including in development, since MCP clients complete the flow in a
// real browser.
func NewApprovedClients(value string) *http.Cookie {
	return &http.Cookie{
		Name:     ApprovedClients,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ApprovedClientsMaxAge.Seconds()),
	}
}

// Find returns the raw value of the named cookie from a Cookie header,
// matching on the exact "name=" prefix of each ';'-separated pair.
// Values are returned verbatim, without the validation net/http applies.
func Find(header string, name string) (string, bool) {
	prefix := name + "="
	for _, pair := range strings.Split(header, ";") {
		pair = strings.TrimSpace(pair)
		if strings.HasPrefix(pair, prefix) {
			return pair[len(prefix):], true
		}
	}
	return "", false
}

// Header joins every Cookie header on r into one value.
func Header(r *http.Request) string {
	return strings.Join(r.Header.Values("Cookie"), "; ")
}
