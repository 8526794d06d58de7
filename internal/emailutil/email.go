package emailutil

import "strings"

// Normalize lowercases and trims an address so that Stripe customer
// lookups and user records agree on one key per person.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Domain returns the normalized part after the last '@', or "" when the
// address has no local part or no domain.
func Domain(email string) string {
	email = Normalize(email)
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return ""
	}
	return email[at+1:]
}

// InDomain reports whether email belongs to domain. An empty domain
// matches everything.
func InDomain(email, domain string) bool {
	if domain == "" {
		return true
	}
	return Domain(email) == Normalize(domain)
}
