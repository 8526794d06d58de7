// Package approval remembers which OAuth clients a browser has consented
// to and relays the pending authorization request through the consent
// dialog and the upstream identity provider.
package approval

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dgellow/mcp-boilerplate/internal/cookie"
	"github.com/dgellow/mcp-boilerplate/internal/crypto"
	"github.com/dgellow/mcp-boilerplate/internal/log"
)

// ErrEmptySecret means the cookie signing secret is not configured.
var ErrEmptySecret = errors.New("cookie secret is not configured")

// Sign returns the lowercase hex HMAC-SHA256 of payload under secret.
func Sign(secret, payload string) (string, error) {
	sig, err := crypto.SignHex([]byte(secret), []byte(payload))
	if errors.Is(err, crypto.ErrEmptyKey) {
		return "", ErrEmptySecret
	}
	return sig, err
}

// Verify reports whether sigHex authenticates payload. Malformed hex is
// a mismatch, not an error.
func Verify(secret, sigHex, payload string) (bool, error) {
	ok, err := crypto.VerifyHex([]byte(secret), sigHex, []byte(payload))
	if errors.Is(err, crypto.ErrEmptyKey) {
		return false, ErrEmptySecret
	}
	return ok, err
}

// AppendClient adds id to ids unless already present, keeping order.
func AppendClient(ids []string, id string) []string {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

// EncodeCookie signs the approved client set into a cookie value of the
// form {hex signature}.{base64 JSON array}.
func EncodeCookie(secret string, ids []string) (string, error) {
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		unique = AppendClient(unique, id)
	}

	payload, err := json.Marshal(unique)
	if err != nil {
		return "", fmt.Errorf("encoding approved clients: %w", err)
	}
	sig, err := Sign(secret, string(payload))
	if err != nil {
		return "", err
	}
	return sig + "." + base64.StdEncoding.EncodeToString(payload), nil
}

// DecodeCookie extracts the approved client set from a Cookie header.
// Anything other than a well-formed, correctly signed array of strings
// yields nil.
func DecodeCookie(cookieHeader, secret string) []string {
	if cookieHeader == "" {
		return nil
	}
	value, ok := cookie.Find(cookieHeader, cookie.ApprovedClients)
	if !ok {
		return nil
	}

	parts := strings.Split(value, ".")
	if len(parts) != 2 {
		log.LogDebug("Invalid approval cookie format")
		return nil
	}

	payload, err := base64.StdEncoding.Strict().DecodeString(parts[1])
	if err != nil {
		log.LogDebug("Approval cookie payload is not valid base64: %v", err)
		return nil
	}

	valid, err := Verify(secret, parts[0], string(payload))
	if err != nil {
		log.LogError("Cannot verify approval cookie: %v", err)
		return nil
	}
	if !valid {
		log.LogWarn("Approval cookie signature verification failed")
		return nil
	}

	var ids []string
	if err := json.Unmarshal(payload, &ids); err != nil {
		log.LogDebug("Approval cookie payload is not a string array: %v", err)
		return nil
	}
	return ids
}
