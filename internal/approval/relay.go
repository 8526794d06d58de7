package approval

import (
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/dgellow/mcp-boilerplate/internal/cookie"
	"github.com/dgellow/mcp-boilerplate/internal/log"
)

// ErrMethodNotAllowed is returned when a consent submission is not a POST.
var ErrMethodNotAllowed = errors.New("invalid request method, expected POST")

// CheckPriorApproval reports whether the browser holds a valid approval
// for clientID.
func CheckPriorApproval(cookieHeader, clientID, secret string) bool {
	if clientID == "" {
		return false
	}
	return slices.Contains(DecodeCookie(cookieHeader, secret), clientID)
}

// PresentConsent writes the consent dialog for the pending request.
func PresentConsent(w http.ResponseWriter, r *http.Request, opts DialogOptions) {
	page, err := RenderDialog(r, opts)
	if err != nil {
		log.LogErrorWithFields("approval", "Failed to render consent dialog", map[string]any{
			"client_id": opts.State.ClientID(),
			"error":     err.Error(),
		})
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(page); err != nil {
		log.LogDebug("Failed to write consent dialog: %v", err)
	}
}

// AcceptSubmission handles the consent form post. It returns the relayed
// state and the headers, carrying the refreshed approval cookie, that
// must be attached to the redirect sent to the identity provider.
func AcceptSubmission(r *http.Request, secret string) (*State, http.Header, error) {
	if r.Method != http.MethodPost {
		return nil, nil, ErrMethodNotAllowed
	}

	if err := r.ParseForm(); err != nil {
		return nil, nil, fmt.Errorf("failed to parse approval form: %w", err)
	}
	encoded := r.PostForm.Get("state")
	if encoded == "" {
		return nil, nil, errors.New("failed to parse approval form: missing or invalid 'state' in form data")
	}
	state, err := DecodeState(encoded)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse approval form: %w", err)
	}

	approved := AppendClient(DecodeCookie(cookie.Header(r), secret), state.ClientID())
	value, err := EncodeCookie(secret, approved)
	if err != nil {
		return nil, nil, err
	}

	headers := http.Header{}
	headers.Add("Set-Cookie", cookie.NewApprovedClients(value).String())

	log.LogInfoWithFields("approval", "Client approved", map[string]any{
		"client_id": state.ClientID(),
		"approved":  len(approved),
	})
	return state, headers, nil
}
