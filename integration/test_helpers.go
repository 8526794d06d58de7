package integration

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"regexp"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	serverURL       = "http://localhost:8080"
	testRedirectURI = "http://127.0.0.1:6274/oauth/callback"
	testVerifier    = "test-code-verifier-that-is-at-least-43-characters-long"
	approvalCookie  = "mcp-boilerplate-clients"
)

// testEnv is the environment every server process starts with
var testEnv = []string{
	"GOOGLE_CLIENT_ID=test-client-id",
	"GOOGLE_CLIENT_SECRET=test-client-secret",
	"COOKIE_ENCRYPTION_KEY=test-cookie-encryption-key",
	"JWT_SECRET=demo-jwt-secret-32-bytes-exactly!",
	"GOOGLE_OAUTH_AUTH_URL=" + fakeGoogleURL + "/auth",
	"GOOGLE_OAUTH_TOKEN_URL=" + fakeGoogleURL + "/token",
	"GOOGLE_USERINFO_URL=" + fakeGoogleURL + "/oauth2/v2/userinfo",
}

// buildTestConfig returns a config document without a stripe section
func buildTestConfig() map[string]any {
	return map[string]any{
		"version": "v0.0.1-DEV_EDITION-integration",
		"server": map[string]any{
			"name":           "Integration Boilerplate",
			"addr":           ":8080",
			"baseURL":        serverURL,
			"allowedOrigins": []string{"http://localhost:6274"},
		},
		"auth": map[string]any{
			"googleClientId":      map[string]string{"$env": "GOOGLE_CLIENT_ID"},
			"googleClientSecret":  map[string]string{"$env": "GOOGLE_CLIENT_SECRET"},
			"cookieEncryptionKey": map[string]string{"$env": "COOKIE_ENCRYPTION_KEY"},
			"jwtSecret":           map[string]string{"$env": "JWT_SECRET"},
			"tokenTtl":            "1h",
		},
	}
}

// writeTestConfig writes a config map to a temporary JSON file and returns its path.
func writeTestConfig(t *testing.T, cfg map[string]any) string {
	t.Helper()
	data, err := json.MarshalIndent(cfg, "", "  ")
	require.NoError(t, err)
	f, err := os.CreateTemp(t.TempDir(), "config-*.json")
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

// trace logs a message if TRACE environment variable is set
func trace(t *testing.T, format string, args ...any) {
	if os.Getenv("TRACE") == "1" {
		t.Logf("TRACE: "+format, args...)
	}
}

// tracef logs a formatted message to stdout if TRACE is set (for use outside tests)
func tracef(format string, args ...any) {
	if os.Getenv("TRACE") == "1" {
		fmt.Printf("TRACE: "+format+"\n", args...)
	}
}

// startServer runs the binary with the default test config and waits
// until it is healthy
func startServer(t *testing.T, extraEnv ...string) {
	t.Helper()
	configPath := writeTestConfig(t, buildTestConfig())

	cmd := exec.Command(binaryPath, "serve", "--config", configPath)
	cmd.Env = append(os.Environ(), testEnv...)
	cmd.Env = append(cmd.Env, extraEnv...)

	if logFile := os.Getenv("MCP_LOG_FILE"); logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			cmd.Stderr = f
			cmd.Stdout = f
			t.Cleanup(func() { f.Close() })
		}
	}

	require.NoError(t, cmd.Start(), "failed to start mcp-boilerplate")
	t.Cleanup(func() { stopServer(cmd) })

	waitForServer(t)
}

// stopServer sends SIGINT and kills the process if it has not exited
// after 5 seconds
func stopServer(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		<-done
	}
}

func waitForServer(t *testing.T) {
	t.Helper()
	for range 20 {
		resp, err := http.Get(serverURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatal("mcp-boilerplate failed to become ready after 10 seconds")
}

// noRedirectClient returns redirects to the caller instead of following them
func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func registerTestClient(t *testing.T) string {
	t.Helper()
	body, _ := json.Marshal(map[string]any{
		"redirect_uris":              []string{testRedirectURI},
		"client_name":                "Integration Inspector",
		"token_endpoint_auth_method": "none",
	})
	resp, err := http.Post(serverURL+"/register", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		t.Fatalf("Client registration failed: %d - %s", resp.StatusCode, string(data))
	}

	var clientResp map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&clientResp))
	return clientResp["client_id"].(string)
}

func codeChallenge() string {
	sum := sha256.Sum256([]byte(testVerifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func authorizeURL(clientID, state string) string {
	params := url.Values{
		"response_type":         {"code"},
		"client_id":             {clientID},
		"redirect_uri":          {testRedirectURI},
		"code_challenge":        {codeChallenge()},
		"code_challenge_method": {"S256"},
		"scope":                 {"openid email profile"},
		"state":                 {state},
	}
	return serverURL + "/authorize?" + params.Encode()
}

var stateInputRe = regexp.MustCompile(`<input[^>]+name="state"[^>]+value="([^"]+)"`)

// extractDialogState returns the encoded state carried by the consent form
func extractDialogState(t *testing.T, page string) string {
	t.Helper()
	matches := stateInputRe.FindStringSubmatch(page)
	require.Len(t, matches, 2, "state input not found in consent dialog")
	return html.UnescapeString(matches[1])
}

// approveClient walks the consent dialog and returns the Google redirect
// and the approval cookie set by the submission
func approveClient(t *testing.T, clientID string) (string, *http.Cookie) {
	t.Helper()
	client := noRedirectClient()

	resp, err := client.Get(authorizeURL(clientID, "inspector-state-1234"))
	require.NoError(t, err)
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "expected the consent dialog: %s", page)

	state := extractDialogState(t, string(page))
	trace(t, "consent state: %s", state)

	resp, err = client.PostForm(serverURL+"/authorize", url.Values{"state": {state}})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	var approved *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == approvalCookie {
			approved = c
		}
	}
	require.NotNil(t, approved, "submission should set the approval cookie")
	return resp.Header.Get("Location"), approved
}

// completeLogin follows the Google redirect back through /callback and
// exchanges the resulting code for an access token
func completeLogin(t *testing.T, clientID, googleLocation string) map[string]any {
	t.Helper()
	client := noRedirectClient()

	require.Contains(t, googleLocation, fakeGoogleURL+"/auth")
	resp, err := client.Get(googleLocation)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	callbackLocation := resp.Header.Get("Location")
	require.Contains(t, callbackLocation, serverURL+"/callback")

	resp, err = client.Get(callbackLocation)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode, "callback failed: %s", body)

	final, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "inspector-state-1234", final.Query().Get("state"))
	code := final.Query().Get("code")
	require.NotEmpty(t, code)

	resp, err = http.PostForm(serverURL+"/token", url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {testRedirectURI},
		"client_id":     {clientID},
		"code_verifier": {testVerifier},
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		t.Fatalf("Token exchange failed: %d - %s", resp.StatusCode, string(data))
	}

	var tokenData map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tokenData))
	return tokenData
}

// getOAuthAccessToken runs the whole login for a fresh client
func getOAuthAccessToken(t *testing.T) string {
	t.Helper()
	clientID := registerTestClient(t)
	location, _ := approveClient(t, clientID)
	tokenData := completeLogin(t, clientID, location)
	token, _ := tokenData["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}
