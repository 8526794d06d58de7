package approval

import (
	"html"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/dgellow/mcp-boilerplate/internal/oauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeHTML(t *testing.T) {
	assert.Equal(t, "&lt;b&gt;Tom &amp; Jerry&#039;s &quot;show&quot;&lt;/b&gt;", sanitizeHTML(`<b>Tom & Jerry's "show"</b>`))
	assert.Equal(t, "plain", sanitizeHTML("plain"))
}

func TestTitleCaseProvider(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"google", "Google"},
		{"my-idp", "My-Idp"},
		{"GitHub", "GitHub"},
		{"a--b", "A--B"},
		{"", "Provider"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, titleCaseProvider(tt.in))
		})
	}
}

func renderForTest(t *testing.T, path string, opts DialogOptions) string {
	t.Helper()
	if opts.State == nil {
		opts.State = &State{OAuthReqInfo: &oauth.AuthRequest{ClientID: "abc"}}
	}
	page, err := RenderDialog(httptest.NewRequest(http.MethodGet, path, nil), opts)
	require.NoError(t, err)
	return string(page)
}

func TestRenderDialogEscapesClientFields(t *testing.T) {
	page := renderForTest(t, "/authorize", DialogOptions{
		Client: &oauth.ClientInfo{
			ClientName:   `<script>alert("x")</script>`,
			ClientURI:    "javascript:alert(1)",
			Contacts:     []string{"a@example.com", "<b>b</b>"},
			RedirectURIs: []string{"https://app.example.com/cb?a=1&b=2"},
		},
		Server: ServerInfo{Provider: "google", Name: "O'Reilly <Tools>", Description: "Tom & Jerry"},
	})

	assert.NotContains(t, page, "<script>alert")
	assert.Contains(t, page, "&lt;script&gt;alert(&quot;x&quot;)&lt;/script&gt;")
	assert.Contains(t, page, "O&#039;Reilly &lt;Tools&gt;")
	assert.Contains(t, page, "Tom &amp; Jerry")
	assert.Contains(t, page, "a@example.com, &lt;b&gt;b&lt;/b&gt;")
	assert.Contains(t, page, "https://app.example.com/cb?a=1&amp;b=2")
	assert.NotContains(t, page, `href="javascript:`)
}

func TestRenderDialogForm(t *testing.T) {
	state := &State{OAuthReqInfo: &oauth.AuthRequest{ClientID: "abc", Scope: []string{"email"}}}
	page := renderForTest(t, "/authorize?client_id=abc", DialogOptions{
		Server: ServerInfo{Provider: "google", Name: "Boilerplate"},
		State:  state,
	})

	assert.Contains(t, page, `action="/authorize"`)
	assert.Contains(t, page, "Login with Google")
	assert.Contains(t, page, "Unknown MCP Client is requesting access")

	m := regexp.MustCompile(`name="state" value="([^"]+)"`).FindStringSubmatch(page)
	require.Len(t, m, 2)
	decoded, err := DecodeState(html.UnescapeString(m[1]))
	require.NoError(t, err)
	assert.Equal(t, state, decoded)
}

func TestRenderDialogOptionalSections(t *testing.T) {
	page := renderForTest(t, "/authorize", DialogOptions{
		Client: &oauth.ClientInfo{ClientName: "Inspector"},
		Server: ServerInfo{Name: "Boilerplate"},
	})

	assert.NotContains(t, page, "Privacy Policy")
	assert.NotContains(t, page, "Terms of Service")
	assert.NotContains(t, page, "<img")
	assert.Contains(t, page, "Login with Provider")

	page = renderForTest(t, "/authorize", DialogOptions{
		Client: &oauth.ClientInfo{
			ClientName: "Inspector",
			PolicyURI:  "https://inspector.example.com/privacy",
			TOSURI:     "https://inspector.example.com/tos",
		},
		Server: ServerInfo{Name: "Boilerplate", Logo: "https://cdn.example.com/logo.png"},
	})
	assert.Contains(t, page, `href="https://inspector.example.com/privacy"`)
	assert.Contains(t, page, `href="https://inspector.example.com/tos"`)
	assert.Contains(t, page, `src="https://cdn.example.com/logo.png"`)
}
