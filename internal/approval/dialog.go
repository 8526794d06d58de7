package approval

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/dgellow/mcp-boilerplate/internal/oauth"
)

//go:embed templates/dialog.html
var dialogTemplateHTML string

var dialogTemplate = template.Must(template.New("dialog").Parse(dialogTemplateHTML))

// ServerInfo describes this server on the consent dialog.
type ServerInfo struct {
	Provider    string
	Name        string
	Logo        string
	Description string
}

// DialogOptions is everything the consent dialog displays.
type DialogOptions struct {
	Client *oauth.ClientInfo
	Server ServerInfo
	State  *State
}

type dialogData struct {
	ServerName        template.HTML
	ServerDescription template.HTML
	ClientName        template.HTML
	ClientURI         template.HTML
	PolicyURI         template.HTML
	TOSURI            template.HTML
	Contacts          template.HTML
	RedirectURIs      []template.HTML
	Provider          template.HTML

	// Attribute values are escaped by html/template itself.
	LogoURL       string
	ClientURIHref string
	PolicyHref    string
	TOSHref       string
	Action        string
	State         string
}

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// sanitizeHTML escapes the five HTML special characters.
func sanitizeHTML(unsafe string) string {
	return htmlReplacer.Replace(unsafe)
}

func safe(s string) template.HTML {
	return template.HTML(sanitizeHTML(s))
}

// titleCaseProvider capitalizes each hyphen-separated segment, so
// "google" renders as "Google" and "my-idp" as "My-Idp".
func titleCaseProvider(provider string) string {
	if provider == "" {
		return "Provider"
	}
	segments := strings.Split(provider, "-")
	for i, s := range segments {
		if s != "" {
			segments[i] = strings.ToUpper(s[:1]) + s[1:]
		}
	}
	return strings.Join(segments, "-")
}

// RenderDialog renders the consent page for opts. The form posts the
// encoded state back to the path of r.
func RenderDialog(r *http.Request, opts DialogOptions) ([]byte, error) {
	encodedState, err := EncodeState(opts.State)
	if err != nil {
		return nil, err
	}

	data := dialogData{
		ServerName:        safe(opts.Server.Name),
		ServerDescription: safe(opts.Server.Description),
		ClientName:        safe("Unknown MCP Client"),
		Provider:          safe(titleCaseProvider(opts.Server.Provider)),
		LogoURL:           opts.Server.Logo,
		Action:            r.URL.Path,
		State:             encodedState,
	}

	if c := opts.Client; c != nil {
		if c.ClientName != "" {
			data.ClientName = safe(c.ClientName)
		}
		data.ClientURI, data.ClientURIHref = safe(c.ClientURI), c.ClientURI
		data.PolicyURI, data.PolicyHref = safe(c.PolicyURI), c.PolicyURI
		data.TOSURI, data.TOSHref = safe(c.TOSURI), c.TOSURI
		if len(c.Contacts) > 0 {
			data.Contacts = safe(strings.Join(c.Contacts, ", "))
		}
		for _, uri := range c.RedirectURIs {
			data.RedirectURIs = append(data.RedirectURIs, safe(uri))
		}
	}

	var buf bytes.Buffer
	if err := dialogTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering consent dialog: %w", err)
	}
	return buf.Bytes(), nil
}
