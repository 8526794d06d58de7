package server

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"

	"github.com/dgellow/mcp-boilerplate/internal/log"
)

//go:embed templates/home.html
var homePageTemplateHTML string

//go:embed templates/payment_success.html
var paymentSuccessTemplateHTML string

var homePageTemplate = template.Must(template.New("home").Parse(homePageTemplateHTML))
var paymentSuccessTemplate = template.Must(template.New("payment_success").Parse(paymentSuccessTemplateHTML))

// PageData is shared by the static pages
type PageData struct {
	Name        string
	Description string
	Logo        string
	Provider    string
	BaseURL     string
}

// NewHomeHandler serves the landing page on "/" and 404s anything else
// that falls through to the root pattern.
func NewHomeHandler(data PageData) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		renderPage(w, homePageTemplate, data)
	}
}

func NewPaymentSuccessHandler(data PageData) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderPage(w, paymentSuccessTemplate, data)
	}
}

func renderPage(w http.ResponseWriter, tmpl *template.Template, data PageData) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		log.LogError("Failed to render %s page: %v", tmpl.Name(), err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
