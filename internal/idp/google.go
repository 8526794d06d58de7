package idp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dgellow/mcp-boilerplate/internal/log"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

const (
	DefaultGoogleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	DefaultGoogleTokenURL    = "https://accounts.google.com/o/oauth2/token"
	DefaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

	userInfoPath = "oauth2/v2/userinfo"
)

// GoogleConfig configures the Google provider. Empty endpoints fall back
// to Google's production endpoints.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	HostedDomain string

	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

// GoogleProvider implements Provider for Google sign-in.
type GoogleProvider struct {
	config       oauth2.Config
	hostedDomain string
	apiBase      string
}

var _ Provider = (*GoogleProvider)(nil)

// NewGoogleProvider creates a new Google OAuth provider.
func NewGoogleProvider(cfg GoogleConfig) *GoogleProvider {
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = DefaultGoogleAuthURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultGoogleTokenURL
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = DefaultGoogleUserInfoURL
	}

	return &GoogleProvider{
		config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{"email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
				// Credentials go in the form body. Auto-detection would
				// retry failed exchanges with basic auth.
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		hostedDomain: cfg.HostedDomain,
		apiBase:      apiBase(userInfoURL),
	}
}

// apiBase turns a userinfo URL into the root the API client resolves
// oauth2/v2/userinfo against.
func apiBase(userInfoURL string) string {
	base := strings.TrimSuffix(strings.TrimSuffix(userInfoURL, "/"), userInfoPath)
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

func (p *GoogleProvider) Type() string {
	return "google"
}

// AuthURL returns the Google consent URL. state is omitted when empty and
// hd is added when a hosted domain is configured.
func (p *GoogleProvider) AuthURL(state string) string {
	var opts []oauth2.AuthCodeOption
	if p.hostedDomain != "" {
		opts = append(opts, oauth2.SetAuthURLParam("hd", p.hostedDomain))
	}
	return p.config.AuthCodeURL(state, opts...)
}

// ExchangeCode trades an authorization code for a Google access token.
func (p *GoogleProvider) ExchangeCode(ctx context.Context, code string) TokenResult {
	if code == "" {
		return tokenErr(http.StatusBadRequest, "Missing code")
	}

	token, err := p.config.Exchange(ctx, code)
	if err == nil {
		return tokenOK(token.AccessToken)
	}

	var retrieveErr *oauth2.RetrieveError
	switch {
	case errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
		(retrieveErr.Response.StatusCode < 200 || retrieveErr.Response.StatusCode > 299):
		log.LogErrorWithFields("idp", "Upstream token endpoint rejected the code", map[string]any{
			"status": retrieveErr.Response.StatusCode,
			"body":   string(retrieveErr.Body),
		})
		return tokenErr(retrieveErr.Response.StatusCode, "Failed to fetch access token from upstream")

	case errors.As(err, &retrieveErr):
		description := retrieveErr.ErrorDescription
		if description == "" {
			description = retrieveErr.ErrorCode
		}
		if description == "" {
			description = "Missing access_token"
		}
		log.LogErrorWithFields("idp", "Missing access_token in upstream response", map[string]any{
			"error": retrieveErr.ErrorCode,
		})
		return tokenErr(http.StatusBadRequest, "Failed to obtain access token: "+description)

	case strings.Contains(err.Error(), "missing access_token"):
		log.LogError("Missing access_token in upstream response")
		return tokenErr(http.StatusBadRequest, "Failed to obtain access token: Missing access_token")

	case strings.Contains(err.Error(), "cannot parse"):
		log.LogError("Unparseable upstream token response: %v", err)
		return tokenErr(http.StatusInternalServerError, "Obtained access_token is not a string")

	default:
		log.LogError("Token exchange request failed: %v", err)
		return tokenErr(http.StatusBadGateway, "Failed to fetch access token from upstream")
	}
}

// FetchProfile reads the user's Google profile with a single request.
func (p *GoogleProvider) FetchProfile(ctx context.Context, accessToken string) (*Profile, *ErrorResponse) {
	client := p.config.Client(ctx, &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	svc, err := googleoauth2.NewService(ctx, option.WithHTTPClient(client), option.WithEndpoint(p.apiBase))
	if err != nil {
		return nil, &ErrorResponse{Status: http.StatusInternalServerError, Message: fmt.Sprintf("Failed to fetch user info: %v", err)}
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return nil, &ErrorResponse{Status: apiErr.Code, Message: "Failed to fetch user info: " + apiErr.Body}
		}
		return nil, &ErrorResponse{Status: http.StatusBadGateway, Message: fmt.Sprintf("Failed to fetch user info: %v", err)}
	}

	return &Profile{
		ID:           info.Id,
		Name:         info.Name,
		Email:        info.Email,
		Picture:      info.Picture,
		HostedDomain: info.Hd,
	}, nil
}
