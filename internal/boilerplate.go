package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgellow/mcp-boilerplate/internal/approval"
	"github.com/dgellow/mcp-boilerplate/internal/billing"
	"github.com/dgellow/mcp-boilerplate/internal/config"
	"github.com/dgellow/mcp-boilerplate/internal/envutil"
	"github.com/dgellow/mcp-boilerplate/internal/idp"
	"github.com/dgellow/mcp-boilerplate/internal/log"
	"github.com/dgellow/mcp-boilerplate/internal/metrics"
	"github.com/dgellow/mcp-boilerplate/internal/oauth"
	"github.com/dgellow/mcp-boilerplate/internal/server"
	"github.com/dgellow/mcp-boilerplate/internal/storage"
	"github.com/dgellow/mcp-boilerplate/internal/tools"
	"github.com/dgellow/mcp-boilerplate/internal/urlutil"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/ory/fosite"
)

// Version is reported to MCP clients. Overridden at build time.
var Version = "dev"

const shutdownTimeout = 30 * time.Second

// Boilerplate is the assembled application
type Boilerplate struct {
	config     config.Config
	handler    http.Handler
	httpServer *server.HTTPServer
	storage    storage.Storage
}

// auth bundles the OAuth components built from config
type auth struct {
	provider   fosite.OAuth2Provider
	server     *oauth.Server
	google     idp.Provider
	resourceMD string
}

// billingDeps is nil when no stripe section is configured
type billingDeps struct {
	gate     *billing.Gate
	reporter *billing.Reporter
	webhook  *billing.WebhookHandler
}

// New builds the application with all dependencies
func New(ctx context.Context, cfg config.Config) (*Boilerplate, error) {
	log.LogInfoWithFields("boilerplate", "Building MCP server", map[string]any{
		"baseURL": cfg.Server.BaseURL,
		"storage": cfg.Auth.Storage,
		"billing": cfg.Stripe != nil,
	})

	store, err := setupStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	a, err := setupAuthentication(cfg, store)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to setup authentication: %w", err)
	}

	m := metrics.New()
	b := setupBilling(cfg, store, m)

	handler := buildHTTPHandler(cfg, store, a, b, m)

	return &Boilerplate{
		config:     cfg,
		handler:    handler,
		httpServer: server.NewHTTPServer(handler, cfg.Server.Addr),
		storage:    store,
	}, nil
}

// Handler returns the fully routed handler
func (bp *Boilerplate) Handler() http.Handler {
	return bp.handler
}

// Run serves until SIGINT, SIGTERM or a server error, then shuts down
// gracefully.
func (bp *Boilerplate) Run() error {
	log.LogInfoWithFields("boilerplate", "Starting MCP server", map[string]any{
		"addr": bp.config.Server.Addr,
	})

	errChan := make(chan error, 1)
	go func() {
		if err := bp.httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var shutdownReason string
	select {
	case sig := <-sigChan:
		shutdownReason = fmt.Sprintf("signal %v", sig)
		log.LogInfoWithFields("boilerplate", "Received shutdown signal", map[string]any{
			"signal": sig.String(),
		})
	case err := <-errChan:
		shutdownReason = fmt.Sprintf("error: %v", err)
		log.LogErrorWithFields("boilerplate", "Shutting down due to error", map[string]any{
			"error": err.Error(),
		})
	}

	log.LogInfoWithFields("boilerplate", "Starting graceful shutdown", map[string]any{
		"reason":  shutdownReason,
		"timeout": shutdownTimeout.String(),
	})
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := bp.httpServer.Stop(shutdownCtx); err != nil {
		log.LogErrorWithFields("boilerplate", "HTTP server shutdown error", map[string]any{
			"error": err.Error(),
		})
		return err
	}
	if err := bp.storage.Close(); err != nil {
		log.LogWarnWithFields("boilerplate", "Failed to close storage", map[string]any{
			"error": err.Error(),
		})
	}

	log.LogInfoWithFields("boilerplate", "Shutdown complete", map[string]any{
		"reason": shutdownReason,
	})
	return nil
}

func setupStorage(ctx context.Context, cfg config.Config) (storage.Storage, error) {
	if cfg.Auth.Storage == config.StorageFirestore {
		log.LogInfoWithFields("storage", "Using Firestore storage", map[string]any{
			"project":    cfg.Auth.GCPProject,
			"database":   cfg.Auth.FirestoreDatabase,
			"collection": cfg.Auth.FirestoreCollection,
		})
		fs, err := storage.NewFirestoreStorage(ctx, cfg.Auth.GCPProject, cfg.Auth.FirestoreDatabase, cfg.Auth.FirestoreCollection)
		if err != nil {
			return nil, fmt.Errorf("failed to create Firestore storage: %w", err)
		}
		return fs, nil
	}

	log.LogInfoWithFields("storage", "Using in-memory storage", map[string]any{})
	return storage.NewMemoryStorage(), nil
}

func setupAuthentication(cfg config.Config, store storage.Storage) (*auth, error) {
	secret, err := oauth.GenerateSigningSecret(string(cfg.Auth.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to setup signing secret: %w", err)
	}

	provider, err := oauth.NewOAuthProvider(oauth.ProviderConfig{
		Issuer:         cfg.Server.BaseURL,
		TokenTTL:       cfg.Auth.TokenTTL,
		SigningSecret:  secret,
		RelaxedEntropy: envutil.IsDev(),
	}, store)
	if err != nil {
		return nil, fmt.Errorf("failed to create OAuth provider: %w", err)
	}

	resourceMD, err := oauth.ProtectedResourceMetadataURI(cfg.Server.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to build resource metadata URI: %w", err)
	}

	google := idp.NewGoogleProvider(idp.GoogleConfig{
		ClientID:     cfg.Auth.GoogleClientID,
		ClientSecret: string(cfg.Auth.GoogleClientSecret),
		RedirectURI:  cfg.Auth.GoogleRedirectURI,
		HostedDomain: cfg.Auth.HostedDomain,
		AuthURL:      envutil.Getenv("GOOGLE_OAUTH_AUTH_URL", ""),
		TokenURL:     envutil.Getenv("GOOGLE_OAUTH_TOKEN_URL", ""),
		UserInfoURL:  envutil.Getenv("GOOGLE_USERINFO_URL", ""),
	})

	return &auth{
		provider:   provider,
		server:     oauth.NewServer(provider, store),
		google:     google,
		resourceMD: resourceMD,
	}, nil
}

func setupBilling(cfg config.Config, store storage.Storage, m *metrics.Metrics) *billingDeps {
	if cfg.Stripe == nil {
		log.LogInfoWithFields("billing", "Stripe not configured, paid tools disabled", nil)
		return nil
	}

	api := billing.NewStripeClient(string(cfg.Stripe.SecretKey), nil)
	customers := billing.NewCustomers(api, store)
	return &billingDeps{
		gate:     billing.NewGate(api, customers, urlutil.MustJoinPath(cfg.Server.BaseURL, "payment", "success"), m),
		reporter: billing.NewReporter(api, customers, cfg.Server.BaseURL),
		webhook:  billing.NewWebhookHandler(string(cfg.Stripe.SecretKey), string(cfg.Stripe.WebhookSecret), m),
	}
}

func newMCPServer(cfg config.Config, b *billingDeps, m *metrics.Metrics) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer(cfg.Server.Name, Version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)

	deps := tools.Deps{Metrics: m}
	var prices tools.Prices
	if b != nil {
		deps.Gate = b.gate
		deps.Reporter = b.reporter
		prices = tools.Prices{
			OneTime:      cfg.Stripe.OneTimePriceID,
			Subscription: cfg.Stripe.SubscriptionPriceID,
			Metered:      cfg.Stripe.MeteredPriceID,
			MeterEvent:   cfg.Stripe.MeterEventName,
		}
	}
	tools.Register(s, deps, prices)
	return s
}

// propsContext carries the bearer token's props from the HTTP request into
// the MCP handler context.
func propsContext(ctx context.Context, r *http.Request) context.Context {
	if props, ok := oauth.PropsFromContext(r.Context()); ok {
		return oauth.WithProps(ctx, props)
	}
	return ctx
}

func buildHTTPHandler(cfg config.Config, store storage.Storage, a *auth, b *billingDeps, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()

	corsMiddleware := server.NewCORSMiddleware(cfg.Server.AllowedOrigins)
	oauthMiddleware := []server.MiddlewareFunc{
		corsMiddleware,
		server.NewLoggerMiddleware("oauth", m),
		server.NewRecoverMiddleware("oauth"),
	}
	mcpMiddleware := []server.MiddlewareFunc{
		corsMiddleware,
		server.NewLoggerMiddleware("mcp", m),
		oauth.NewValidateTokenMiddleware(a.provider, a.resourceMD),
		server.NewRecoverMiddleware("mcp"),
	}
	pageMiddleware := []server.MiddlewareFunc{
		server.NewLoggerMiddleware("http", m),
		server.NewRecoverMiddleware("http"),
	}

	page := server.PageData{
		Name:        cfg.Server.Name,
		Description: cfg.Server.Description,
		Logo:        cfg.Server.Logo,
		Provider:    cfg.Server.Provider,
		BaseURL:     cfg.Server.BaseURL,
	}

	mux.Handle("/health", server.NewHealthHandler())
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/", server.ChainMiddleware(server.NewHomeHandler(page), pageMiddleware...))
	mux.Handle("/payment/success", server.ChainMiddleware(server.NewPaymentSuccessHandler(page), pageMiddleware...))

	if b != nil {
		mux.Handle("/webhooks/stripe", server.ChainMiddleware(server.AllowMethods(b.webhook.ServeHTTP, http.MethodPost), pageMiddleware...))
	}

	authHandlers := server.NewAuthHandlers(a.server, a.provider, a.google, store, server.AuthHandlersConfig{
		Issuer:       cfg.Server.BaseURL,
		CookieSecret: string(cfg.Auth.CookieEncryptionKey),
		HostedDomain: cfg.Auth.HostedDomain,
		Server: approval.ServerInfo{
			Provider:    cfg.Server.Provider,
			Name:        cfg.Server.Name,
			Logo:        cfg.Server.Logo,
			Description: cfg.Server.Description,
		},
	}, m)

	mux.Handle("/.well-known/oauth-authorization-server", server.ChainMiddleware(http.HandlerFunc(authHandlers.WellKnownHandler), oauthMiddleware...))
	mux.Handle("/.well-known/oauth-protected-resource", server.ChainMiddleware(http.HandlerFunc(authHandlers.ProtectedResourceMetadataHandler), oauthMiddleware...))
	mux.Handle("/authorize", server.ChainMiddleware(http.HandlerFunc(authHandlers.AuthorizeHandler), oauthMiddleware...))
	mux.Handle("/callback", server.ChainMiddleware(http.HandlerFunc(authHandlers.CallbackHandler), oauthMiddleware...))
	mux.Handle("/callback/google", server.ChainMiddleware(http.HandlerFunc(authHandlers.CallbackHandler), oauthMiddleware...))
	mux.Handle("/token", server.ChainMiddleware(http.HandlerFunc(authHandlers.TokenHandler), oauthMiddleware...))
	mux.Handle("/register", server.ChainMiddleware(http.HandlerFunc(authHandlers.RegisterHandler), oauthMiddleware...))

	mcpServer := newMCPServer(cfg, b, m)

	sseServer := mcpserver.NewSSEServer(mcpServer,
		mcpserver.WithBaseURL(cfg.Server.BaseURL),
		mcpserver.WithSSEEndpoint("/sse"),
		mcpserver.WithMessageEndpoint("/message"),
		mcpserver.WithSSEContextFunc(propsContext),
	)
	mux.Handle("/sse", server.ChainMiddleware(sseServer.SSEHandler(), mcpMiddleware...))
	mux.Handle("/message", server.ChainMiddleware(sseServer.MessageHandler(), mcpMiddleware...))

	streamable := mcpserver.NewStreamableHTTPServer(mcpServer,
		mcpserver.WithEndpointPath("/mcp"),
		mcpserver.WithHTTPContextFunc(propsContext),
	)
	mux.Handle("/mcp", server.ChainMiddleware(streamable, mcpMiddleware...))

	log.LogInfoWithFields("boilerplate", "Routes registered", map[string]any{
		"billing": b != nil,
	})
	return mux
}
