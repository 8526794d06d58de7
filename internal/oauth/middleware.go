package oauth

import (
	"net/http"
	"strings"

	jsonwriter "github.com/dgellow/mcp-boilerplate/internal/json"
	"github.com/dgellow/mcp-boilerplate/internal/log"
	"github.com/dgellow/mcp-boilerplate/internal/oauthsession"
	"github.com/ory/fosite"
)

// NewValidateTokenMiddleware rejects requests without a valid access
// token and puts the token's Props on the request context.
func NewValidateTokenMiddleware(provider fosite.OAuth2Provider, resourceMetadataURI string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			auth := r.Header.Get("Authorization")
			if auth == "" {
				jsonwriter.WriteUnauthorizedWithMetadata(w, "Missing authorization header", resourceMetadataURI)
				return
			}

			scheme, token, ok := strings.Cut(auth, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				jsonwriter.WriteUnauthorizedWithMetadata(w, "Invalid authorization header format", resourceMetadataURI)
				return
			}

			// IntrospectToken does not populate the session argument; the
			// stored session comes back on the returned AccessRequester.
			_, accessRequest, err := provider.IntrospectToken(ctx, token, fosite.AccessToken, oauthsession.Empty())
			if err != nil {
				log.LogDebugWithFields("oauth", "Token introspection failed", map[string]any{
					"error": err.Error(),
				})
				jsonwriter.WriteUnauthorizedWithMetadata(w, "Invalid or expired token", resourceMetadataURI)
				return
			}

			session, ok := accessRequest.GetSession().(*oauthsession.Session)
			if !ok {
				jsonwriter.WriteUnauthorizedWithMetadata(w, "Invalid or expired token", resourceMetadataURI)
				return
			}

			log.LogTraceWithFields("oauth", "Bearer token accepted", map[string]any{
				"client_id": accessRequest.GetClient().GetID(),
				"email":     session.Props.Email,
			})
			next.ServeHTTP(w, r.WithContext(WithProps(ctx, session.Props)))
		})
	}
}
