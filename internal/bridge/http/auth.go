package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/d64ev/humhub-bridge/internal/bridge/token"
	"github.com/d64ev/humhub-bridge/pkg/httpx"
)

type claimsCtxKey struct{}

// SessionAuth requires a valid Bearer session token and stashes its claims on
// the request context.
func SessionAuth(tokens *token.Provider) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="bridge"`)
				httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{
					"error": "missing bearer token",
				})
				return
			}

			claims, err := tokens.Validate(raw)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="bridge", error="invalid_token"`)
				httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{
					"error": "invalid token",
				})
				return
			}

			ctx := context.WithValue(r.Context(), claimsCtxKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the session claims stored by SessionAuth.
func ClaimsFromContext(ctx context.Context) (token.SessionClaims, bool) {
	claims, ok := ctx.Value(claimsCtxKey{}).(token.SessionClaims)
	return claims, ok
}
