package auth

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

type contextKey string

// UserClaimsKey is the context key for session claims.
const UserClaimsKey = contextKey("userClaims")

// RequireSession protects routes with the session cookie. A missing cookie is
// 401; a cookie that fails verification is 403.
func (t *TokenIssuer) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := SessionCookie(r)
		if tokenStr == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := t.Verify(tokenStr)
		if err != nil {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected session token")
			http.Error(w, "Token is invalid", http.StatusForbidden)
			return
		}

		ctx := context.WithValue(r.Context(), UserClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext returns the claims stored by RequireSession.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(UserClaimsKey).(*Claims)
	return claims, ok
}
