package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/isdelr/tasktracker-be/internal/api/respond"
	"github.com/rs/zerolog/hlog"
)

type contextKey string

// UserClaimsKey is the context key for user claims.
const UserClaimsKey = contextKey("userClaims")

// QueryTokenParam is read by Middleware when allowQuery is set.
const QueryTokenParam = "access_token"

// Middleware rejects requests without a valid bearer token and passes the
// claims down via the request context. With allowQuery the token may also
// come from the access_token query parameter, which WebSocket handshakes need.
func Middleware(issuer *TokenIssuer, allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerToken(r)
			if tokenStr == "" && allowQuery {
				tokenStr = r.URL.Query().Get(QueryTokenParam)
			}
			if tokenStr == "" {
				respond.Error(w, http.StatusUnauthorized, "Missing auth token")
				return
			}

			claims, err := issuer.VerifyToken(tokenStr)
			if err != nil {
				hlog.FromRequest(r).Debug().Err(err).Msg("Rejected auth token")
				respond.Error(w, http.StatusUnauthorized, "Invalid or expired auth token")
				return
			}

			ctx := context.WithValue(r.Context(), UserClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the claims stored by Middleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(UserClaimsKey).(*Claims)
	return claims, ok
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
