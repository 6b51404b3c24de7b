package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/sandeepkv93/credential-session-core/internal/domain"
	"github.com/sandeepkv93/credential-session-core/internal/http/response"
	"github.com/sandeepkv93/credential-session-core/internal/observability"
	"github.com/sandeepkv93/credential-session-core/internal/security"
)

type contextKey string

const (
	ClaimsContextKey contextKey = "claims"
)

// SessionBinder resolves the stored session a JWT's jti points at. A nil
// binder skips the session-of-record check and trusts the signature alone.
type SessionBinder interface {
	ResolveByTokenID(accountID, tokenID string) (*domain.SessionToken, error)
}

func AuthMiddleware(jwtMgr *security.JWTManager, sessions SessionBinder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := security.GetCookie(r, "access_token")
			source := "cookie"
			if raw == "" {
				auth := r.Header.Get("Authorization")
				if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
					raw = strings.TrimSpace(auth[7:])
					source = "bearer"
				}
			}
			if raw == "" {
				observability.RecordAccessTokenValidation("missing", "none")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing access token", nil)
				return
			}
			claims, err := jwtMgr.ParseAccessToken(raw)
			if err != nil {
				observability.RecordAccessTokenValidation("invalid", source)
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid access token", nil)
				return
			}
			if sessions != nil {
				if _, err := sessions.ResolveByTokenID(claims.Subject, claims.ID); err != nil {
					observability.RecordAccessTokenValidation("revoked", source)
					response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid access token", nil)
					return
				}
			}
			observability.RecordAccessTokenValidation("valid", source)
			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*security.Claims, bool) {
	c, ok := ctx.Value(ClaimsContextKey).(*security.Claims)
	return c, ok
}
