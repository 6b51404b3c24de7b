package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/sandeepkv93/credential-session-core/internal/http/response"
	"github.com/sandeepkv93/credential-session-core/internal/observability"
	"github.com/sandeepkv93/credential-session-core/internal/security"
)

const (
	csrfCookieName = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"
)

// CSRFMiddleware implements the double-submit check: the csrf_token
// cookie must match the X-CSRF-Token header byte for byte.
func CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie := security.GetCookie(r, csrfCookieName)
		header := r.Header.Get(csrfHeaderName)
		if cookie == "" || header == "" {
			observability.RecordCSRFRejection(csrfPathGroup(r.URL.Path), "missing")
			response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "csrf token missing", nil)
			return
		}
		if subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) != 1 {
			observability.RecordCSRFRejection(csrfPathGroup(r.URL.Path), "mismatch")
			response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "csrf token mismatch", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// csrfPathGroup collapses request paths into a small label set so the
// rejection metric stays low cardinality.
func csrfPathGroup(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "root"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] == "api" && len(parts) >= 3 {
		return "api/" + parts[2]
	}
	return parts[0]
}
