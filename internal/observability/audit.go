package observability

import (
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// AuditAuth emits one log line per security-relevant credential or
// session action. accountID may be empty before authentication; token
// values and passwords must never appear in attrs.
func AuditAuth(r *http.Request, event, accountID string, attrs ...any) {
	base := []any{
		"event", event,
		"account_id", accountID,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", chimiddleware.GetReqID(r.Context()),
	}
	base = append(base, attrs...)
	slog.InfoContext(r.Context(), "audit", base...)
}
