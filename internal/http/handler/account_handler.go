package handler

import (
	"net/http"

	"github.com/sandeepkv93/credential-session-core/internal/http/middleware"
	"github.com/sandeepkv93/credential-session-core/internal/http/response"
	"github.com/sandeepkv93/credential-session-core/internal/service"
)

// AccountHandler serves the authenticated /me surface.
type AccountHandler struct {
	auth    service.AuthServiceInterface
	cookies CookieSettings
}

func NewAccountHandler(auth service.AuthServiceInterface, cookies CookieSettings) *AccountHandler {
	if cookies.SessionCookieName == "" {
		cookies.SessionCookieName = "session_token"
	}
	return &AccountHandler{auth: auth, cookies: cookies}
}

func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing access token", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]string{"account_id": claims.Subject})
}

func (h *AccountHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing access token", nil)
		return
	}
	sessions, err := h.auth.Sessions().ListActiveSessions(claims.Subject, claims.ID)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "list sessions failed", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"sessions": sessions})
}

// RevokeAllSessions signs the account out everywhere, including the
// session behind the presented access token.
func (h *AccountHandler) RevokeAllSessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing access token", nil)
		return
	}
	revoked, err := h.auth.LogoutAll(r.Context(), claims.Subject)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "revoke sessions failed", nil)
		return
	}
	clearSessionCookies(w, h.cookies)
	response.JSON(w, r, http.StatusOK, map[string]any{"revoked": revoked})
}
