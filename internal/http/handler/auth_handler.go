package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sandeepkv93/credential-session-core/internal/domain"
	"github.com/sandeepkv93/credential-session-core/internal/http/middleware"
	"github.com/sandeepkv93/credential-session-core/internal/http/response"
	"github.com/sandeepkv93/credential-session-core/internal/observability"
	"github.com/sandeepkv93/credential-session-core/internal/security"
	"github.com/sandeepkv93/credential-session-core/internal/service"
)

// CookieSettings controls how issued sessions land in the browser.
type CookieSettings struct {
	SessionCookieName string
	Secure            bool
	SessionTTL        time.Duration
	AccessTTL         time.Duration
}

type AuthHandler struct {
	auth    service.AuthServiceInterface
	cookies CookieSettings
}

func NewAuthHandler(auth service.AuthServiceInterface, cookies CookieSettings) *AuthHandler {
	if cookies.SessionCookieName == "" {
		cookies.SessionCookieName = "session_token"
	}
	return &AuthHandler{auth: auth, cookies: cookies}
}

type credentialsRequest struct {
	AccountID string `json:"account_id"`
	Password  string `json:"password"`
}

type accountRequest struct {
	AccountID string `json:"account_id"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type resetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type sessionResponse struct {
	AccountID   string    `json:"account_id"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.AccountID = strings.TrimSpace(req.AccountID)
	if req.AccountID == "" || req.Password == "" {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "account_id and password are required", nil)
		return
	}

	result, err := h.auth.Register(r.Context(), req.AccountID, req.Password, clientMetadata(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAccountExists):
			response.Error(w, r, http.StatusConflict, "ACCOUNT_EXISTS", "account already registered", nil)
		case errors.Is(err, security.ErrEmptyPassword):
			response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "password must not be empty", nil)
		default:
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "registration failed", nil)
		}
		return
	}

	observability.AuditAuth(r, "credential_register", result.AccountID)
	setSessionCookies(w, h.cookies, result)
	response.JSON(w, r, http.StatusCreated, sessionResponse{
		AccountID:   result.AccountID,
		AccessToken: result.AccessToken,
		ExpiresAt:   result.ExpiresAt,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.auth.Login(r.Context(), strings.TrimSpace(req.AccountID), req.Password, clientMetadata(r))
	if err != nil {
		var throttled *service.TooManyAttemptsError
		switch {
		case errors.As(err, &throttled):
			writeThrottled(w, r, throttled)
		case errors.Is(err, service.ErrInvalidCredentials):
			response.Error(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid account or password", nil)
		default:
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "login failed", nil)
		}
		return
	}

	observability.AuditAuth(r, "session_login", result.AccountID)
	setSessionCookies(w, h.cookies, result)
	response.JSON(w, r, http.StatusOK, sessionResponse{
		AccountID:   result.AccountID,
		AccessToken: result.AccessToken,
		ExpiresAt:   result.ExpiresAt,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := security.GetCookie(r, h.cookies.SessionCookieName)
	revoked, err := h.auth.Logout(r.Context(), token)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "logout failed", nil)
		return
	}
	observability.AuditAuth(r, "session_logout", "", "revoked", revoked)
	clearSessionCookies(w, h.cookies)
	response.JSON(w, r, http.StatusOK, map[string]any{"revoked": revoked})
}

func (h *AuthHandler) VerifyRequest(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.AccountID = strings.TrimSpace(req.AccountID)
	if req.AccountID == "" {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "account_id is required", nil)
		return
	}

	if err := h.auth.RequestVerification(r.Context(), req.AccountID, domain.PurposeEmailVerify, clientMetadata(r)); err != nil {
		var throttled *service.TooManyAttemptsError
		if errors.As(err, &throttled) {
			writeThrottled(w, r, throttled)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "verification request failed", nil)
		return
	}
	response.JSON(w, r, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *AuthHandler) VerifyConfirm(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	accountID, err := h.auth.ConfirmEmail(r.Context(), req.Token)
	if err != nil {
		writeVerificationError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]string{"account_id": accountID})
}

// PasswordForgot accepts the request without revealing whether the
// account exists. Only throttling is surfaced to the caller.
func (h *AuthHandler) PasswordForgot(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.AccountID = strings.TrimSpace(req.AccountID)
	if req.AccountID == "" {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "account_id is required", nil)
		return
	}

	if err := h.auth.RequestVerification(r.Context(), req.AccountID, domain.PurposePasswordReset, clientMetadata(r)); err != nil {
		var throttled *service.TooManyAttemptsError
		if errors.As(err, &throttled) {
			writeThrottled(w, r, throttled)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "reset request failed", nil)
		return
	}
	response.JSON(w, r, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *AuthHandler) PasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.NewPassword == "" {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "new_password is required", nil)
		return
	}

	accountID, err := h.auth.ResetPassword(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		if errors.Is(err, security.ErrEmptyPassword) {
			response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "new_password is invalid", nil)
			return
		}
		writeVerificationError(w, r, err)
		return
	}
	observability.AuditAuth(r, "password_reset", accountID)
	clearSessionCookies(w, h.cookies)
	response.JSON(w, r, http.StatusOK, map[string]string{"account_id": accountID})
}

func setSessionCookies(w http.ResponseWriter, cookies CookieSettings, result *service.LoginResult) {
	sessionMaxAge := int(cookies.SessionTTL.Seconds())
	accessMaxAge := int(cookies.AccessTTL.Seconds())
	http.SetCookie(w, &http.Cookie{
		Name:     cookies.SessionCookieName,
		Value:    result.SessionToken,
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    result.AccessToken,
		Path:     "/",
		MaxAge:   accessMaxAge,
		HttpOnly: true,
		Secure:   cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	// Readable by the frontend so it can mirror it into X-CSRF-Token.
	http.SetCookie(w, &http.Cookie{
		Name:     "csrf_token",
		Value:    result.CSRFToken,
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: false,
		Secure:   cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookies(w http.ResponseWriter, cookies CookieSettings) {
	for _, name := range []string{cookies.SessionCookieName, "access_token", "csrf_token"} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: name != "csrf_token",
			Secure:   cookies.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func writeThrottled(w http.ResponseWriter, r *http.Request, throttled *service.TooManyAttemptsError) {
	seconds := int(throttled.RetryAfter.Round(time.Second).Seconds())
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many attempts", map[string]any{"retry_after_seconds": seconds})
}

func writeVerificationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrVerificationConsumed):
		response.Error(w, r, http.StatusConflict, "TOKEN_CONSUMED", "token already used", nil)
	case errors.Is(err, service.ErrVerificationExpired):
		response.Error(w, r, http.StatusGone, "TOKEN_EXPIRED", "token expired", nil)
	case errors.Is(err, service.ErrVerificationInvalid), errors.Is(err, service.ErrUnknownPurpose):
		response.Error(w, r, http.StatusBadRequest, "INVALID_TOKEN", "token is invalid", nil)
	default:
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "verification failed", nil)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			response.Error(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large", nil)
			return false
		}
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return false
	}
	return true
}

func clientMetadata(r *http.Request) service.ClientMetadata {
	ip := r.RemoteAddr
	if parsed := middleware.ParseRequestIP(r); parsed != nil {
		ip = parsed.String()
	}
	return service.ClientMetadata{
		UserAgent: r.UserAgent(),
		IP:        ip,
	}
}
