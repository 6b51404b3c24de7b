package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
)

// TokenBytes is the entropy of opaque token values: 32 bytes, well above the
// 128-bit floor that makes collisions negligible by construction.
const TokenBytes = 32

// NewTokenValue generates an opaque high-entropy token value.
func NewTokenValue() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken computes the peppered HMAC-SHA256 hash of a token value. Only
// hashes are persisted, so a leaked database does not yield usable tokens.
func HashToken(value, pepper string) string {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

// ConstantTimeEqual compares two strings without leaking the position of the
// first difference.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// NewCSRFToken generates a random CSRF double-submit value.
func NewCSRFToken() (string, error) {
	return NewTokenValue()
}

// GetCookie returns the named cookie's value, or "" when absent.
func GetCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
