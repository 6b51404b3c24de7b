package domain

import "time"

// Verification token purposes. A token redeems only for the purpose it was
// issued with.
const (
	PurposeEmailVerify   = "email_verify"
	PurposePasswordReset = "password_reset"
)

// ValidPurpose reports whether p is a known verification purpose.
func ValidPurpose(p string) bool {
	return p == PurposeEmailVerify || p == PurposePasswordReset
}

// SessionToken is an authenticated session. Only the SHA-256 hash of the
// opaque token value is stored; the plaintext goes to the client once and is
// never persisted.
type SessionToken struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	AccountID     string     `gorm:"size:64;index;not null" json:"account_id"`
	TokenHash     string     `gorm:"size:128;uniqueIndex;not null" json:"-"`
	TokenID       string     `gorm:"size:64;uniqueIndex" json:"-"`
	UserAgent     string     `gorm:"size:512" json:"user_agent"`
	IP            string     `gorm:"size:64" json:"ip"`
	ExpiresAt     time.Time  `gorm:"index;not null" json:"expires_at"`
	LastSeenAt    *time.Time `gorm:"index" json:"last_seen_at,omitempty"`
	RevokedAt     *time.Time `gorm:"index" json:"revoked_at,omitempty"`
	RevokedReason *string    `gorm:"size:64" json:"revoked_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// IsExpiredAt reports whether the session is expired at the given instant.
func (s *SessionToken) IsExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsActiveAt reports whether the session is neither revoked nor expired at
// the given instant.
func (s *SessionToken) IsActiveAt(now time.Time) bool {
	return s.RevokedAt == nil && !s.IsExpiredAt(now)
}

// VerificationToken is a single-use, short-lived token proving control of an
// email address or authorizing a password change. As with sessions, only the
// token hash is stored.
type VerificationToken struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	AccountID  string     `gorm:"size:64;index;not null" json:"account_id"`
	TokenHash  string     `gorm:"size:128;uniqueIndex;not null" json:"-"`
	Purpose    string     `gorm:"size:32;index;not null" json:"purpose"`
	ExpiresAt  time.Time  `gorm:"index;not null" json:"expires_at"`
	ConsumedAt *time.Time `gorm:"index" json:"consumed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// IsExpiredAt reports whether the token is expired at the given instant.
func (v *VerificationToken) IsExpiredAt(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}
