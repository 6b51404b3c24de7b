package domain

import "time"

// Credential is one password-based authentication method bound to an account.
// The account entity itself lives in an external account store; this service
// only owns the credential bytes.
type Credential struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AccountID    string    `gorm:"size:64;uniqueIndex;not null" json:"account_id"`
	PasswordHash string    `gorm:"size:256;not null" json:"-"`
	Iterations   int       `gorm:"not null" json:"iterations"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
