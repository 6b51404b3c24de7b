package security

import (
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2-HMAC-SHA256 parameters. The iteration count is an explicit parameter
// everywhere so that records written under an older default keep verifying;
// use the hashbench tool to tune DefaultIterations for a deployment's CPU
// budget before changing it.
const (
	KDFAlgorithm      = "pbkdf2-sha256"
	SaltLength        = 16
	KeyLength         = 32
	DefaultIterations = 120_000
	MinIterations     = 1_000
	MaxIterations     = 1 << 28
)

// ErrBadIterations is returned when an iteration count is outside the
// supported range.
var ErrBadIterations = errors.New("iteration count out of range")

// DeriveKey derives a fixed-length key from a password and salt. Deterministic:
// the same inputs always yield the same bytes.
func DeriveKey(password, salt []byte, iterations int) ([]byte, error) {
	if iterations < 1 || iterations > MaxIterations {
		return nil, ErrBadIterations
	}
	return pbkdf2.Key(password, salt, iterations, KeyLength, sha256.New), nil
}
