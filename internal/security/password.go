package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyPassword is returned when attempting to hash an empty password.
	ErrEmptyPassword = errors.New("password cannot be empty")

	// ErrCorruptCredential is returned when a stored credential record cannot
	// be decoded. Distinct from a password mismatch so data-integrity bugs are
	// never masked as "wrong password".
	ErrCorruptCredential = errors.New("corrupt credential record")
)

// PasswordRecord is a decoded stored credential: algorithm parameters plus the
// raw salt and derived key.
type PasswordRecord struct {
	Algorithm  string
	Iterations int
	Salt       []byte
	Key        []byte
}

// Encode serializes the record as $pbkdf2-sha256$i=N$<b64 salt>$<b64 key>.
// The encoding is self-describing: byte lengths and the iteration count are
// recoverable without out-of-band knowledge.
func (r *PasswordRecord) Encode() string {
	return fmt.Sprintf("$%s$i=%d$%s$%s",
		r.Algorithm,
		r.Iterations,
		base64.RawStdEncoding.EncodeToString(r.Salt),
		base64.RawStdEncoding.EncodeToString(r.Key),
	)
}

// DecodePasswordHash parses an encoded credential record. Any structural
// problem is reported as ErrCorruptCredential.
func DecodePasswordHash(encoded string) (*PasswordRecord, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[0] != "" {
		return nil, fmt.Errorf("%w: wrong field count", ErrCorruptCredential)
	}
	if parts[1] != KDFAlgorithm {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrCorruptCredential, parts[1])
	}
	var iterations int
	if _, err := fmt.Sscanf(parts[2], "i=%d", &iterations); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCredential, err)
	}
	if iterations < 1 || iterations > MaxIterations {
		return nil, fmt.Errorf("%w: iteration count %d out of range", ErrCorruptCredential, iterations)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCredential, err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCredential, err)
	}
	if len(salt) == 0 || len(key) != KeyLength {
		return nil, fmt.Errorf("%w: bad salt or key length", ErrCorruptCredential)
	}
	return &PasswordRecord{Algorithm: KDFAlgorithm, Iterations: iterations, Salt: salt, Key: key}, nil
}

// HashPassword hashes a password with the current default iteration count.
func HashPassword(password string) (string, error) {
	return HashPasswordWithIterations(password, DefaultIterations)
}

// HashPasswordWithIterations hashes a password with a fresh random salt and
// the given iteration count.
func HashPasswordWithIterations(password string, iterations int) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if iterations < MinIterations || iterations > MaxIterations {
		return "", ErrBadIterations
	}
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key, err := DeriveKey([]byte(password), salt, iterations)
	if err != nil {
		return "", err
	}
	r := &PasswordRecord{Algorithm: KDFAlgorithm, Iterations: iterations, Salt: salt, Key: key}
	return r.Encode(), nil
}

// VerifyPassword re-derives a key using the stored salt and the iteration
// count recorded in the stored record, then compares in constant time.
// Returns (false, nil) on mismatch; errors only for corrupt records.
func VerifyPassword(password, encoded string) (bool, error) {
	record, err := DecodePasswordHash(encoded)
	if err != nil {
		return false, err
	}
	computed, err := DeriveKey([]byte(password), record.Salt, record.Iterations)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCorruptCredential, err)
	}
	return subtle.ConstantTimeCompare(computed, record.Key) == 1, nil
}

// NeedsRehash reports whether a stored record was produced with a weaker
// iteration count than the given current default.
func NeedsRehash(encoded string, currentIterations int) bool {
	record, err := DecodePasswordHash(encoded)
	if err != nil {
		return true
	}
	return record.Iterations < currentIterations
}
