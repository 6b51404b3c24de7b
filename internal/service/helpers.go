package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// hashToken collapses arbitrary cache keys and identities into a fixed
// length digest so raw tokens and emails never appear in redis keys.
func hashToken(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}

func normalizeToken(v string) string {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" {
		return "unknown"
	}
	return v
}

func normalizeAuthIdentity(identity string) string {
	return strings.TrimSpace(strings.ToLower(identity))
}
