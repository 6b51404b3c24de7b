package security

import (
	"strings"
	"testing"
	"time"
)

func newJWTManagerForTest() *JWTManager {
	return NewJWTManager("test-issuer", "test-audience", strings.Repeat("k", 32))
}

func TestSignAndParseAccessToken(t *testing.T) {
	mgr := newJWTManagerForTest()

	raw, err := mgr.SignAccessTokenWithJTI("acct-1", time.Minute, "session-token-id")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := mgr.ParseAccessToken(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "acct-1" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if claims.ID != "session-token-id" {
		t.Fatalf("unexpected jti %q", claims.ID)
	}
	if claims.TokenType != "access" {
		t.Fatalf("unexpected token type %q", claims.TokenType)
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	mgr := newJWTManagerForTest()

	raw, err := mgr.SignAccessToken("acct-1", -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := mgr.ParseAccessToken(raw); err == nil {
		t.Fatal("expired token must not parse")
	}
}

func TestParseAccessTokenRejectsWrongSecret(t *testing.T) {
	mgr := newJWTManagerForTest()
	other := NewJWTManager("test-issuer", "test-audience", strings.Repeat("x", 32))

	raw, err := mgr.SignAccessToken("acct-1", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := other.ParseAccessToken(raw); err == nil {
		t.Fatal("token signed with another secret must not parse")
	}
}

func TestParseAccessTokenRejectsWrongAudience(t *testing.T) {
	mgr := newJWTManagerForTest()
	other := NewJWTManager("test-issuer", "other-audience", strings.Repeat("k", 32))

	raw, err := mgr.SignAccessToken("acct-1", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := other.ParseAccessToken(raw); err == nil {
		t.Fatal("token for another audience must not parse")
	}
}

func TestParseAccessTokenRejectsGarbage(t *testing.T) {
	mgr := newJWTManagerForTest()
	if _, err := mgr.ParseAccessToken("not.a.jwt"); err == nil {
		t.Fatal("garbage must not parse")
	}
}
