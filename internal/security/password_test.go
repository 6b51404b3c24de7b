package security

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")

	k1, err := DeriveKey([]byte("correct horse battery staple"), salt, MinIterations)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	k2, err := DeriveKey([]byte("correct horse battery staple"), salt, MinIterations)
	if err != nil {
		t.Fatalf("derive again: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Fatal("same inputs must derive the same key")
	}
	if len(k1) != KeyLength {
		t.Fatalf("expected %d byte key, got %d", KeyLength, len(k1))
	}

	k3, err := DeriveKey([]byte("correct horse battery staple"), salt, MinIterations+1)
	if err != nil {
		t.Fatalf("derive with different cost: %v", err)
	}
	if bytes.Equal(k1, k3) {
		t.Fatal("different iteration counts must derive different keys")
	}
}

func TestDeriveKeyRejectsBadIterations(t *testing.T) {
	if _, err := DeriveKey([]byte("p"), []byte("s"), 0); !errors.Is(err, ErrBadIterations) {
		t.Fatalf("expected ErrBadIterations for 0, got %v", err)
	}
	if _, err := DeriveKey([]byte("p"), []byte("s"), MaxIterations+1); !errors.Is(err, ErrBadIterations) {
		t.Fatalf("expected ErrBadIterations above max, got %v", err)
	}
	// 1 is below the hashing minimum but must stay verifiable for old
	// records.
	if _, err := DeriveKey([]byte("p"), []byte("s"), 1); err != nil {
		t.Fatalf("iterations=1 must derive: %v", err)
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	encoded, err := HashPasswordWithIterations("correct horse battery staple", MinIterations)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$pbkdf2-sha256$i=") {
		t.Fatalf("unexpected encoding %q", encoded)
	}

	ok, err := VerifyPassword("correct horse battery staple", encoded)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("correct password must verify")
	}

	ok, err = VerifyPassword("correct horse battery stapler", encoded)
	if err != nil {
		t.Fatalf("verify wrong: %v", err)
	}
	if ok {
		t.Fatal("wrong password must not verify")
	}
}

func TestHashPasswordSaltUniqueness(t *testing.T) {
	a, err := HashPasswordWithIterations("same password", MinIterations)
	if err != nil {
		t.Fatalf("hash a: %v", err)
	}
	b, err := HashPasswordWithIterations("same password", MinIterations)
	if err != nil {
		t.Fatalf("hash b: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same password must differ by salt")
	}
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	if _, err := HashPassword(""); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
}

func TestHashPasswordRejectsWeakCost(t *testing.T) {
	if _, err := HashPasswordWithIterations("pw", MinIterations-1); !errors.Is(err, ErrBadIterations) {
		t.Fatalf("expected ErrBadIterations, got %v", err)
	}
}

func TestVerifyOldRecordAfterCostIncrease(t *testing.T) {
	// A record hashed at a lower cost verifies using its own stored
	// iteration count, not the current default.
	encoded, err := HashPasswordWithIterations("legacy password", MinIterations)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	ok, err := VerifyPassword("legacy password", encoded)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("legacy record must keep verifying")
	}
	if !NeedsRehash(encoded, MinIterations*2) {
		t.Fatal("legacy record must be flagged for rehash")
	}
	if NeedsRehash(encoded, MinIterations) {
		t.Fatal("record at current cost must not need rehash")
	}
}

func TestDecodePasswordHashRoundTrip(t *testing.T) {
	encoded, err := HashPasswordWithIterations("round trip", MinIterations)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	record, err := DecodePasswordHash(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record.Iterations != MinIterations {
		t.Fatalf("stored iterations %d, want %d", record.Iterations, MinIterations)
	}
	if len(record.Salt) != SaltLength || len(record.Key) != KeyLength {
		t.Fatalf("bad salt/key lengths: %d/%d", len(record.Salt), len(record.Key))
	}
	if record.Encode() != encoded {
		t.Fatal("re-encoding must reproduce the original record")
	}
}

func TestDecodePasswordHashCorruptInputs(t *testing.T) {
	cases := []struct {
		name    string
		encoded string
	}{
		{name: "empty", encoded: ""},
		{name: "garbage", encoded: "not-a-record"},
		{name: "wrong algorithm", encoded: "$argon2id$i=1000$c2FsdA$a2V5"},
		{name: "missing fields", encoded: "$pbkdf2-sha256$i=1000$c2FsdA"},
		{name: "bad iterations", encoded: "$pbkdf2-sha256$i=zero$c2FsdA$a2V5"},
		{name: "bad base64 salt", encoded: "$pbkdf2-sha256$i=1000$!!!$a2V5"},
		{name: "short key", encoded: "$pbkdf2-sha256$i=1000$c2FsdA$a2V5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodePasswordHash(tc.encoded); !errors.Is(err, ErrCorruptCredential) {
				t.Fatalf("expected ErrCorruptCredential, got %v", err)
			}
		})
	}
}

func TestVerifyPasswordCorruptRecordIsAnError(t *testing.T) {
	ok, err := VerifyPassword("whatever", "$pbkdf2-sha256$i=banana$x$y")
	if !errors.Is(err, ErrCorruptCredential) {
		t.Fatalf("expected ErrCorruptCredential, got ok=%v err=%v", ok, err)
	}
}
