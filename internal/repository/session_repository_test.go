package repository

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sandeepkv93/credential-session-core/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestSessionRepositoryListActiveByAccountID(t *testing.T) {
	repo := newSessionRepoForTest(t)

	active := &domain.SessionToken{
		AccountID: "acct-1",
		TokenHash: "h1",
		TokenID:   "tok-1",
		ExpiresAt: time.Now().Add(2 * time.Hour),
	}
	revokedAt := time.Now().UTC()
	revoked := &domain.SessionToken{
		AccountID: "acct-1",
		TokenHash: "h2",
		TokenID:   "tok-2",
		ExpiresAt: time.Now().Add(2 * time.Hour),
		RevokedAt: &revokedAt,
	}
	expired := &domain.SessionToken{
		AccountID: "acct-1",
		TokenHash: "h3",
		TokenID:   "tok-3",
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	otherAccount := &domain.SessionToken{
		AccountID: "acct-2",
		TokenHash: "h4",
		TokenID:   "tok-4",
		ExpiresAt: time.Now().Add(2 * time.Hour),
	}

	for _, s := range []*domain.SessionToken{active, revoked, expired, otherAccount} {
		if err := repo.Create(s); err != nil {
			t.Fatalf("create %s: %v", s.TokenHash, err)
		}
	}

	sessions, err := repo.ListActiveByAccountID("acct-1")
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 active session, got %d", len(sessions))
	}
	if sessions[0].TokenHash != "h1" {
		t.Fatalf("unexpected active session: %+v", sessions[0])
	}
}

func TestSessionRepositoryCreateDuplicateHash(t *testing.T) {
	repo := newSessionRepoForTest(t)

	first := &domain.SessionToken{
		AccountID: "acct-1",
		TokenHash: "same-hash",
		TokenID:   "tok-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := repo.Create(first); err != nil {
		t.Fatalf("create first: %v", err)
	}

	dup := &domain.SessionToken{
		AccountID: "acct-2",
		TokenHash: "same-hash",
		TokenID:   "tok-2",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := repo.Create(dup); !errors.Is(err, ErrDuplicateSession) {
		t.Fatalf("expected ErrDuplicateSession, got %v", err)
	}
}

func TestSessionRepositoryRevokeByHashIdempotent(t *testing.T) {
	repo := newSessionRepoForTest(t)

	s := &domain.SessionToken{
		AccountID: "acct-1",
		TokenHash: "h1",
		TokenID:   "tok-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := repo.Create(s); err != nil {
		t.Fatalf("create: %v", err)
	}

	changed, err := repo.RevokeByHash("h1", "sign_out")
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if !changed {
		t.Fatal("expected changed=true on first revoke")
	}

	changed, err = repo.RevokeByHash("h1", "sign_out")
	if err != nil {
		t.Fatalf("idempotent revoke: %v", err)
	}
	if changed {
		t.Fatal("expected changed=false on already revoked session")
	}

	got, err := repo.FindByHash("h1")
	if err != nil {
		t.Fatalf("find after revoke: %v", err)
	}
	if got.RevokedAt == nil || got.RevokedReason == nil || *got.RevokedReason != "sign_out" {
		t.Fatalf("revocation not persisted: %+v", got)
	}
}

func TestSessionRepositoryRevokeByAccountID(t *testing.T) {
	repo := newSessionRepoForTest(t)

	for i := 0; i < 3; i++ {
		s := &domain.SessionToken{
			AccountID: "acct-1",
			TokenHash: fmt.Sprintf("h%d", i),
			TokenID:   fmt.Sprintf("tok-%d", i),
			ExpiresAt: time.Now().Add(time.Hour),
		}
		if err := repo.Create(s); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	other := &domain.SessionToken{
		AccountID: "acct-2",
		TokenHash: "other",
		TokenID:   "tok-other",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := repo.Create(other); err != nil {
		t.Fatalf("create other: %v", err)
	}

	n, err := repo.RevokeByAccountID("acct-1", "password_reset")
	if err != nil {
		t.Fatalf("revoke by account: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 revoked, got %d", n)
	}

	sessions, err := repo.ListActiveByAccountID("acct-2")
	if err != nil {
		t.Fatalf("list other account: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("other account should keep its session, got %d", len(sessions))
	}
}

func TestSessionRepositoryTouchLastSeen(t *testing.T) {
	repo := newSessionRepoForTest(t)

	s := &domain.SessionToken{
		AccountID: "acct-1",
		TokenHash: "h1",
		TokenID:   "tok-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := repo.Create(s); err != nil {
		t.Fatalf("create: %v", err)
	}

	seen := time.Now().UTC().Truncate(time.Second)
	if err := repo.TouchLastSeenByHash("h1", seen); err != nil {
		t.Fatalf("touch: %v", err)
	}

	got, err := repo.FindByHash("h1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.LastSeenAt == nil || !got.LastSeenAt.Equal(seen) {
		t.Fatalf("last seen not recorded: %+v", got.LastSeenAt)
	}
}

func TestSessionRepositoryCleanupExpired(t *testing.T) {
	repo := newSessionRepoForTest(t)

	expired := &domain.SessionToken{
		AccountID: "acct-1",
		TokenHash: "old",
		TokenID:   "tok-old",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	live := &domain.SessionToken{
		AccountID: "acct-1",
		TokenHash: "new",
		TokenID:   "tok-new",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := repo.Create(expired); err != nil {
		t.Fatalf("create expired: %v", err)
	}
	if err := repo.Create(live); err != nil {
		t.Fatalf("create live: %v", err)
	}

	n, err := repo.CleanupExpired()
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 removed, got %d", n)
	}
	if _, err := repo.FindByHash("old"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for swept session, got %v", err)
	}
	if _, err := repo.FindByHash("new"); err != nil {
		t.Fatalf("live session must survive sweep: %v", err)
	}
}

func newSessionRepoForTest(t *testing.T) SessionRepository {
	t.Helper()
	return NewSessionRepository(newTestDB(t, &domain.SessionToken{}))
}

func newTestDB(t *testing.T, models ...any) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
