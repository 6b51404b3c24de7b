package service

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/credential-session-core/internal/domain"
	"github.com/sandeepkv93/credential-session-core/internal/observability"
	"github.com/sandeepkv93/credential-session-core/internal/repository"
	"github.com/sandeepkv93/credential-session-core/internal/security"

	"github.com/google/uuid"
)

// ErrInvalidSession covers every way a presented token can be bad:
// unknown, expired or revoked. Callers never learn which.
var ErrInvalidSession = errors.New("invalid session")

const (
	negativeSessionNamespace = "session.invalid"
	negativeSessionTTL       = 30 * time.Second

	// Create retries once with fresh randomness if the generated
	// token collides, which with 256-bit tokens means a broken RNG.
	createRetries = 1
)

type ClientMetadata struct {
	UserAgent string
	IP        string
}

type IssuedSession struct {
	Token       string
	TokenID     string
	AccessToken string
	CSRFToken   string
	ExpiresAt   time.Time
}

type SessionView struct {
	ID         uint       `json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	UserAgent  string     `json:"user_agent"`
	IP         string     `json:"ip"`
	IsCurrent  bool       `json:"is_current"`
}

type SessionService struct {
	sessionRepo repository.SessionRepository
	negCache    NegativeLookupCacheStore
	jwtMgr      *security.JWTManager
	pepper      string
	sessionTTL  time.Duration
	accessTTL   time.Duration
}

func NewSessionService(
	sessionRepo repository.SessionRepository,
	negCache NegativeLookupCacheStore,
	jwtMgr *security.JWTManager,
	pepper string,
	sessionTTL, accessTTL time.Duration,
) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		negCache:    negCache,
		jwtMgr:      jwtMgr,
		pepper:      pepper,
		sessionTTL:  sessionTTL,
		accessTTL:   accessTTL,
	}
}

// Issue mints a new opaque session token for the account, persists its
// hash and returns the plaintext exactly once together with a short
// lived access JWT bound to the stored session via its jti.
func (s *SessionService) Issue(ctx context.Context, accountID string, meta ClientMetadata) (*IssuedSession, error) {
	var lastErr error
	for attempt := 0; attempt <= createRetries; attempt++ {
		token, err := security.NewTokenValue()
		if err != nil {
			return nil, err
		}
		tokenID := uuid.NewString()
		expiresAt := time.Now().Add(s.sessionTTL)

		session := &domain.SessionToken{
			AccountID: accountID,
			TokenHash: security.HashToken(token, s.pepper),
			TokenID:   tokenID,
			UserAgent: meta.UserAgent,
			IP:        meta.IP,
			ExpiresAt: expiresAt,
		}
		if err := s.sessionRepo.Create(session); err != nil {
			if errors.Is(err, repository.ErrDuplicateSession) {
				lastErr = err
				continue
			}
			return nil, err
		}

		access, err := s.jwtMgr.SignAccessTokenWithJTI(accountID, s.accessTTL, tokenID)
		if err != nil {
			return nil, err
		}
		csrf, err := security.NewCSRFToken()
		if err != nil {
			return nil, err
		}
		observability.RecordAuthEvent("session_issue", "success")
		return &IssuedSession{
			Token:       token,
			TokenID:     tokenID,
			AccessToken: access,
			CSRFToken:   csrf,
			ExpiresAt:   expiresAt,
		}, nil
	}
	observability.RecordAuthEvent("session_issue", "error")
	return nil, lastErr
}

// Validate resolves an opaque token to its live session. Unknown,
// expired and revoked tokens all collapse into ErrInvalidSession.
func (s *SessionService) Validate(ctx context.Context, token string, meta ClientMetadata) (*domain.SessionToken, error) {
	if token == "" {
		observability.RecordSessionValidation("missing")
		return nil, ErrInvalidSession
	}
	hash := security.HashToken(token, s.pepper)

	if hit, err := s.negCache.Get(ctx, negativeSessionNamespace, hash); err == nil && hit {
		observability.RecordSessionValidation("negative_cache_hit")
		return nil, ErrInvalidSession
	}

	session, err := s.sessionRepo.FindByHash(hash)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			_ = s.negCache.Set(ctx, negativeSessionNamespace, hash, negativeSessionTTL)
			observability.RecordSessionValidation("not_found")
			return nil, ErrInvalidSession
		}
		observability.RecordSessionValidation("error")
		return nil, err
	}
	now := time.Now()
	if !session.IsActiveAt(now) {
		_ = s.negCache.Set(ctx, negativeSessionNamespace, hash, negativeSessionTTL)
		observability.RecordSessionValidation("inactive")
		return nil, ErrInvalidSession
	}

	if err := s.sessionRepo.TouchLastSeenByHash(hash, now.UTC()); err == nil {
		seen := now.UTC()
		session.LastSeenAt = &seen
	}
	observability.RecordSessionValidation("success")
	return session, nil
}

// SignOut revokes the session behind the token. Revoking an already
// dead or unknown token reports revoked=false without error.
func (s *SessionService) SignOut(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	hash := security.HashToken(token, s.pepper)
	revoked, err := s.sessionRepo.RevokeByHash(hash, "sign_out")
	if err != nil {
		observability.RecordAuthEvent("sign_out", "error")
		return false, err
	}
	_ = s.negCache.Set(ctx, negativeSessionNamespace, hash, negativeSessionTTL)
	observability.RecordAuthEvent("sign_out", "success")
	return revoked, nil
}

// SignOutAll revokes every active session of the account.
func (s *SessionService) SignOutAll(ctx context.Context, accountID, reason string) (int64, error) {
	n, err := s.sessionRepo.RevokeByAccountID(accountID, reason)
	if err != nil {
		return n, err
	}
	// Hashes of the revoked sessions are unknown here, drop the whole
	// negative namespace so stale positives cannot mask the revocation.
	_ = s.negCache.InvalidateNamespace(ctx, negativeSessionNamespace)
	return n, nil
}

func (s *SessionService) ListActiveSessions(accountID, currentTokenID string) ([]SessionView, error) {
	sessions, err := s.sessionRepo.ListActiveByAccountID(accountID)
	if err != nil {
		return nil, err
	}
	views := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, SessionView{
			ID:         session.ID,
			CreatedAt:  session.CreatedAt,
			ExpiresAt:  session.ExpiresAt,
			LastSeenAt: session.LastSeenAt,
			UserAgent:  session.UserAgent,
			IP:         session.IP,
			IsCurrent:  session.TokenID == currentTokenID,
		})
	}
	return views, nil
}

// ResolveByTokenID finds the live session a parsed access token points
// at, proving the session of record still stands behind the JWT.
func (s *SessionService) ResolveByTokenID(accountID, tokenID string) (*domain.SessionToken, error) {
	if tokenID == "" {
		return nil, ErrInvalidSession
	}
	session, err := s.sessionRepo.FindActiveByTokenID(accountID, tokenID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	return session, nil
}
