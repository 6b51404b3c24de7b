package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sandeepkv93/credential-session-core/internal/observability"
	"github.com/sandeepkv93/credential-session-core/internal/repository"
)

// Sweeper periodically deletes expired session and verification rows.
// Expired tokens are already unusable; the sweep only reclaims storage.
type Sweeper struct {
	sessionRepo repository.SessionRepository
	tokenRepo   repository.VerificationRepository
	interval    time.Duration
	logger      *slog.Logger
}

func NewSweeper(
	sessionRepo repository.SessionRepository,
	tokenRepo repository.VerificationRepository,
	interval time.Duration,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		sessionRepo: sessionRepo,
		tokenRepo:   tokenRepo,
		interval:    interval,
		logger:      logger,
	}
}

// Run sweeps on the configured interval until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, _, err := s.RunOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "token sweep failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single sweep and reports how many rows of each
// kind were removed.
func (s *Sweeper) RunOnce(ctx context.Context) (sessions, verifications int64, err error) {
	sessions, err = s.sessionRepo.CleanupExpired()
	if err != nil {
		return sessions, 0, err
	}
	observability.RecordTokenSweep("session", sessions)

	verifications, err = s.tokenRepo.CleanupExpired()
	if err != nil {
		return sessions, verifications, err
	}
	observability.RecordTokenSweep("verification", verifications)

	if sessions > 0 || verifications > 0 {
		s.logger.InfoContext(ctx, "expired tokens swept",
			"sessions", sessions,
			"verifications", verifications,
		)
	}
	return sessions, verifications, nil
}
