package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sandeepkv93/credential-session-core/internal/domain"
	"github.com/sandeepkv93/credential-session-core/internal/observability"
	"github.com/sandeepkv93/credential-session-core/internal/repository"
	"github.com/sandeepkv93/credential-session-core/internal/security"
)

var (
	ErrVerificationInvalid  = errors.New("verification token invalid")
	ErrVerificationConsumed = errors.New("verification token already used")
	ErrVerificationExpired  = errors.New("verification token expired")
	ErrUnknownPurpose       = errors.New("unknown verification purpose")
)

// VerificationMailer delivers the plaintext verification token to the
// account holder out of band. The token never travels through any
// other channel.
type VerificationMailer interface {
	SendVerificationToken(ctx context.Context, accountID, token, purpose string) error
}

// LogMailer stands in for a real mail transport in dev and test. It
// logs that a delivery happened without the token itself.
type LogMailer struct{ Logger *slog.Logger }

func (m *LogMailer) SendVerificationToken(ctx context.Context, accountID, _, purpose string) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "verification token issued",
		"account_id", accountID,
		"purpose", purpose,
	)
	return nil
}

type VerificationService struct {
	tokenRepo   repository.VerificationRepository
	sessionSvc  *SessionService
	credentials *CredentialService
	mailer      VerificationMailer
	pepper      string
	emailTTL    time.Duration
	resetTTL    time.Duration
	logger      *slog.Logger
}

func NewVerificationService(
	tokenRepo repository.VerificationRepository,
	sessionSvc *SessionService,
	credentials *CredentialService,
	mailer VerificationMailer,
	pepper string,
	emailTTL, resetTTL time.Duration,
	logger *slog.Logger,
) *VerificationService {
	return &VerificationService{
		tokenRepo:   tokenRepo,
		sessionSvc:  sessionSvc,
		credentials: credentials,
		mailer:      mailer,
		pepper:      pepper,
		emailTTL:    emailTTL,
		resetTTL:    resetTTL,
		logger:      logger,
	}
}

// Issue creates a fresh single-use token for the account and hands the
// plaintext to the mailer. Any earlier unconsumed tokens for the same
// purpose are invalidated so only the newest link works.
func (s *VerificationService) Issue(ctx context.Context, accountID, purpose string) (string, error) {
	if !domain.ValidPurpose(purpose) {
		return "", ErrUnknownPurpose
	}

	if _, err := s.tokenRepo.DeleteByAccountID(accountID, purpose); err != nil {
		return "", fmt.Errorf("invalidate previous tokens: %w", err)
	}

	token, err := security.NewTokenValue()
	if err != nil {
		return "", err
	}
	record := &domain.VerificationToken{
		AccountID: accountID,
		TokenHash: security.HashToken(token, s.pepper),
		Purpose:   purpose,
		ExpiresAt: time.Now().Add(s.ttlFor(purpose)),
	}
	if err := s.tokenRepo.Create(record); err != nil {
		return "", err
	}

	if err := s.mailer.SendVerificationToken(ctx, accountID, token, purpose); err != nil {
		// The token stays valid; delivery can be retried by issuing
		// again.
		s.logger.WarnContext(ctx, "verification delivery failed",
			"account_id", accountID,
			"purpose", purpose,
			"error", err,
		)
	}
	return token, nil
}

// Redeem atomically consumes the token under the given purpose.
// Exactly one concurrent redeem of the same token succeeds.
func (s *VerificationService) Redeem(ctx context.Context, token, purpose string) (*domain.VerificationToken, error) {
	if !domain.ValidPurpose(purpose) {
		return nil, ErrUnknownPurpose
	}
	if token == "" {
		observability.RecordVerificationRedemption(purpose, "invalid")
		return nil, ErrVerificationInvalid
	}

	hash := security.HashToken(token, s.pepper)
	record, err := s.tokenRepo.Consume(hash, purpose, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTokenNotFound):
			observability.RecordVerificationRedemption(purpose, "invalid")
			return nil, ErrVerificationInvalid
		case errors.Is(err, repository.ErrTokenConsumed):
			observability.RecordVerificationRedemption(purpose, "already_consumed")
			return nil, ErrVerificationConsumed
		case errors.Is(err, repository.ErrTokenExpired):
			observability.RecordVerificationRedemption(purpose, "expired")
			return nil, ErrVerificationExpired
		default:
			observability.RecordVerificationRedemption(purpose, "error")
			return nil, err
		}
	}
	observability.RecordVerificationRedemption(purpose, "success")
	return record, nil
}

// ConfirmEmail redeems an email verification token and reports which
// account it belonged to.
func (s *VerificationService) ConfirmEmail(ctx context.Context, token string) (string, error) {
	record, err := s.Redeem(ctx, token, domain.PurposeEmailVerify)
	if err != nil {
		return "", err
	}
	return record.AccountID, nil
}

// ResetPassword redeems a password reset token, replaces the stored
// credential and revokes every session of the account.
func (s *VerificationService) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	record, err := s.Redeem(ctx, token, domain.PurposePasswordReset)
	if err != nil {
		return "", err
	}

	if err := s.credentials.Replace(record.AccountID, newPassword); err != nil {
		return "", err
	}

	revoked, err := s.sessionSvc.SignOutAll(ctx, record.AccountID, "password_reset")
	if err != nil {
		// The credential is already replaced; report but do not undo.
		s.logger.ErrorContext(ctx, "revoke sessions after password reset failed",
			"account_id", record.AccountID,
			"error", err,
		)
	} else if revoked > 0 {
		s.logger.InfoContext(ctx, "sessions revoked after password reset",
			"account_id", record.AccountID,
			"count", revoked,
		)
	}

	// Other outstanding reset tokens for the account die with the
	// password change.
	_, _ = s.tokenRepo.DeleteByAccountID(record.AccountID, domain.PurposePasswordReset)
	return record.AccountID, nil
}

func (s *VerificationService) ttlFor(purpose string) time.Duration {
	if purpose == domain.PurposePasswordReset {
		return s.resetTTL
	}
	return s.emailTTL
}
