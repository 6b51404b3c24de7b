package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sandeepkv93/credential-session-core/internal/domain"
	"github.com/sandeepkv93/credential-session-core/internal/observability"
	"github.com/sandeepkv93/credential-session-core/internal/security"
)

var ErrTooManyAttempts = errors.New("too many attempts")

// TooManyAttemptsError carries the remaining cooldown so transports can
// emit a Retry-After.
type TooManyAttemptsError struct {
	RetryAfter time.Duration
}

func (e *TooManyAttemptsError) Error() string {
	return fmt.Sprintf("too many attempts, retry after %s", e.RetryAfter)
}

func (e *TooManyAttemptsError) Is(target error) bool { return target == ErrTooManyAttempts }

type LoginResult struct {
	AccountID    string
	SessionToken string
	AccessToken  string
	CSRFToken    string
	ExpiresAt    time.Time
}

// AuthService is the facade the transport layer talks to. It sequences
// the abuse guard, credential verification and session issuance.
type AuthService struct {
	credentials   *CredentialService
	sessions      *SessionService
	verifications *VerificationService
	guard         AuthAbuseGuard
	logger        *slog.Logger
}

func NewAuthService(
	credentials *CredentialService,
	sessions *SessionService,
	verifications *VerificationService,
	guard AuthAbuseGuard,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		credentials:   credentials,
		sessions:      sessions,
		verifications: verifications,
		guard:         guard,
		logger:        logger,
	}
}

// Register creates the credential, queues an email verification token
// and signs the new account in.
func (s *AuthService) Register(ctx context.Context, accountID, password string, meta ClientMetadata) (*LoginResult, error) {
	if _, err := s.credentials.Register(accountID, password); err != nil {
		return nil, err
	}

	if _, err := s.verifications.Issue(ctx, accountID, domain.PurposeEmailVerify); err != nil {
		// Verification can be re-requested later; registration stands.
		s.logger.WarnContext(ctx, "issue email verification failed",
			"account_id", accountID,
			"error", err,
		)
	}

	return s.issueSession(ctx, accountID, meta)
}

// Login verifies the password and mints a session. Failures feed the
// abuse guard keyed by both the account identity and the caller IP.
func (s *AuthService) Login(ctx context.Context, accountID, password string, meta ClientMetadata) (*LoginResult, error) {
	cooldown, err := s.guard.Check(ctx, AuthAbuseScopeLogin, accountID, meta.IP)
	if err != nil {
		s.logger.WarnContext(ctx, "abuse guard check failed", "error", err)
	} else if cooldown > 0 {
		observability.RecordAuthEvent("login", "throttled")
		return nil, &TooManyAttemptsError{RetryAfter: cooldown}
	}

	if err := s.credentials.Verify(accountID, password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			if _, gerr := s.guard.RegisterFailure(ctx, AuthAbuseScopeLogin, accountID, meta.IP); gerr != nil {
				s.logger.WarnContext(ctx, "abuse guard register failed", "error", gerr)
			}
			observability.RecordAuthEvent("login", "invalid_credentials")
			return nil, ErrInvalidCredentials
		}
		observability.RecordAuthEvent("login", "error")
		return nil, err
	}

	if err := s.guard.Reset(ctx, AuthAbuseScopeLogin, accountID, meta.IP); err != nil {
		s.logger.WarnContext(ctx, "abuse guard reset failed", "error", err)
	}
	observability.RecordAuthEvent("login", "success")
	return s.issueSession(ctx, accountID, meta)
}

// ValidateSession resolves an opaque session token.
func (s *AuthService) ValidateSession(ctx context.Context, token string, meta ClientMetadata) (*domain.SessionToken, error) {
	return s.sessions.Validate(ctx, token, meta)
}

// ValidateAccessToken parses the JWT and confirms its backing session
// is still live. A valid signature over a revoked session is rejected.
func (s *AuthService) ValidateAccessToken(accessToken string) (*security.Claims, *domain.SessionToken, error) {
	claims, err := s.sessions.jwtMgr.ParseAccessToken(accessToken)
	if err != nil {
		observability.RecordAccessTokenValidation("invalid", "jwt")
		return nil, nil, ErrInvalidSession
	}
	session, err := s.sessions.ResolveByTokenID(claims.Subject, claims.ID)
	if err != nil {
		observability.RecordAccessTokenValidation("session_gone", "store")
		return nil, nil, err
	}
	observability.RecordAccessTokenValidation("success", "store")
	return claims, session, nil
}

// Logout revokes the presented session token.
func (s *AuthService) Logout(ctx context.Context, token string) (bool, error) {
	return s.sessions.SignOut(ctx, token)
}

// LogoutAll revokes every session of the account.
func (s *AuthService) LogoutAll(ctx context.Context, accountID string) (int64, error) {
	return s.sessions.SignOutAll(ctx, accountID, "sign_out_all")
}

// RequestVerification issues a token for the purpose. The request
// never discloses whether the account exists and is throttled through
// the abuse guard regardless of purpose.
func (s *AuthService) RequestVerification(ctx context.Context, accountID, purpose string, meta ClientMetadata) error {
	if !domain.ValidPurpose(purpose) {
		return ErrUnknownPurpose
	}

	scope := AuthAbuseScopeVerify
	if purpose == domain.PurposePasswordReset {
		scope = AuthAbuseScopeForgot
	}
	cooldown, err := s.guard.Check(ctx, scope, accountID, meta.IP)
	if err != nil {
		s.logger.WarnContext(ctx, "abuse guard check failed", "error", err)
	} else if cooldown > 0 {
		return &TooManyAttemptsError{RetryAfter: cooldown}
	}
	if _, err := s.guard.RegisterFailure(ctx, scope, accountID, meta.IP); err != nil {
		s.logger.WarnContext(ctx, "abuse guard register failed", "error", err)
	}

	exists, err := s.credentials.Exists(accountID)
	if err != nil {
		return err
	}
	if !exists {
		// Same outward behavior as the existing-account path.
		return nil
	}

	_, err = s.verifications.Issue(ctx, accountID, purpose)
	return err
}

// ConfirmEmail redeems an email verification token.
func (s *AuthService) ConfirmEmail(ctx context.Context, token string) (string, error) {
	return s.verifications.ConfirmEmail(ctx, token)
}

// ResetPassword redeems a reset token and installs the new password.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	return s.verifications.ResetPassword(ctx, token, newPassword)
}

func (s *AuthService) Sessions() *SessionService { return s.sessions }

func (s *AuthService) issueSession(ctx context.Context, accountID string, meta ClientMetadata) (*LoginResult, error) {
	issued, err := s.sessions.Issue(ctx, accountID, meta)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AccountID:    accountID,
		SessionToken: issued.Token,
		AccessToken:  issued.AccessToken,
		CSRFToken:    issued.CSRFToken,
		ExpiresAt:    issued.ExpiresAt,
	}, nil
}
