package service

import (
	"context"

	"github.com/sandeepkv93/credential-session-core/internal/domain"
	"github.com/sandeepkv93/credential-session-core/internal/security"
)

type AuthServiceInterface interface {
	Register(ctx context.Context, accountID, password string, meta ClientMetadata) (*LoginResult, error)
	Login(ctx context.Context, accountID, password string, meta ClientMetadata) (*LoginResult, error)
	ValidateSession(ctx context.Context, token string, meta ClientMetadata) (*domain.SessionToken, error)
	ValidateAccessToken(accessToken string) (*security.Claims, *domain.SessionToken, error)
	Logout(ctx context.Context, token string) (bool, error)
	LogoutAll(ctx context.Context, accountID string) (int64, error)
	RequestVerification(ctx context.Context, accountID, purpose string, meta ClientMetadata) error
	ConfirmEmail(ctx context.Context, token string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) (string, error)
	Sessions() *SessionService
}
