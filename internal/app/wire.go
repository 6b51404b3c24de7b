//go:build wireinject
// +build wireinject

package app

import (
	"log/slog"

	"github.com/google/wire"

	"github.com/sandeepkv93/credential-session-core/internal/config"
	"github.com/sandeepkv93/credential-session-core/internal/observability"
)

func InitializeApp(cfg *config.Config, logger *slog.Logger, runtime *observability.Runtime) (*App, func(), error) {
	wire.Build(
		ProvideDatabase,
		ProvideRedis,
		ProvideJWTManager,
		ProvideNegativeLookupCache,
		ProvideAbuseGuard,
		ProvideMailer,
		ProvideCredentialService,
		ProvideSessionService,
		ProvideVerificationService,
		ProvideAuthService,
		ProvideSweeper,
		ProvideReadiness,
		ProvideRouter,
		ProvideServer,
		New,
	)
	return nil, nil, nil
}
