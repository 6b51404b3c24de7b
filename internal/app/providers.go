package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sandeepkv93/credential-session-core/internal/config"
	"github.com/sandeepkv93/credential-session-core/internal/domain"
	"github.com/sandeepkv93/credential-session-core/internal/health"
	"github.com/sandeepkv93/credential-session-core/internal/http/handler"
	"github.com/sandeepkv93/credential-session-core/internal/http/middleware"
	"github.com/sandeepkv93/credential-session-core/internal/http/router"
	"github.com/sandeepkv93/credential-session-core/internal/repository"
	"github.com/sandeepkv93/credential-session-core/internal/security"
	"github.com/sandeepkv93/credential-session-core/internal/service"
)

func ProvideDatabase(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DatabaseDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseURL)
	case "sqlite":
		dialector = sqlite.Open(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	logLevel := gormlogger.Error
	if cfg.Profile == "test" {
		logLevel = gormlogger.Silent
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&domain.Credential{}, &domain.SessionToken{}, &domain.VerificationToken{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return db, nil
}

func ProvideRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

func ProvideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSecret)
}

func ProvideNegativeLookupCache(client *redis.Client) service.NegativeLookupCacheStore {
	return service.NewRedisNegativeLookupCacheStore(client, "csc")
}

func ProvideAbuseGuard(cfg *config.Config, client *redis.Client) service.AuthAbuseGuard {
	return service.NewRedisAuthAbuseGuard(client, "csc:abuse", service.AuthAbusePolicy{
		FreeAttempts: cfg.AuthAbuseMaxFailures,
		BaseDelay:    cfg.AuthAbuseCooldownBase,
		MaxDelay:     cfg.AuthAbuseCooldownMax,
		ResetWindow:  cfg.AuthAbuseWindow,
	})
}

func ProvideMailer(logger *slog.Logger) service.VerificationMailer {
	return &service.LogMailer{Logger: logger}
}

func ProvideCredentialService(cfg *config.Config, db *gorm.DB) (*service.CredentialService, error) {
	return service.NewCredentialService(repository.NewCredentialRepository(db), cfg.KDFIterations)
}

func ProvideSessionService(cfg *config.Config, db *gorm.DB, negCache service.NegativeLookupCacheStore, jwtMgr *security.JWTManager) *service.SessionService {
	return service.NewSessionService(
		repository.NewSessionRepository(db),
		negCache,
		jwtMgr,
		cfg.TokenPepper,
		cfg.SessionTTL,
		cfg.JWTAccessTTL,
	)
}

func ProvideVerificationService(
	cfg *config.Config,
	db *gorm.DB,
	sessions *service.SessionService,
	credentials *service.CredentialService,
	mailer service.VerificationMailer,
	logger *slog.Logger,
) *service.VerificationService {
	return service.NewVerificationService(
		repository.NewVerificationRepository(db),
		sessions,
		credentials,
		mailer,
		cfg.TokenPepper,
		cfg.VerificationEmailTTL,
		cfg.VerificationResetTTL,
		logger,
	)
}

func ProvideAuthService(
	credentials *service.CredentialService,
	sessions *service.SessionService,
	verifications *service.VerificationService,
	guard service.AuthAbuseGuard,
	logger *slog.Logger,
) *service.AuthService {
	return service.NewAuthService(credentials, sessions, verifications, guard, logger)
}

func ProvideSweeper(cfg *config.Config, db *gorm.DB, logger *slog.Logger) *service.Sweeper {
	return service.NewSweeper(
		repository.NewSessionRepository(db),
		repository.NewVerificationRepository(db),
		cfg.SweepInterval,
		logger,
	)
}

func ProvideReadiness(db *gorm.DB, client *redis.Client) *health.ProbeRunner {
	return health.NewProbeRunner(2*time.Second, 5*time.Second,
		health.NewDatabaseChecker(db),
		health.NewRedisChecker(client),
	)
}

func ProvideRouter(
	cfg *config.Config,
	auth *service.AuthService,
	jwtMgr *security.JWTManager,
	client *redis.Client,
	readiness *health.ProbeRunner,
) http.Handler {
	cookies := handler.CookieSettings{
		SessionCookieName: cfg.SessionCookieName,
		Secure:            cfg.CookieSecure,
		SessionTTL:        cfg.SessionTTL,
		AccessTTL:         cfg.JWTAccessTTL,
	}

	dep := router.Dependencies{
		AuthHandler:       handler.NewAuthHandler(auth, cookies),
		AccountHandler:    handler.NewAccountHandler(auth, cookies),
		JWTManager:        jwtMgr,
		SessionBinder:     auth.Sessions(),
		CORSOrigins:       cfg.CORSAllowedOrigins,
		APIRateLimitRPM:   cfg.RateLimitPerMinute,
		AuthRateLimitRPM:  cfg.AuthRateLimitPerMinute,
		ResetRateLimitRPM: cfg.ResetRateLimitPerMinute,
		BodyLimitBytes:    cfg.BodyLimitBytes,
		Readiness:         readiness,
		EnableOTelHTTP:    cfg.OTELTracesEnabled,
	}

	if !cfg.RateLimitEnabled {
		passthrough := func(next http.Handler) http.Handler { return next }
		dep.GlobalRateLimiter = passthrough
		dep.AuthRateLimiter = passthrough
		dep.ResetRateLimiter = passthrough
		return router.NewRouter(dep)
	}

	// Shared counting window across replicas. Shadow mode keeps serving
	// when redis is down, enforce rejects.
	mode := middleware.FailClosed
	if cfg.RateLimitMode == "shadow" {
		mode = middleware.FailOpen
	}
	backend := middleware.NewRedisSlidingWindowLimiter(client, "csc:ratelimit")
	dep.GlobalRateLimiter = middleware.NewDistributedRateLimiterWithKey(
		backend, cfg.RateLimitPerMinute, time.Minute, mode, "api", middleware.SubjectOrIPKeyFunc(jwtMgr),
	).Middleware()
	dep.AuthRateLimiter = middleware.NewDistributedRateLimiter(
		backend, cfg.AuthRateLimitPerMinute, time.Minute, mode, "auth",
	).Middleware()
	dep.ResetRateLimiter = middleware.NewDistributedRateLimiter(
		backend, cfg.ResetRateLimitPerMinute, time.Minute, mode, "reset",
	).Middleware()

	return router.NewRouter(dep)
}

func ProvideServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
