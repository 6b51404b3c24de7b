package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sandeepkv93/credential-session-core/internal/security"
)

type Config struct {
	Profile string

	HTTPAddr string

	DatabaseDriver string
	DatabaseURL    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	TokenPepper string

	JWTSecret    string
	JWTIssuer    string
	JWTAudience  string
	JWTAccessTTL time.Duration

	KDFIterations int

	SessionTTL        time.Duration
	SessionCookieName string
	CookieSecure      bool

	VerificationEmailTTL time.Duration
	VerificationResetTTL time.Duration

	AuthAbuseMaxFailures  int
	AuthAbuseCooldownBase time.Duration
	AuthAbuseCooldownMax  time.Duration
	AuthAbuseWindow       time.Duration

	RateLimitEnabled        bool
	RateLimitMode           string
	RateLimitPerMinute      int
	RateLimitBurst          int
	AuthRateLimitPerMinute  int
	ResetRateLimitPerMinute int

	CORSAllowedOrigins []string

	BodyLimitBytes int64

	SweepInterval time.Duration

	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration

	LogLevel  string
	LogFormat string

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracesEnabled         bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration
	OTELTracesSampleRatio     float64
}

// Load builds the configuration from environment variables. Parse
// failures are reported with a "parse KEY" prefix and validation
// failures with a "validate config:" prefix so the config metrics can
// classify them.
func Load(ctx context.Context) (*Config, error) {
	cfg, err := load()
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	profile := ""
	if cfg != nil {
		profile = cfg.Profile
	} else {
		profile = os.Getenv("APP_PROFILE")
	}
	recordConfigValidationEvent(ctx, profile, outcome, classifyConfigLoadError(err))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func load() (*Config, error) {
	profile := normalizeConfigProfile(getEnv("APP_PROFILE", "dev"))

	cfg := &Config{
		Profile:                  profile,
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8080"),
		DatabaseDriver:           strings.ToLower(getEnv("DATABASE_DRIVER", "postgres")),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		RedisAddr:                getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		TokenPepper:              os.Getenv("TOKEN_PEPPER"),
		JWTSecret:                os.Getenv("JWT_SECRET"),
		JWTIssuer:                getEnv("JWT_ISSUER", "credential-session-core"),
		JWTAudience:              getEnv("JWT_AUDIENCE", "credential-session-core"),
		SessionCookieName:        getEnv("SESSION_COOKIE_NAME", "session_token"),
		RateLimitMode:            strings.ToLower(getEnv("RATE_LIMIT_MODE", "shadow")),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		LogFormat:                strings.ToLower(getEnv("LOG_FORMAT", "json")),
		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "credential-session-core"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", profile),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	var err error
	if cfg.RedisDB, err = parseIntEnv("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.KDFIterations, err = parseIntEnv("KDF_ITERATIONS", security.DefaultIterations); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = parseDurationEnv("SESSION_TTL", 720*time.Hour); err != nil {
		return nil, err
	}
	if cfg.CookieSecure, err = parseBoolEnv("COOKIE_SECURE", profile == "prod"); err != nil {
		return nil, err
	}
	if cfg.VerificationEmailTTL, err = parseDurationEnv("VERIFY_EMAIL_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.VerificationResetTTL, err = parseDurationEnv("VERIFY_RESET_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.AuthAbuseMaxFailures, err = parseIntEnv("AUTH_ABUSE_MAX_FAILURES", 5); err != nil {
		return nil, err
	}
	if cfg.AuthAbuseCooldownBase, err = parseDurationEnv("AUTH_ABUSE_COOLDOWN_BASE", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.AuthAbuseCooldownMax, err = parseDurationEnv("AUTH_ABUSE_COOLDOWN_MAX", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.AuthAbuseWindow, err = parseDurationEnv("AUTH_ABUSE_WINDOW", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RateLimitEnabled, err = parseBoolEnv("RATE_LIMIT_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = parseIntEnv("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = parseIntEnv("RATE_LIMIT_BURST", 30); err != nil {
		return nil, err
	}
	if cfg.AuthRateLimitPerMinute, err = parseIntEnv("AUTH_RATE_LIMIT_PER_MINUTE", 20); err != nil {
		return nil, err
	}
	if cfg.ResetRateLimitPerMinute, err = parseIntEnv("RESET_RATE_LIMIT_PER_MINUTE", 5); err != nil {
		return nil, err
	}
	cfg.CORSAllowedOrigins = splitAndTrim(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"))
	if cfg.BodyLimitBytes, err = parseInt64Env("BODY_LIMIT_BYTES", 1<<20); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = parseDurationEnv("SWEEP_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = parseDurationEnv("SHUTDOWN_TIMEOUT", 20*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownHTTPDrainTimeout, err = parseDurationEnv("SHUTDOWN_HTTP_DRAIN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownObservabilityTimeout, err = parseDurationEnv("SHUTDOWN_OBSERVABILITY_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.OTELExporterOTLPInsecure, err = parseBoolEnv("OTEL_EXPORTER_OTLP_INSECURE", true); err != nil {
		return nil, err
	}
	if cfg.OTELMetricsEnabled, err = parseBoolEnv("OTEL_METRICS_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.OTELTracesEnabled, err = parseBoolEnv("OTEL_TRACES_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.OTELLogsEnabled, err = parseBoolEnv("OTEL_LOGS_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.OTELMetricsExportInterval, err = parseDurationEnv("OTEL_METRICS_EXPORT_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.OTELTracesSampleRatio, err = parseFloatEnv("OTEL_TRACES_SAMPLE_RATIO", 1.0); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Profile {
	case "dev", "test", "prod":
	default:
		return fmt.Errorf("validate config: APP_PROFILE must be dev, test or prod, got %q", c.Profile)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("validate config: DATABASE_URL is required")
	}
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("validate config: DATABASE_DRIVER must be postgres or sqlite, got %q", c.DatabaseDriver)
	}
	if len(c.TokenPepper) < 16 {
		return fmt.Errorf("validate config: TOKEN_PEPPER must be at least 16 bytes")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("validate config: JWT_SECRET must be at least 32 bytes")
	}
	if c.KDFIterations < security.MinIterations || c.KDFIterations > security.MaxIterations {
		return fmt.Errorf("validate config: KDF_ITERATIONS out of range: %d", c.KDFIterations)
	}
	if c.JWTAccessTTL <= 0 {
		return fmt.Errorf("validate config: JWT_ACCESS_TTL must be positive")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("validate config: SESSION_TTL must be positive")
	}
	if c.VerificationEmailTTL <= 0 || c.VerificationResetTTL <= 0 {
		return fmt.Errorf("validate config: verification TTLs must be positive")
	}
	if c.AuthAbuseMaxFailures < 1 {
		return fmt.Errorf("validate config: AUTH_ABUSE_MAX_FAILURES must be at least 1")
	}
	if c.AuthAbuseCooldownBase <= 0 || c.AuthAbuseCooldownMax < c.AuthAbuseCooldownBase {
		return fmt.Errorf("validate config: abuse cooldown bounds are inconsistent")
	}
	switch c.RateLimitMode {
	case "enforce", "shadow":
	default:
		return fmt.Errorf("validate config: RATE_LIMIT_MODE must be enforce or shadow, got %q", c.RateLimitMode)
	}
	if c.RateLimitPerMinute < 1 || c.RateLimitBurst < 1 {
		return fmt.Errorf("validate config: rate limit values must be at least 1")
	}
	if c.AuthRateLimitPerMinute < 1 || c.ResetRateLimitPerMinute < 1 {
		return fmt.Errorf("validate config: per-route rate limit values must be at least 1")
	}
	if c.BodyLimitBytes < 1024 {
		return fmt.Errorf("validate config: BODY_LIMIT_BYTES must be at least 1024")
	}
	if c.OTELTracesSampleRatio < 0 || c.OTELTracesSampleRatio > 1 {
		return fmt.Errorf("validate config: OTEL_TRACES_SAMPLE_RATIO must be within [0,1]")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("validate config: LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	return nil
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseIntEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func parseInt64Env(key string, fallback int64) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func parseBoolEnv(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func parseFloatEnv(key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}
