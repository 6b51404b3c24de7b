package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sandeepkv93/credential-session-core/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

type AppMetrics struct {
	repositoryOpsCounter metric.Int64Counter
	authEventCounter     metric.Int64Counter
	sessionCheckCounter  metric.Int64Counter
	accessTokenCounter   metric.Int64Counter
	redemptionCounter    metric.Int64Counter
	tokenSweepCounter    metric.Int64Counter
	rateLimitCounter     metric.Int64Counter
	retryAfterHistogram  metric.Float64Histogram
	csrfRejectionCounter metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter("credential-session-core")
	repositoryOps, err := meter.Int64Counter("repository.operations")
	if err != nil {
		return nil, err
	}
	authEvents, err := meter.Int64Counter("auth.events")
	if err != nil {
		return nil, err
	}
	sessionChecks, err := meter.Int64Counter("auth.session.validations")
	if err != nil {
		return nil, err
	}
	accessTokenChecks, err := meter.Int64Counter("auth.access_token.validations")
	if err != nil {
		return nil, err
	}
	redemptions, err := meter.Int64Counter("auth.verification.redemptions")
	if err != nil {
		return nil, err
	}
	tokenSweeps, err := meter.Int64Counter("auth.token.sweeps")
	if err != nil {
		return nil, err
	}
	rateLimitDecisions, err := meter.Int64Counter("ratelimit.decisions")
	if err != nil {
		return nil, err
	}
	retryAfter, err := meter.Float64Histogram("ratelimit.retry_after_seconds")
	if err != nil {
		return nil, err
	}
	csrfRejections, err := meter.Int64Counter("security.csrf.rejections")
	if err != nil {
		return nil, err
	}

	metricsMu.Lock()
	appMetrics = &AppMetrics{
		repositoryOpsCounter: repositoryOps,
		authEventCounter:     authEvents,
		sessionCheckCounter:  sessionChecks,
		accessTokenCounter:   accessTokenChecks,
		redemptionCounter:    redemptions,
		tokenSweepCounter:    tokenSweeps,
		rateLimitCounter:     rateLimitDecisions,
		retryAfterHistogram:  retryAfter,
		csrfRejectionCounter: csrfRejections,
	}
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func currentMetrics() *AppMetrics {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	return m
}

func RecordRepositoryOperation(ctx context.Context, entity, operation, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.repositoryOpsCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("entity", entity),
			attribute.String("operation", operation),
			attribute.String("outcome", outcome),
		),
	)
}

func RecordAuthEvent(operation, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.authEventCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("outcome", outcome),
		),
	)
}

func RecordSessionValidation(outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.sessionCheckCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordAccessTokenValidation(outcome, source string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.accessTokenCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.String("source", source),
		),
	)
}

func RecordVerificationRedemption(purpose, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.redemptionCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("purpose", purpose),
			attribute.String("outcome", outcome),
		),
	)
}

func RecordTokenSweep(kind string, removed int64) {
	m := currentMetrics()
	if m == nil || removed <= 0 {
		return
	}
	m.tokenSweepCounter.Add(context.Background(), removed, metric.WithAttributes(attribute.String("kind", kind)))
}

func RecordCSRFRejection(pathGroup, reason string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.csrfRejectionCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("path_group", pathGroup),
			attribute.String("reason", reason),
		),
	)
}

func RecordRateLimitDecision(scope, outcome, mode, keyType string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.rateLimitCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("scope", scope),
			attribute.String("outcome", outcome),
			attribute.String("mode", mode),
			attribute.String("key_type", keyType),
		),
	)
}

func RecordRateLimitRetryAfter(scope, reason string, retryAfter time.Duration) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.retryAfterHistogram.Record(context.Background(), retryAfter.Seconds(),
		metric.WithAttributes(
			attribute.String("scope", scope),
			attribute.String("reason", reason),
		),
	)
}
