package config

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	configMetricsOnce       sync.Once
	configValidationCounter metric.Int64Counter
)

// recordConfigValidationEvent counts Load outcomes per profile so a
// crash-looping deployment with a bad env shows up as a failure series
// rather than silent restarts. Registration is lazy: config loads
// before the meter provider exists.
func recordConfigValidationEvent(ctx context.Context, profile, outcome, errorClass string) {
	configMetricsOnce.Do(func() {
		counter, err := otel.Meter("credential-session-core").Int64Counter("config.validation.events")
		if err == nil {
			configValidationCounter = counter
		}
	})
	if configValidationCounter == nil {
		return
	}
	configValidationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("profile", normalizeConfigProfile(profile)),
		attribute.String("outcome", outcome),
		attribute.String("error_class", errorClass),
	))
}

func normalizeConfigProfile(profile string) string {
	v := strings.TrimSpace(strings.ToLower(profile))
	if v == "" {
		return "unknown"
	}
	return v
}

// classifyConfigLoadError buckets failures by the error prefixes Load
// and Validate attach, keeping the metric label space bounded.
func classifyConfigLoadError(err error) string {
	if err == nil {
		return "none"
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "validate config:"):
		return "validation"
	case strings.Contains(msg, "parse "):
		return "parse"
	default:
		return "load"
	}
}
