package hashbench

import (
	"testing"
	"time"

	"github.com/sandeepkv93/credential-session-core/internal/security"
)

func TestMeasureReportsRequestedCost(t *testing.T) {
	s, err := measure(security.MinIterations)
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	if s.iterations != security.MinIterations {
		t.Fatalf("expected %d iterations, got %d", security.MinIterations, s.iterations)
	}
	if s.duration <= 0 {
		t.Fatalf("expected positive duration, got %s", s.duration)
	}
}

func TestProbeStopsOnceTargetIsReached(t *testing.T) {
	opts := &options{target: time.Nanosecond, start: security.MinIterations}
	var seen []sample
	recommended, err := probe(opts, func(s sample) { seen = append(seen, s) })
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if len(seen) != 1 {
		t.Fatalf("expected a single probe for an immediate overshoot, got %d", len(seen))
	}
	if recommended != security.MinIterations {
		t.Fatalf("expected the starting count back, got %d", recommended)
	}
}

func TestProbeClampsStartBelowMinimum(t *testing.T) {
	opts := &options{target: time.Nanosecond, start: 1}
	recommended, err := probe(opts, func(sample) {})
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if recommended < security.MinIterations {
		t.Fatalf("expected recommendation clamped to %d, got %d", security.MinIterations, recommended)
	}
}
