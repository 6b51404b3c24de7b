package health

import (
	"context"
	"sync"
	"time"
)

// CheckResult is the serialized outcome of a single dependency probe.
type CheckResult struct {
	Name      string        `json:"name"`
	Healthy   bool          `json:"healthy"`
	LatencyMS int64         `json:"latency_ms"`
	Error     string        `json:"error,omitempty"`
	latency   time.Duration `json:"-"`
}

type Checker interface {
	Check(ctx context.Context) CheckResult
}

// ProbeRunner fans probes out concurrently, bounds each by a timeout and
// caches the combined result so frequent readiness polls do not hammer
// the dependencies.
type ProbeRunner struct {
	timeout  time.Duration
	cacheTTL time.Duration
	checkers []Checker

	mu          sync.Mutex
	cachedAt    time.Time
	cachedReady bool
	cached      []CheckResult
}

func NewProbeRunner(timeout, cacheTTL time.Duration, checkers ...Checker) *ProbeRunner {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ProbeRunner{timeout: timeout, cacheTTL: cacheTTL, checkers: checkers}
}

func (p *ProbeRunner) Ready(ctx context.Context) (bool, []CheckResult) {
	p.mu.Lock()
	if p.cacheTTL > 0 && time.Since(p.cachedAt) < p.cacheTTL && p.cached != nil {
		ready, results := p.cachedReady, p.cached
		p.mu.Unlock()
		return ready, results
	}
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	results := make([]CheckResult, len(p.checkers))
	var wg sync.WaitGroup
	for i, checker := range p.checkers {
		wg.Add(1)
		go func(i int, checker Checker) {
			defer wg.Done()
			start := time.Now()
			res := checker.Check(ctx)
			res.latency = time.Since(start)
			res.LatencyMS = res.latency.Milliseconds()
			results[i] = res
		}(i, checker)
	}
	wg.Wait()

	ready := true
	for _, res := range results {
		if !res.Healthy {
			ready = false
			break
		}
	}

	p.mu.Lock()
	p.cachedAt = time.Now()
	p.cachedReady = ready
	p.cached = results
	p.mu.Unlock()
	return ready, results
}
