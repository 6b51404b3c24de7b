package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func performLimited(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.RemoteAddr = remoteAddr
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestLocalRateLimiterDeniesOverLimit(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 2; i++ {
		if rr := performLimited(h, "1.2.3.4:5000"); rr.Code != http.StatusNoContent {
			t.Fatalf("request %d expected 204, got %d", i+1, rr.Code)
		}
	}
	rr := performLimited(h, "1.2.3.4:5000")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 over limit, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header on denial")
	}
	if rr.Header().Get("X-RateLimit-Limit") != "2" {
		t.Fatalf("expected limit header 2, got %q", rr.Header().Get("X-RateLimit-Limit"))
	}
}

func TestLocalRateLimiterIsolatesKeys(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	if rr := performLimited(h, "1.2.3.4:5000"); rr.Code != http.StatusNoContent {
		t.Fatalf("first client expected 204, got %d", rr.Code)
	}
	if rr := performLimited(h, "5.6.7.8:5000"); rr.Code != http.StatusNoContent {
		t.Fatalf("second client expected 204 on its own budget, got %d", rr.Code)
	}
	if rr := performLimited(h, "1.2.3.4:5000"); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("first client expected 429 on second hit, got %d", rr.Code)
	}
}

func TestRateLimiterBypassEvaluatorSkipsLimiting(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute).WithBypassEvaluator(func(r *http.Request) (bool, string) {
		return r.Header.Get("X-Internal-Probe") == "1", "internal_probe"
	})
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
		req.RemoteAddr = "1.2.3.4:5000"
		req.Header.Set("X-Internal-Probe", "1")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusNoContent {
			t.Fatalf("bypassed request %d expected 204, got %d", i+1, rr.Code)
		}
	}
}

func TestSubjectOrIPKeyFuncPrefersSubject(t *testing.T) {
	jwtMgr := newTestJWTManager()
	token, err := jwtMgr.SignAccessToken("acct-9", time.Minute)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	keyFunc := SubjectOrIPKeyFunc(jwtMgr)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.RemoteAddr = "1.2.3.4:5000"
	req.Header.Set("Authorization", "Bearer "+token)
	if got := keyFunc(req); got != "sub:acct-9" {
		t.Fatalf("expected subject key, got %q", got)
	}

	anon := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	anon.RemoteAddr = "1.2.3.4:5000"
	if got := keyFunc(anon); got != "1.2.3.4" {
		t.Fatalf("expected ip key, got %q", got)
	}
}

func TestNormalizePolicyFillsDefaults(t *testing.T) {
	p := normalizePolicy(RateLimitPolicy{})
	if p.SustainedLimit != 1 || p.SustainedWindow != time.Minute {
		t.Fatalf("unexpected defaults: %+v", p)
	}
	if p.BurstCapacity < p.SustainedLimit || p.BurstRefillPerSec <= 0 {
		t.Fatalf("burst defaults not normalized: %+v", p)
	}
}
