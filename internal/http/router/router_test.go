package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sandeepkv93/credential-session-core/internal/health"
	"github.com/sandeepkv93/credential-session-core/internal/security"
)

type unhealthyChecker struct{}

func (unhealthyChecker) Check(ctx context.Context) health.CheckResult {
	return health.CheckResult{Name: "db", Healthy: false, Error: "db down"}
}

func newRouterTestDeps() Dependencies {
	return Dependencies{
		AuthHandler:       nil,
		AccountHandler:    nil,
		JWTManager:        security.NewJWTManager("iss", "aud", "abcdefghijklmnopqrstuvwxyz123456"),
		SessionBinder:     nil,
		CORSOrigins:       []string{"http://localhost"},
		APIRateLimitRPM:   1000,
		AuthRateLimitRPM:  1000,
		ResetRateLimitRPM: 1000,
		BodyLimitBytes:    1 << 20,
		EnableOTelHTTP:    false,
	}
}

func perform(r http.Handler, method, target string, headers map[string]string, cookies []*http.Cookie, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.RemoteAddr = "10.10.10.10:1234"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func bearerToken(t *testing.T, jwtMgr *security.JWTManager) string {
	t.Helper()
	token, err := jwtMgr.SignAccessToken("acct-42", time.Hour)
	if err != nil {
		t.Fatalf("sign access token: %v", err)
	}
	return token
}

func TestRouterHealthReadyNilAndUnreadyBranches(t *testing.T) {
	t.Run("nil readiness returns ready", func(t *testing.T) {
		dep := newRouterTestDeps()
		dep.Readiness = nil
		r := NewRouter(dep)

		rr := perform(r, http.MethodGet, "/health/ready", nil, nil, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), `"status":"ready"`) {
			t.Fatalf("expected ready status payload, got %s", rr.Body.String())
		}
	})

	t.Run("unready dependency returns 503", func(t *testing.T) {
		dep := newRouterTestDeps()
		dep.Readiness = health.NewProbeRunner(time.Second, 0, unhealthyChecker{})
		r := NewRouter(dep)

		rr := perform(r, http.MethodGet, "/health/ready", nil, nil, "")
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), `"code":"DEPENDENCY_UNREADY"`) {
			t.Fatalf("expected DEPENDENCY_UNREADY error envelope, got %s", rr.Body.String())
		}
	})
}

func TestRouterHealthLiveAlwaysOKWithDefaultLimiter(t *testing.T) {
	dep := newRouterTestDeps()
	r := NewRouter(dep)

	rr := perform(r, http.MethodGet, "/health/live", nil, nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("expected health live payload, got %s", rr.Body.String())
	}
}

func TestRouterFallbackGlobalRateLimiterWhenCustomNil(t *testing.T) {
	dep := newRouterTestDeps()
	dep.APIRateLimitRPM = 1
	dep.GlobalRateLimiter = nil
	r := NewRouter(dep)

	first := perform(r, http.MethodGet, "/health/live", nil, nil, "")
	if first.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", first.Code)
	}
	second := perform(r, http.MethodGet, "/health/live", nil, nil, "")
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429 from fallback limiter, got %d", second.Code)
	}
}

func TestRouterCSRFScopeOnSensitiveRoutes(t *testing.T) {
	dep := newRouterTestDeps()
	r := NewRouter(dep)
	token := bearerToken(t, dep.JWTManager)

	cases := []struct {
		name    string
		method  string
		path    string
		headers map[string]string
		cookies []*http.Cookie
	}{
		{
			name:    "logout",
			method:  http.MethodPost,
			path:    "/api/v1/auth/logout",
			headers: map[string]string{"Authorization": "Bearer " + token},
		},
		{
			name:    "revoke-all-sessions",
			method:  http.MethodPost,
			path:    "/api/v1/me/sessions/revoke-all",
			headers: map[string]string{"Authorization": "Bearer " + token},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := perform(r, tc.method, tc.path, tc.headers, tc.cookies, "")
			if rr.Code != http.StatusForbidden {
				t.Fatalf("expected 403 csrf rejection, got %d body=%s", rr.Code, rr.Body.String())
			}
			var env map[string]any
			_ = json.NewDecoder(rr.Body).Decode(&env)
			errObj, _ := env["error"].(map[string]any)
			if code, _ := errObj["code"].(string); code != "FORBIDDEN" {
				t.Fatalf("expected FORBIDDEN error code, got %+v", errObj)
			}
		})
	}
}

func TestRouterUnauthenticatedMeReturns401(t *testing.T) {
	dep := newRouterTestDeps()
	r := NewRouter(dep)

	rr := perform(r, http.MethodGet, "/api/v1/me", nil, nil, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"code":"UNAUTHORIZED"`) {
		t.Fatalf("expected UNAUTHORIZED envelope, got %s", rr.Body.String())
	}
}
