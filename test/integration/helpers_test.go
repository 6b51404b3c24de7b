package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/sandeepkv93/credential-session-core/internal/app"
	"github.com/sandeepkv93/credential-session-core/internal/config"
	"github.com/sandeepkv93/credential-session-core/internal/security"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newAuthTestServer(t *testing.T) (string, *http.Client, func()) {
	t.Helper()

	redisServer := miniredis.RunT(t)

	cfg := &config.Config{
		Profile:                 "test",
		HTTPAddr:                ":0",
		DatabaseDriver:          "sqlite",
		DatabaseURL:             fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		RedisAddr:               redisServer.Addr(),
		TokenPepper:             "integration-pepper-0123",
		JWTSecret:               "integration-jwt-secret-0123456789ab",
		JWTIssuer:               "test-issuer",
		JWTAudience:             "test-audience",
		JWTAccessTTL:            15 * time.Minute,
		KDFIterations:           security.MinIterations,
		SessionTTL:              time.Hour,
		SessionCookieName:       "session_token",
		VerificationEmailTTL:    time.Hour,
		VerificationResetTTL:    30 * time.Minute,
		AuthAbuseMaxFailures:    100,
		AuthAbuseCooldownBase:   time.Millisecond,
		AuthAbuseCooldownMax:    time.Second,
		AuthAbuseWindow:         time.Minute,
		RateLimitEnabled:        false,
		RateLimitMode:           "enforce",
		RateLimitPerMinute:      10_000,
		RateLimitBurst:          10_000,
		AuthRateLimitPerMinute:  10_000,
		ResetRateLimitPerMinute: 10_000,
		BodyLimitBytes:          1 << 20,
		SweepInterval:           time.Minute,
		LogLevel:                "error",
		LogFormat:               "text",
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	application, cleanup, err := app.InitializeApp(cfg, logger, nil)
	if err != nil {
		t.Fatalf("initialize app: %v", err)
	}

	server := httptest.NewServer(application.Server.Handler)
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	client := &http.Client{Jar: jar, Timeout: 10 * time.Second}

	closeFn := func() {
		server.Close()
		cleanup()
	}
	return server.URL, client, closeFn
}

func doJSON(t *testing.T, client *http.Client, method, target string, body any, headers map[string]string) (*http.Response, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, target, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && err != io.EOF {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp, env
}

func cookieValue(t *testing.T, client *http.Client, baseURL, name string) string {
	t.Helper()
	u, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("parse base url: %v", err)
	}
	for _, c := range client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}
