package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sandeepkv93/credential-session-core/internal/health"
	"github.com/sandeepkv93/credential-session-core/internal/http/handler"
	"github.com/sandeepkv93/credential-session-core/internal/http/middleware"
	"github.com/sandeepkv93/credential-session-core/internal/http/response"
	"github.com/sandeepkv93/credential-session-core/internal/security"
)

type Dependencies struct {
	AuthHandler       *handler.AuthHandler
	AccountHandler    *handler.AccountHandler
	JWTManager        *security.JWTManager
	SessionBinder     middleware.SessionBinder
	CORSOrigins       []string
	APIRateLimitRPM   int
	AuthRateLimitRPM  int
	ResetRateLimitRPM int
	BodyLimitBytes    int64
	GlobalRateLimiter GlobalRateLimiterFunc
	AuthRateLimiter   AuthRateLimiterFunc
	ResetRateLimiter  ResetRateLimiterFunc
	Readiness         *health.ProbeRunner
	EnableOTelHTTP    bool
}

type GlobalRateLimiterFunc func(http.Handler) http.Handler
type AuthRateLimiterFunc func(http.Handler) http.Handler
type ResetRateLimiterFunc func(http.Handler) http.Handler

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(dep.BodyLimitBytes))
	if dep.GlobalRateLimiter != nil {
		r.Use(dep.GlobalRateLimiter)
	} else {
		r.Use(middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute).Middleware())
	}

	authLimiter := dep.AuthRateLimiter
	if authLimiter == nil {
		authLimiter = middleware.NewRateLimiter(dep.AuthRateLimitRPM, time.Minute).Middleware()
	}
	resetLimiter := dep.ResetRateLimiter
	if resetLimiter == nil {
		resetLimiter = middleware.NewRateLimiter(dep.ResetRateLimitRPM, time.Minute).Middleware()
	}
	requireAuth := middleware.AuthMiddleware(dep.JWTManager, dep.SessionBinder)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(authLimiter).Post("/register", dep.AuthHandler.Register)
			r.With(authLimiter).Post("/login", dep.AuthHandler.Login)
			r.With(authLimiter).Post("/verify/request", dep.AuthHandler.VerifyRequest)
			r.With(authLimiter).Post("/verify/confirm", dep.AuthHandler.VerifyConfirm)
			r.With(resetLimiter).Post("/password/forgot", dep.AuthHandler.PasswordForgot)
			r.With(authLimiter).Post("/password/reset", dep.AuthHandler.PasswordReset)
			r.Group(func(r chi.Router) {
				r.Use(middleware.CSRFMiddleware)
				r.With(requireAuth).Post("/logout", dep.AuthHandler.Logout)
			})
		})

		r.With(requireAuth).Get("/me", dep.AccountHandler.Me)
		r.With(requireAuth).Get("/me/sessions", dep.AccountHandler.Sessions)
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.CSRFMiddleware)
			r.Post("/me/sessions/revoke-all", dep.AccountHandler.RevokeAllSessions)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
