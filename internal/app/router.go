package app

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"hris-portal/internal/account"
	"hris-portal/internal/auth"
	"hris-portal/internal/maintenance"
	"hris-portal/internal/observability"
	"hris-portal/internal/ratelimit"
)

// RateLimits holds the per-endpoint budgets for the public auth routes.
type RateLimits struct {
	Login          ratelimit.Policy
	ForgetPassword ratelimit.Policy
	ResetPassword  ratelimit.Policy
}

// RouterDeps is everything NewRouter wires together.
type RouterDeps struct {
	Logger         *observability.Logger
	Gate           *auth.Gate
	Auth           *auth.Handler
	Accounts       *account.Handler
	Cleanup        *maintenance.CleanupHandler
	Limiter        ratelimit.Limiter
	Limits         RateLimits
	Ping           func(ctx context.Context) error
	AllowedOrigins []string

	// TrustedProxyHops is how many reverse proxies append to X-Forwarded-For.
	TrustedProxyHops int
}

func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	clientKey := ratelimit.ClientKey(deps.TrustedProxyHops)
	limit := func(policy ratelimit.Policy) func(http.Handler) http.Handler {
		return ratelimit.Middleware(deps.Limiter, policy, clientKey, logger)
	}

	r := chi.NewRouter()
	r.Use(observability.RequestIDMiddleware)
	r.Use(func(next http.Handler) http.Handler {
		return observability.RecoverMiddleware(logger, next)
	})
	r.Use(func(next http.Handler) http.Handler {
		return observability.RequestLoggingMiddleware(logger, next)
	})
	r.Use(securityHeaders)
	r.Use(corsMiddleware(deps.AllowedOrigins))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"status": "error", "message": "Route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"status": "error", "message": "Method not allowed"})
	})

	r.Get("/api/v1/healthcheck", healthHandler(deps.Ping))

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(limit(deps.Limits.Login)).Post("/login", deps.Auth.Login)
		r.Post("/refresh-token", deps.Auth.Refresh)
		r.With(limit(deps.Limits.ForgetPassword)).Post("/forget-password", deps.Auth.ForgetPassword)
		r.With(limit(deps.Limits.ResetPassword)).Post("/reset-password", deps.Auth.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(deps.Gate.VerifyAccessToken)
			r.Post("/logout", deps.Auth.Logout)
			r.Post("/change-password/{accountId}", deps.Auth.ChangePassword)
		})
	})

	r.Route("/api/v1/users", func(r chi.Router) {
		r.Use(deps.Gate.VerifyAccessToken)
		deps.Accounts.Routes(r)
	})

	if deps.Cleanup != nil {
		r.Get("/internal/maintenance/cleanup", deps.Cleanup.Handle)
		r.Post("/internal/maintenance/cleanup", deps.Cleanup.Handle)
	}

	return r
}

func healthHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{
			"status":    "success",
			"message":   "Server is running fine and healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}

		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body["message"] = "Database is unreachable"
			}
		}

		writeJSON(w, status, body)
	}
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Cross-Origin-Resource-Policy", "cross-origin")
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware echoes allowed origins only. Preflight requests are
// answered here.
func corsMiddleware(allowed []string) func(http.Handler) http.Handler {
	origins := make([]string, 0, len(allowed))
	for _, o := range allowed {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && slices.Contains(origins, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
