package ratelimit

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"hris-portal/internal/observability"
)

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.statusCode = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware enforces policy keyed by client IP and User-Agent. If the
// limiter backend fails the request is let through and the failure logged.
func Middleware(limiter Limiter, policy Policy, keyFn KeyFunc, logger *observability.Logger) func(http.Handler) http.Handler {
	if keyFn == nil {
		keyFn = ClientKey(0)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)

			decision, err := limiter.Allow(r.Context(), policy, key)
			if err != nil {
				logger.Warn("rate_limit_unavailable", map[string]any{
					"policy": policy.Name,
					"error":  err.Error(),
				})
				next.ServeHTTP(w, r)
				return
			}

			if !decision.Allowed {
				seconds := int(math.Ceil(decision.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"status":  "error",
					"message": policy.Message,
				})
				return
			}

			if !policy.SkipSuccessful {
				next.ServeHTTP(w, r)
				return
			}

			recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(recorder, r)
			if recorder.statusCode < http.StatusBadRequest {
				if err := limiter.Release(r.Context(), policy, key); err != nil {
					logger.Warn("rate_limit_release_failed", map[string]any{
						"policy": policy.Name,
						"error":  err.Error(),
					})
				}
			}
		})
	}
}

// KeyFunc derives the bucket a request is counted against.
type KeyFunc func(r *http.Request) string

// ClientKey keys requests by client IP and User-Agent. trustedHops is the
// number of reverse proxies whose X-Forwarded-For entries are believed.
func ClientKey(trustedHops int) KeyFunc {
	return func(r *http.Request) string {
		return observability.ForwardedClientIP(r, trustedHops) + "-" + r.UserAgent()
	}
}
