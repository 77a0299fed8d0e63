package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"appraiser-gateway/internal/platform/ratelimit"
	"appraiser-gateway/pkg/platform/httputil"
)

// RateLimitPolicy bounds how often one client may hit a route group.
type RateLimitPolicy struct {
	Limit  int
	Window time.Duration
}

type rateLimitExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// RateLimit throttles requests per client IP using a sliding window. A
// limiter failure lets the request through rather than blocking traffic.
func RateLimit(limiter *ratelimit.Limiter, policy RateLimitPolicy, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := clientIP(r)

			result, err := limiter.Allow(ctx, "ip:"+ip, policy.Limit, policy.Window)
			if err != nil {
				logger.ErrorContext(ctx, "rate limit check failed",
					"error", err.Error(),
					"request_id", GetRequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				retryAfter := result.RetryAfter(time.Now())
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, rateLimitExceededResponse{
					Error:      "rate_limit_exceeded",
					Message:    "Too many requests from this address. Please try again later.",
					RetryAfter: retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
