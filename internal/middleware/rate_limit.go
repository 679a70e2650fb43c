package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	pkghttp "github.com/ridelink/identity/pkg/http"
)

// RateLimitConfig caps burst traffic per client IP in front of the auth
// endpoints. The identifier-keyed limiter inside the identity service is
// the authoritative one; this layer only absorbs indiscriminate floods.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// DefaultAuthRateLimit is the per-IP budget applied to the public auth routes.
func DefaultAuthRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 10, Window: time.Minute}
}

// RateLimitByIP limits requests per client IP. Denials use the same JSON
// error shape as the rest of the surface.
func RateLimitByIP(cfg RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "too many requests from this address")
		}),
	)
}
