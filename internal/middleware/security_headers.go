package middleware

import "net/http"

// SecurityHeaders sets the response headers for a JSON-only API surface:
// nothing here is ever framed or rendered, so the CSP denies everything.
// HSTS is only meaningful behind TLS, so it is gated on the environment.
func SecurityHeaders(env string) func(http.Handler) http.Handler {
	hsts := env == "production"
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Cache-Control", "no-store")
			if hsts {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}
