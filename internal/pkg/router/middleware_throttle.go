package router

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shandysiswandi/otpauth/internal/pkg/ratelimit"
)

// Throttle limits requests per client IP for the route it is attached to.
// Hits are counted under "ip:<name>:<client ip>". Limiter failures let the
// request through.
func (r *Router) Throttle(name string, rule ratelimit.Rule) Middleware {
	if r.limiter == nil || !rule.Enabled() {
		return nil
	}

	limiter := r.limiter
	retryAfter := strconv.Itoa(int(rule.Window.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			// RemoteAddr was already resolved by middlewareIP.
			ip := realIP(req, nil)
			if ip == "" {
				ip = req.RemoteAddr
			}

			ok, err := limiter.Allow(req.Context(), "ip:"+name+":"+ip, rule)
			if err != nil {
				slog.WarnContext(req.Context(), "rate limiter unavailable", "throttle", name, "error", err)
			}
			if !ok {
				w.Header().Set("Retry-After", retryAfter)
				writeJSON(w, errorResponse{Message: "Too many requests, please try again later"}, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, req)
		})
	}
}
