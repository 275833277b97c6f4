package routes

import (
	"github.com/MrSnakeDoc/asksite/internal/httpserver/deps"
	"github.com/MrSnakeDoc/asksite/internal/httpserver/mw"
)

// guard restricts a route to the allowed client IPs and Host headers.
func guard(d deps.Deps) []Middleware {
	return []Middleware{
		mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger),
		mw.EnforceHost(d.AllowedHosts, d.Logger),
	}
}

// limited adds the per-IP rate limiter on top of guard, for routes that reach the backend.
func limited(d deps.Deps) []Middleware {
	return append(guard(d), mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.RateBurst,
		RefillPerIPPerMin: d.RatePerMin,
		MaxEntries:        1024,
		TrustProxy:        d.TrustProxy,
	}))
}
