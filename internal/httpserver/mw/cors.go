package mw

import (
	"net/http"
	"strings"
)

// CORS lets the extension pages and injected widgets call the API.
// "*" allows any origin; entries ending in "*" match by prefix
// (ex: "chrome-extension://*"). Preflight requests are answered directly.
func CORS(allowed []string) func(http.Handler) http.Handler {
	allowAll := false
	var exact, prefixes []string
	for _, o := range allowed {
		o = strings.TrimSpace(o)
		switch {
		case o == "":
		case o == "*":
			allowAll = true
		case strings.HasSuffix(o, "*"):
			prefixes = append(prefixes, strings.TrimSuffix(o, "*"))
		default:
			exact = append(exact, o)
		}
	}

	match := func(origin string) bool {
		if allowAll {
			return true
		}
		for _, o := range exact {
			if o == origin {
				return true
			}
		}
		for _, p := range prefixes {
			if strings.HasPrefix(origin, p) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && match(origin) {
				h := w.Header()
				if allowAll {
					h.Set("Access-Control-Allow-Origin", "*")
				} else {
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
				h.Set("Access-Control-Max-Age", "600")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
