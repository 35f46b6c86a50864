package middleware

import (
	"net/http"
	"strings"
)

type corsPolicy struct {
	anyOrigin bool
	origins   map[string]struct{}
	methods   string
	headers   string
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin and
// whether credentials may be sent. An empty value means no grant.
// Credentials are never combined with the wildcard.
func (p corsPolicy) allowOrigin(origin string) (string, bool) {
	if origin == "" {
		return "", false
	}
	if _, listed := p.origins[origin]; listed {
		return origin, true
	}
	if p.anyOrigin {
		return origin, false
	}
	return "", false
}

// CORS answers preflight requests and adds cross-origin headers for the
// configured origins. "*" allows any origin without credentials.
func CORS(allowedOrigins, allowedMethods, allowedHeaders []string) Middleware {
	policy := corsPolicy{
		origins: make(map[string]struct{}, len(allowedOrigins)),
		methods: strings.Join(allowedMethods, ", "),
		headers: strings.Join(allowedHeaders, ", "),
	}
	for _, origin := range allowedOrigins {
		if origin == "*" {
			policy.anyOrigin = true
			continue
		}
		policy.origins[origin] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")

			if allow, credentials := policy.allowOrigin(r.Header.Get("Origin")); allow != "" {
				h.Set("Access-Control-Allow-Origin", allow)
				if credentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}
			h.Set("Access-Control-Allow-Methods", policy.methods)
			h.Set("Access-Control-Allow-Headers", policy.headers)
			h.Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
