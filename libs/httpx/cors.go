package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy lists what browser callers of the booking API may do. Origins match
// case-insensitively and "*" matches any origin.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// WithCORS answers preflights and decorates responses for allowed origins. It does
// nothing when AllowedOrigins is empty.
//
// A preflight from an origin outside the list gets 403. A plain request from such an
// origin still reaches the handler, just without CORS headers, so the browser hides
// the response. ExposedHeaders defaults to the request id header.
func WithCORS(p CORSPolicy) Middleware {
	if len(p.AllowedOrigins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	origins := normalizeList(p.AllowedOrigins)
	fixed := p.fixedHeaders()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

			allow, ok := matchOrigin(origin, origins, p.AllowCredentials)
			switch {
			case !ok && preflight:
				w.WriteHeader(http.StatusForbidden)
				return
			case !ok:
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			for k, v := range fixed {
				h[k] = append([]string(nil), v...)
			}
			h.Set("Access-Control-Allow-Origin", allow)
			h.Add("Vary", "Origin")
			h.Add("Vary", "Access-Control-Request-Method")
			h.Add("Vary", "Access-Control-Request-Headers")

			if preflight {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// fixedHeaders renders the parts of the response that do not depend on the origin.
func (p CORSPolicy) fixedHeaders() http.Header {
	h := http.Header{}
	join := func(key string, values []string) {
		if v := strings.Join(normalizeList(values), ", "); v != "" {
			h.Set(key, v)
		}
	}
	join("Access-Control-Allow-Methods", p.AllowedMethods)
	join("Access-Control-Allow-Headers", p.AllowedHeaders)
	exposed := p.ExposedHeaders
	if len(normalizeList(exposed)) == 0 {
		exposed = []string{RequestIDHeader}
	}
	join("Access-Control-Expose-Headers", exposed)
	if p.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if secs := int(p.MaxAge.Seconds()); secs > 0 {
		h.Set("Access-Control-Max-Age", strconv.Itoa(secs))
	}
	return h
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// matchOrigin returns the Access-Control-Allow-Origin value for origin. A wildcard is
// echoed back as the origin when credentials are allowed, since browsers reject "*" then.
func matchOrigin(origin string, allowed []string, allowCredentials bool) (string, bool) {
	for _, candidate := range allowed {
		switch {
		case candidate == "*" && allowCredentials:
			return origin, true
		case candidate == "*":
			return "*", true
		case strings.EqualFold(candidate, origin):
			return origin, true
		}
	}
	return "", false
}
