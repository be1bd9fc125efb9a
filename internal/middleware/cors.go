package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures Cross-Origin Resource Sharing (CORS) policies.
type CORSConfig struct {
	Enabled          bool
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int
}

// corsPolicy is the precomputed form of a CORSConfig.
type corsPolicy struct {
	allowAll         bool
	origins          map[string]struct{}
	methodsHeader    string
	headersHeader    string
	exposeHeader     string
	maxAgeHeader     string
	allowCredentials bool
}

func newCORSPolicy(cfg CORSConfig) *corsPolicy {
	policy := &corsPolicy{
		origins:          make(map[string]struct{}),
		methodsHeader:    strings.Join(cfg.AllowedMethods, ", "),
		headersHeader:    strings.Join(cfg.AllowedHeaders, ", "),
		allowCredentials: cfg.AllowCredentials,
	}
	for _, origin := range cfg.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin == "*" {
			policy.allowAll = true
			break
		}
		policy.origins[origin] = struct{}{}
	}
	if len(cfg.ExposeHeaders) > 0 {
		policy.exposeHeader = strings.Join(cfg.ExposeHeaders, ", ")
	}
	if cfg.MaxAge > 0 {
		policy.maxAgeHeader = strconv.Itoa(cfg.MaxAge)
	}
	return policy
}

func (p *corsPolicy) allows(origin string) bool {
	if p.allowAll {
		return true
	}
	_, ok := p.origins[origin]
	return ok
}

// CORSMiddleware adds CORS headers and handles preflight requests.
func CORSMiddleware(cfg CORSConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	policy := newCORSPolicy(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowOrigin := policy.allows(origin)

			if allowOrigin {
				if policy.allowAll {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				}

				// Credentials cannot be combined with the wildcard origin
				if policy.allowCredentials && !policy.allowAll {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}

				if policy.exposeHeader != "" {
					w.Header().Set("Access-Control-Expose-Headers", policy.exposeHeader)
				}
			}

			if r.Method == http.MethodOptions {
				if allowOrigin {
					if policy.methodsHeader != "" {
						w.Header().Set("Access-Control-Allow-Methods", policy.methodsHeader)
					}
					if policy.headersHeader != "" {
						w.Header().Set("Access-Control-Allow-Headers", policy.headersHeader)
					}
					if policy.maxAgeHeader != "" {
						w.Header().Set("Access-Control-Max-Age", policy.maxAgeHeader)
					}
				}

				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
