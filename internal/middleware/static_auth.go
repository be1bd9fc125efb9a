package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tablegraph/internal/logging"
	"tablegraph/internal/observability"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StaticAuthConfig controls shared-secret JWT validation. Tokens must be
// signed with HS256 using the configured secret. This mode suits single-tenant
// deployments without an identity provider.
type StaticAuthConfig struct {
	Enabled   bool
	Secret    string
	ClockSkew time.Duration
}

// StaticAuthMiddleware validates HS256 Bearer tokens when enabled.
// Optional securityMetrics parameter enables security monitoring; pass nil to disable.
func StaticAuthMiddleware(cfg StaticAuthConfig, logger *logging.Logger, securityMetrics ...*observability.SecurityMetrics) (func(http.Handler) http.Handler, error) {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }, nil
	}

	var metrics *observability.SecurityMetrics
	if len(securityMetrics) > 0 {
		metrics = securityMetrics[0]
	}

	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("static auth enabled but secret not configured")
	}

	if cfg.ClockSkew == 0 {
		cfg.ClockSkew = 2 * time.Minute
	}

	key := []byte(secret)
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(cfg.ClockSkew),
		jwt.WithExpirationRequired(),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			endpoint := r.URL.Path

			if metrics != nil {
				metrics.RecordAuthAttempt(r.Context(), authMethodStatic)
			}

			tokenString := bearerToken(r.Header.Get("Authorization"))
			if tokenString == "" {
				if metrics != nil {
					metrics.RecordAuthFailure(r.Context(), authMethodStatic, "missing_token")
					metrics.RecordUnauthorizedAttempt(r.Context(), endpoint, "missing_token")
				}
				if logger != nil {
					reqLogger := logging.FromContext(r.Context())
					reqLogger.Warn("authentication failed: missing bearer token",
						slog.String("endpoint", endpoint),
						slog.String("remote_addr", r.RemoteAddr),
					)
				}
				writeUnauthorized(w, "missing bearer token")
				return
			}

			token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
				return key, nil
			}, parserOpts...)
			if err != nil || !token.Valid {
				if metrics != nil {
					metrics.RecordAuthFailure(r.Context(), authMethodStatic, "token_verification_failed")
					metrics.RecordTokenValidationError(r.Context(), "verification_failed")
					metrics.RecordUnauthorizedAttempt(r.Context(), endpoint, "invalid_token")
				}
				if logger != nil {
					reqLogger := logging.FromContext(r.Context())
					errMsg := "token invalid"
					if err != nil {
						errMsg = err.Error()
					}
					reqLogger.Warn("static token validation failed",
						slog.String("error", errMsg),
						slog.String("endpoint", endpoint),
						slog.String("remote_addr", r.RemoteAddr),
					)
				}
				writeUnauthorized(w, "invalid token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				if metrics != nil {
					metrics.RecordAuthFailure(r.Context(), authMethodStatic, "claims_parse_failed")
					metrics.RecordTokenValidationError(r.Context(), "claims_parse_failed")
				}
				writeUnauthorized(w, "invalid token claims")
				return
			}

			subject, _ := claims["sub"].(string)
			issuer, _ := claims["iss"].(string)
			if issuer == "" {
				issuer = authMethodStatic
			}

			if metrics != nil {
				metrics.RecordAuthSuccess(r.Context(), authMethodStatic, issuer)
			}

			if logger != nil {
				reqLogger := logging.FromContext(r.Context())
				reqLogger.Debug("authentication successful",
					slog.String("subject", subject),
					slog.String("issuer", issuer),
					slog.String("endpoint", endpoint),
				)
			}

			if span := trace.SpanFromContext(r.Context()); span.IsRecording() {
				span.SetAttributes(
					attribute.String("auth.subject", subject),
					attribute.String("auth.issuer", issuer),
					attribute.Bool("auth.authenticated", true),
				)
			}

			ctx := WithAuthContext(r.Context(), AuthContext{
				Subject:  subject,
				Issuer:   issuer,
				Audience: extractAudience(claims),
				Claims:   claims,
			})

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}, nil
}
