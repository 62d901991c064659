package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/saferoute/saferoute/internal/api/models"
)

// Service token errors.
var (
	ErrInvalidServiceToken = errors.New("invalid service token")
	ErrServiceTokenExpired = errors.New("service token has expired")
)

// serviceNameKey is the context key for the authenticated caller service.
type serviceNameKey struct{}

// ServiceTokenConfig holds configuration for internal endpoint authentication.
type ServiceTokenConfig struct {
	// SigningKey is the shared secret used to verify service tokens.
	SigningKey string

	// Issuer is the expected issuer claim.
	Issuer string

	// Audience is the expected audience claim (e.g. "saferoute-internal").
	Audience string
}

// ServiceToken creates middleware that validates HS256 service tokens on
// internal endpoints. The token subject names the calling service and is
// stored in the request context.
func ServiceToken(cfg ServiceTokenConfig) func(http.Handler) http.Handler {
	signingKey := []byte(cfg.SigningKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, r, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if len(authHeader) < len(bearerPrefix) ||
				!strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
				writeUnauthorized(w, r, "invalid authorization header format")
				return
			}

			tokenString := authHeader[len(bearerPrefix):]
			if tokenString == "" {
				writeUnauthorized(w, r, "missing bearer token")
				return
			}

			serviceName, err := validateServiceToken(tokenString, signingKey, cfg)
			if err != nil {
				switch {
				case errors.Is(err, ErrServiceTokenExpired):
					writeUnauthorized(w, r, "service token has expired")
				default:
					writeUnauthorized(w, r, "invalid service token")
				}
				return
			}

			ctx := context.WithValue(r.Context(), serviceNameKey{}, serviceName)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validateServiceToken verifies the token signature and claims and returns
// the subject (calling service name).
func validateServiceToken(tokenString string, signingKey []byte, cfg ServiceTokenConfig) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrServiceTokenExpired
		}
		return "", fmt.Errorf("%w: %s", ErrInvalidServiceToken, err.Error())
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidServiceToken
	}
	return claims.Subject, nil
}

// writeUnauthorized writes a 401 Unauthorized response.
// Implemented directly here to avoid import cycle with response package.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	traceID := GetRequestID(r.Context())
	problem := models.NewUnauthorized(traceID, detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// GetServiceName retrieves the authenticated caller service from the context.
// Returns an empty string when the request was not service-authenticated.
func GetServiceName(ctx context.Context) string {
	if name, ok := ctx.Value(serviceNameKey{}).(string); ok {
		return name
	}
	return ""
}
