package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"ordersaga/internal/logger"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const (
	callerKey      contextKey = "caller"
	tokenClaimsKey contextKey = "jwtClaims"
)

// Auth resolves an optional bearer token into the caller identity. Requests
// without a usable token pass through anonymously; order creation is not
// gated on identity, the caller only scopes rate limiting and logs.
func Auth(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := bearerToken(r)
			if !ok || len(key) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return key, nil
			})
			if err != nil || !token.Valid {
				logger.FromCtx(r.Context()).Debug("ignoring invalid bearer token", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), tokenClaimsKey, claims)
			if caller := callerFromClaims(claims); caller != "" {
				ctx = context.WithValue(ctx, callerKey, caller)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerFrom returns the authenticated caller, if any.
func CallerFrom(ctx context.Context) (string, bool) {
	c, ok := ctx.Value(callerKey).(string)
	return c, ok && c != ""
}

// ClaimsFrom returns the verified token claims, if any.
func ClaimsFrom(ctx context.Context) (jwt.MapClaims, bool) {
	c, ok := ctx.Value(tokenClaimsKey).(jwt.MapClaims)
	return c, ok
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return tok, tok != ""
}

// callerFromClaims prefers the registered subject and falls back to a
// service or user id claim.
func callerFromClaims(claims jwt.MapClaims) string {
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub
	}
	for _, k := range []string{"service", "user_id"} {
		switch v := claims[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%d", int64(v))
		}
	}
	return ""
}
