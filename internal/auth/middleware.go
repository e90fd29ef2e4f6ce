package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"propspace/space-portal/space-portal-backend/internal/registry"
)

type contextKey struct{}

var callerKey contextKey

// CallerFromContext returns the authenticated account identity, if any.
func CallerFromContext(ctx context.Context) (registry.AccountID, bool) {
	caller, ok := ctx.Value(callerKey).(registry.AccountID)
	return caller, ok
}

// WithCaller injects a caller identity into the context. Exposed for tests and
// in-process service wiring.
func WithCaller(ctx context.Context, caller registry.AccountID) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// Middleware authenticates the bearer token and places the subject account
// into the request context. It establishes identity only; whether that
// identity may mutate anything is the registry guard's decision.
func Middleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		claims := jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		caller := registry.AccountID(claims.Subject)
		ctx := WithCaller(c.Request.Context(), caller)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// IssueToken mints a bearer token for an account. Used by operator tooling and
// by services authenticating to each other.
func IssueToken(secret string, account registry.AccountID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   string(account),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
