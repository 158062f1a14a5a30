// Package middleware provides reusable HTTP middleware: gateway token
// verification, role enforcement, rate limiting, response caching and
// request instrumentation.
package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Context keys populated by CallerAuth.
const (
	ContextCallerID = "caller_id"
	ContextRole     = "role"
)

// CallerAuth validates the gateway-issued Bearer token and injects the
// caller identity into the request context. The core does not issue
// tokens itself; the API gateway authenticates users and signs a short
// JWT with "sub" (caller ID) and "role" claims using the shared secret.
func CallerAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			sub, _ := claims["sub"].(string)
			if sub == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token has no subject"})
			}
			role, _ := claims["role"].(string)

			c.Set(ContextCallerID, sub)
			c.Set(ContextRole, role)
			return next(c)
		}
	}
}

// CallerID returns the authenticated caller's identity, or "" when the
// request passed no CallerAuth middleware.
func CallerID(c echo.Context) string {
	if v, ok := c.Get(ContextCallerID).(string); ok {
		return v
	}
	return ""
}
