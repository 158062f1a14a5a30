package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Roles recognized in the gateway token's "role" claim.
const (
	RoleCustomer = "CUSTOMER"
	RoleCatalog  = "CATALOG"
	RolePayment  = "PAYMENT"
)

// RequireRole rejects requests whose authenticated role is not in the
// allowed set. Must run after CallerAuth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(ContextRole).(string)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
