package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-rental-api/internal/apperr"
)

var errForbidden = apperr.New(apperr.KindForbidden, "forbidden", "forbidden")

// RequireRole admits requests whose service role, set by ServiceAuth, is
// one of roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(KeyRole).(string)
			if !allowed[role] {
				return errForbidden
			}
			return next(c)
		}
	}
}
