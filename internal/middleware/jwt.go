package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-rental-api/internal/apperr"
	"github.com/iliyamo/property-rental-api/internal/utils"
)

var (
	errMissingBearer = apperr.Unauthorized("missing_token", "missing bearer token")
	errBadToken      = apperr.Unauthorized("invalid_token", "invalid token")
)

// bearer extracts the token of an "Authorization: Bearer <token>" header.
func bearer(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(auth[7:])
	return raw, raw != ""
}

// ServiceAuth validates a service-identity JWT signed with secret and puts
// its subject and role into the context. Invitation tokens signed with the
// same secret are rejected by their purpose claim.
func ServiceAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return errMissingBearer
			}
			claims, err := utils.ParseClaims(secret, raw)
			if err != nil {
				return errBadToken
			}
			if p, _ := claims["purpose"].(string); p != utils.PurposeService {
				return errBadToken
			}
			sub, _ := claims["sub"].(string)
			role, _ := claims["role"].(string)
			c.Set(KeySubject, sub)
			c.Set(KeyRole, role)
			return next(c)
		}
	}
}
