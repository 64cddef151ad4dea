package middleware

import (
	"context"

	"github.com/labstack/echo/v4"
)

// TokenFetcher resolves an opaque access token to its contact.
type TokenFetcher interface {
	Fetch(ctx context.Context, accessToken string) (uint64, error)
}

// ContactAuth requires a valid opaque access token and stores the contact
// id under KeyContactID.
func ContactAuth(tokens TokenFetcher) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return errMissingBearer
			}
			id, err := tokens.Fetch(c.Request().Context(), raw)
			if err != nil {
				return err
			}
			c.Set(KeyContactID, id)
			return next(c)
		}
	}
}
