package handler

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-rental-api/internal/apperr"
)

var errInvalidBody = apperr.Validation("invalid_body", "invalid request body")

// reqCtx bounds the work a handler does on behalf of one request.
func reqCtx(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(c.Request().Context(), d)
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid_"+name, "invalid "+name)
	}
	return id, nil
}

// queryID parses an optional numeric query parameter; absent means 0.
func queryID(c echo.Context, name string) (uint64, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, apperr.Validation("invalid_"+name, "invalid "+name)
	}
	return id, nil
}

// bind decodes the body into v when there is one. An empty body is not an
// error so that query-string callers keep working.
func bind(c echo.Context, v any) error {
	if c.Request().ContentLength == 0 {
		return nil
	}
	if err := (&echo.DefaultBinder{}).BindBody(c, v); err != nil {
		return errInvalidBody
	}
	return nil
}

// orQuery returns v, or the query/form value of name when v is empty.
func orQuery(c echo.Context, v, name string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	if q := strings.TrimSpace(c.QueryParam(name)); q != "" {
		return q
	}
	return strings.TrimSpace(c.FormValue(name))
}
