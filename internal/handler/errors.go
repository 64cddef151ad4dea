package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/property-rental-api/internal/apperr"
)

// HTTPErrorHandler renders every error as {"error": code, "message": msg}.
// Internal causes are logged and never sent to the client.
func HTTPErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, code, msg := describe(err)
		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("path", c.Path()),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.Error(err))
		}
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, echo.Map{"error": code, "message": msg})
		}
		if werr != nil {
			log.Warn("write error response", zap.Error(werr))
		}
	}
}

func describe(err error) (status int, code, msg string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if inner, ok := he.Internal.(*apperr.Error); ok {
			return apperr.Status(inner.Kind), inner.Code, inner.Message
		}
		code = strings.ReplaceAll(strings.ToLower(http.StatusText(he.Code)), " ", "_")
		if code == "" {
			code = "error"
		}
		return he.Code, code, fmt.Sprint(he.Message)
	}
	e := apperr.As(err)
	return apperr.Status(e.Kind), e.Code, e.Message
}
