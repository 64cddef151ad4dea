package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-rental-api/internal/service"
)

// ConfigHandler exposes the typed rental.* parameters.
type ConfigHandler struct {
	Params  *service.Params
	Timeout time.Duration
}

func NewConfigHandler(p *service.Params, timeout time.Duration) *ConfigHandler {
	return &ConfigHandler{Params: p, Timeout: timeout}
}

// Get returns every known rental parameter with secrets masked.
func (h *ConfigHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	values, err := h.Params.Typed(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "config": values})
}
