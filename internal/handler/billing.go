package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-rental-api/internal/apperr"
	"github.com/iliyamo/property-rental-api/internal/service"
)

// BillingHandler serves the public invoice lookup and payment history
// used by the payment front-end.
type BillingHandler struct {
	Invoices *service.InvoiceService
	Timeout  time.Duration
}

func NewBillingHandler(i *service.InvoiceService, timeout time.Duration) *BillingHandler {
	return &BillingHandler{Invoices: i, Timeout: timeout}
}

// ByTransaction finds an invoice by ?transaction=, which may be the
// transaction id or the full generic payment link.
func (h *BillingHandler) ByTransaction(c echo.Context) error {
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	d, err := h.Invoices.ByTransaction(ctx, c.QueryParam("transaction"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newInvoiceDetailView(d))
}

// Payments lists the payments of ?partnerId=, newest first.
func (h *BillingHandler) Payments(c echo.Context) error {
	id, err := queryID(c, "partnerId")
	if err != nil {
		return err
	}
	if id == 0 {
		return apperr.Validation("missing_partner", "partnerId is required")
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	pays, err := h.Invoices.Payments(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"partner_id": id,
		"count":      len(pays),
		"payments":   paymentViews(pays),
	})
}
