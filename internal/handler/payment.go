package handler

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/property-rental-api/internal/apperr"
	"github.com/iliyamo/property-rental-api/internal/gateway"
	"github.com/iliyamo/property-rental-api/internal/service"
)

const maxCallbackBytes = 64 << 10

var (
	errWebhookDisabled = apperr.NotFound("not_found", "webhooks are not enabled")
	errWebhookSecret   = apperr.Unauthorized("invalid_signature", "invalid webhook secret")
)

// PaymentHandler opens mobile-money checkouts and receives provider
// callbacks.
type PaymentHandler struct {
	Payments      *service.PaymentInitiator
	WebhookSecret string
	Timeout       time.Duration
	Log           *zap.Logger
}

func NewPaymentHandler(p *service.PaymentInitiator, webhookSecret string, timeout time.Duration, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{Payments: p, WebhookSecret: webhookSecret, Timeout: timeout, Log: log}
}

// Initiate starts (or replays) the checkout of the invoice carrying
// :transaction on :gateway.
func (h *PaymentHandler) Initiate(c echo.Context) error {
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	in, err := h.Payments.Initiate(ctx, c.Param("transaction"), c.Param("gateway"))
	if err != nil {
		return err
	}
	resp := echo.Map{
		"success":         true,
		"gateway":         in.Gateway,
		"transaction_id":  in.TransactionID,
		"payment_url":     in.PaymentURL,
		"session_id":      in.SessionID,
		"status":          in.Status,
		"account_move_id": in.InvoiceID,
		"partner_id":      in.ContactID,
		"reference":       in.Reference,
		"amount":          money(in.Amount),
		"currency":        in.Currency,
	}
	if in.Existing {
		resp["existe"] = true
	}
	for k, v := range in.Extra {
		if _, taken := resp[k]; !taken {
			resp[k] = v
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// Webhook applies a provider callback. The shared secret travels in
// X-Webhook-Secret; without a configured secret the endpoint is off.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	if h.WebhookSecret == "" {
		return errWebhookDisabled
	}
	got := c.Request().Header.Get("X-Webhook-Secret")
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.WebhookSecret)) != 1 {
		return errWebhookSecret
	}
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxCallbackBytes))
	if err != nil {
		return errInvalidBody
	}
	cb, err := gateway.ParseCallback(body)
	if errors.Is(err, gateway.ErrUnknownStatus) {
		h.Log.Info("callback ignored", zap.String("gateway", c.Param("gateway")), zap.String("reference", cb.Reference))
		return c.JSON(http.StatusOK, echo.Map{"success": true, "ignored": true})
	}
	if err != nil {
		return apperr.Validation("invalid_callback", err.Error())
	}

	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	tx, err := h.Payments.Settle(ctx, c.Param("gateway"), cb)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":        true,
		"transaction_id": tx.TransactionID,
		"status":         tx.Status,
	})
}
