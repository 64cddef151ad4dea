package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/property-rental-api/internal/apperr"
	"github.com/iliyamo/property-rental-api/internal/model"
	"github.com/iliyamo/property-rental-api/internal/service"
)

// PartnerHandler serves self-service accounts and OTP verification.
type PartnerHandler struct {
	Partners *service.PartnerService
	Timeout  time.Duration
	Log      *zap.Logger
}

func NewPartnerHandler(p *service.PartnerService, timeout time.Duration, log *zap.Logger) *PartnerHandler {
	return &PartnerHandler{Partners: p, Timeout: timeout, Log: log}
}

type signupReq struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Phone    string `json:"phone" form:"phone"`
	City     string `json:"city" form:"city"`
}

type profileReq struct {
	Name                   *string `json:"name"`
	Email                  *string `json:"email"`
	Phone                  *string `json:"phone"`
	Mobile                 *string `json:"mobile"`
	Street                 *string `json:"street"`
	City                   *string `json:"city"`
	Function               *string `json:"function"`
	WhatsappNumber         *string `json:"whatsapp_number"`
	PreferredPaymentMethod *string `json:"preferred_payment_method"`
	Password               *string `json:"password"`
}

func (r profileReq) update() service.ProfileUpdate {
	return service.ProfileUpdate{
		Name:                   r.Name,
		Email:                  r.Email,
		Phone:                  r.Phone,
		Mobile:                 r.Mobile,
		Street:                 r.Street,
		City:                   r.City,
		Function:               r.Function,
		WhatsappNumber:         r.WhatsappNumber,
		PreferredPaymentMethod: r.PreferredPaymentMethod,
		Password:               r.Password,
	}
}

type otpReq struct {
	Email       string `json:"email" form:"email"`
	Transaction string `json:"transaction" form:"transaction"`
	Code        string `json:"code" form:"code"`
}

// Signup creates an unverified account and sends the first OTP.
func (h *PartnerHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	contact, err := h.Partners.Signup(ctx, service.SignupInput{
		Name: req.Name, Email: req.Email, Password: req.Password, Phone: req.Phone, City: req.City,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": "account created, verification code sent",
		"partner": newContactView(contact),
	})
}

// ByEmail returns the account registered under :email.
func (h *PartnerHandler) ByEmail(c echo.Context) error {
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	contact, err := h.Partners.ByEmail(ctx, c.Param("email"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.view(c, contact))
}

// Details returns account :id.
func (h *PartnerHandler) Details(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	contact, err := h.Partners.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.view(c, contact))
}

// Update applies a partial profile update to account :id.
func (h *PartnerHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req profileReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	contact, err := h.Partners.Update(ctx, id, req.update())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.view(c, contact))
}

// Reenroll updates the account under :email, resets its verification and
// sends a new OTP.
func (h *PartnerHandler) Reenroll(c echo.Context) error {
	var req profileReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	contact, err := h.Partners.Reenroll(ctx, c.Param("email"), req.update())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "verification code sent",
		"partner": newContactView(contact),
	})
}

// SendOTP issues a code for account :id.
func (h *PartnerHandler) SendOTP(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	contact, err := h.Partners.Get(ctx, id)
	if err != nil {
		return err
	}
	return h.sendOTP(c, contact)
}

// ResendOTP issues a code for the account under :email.
func (h *PartnerHandler) ResendOTP(c echo.Context) error {
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	contact, err := h.Partners.ByEmail(ctx, c.Param("email"))
	if err != nil {
		return err
	}
	return h.sendOTP(c, contact)
}

func (h *PartnerHandler) sendOTP(c echo.Context, contact model.Contact) error {
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()
	if err := h.Partners.SendOTP(ctx, &contact); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"message":    "verification code sent",
		"partner_id": contact.ID,
	})
}

// VerifyOTP checks an email/code pair and marks the account verified.
func (h *PartnerHandler) VerifyOTP(c echo.Context) error {
	var req otpReq
	if err := bind(c, &req); err != nil {
		return err
	}
	email, code := orQuery(c, req.Email, "email"), orQuery(c, req.Code, "code")
	if email == "" || code == "" {
		return apperr.Validation("missing_fields", "email and code are required")
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	contact, err := h.Partners.VerifyOTP(ctx, email, code)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":     true,
		"is_verified": true,
		"partner":     newContactView(contact),
	})
}

// SendInvoiceOTP texts a code to the payer of invoice :tx and returns the
// masked number it was sent to.
func (h *PartnerHandler) SendInvoiceOTP(c echo.Context) error {
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	masked, err := h.Partners.SendInvoiceOTP(ctx, c.Param("tx"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "verification code sent",
		"phone":   masked,
	})
}

// VerifyInvoiceOTP checks a code sent by SendInvoiceOTP.
func (h *PartnerHandler) VerifyInvoiceOTP(c echo.Context) error {
	var req otpReq
	if err := bind(c, &req); err != nil {
		return err
	}
	tx, code := orQuery(c, req.Transaction, "transaction"), orQuery(c, req.Code, "code")
	if tx == "" || code == "" {
		return apperr.Validation("missing_fields", "transaction and code are required")
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	contact, err := h.Partners.VerifyInvoiceOTP(ctx, tx, code)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":     true,
		"is_verified": true,
		"partner_id":  contact.ID,
	})
}

func (h *PartnerHandler) view(c echo.Context, contact model.Contact) contactView {
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()
	return profileView(ctx, h.Partners, h.Log, contact)
}

// profileView renders a contact with the tenant summary. A failing summary
// is logged and left out rather than failing the request.
func profileView(ctx context.Context, partners *service.PartnerService, log *zap.Logger, contact model.Contact) contactView {
	v := newContactView(contact)
	if !contact.IsTenant {
		return v
	}
	sum, err := partners.Summary(ctx, contact)
	if err != nil {
		log.Warn("rental summary failed", zap.Uint64("contact_id", contact.ID), zap.Error(err))
		return v
	}
	v.Rental = newRentalSummary(sum)
	return v
}
