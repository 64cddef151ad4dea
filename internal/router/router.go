package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/property-rental-api/internal/handler"
	"github.com/iliyamo/property-rental-api/internal/middleware"
)

// New builds the echo instance with the middleware every route shares:
// panic recovery, request ids, the request log and CORS. Errors returned by
// handlers and middleware are rendered by handler.HTTPErrorHandler.
func New(log *zap.Logger, corsOrigins []string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.HTTPErrorHandler(log)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: corsOrigins,
		AllowHeaders: []string{
			echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept,
			echo.HeaderAuthorization, "X-Webhook-Secret",
		},
	}))
	return e
}

// RegisterRoutes registers routes that do not require authentication and
// belong to no feature group. Currently it exposes only the health check.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}

// RegisterAuth registers login, token refresh and revocation under
// /api/auth, and the bearer-protected /api/me. limit guards the
// credential endpoints.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, tokens middleware.TokenFetcher, limit echo.MiddlewareFunc) {
	g := e.Group("/api/auth", limit)
	g.POST("/login", a.Login)
	g.GET("/get_tokens", a.Login)
	g.POST("/refresh_token", a.RefreshToken)
	g.POST("/delete_tokens", a.DeleteTokens)

	e.GET("/api/me", a.Me, middleware.ContactAuth(tokens))
}

// RegisterPartner registers self-service account and OTP routes. Every
// route that sends or checks a code goes through limit.
func RegisterPartner(e *echo.Echo, p *handler.PartnerHandler, limit echo.MiddlewareFunc) {
	e.POST("/api/new_compte", p.Signup, limit)
	e.GET("/api/partnerByEmail/:email", p.ByEmail)
	e.GET("/api/partner/compte/:id/details", p.Details)
	e.PUT("/api/partner/:id/update", p.Update)
	e.POST("/api/partner/create-update/:email", p.Reenroll, limit)

	e.GET("/api/partner/:id/otp-code", p.SendOTP, limit)
	e.GET("/api/partner/:email/otp-resend", p.ResendOTP, limit)
	e.POST("/api/partner/otp-verification", p.VerifyOTP, limit)
	e.POST("/api/invoices/:tx/send-otp", p.SendInvoiceOTP, limit)
	e.POST("/api/invoices/verify-otp", p.VerifyInvoiceOTP, limit)
}

// RegisterPayments registers the routes used by the payment front-end:
// checkout initiation, provider callbacks, invoice lookup, payment history
// and the typed rental configuration. cache applies to the configuration
// read only.
func RegisterPayments(e *echo.Echo, pay *handler.PaymentHandler, bill *handler.BillingHandler, cfg *handler.ConfigHandler, cache echo.MiddlewareFunc) {
	e.GET("/facture-paiement/:transaction/type/:gateway", pay.Initiate)
	e.POST("/api/payments/:gateway/webhook", pay.Webhook)

	e.GET("/api/account-move/by-transaction", bill.ByTransaction)
	e.GET("/api/payments", bill.Payments)
	e.GET("/api/rental/config", cfg.Get, cache)
}

// RegisterRent registers the management API under /api/rent. All routes
// require a service-identity JWT with the ADMIN or MANAGER role. cache
// applies to the building and property listings.
func RegisterRent(e *echo.Echo, r *handler.RentHandler, secret string, cache echo.MiddlewareFunc) {
	g := e.Group(
		"/api/rent",
		middleware.ServiceAuth(secret),
		middleware.RequireRole(middleware.RoleAdmin, middleware.RoleManager),
	)

	// ---- Buildings ----
	g.GET("/buildings", r.ListBuildings, cache)
	g.GET("/buildings/:id", r.GetBuilding)

	// ---- Properties ----
	g.GET("/properties", r.ListProperties, cache)
	g.GET("/properties/:id", r.GetProperty)

	// ---- Contracts ----
	g.GET("/contracts", r.ListContracts)
	g.GET("/contracts/:id", r.GetContract)
	g.GET("/contracts/:id/invoices", r.ContractInvoices)
	g.POST("/contracts/:id/confirm", r.ConfirmContract)
	g.POST("/contracts/:id/terminate", r.TerminateContract)
	g.POST("/contracts/:id/expire", r.ExpireContract)
	g.POST("/contracts/:id/regenerate-schedule", r.RegenerateSchedule)
	g.POST("/contracts/:id/generate-next-invoice", r.GenerateNextInvoice)

	// ---- Invoices ----
	g.GET("/invoices/:id", r.GetInvoice)
	g.POST("/invoices/:id/send", r.SendInvoice)
	g.POST("/invoices/:id/mark-paid", r.MarkPaid)
	g.POST("/invoices/:id/payment-link", r.PaymentLink)

	// ---- Partner views ----
	g.GET("/partner/:id/dashboard", r.PartnerDashboard)
	g.GET("/partner/:id/invoices", r.PartnerInvoices)
	g.GET("/partner/:id/contracts", r.PartnerContracts)
	g.GET("/partner/:id/properties", r.PartnerProperties)
}
