package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/property-rental-api/internal/config"
	"github.com/iliyamo/property-rental-api/internal/gateway"
	"github.com/iliyamo/property-rental-api/internal/middleware"
	"github.com/iliyamo/property-rental-api/internal/model"
	"github.com/iliyamo/property-rental-api/internal/service"
	"github.com/iliyamo/property-rental-api/internal/testutil"
	"github.com/iliyamo/property-rental-api/internal/utils"
)

const (
	testSecret    = "handler-test-secret"
	webhookSecret = "hook-secret"
	tenantPass    = "s3cret"
)

type waveStub struct{ calls int }

func (w *waveStub) Name() string { return model.GatewayWave }

func (w *waveStub) Checkout(_ context.Context, req gateway.CheckoutRequest) (gateway.Session, error) {
	w.calls++
	return gateway.Session{
		SessionID:  "cos-1",
		PaymentURL: "https://pay.wave.example/c/cos-1",
		Status:     "open",
		Raw:        []byte(`{"id":"cos-1"}`),
	}, nil
}

type app struct {
	e         *echo.Echo
	contacts  *testutil.Contacts
	invoices  *testutil.Invoices
	reminders *testutil.Reminders
	sms       *testutil.SMS
	email     *testutil.Email
	wave      *waveStub
}

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func tenant(t *testing.T) model.Contact {
	hash, err := utils.HashPassword(tenantPass, bcrypt.MinCost)
	require.NoError(t, err)
	return model.Contact{
		ID: 3, Name: "Awa Ndiaye", Email: "awa@example.sn", Mobile: "77 123 45 67",
		Password: hash, IsVerified: true, IsTenant: true,
	}
}

func openInvoice() model.Invoice {
	due := day(2025, 3, 5)
	return model.Invoice{
		ID: 10, Number: "INV/2025/00010", MoveType: model.InvoiceCustomer,
		State: model.InvoicePosted, PaymentState: model.PaymentNotPaid, ContactID: 3,
		InvoiceDate: day(2025, 3, 1), DueDate: &due,
		AmountTotal: decimal.NewFromInt(150000), AmountResidual: decimal.NewFromInt(150000),
		Currency: "XOF", TransactionID: "tx-1", PropertyName: "Apt 2B",
	}
}

func newApp(t *testing.T) *app {
	t.Helper()
	log := zap.NewNop()
	cfg := config.Config{
		ServiceJWTSecret: testSecret,
		BcryptCost:       bcrypt.MinCost,
		FirstLoginMode:   config.FirstLoginInvite,
		OTPTTL:           10 * time.Minute,
		Currency:         "XOF",
		Phone:            config.PhoneConfig{CountryCode: "221", LocalLength: 9},
	}
	a := &app{
		contacts:  testutil.NewContacts(tenant(t)),
		invoices:  testutil.NewInvoices(openInvoice()),
		reminders: testutil.NewReminders(),
		sms:       &testutil.SMS{},
		email:     &testutil.Email{},
		wave:      &waveStub{},
	}
	settings := testutil.NewSettings(map[string]string{"rental.max_reminders": "3"}, &model.FrontConfig{
		ID: 1, BaseURL: "https://pay.example.sn/", PaymentPath: "/facture", Active: true,
	})
	buildingID := uint64(1)
	properties := testutil.NewProperties(model.Property{
		ID: 5, BuildingID: &buildingID, BuildingName: "Residence Teranga", Name: "Apt 2B",
		Status: model.PropertyAvailable, MonthlyRent: decimal.NewFromInt(150000),
	})
	contracts := testutil.NewContracts(model.Contract{
		ID: 7, Reference: "RC/2025/007", TenantID: 3, TenantName: "Awa Ndiaye", PropertyID: 5,
		PropertyName: "Apt 2B", State: model.ContractDraft, StartDate: day(2025, 1, 1),
		DurationMonths: 12, MonthlyRent: decimal.NewFromInt(150000), PaymentDay: 5,
		PaymentFrequency: model.FrequencyMonthly, Currency: "XOF",
	})
	properties.Contracts, contracts.Properties = contracts, properties
	schedules := testutil.NewSchedules()
	buildings := &testutil.Buildings{
		Rows: []model.Building{{ID: 1, Name: "Residence Teranga", City: "Dakar", Active: true}},
		StatsByID: map[uint64]model.BuildingStats{1: {
			PropertyCount: 4, OccupiedCount: 3, AvailableCount: 1,
			MonthlyRent: decimal.NewFromInt(600000), UnpaidTotal: decimal.NewFromInt(150000),
		}},
	}
	payments := testutil.NewPayments(a.invoices)
	params := service.NewParams(settings)
	links := service.NewLinkGenerator(a.invoices, settings)
	dispatcher := service.NewDispatcher(service.DispatcherDeps{
		Invoices: a.invoices, Contacts: a.contacts, Reminders: a.reminders, Settings: settings,
		Links: links, Params: params, SMS: a.sms, Email: a.email,
	}, log)
	tokens := service.NewTokenStore(testutil.NewTokens(), settings, cfg, log)
	partners := service.NewPartnerService(service.PartnerDeps{
		Contacts: a.contacts, Contracts: contracts, Properties: properties,
		Invoices: a.invoices, Schedules: schedules, Dispatcher: dispatcher,
	}, cfg, log)
	invoices := service.NewInvoiceService(service.InvoiceDeps{
		Invoices: a.invoices, Payments: payments, Reminders: a.reminders,
		Links: links, Dispatcher: dispatcher, Events: &testutil.Publisher{},
	}, log)
	initiator := service.NewPaymentInitiator(service.PaymentDeps{
		Invoices: a.invoices, Contacts: a.contacts, Gateways: testutil.NewGateways(),
		Payments: payments, Links: links, Params: params, Events: &testutil.Publisher{},
	}, []gateway.Provider{a.wave}, cfg.Phone, log)

	authH := NewAuthHandler(service.NewCredentialVerifier(a.contacts, cfg, log), tokens, partners, 0, log)
	partnerH := NewPartnerHandler(partners, 0, log)
	payH := NewPaymentHandler(initiator, webhookSecret, 0, log)
	billH := NewBillingHandler(invoices, 0)
	rentH := NewRentHandler(RentDeps{
		Catalog:   service.NewCatalog(buildings, properties, contracts, schedules, a.invoices),
		Contracts: service.NewContractService(contracts, schedules, a.invoices, links, "XOF", log),
		Invoices:  invoices,
		Partners:  partners,
	}, 0, log)

	e := echo.New()
	e.HTTPErrorHandler = HTTPErrorHandler(log)
	e.POST("/api/auth/login", authH.Login)
	e.GET("/api/auth/get_tokens", authH.Login)
	e.POST("/api/auth/refresh_token", authH.RefreshToken)
	e.POST("/api/auth/delete_tokens", authH.DeleteTokens)
	e.GET("/api/me", authH.Me, middleware.ContactAuth(tokens))
	e.POST("/api/new_compte", partnerH.Signup)
	e.GET("/api/partner/:id/otp-code", partnerH.SendOTP)
	e.POST("/api/partner/otp-verification", partnerH.VerifyOTP)
	e.PUT("/api/partner/:id/update", partnerH.Update)
	e.POST("/api/invoices/:tx/send-otp", partnerH.SendInvoiceOTP)
	e.POST("/api/invoices/verify-otp", partnerH.VerifyInvoiceOTP)
	e.GET("/facture-paiement/:transaction/type/:gateway", payH.Initiate)
	e.POST("/api/payments/:gateway/webhook", payH.Webhook)
	e.GET("/api/account-move/by-transaction", billH.ByTransaction)
	e.GET("/api/payments", billH.Payments)
	e.GET("/api/rental/config", NewConfigHandler(params, 0).Get)

	rent := e.Group("/api/rent", middleware.ServiceAuth(testSecret), middleware.RequireRole(middleware.RoleAdmin, middleware.RoleManager))
	rent.GET("/buildings", rentH.ListBuildings)
	rent.GET("/buildings/:id", rentH.GetBuilding)
	rent.GET("/properties/:id", rentH.GetProperty)
	rent.GET("/contracts/:id", rentH.GetContract)
	rent.POST("/contracts/:id/confirm", rentH.ConfirmContract)
	rent.POST("/contracts/:id/terminate", rentH.TerminateContract)
	rent.POST("/contracts/:id/generate-next-invoice", rentH.GenerateNextInvoice)
	rent.GET("/invoices/:id", rentH.GetInvoice)
	rent.POST("/invoices/:id/send", rentH.SendInvoice)
	rent.POST("/invoices/:id/mark-paid", rentH.MarkPaid)
	rent.POST("/invoices/:id/payment-link", rentH.PaymentLink)
	rent.GET("/partner/:id/dashboard", rentH.PartnerDashboard)
	a.e = e
	return a
}

type reqOpt func(*http.Request)

func withBearer(tok string) reqOpt {
	return func(r *http.Request) { r.Header.Set(echo.HeaderAuthorization, "Bearer "+tok) }
}

func withHeader(k, v string) reqOpt {
	return func(r *http.Request) { r.Header.Set(k, v) }
}

func (a *app) do(t *testing.T, method, target, body string, opts ...reqOpt) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, o := range opts {
		o(req)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	out := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func serviceToken(t *testing.T, role string) string {
	tok, _, err := utils.NewServiceToken(testSecret, "backoffice", role, time.Hour)
	require.NoError(t, err)
	return tok
}
