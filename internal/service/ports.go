// Package service holds the rental workflows that sit between the HTTP
// handlers and the repositories: credential checks, the token store,
// payment links, gateway initiation, reminders and contract billing.
//
// Services depend on the small interfaces below rather than on the MySQL
// repositories so they can be exercised with in-memory stores.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/property-rental-api/internal/model"
	"github.com/iliyamo/property-rental-api/internal/queue"
	"github.com/iliyamo/property-rental-api/internal/repository"
)

type ContactStore interface {
	GetByID(ctx context.Context, id uint64) (model.Contact, error)
	FindByEmail(ctx context.Context, email string) ([]model.Contact, error)
	FindByPhones(ctx context.Context, candidates []string) ([]model.Contact, error)
	Create(ctx context.Context, c *model.Contact) error
	UpdateProfile(ctx context.Context, c model.Contact) error
	SetPassword(ctx context.Context, id uint64, hash string, verify bool) error
	SetOTP(ctx context.Context, id uint64, code string, expires time.Time) error
	ConfirmOTP(ctx context.Context, id uint64) error
	ClearOTP(ctx context.Context, id uint64) error
	ResetVerification(ctx context.Context, id uint64) error
}

type TokenRepository interface {
	CreatePair(ctx context.Context, refresh *model.RefreshToken, access *model.AccessToken) error
	Rotate(ctx context.Context, oldID uint64, refresh *model.RefreshToken, access *model.AccessToken) error
	FindAccess(ctx context.Context, hash string) (model.AccessToken, error)
	FindRefresh(ctx context.Context, hash string) (model.RefreshToken, error)
	RevokeFamily(ctx context.Context, familyID string) error
}

type SettingsStore interface {
	Param(ctx context.Context, key string) (string, error)
	Params(ctx context.Context, prefix string) (map[string]string, error)
	SetParam(ctx context.Context, key, value string) error
	ActiveFrontConfig(ctx context.Context) (model.FrontConfig, error)
}

type BuildingStore interface {
	List(ctx context.Context, q string) ([]model.Building, error)
	Get(ctx context.Context, id uint64) (model.Building, error)
	Stats(ctx context.Context, id uint64) (model.BuildingStats, error)
}

type PropertyStore interface {
	List(ctx context.Context, f repository.PropertyFilter) ([]model.Property, error)
	Get(ctx context.Context, id uint64) (model.Property, error)
	ListRentedBy(ctx context.Context, tenantID uint64) ([]model.Property, error)
}

type ContractStore interface {
	List(ctx context.Context, f repository.ContractFilter) ([]model.Contract, error)
	Get(ctx context.Context, id uint64) (model.Contract, error)
	ActiveForProperty(ctx context.Context, propertyID uint64) (model.Contract, error)
	Activate(ctx context.Context, id uint64) error
	Close(ctx context.Context, id uint64, state string, at time.Time) error
}

type ScheduleStore interface {
	ListByContract(ctx context.Context, contractID uint64) ([]model.ScheduleEntry, error)
	ReplacePending(ctx context.Context, contractID uint64, entries []model.ScheduleEntry) error
	NextPending(ctx context.Context, contractID uint64) (model.ScheduleEntry, error)
	MarkInvoiced(ctx context.Context, id, invoiceID uint64) error
	Upcoming(ctx context.Context, contractIDs []uint64, from time.Time, limit int) ([]model.ScheduleEntry, error)
}

type InvoiceStore interface {
	Get(ctx context.Context, id uint64) (model.Invoice, error)
	GetByTransaction(ctx context.Context, ref string) (model.Invoice, error)
	List(ctx context.Context, f repository.InvoiceFilter) ([]model.Invoice, error)
	Lines(ctx context.Context, invoiceID uint64) ([]model.InvoiceLine, error)
	Create(ctx context.Context, inv *model.Invoice, lines []model.InvoiceLine) error
	AssignTransaction(ctx context.Context, id uint64, txID string) (bool, error)
	SetLinks(ctx context.Context, id uint64, generic, wave, om string) error
	ListOverdue(ctx context.Context, today, remindedBefore time.Time) ([]model.Invoice, error)
	StampReminder(ctx context.Context, id uint64, day time.Time) error
}

type PaymentStore interface {
	Register(ctx context.Context, p *model.Payment, inv *model.Invoice) error
	ListByContact(ctx context.Context, contactID uint64) ([]model.Payment, error)
	ListByInvoice(ctx context.Context, invoiceID uint64) ([]model.Payment, error)
}

type GatewayStore interface {
	Reserve(ctx context.Context, t *model.GatewayTransaction, stale time.Duration) (bool, error)
	Get(ctx context.Context, gateway, transactionID string) (model.GatewayTransaction, error)
	FindByReference(ctx context.Context, gateway, ref string) (model.GatewayTransaction, error)
	MarkPending(ctx context.Context, id uint64, sessionID, paymentURL, extra, raw string) error
	Release(ctx context.Context, id uint64) error
	Settle(ctx context.Context, id uint64, status string) (bool, error)
}

type ReminderStore interface {
	Append(ctx context.Context, h *model.ReminderHistory) error
	CountAutomaticDays(ctx context.Context, invoiceID uint64) (int, error)
	ListByInvoice(ctx context.Context, invoiceID uint64) ([]model.ReminderHistory, error)
}

// SMSSender and EmailSender are the delivery channels.
type SMSSender interface {
	SendSMS(ctx context.Context, to, text string) error
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// EventPublisher emits broker events. Failures are logged by callers and
// never fail the originating request.
type EventPublisher interface {
	Enabled() bool
	PublishPaymentInitiated(ctx context.Context, ev queue.PaymentInitiatedEvent) error
	PublishNotificationRequested(ctx context.Context, ev queue.NotificationRequestedEvent) error
}
