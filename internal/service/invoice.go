package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/property-rental-api/internal/apperr"
	"github.com/iliyamo/property-rental-api/internal/model"
	"github.com/iliyamo/property-rental-api/internal/queue"
	"github.com/iliyamo/property-rental-api/internal/repository"
)

// InvoiceDetail is an invoice with everything the API shows next to it.
type InvoiceDetail struct {
	Invoice   model.Invoice
	Lines     []model.InvoiceLine
	Payments  []model.Payment
	Reminders []model.ReminderHistory
}

// InvoiceService serves invoice reads, manual payments and sends.
type InvoiceService struct {
	invoices   InvoiceStore
	payments   PaymentStore
	reminders  ReminderStore
	links      *LinkGenerator
	dispatcher *Dispatcher
	events     EventPublisher
	log        *zap.Logger
	now        func() time.Time
}

// InvoiceDeps groups an InvoiceService's collaborators.
type InvoiceDeps struct {
	Invoices   InvoiceStore
	Payments   PaymentStore
	Reminders  ReminderStore
	Links      *LinkGenerator
	Dispatcher *Dispatcher
	Events     EventPublisher
}

func NewInvoiceService(d InvoiceDeps, log *zap.Logger) *InvoiceService {
	return &InvoiceService{
		invoices:   d.Invoices,
		payments:   d.Payments,
		reminders:  d.Reminders,
		links:      d.Links,
		dispatcher: d.Dispatcher,
		events:     d.Events,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *InvoiceService) get(ctx context.Context, id uint64) (model.Invoice, error) {
	inv, err := s.invoices.Get(ctx, id)
	if errors.Is(err, repository.ErrInvoiceNotFound) {
		return inv, ErrInvoiceNotFound
	}
	if err != nil {
		return inv, apperr.Internal(err)
	}
	return inv, nil
}

// Get returns one invoice with lines, payments and reminder history.
func (s *InvoiceService) Get(ctx context.Context, id uint64) (InvoiceDetail, error) {
	inv, err := s.get(ctx, id)
	if err != nil {
		return InvoiceDetail{}, err
	}
	return s.detail(ctx, inv)
}

// ByTransaction finds an invoice by transaction id or generic payment link.
func (s *InvoiceService) ByTransaction(ctx context.Context, ref string) (InvoiceDetail, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return InvoiceDetail{}, apperr.Validation("missing_transaction", "transaction is required")
	}
	inv, err := s.invoices.GetByTransaction(ctx, ref)
	if errors.Is(err, repository.ErrInvoiceNotFound) {
		return InvoiceDetail{}, ErrInvoiceNotFound
	}
	if err != nil {
		return InvoiceDetail{}, apperr.Internal(err)
	}
	return s.detail(ctx, inv)
}

func (s *InvoiceService) detail(ctx context.Context, inv model.Invoice) (InvoiceDetail, error) {
	d := InvoiceDetail{Invoice: inv}
	var err error
	if d.Lines, err = s.invoices.Lines(ctx, inv.ID); err != nil {
		return d, apperr.Internal(err)
	}
	if d.Payments, err = s.payments.ListByInvoice(ctx, inv.ID); err != nil {
		return d, apperr.Internal(err)
	}
	if d.Reminders, err = s.reminders.ListByInvoice(ctx, inv.ID); err != nil {
		return d, apperr.Internal(err)
	}
	return d, nil
}

// List returns invoices matching f.
func (s *InvoiceService) List(ctx context.Context, f repository.InvoiceFilter) ([]model.Invoice, error) {
	out, err := s.invoices.List(ctx, f)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

// Payments lists a contact's payments, newest first.
func (s *InvoiceService) Payments(ctx context.Context, contactID uint64) ([]model.Payment, error) {
	out, err := s.payments.ListByContact(ctx, contactID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

// MarkPaid registers a manual payment. A nil amount pays the residual.
func (s *InvoiceService) MarkPaid(ctx context.Context, id uint64, amount *decimal.Decimal, method, reference string) (model.Invoice, model.Payment, error) {
	inv, err := s.get(ctx, id)
	if err != nil {
		return inv, model.Payment{}, err
	}
	if inv.State != model.InvoicePosted {
		return inv, model.Payment{}, apperr.Validation("invalid_state", "only posted invoices can be paid")
	}
	if inv.PaymentState == model.PaymentPaid {
		return inv, model.Payment{}, ErrInvoicePaid
	}
	pay := model.Payment{
		InvoiceID: inv.ID,
		ContactID: inv.ContactID,
		Amount:    inv.AmountDue(),
		Currency:  inv.Currency,
		Method:    method,
		Reference: reference,
		PaidAt:    s.now(),
	}
	if amount != nil {
		pay.Amount = *amount
	}
	if !pay.Amount.IsPositive() {
		return inv, model.Payment{}, apperr.Validation("invalid_amount", "amount must be positive")
	}
	if pay.Method == "" {
		pay.Method = "manual"
	}
	if err := s.payments.Register(ctx, &pay, &inv); err != nil {
		if errors.Is(err, repository.ErrInvoicePaid) {
			return inv, model.Payment{}, ErrInvoicePaid
		}
		return inv, model.Payment{}, apperr.Internal(err)
	}
	s.log.Info("payment registered", zap.Uint64("invoice_id", inv.ID), zap.String("amount", pay.Amount.String()),
		zap.String("payment_state", inv.PaymentState))
	return inv, pay, nil
}

// RegenerateLinks recomputes the payment links of a customer invoice. The
// transaction id is assigned if missing and never changed otherwise.
func (s *InvoiceService) RegenerateLinks(ctx context.Context, id uint64) (model.Invoice, error) {
	inv, err := s.get(ctx, id)
	if err != nil {
		return inv, err
	}
	if !inv.IsCustomerInvoice() {
		return inv, apperr.Validation("not_customer_invoice", "payment links only apply to customer invoices")
	}
	if _, err := s.links.EnsureLinks(ctx, &inv); err != nil {
		return inv, err
	}
	return inv, nil
}

// Send delivers an invoice over channel. With a broker the request is
// queued and Send returns queued=true; otherwise, or when publishing
// fails, it is sent inline.
func (s *InvoiceService) Send(ctx context.Context, id uint64, channel string) (queued bool, attempts []model.ReminderHistory, err error) {
	channel = strings.ToLower(strings.TrimSpace(channel))
	if channel == "" {
		channel = SendAll
	}
	if channel != SendEmail && channel != SendSMS && channel != SendAll {
		return false, nil, ErrInvalidChannel
	}
	if _, err := s.get(ctx, id); err != nil {
		return false, nil, err
	}
	if s.events != nil && s.events.Enabled() {
		perr := s.events.PublishNotificationRequested(ctx, queue.NotificationRequestedEvent{
			InvoiceID:   id,
			Channel:     channel,
			RequestedAt: s.now().Format(time.RFC3339),
		})
		if perr == nil {
			return true, nil, nil
		}
		s.log.Warn("publish notification.requested failed; sending inline", zap.Uint64("invoice_id", id), zap.Error(perr))
	}
	attempts, err = s.dispatcher.SendInvoice(ctx, id, channel)
	return false, attempts, err
}
