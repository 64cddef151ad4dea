package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/property-rental-api/internal/apperr"
	"github.com/iliyamo/property-rental-api/internal/config"
	"github.com/iliyamo/property-rental-api/internal/gateway"
	"github.com/iliyamo/property-rental-api/internal/model"
	"github.com/iliyamo/property-rental-api/internal/queue"
	"github.com/iliyamo/property-rental-api/internal/repository"
	"github.com/iliyamo/property-rental-api/internal/utils"
)

var (
	ErrUnsupportedGateway = apperr.Validation("unsupported_gateway", "unsupported gateway")
	ErrInvoiceNotFound    = apperr.NotFound("not_found", "invoice not found")
	ErrInvoicePaid        = apperr.Validation("invoice_paid", "invoice already paid")
	ErrMissingPhone       = apperr.Validation("missing_phone", "no customer phone number for Orange Money")
	ErrPaymentInProgress  = apperr.Conflict("payment_in_progress", "payment initiation in progress")
	ErrGatewayDisabled    = apperr.Validation("gateway_disabled", "payment gateway is disabled")
)

// Initiation is the outcome of a gateway initiation. Existing is set when
// the transaction had already been initiated and no provider call was made.
type Initiation struct {
	Gateway       string
	TransactionID string
	PaymentURL    string
	SessionID     string
	Status        string
	InvoiceID     uint64
	ContactID     uint64
	Reference     string
	Amount        decimal.Decimal
	Currency      string
	Extra         map[string]string
	Existing      bool
}

// PaymentInitiator opens gateway checkouts for invoices. At most one
// provider call is made per (gateway, transaction id): the local row is
// reserved before the call and only the reserving request proceeds.
type PaymentInitiator struct {
	invoices  InvoiceStore
	contacts  ContactStore
	gateways  GatewayStore
	payments  PaymentStore
	links     *LinkGenerator
	params    *Params
	providers map[string]gateway.Provider
	events    EventPublisher
	phone     utils.PhoneRules
	stale     time.Duration
	log       *zap.Logger
	now       func() time.Time
}

// PaymentDeps groups the stores a PaymentInitiator works with.
type PaymentDeps struct {
	Invoices InvoiceStore
	Contacts ContactStore
	Gateways GatewayStore
	Payments PaymentStore
	Links    *LinkGenerator
	Params   *Params
	Events   EventPublisher
	// ReservationTTL is how long an initiating row blocks other
	// initiations of its transaction. Zero means DefaultReservationTTL.
	ReservationTTL time.Duration
}

// DefaultReservationTTL outlasts the provider HTTP timeouts.
const DefaultReservationTTL = 2 * time.Minute

func NewPaymentInitiator(d PaymentDeps, providers []gateway.Provider, phone config.PhoneConfig, log *zap.Logger) *PaymentInitiator {
	byName := make(map[string]gateway.Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	stale := d.ReservationTTL
	if stale <= 0 {
		stale = DefaultReservationTTL
	}
	return &PaymentInitiator{
		invoices:  d.Invoices,
		contacts:  d.Contacts,
		gateways:  d.Gateways,
		payments:  d.Payments,
		links:     d.Links,
		params:    d.Params,
		providers: byName,
		events:    d.Events,
		phone:     utils.PhoneRules{CountryCode: phone.CountryCode, LocalLength: phone.LocalLength},
		stale:     stale,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ResponseName is the gateway name reported to clients.
func ResponseName(canonical string) string {
	if canonical == model.GatewayOrange {
		return "orange"
	}
	return canonical
}

// Initiate opens (or replays) a checkout for the invoice carrying txID.
func (p *PaymentInitiator) Initiate(ctx context.Context, txID, alias string) (Initiation, error) {
	name := gateway.Canonical(alias)
	provider := p.providers[name]
	if name == "" || provider == nil {
		return Initiation{}, ErrUnsupportedGateway
	}
	if p.params != nil && !p.params.Bool(ctx, enableParam(name), true) {
		return Initiation{}, ErrGatewayDisabled
	}

	inv, err := p.invoices.GetByTransaction(ctx, txID)
	if errors.Is(err, repository.ErrInvoiceNotFound) || (err == nil && !inv.IsCustomerInvoice()) {
		return Initiation{}, ErrInvoiceNotFound
	}
	if err != nil {
		return Initiation{}, apperr.Internal(err)
	}
	amount := inv.AmountDue()
	if inv.PaymentState == model.PaymentPaid || !amount.IsPositive() {
		return Initiation{}, ErrInvoicePaid
	}
	txID = inv.TransactionID

	contact, err := p.contacts.GetByID(ctx, inv.ContactID)
	if err != nil && !errors.Is(err, repository.ErrContactNotFound) {
		return Initiation{}, apperr.Internal(err)
	}
	phone := p.phone.E164(firstNonEmpty(contact.WhatsappNumber, contact.Phone, contact.Mobile))
	if name == model.GatewayOrange && phone == "" {
		return Initiation{}, ErrMissingPhone
	}

	base, path, err := p.links.Front(ctx)
	if err != nil {
		return Initiation{}, err
	}
	back := BuildLinks(base, path, txID).Generic

	tx := model.GatewayTransaction{
		Gateway:       name,
		TransactionID: txID,
		InvoiceID:     inv.ID,
		ContactID:     inv.ContactID,
		Amount:        amount,
		Currency:      inv.Currency,
		Phone:         phone,
		Reference:     "INV-" + inv.DisplayRef(),
	}
	reserved, err := p.gateways.Reserve(ctx, &tx, p.stale)
	if err != nil {
		return Initiation{}, apperr.Internal(err)
	}
	if !reserved {
		return p.replay(ctx, name, txID)
	}

	log := p.log.With(zap.String("gateway", name), zap.String("transaction_id", txID), zap.Uint64("invoice_id", inv.ID))
	sess, err := provider.Checkout(ctx, gateway.CheckoutRequest{
		TransactionID: txID,
		InvoiceID:     inv.ID,
		ContactID:     inv.ContactID,
		Amount:        amount,
		Currency:      inv.Currency,
		Phone:         phone,
		Reference:     tx.Reference,
		Description:   "Invoice " + inv.DisplayRef(),
		SuccessURL:    back + "&status=success",
		CancelURL:     back + "&status=error",
	})
	if err != nil {
		if rerr := p.gateways.Release(context.WithoutCancel(ctx), tx.ID); rerr != nil {
			log.Error("release reservation failed", zap.Error(rerr))
		}
		log.Warn("provider checkout failed", zap.Error(err))
		return Initiation{}, upstream(err)
	}
	extra, err := json.Marshal(sess.Extra)
	if err != nil {
		return Initiation{}, apperr.Internal(err)
	}
	// The remote session exists now; a cancelled request must not leave
	// the row initiating.
	if err := p.gateways.MarkPending(context.WithoutCancel(ctx), tx.ID, sess.SessionID, sess.PaymentURL, string(extra), string(sess.Raw)); err != nil {
		log.Error("store checkout session failed", zap.String("session_id", sess.SessionID), zap.Error(err))
		return Initiation{}, apperr.Internal(err)
	}
	log.Info("payment initiated", zap.String("session_id", sess.SessionID))

	p.publish(context.WithoutCancel(ctx), queue.PaymentInitiatedEvent{
		TransactionID: txID,
		Gateway:       name,
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.DisplayRef(),
		ContactID:     inv.ContactID,
		Amount:        amount.String(),
		Currency:      inv.Currency,
		SessionID:     sess.SessionID,
		PaymentURL:    sess.PaymentURL,
		InitiatedAt:   p.now().Format(time.RFC3339),
	})

	return Initiation{
		Gateway:       ResponseName(name),
		TransactionID: txID,
		PaymentURL:    sess.PaymentURL,
		SessionID:     sess.SessionID,
		Status:        sess.Status,
		InvoiceID:     inv.ID,
		ContactID:     inv.ContactID,
		Reference:     tx.Reference,
		Amount:        amount,
		Currency:      inv.Currency,
		Extra:         sess.Extra,
	}, nil
}

func (p *PaymentInitiator) replay(ctx context.Context, name, txID string) (Initiation, error) {
	cur, err := p.gateways.Get(ctx, name, txID)
	if err != nil {
		return Initiation{}, apperr.Internal(err)
	}
	if cur.Status == model.TxInitiating {
		return Initiation{}, ErrPaymentInProgress
	}
	var extra map[string]string
	if cur.Extra != "" {
		if err := json.Unmarshal([]byte(cur.Extra), &extra); err != nil {
			p.log.Warn("stored gateway extra unreadable", zap.Uint64("id", cur.ID), zap.Error(err))
		}
	}
	return Initiation{
		Gateway:       ResponseName(name),
		TransactionID: cur.TransactionID,
		PaymentURL:    cur.PaymentURL,
		SessionID:     cur.SessionID,
		Status:        cur.Status,
		InvoiceID:     cur.InvoiceID,
		ContactID:     cur.ContactID,
		Reference:     cur.Reference,
		Amount:        cur.Amount,
		Currency:      cur.Currency,
		Extra:         extra,
		Existing:      true,
	}, nil
}

func (p *PaymentInitiator) publish(ctx context.Context, ev queue.PaymentInitiatedEvent) {
	if p.events == nil || !p.events.Enabled() {
		return
	}
	if err := p.events.PublishPaymentInitiated(ctx, ev); err != nil {
		p.log.Warn("publish payment.initiated failed", zap.String("transaction_id", ev.TransactionID), zap.Error(err))
	}
}

// Settle applies a provider callback. A transaction that reaches
// succeeded registers a payment of its amount on the invoice. Repeated
// callbacks are applied once.
func (p *PaymentInitiator) Settle(ctx context.Context, alias string, cb gateway.Callback) (model.GatewayTransaction, error) {
	name := gateway.Canonical(alias)
	if name == "" {
		return model.GatewayTransaction{}, ErrUnsupportedGateway
	}
	tx, err := p.gateways.FindByReference(ctx, name, cb.Reference)
	if errors.Is(err, repository.ErrTransactionNotFound) {
		return tx, apperr.NotFound("transaction_not_found", "transaction not found")
	}
	if err != nil {
		return tx, apperr.Internal(err)
	}
	changed, err := p.gateways.Settle(ctx, tx.ID, cb.Status)
	if err != nil {
		return tx, apperr.Internal(err)
	}
	if !changed {
		return tx, nil
	}
	tx.Status = cb.Status
	log := p.log.With(zap.String("gateway", name), zap.String("transaction_id", tx.TransactionID))
	log.Info("transaction settled", zap.String("status", cb.Status))

	if cb.Status != model.TxSucceeded {
		return tx, nil
	}
	pay := model.Payment{
		InvoiceID: tx.InvoiceID,
		ContactID: tx.ContactID,
		Amount:    tx.Amount,
		Currency:  tx.Currency,
		Method:    name,
		Reference: firstNonEmpty(tx.SessionID, tx.TransactionID),
		PaidAt:    p.now(),
	}
	if err := p.payments.Register(ctx, &pay, nil); err != nil {
		if errors.Is(err, repository.ErrInvoicePaid) {
			log.Warn("callback for an invoice that is already paid")
			return tx, nil
		}
		return tx, apperr.Internal(err)
	}
	return tx, nil
}

func enableParam(name string) string {
	if name == model.GatewayOrange {
		return ParamEnableOrangeMoney
	}
	return ParamEnableWave
}

// upstream keeps the provider's message when it sent one.
func upstream(err error) error {
	var perr *gateway.Error
	if errors.As(err, &perr) && perr.Message != "" {
		return apperr.Upstream(perr.Message, err)
	}
	return apperr.Upstream("payment provider unavailable", err)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
