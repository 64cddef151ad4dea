package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/property-rental-api/internal/apperr"
	"github.com/iliyamo/property-rental-api/internal/model"
	"github.com/iliyamo/property-rental-api/internal/repository"
)

// Send channels accepted by SendInvoice.
const (
	SendEmail = "email"
	SendSMS   = "sms"
	SendAll   = "all"
)

var ErrInvalidChannel = apperr.Validation("invalid_channel", "channel must be email, sms or all")

// ReminderRun summarises one pass of the overdue-invoice job.
type ReminderRun struct {
	Disabled bool `json:"disabled"`
	Selected int  `json:"selected"`
	Reminded int  `json:"reminded"`
	Skipped  int  `json:"skipped"` // reached rental.max_reminders
	Failed   int  `json:"failed"`
}

// Dispatcher sends invoice reminders over SMS and email and records every
// attempt in the reminder history.
type Dispatcher struct {
	invoices  InvoiceStore
	contacts  ContactStore
	reminders ReminderStore
	settings  SettingsStore
	links     *LinkGenerator
	params    *Params
	sms       SMSSender
	email     EmailSender
	log       *zap.Logger
	now       func() time.Time
}

// DispatcherDeps groups a Dispatcher's collaborators.
type DispatcherDeps struct {
	Invoices  InvoiceStore
	Contacts  ContactStore
	Reminders ReminderStore
	Settings  SettingsStore
	Links     *LinkGenerator
	Params    *Params
	SMS       SMSSender
	Email     EmailSender
}

func NewDispatcher(d DispatcherDeps, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		invoices:  d.Invoices,
		contacts:  d.Contacts,
		reminders: d.Reminders,
		settings:  d.Settings,
		links:     d.Links,
		params:    d.Params,
		sms:       d.SMS,
		email:     d.Email,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type message struct {
	subject string
	body    string
}

// SendReminder texts and mails one reminder for inv. Each channel is tried
// independently and logged whatever the outcome; last_reminder_date is
// stamped afterwards.
func (d *Dispatcher) SendReminder(ctx context.Context, inv model.Invoice, automatic bool) ([]model.ReminderHistory, error) {
	c, err := d.contact(ctx, inv.ContactID)
	if err != nil {
		return nil, err
	}
	link := d.link(ctx, &inv)
	msg := reminderMessage(c, inv, link)

	attempts := d.deliver(ctx, inv, c, msg, SendAll, automatic)
	if err := d.invoices.StampReminder(ctx, inv.ID, d.now()); err != nil {
		return attempts, apperr.Internal(err)
	}
	return attempts, nil
}

// SendInvoice sends the invoice and its payment link on demand.
func (d *Dispatcher) SendInvoice(ctx context.Context, invoiceID uint64, channel string) ([]model.ReminderHistory, error) {
	channel = strings.ToLower(strings.TrimSpace(channel))
	if channel == "" {
		channel = SendAll
	}
	if channel != SendEmail && channel != SendSMS && channel != SendAll {
		return nil, ErrInvalidChannel
	}
	inv, err := d.invoices.Get(ctx, invoiceID)
	if errors.Is(err, repository.ErrInvoiceNotFound) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if inv.IsCustomerInvoice() {
		if _, err := d.links.EnsureLinks(ctx, &inv); err != nil {
			return nil, err
		}
	}
	c, err := d.contact(ctx, inv.ContactID)
	if err != nil {
		return nil, err
	}
	return d.deliver(ctx, inv, c, invoiceMessage(c, inv), channel, false), nil
}

// RunReminders reminds every overdue invoice once per
// rental.reminder_frequency_days when the active front config enables
// automatic reminders.
func (d *Dispatcher) RunReminders(ctx context.Context, today time.Time) (ReminderRun, error) {
	var run ReminderRun
	fc, err := d.settings.ActiveFrontConfig(ctx)
	if errors.Is(err, repository.ErrFrontConfigNotFound) || (err == nil && !fc.AutoSendReminders) {
		run.Disabled = true
		return run, nil
	}
	if err != nil {
		return run, apperr.Internal(err)
	}

	freq := d.params.Int(ctx, ParamReminderFrequencyDays, 1)
	if freq < 1 {
		freq = 1
	}
	maxReminders := d.params.Int(ctx, ParamMaxReminders, 0)
	day := truncateDay(today)
	remindedBefore := day.AddDate(0, 0, -(freq - 1))

	due, err := d.invoices.ListOverdue(ctx, day, remindedBefore)
	if err != nil {
		return run, apperr.Internal(err)
	}
	run.Selected = len(due)
	for _, inv := range due {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		if maxReminders > 0 {
			n, err := d.reminders.CountAutomaticDays(ctx, inv.ID)
			if err != nil {
				return run, apperr.Internal(err)
			}
			if n >= maxReminders {
				run.Skipped++
				continue
			}
		}
		if _, err := d.SendReminder(ctx, inv, true); err != nil {
			run.Failed++
			d.log.Warn("reminder failed", zap.Uint64("invoice_id", inv.ID), zap.Error(err))
			continue
		}
		run.Reminded++
	}
	d.log.Info("reminder run finished",
		zap.Int("selected", run.Selected), zap.Int("reminded", run.Reminded),
		zap.Int("skipped", run.Skipped), zap.Int("failed", run.Failed))
	return run, nil
}

// DeliverOTP sends a verification code. OTP messages are not recorded in
// the reminder history.
func (d *Dispatcher) DeliverOTP(ctx context.Context, c model.Contact, code string) (smsSent, emailSent bool) {
	text := fmt.Sprintf("Your verification code is %s. It expires in a few minutes.", code)
	if to := c.SMSNumber(); to != "" && d.sms != nil {
		if err := d.sms.SendSMS(ctx, to, text); err != nil {
			d.log.Warn("otp sms failed", zap.Uint64("contact_id", c.ID), zap.Error(err))
		} else {
			smsSent = true
		}
	}
	if c.Email != "" && d.email != nil {
		if err := d.email.SendEmail(ctx, c.Email, "Your verification code", text); err != nil {
			d.log.Warn("otp email failed", zap.Uint64("contact_id", c.ID), zap.Error(err))
		} else {
			emailSent = true
		}
	}
	return smsSent, emailSent
}

func (d *Dispatcher) deliver(ctx context.Context, inv model.Invoice, c model.Contact, msg message, channel string, automatic bool) []model.ReminderHistory {
	var out []model.ReminderHistory
	if channel != SendEmail && d.params.Bool(ctx, ParamSendSMS, true) {
		if to := c.SMSNumber(); to != "" {
			var err error
			if d.sms == nil {
				err = errChannel
			} else {
				err = d.sms.SendSMS(ctx, to, msg.body)
			}
			out = append(out, d.record(ctx, inv.ID, model.ChannelSMS, to, msg.body, automatic, err))
		}
	}
	if channel != SendSMS && d.params.Bool(ctx, ParamSendEmail, true) {
		if c.Email != "" {
			var err error
			if d.email == nil {
				err = errChannel
			} else {
				err = d.email.SendEmail(ctx, c.Email, msg.subject, msg.body)
			}
			out = append(out, d.record(ctx, inv.ID, model.ChannelEmail, c.Email, msg.subject, automatic, err))
		}
	}
	return out
}

var errChannel = errors.New("channel not configured")

func (d *Dispatcher) record(ctx context.Context, invoiceID uint64, channel, to, content string, automatic bool, sendErr error) model.ReminderHistory {
	h := model.ReminderHistory{
		InvoiceID:      invoiceID,
		Channel:        channel,
		Recipient:      to,
		Status:         model.ReminderSent,
		MessageContent: content,
		IsAutomatic:    automatic,
		SentAt:         d.now(),
	}
	if sendErr != nil {
		h.Status = model.ReminderFailed
		h.ErrorMessage = sendErr.Error()
		d.log.Warn("notification failed",
			zap.Uint64("invoice_id", invoiceID), zap.String("channel", channel), zap.Error(sendErr))
	}
	if err := d.reminders.Append(ctx, &h); err != nil {
		d.log.Error("append reminder history failed", zap.Uint64("invoice_id", invoiceID), zap.Error(err))
	}
	return h
}

func (d *Dispatcher) contact(ctx context.Context, id uint64) (model.Contact, error) {
	c, err := d.contacts.GetByID(ctx, id)
	if errors.Is(err, repository.ErrContactNotFound) {
		return c, apperr.NotFound("contact_not_found", "contact not found")
	}
	if err != nil {
		return c, apperr.Internal(err)
	}
	return c, nil
}

// link refreshes the invoice links; when the front is not configured the
// stored link is used as is.
func (d *Dispatcher) link(ctx context.Context, inv *model.Invoice) string {
	if _, err := d.links.EnsureLinks(ctx, inv); err != nil {
		d.log.Warn("payment links not refreshed", zap.Uint64("invoice_id", inv.ID), zap.Error(err))
	}
	return inv.PaymentLink
}

func reminderMessage(c model.Contact, inv model.Invoice, link string) message {
	property := inv.PropertyName
	if property == "" {
		property = "not specified"
	}
	body := fmt.Sprintf("Hello %s,\nYou still owe %s on invoice %s.\nProperty: %s\nPayment link: %s",
		c.Name, formatMoney(inv.AmountDue(), inv.Currency), inv.DisplayRef(), property, link)
	return message{subject: "Payment reminder: invoice " + inv.DisplayRef(), body: body}
}

func invoiceMessage(c model.Contact, inv model.Invoice) message {
	body := fmt.Sprintf("Hello %s,\nYour invoice %s for %s is available.\nPay online: %s",
		c.Name, inv.DisplayRef(), formatMoney(inv.AmountDue(), inv.Currency), inv.PaymentLink)
	return message{subject: "Invoice " + inv.DisplayRef(), body: body}
}

func formatMoney(amount decimal.Decimal, currency string) string {
	switch strings.ToUpper(currency) {
	case "XOF", "XAF", "GNF":
		return amount.Round(0).StringFixed(0) + " " + currency
	default:
		return amount.StringFixed(2) + " " + currency
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
