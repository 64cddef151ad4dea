package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/property-rental-api/internal/apperr"
	"github.com/iliyamo/property-rental-api/internal/model"
	"github.com/iliyamo/property-rental-api/internal/repository"
)

var (
	ErrContractNotFound = apperr.NotFound("contract_not_found", "contract not found")
	ErrPropertyOccupied = apperr.Conflict("property_occupied", "property already has an active contract")
)

// BuildSchedule lays out a contract's installments. Periods of 1, 3, 6 or
// 12 months run from the start date until DurationMonths elapse, or until
// EndDate when no duration is set. Each installment is due on PaymentDay
// of its period's first month, clamped to the month length, and bills the
// monthly rent times the months it covers.
func BuildSchedule(c model.Contract) ([]model.ScheduleEntry, error) {
	step, ok := model.FrequencyMonths[c.PaymentFrequency]
	if !ok {
		return nil, apperr.Validation("invalid_frequency", fmt.Sprintf("unknown payment frequency %q", c.PaymentFrequency))
	}
	start := truncateDay(c.StartDate)

	var end time.Time
	switch {
	case c.DurationMonths > 0:
		end = addMonths(start, c.DurationMonths)
	case c.EndDate != nil:
		end = truncateDay(*c.EndDate).AddDate(0, 0, 1)
	default:
		return nil, apperr.Validation("invalid_contract", "contract needs a duration or an end date")
	}
	if !end.After(start) {
		return nil, apperr.Validation("invalid_contract", "contract ends before it starts")
	}

	payDay := c.PaymentDay
	if payDay < 1 || payDay > 31 {
		payDay = start.Day()
	}

	var out []model.ScheduleEntry
	for i := 0; ; i++ {
		ps := addMonths(start, i*step)
		if !ps.Before(end) {
			break
		}
		pe := addMonths(start, (i+1)*step)
		months := step
		if pe.After(end) {
			pe = end
			if c.DurationMonths > 0 {
				months = c.DurationMonths - i*step
			}
		}
		out = append(out, model.ScheduleEntry{
			ContractID:  c.ID,
			Sequence:    i + 1,
			DueDate:     dayInMonth(ps.Year(), ps.Month(), payDay),
			PeriodStart: ps,
			PeriodEnd:   pe.AddDate(0, 0, -1),
			Amount:      c.MonthlyRent.Mul(decimal.NewFromInt(int64(months))),
			State:       model.SchedulePending,
		})
	}
	return out, nil
}

// addMonths adds n months to t keeping the day of month where possible and
// clamping it to the target month's length (Jan 31 + 1 month = Feb 28).
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + n
	y += total / 12
	total %= 12
	if total < 0 {
		total += 12
		y--
	}
	return dayInMonth(y, time.Month(total+1), d)
}

func dayInMonth(y int, m time.Month, d int) time.Time {
	last := time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if d > last {
		d = last
	}
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ContractService drives the contract lifecycle and billing.
type ContractService struct {
	contracts ContractStore
	schedules ScheduleStore
	invoices  InvoiceStore
	links     *LinkGenerator
	currency  string
	log       *zap.Logger
	now       func() time.Time
}

func NewContractService(contracts ContractStore, schedules ScheduleStore, invoices InvoiceStore,
	links *LinkGenerator, currency string, log *zap.Logger) *ContractService {
	return &ContractService{
		contracts: contracts,
		schedules: schedules,
		invoices:  invoices,
		links:     links,
		currency:  currency,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *ContractService) get(ctx context.Context, id uint64) (model.Contract, error) {
	c, err := s.contracts.Get(ctx, id)
	if errors.Is(err, repository.ErrContractNotFound) {
		return c, ErrContractNotFound
	}
	if err != nil {
		return c, apperr.Internal(err)
	}
	return c, nil
}

func invalidState(c model.Contract, action string) error {
	return apperr.Validation("invalid_state", fmt.Sprintf("cannot %s a contract in state %s", action, c.State))
}

// Confirm activates a draft contract and generates its schedule when it
// has none yet.
func (s *ContractService) Confirm(ctx context.Context, id uint64) (model.Contract, error) {
	c, err := s.get(ctx, id)
	if err != nil {
		return c, err
	}
	if c.State != model.ContractDraft {
		return c, invalidState(c, "confirm")
	}
	entries, err := BuildSchedule(c)
	if err != nil {
		return c, err
	}
	switch err := s.contracts.Activate(ctx, id); {
	case errors.Is(err, repository.ErrConflict):
		return c, ErrPropertyOccupied
	case errors.Is(err, repository.ErrContractNotFound):
		return c, invalidState(c, "confirm")
	case err != nil:
		return c, apperr.Internal(err)
	}

	existing, err := s.schedules.ListByContract(ctx, id)
	if err != nil {
		return c, apperr.Internal(err)
	}
	if len(existing) == 0 {
		if err := s.schedules.ReplacePending(ctx, id, entries); err != nil {
			return c, apperr.Internal(err)
		}
	}
	s.log.Info("contract confirmed", zap.Uint64("contract_id", id), zap.Int("installments", len(entries)))
	return s.get(ctx, id)
}

// Terminate ends an active contract early.
func (s *ContractService) Terminate(ctx context.Context, id uint64) (model.Contract, error) {
	return s.close(ctx, id, model.ContractTerminated, "terminate")
}

// Expire closes an active contract that reached its end.
func (s *ContractService) Expire(ctx context.Context, id uint64) (model.Contract, error) {
	return s.close(ctx, id, model.ContractExpired, "expire")
}

func (s *ContractService) close(ctx context.Context, id uint64, state, action string) (model.Contract, error) {
	c, err := s.get(ctx, id)
	if err != nil {
		return c, err
	}
	if c.State != model.ContractActive {
		return c, invalidState(c, action)
	}
	if err := s.contracts.Close(ctx, id, state, s.now()); err != nil {
		if errors.Is(err, repository.ErrContractNotFound) {
			return c, invalidState(c, action)
		}
		return c, apperr.Internal(err)
	}
	s.log.Info("contract closed", zap.Uint64("contract_id", id), zap.String("state", state))
	return s.get(ctx, id)
}

// RegenerateSchedule rebuilds the unbilled part of the schedule. Entries
// already linked to an invoice are kept and their sequence numbers are not
// generated again.
func (s *ContractService) RegenerateSchedule(ctx context.Context, id uint64) ([]model.ScheduleEntry, error) {
	c, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.State == model.ContractTerminated || c.State == model.ContractExpired {
		return nil, invalidState(c, "regenerate the schedule of")
	}
	entries, err := BuildSchedule(c)
	if err != nil {
		return nil, err
	}
	existing, err := s.schedules.ListByContract(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	billed := make(map[int]bool)
	var lastBilled time.Time
	for _, e := range existing {
		if e.InvoiceID != nil || e.State != model.SchedulePending {
			billed[e.Sequence] = true
			if e.DueDate.After(lastBilled) {
				lastBilled = e.DueDate
			}
		}
	}
	fresh := entries[:0]
	for _, e := range entries {
		if billed[e.Sequence] || !e.DueDate.After(lastBilled) {
			continue
		}
		fresh = append(fresh, e)
	}
	if err := s.schedules.ReplacePending(ctx, id, fresh); err != nil {
		return nil, apperr.Internal(err)
	}
	return s.Schedule(ctx, id)
}

// Schedule lists a contract's installments.
func (s *ContractService) Schedule(ctx context.Context, id uint64) ([]model.ScheduleEntry, error) {
	out, err := s.schedules.ListByContract(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

// GenerateNextInvoice bills the earliest pending installment as a posted
// invoice with one line. It returns nil without error when nothing is
// left to bill.
func (s *ContractService) GenerateNextInvoice(ctx context.Context, id uint64) (*model.Invoice, error) {
	c, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.State != model.ContractActive {
		return nil, invalidState(c, "invoice")
	}
	entry, err := s.schedules.NextPending(ctx, id)
	if errors.Is(err, repository.ErrScheduleNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	currency := c.Currency
	if currency == "" {
		currency = s.currency
	}
	due := entry.DueDate
	contractID := c.ID
	inv := model.Invoice{
		MoveType:       model.InvoiceCustomer,
		State:          model.InvoicePosted,
		PaymentState:   model.PaymentNotPaid,
		ContactID:      c.TenantID,
		ContractID:     &contractID,
		PropertyName:   c.PropertyName,
		InvoiceDate:    truncateDay(s.now()),
		DueDate:        &due,
		AmountUntaxed:  entry.Amount,
		AmountTax:      decimal.Zero,
		AmountTotal:    entry.Amount,
		AmountResidual: entry.Amount,
		Currency:       currency,
		Reference:      fmt.Sprintf("%s/%d", c.Reference, entry.Sequence),
	}
	line := model.InvoiceLine{
		Description: fmt.Sprintf("Rent %s, %s to %s", c.PropertyName,
			entry.PeriodStart.Format(time.DateOnly), entry.PeriodEnd.Format(time.DateOnly)),
		Quantity:  decimal.NewFromInt(1),
		UnitPrice: entry.Amount,
		Subtotal:  entry.Amount,
	}
	if err := s.invoices.Create(ctx, &inv, []model.InvoiceLine{line}); err != nil {
		return nil, apperr.Internal(err)
	}
	if err := s.schedules.MarkInvoiced(ctx, entry.ID, inv.ID); err != nil {
		if errors.Is(err, repository.ErrScheduleNotFound) {
			return nil, apperr.Conflict("already_invoiced", "installment was invoiced concurrently")
		}
		return nil, apperr.Internal(err)
	}
	if _, err := s.links.EnsureLinks(ctx, &inv); err != nil {
		s.log.Warn("payment links not generated", zap.Uint64("invoice_id", inv.ID), zap.Error(err))
	}
	s.log.Info("invoice generated", zap.Uint64("contract_id", id), zap.Uint64("invoice_id", inv.ID),
		zap.String("number", inv.Number))
	return &inv, nil
}
