package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/property-rental-api/internal/model"
	"github.com/iliyamo/property-rental-api/internal/repository"
)

// Invoices is an in-memory InvoiceStore.
type Invoices struct {
	mu    sync.Mutex
	next  uint64
	rows  map[uint64]model.Invoice
	lines map[uint64][]model.InvoiceLine
}

func NewInvoices(seed ...model.Invoice) *Invoices {
	s := &Invoices{rows: map[uint64]model.Invoice{}, lines: map[uint64][]model.InvoiceLine{}}
	for _, inv := range seed {
		if inv.ID == 0 {
			s.next++
			inv.ID = s.next
		} else if inv.ID > s.next {
			s.next = inv.ID
		}
		s.rows[inv.ID] = inv
	}
	return s
}

// Peek returns the stored row for assertions.
func (s *Invoices) Peek(id uint64) model.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id]
}

func (s *Invoices) Get(_ context.Context, id uint64) (model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.rows[id]
	if !ok {
		return inv, repository.ErrInvoiceNotFound
	}
	return inv, nil
}

func (s *Invoices) GetByTransaction(_ context.Context, ref string) (model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.sorted() {
		if ref != "" && (inv.TransactionID == ref || inv.PaymentLink == ref) {
			return inv, nil
		}
	}
	return model.Invoice{}, repository.ErrInvoiceNotFound
}

func (s *Invoices) sorted() []model.Invoice {
	out := make([]model.Invoice, 0, len(s.rows))
	for _, inv := range s.rows {
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Invoices) List(_ context.Context, f repository.InvoiceFilter) ([]model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Invoice
	for _, inv := range s.sorted() {
		switch {
		case f.ContactID != 0 && inv.ContactID != f.ContactID:
			continue
		case f.ContractID != 0 && (inv.ContractID == nil || *inv.ContractID != f.ContractID):
			continue
		case f.PostedOnly && (inv.MoveType != model.InvoiceCustomer || inv.State != model.InvoicePosted):
			continue
		case f.UnpaidOnly && inv.PaymentState == model.PaymentPaid:
			continue
		}
		out = append(out, inv)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].InvoiceDate.After(out[j].InvoiceDate) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Invoices) Lines(_ context.Context, id uint64) ([]model.InvoiceLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.InvoiceLine(nil), s.lines[id]...), nil
}

func (s *Invoices) Create(_ context.Context, inv *model.Invoice, lines []model.InvoiceLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	inv.ID = s.next
	if inv.Number == "" {
		inv.Number = fmt.Sprintf("INV/%d/%05d", inv.InvoiceDate.Year(), inv.ID)
	}
	for i := range lines {
		lines[i].InvoiceID = inv.ID
		lines[i].ID = uint64(i + 1)
	}
	s.rows[inv.ID] = *inv
	s.lines[inv.ID] = append([]model.InvoiceLine(nil), lines...)
	return nil
}

func (s *Invoices) AssignTransaction(_ context.Context, id uint64, tx string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.rows[id]
	if !ok || (inv.TransactionID != "" && inv.TransactionID != tx) {
		return false, nil
	}
	inv.TransactionID = tx
	s.rows[id] = inv
	return true, nil
}

func (s *Invoices) SetLinks(_ context.Context, id uint64, generic, wave, om string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv := s.rows[id]
	inv.PaymentLink, inv.PaymentLinkWave, inv.PaymentLinkOM = generic, wave, om
	s.rows[id] = inv
	return nil
}

func (s *Invoices) ListOverdue(_ context.Context, today, remindedBefore time.Time) ([]model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Invoice
	for _, inv := range s.sorted() {
		if inv.MoveType != model.InvoiceCustomer || inv.State != model.InvoicePosted ||
			inv.PaymentState == model.PaymentPaid || !inv.AmountResidual.IsPositive() ||
			inv.DueDate == nil || !inv.DueDate.Before(today) {
			continue
		}
		if inv.LastReminderDate != nil && !inv.LastReminderDate.Before(remindedBefore) {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (s *Invoices) StampReminder(_ context.Context, id uint64, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv := s.rows[id]
	d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	inv.LastReminderDate = &d
	s.rows[id] = inv
	return nil
}

// Payments is an in-memory PaymentStore that updates Invoices the way
// the SQL store does.
type Payments struct {
	mu       sync.Mutex
	invoices *Invoices
	rows     []model.Payment
}

func NewPayments(invoices *Invoices) *Payments { return &Payments{invoices: invoices} }

func (s *Payments) Register(_ context.Context, p *model.Payment, inv *model.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices.mu.Lock()
	defer s.invoices.mu.Unlock()
	cur, ok := s.invoices.rows[p.InvoiceID]
	if !ok {
		return repository.ErrInvoiceNotFound
	}
	if cur.PaymentState == model.PaymentPaid {
		return repository.ErrInvoicePaid
	}
	residual := cur.AmountResidual
	if !residual.IsPositive() {
		residual = cur.AmountTotal
	}
	residual = decimal.Max(residual.Sub(p.Amount), decimal.Zero)
	cur.AmountResidual = residual
	cur.PaymentState = model.PaymentPartial
	if residual.IsZero() {
		cur.PaymentState = model.PaymentPaid
	}
	s.invoices.rows[p.InvoiceID] = cur
	p.ID = uint64(len(s.rows) + 1)
	p.InvoiceNumber = cur.Number
	s.rows = append(s.rows, *p)
	if inv != nil {
		inv.AmountResidual, inv.PaymentState = cur.AmountResidual, cur.PaymentState
	}
	return nil
}

func (s *Payments) ListByContact(_ context.Context, contactID uint64) ([]model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Payment
	for i := len(s.rows) - 1; i >= 0; i-- {
		if s.rows[i].ContactID == contactID {
			out = append(out, s.rows[i])
		}
	}
	return out, nil
}

func (s *Payments) ListByInvoice(_ context.Context, invoiceID uint64) ([]model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Payment
	for _, p := range s.rows {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	return out, nil
}

// Gateways is an in-memory GatewayStore with the same unique key as the
// table.
type Gateways struct {
	mu   sync.Mutex
	next uint64
	rows map[uint64]model.GatewayTransaction
}

func NewGateways() *Gateways { return &Gateways{rows: map[uint64]model.GatewayTransaction{}} }

// Len reports how many transactions are stored.
func (s *Gateways) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *Gateways) Reserve(_ context.Context, t *model.GatewayTransaction, stale time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for id, r := range s.rows {
		if r.Gateway != t.Gateway || r.TransactionID != t.TransactionID {
			continue
		}
		if r.Status != model.TxFailed && (r.Status != model.TxInitiating || !r.CreatedAt.Before(now.Add(-stale))) {
			return false, nil
		}
		t.ID = id
		break
	}
	if t.ID == 0 {
		s.next++
		t.ID = s.next
	}
	t.Status, t.CreatedAt = model.TxInitiating, now
	t.SessionID, t.PaymentURL, t.Extra, t.RawResponse = "", "", "", ""
	s.rows[t.ID] = *t
	return true, nil
}

// Backdate moves a transaction's creation time d into the past.
func (s *Gateways) Backdate(gateway, tx string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.rows {
		if r.Gateway == gateway && r.TransactionID == tx {
			r.CreatedAt = r.CreatedAt.Add(-d)
			s.rows[id] = r
		}
	}
}

func (s *Gateways) Get(_ context.Context, gateway, tx string) (model.GatewayTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.Gateway == gateway && r.TransactionID == tx {
			return r, nil
		}
	}
	return model.GatewayTransaction{}, repository.ErrTransactionNotFound
}

func (s *Gateways) FindByReference(_ context.Context, gateway, ref string) (model.GatewayTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.Gateway == gateway && (r.TransactionID == ref || (r.SessionID != "" && r.SessionID == ref)) {
			return r, nil
		}
	}
	return model.GatewayTransaction{}, repository.ErrTransactionNotFound
}

func (s *Gateways) MarkPending(ctx context.Context, id uint64, session, url, extra, raw string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok || r.Status != model.TxInitiating {
		return repository.ErrTransactionNotFound
	}
	r.Status, r.SessionID, r.PaymentURL, r.Extra, r.RawResponse = model.TxPending, session, url, extra, raw
	s.rows[id] = r
	return nil
}

func (s *Gateways) Release(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rows[id]; ok && r.Status == model.TxInitiating {
		delete(s.rows, id)
	}
	return nil
}

func (s *Gateways) Settle(_ context.Context, id uint64, status string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok || r.Status != model.TxPending {
		return false, nil
	}
	r.Status = status
	s.rows[id] = r
	return true, nil
}

// Reminders is an in-memory ReminderStore.
type Reminders struct {
	mu   sync.Mutex
	rows []model.ReminderHistory
}

func NewReminders() *Reminders { return &Reminders{} }

func (s *Reminders) Append(_ context.Context, h *model.ReminderHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h.ID = uint64(len(s.rows) + 1)
	s.rows = append(s.rows, *h)
	return nil
}

func (s *Reminders) CountAutomaticDays(_ context.Context, invoiceID uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	days := map[string]bool{}
	for _, h := range s.rows {
		if h.InvoiceID == invoiceID && h.IsAutomatic {
			days[h.SentAt.Format(time.DateOnly)] = true
		}
	}
	return len(days), nil
}

func (s *Reminders) ListByInvoice(_ context.Context, invoiceID uint64) ([]model.ReminderHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ReminderHistory
	for i := len(s.rows) - 1; i >= 0; i-- {
		if s.rows[i].InvoiceID == invoiceID {
			out = append(out, s.rows[i])
		}
	}
	return out, nil
}

// All returns every stored attempt in insertion order.
func (s *Reminders) All() []model.ReminderHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ReminderHistory(nil), s.rows...)
}
