package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/property-rental-api/internal/apperr"
	"github.com/iliyamo/property-rental-api/internal/model"
	"github.com/iliyamo/property-rental-api/internal/testutil"
)

type invoiceFixture struct {
	svc      *InvoiceService
	invoices *testutil.Invoices
	events   *testutil.Publisher
	email    *testutil.Email
}

func newInvoiceFixture(invoices ...model.Invoice) *invoiceFixture {
	d := newDispatchFixture(nil, invoices...)
	f := &invoiceFixture{invoices: d.invoices, events: &testutil.Publisher{}, email: d.email}
	f.svc = NewInvoiceService(InvoiceDeps{
		Invoices:   d.invoices,
		Payments:   testutil.NewPayments(d.invoices),
		Reminders:  d.reminders,
		Links:      NewLinkGenerator(d.invoices, d.settings),
		Dispatcher: d.d,
		Events:     f.events,
	}, zap.NewNop())
	return f
}

func TestMarkPaidPartialThenFull(t *testing.T) {
	f := newInvoiceFixture(overdueInvoice(1, day(2025, 3, 1)))
	ctx := context.Background()

	part := decimal.NewFromInt(25000)
	inv, pay, err := f.svc.MarkPaid(ctx, 1, &part, "", "cash-1")
	require.NoError(t, err)
	assert.Equal(t, "manual", pay.Method)
	assert.Equal(t, model.PaymentPartial, inv.PaymentState)
	assert.True(t, inv.AmountResidual.Equal(decimal.NewFromInt(50000)))

	inv, pay, err = f.svc.MarkPaid(ctx, 1, nil, "bank", "")
	require.NoError(t, err)
	assert.True(t, pay.Amount.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, model.PaymentPaid, inv.PaymentState)

	_, _, err = f.svc.MarkPaid(ctx, 1, nil, "", "")
	assert.ErrorIs(t, err, ErrInvoicePaid)

	detail, err := f.svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, detail.Payments, 2)
}

func TestMarkPaidValidation(t *testing.T) {
	draft := overdueInvoice(2, day(2025, 3, 1))
	draft.State = model.InvoiceDraft
	f := newInvoiceFixture(overdueInvoice(1, day(2025, 3, 1)), draft)
	ctx := context.Background()

	zero := decimal.Zero
	_, _, err := f.svc.MarkPaid(ctx, 1, &zero, "", "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, _, err = f.svc.MarkPaid(ctx, 2, nil, "", "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, _, err = f.svc.MarkPaid(ctx, 9, nil, "", "")
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestSendQueuesWhenBrokerEnabled(t *testing.T) {
	f := newInvoiceFixture(overdueInvoice(1, day(2025, 3, 1)))
	ctx := context.Background()

	queued, attempts, err := f.svc.Send(ctx, 1, "email")
	require.NoError(t, err)
	assert.False(t, queued)
	assert.Len(t, attempts, 1)

	f.events.On = true
	queued, attempts, err = f.svc.Send(ctx, 1, "EMAIL")
	require.NoError(t, err)
	assert.True(t, queued)
	assert.Nil(t, attempts)
	require.Len(t, f.events.Notifications, 1)
	assert.Equal(t, "email", f.events.Notifications[0].Channel)

	f.events.Err = errors.New("broker down")
	queued, _, err = f.svc.Send(ctx, 1, "")
	require.NoError(t, err)
	assert.False(t, queued)
	assert.Len(t, f.email.Sent, 2)

	_, _, err = f.svc.Send(ctx, 1, "pigeon")
	assert.ErrorIs(t, err, ErrInvalidChannel)
}

func TestByTransactionAndLinks(t *testing.T) {
	f := newInvoiceFixture(overdueInvoice(1, day(2025, 3, 1)))
	ctx := context.Background()

	inv, err := f.svc.RegenerateLinks(ctx, 1)
	require.NoError(t, err)
	require.NotEmpty(t, inv.TransactionID)

	d, err := f.svc.ByTransaction(ctx, inv.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), d.Invoice.ID)
	d, err = f.svc.ByTransaction(ctx, inv.PaymentLink)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), d.Invoice.ID)

	_, err = f.svc.ByTransaction(ctx, " ")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = f.svc.ByTransaction(ctx, "missing")
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}
