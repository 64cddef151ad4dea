package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/property-rental-api/internal/apperr"
	"github.com/iliyamo/property-rental-api/internal/gateway"
	"github.com/iliyamo/property-rental-api/internal/model"
	"github.com/iliyamo/property-rental-api/internal/testutil"
)

type fakeProvider struct {
	name    string
	calls   atomic.Int32
	err     error
	release chan struct{}
	after   func()
	last    gateway.CheckoutRequest
	mu      sync.Mutex
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Checkout(_ context.Context, req gateway.CheckoutRequest) (gateway.Session, error) {
	p.calls.Add(1)
	p.mu.Lock()
	p.last = req
	p.mu.Unlock()
	if p.release != nil {
		<-p.release
	}
	if p.err != nil {
		return gateway.Session{}, p.err
	}
	if p.after != nil {
		p.after()
	}
	return gateway.Session{
		SessionID:  "sess-" + req.TransactionID,
		PaymentURL: "https://checkout.example/" + req.TransactionID,
		Status:     "pending",
		Extra:      map[string]string{"deep_link": "om://pay"},
		Raw:        []byte(`{"ok":true}`),
	}, nil
}

type paymentFixture struct {
	init     *PaymentInitiator
	invoices *testutil.Invoices
	gateways *testutil.Gateways
	payments *testutil.Payments
	events   *testutil.Publisher
	wave     *fakeProvider
	orange   *fakeProvider
}

func newPaymentFixture(t *testing.T, params map[string]string, contact model.Contact) *paymentFixture {
	t.Helper()
	invoices := testutil.NewInvoices(model.Invoice{
		ID: 10, Number: "INV/2025/00010", MoveType: model.InvoiceCustomer, State: model.InvoicePosted,
		PaymentState: model.PaymentNotPaid, ContactID: contact.ID, AmountTotal: decimal.NewFromInt(150000),
		AmountResidual: decimal.NewFromInt(150000), Currency: "XOF", TransactionID: "tx-1",
	})
	settings := testutil.NewSettings(params, activeFront())
	f := &paymentFixture{
		invoices: invoices,
		gateways: testutil.NewGateways(),
		payments: testutil.NewPayments(invoices),
		events:   &testutil.Publisher{On: true},
		wave:     &fakeProvider{name: model.GatewayWave},
		orange:   &fakeProvider{name: model.GatewayOrange},
	}
	f.init = NewPaymentInitiator(PaymentDeps{
		Invoices: invoices,
		Contacts: testutil.NewContacts(contact),
		Gateways: f.gateways,
		Payments: f.payments,
		Links:    NewLinkGenerator(invoices, settings),
		Params:   NewParams(settings),
		Events:   f.events,
	}, []gateway.Provider{f.wave, f.orange}, testConfig().Phone, zap.NewNop())
	return f
}

func tenant() model.Contact {
	return model.Contact{ID: 3, Name: "Awa", Email: "awa@example.sn", Mobile: "77 123 45 67"}
}

func TestInitiateWave(t *testing.T) {
	f := newPaymentFixture(t, nil, tenant())

	res, err := f.init.Initiate(context.Background(), "tx-1", "wave")
	require.NoError(t, err)
	assert.Equal(t, "wave", res.Gateway)
	assert.Equal(t, "https://checkout.example/tx-1", res.PaymentURL)
	assert.Equal(t, "INV-INV/2025/00010", res.Reference)
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(150000)))
	assert.False(t, res.Existing)

	req := f.wave.last
	assert.Equal(t, "https://pay.example.sn/facture?transaction=tx-1&status=success", req.SuccessURL)
	assert.Equal(t, "https://pay.example.sn/facture?transaction=tx-1&status=error", req.CancelURL)
	assert.Equal(t, "+221771234567", req.Phone)

	tx, err := f.gateways.Get(context.Background(), model.GatewayWave, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, model.TxPending, tx.Status)
	assert.Equal(t, "sess-tx-1", tx.SessionID)

	require.Len(t, f.events.Payments, 1)
	assert.Equal(t, "150000", f.events.Payments[0].Amount)
}

func TestInitiateIsIdempotent(t *testing.T) {
	f := newPaymentFixture(t, nil, tenant())
	ctx := context.Background()

	first, err := f.init.Initiate(ctx, "tx-1", "om")
	require.NoError(t, err)
	assert.Equal(t, "orange", first.Gateway)

	again, err := f.init.Initiate(ctx, "tx-1", "orange_money")
	require.NoError(t, err)
	assert.True(t, again.Existing)
	again.Existing = false
	assert.Equal(t, first, again)
	assert.Equal(t, "om://pay", again.Extra["deep_link"])
	assert.Equal(t, int32(1), f.orange.calls.Load())
	assert.Equal(t, 1, f.gateways.Len())

	// the other gateway is a separate transaction
	_, err = f.init.Initiate(ctx, "tx-1", "wave")
	require.NoError(t, err)
	assert.Equal(t, 2, f.gateways.Len())
}

func TestConcurrentInitiateCallsProviderOnce(t *testing.T) {
	f := newPaymentFixture(t, nil, tenant())
	f.wave.release = make(chan struct{})
	ctx := context.Background()

	const n = 5
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := f.init.Initiate(ctx, "tx-1", "wave")
			errs <- err
		}()
	}
	for i := 0; i < n-1; i++ {
		assert.ErrorIs(t, <-errs, ErrPaymentInProgress)
	}
	close(f.wave.release)
	assert.NoError(t, <-errs)
	assert.Equal(t, int32(1), f.wave.calls.Load())

	res, err := f.init.Initiate(ctx, "tx-1", "wave")
	require.NoError(t, err)
	assert.True(t, res.Existing)
}

func TestInitiateReleasesOnProviderFailure(t *testing.T) {
	f := newPaymentFixture(t, nil, tenant())
	f.wave.err = &gateway.Error{Provider: "wave", Status: 400, Message: "amount too small"}
	ctx := context.Background()

	_, err := f.init.Initiate(ctx, "tx-1", "wave")
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
	assert.Equal(t, "amount too small", apperr.As(err).Message)
	assert.Equal(t, 0, f.gateways.Len())
	assert.Empty(t, f.events.Payments)

	f.wave.err = nil
	_, err = f.init.Initiate(ctx, "tx-1", "wave")
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.wave.calls.Load())
}

func TestInitiateSurvivesCancelledRequest(t *testing.T) {
	f := newPaymentFixture(t, nil, tenant())
	ctx, cancel := context.WithCancel(context.Background())
	f.wave.after = cancel

	first, err := f.init.Initiate(ctx, "tx-1", "wave")
	require.NoError(t, err)

	tx, err := f.gateways.Get(context.Background(), model.GatewayWave, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, model.TxPending, tx.Status)

	for i := 0; i < 3; i++ {
		again, err := f.init.Initiate(context.Background(), "tx-1", "wave")
		require.NoError(t, err)
		assert.True(t, again.Existing)
		assert.Equal(t, first.PaymentURL, again.PaymentURL)
	}
	assert.Equal(t, int32(1), f.wave.calls.Load())
}

func TestInitiateTakesOverStaleReservation(t *testing.T) {
	f := newPaymentFixture(t, nil, tenant())
	ctx := context.Background()
	abandoned := &model.GatewayTransaction{Gateway: model.GatewayWave, TransactionID: "tx-1", InvoiceID: 10, ContactID: 3}
	_, err := f.gateways.Reserve(ctx, abandoned, DefaultReservationTTL)
	require.NoError(t, err)

	_, err = f.init.Initiate(ctx, "tx-1", "wave")
	assert.ErrorIs(t, err, ErrPaymentInProgress)
	assert.Equal(t, int32(0), f.wave.calls.Load())

	f.gateways.Backdate(model.GatewayWave, "tx-1", DefaultReservationTTL+time.Second)
	res, err := f.init.Initiate(ctx, "tx-1", "wave")
	require.NoError(t, err)
	assert.False(t, res.Existing)
	assert.Equal(t, "https://checkout.example/tx-1", res.PaymentURL)
	assert.Equal(t, int32(1), f.wave.calls.Load())
	assert.Equal(t, 1, f.gateways.Len())
}

func TestInitiateAfterFailedCallbackStartsOver(t *testing.T) {
	f := newPaymentFixture(t, nil, tenant())
	ctx := context.Background()
	_, err := f.init.Initiate(ctx, "tx-1", "wave")
	require.NoError(t, err)
	_, err = f.init.Settle(ctx, "wave", gateway.Callback{Reference: "sess-tx-1", Status: model.TxFailed})
	require.NoError(t, err)

	res, err := f.init.Initiate(ctx, "tx-1", "wave")
	require.NoError(t, err)
	assert.False(t, res.Existing)
	assert.Equal(t, int32(2), f.wave.calls.Load())

	tx, err := f.gateways.Get(ctx, model.GatewayWave, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, model.TxPending, tx.Status)
	assert.Equal(t, 1, f.gateways.Len())
}

func TestInitiateRejections(t *testing.T) {
	ctx := context.Background()

	f := newPaymentFixture(t, nil, tenant())
	_, err := f.init.Initiate(ctx, "tx-1", "stripe")
	assert.ErrorIs(t, err, ErrUnsupportedGateway)
	_, err = f.init.Initiate(ctx, "nope", "wave")
	assert.ErrorIs(t, err, ErrInvoiceNotFound)

	noPhone := tenant()
	noPhone.Mobile = ""
	f = newPaymentFixture(t, nil, noPhone)
	_, err = f.init.Initiate(ctx, "tx-1", "om")
	assert.ErrorIs(t, err, ErrMissingPhone)
	_, err = f.init.Initiate(ctx, "tx-1", "wave")
	assert.NoError(t, err)

	f = newPaymentFixture(t, map[string]string{ParamEnableWave: "0"}, tenant())
	_, err = f.init.Initiate(ctx, "tx-1", "wave")
	assert.ErrorIs(t, err, ErrGatewayDisabled)
	assert.Equal(t, int32(0), f.wave.calls.Load())
}

func TestInitiateRejectsPaidInvoice(t *testing.T) {
	f := newPaymentFixture(t, nil, tenant())
	ctx := context.Background()
	require.NoError(t, f.payments.Register(ctx, &model.Payment{InvoiceID: 10, Amount: decimal.NewFromInt(150000)}, nil))

	_, err := f.init.Initiate(ctx, "tx-1", "wave")
	assert.ErrorIs(t, err, ErrInvoicePaid)
	assert.Equal(t, int32(0), f.wave.calls.Load())
}

func TestSettleRegistersPaymentOnce(t *testing.T) {
	f := newPaymentFixture(t, nil, tenant())
	ctx := context.Background()
	_, err := f.init.Initiate(ctx, "tx-1", "wave")
	require.NoError(t, err)

	cb := gateway.Callback{Reference: "sess-tx-1", Status: model.TxSucceeded}
	tx, err := f.init.Settle(ctx, "wave", cb)
	require.NoError(t, err)
	assert.Equal(t, model.TxSucceeded, tx.Status)

	_, err = f.init.Settle(ctx, "wave", cb)
	require.NoError(t, err)

	pays, err := f.payments.ListByInvoice(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pays, 1)
	assert.Equal(t, model.GatewayWave, pays[0].Method)
	assert.Equal(t, "sess-tx-1", pays[0].Reference)
	assert.Equal(t, model.PaymentPaid, f.invoices.Peek(10).PaymentState)
}

func TestSettleFailureAndUnknown(t *testing.T) {
	f := newPaymentFixture(t, nil, tenant())
	ctx := context.Background()
	_, err := f.init.Initiate(ctx, "tx-1", "om")
	require.NoError(t, err)

	tx, err := f.init.Settle(ctx, "orange", gateway.Callback{Reference: "tx-1", Status: model.TxFailed})
	require.NoError(t, err)
	assert.Equal(t, model.TxFailed, tx.Status)
	assert.Equal(t, model.PaymentNotPaid, f.invoices.Peek(10).PaymentState)

	_, err = f.init.Settle(ctx, "wave", gateway.Callback{Reference: "tx-1", Status: model.TxSucceeded})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = f.init.Settle(ctx, "paypal", gateway.Callback{Reference: "tx-1"})
	assert.True(t, errors.Is(err, ErrUnsupportedGateway))
}
