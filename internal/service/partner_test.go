package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/property-rental-api/internal/model"
	"github.com/iliyamo/property-rental-api/internal/testutil"
	"github.com/iliyamo/property-rental-api/internal/utils"
)

type partnerFixture struct {
	svc      *PartnerService
	contacts *testutil.Contacts
	sms      *testutil.SMS
}

func newPartnerFixture(invoices ...model.Invoice) *partnerFixture {
	d := newDispatchFixture(nil, invoices...)
	contacts := testutil.NewContacts(tenant())
	d.d.contacts = contacts
	props := testutil.NewProperties(model.Property{ID: 20, Name: "Apt 2B"})
	cs := testutil.NewContracts(model.Contract{ID: 1, TenantID: 3, PropertyID: 20, State: model.ContractActive})
	props.Contracts = cs
	svc := NewPartnerService(PartnerDeps{
		Contacts:   contacts,
		Contracts:  cs,
		Properties: props,
		Invoices:   d.invoices,
		Schedules:  testutil.NewSchedules(),
		Dispatcher: d.d,
	}, testConfig(), zap.NewNop())
	return &partnerFixture{svc: svc, contacts: contacts, sms: d.sms}
}

func TestSignupAndVerifyOTP(t *testing.T) {
	f := newPartnerFixture()
	ctx := context.Background()

	c, err := f.svc.Signup(ctx, SignupInput{Name: "Moussa", Email: "moussa@example.sn", Password: "pw", Phone: "78 000 00 01"})
	require.NoError(t, err)
	assert.False(t, c.IsVerified)
	assert.True(t, utils.VerifyPassword(f.contacts.Peek(c.ID).Password, "pw"))

	code := f.contacts.Peek(c.ID).OTPCode
	require.Len(t, code, 4)
	require.Len(t, f.sms.Sent, 1)
	assert.Contains(t, f.sms.Sent[0].Body, code)

	_, err = f.svc.VerifyOTP(ctx, "moussa@example.sn", "12345")
	assert.ErrorIs(t, err, ErrInvalidOTP)

	c, err = f.svc.VerifyOTP(ctx, "moussa@example.sn", code)
	require.NoError(t, err)
	assert.True(t, c.IsVerified)
	assert.True(t, f.contacts.Peek(c.ID).IsVerified)
	assert.Empty(t, f.contacts.Peek(c.ID).OTPCode)

	_, err = f.svc.Signup(ctx, SignupInput{Name: "X", Email: "moussa@example.sn", Password: "pw"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestVerifyOTPPaddingAndExpiry(t *testing.T) {
	f := newPartnerFixture()
	ctx := context.Background()
	require.NoError(t, f.contacts.SetOTP(ctx, 3, "0042", time.Now().UTC().Add(time.Minute)))

	f.svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Minute) }
	_, err := f.svc.VerifyOTP(ctx, "awa@example.sn", "42")
	assert.ErrorIs(t, err, ErrInvalidOTP)

	f.svc.now = func() time.Time { return time.Now().UTC() }
	c, err := f.svc.VerifyOTP(ctx, "awa@example.sn", "42")
	require.NoError(t, err)
	assert.True(t, c.IsVerified)
}

func TestNormalizeOTP(t *testing.T) {
	for in, want := range map[string]string{"7": "0007", " 123 ": "0123", "0420": "0420"} {
		got, ok := NormalizeOTP(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	for _, bad := range []string{"", "12a", "12345"} {
		_, ok := NormalizeOTP(bad)
		assert.False(t, ok, bad)
	}
}

func TestInvoiceOTPMasksPhone(t *testing.T) {
	inv := overdueInvoice(1, day(2025, 3, 1))
	inv.TransactionID = "tx-9"
	f := newPartnerFixture(inv)
	ctx := context.Background()

	masked, err := f.svc.SendInvoiceOTP(ctx, "tx-9")
	require.NoError(t, err)
	assert.Equal(t, "77****67", masked)

	code := f.contacts.Peek(3).OTPCode
	c, err := f.svc.VerifyInvoiceOTP(ctx, "tx-9", code)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), c.ID)

	_, err = f.svc.SendInvoiceOTP(ctx, "unknown")
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestUpdateAndReenroll(t *testing.T) {
	f := newPartnerFixture()
	ctx := context.Background()
	require.NoError(t, f.contacts.ConfirmOTP(ctx, 3))

	city, pw := "Thiès", "new-pass"
	c, err := f.svc.Update(ctx, 3, ProfileUpdate{City: &city, Password: &pw})
	require.NoError(t, err)
	assert.Equal(t, "Thiès", c.City)
	assert.True(t, utils.VerifyPassword(f.contacts.Peek(3).Password, "new-pass"))
	assert.True(t, f.contacts.Peek(3).IsVerified)

	c, err = f.svc.Reenroll(ctx, "awa@example.sn", ProfileUpdate{})
	require.NoError(t, err)
	assert.False(t, c.IsVerified)
	assert.False(t, f.contacts.Peek(3).IsVerified)
	assert.NotEmpty(t, f.contacts.Peek(3).OTPCode)
}

func TestSummary(t *testing.T) {
	paid := overdueInvoice(2, day(2025, 2, 1))
	paid.PaymentState = model.PaymentPaid
	paid.AmountResidual = decimal.Zero
	f := newPartnerFixture(overdueInvoice(1, day(2025, 3, 1)), paid)

	sum, err := f.svc.Summary(context.Background(), tenant())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.ActiveContracts)
	assert.Equal(t, 1, sum.TotalContracts)
	assert.Equal(t, 1, sum.UnpaidCount)
	assert.True(t, sum.UnpaidTotal.Equal(decimal.NewFromInt(75000)))
	require.Len(t, sum.CurrentProperties, 1)
	assert.Equal(t, "Apt 2B", sum.CurrentProperties[0].Name)
	assert.Len(t, sum.LastInvoices, 2)
}
