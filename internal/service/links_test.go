package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/property-rental-api/internal/apperr"
	"github.com/iliyamo/property-rental-api/internal/model"
	"github.com/iliyamo/property-rental-api/internal/testutil"
)

func TestBuildLinks(t *testing.T) {
	l := BuildLinks("https://pay.example.sn", "facture", "abc-123")
	assert.Equal(t, "https://pay.example.sn/facture?transaction=abc-123", l.Generic)
	assert.Equal(t, l.Generic+"&type=wave", l.Wave)
	assert.Equal(t, l.Generic+"&type=om", l.OM)
	assert.Equal(t, l, BuildLinks("https://pay.example.sn", "facture", "abc-123"))
}

func TestFrontResolution(t *testing.T) {
	ctx := context.Background()

	g := NewLinkGenerator(testutil.NewInvoices(), testutil.NewSettings(nil, activeFront()))
	base, path, err := g.Front(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.sn", base)
	assert.Equal(t, "facture", path)

	g = NewLinkGenerator(testutil.NewInvoices(), testutil.NewSettings(map[string]string{
		ParamFrontendPaymentURL: "https://front.example.sn/",
	}, nil))
	base, path, err = g.Front(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://front.example.sn", base)
	assert.Equal(t, defaultPaymentPath, path)

	g = NewLinkGenerator(testutil.NewInvoices(), testutil.NewSettings(nil, nil))
	_, _, err = g.Front(ctx)
	assert.ErrorIs(t, err, ErrNoPaymentFront)
	assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
}

func TestEnsureLinksAssignsOnce(t *testing.T) {
	invoices := testutil.NewInvoices(model.Invoice{
		ID: 1, MoveType: model.InvoiceCustomer, State: model.InvoicePosted, AmountTotal: decimal.NewFromInt(1000),
	})
	settings := testutil.NewSettings(nil, activeFront())
	g := NewLinkGenerator(invoices, settings)
	ctx := context.Background()

	inv := invoices.Peek(1)
	first, err := g.EnsureLinks(ctx, &inv)
	require.NoError(t, err)
	require.NotEmpty(t, inv.TransactionID)
	assert.Contains(t, first.Generic, "transaction="+inv.TransactionID)
	assert.Equal(t, first.Generic, invoices.Peek(1).PaymentLink)

	// a front change rebuilds links but keeps the transaction id
	settings.Front = &model.FrontConfig{BaseURL: "https://new.example.sn", PaymentPath: "pay", Active: true}
	stored := invoices.Peek(1)
	second, err := g.EnsureLinks(ctx, &stored)
	require.NoError(t, err)
	assert.Equal(t, inv.TransactionID, stored.TransactionID)
	assert.Equal(t, "https://new.example.sn/pay?transaction="+inv.TransactionID, second.Generic)
	assert.Equal(t, second.OM, invoices.Peek(1).PaymentLinkOM)
}

func TestEnsureLinksUsesConcurrentAssignment(t *testing.T) {
	invoices := testutil.NewInvoices(model.Invoice{ID: 1, MoveType: model.InvoiceCustomer, TransactionID: "winner"})
	g := NewLinkGenerator(invoices, testutil.NewSettings(nil, activeFront()))

	// caller holds a stale copy without the id
	stale := model.Invoice{ID: 1, MoveType: model.InvoiceCustomer}
	_, err := g.EnsureLinks(context.Background(), &stale)
	require.NoError(t, err)
	assert.Equal(t, "winner", stale.TransactionID)
}

func TestEnsureLinksSkipsRefunds(t *testing.T) {
	invoices := testutil.NewInvoices(model.Invoice{ID: 1, MoveType: model.InvoiceRefund})
	g := NewLinkGenerator(invoices, testutil.NewSettings(nil, nil))

	inv := invoices.Peek(1)
	l, err := g.EnsureLinks(context.Background(), &inv)
	require.NoError(t, err)
	assert.Empty(t, l.Generic)
	assert.Empty(t, invoices.Peek(1).TransactionID)
}
