package service

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/property-rental-api/internal/apperr"
	"github.com/iliyamo/property-rental-api/internal/model"
	"github.com/iliyamo/property-rental-api/internal/repository"
)

const defaultPaymentPath = "facture-magasin"

// ErrNoPaymentFront means neither an active front config nor the
// rental.frontend_payment_url parameter is set.
var ErrNoPaymentFront = apperr.Configuration("payment front-end URL is not configured")

// Links are the three payment URLs of an invoice.
type Links struct {
	Generic string
	Wave    string
	OM      string
}

// LinkGenerator assigns transaction ids and derives payment links.
type LinkGenerator struct {
	invoices InvoiceStore
	settings SettingsStore
}

func NewLinkGenerator(invoices InvoiceStore, settings SettingsStore) *LinkGenerator {
	return &LinkGenerator{invoices: invoices, settings: settings}
}

// Front resolves the payment page: the active front config first, then
// the rental.frontend_payment_url and rental.frontend_payment_path
// parameters.
func (g *LinkGenerator) Front(ctx context.Context) (base, path string, err error) {
	fc, err := g.settings.ActiveFrontConfig(ctx)
	switch {
	case err == nil && strings.TrimSpace(fc.BaseURL) != "":
		return strings.TrimRight(strings.TrimSpace(fc.BaseURL), "/"), pathOrDefault(fc.PaymentPath), nil
	case err != nil && !errors.Is(err, repository.ErrFrontConfigNotFound):
		return "", "", apperr.Internal(err)
	}

	base, perr := g.settings.Param(ctx, ParamFrontendPaymentURL)
	if perr != nil && !errors.Is(perr, repository.ErrParamNotFound) {
		return "", "", apperr.Internal(perr)
	}
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return "", "", ErrNoPaymentFront
	}
	p, _ := g.settings.Param(ctx, ParamFrontendPaymentPath)
	return base, pathOrDefault(p), nil
}

func pathOrDefault(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return defaultPaymentPath
	}
	return p
}

// BuildLinks is a pure function of its inputs.
func BuildLinks(base, path, txID string) Links {
	generic := base + "/" + path + "?transaction=" + url.QueryEscape(txID)
	return Links{
		Generic: generic,
		Wave:    generic + "&type=wave",
		OM:      generic + "&type=om",
	}
}

// EnsureLinks gives a customer invoice a transaction id when it has none
// and stores links derived from it and the current front configuration.
// An existing transaction id is never replaced. inv is updated in place.
// Other invoice types are left alone.
func (g *LinkGenerator) EnsureLinks(ctx context.Context, inv *model.Invoice) (Links, error) {
	if !inv.IsCustomerInvoice() {
		return Links{}, nil
	}
	base, path, err := g.Front(ctx)
	if err != nil {
		return Links{}, err
	}

	if inv.TransactionID == "" {
		txID := uuid.NewString()
		ok, err := g.invoices.AssignTransaction(ctx, inv.ID, txID)
		if err != nil {
			return Links{}, apperr.Internal(err)
		}
		if !ok {
			// assigned concurrently; use the stored one
			cur, err := g.invoices.Get(ctx, inv.ID)
			if err != nil {
				return Links{}, apperr.Internal(err)
			}
			txID = cur.TransactionID
		}
		inv.TransactionID = txID
	}

	links := BuildLinks(base, path, inv.TransactionID)
	if links.Generic != inv.PaymentLink || links.Wave != inv.PaymentLinkWave || links.OM != inv.PaymentLinkOM {
		if err := g.invoices.SetLinks(ctx, inv.ID, links.Generic, links.Wave, links.OM); err != nil {
			return Links{}, apperr.Internal(err)
		}
		inv.PaymentLink, inv.PaymentLinkWave, inv.PaymentLinkOM = links.Generic, links.Wave, links.OM
	}
	return links, nil
}

// CurrentLink returns the generic link for inv computed from the live
// configuration, falling back to the stored link when the front is not
// configured.
func (g *LinkGenerator) CurrentLink(ctx context.Context, inv model.Invoice) string {
	if inv.TransactionID == "" {
		return inv.PaymentLink
	}
	base, path, err := g.Front(ctx)
	if err != nil {
		return inv.PaymentLink
	}
	return BuildLinks(base, path, inv.TransactionID).Generic
}
