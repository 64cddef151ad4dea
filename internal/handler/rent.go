package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/property-rental-api/internal/middleware"
	"github.com/iliyamo/property-rental-api/internal/model"
	"github.com/iliyamo/property-rental-api/internal/repository"
	"github.com/iliyamo/property-rental-api/internal/service"
)

// RentHandler serves the management side of the rental API: buildings,
// properties, contracts, invoices and per-partner views.
type RentHandler struct {
	Catalog   *service.Catalog
	Contracts *service.ContractService
	Invoices  *service.InvoiceService
	Partners  *service.PartnerService
	Timeout   time.Duration
	Log       *zap.Logger
}

// RentDeps groups the services a RentHandler needs.
type RentDeps struct {
	Catalog   *service.Catalog
	Contracts *service.ContractService
	Invoices  *service.InvoiceService
	Partners  *service.PartnerService
}

func NewRentHandler(d RentDeps, timeout time.Duration, log *zap.Logger) *RentHandler {
	if d.Catalog == nil || d.Contracts == nil || d.Invoices == nil || d.Partners == nil {
		panic("nil service passed to NewRentHandler")
	}
	return &RentHandler{
		Catalog:   d.Catalog,
		Contracts: d.Contracts,
		Invoices:  d.Invoices,
		Partners:  d.Partners,
		Timeout:   timeout,
		Log:       log,
	}
}

// ----- buildings -----

func (h *RentHandler) ListBuildings(c echo.Context) error {
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	rows, err := h.Catalog.Buildings(ctx, strings.TrimSpace(c.QueryParam("q")))
	if err != nil {
		return err
	}
	out := make([]buildingView, 0, len(rows))
	for _, b := range rows {
		out = append(out, newBuildingView(b))
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(out), "buildings": out})
}

func (h *RentHandler) GetBuilding(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	d, err := h.Catalog.Building(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newBuildingDetailView(d))
}

// ----- properties -----

func (h *RentHandler) ListProperties(c echo.Context) error {
	buildingID, err := queryID(c, "building_id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	rows, err := h.Catalog.Properties(ctx, repository.PropertyFilter{
		Query:      strings.TrimSpace(c.QueryParam("q")),
		Status:     strings.TrimSpace(c.QueryParam("status")),
		BuildingID: buildingID,
	})
	if err != nil {
		return err
	}
	out := make([]propertyView, 0, len(rows))
	for _, p := range rows {
		out = append(out, newPropertyView(p))
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(out), "properties": out})
}

func (h *RentHandler) GetProperty(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	d, err := h.Catalog.Property(ctx, id)
	if err != nil {
		return err
	}
	resp := echo.Map{"property": newPropertyView(d.Property), "current_contract": nil}
	if d.Current != nil {
		resp["current_contract"] = newContractView(*d.Current)
	}
	return c.JSON(http.StatusOK, resp)
}

// ----- contracts -----

func (h *RentHandler) ListContracts(c echo.Context) error {
	tenantID, err := queryID(c, "tenant_id")
	if err != nil {
		return err
	}
	propertyID, err := queryID(c, "property_id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	rows, err := h.Catalog.Contracts(ctx, repository.ContractFilter{
		TenantID:   tenantID,
		PropertyID: propertyID,
		State:      strings.TrimSpace(c.QueryParam("state")),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(rows), "contracts": contractViews(rows)})
}

func (h *RentHandler) GetContract(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	d, err := h.Catalog.Contract(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"contract": newContractView(d.Contract),
		"schedule": scheduleViews(d.Schedule),
		"invoices": invoiceViews(d.Invoices),
	})
}

func (h *RentHandler) ContractInvoices(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	d, err := h.Catalog.Contract(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(d.Invoices), "invoices": invoiceViews(d.Invoices)})
}

func (h *RentHandler) ConfirmContract(c echo.Context) error {
	return h.transition(c, h.Contracts.Confirm)
}

func (h *RentHandler) TerminateContract(c echo.Context) error {
	return h.transition(c, h.Contracts.Terminate)
}

func (h *RentHandler) ExpireContract(c echo.Context) error {
	return h.transition(c, h.Contracts.Expire)
}

func (h *RentHandler) transition(c echo.Context, apply func(ctx context.Context, id uint64) (model.Contract, error)) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	k, err := apply(ctx, id)
	if err != nil {
		return err
	}
	h.Log.Info("contract transition", zap.Uint64("contract_id", id), zap.String("state", k.State),
		zap.String("by", middleware.Subject(c)))
	return c.JSON(http.StatusOK, echo.Map{"success": true, "contract": newContractView(k)})
}

func (h *RentHandler) RegenerateSchedule(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	entries, err := h.Contracts.RegenerateSchedule(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "schedule": scheduleViews(entries)})
}

func (h *RentHandler) GenerateNextInvoice(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	inv, err := h.Contracts.GenerateNextInvoice(ctx, id)
	if err != nil {
		return err
	}
	if inv == nil {
		return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "no pending installment to invoice", "invoice": nil})
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "invoice": newInvoiceView(*inv)})
}

// ----- invoices -----

type sendReq struct {
	Channel string `json:"channel" form:"channel"`
}

type markPaidReq struct {
	Amount    *decimal.Decimal `json:"amount"`
	Method    string           `json:"method"`
	Reference string           `json:"reference"`
}

func (h *RentHandler) GetInvoice(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	d, err := h.Invoices.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newInvoiceDetailView(d))
}

func (h *RentHandler) SendInvoice(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req sendReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	queued, attempts, err := h.Invoices.Send(ctx, id, orQuery(c, req.Channel, "channel"))
	if err != nil {
		return err
	}
	if queued {
		return c.JSON(http.StatusAccepted, echo.Map{"success": true, "queued": true})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "queued": false, "attempts": reminderViews(attempts)})
}

func (h *RentHandler) MarkPaid(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req markPaidReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	inv, pay, err := h.Invoices.MarkPaid(ctx, id, req.Amount, req.Method, req.Reference)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"invoice": newInvoiceView(inv),
		"payment": paymentViews([]model.Payment{pay})[0],
	})
}

func (h *RentHandler) PaymentLink(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	inv, err := h.Invoices.RegenerateLinks(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":           true,
		"transaction_id":    inv.TransactionID,
		"payment_link":      inv.PaymentLink,
		"payment_link_wave": inv.PaymentLinkWave,
		"payment_link_om":   inv.PaymentLinkOM,
	})
}

// ----- partner views -----

func (h *RentHandler) PartnerDashboard(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	contact, err := h.Partners.Get(ctx, id)
	if err != nil {
		return err
	}
	sum, err := h.Partners.Summary(ctx, contact)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"partner": newContactView(contact),
		"rental":  newRentalSummary(sum),
	})
}

func (h *RentHandler) PartnerInvoices(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	if _, err := h.Partners.Get(ctx, id); err != nil {
		return err
	}
	rows, err := h.Invoices.List(ctx, repository.InvoiceFilter{
		ContactID:  id,
		UnpaidOnly: c.QueryParam("unpaid") == "true" || c.QueryParam("unpaid") == "1",
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"partner_id": id, "count": len(rows), "invoices": invoiceViews(rows)})
}

func (h *RentHandler) PartnerContracts(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	if _, err := h.Partners.Get(ctx, id); err != nil {
		return err
	}
	rows, err := h.Catalog.Contracts(ctx, repository.ContractFilter{TenantID: id})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"partner_id": id, "count": len(rows), "contracts": contractViews(rows)})
}

func (h *RentHandler) PartnerProperties(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	if _, err := h.Partners.Get(ctx, id); err != nil {
		return err
	}
	rows, err := h.Catalog.RentedBy(ctx, id)
	if err != nil {
		return err
	}
	out := make([]propertyView, 0, len(rows))
	for _, p := range rows {
		out = append(out, newPropertyView(p))
	}
	return c.JSON(http.StatusOK, echo.Map{"partner_id": id, "count": len(out), "properties": out})
}
