package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/property-rental-api/internal/model"
	"github.com/iliyamo/property-rental-api/internal/service"
)

// Amounts are rendered as JSON numbers; the tenant front-end does its own
// formatting.
func money(d decimal.Decimal) float64 { return d.InexactFloat64() }

func date(t time.Time) string { return t.Format(time.DateOnly) }

func optDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := date(*t)
	return &s
}

func orNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type contactView struct {
	ID                     uint64         `json:"id"`
	PartnerID              uint64         `json:"partner_id"`
	Name                   string         `json:"name"`
	Email                  string         `json:"email"`
	Phone                  *string        `json:"partner_phone"`
	Mobile                 *string        `json:"mobile"`
	Street                 *string        `json:"street"`
	City                   *string        `json:"partner_city"`
	CountryCode            *string        `json:"country_code"`
	Function               string         `json:"function"`
	ParentID               *uint64        `json:"parent_id"`
	IsVerified             bool           `json:"is_verified"`
	IsTenant               bool           `json:"is_tenant"`
	WhatsappNumber         *string        `json:"whatsapp_number"`
	PreferredPaymentMethod *string        `json:"preferred_payment_method"`
	Rental                 *rentalSummary `json:"rental,omitempty"`
}

func newContactView(c model.Contact) contactView {
	return contactView{
		ID:                     c.ID,
		PartnerID:              c.ID,
		Name:                   c.Name,
		Email:                  c.Email,
		Phone:                  orNil(c.Phone),
		Mobile:                 orNil(c.Mobile),
		Street:                 orNil(c.Street),
		City:                   orNil(c.City),
		CountryCode:            orNil(c.CountryCode),
		Function:               c.Function,
		ParentID:               c.ParentID,
		IsVerified:             c.IsVerified,
		IsTenant:               c.IsTenant,
		WhatsappNumber:         orNil(c.WhatsappNumber),
		PreferredPaymentMethod: orNil(c.PreferredPaymentMethod),
	}
}

type rentalSummary struct {
	IsTenant               bool               `json:"is_tenant"`
	PreferredPaymentMethod *string            `json:"preferred_payment_method"`
	WhatsappNumber         *string            `json:"whatsapp_number"`
	ActiveContracts        int                `json:"active_contract_count"`
	TotalContracts         int                `json:"total_contract_count"`
	UnpaidCount            int                `json:"unpaid_invoice_count"`
	UnpaidTotal            float64            `json:"total_unpaid_rent"`
	CurrentProperties      []propertyView     `json:"current_properties"`
	LastInvoices           []invoiceShortView `json:"last_invoices"`
	NextDueSchedules       []scheduleView     `json:"next_due_schedules"`
}

func newRentalSummary(s service.RentalSummary) *rentalSummary {
	out := &rentalSummary{
		IsTenant:               s.IsTenant,
		PreferredPaymentMethod: orNil(s.PreferredPaymentMethod),
		WhatsappNumber:         orNil(s.WhatsappNumber),
		ActiveContracts:        s.ActiveContracts,
		TotalContracts:         s.TotalContracts,
		UnpaidCount:            s.UnpaidCount,
		UnpaidTotal:            money(s.UnpaidTotal),
		CurrentProperties:      make([]propertyView, 0, len(s.CurrentProperties)),
		LastInvoices:           make([]invoiceShortView, 0, len(s.LastInvoices)),
		NextDueSchedules:       make([]scheduleView, 0, len(s.UpcomingDues)),
	}
	for _, p := range s.CurrentProperties {
		out.CurrentProperties = append(out.CurrentProperties, newPropertyView(p))
	}
	for _, inv := range s.LastInvoices {
		out.LastInvoices = append(out.LastInvoices, newInvoiceShortView(inv))
	}
	for _, e := range s.UpcomingDues {
		out.NextDueSchedules = append(out.NextDueSchedules, newScheduleView(e))
	}
	return out
}

type buildingView struct {
	ID          uint64  `json:"id"`
	Name        string  `json:"name"`
	Code        *string `json:"code"`
	Street      *string `json:"street"`
	City        *string `json:"city"`
	Description *string `json:"description"`
	ManagerID   *uint64 `json:"manager_id"`
	Active      bool    `json:"active"`

	PropertyCount  *int     `json:"property_count,omitempty"`
	OccupiedCount  *int     `json:"occupied_count,omitempty"`
	AvailableCount *int     `json:"available_count,omitempty"`
	OccupancyRate  *float64 `json:"occupancy_rate,omitempty"`
	MonthlyRent    *float64 `json:"total_monthly_rent,omitempty"`
	UnpaidTotal    *float64 `json:"total_unpaid,omitempty"`
}

func newBuildingView(b model.Building) buildingView {
	return buildingView{
		ID:          b.ID,
		Name:        b.Name,
		Code:        orNil(b.Code),
		Street:      orNil(b.Street),
		City:        orNil(b.City),
		Description: orNil(b.Description),
		ManagerID:   b.ManagerID,
		Active:      b.Active,
	}
}

func newBuildingDetailView(d service.BuildingDetail) buildingView {
	v := newBuildingView(d.Building)
	s := d.Stats
	rate, rent, unpaid := s.OccupancyRate(), money(s.MonthlyRent), money(s.UnpaidTotal)
	v.PropertyCount, v.OccupiedCount, v.AvailableCount = &s.PropertyCount, &s.OccupiedCount, &s.AvailableCount
	v.OccupancyRate, v.MonthlyRent, v.UnpaidTotal = &rate, &rent, &unpaid
	return v
}

type propertyView struct {
	ID           uint64  `json:"id"`
	Name         string  `json:"name"`
	Reference    *string `json:"reference"`
	Type         *string `json:"type"`
	Status       string  `json:"status"`
	BuildingID   *uint64 `json:"building_id"`
	BuildingName *string `json:"building_name"`
	Floor        *string `json:"floor"`
	Surface      float64 `json:"surface_area"`
	Rooms        int     `json:"rooms"`
	MonthlyRent  float64 `json:"monthly_rent"`
	Charges      float64 `json:"charges"`
	Description  *string `json:"description"`
}

func newPropertyView(p model.Property) propertyView {
	return propertyView{
		ID:           p.ID,
		Name:         p.Name,
		Reference:    orNil(p.Reference),
		Type:         orNil(p.PropertyType),
		Status:       p.Status,
		BuildingID:   p.BuildingID,
		BuildingName: orNil(p.BuildingName),
		Floor:        orNil(p.Floor),
		Surface:      money(p.Surface),
		Rooms:        p.Rooms,
		MonthlyRent:  money(p.MonthlyRent),
		Charges:      money(p.Charges),
		Description:  orNil(p.Description),
	}
}

type contractView struct {
	ID                   uint64  `json:"id"`
	Name                 string  `json:"name"`
	State                string  `json:"state"`
	StartDate            string  `json:"start_date"`
	EndDate              *string `json:"end_date"`
	DurationMonths       int     `json:"duration_months"`
	MonthlyRent          float64 `json:"monthly_rent"`
	Deposit              float64 `json:"deposit"`
	Currency             *string `json:"currency"`
	PaymentDay           int     `json:"payment_day"`
	PaymentFrequency     string  `json:"payment_frequency"`
	AutoGenerateInvoices bool    `json:"auto_generate_invoices"`
	AutoSendReminders    bool    `json:"auto_send_reminders"`
	TenantID             uint64  `json:"tenant_id"`
	TenantName           *string `json:"tenant_name"`
	PropertyID           uint64  `json:"property_id"`
	PropertyName         *string `json:"property_name"`
	TerminatedAt         *string `json:"terminated_at"`
	Notes                *string `json:"notes"`
}

func newContractView(k model.Contract) contractView {
	return contractView{
		ID:                   k.ID,
		Name:                 k.Reference,
		State:                k.State,
		StartDate:            date(k.StartDate),
		EndDate:              optDate(k.EndDate),
		DurationMonths:       k.DurationMonths,
		MonthlyRent:          money(k.MonthlyRent),
		Deposit:              money(k.Deposit),
		Currency:             orNil(k.Currency),
		PaymentDay:           k.PaymentDay,
		PaymentFrequency:     k.PaymentFrequency,
		AutoGenerateInvoices: k.AutoGenerateInvoices,
		AutoSendReminders:    k.AutoSendReminders,
		TenantID:             k.TenantID,
		TenantName:           orNil(k.TenantName),
		PropertyID:           k.PropertyID,
		PropertyName:         orNil(k.PropertyName),
		TerminatedAt:         optDate(k.TerminatedAt),
		Notes:                orNil(k.Notes),
	}
}

type scheduleView struct {
	ID          uint64  `json:"id"`
	ContractID  uint64  `json:"contract_id"`
	Sequence    int     `json:"sequence"`
	DueDate     string  `json:"due_date"`
	PeriodStart string  `json:"period_start"`
	PeriodEnd   string  `json:"period_end"`
	Amount      float64 `json:"amount"`
	State       string  `json:"state"`
	InvoiceID   *uint64 `json:"invoice_id"`
}

func newScheduleView(e model.ScheduleEntry) scheduleView {
	return scheduleView{
		ID:          e.ID,
		ContractID:  e.ContractID,
		Sequence:    e.Sequence,
		DueDate:     date(e.DueDate),
		PeriodStart: date(e.PeriodStart),
		PeriodEnd:   date(e.PeriodEnd),
		Amount:      money(e.Amount),
		State:       e.State,
		InvoiceID:   e.InvoiceID,
	}
}

func scheduleViews(entries []model.ScheduleEntry) []scheduleView {
	out := make([]scheduleView, 0, len(entries))
	for _, e := range entries {
		out = append(out, newScheduleView(e))
	}
	return out
}

type invoiceShortView struct {
	ID             uint64  `json:"id"`
	Code           string  `json:"code"`
	Status         string  `json:"status"`
	AmountTotal    float64 `json:"amount_total"`
	AmountResidual float64 `json:"amount_residual"`
	PartnerID      uint64  `json:"partner_id"`
	DueDate        *string `json:"due_date"`
	Currency       *string `json:"currency"`
}

func newInvoiceShortView(inv model.Invoice) invoiceShortView {
	return invoiceShortView{
		ID:             inv.ID,
		Code:           inv.DisplayRef(),
		Status:         inv.PaymentState,
		AmountTotal:    money(inv.AmountTotal),
		AmountResidual: money(inv.AmountDue()),
		PartnerID:      inv.ContactID,
		DueDate:        optDate(inv.DueDate),
		Currency:       orNil(inv.Currency),
	}
}

type invoiceView struct {
	ID               uint64         `json:"id"`
	Code             string         `json:"code"`
	Type             string         `json:"move_type"`
	Status           string         `json:"status"`
	State            string         `json:"state"`
	PaymentState     string         `json:"payment_state"`
	IssueDate        string         `json:"issue_date"`
	DueDate          *string        `json:"due_date"`
	Currency         *string        `json:"currency"`
	AmountTotal      float64        `json:"amount_total"`
	AmountPaid       float64        `json:"amount_paid"`
	AmountResidual   float64        `json:"amount_residual"`
	PartnerID        uint64         `json:"partner_id"`
	ContractID       *uint64        `json:"contract_id"`
	PropertyName     *string        `json:"property_name"`
	TransactionID    *string        `json:"transaction_id"`
	PaymentLink      *string        `json:"payment_link"`
	PaymentLinkWave  *string        `json:"payment_link_wave"`
	PaymentLinkOM    *string        `json:"payment_link_om"`
	LastReminderDate *string        `json:"last_reminder_date"`
	Items            []lineView     `json:"items,omitempty"`
	Payments         []paymentView  `json:"payments,omitempty"`
	Reminders        []reminderView `json:"reminders,omitempty"`
}

// status follows the front-end's vocabulary: paid wins over posted.
func invoiceStatus(inv model.Invoice) string {
	if inv.PaymentState == model.PaymentPaid {
		return model.PaymentPaid
	}
	return inv.State
}

func newInvoiceView(inv model.Invoice) invoiceView {
	due := inv.AmountDue()
	paid := decimal.Max(inv.AmountTotal.Sub(due), decimal.Zero)
	return invoiceView{
		ID:               inv.ID,
		Code:             inv.DisplayRef(),
		Type:             inv.MoveType,
		Status:           invoiceStatus(inv),
		State:            inv.State,
		PaymentState:     inv.PaymentState,
		IssueDate:        date(inv.InvoiceDate),
		DueDate:          optDate(inv.DueDate),
		Currency:         orNil(inv.Currency),
		AmountTotal:      money(inv.AmountTotal),
		AmountPaid:       money(paid),
		AmountResidual:   money(due),
		PartnerID:        inv.ContactID,
		ContractID:       inv.ContractID,
		PropertyName:     orNil(inv.PropertyName),
		TransactionID:    orNil(inv.TransactionID),
		PaymentLink:      orNil(inv.PaymentLink),
		PaymentLinkWave:  orNil(inv.PaymentLinkWave),
		PaymentLinkOM:    orNil(inv.PaymentLinkOM),
		LastReminderDate: optDate(inv.LastReminderDate),
	}
}

func invoiceViews(invoices []model.Invoice) []invoiceView {
	out := make([]invoiceView, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, newInvoiceView(inv))
	}
	return out
}

func newInvoiceDetailView(d service.InvoiceDetail) invoiceView {
	v := newInvoiceView(d.Invoice)
	v.Items = make([]lineView, 0, len(d.Lines))
	for _, l := range d.Lines {
		v.Items = append(v.Items, lineView{
			ID:          l.ID,
			Description: l.Description,
			Quantity:    money(l.Quantity),
			UnitPrice:   money(l.UnitPrice),
			Total:       money(l.Subtotal),
		})
	}
	v.Payments = paymentViews(d.Payments)
	v.Reminders = reminderViews(d.Reminders)
	return v
}

type lineView struct {
	ID          uint64  `json:"id"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
}

type paymentView struct {
	ID            uint64  `json:"id"`
	Amount        float64 `json:"amount"`
	Currency      *string `json:"currency"`
	PaidAt        string  `json:"paid_at"`
	Method        string  `json:"method"`
	Reference     *string `json:"reference"`
	InvoiceID     uint64  `json:"invoice_id"`
	InvoiceNumber *string `json:"invoice_code"`
	Status        string  `json:"status"`
}

func paymentViews(pays []model.Payment) []paymentView {
	out := make([]paymentView, 0, len(pays))
	for _, p := range pays {
		out = append(out, paymentView{
			ID:            p.ID,
			Amount:        money(p.Amount),
			Currency:      orNil(p.Currency),
			PaidAt:        p.PaidAt.UTC().Format(time.RFC3339),
			Method:        p.Method,
			Reference:     orNil(p.Reference),
			InvoiceID:     p.InvoiceID,
			InvoiceNumber: orNil(p.InvoiceNumber),
			Status:        "posted",
		})
	}
	return out
}

type reminderView struct {
	ID          uint64  `json:"id"`
	Channel     string  `json:"channel"`
	Recipient   string  `json:"recipient"`
	Status      string  `json:"status"`
	Error       *string `json:"error_message"`
	IsAutomatic bool    `json:"is_automatic"`
	SentAt      string  `json:"sent_at"`
}

func reminderViews(rows []model.ReminderHistory) []reminderView {
	out := make([]reminderView, 0, len(rows))
	for _, h := range rows {
		out = append(out, reminderView{
			ID:          h.ID,
			Channel:     h.Channel,
			Recipient:   h.Recipient,
			Status:      h.Status,
			Error:       orNil(h.ErrorMessage),
			IsAutomatic: h.IsAutomatic,
			SentAt:      h.SentAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

func contractViews(rows []model.Contract) []contractView {
	out := make([]contractView, 0, len(rows))
	for _, k := range rows {
		out = append(out, newContractView(k))
	}
	return out
}
