package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/property-rental-api/internal/apperr"
	"github.com/iliyamo/property-rental-api/internal/config"
	"github.com/iliyamo/property-rental-api/internal/model"
	"github.com/iliyamo/property-rental-api/internal/repository"
	"github.com/iliyamo/property-rental-api/internal/utils"
)

var (
	ErrContactNotFound = apperr.NotFound("contact_not_found", "contact not found")
	ErrEmailTaken      = apperr.Validation("email_taken", "a user with this email already exists")
	ErrInvalidOTP      = apperr.Validation("invalid_otp", "invalid or expired OTP code")
	ErrNoPhone         = apperr.Validation("no_phone", "no phone number on the account")
)

// SignupInput is a self-service account request.
type SignupInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
	City     string
}

// ProfileUpdate carries the fields to change; nil fields are left alone.
type ProfileUpdate struct {
	Name                   *string
	Email                  *string
	Phone                  *string
	Mobile                 *string
	Street                 *string
	City                   *string
	Function               *string
	WhatsappNumber         *string
	PreferredPaymentMethod *string
	Password               *string
}

// RentalSummary is the tenant block of a profile.
type RentalSummary struct {
	IsTenant               bool
	PreferredPaymentMethod string
	WhatsappNumber         string
	ActiveContracts        int
	TotalContracts         int
	UnpaidCount            int
	UnpaidTotal            decimal.Decimal
	CurrentProperties      []model.Property
	Contracts              []model.Contract
	LastInvoices           []model.Invoice
	UpcomingDues           []model.ScheduleEntry
}

// PartnerService manages contact accounts, OTP verification and the
// tenant dashboard.
type PartnerService struct {
	contacts   ContactStore
	contracts  ContractStore
	properties PropertyStore
	invoices   InvoiceStore
	schedules  ScheduleStore
	dispatcher *Dispatcher
	phone      utils.PhoneRules
	otpTTL     time.Duration
	cost       int
	log        *zap.Logger
	now        func() time.Time
}

// PartnerDeps groups a PartnerService's collaborators.
type PartnerDeps struct {
	Contacts   ContactStore
	Contracts  ContractStore
	Properties PropertyStore
	Invoices   InvoiceStore
	Schedules  ScheduleStore
	Dispatcher *Dispatcher
}

func NewPartnerService(d PartnerDeps, cfg config.Config, log *zap.Logger) *PartnerService {
	ttl := cfg.OTPTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &PartnerService{
		contacts:   d.Contacts,
		contracts:  d.Contracts,
		properties: d.Properties,
		invoices:   d.Invoices,
		schedules:  d.Schedules,
		dispatcher: d.Dispatcher,
		phone:      utils.PhoneRules{CountryCode: cfg.Phone.CountryCode, LocalLength: cfg.Phone.LocalLength},
		otpTTL:     ttl,
		cost:       cfg.BcryptCost,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *PartnerService) Get(ctx context.Context, id uint64) (model.Contact, error) {
	c, err := s.contacts.GetByID(ctx, id)
	if errors.Is(err, repository.ErrContactNotFound) {
		return c, ErrContactNotFound
	}
	if err != nil {
		return c, apperr.Internal(err)
	}
	return c, nil
}

// ByEmail returns the single contact registered under email.
func (s *PartnerService) ByEmail(ctx context.Context, email string) (model.Contact, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return model.Contact{}, ErrContactNotFound
	}
	found, err := s.contacts.FindByEmail(ctx, email)
	if err != nil {
		return model.Contact{}, apperr.Internal(err)
	}
	if len(found) == 0 {
		return model.Contact{}, ErrContactNotFound
	}
	return found[0], nil
}

// Signup creates an unverified contact with a hashed password and sends
// the first OTP.
func (s *PartnerService) Signup(ctx context.Context, in SignupInput) (model.Contact, error) {
	in.Name, in.Email = strings.TrimSpace(in.Name), strings.TrimSpace(in.Email)
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return model.Contact{}, apperr.Validation("missing_fields", "required fields: name, email, password")
	}
	existing, err := s.contacts.FindByEmail(ctx, in.Email)
	if err != nil {
		return model.Contact{}, apperr.Internal(err)
	}
	if len(existing) > 0 {
		return model.Contact{}, ErrEmailTaken
	}
	hash, err := utils.HashPassword(in.Password, s.cost)
	if err != nil {
		return model.Contact{}, apperr.Internal(err)
	}
	c := model.Contact{
		Name:     in.Name,
		Email:    in.Email,
		Phone:    in.Phone,
		City:     in.City,
		Password: hash,
	}
	if err := s.contacts.Create(ctx, &c); err != nil {
		return model.Contact{}, apperr.Internal(err)
	}
	if err := s.SendOTP(ctx, &c); err != nil {
		s.log.Warn("initial otp failed", zap.Uint64("contact_id", c.ID), zap.Error(err))
	}
	return c, nil
}

// Update applies a partial profile update. A new password is hashed.
func (s *PartnerService) Update(ctx context.Context, id uint64, u ProfileUpdate) (model.Contact, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return c, err
	}
	apply(&c, u)
	if err := s.contacts.UpdateProfile(ctx, c); err != nil {
		if errors.Is(err, repository.ErrContactNotFound) {
			return c, ErrContactNotFound
		}
		return c, apperr.Internal(err)
	}
	if u.Password != nil && *u.Password != "" {
		if err := s.setPassword(ctx, &c, *u.Password); err != nil {
			return c, err
		}
	}
	return c, nil
}

// Reenroll updates the contact found by email, marks it unverified and
// sends a new OTP.
func (s *PartnerService) Reenroll(ctx context.Context, email string, u ProfileUpdate) (model.Contact, error) {
	c, err := s.ByEmail(ctx, email)
	if err != nil {
		return c, err
	}
	if c, err = s.Update(ctx, c.ID, u); err != nil {
		return c, err
	}
	if err := s.contacts.ResetVerification(ctx, c.ID); err != nil {
		return c, apperr.Internal(err)
	}
	c.IsVerified = false
	if err := s.SendOTP(ctx, &c); err != nil {
		s.log.Warn("reenroll otp failed", zap.Uint64("contact_id", c.ID), zap.Error(err))
	}
	return c, nil
}

func (s *PartnerService) setPassword(ctx context.Context, c *model.Contact, plain string) error {
	hash, err := utils.HashPassword(plain, s.cost)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := s.contacts.SetPassword(ctx, c.ID, hash, false); err != nil {
		return apperr.Internal(err)
	}
	c.Password = hash
	return nil
}

func apply(c *model.Contact, u ProfileUpdate) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&c.Name, u.Name)
	set(&c.Email, u.Email)
	set(&c.Phone, u.Phone)
	set(&c.Mobile, u.Mobile)
	set(&c.Street, u.Street)
	set(&c.City, u.City)
	set(&c.Function, u.Function)
	set(&c.WhatsappNumber, u.WhatsappNumber)
	set(&c.PreferredPaymentMethod, u.PreferredPaymentMethod)
}

// SendOTP stores a fresh code, replacing any previous one, and delivers
// it over SMS and email.
func (s *PartnerService) SendOTP(ctx context.Context, c *model.Contact) error {
	code, err := utils.NewOTPCode()
	if err != nil {
		return apperr.Internal(err)
	}
	exp := s.now().Add(s.otpTTL)
	if err := s.contacts.SetOTP(ctx, c.ID, code, exp); err != nil {
		if errors.Is(err, repository.ErrContactNotFound) {
			return ErrContactNotFound
		}
		return apperr.Internal(err)
	}
	c.OTPCode, c.OTPExpiresAt = code, &exp
	smsSent, emailSent := s.dispatcher.DeliverOTP(ctx, *c, code)
	s.log.Info("otp issued", zap.Uint64("contact_id", c.ID), zap.Bool("sms", smsSent), zap.Bool("email", emailSent))
	return nil
}

// VerifyOTP checks a code for the contact registered under email and
// marks it verified.
func (s *PartnerService) VerifyOTP(ctx context.Context, email, code string) (model.Contact, error) {
	c, err := s.ByEmail(ctx, email)
	if err != nil {
		return c, err
	}
	return s.confirm(ctx, c, code)
}

// SendInvoiceOTP sends a code to the contact of the invoice identified by
// transaction id or payment link. It returns the masked phone number.
func (s *PartnerService) SendInvoiceOTP(ctx context.Context, tx string) (string, error) {
	c, err := s.invoiceContact(ctx, tx)
	if err != nil {
		return "", err
	}
	phone := c.SMSNumber()
	if phone == "" {
		return "", ErrNoPhone
	}
	if err := s.SendOTP(ctx, &c); err != nil {
		return "", err
	}
	return s.phone.Mask(phone), nil
}

// VerifyInvoiceOTP checks a code sent through SendInvoiceOTP.
func (s *PartnerService) VerifyInvoiceOTP(ctx context.Context, tx, code string) (model.Contact, error) {
	c, err := s.invoiceContact(ctx, tx)
	if err != nil {
		return c, err
	}
	return s.confirm(ctx, c, code)
}

func (s *PartnerService) invoiceContact(ctx context.Context, tx string) (model.Contact, error) {
	if strings.TrimSpace(tx) == "" {
		return model.Contact{}, apperr.Validation("missing_transaction", "transaction is required")
	}
	inv, err := s.invoices.GetByTransaction(ctx, tx)
	if errors.Is(err, repository.ErrInvoiceNotFound) {
		return model.Contact{}, ErrInvoiceNotFound
	}
	if err != nil {
		return model.Contact{}, apperr.Internal(err)
	}
	return s.Get(ctx, inv.ContactID)
}

func (s *PartnerService) confirm(ctx context.Context, c model.Contact, code string) (model.Contact, error) {
	code, ok := NormalizeOTP(code)
	if !ok || c.OTPCode == "" || c.OTPExpiresAt == nil || !s.now().Before(*c.OTPExpiresAt) {
		return c, ErrInvalidOTP
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(c.OTPCode)) != 1 {
		return c, ErrInvalidOTP
	}
	if err := s.contacts.ConfirmOTP(ctx, c.ID); err != nil {
		return c, apperr.Internal(err)
	}
	c.IsVerified, c.OTPCode, c.OTPExpiresAt = true, "", nil
	return c, nil
}

// NormalizeOTP left-pads a numeric code to 4 digits ("7" -> "0007").
func NormalizeOTP(code string) (string, bool) {
	code = strings.TrimSpace(code)
	if code == "" || len(code) > 4 {
		return "", false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return strings.Repeat("0", 4-len(code)) + code, true
}

// Summary builds the tenant dashboard of contact c.
func (s *PartnerService) Summary(ctx context.Context, c model.Contact) (RentalSummary, error) {
	sum := RentalSummary{
		IsTenant:               c.IsTenant,
		PreferredPaymentMethod: c.PreferredPaymentMethod,
		WhatsappNumber:         c.WhatsappNumber,
		UnpaidTotal:            decimal.Zero,
	}
	contracts, err := s.contracts.List(ctx, repository.ContractFilter{TenantID: c.ID})
	if err != nil {
		return sum, apperr.Internal(err)
	}
	sum.Contracts = contracts
	sum.TotalContracts = len(contracts)
	var active []uint64
	for _, k := range contracts {
		if k.State == model.ContractActive {
			active = append(active, k.ID)
		}
	}
	sum.ActiveContracts = len(active)

	if sum.CurrentProperties, err = s.properties.ListRentedBy(ctx, c.ID); err != nil {
		return sum, apperr.Internal(err)
	}
	unpaid, err := s.invoices.List(ctx, repository.InvoiceFilter{ContactID: c.ID, PostedOnly: true, UnpaidOnly: true})
	if err != nil {
		return sum, apperr.Internal(err)
	}
	sum.UnpaidCount = len(unpaid)
	for _, inv := range unpaid {
		sum.UnpaidTotal = sum.UnpaidTotal.Add(inv.AmountDue())
	}
	if sum.LastInvoices, err = s.invoices.List(ctx, repository.InvoiceFilter{ContactID: c.ID, Limit: 5}); err != nil {
		return sum, apperr.Internal(err)
	}
	if sum.UpcomingDues, err = s.schedules.Upcoming(ctx, active, truncateDay(s.now()), 5); err != nil {
		return sum, apperr.Internal(err)
	}
	return sum, nil
}
