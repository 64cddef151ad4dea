package service

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/iliyamo/property-rental-api/internal/apperr"
)

// Parameter keys read by the service itself.
const (
	ParamFrontendPaymentURL    = "rental.frontend_payment_url"
	ParamFrontendPaymentPath   = "rental.frontend_payment_path"
	ParamReminderFrequencyDays = "rental.reminder_frequency_days"
	ParamMaxReminders          = "rental.max_reminders"
	ParamSendEmail             = "rental.send_email"
	ParamSendSMS               = "rental.send_sms"
	ParamEnableWave            = "rental.enable_wave"
	ParamEnableOrangeMoney     = "rental.enable_orange_money"
)

type paramKind int

const (
	kindString paramKind = iota
	kindBool
	kindInt
	kindFloat
	kindReference
	kindSecret
)

// rentalParams lists the rental.* keys exposed by the configuration
// endpoint together with how their string values are typed.
var rentalParams = map[string]paramKind{
	"rental.auto_generate_invoices":     kindBool,
	"rental.auto_send_invoices":         kindBool,
	ParamSendEmail:                      kindBool,
	ParamSendSMS:                        kindBool,
	"rental.send_whatsapp":              kindBool,
	"rental.auto_send_reminders":        kindBool,
	ParamEnableWave:                     kindBool,
	ParamEnableOrangeMoney:              kindBool,
	"rental.enable_stripe":              kindBool,
	"rental.allow_partial_payment":      kindBool,
	"rental.late_fee_enabled":           kindBool,
	"rental.invoice_days_before":        kindInt,
	ParamReminderFrequencyDays:          kindInt,
	ParamMaxReminders:                   kindInt,
	"rental.grace_period_days":          kindInt,
	"rental.late_fee_percentage":        kindFloat,
	"rental.email_template_id":          kindReference,
	"rental.reminder_email_template_id": kindReference,
	"rental.income_account_id":          kindReference,
	"rental.deposit_account_id":         kindReference,
	"rental.payment_journal_id":         kindReference,
	"rental.sms_provider":               kindString,
	ParamFrontendPaymentURL:             kindString,
	ParamFrontendPaymentPath:            kindString,
	"rental.whatsapp_api_token":         kindSecret,
}

// Params reads typed business parameters.
type Params struct {
	store SettingsStore
}

func NewParams(store SettingsStore) *Params { return &Params{store: store} }

func (p *Params) raw(ctx context.Context, key string) string {
	v, err := p.store.Param(ctx, key)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

// Bool reads key; missing or unparsable values give def.
func (p *Params) Bool(ctx context.Context, key string, def bool) bool {
	v := p.raw(ctx, key)
	if v == "" {
		return def
	}
	return parseBool(v)
}

// Int reads key; missing or unparsable values give def.
func (p *Params) Int(ctx context.Context, key string, def int) int {
	n, err := strconv.Atoi(p.raw(ctx, key))
	if err != nil {
		return def
	}
	return n
}

// String reads key, "" when unset.
func (p *Params) String(ctx context.Context, key string) string { return p.raw(ctx, key) }

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Typed returns every known rental parameter with its typed value. Unset
// booleans are false, unset numbers 0, unset strings and references nil.
// Secrets are masked.
func (p *Params) Typed(ctx context.Context) (map[string]any, error) {
	stored, err := p.store.Params(ctx, "rental.")
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := make(map[string]any, len(rentalParams))
	for key, kind := range rentalParams {
		out[key] = typedValue(kind, strings.TrimSpace(stored[key]))
	}
	return out, nil
}

func typedValue(kind paramKind, v string) any {
	switch kind {
	case kindBool:
		return v != "" && parseBool(v)
	case kindInt:
		n, _ := strconv.Atoi(v)
		return n
	case kindFloat:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case kindReference:
		if id, err := strconv.ParseUint(v, 10, 64); err == nil && id > 0 {
			return id
		}
		return nil
	case kindSecret:
		if v == "" {
			return nil
		}
		return "********"
	default:
		if v == "" {
			return nil
		}
		return v
	}
}

// Seed writes values, typically loaded from a YAML file. Unknown keys are
// accepted so deployments can carry extra settings.
func (p *Params) Seed(ctx context.Context, values map[string]string) ([]string, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := p.store.SetParam(ctx, k, values[k]); err != nil {
			return nil, apperr.Internal(err)
		}
	}
	return keys, nil
}
