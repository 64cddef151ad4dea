package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/property-rental-api/internal/testutil"
)

func TestParamsHelpers(t *testing.T) {
	p := NewParams(testutil.NewSettings(map[string]string{
		ParamSendSMS:               "False",
		ParamSendEmail:             " yes ",
		ParamReminderFrequencyDays: "3",
		ParamMaxReminders:          "many",
	}, nil))
	ctx := context.Background()

	assert.False(t, p.Bool(ctx, ParamSendSMS, true))
	assert.True(t, p.Bool(ctx, ParamSendEmail, false))
	assert.True(t, p.Bool(ctx, ParamEnableWave, true))
	assert.Equal(t, 3, p.Int(ctx, ParamReminderFrequencyDays, 1))
	assert.Equal(t, 7, p.Int(ctx, ParamMaxReminders, 7))
	assert.Equal(t, "", p.String(ctx, ParamFrontendPaymentURL))
}

func TestTypedParams(t *testing.T) {
	p := NewParams(testutil.NewSettings(map[string]string{
		"rental.send_sms":             "1",
		"rental.grace_period_days":    "5",
		"rental.late_fee_percentage":  "2.5",
		"rental.income_account_id":    "12",
		"rental.whatsapp_api_token":   "tok",
		"rental.frontend_payment_url": "https://pay.example.sn",
	}, nil))

	got, err := p.Typed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, true, got["rental.send_sms"])
	assert.Equal(t, false, got["rental.send_email"])
	assert.Equal(t, 5, got["rental.grace_period_days"])
	assert.Equal(t, 0, got["rental.max_reminders"])
	assert.Equal(t, 2.5, got["rental.late_fee_percentage"])
	assert.Equal(t, uint64(12), got["rental.income_account_id"])
	assert.Nil(t, got["rental.payment_journal_id"])
	assert.Equal(t, "********", got["rental.whatsapp_api_token"])
	assert.Equal(t, "https://pay.example.sn", got["rental.frontend_payment_url"])
	assert.Nil(t, got["rental.sms_provider"])
}

func TestSeedParams(t *testing.T) {
	store := testutil.NewSettings(nil, nil)
	p := NewParams(store)

	keys, err := p.Seed(context.Background(), map[string]string{"rental.b": "2", "rental.a": "1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"rental.a", "rental.b"}, keys)
	assert.Equal(t, 2, p.Int(context.Background(), "rental.b", 0))
}
