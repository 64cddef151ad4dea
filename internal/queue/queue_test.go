package queue

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentAuditLogAppendsLines(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	h := PaymentAuditLog(dir)

	ev := PaymentInitiatedEvent{
		TransactionID: "tx-1", Gateway: "wave", InvoiceID: 7, InvoiceNumber: "INV/2026/00007",
		ContactID: 3, Amount: "150000", Currency: "XOF", SessionID: "cos-1", InitiatedAt: "2026-03-01T10:00:00Z",
	}
	body, err := json.Marshal(ev)
	require.NoError(t, err)
	require.NoError(t, h(context.Background(), body))
	require.NoError(t, h(context.Background(), body))

	data, err := os.ReadFile(filepath.Join(dir, "payments.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "transaction_id=tx-1")
	assert.Contains(t, lines[0], `invoice="INV/2026/00007"`)
	assert.Contains(t, lines[0], "amount=150000 XOF")
}

func TestPaymentAuditLogRejectsGarbage(t *testing.T) {
	h := PaymentAuditLog(t.TempDir())
	assert.Error(t, h(context.Background(), []byte("{not json")))
}

func TestNotificationHandler(t *testing.T) {
	var got NotificationRequestedEvent
	h := NotificationHandler(func(_ context.Context, ev NotificationRequestedEvent) error {
		got = ev
		return nil
	})
	require.NoError(t, h(context.Background(), []byte(`{"invoice_id":12,"channel":"sms"}`)))
	assert.Equal(t, uint64(12), got.InvoiceID)
	assert.Equal(t, "sms", got.Channel)

	assert.Error(t, h(context.Background(), []byte(`{"channel":"sms"}`)))
}

func TestDisabledPublisher(t *testing.T) {
	p := NewPublisher("", nil)
	assert.False(t, p.Enabled())
	assert.ErrorIs(t, p.PublishPaymentInitiated(context.Background(), PaymentInitiatedEvent{}), ErrDisabled)
	assert.ErrorIs(t, p.PublishNotificationRequested(context.Background(), NotificationRequestedEvent{}), ErrDisabled)
}
