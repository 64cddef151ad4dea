package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWaveCallback(t *testing.T) {
	cb, err := ParseCallback([]byte(`{"type":"checkout.session.completed","data":{"id":"cos-1","client_reference":"tx-1","payment_status":"succeeded"}}`))
	require.NoError(t, err)
	assert.Equal(t, Callback{Reference: "tx-1", Status: "succeeded"}, cb)

	cb, err = ParseCallback([]byte(`{"type":"checkout.session.payment_failed","data":{"id":"cos-2"}}`))
	require.NoError(t, err)
	assert.Equal(t, Callback{Reference: "cos-2", Status: "failed"}, cb)
}

func TestParseOrangeCallback(t *testing.T) {
	cb, err := ParseCallback([]byte(`{"status":"SUCCESS","qrId":"qr-9","metadata":{"transaction_id":"tx-9"}}`))
	require.NoError(t, err)
	assert.Equal(t, Callback{Reference: "tx-9", Status: "succeeded"}, cb)
}

func TestParseCallbackRejects(t *testing.T) {
	_, err := ParseCallback([]byte(`{"status":"PENDING","reference":"tx-1"}`))
	assert.ErrorIs(t, err, ErrUnknownStatus)

	_, err = ParseCallback([]byte(`{"status":"SUCCESS"}`))
	assert.Error(t, err)

	_, err = ParseCallback([]byte(`nope`))
	assert.Error(t, err)
}
