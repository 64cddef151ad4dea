package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/property-rental-api/internal/config"
)

func TestCanonical(t *testing.T) {
	cases := map[string]string{
		"wave":         "wave",
		"WAVE":         "wave",
		"om":           "orange_money",
		"orange":       "orange_money",
		"Orange_Money": "orange_money",
		"orangemoney":  "orange_money",
		"paypal":       "",
		"":             "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Canonical(in), in)
	}
}

func TestAmountString(t *testing.T) {
	assert.Equal(t, "150000", amountString(decimal.RequireFromString("150000.00"), "XOF"))
	assert.Equal(t, "12.50", amountString(decimal.RequireFromString("12.5"), "EUR"))
}

func checkoutReq() CheckoutRequest {
	return CheckoutRequest{
		TransactionID: "tx-1",
		InvoiceID:     7,
		Amount:        decimal.NewFromInt(150000),
		Currency:      "XOF",
		Phone:         "+221771234567",
		Reference:     "INV-INV/2026/00007",
		SuccessURL:    "https://pay.example.com/facture-magasin?transaction=tx-1",
		CancelURL:     "https://pay.example.com/facture-magasin?transaction=tx-1",
	}
}

func TestWaveCheckout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer wave-key", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "150000", body["amount"])
		assert.Equal(t, "XOF", body["currency"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"cos-1","checkout_status":"open","payment_status":"processing","wave_launch_url":"https://pay.wave.com/c/cos-1"}`))
	}))
	defer srv.Close()

	p := NewWave(config.WaveConfig{BaseURL: srv.URL + "/", APIKey: "wave-key", Timeout: time.Second}, nil)
	s, err := p.Checkout(context.Background(), checkoutReq())
	require.NoError(t, err)
	assert.Equal(t, "cos-1", s.SessionID)
	assert.Equal(t, "https://pay.wave.com/c/cos-1", s.PaymentURL)
	assert.Equal(t, "pending", s.Status)
	assert.Equal(t, "open", s.Extra["checkout_status"])
	assert.NotEmpty(t, s.Raw)
}

func TestWaveFallsBackToCheckoutURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"cos-2","checkout_url":"https://checkout.wave.com/cos-2"}`))
	}))
	defer srv.Close()

	p := NewWave(config.WaveConfig{BaseURL: srv.URL, APIKey: "k"}, srv.Client())
	s, err := p.Checkout(context.Background(), checkoutReq())
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.wave.com/cos-2", s.PaymentURL)
}

func TestWaveProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":"request-validation-error","message":"amount too small"}`))
	}))
	defer srv.Close()

	p := NewWave(config.WaveConfig{BaseURL: srv.URL, APIKey: "k"}, srv.Client())
	_, err := p.Checkout(context.Background(), checkoutReq())
	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusUnprocessableEntity, perr.Status)
	assert.Equal(t, "amount too small", perr.Message)
}

func TestWaveWithoutKey(t *testing.T) {
	p := NewWave(config.WaveConfig{BaseURL: "http://unused"}, nil)
	_, err := p.Checkout(context.Background(), checkoutReq())
	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Contains(t, perr.Message, "not configured")
}

func TestOrangeCheckoutCachesToken(t *testing.T) {
	var tokenCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "cid", r.PostForm.Get("client_id"))
		_, _ = w.Write([]byte(`{"access_token":"om-token","expires_in":300}`))
	})
	mux.HandleFunc("/api/eWallet/v4/qrcode", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer om-token", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "M123", body["code"])
		assert.EqualValues(t, 900, body["validity"])
		_, _ = w.Write([]byte(`{
			"qrId":"qr-9","deepLink":"https://om.sn/p/qr-9","qrCode":"iVBOR",
			"shortLink":"https://om.sn/s/9","validity":900,
			"deepLinks":{"MAXIT":"sameaosnapp://pay?qr-9","OM":"orangemoney://pay?qr-9"},
			"validFor":{"startDateTime":"2026-01-01T10:00:00Z","endDateTime":"2026-01-01T10:15:00Z"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewOrange(config.OrangeConfig{
		BaseURL: srv.URL, ClientID: "cid", ClientSecret: "secret",
		MerchantCode: "M123", MerchantName: "Rental", Validity: 15 * time.Minute,
	}, srv.Client())

	s, err := p.Checkout(context.Background(), checkoutReq())
	require.NoError(t, err)
	assert.Equal(t, "qr-9", s.SessionID)
	assert.Equal(t, "https://om.sn/p/qr-9", s.PaymentURL)
	assert.Equal(t, "orangemoney://pay?qr-9", s.Extra["deep_link_om"])
	assert.Equal(t, "sameaosnapp://pay?qr-9", s.Extra["deep_link_maxit"])
	assert.Equal(t, "iVBOR", s.Extra["qr_code_base64"])
	assert.Equal(t, "900", s.Extra["validity_seconds"])

	_, err = p.Checkout(context.Background(), checkoutReq())
	require.NoError(t, err)
	assert.EqualValues(t, 1, tokenCalls.Load())
}

func TestOrangeTokenFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error_description":"bad client credentials"}`))
	}))
	defer srv.Close()

	p := NewOrange(config.OrangeConfig{BaseURL: srv.URL, ClientID: "cid", MerchantCode: "M"}, srv.Client())
	_, err := p.Checkout(context.Background(), checkoutReq())
	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "bad client credentials", perr.Message)
}
