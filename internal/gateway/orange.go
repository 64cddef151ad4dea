package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/property-rental-api/internal/config"
)

// Orange opens QR-code checkouts on the Orange Money API. The OAuth
// client-credentials token is cached until shortly before it expires.
type Orange struct {
	cfg    config.OrangeConfig
	base   string
	client *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time
	now      func() time.Time
}

func NewOrange(cfg config.OrangeConfig, client *http.Client) *Orange {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Orange{cfg: cfg, base: strings.TrimRight(cfg.BaseURL, "/"), client: client, now: time.Now}
}

func (o *Orange) Name() string { return "orange_money" }

func (o *Orange) accessToken(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.token != "" && o.now().Before(o.tokenExp) {
		return o.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {o.cfg.ClientID},
		"client_secret": {o.cfg.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.base+"/oauth/v1/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("orange token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", providerError(o.Name(), resp)
	}
	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("orange token: decode: %w", err)
	}
	if tok.AccessToken == "" {
		return "", &Error{Provider: o.Name(), Status: resp.StatusCode, Message: "empty access token"}
	}
	ttl := time.Duration(tok.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	o.token = tok.AccessToken
	o.tokenExp = o.now().Add(ttl - 30*time.Second)
	return o.token, nil
}

type orangeQR struct {
	QRID      string `json:"qrId"`
	DeepLink  string `json:"deepLink"`
	QRCode    string `json:"qrCode"`
	ShortLink string `json:"shortLink"`
	Validity  int    `json:"validity"`
	DeepLinks struct {
		MAXIT string `json:"MAXIT"`
		OM    string `json:"OM"`
	} `json:"deepLinks"`
	ValidFor struct {
		Start string `json:"startDateTime"`
		End   string `json:"endDateTime"`
	} `json:"validFor"`
}

// Checkout creates a QR code with POST /api/eWallet/v4/qrcode.
func (o *Orange) Checkout(ctx context.Context, req CheckoutRequest) (Session, error) {
	if o.cfg.ClientID == "" || o.cfg.MerchantCode == "" {
		return Session{}, &Error{Provider: o.Name(), Message: "orange money is not configured"}
	}
	token, err := o.accessToken(ctx)
	if err != nil {
		return Session{}, err
	}
	value, _ := req.Amount.Round(0).Float64()
	payload := map[string]any{
		"amount":             map[string]any{"unit": req.Currency, "value": value},
		"callbackSuccessUrl": req.SuccessURL,
		"callbackCancelUrl":  req.CancelURL,
		"code":               o.cfg.MerchantCode,
		"name":               o.cfg.MerchantName,
		"validity":           int(o.cfg.Validity / time.Second),
		"metadata": map[string]string{
			"transaction_id": req.TransactionID,
			"invoice_id":     strconv.FormatUint(req.InvoiceID, 10),
			"reference":      req.Reference,
			"msisdn":         req.Phone,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Session{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.base+"/api/eWallet/v4/qrcode", bytes.NewReader(body))
	if err != nil {
		return Session{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")
	if o.cfg.CallbackURL != "" {
		httpReq.Header.Set("X-Callback-Url", o.cfg.CallbackURL)
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return Session{}, fmt.Errorf("orange qrcode: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return Session{}, providerError(o.Name(), resp)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Session{}, fmt.Errorf("orange qrcode: read body: %w", err)
	}
	var qr orangeQR
	if err := json.Unmarshal(raw, &qr); err != nil {
		return Session{}, fmt.Errorf("orange qrcode: decode: %w", err)
	}
	return Session{
		SessionID:  qr.QRID,
		PaymentURL: qr.DeepLink,
		Status:     "pending",
		Extra: map[string]string{
			"deep_link":        qr.DeepLink,
			"deep_link_om":     qr.DeepLinks.OM,
			"deep_link_maxit":  qr.DeepLinks.MAXIT,
			"short_link":       qr.ShortLink,
			"qr_code_base64":   qr.QRCode,
			"qr_id":            qr.QRID,
			"validity_seconds": strconv.Itoa(qr.Validity),
			"valid_from":       qr.ValidFor.Start,
			"valid_until":      qr.ValidFor.End,
		},
		Raw: raw,
	}, nil
}
