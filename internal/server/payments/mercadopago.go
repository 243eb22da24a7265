// Package payments talks to the Mercado Pago checkout API. The access token
// stays on the server; callers only ever see the redirect URL of a preference.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/psicopedagogiando/tienda/internal/server/config"
	"github.com/psicopedagogiando/tienda/internal/server/pricing"
	"github.com/sethvargo/go-retry"
)

// ConfirmPath is where the gateway sends the buyer back after paying.
const ConfirmPath = "/compras/confirmar"

var (
	ErrNotConfigured = errors.New("payment gateway not configured")
	ErrGateway       = errors.New("payment gateway error")
)

// PreferenceRequest describes the single line item of a checkout.
type PreferenceRequest struct {
	MaterialID string
	Title      string
	PriceCents int64
	UserID     string
}

// Preference is the gateway's answer: where to send the buyer.
type Preference struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

type item struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	UnitPrice  float64 `json:"unit_price"`
	Quantity   int     `json:"quantity"`
	CurrencyID string  `json:"currency_id"`
}

type backURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type preferenceBody struct {
	Items             []item            `json:"items"`
	BackURLs          backURLs          `json:"back_urls"`
	AutoReturn        string            `json:"auto_return"`
	ExternalReference string            `json:"external_reference"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

type MercadoPagoClient struct {
	baseURL    string
	token      string
	currency   string
	returnURL  string
	httpClient *http.Client

	maxRetries uint64
	retryBase  time.Duration
	newKey     func() string
}

func NewMercadoPagoClient(cfg *config.Config, httpClient *http.Client) *MercadoPagoClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &MercadoPagoClient{
		baseURL:    strings.TrimRight(cfg.MercadoPagoBaseURL, "/"),
		token:      cfg.MercadoPagoAccessToken,
		currency:   cfg.Currency,
		returnURL:  strings.TrimRight(cfg.SiteOrigin, "/") + ConfirmPath,
		httpClient: httpClient,
		maxRetries: 2,
		retryBase:  200 * time.Millisecond,
		newKey:     uuid.NewString,
	}
}

// CreatePreference registers a checkout preference and returns its redirect
// URL. Transport failures and 5xx answers are retried with the same
// idempotency key so the gateway never creates two preferences.
func (c *MercadoPagoClient) CreatePreference(ctx context.Context, req PreferenceRequest) (Preference, error) {
	if c.token == "" {
		return Preference{}, ErrNotConfigured
	}

	body, err := json.Marshal(preferenceBody{
		Items: []item{{
			ID:         req.MaterialID,
			Title:      req.Title,
			UnitPrice:  pricing.Units(req.PriceCents),
			Quantity:   1,
			CurrencyID: c.currency,
		}},
		BackURLs:          backURLs{Success: c.returnURL, Failure: c.returnURL, Pending: c.returnURL},
		AutoReturn:        "approved",
		ExternalReference: req.MaterialID,
		Metadata:          map[string]string{"user_id": req.UserID},
	})
	if err != nil {
		return Preference{}, fmt.Errorf("encode preference: %w", err)
	}

	key := c.newKey()
	var pref Preference

	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.retryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		p, err := c.post(ctx, key, body)
		if err != nil {
			return err
		}
		pref = p
		return nil
	})
	if err != nil {
		return Preference{}, err
	}
	if pref.InitPoint == "" {
		return Preference{}, fmt.Errorf("%w: empty init_point", ErrGateway)
	}
	return pref, nil
}

func (c *MercadoPagoClient) post(ctx context.Context, idempotencyKey string, body []byte) (Preference, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/checkout/preferences", bytes.NewReader(body))
	if err != nil {
		return Preference{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("X-Idempotency-Key", idempotencyKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Preference{}, retry.RetryableError(fmt.Errorf("%w: %v", ErrGateway, err))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode >= 500 {
		return Preference{}, retry.RetryableError(fmt.Errorf("%w: status %d", ErrGateway, resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Preference{}, fmt.Errorf("%w: status %d: %s", ErrGateway, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var pref Preference
	if err := json.Unmarshal(raw, &pref); err != nil {
		return Preference{}, fmt.Errorf("%w: decode: %v", ErrGateway, err)
	}
	return pref, nil
}
