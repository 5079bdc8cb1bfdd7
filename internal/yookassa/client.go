package yookassa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/digkill/aitrends-backend/internal/config"
)

// APIError is a gateway-level rejection with the YooKassa description kept
// verbatim.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("yookassa error: status=%d code=%s description=%s", e.StatusCode, e.Code, e.Description)
}

type Client struct {
	shopID     string
	secretKey  string
	baseURL    string
	returnURL  string
	httpClient *http.Client
}

// Payment is the subset of the gateway payment object we care about.
type Payment struct {
	ID           string       `json:"id"`
	Status       string       `json:"status"`
	Confirmation Confirmation `json:"confirmation"`
	Amount       Amount       `json:"amount"`
}

type Confirmation struct {
	Type string `json:"type"`
	URL  string `json:"confirmation_url"`
}

type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		shopID:    cfg.YooKassaShopID,
		secretKey: cfg.YooKassaSecretKey,
		baseURL:   strings.TrimRight(cfg.YooKassaBaseURL, "/"),
		returnURL: cfg.YooKassaReturnURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreatePayment registers a redirect payment with the gateway. idemKey keeps
// gateway-side retries from creating duplicate payment objects.
func (c *Client) CreatePayment(ctx context.Context, idemKey string, tgid int64, planCode string, tokens, amount decimal.Decimal, currency string) (*Payment, error) {
	payload := map[string]any{
		"amount": map[string]string{
			"value":    amount.StringFixed(2),
			"currency": currency,
		},
		"capture": true,
		"confirmation": map[string]string{
			"type":       "redirect",
			"return_url": c.returnURL,
		},
		"description": fmt.Sprintf("AI Trends: %s токенов (%s)", tokens.String(), planCode),
		"metadata": map[string]string{
			"tgid":   fmt.Sprintf("%d", tgid),
			"plan":   planCode,
			"tokens": tokens.String(),
		},
		"receipt": receipt(tgid, tokens, amount, currency),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payment: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build yookassa request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", idemKey)
	req.SetBasicAuth(c.shopID, c.secretKey)

	payment, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if payment.ID == "" || payment.Confirmation.URL == "" {
		return nil, fmt.Errorf("invalid yookassa response (missing id or confirmation url)")
	}
	if payment.Status == "" {
		payment.Status = "pending"
	}
	return payment, nil
}

// FindPayment queries the gateway for the current state of a payment.
func (c *Client) FindPayment(ctx context.Context, paymentID string) (*Payment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/payments/"+paymentID, nil)
	if err != nil {
		return nil, fmt.Errorf("build yookassa request: %w", err)
	}
	req.SetBasicAuth(c.shopID, c.secretKey)
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*Payment, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yookassa request: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read yookassa response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		}
		_ = json.Unmarshal(rawBody, &apiErr)
		return nil, &APIError{StatusCode: resp.StatusCode, Code: apiErr.Code, Description: apiErr.Description}
	}

	var payment Payment
	if err := json.Unmarshal(rawBody, &payment); err != nil {
		return nil, fmt.Errorf("decode yookassa response: %w", err)
	}
	return &payment, nil
}

// receipt builds the fiscal receipt the gateway requires for RU payments.
func receipt(tgid int64, tokens, amount decimal.Decimal, currency string) map[string]any {
	return map[string]any{
		"customer": map[string]string{
			"email": fmt.Sprintf("user%d@ai-trends.app", tgid),
		},
		"items": []map[string]any{
			{
				"description": fmt.Sprintf("Пополнение %s токенов", tokens.String()),
				"amount": map[string]string{
					"value":    amount.StringFixed(2),
					"currency": currency,
				},
				"quantity":        "1.0",
				"vat_code":        1,
				"payment_subject": "service",
				"payment_mode":    "full_payment",
			},
		},
		"tax_system_code": 1,
	}
}
