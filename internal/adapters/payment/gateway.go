package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/config"
	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/shopspring/decimal"
)

// Currency is the currency every gateway is charged in
const Currency = "ETB"

// Settings configures one HTTP payment gateway
type Settings struct {
	Method        core.PaymentMethod
	BaseURL       string
	APIKey        string
	WebhookSecret string
	CallbackURL   string
}

// Client talks to an HTTP payment gateway (CBE, telebirr, CBE wallet or card acquirer)
type Client struct {
	method        core.PaymentMethod
	baseURL       string
	apiKey        string
	webhookSecret string
	callbackURL   string
	httpClient    *http.Client
}

// NewClient creates a new gateway client
func NewClient(s Settings) *Client {
	return &Client{
		method:        s.Method,
		baseURL:       strings.TrimRight(s.BaseURL, "/"),
		apiKey:        s.APIKey,
		webhookSecret: s.WebhookSecret,
		callbackURL:   s.CallbackURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FromConfig builds the processors for every configured gateway. Cash is always
// available; a gateway without a base URL or API key is left out.
func FromConfig(cfg *config.Config) []core.PaymentProcessor {
	walletURL := ""
	if cfg.CBEBaseURL != "" {
		walletURL = strings.TrimRight(cfg.CBEBaseURL, "/") + "/wallet"
	}
	candidates := []Settings{
		{Method: core.PaymentMethodCBE, BaseURL: cfg.CBEBaseURL, APIKey: cfg.CBEAPIKey, WebhookSecret: cfg.CBEWebhookSecret},
		{Method: core.PaymentMethodCBEWallet, BaseURL: walletURL, APIKey: cfg.CBEAPIKey, WebhookSecret: cfg.CBEWebhookSecret},
		{Method: core.PaymentMethodTelebirr, BaseURL: cfg.TelebirrBaseURL, APIKey: cfg.TelebirrAPIKey, WebhookSecret: cfg.TelebirrWebhookSecret},
		{Method: core.PaymentMethodCard, BaseURL: cfg.CardBaseURL, APIKey: cfg.CardAPIKey, WebhookSecret: cfg.CardWebhookSecret},
	}

	processors := []core.PaymentProcessor{Cash{}}
	for _, s := range candidates {
		if s.BaseURL == "" || s.APIKey == "" {
			continue
		}
		if cfg.PaymentCallbackURL != "" {
			s.CallbackURL = strings.TrimRight(cfg.PaymentCallbackURL, "/") + "/" + string(s.Method)
		}
		processors = append(processors, NewClient(s))
	}
	return processors
}

func (c *Client) Method() core.PaymentMethod {
	return c.method
}

// ChargeRequest represents the gateway charge request payload
type ChargeRequest struct {
	Reference   string `json:"reference"`
	OrderID     string `json:"order_id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Method      string `json:"method"`
	CallbackURL string `json:"callback_url,omitempty"`
}

// RefundRequest represents the gateway refund request payload
type RefundRequest struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// GatewayResponse is the gateway's view of a charge or refund
type GatewayResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Reference string `json:"reference,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Initiate starts a charge. Most gateways answer "pending" and confirm by webhook.
func (c *Client) Initiate(ctx context.Context, p *core.Payment) (*core.GatewayResult, error) {
	payload := ChargeRequest{
		Reference:   p.ID,
		OrderID:     p.OrderID,
		Amount:      p.Amount.StringFixed(2),
		Currency:    Currency,
		Method:      string(c.method),
		CallbackURL: c.callbackURL,
	}
	return c.do(ctx, http.MethodPost, "/payments", payload)
}

// Verify looks a charge up by our payment id
func (c *Client) Verify(ctx context.Context, p *core.Payment) (*core.GatewayResult, error) {
	return c.do(ctx, http.MethodGet, "/payments/"+p.ID, nil)
}

func (c *Client) Refund(ctx context.Context, p *core.Payment, amount decimal.Decimal) (*core.GatewayResult, error) {
	payload := RefundRequest{Amount: amount.StringFixed(2), Currency: Currency}
	return c.do(ctx, http.MethodPost, "/payments/"+p.ID+"/refunds", payload)
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) (*core.GatewayResult, error) {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s request: %w", c.method, err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s request: %w", c.method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, core.Gateway(fmt.Sprintf("%s API error: status %d", c.method, resp.StatusCode), fmt.Errorf("body: %s", string(raw)))
	}

	var gr GatewayResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return nil, core.Gateway(fmt.Sprintf("%s returned an unreadable response", c.method), err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &core.GatewayResult{Response: string(raw), Message: declineMessage(gr, resp.StatusCode)}, nil
	}
	return resultOf(gr, string(raw)), nil
}

func resultOf(gr GatewayResponse, raw string) *core.GatewayResult {
	result := &core.GatewayResult{TransactionID: gr.ID, Response: raw, Message: gr.Message}
	switch strings.ToLower(gr.Status) {
	case "success", "succeeded", "completed", "paid", "refunded":
		result.Success = true
	case "pending", "processing", "initiated", "accepted":
		result.Pending = true
	default:
		if result.Message == "" {
			result.Message = gr.Status
		}
	}
	return result
}

func declineMessage(gr GatewayResponse, status int) string {
	if gr.Message != "" {
		return gr.Message
	}
	return fmt.Sprintf("status %d", status)
}

// VerifyWebhook verifies a "sha256=<hex>" signature over the raw webhook body
func (c *Client) VerifyWebhook(signature string, payload []byte) bool {
	if c.webhookSecret == "" {
		return false
	}
	parts := strings.SplitN(signature, "=", 2)
	if len(parts) != 2 || parts[0] != "sha256" {
		return false
	}

	expectedSig, err := hex.DecodeString(parts[1])
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(payload)
	return hmac.Equal(expectedSig, mac.Sum(nil))
}

// Sign returns the signature VerifyWebhook accepts for payload
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// WebhookEvent is a parsed gateway callback
type WebhookEvent struct {
	PaymentID     string
	TransactionID string
	Status        string
	Success       bool
	Pending       bool
	Message       string
	Raw           string
}

// WebhookPayload represents the callback body sent by the gateways
type WebhookPayload struct {
	EventType string          `json:"event_type"`
	Resource  GatewayResponse `json:"resource"`
}

// ParseWebhook extracts the payment outcome from a verified callback body
func (c *Client) ParseWebhook(payload []byte) (*WebhookEvent, error) {
	var webhook WebhookPayload
	if err := json.Unmarshal(payload, &webhook); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}
	if webhook.Resource.Reference == "" {
		return nil, core.Validation("reference", "webhook carries no payment reference")
	}

	result := resultOf(webhook.Resource, string(payload))
	return &WebhookEvent{
		PaymentID:     webhook.Resource.Reference,
		TransactionID: webhook.Resource.ID,
		Status:        webhook.Resource.Status,
		Success:       result.Success,
		Pending:       result.Pending,
		Message:       result.Message,
		Raw:           string(payload),
	}, nil
}
