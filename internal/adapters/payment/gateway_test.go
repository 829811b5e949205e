package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dumu-tech/restaurant-ops/internal/config"
	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPayment() *core.Payment {
	return &core.Payment{
		ID:      "pay-1",
		OrderID: "order-1",
		Method:  core.PaymentMethodTelebirr,
		Amount:  decimal.RequireFromString("675"),
		Status:  core.PaymentPending,
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Settings{
		Method:        core.PaymentMethodTelebirr,
		BaseURL:       server.URL + "/",
		APIKey:        "key-123",
		WebhookSecret: "whsec",
		CallbackURL:   "https://example.test/api/webhooks/payment/telebirr",
	})
}

func TestInitiateSendsCharge(t *testing.T) {
	var got ChargeRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments", r.URL.Path)
		assert.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"tb-778","status":"pending","reference":"pay-1"}`))
	})

	result, err := client.Initiate(context.Background(), testPayment())
	require.NoError(t, err)
	assert.True(t, result.Pending)
	assert.False(t, result.Success)
	assert.Equal(t, "tb-778", result.TransactionID)

	assert.Equal(t, "pay-1", got.Reference)
	assert.Equal(t, "675.00", got.Amount)
	assert.Equal(t, "ETB", got.Currency)
	assert.Equal(t, "telebirr", got.Method)
}

func TestVerifyAndRefund(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/payments/pay-1":
			assert.Equal(t, http.MethodGet, r.Method)
			w.Write([]byte(`{"id":"tb-778","status":"completed"}`))
		case "/payments/pay-1/refunds":
			var body RefundRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "100.50", body.Amount)
			w.Write([]byte(`{"id":"rf-1","status":"refunded"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	verified, err := client.Verify(context.Background(), testPayment())
	require.NoError(t, err)
	assert.True(t, verified.Success)

	refund, err := client.Refund(context.Background(), testPayment(), decimal.RequireFromString("100.5"))
	require.NoError(t, err)
	assert.True(t, refund.Success)
	assert.Equal(t, "rf-1", refund.TransactionID)
}

func TestDeclinesAndOutages(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantErr bool
		message string
	}{
		{"declined", http.StatusPaymentRequired, `{"status":"failed","message":"insufficient balance"}`, false, "insufficient balance"},
		{"failed status", http.StatusOK, `{"id":"x","status":"failed"}`, false, "failed"},
		{"server error", http.StatusBadGateway, `upstream down`, true, ""},
		{"garbage", http.StatusOK, `<html>`, true, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})
			result, err := client.Initiate(context.Background(), testPayment())
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, core.KindExternalGatewayError, core.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.False(t, result.Success)
			assert.False(t, result.Pending)
			assert.Equal(t, tc.message, result.Message)
		})
	}
}

func TestWebhookSignature(t *testing.T) {
	client := NewClient(Settings{Method: core.PaymentMethodCBE, WebhookSecret: "whsec"})
	body := []byte(`{"event_type":"payment.completed","resource":{"id":"cbe-1","status":"success","reference":"pay-1"}}`)

	assert.True(t, client.VerifyWebhook(Sign("whsec", body), body))
	assert.False(t, client.VerifyWebhook(Sign("other", body), body))
	assert.False(t, client.VerifyWebhook("md5=abc", body))
	assert.False(t, client.VerifyWebhook("sha256=zz", body))

	unsigned := NewClient(Settings{Method: core.PaymentMethodCBE})
	assert.False(t, unsigned.VerifyWebhook(Sign("", body), body))

	event, err := client.ParseWebhook(body)
	require.NoError(t, err)
	assert.Equal(t, "pay-1", event.PaymentID)
	assert.Equal(t, "cbe-1", event.TransactionID)
	assert.True(t, event.Success)

	_, err = client.ParseWebhook([]byte(`{"resource":{"status":"success"}}`))
	assert.Equal(t, core.KindValidationFailed, core.KindOf(err))
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{
		CBEBaseURL:      "https://cbe.test/",
		CBEAPIKey:       "cbe-key",
		TelebirrBaseURL: "https://telebirr.test",
	}
	methods := map[core.PaymentMethod]core.PaymentProcessor{}
	for _, p := range FromConfig(cfg) {
		methods[p.Method()] = p
	}
	assert.Len(t, methods, 3)
	assert.Contains(t, methods, core.PaymentMethodCash)
	assert.Contains(t, methods, core.PaymentMethodCBE)
	require.Contains(t, methods, core.PaymentMethodCBEWallet)
	assert.Equal(t, "https://cbe.test/wallet", methods[core.PaymentMethodCBEWallet].(*Client).baseURL)
}

func TestCashAlwaysSucceeds(t *testing.T) {
	p := testPayment()
	result, err := Cash{}.Initiate(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.TransactionID, "CASH-")

	p.TransactionID = "CASH-known"
	verified, err := Cash{}.Verify(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "CASH-known", verified.TransactionID)
}
