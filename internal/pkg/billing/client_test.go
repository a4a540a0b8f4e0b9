package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test"

func signPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestClient_ConstructEvent(t *testing.T) {
	c := NewClient("sk_test", testWebhookSecret, nil)
	payload := []byte(`{"id":"evt_9","object":"event","api_version":"2022-11-15","type":"invoice.payment_failed","data":{"object":{"id":"in_1","object":"invoice","subscription":"sub_9"}}}`)

	event, err := c.ConstructEvent(payload, signPayload(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, InvoiceFailed{ID: "evt_9", SubscriptionID: "sub_9"}, event)
}

func TestClient_ConstructEvent_BadSignature(t *testing.T) {
	c := NewClient("sk_test", testWebhookSecret, nil)
	payload := []byte(`{"id":"evt_9","object":"event","type":"invoice.payment_failed","data":{"object":{}}}`)

	_, err := c.ConstructEvent(payload, signPayload(payload, "whsec_other", time.Now()))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = c.ConstructEvent(payload, "")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestClient_GetSubscription(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/subscriptions/sub_123", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "sub_123",
			"object": "subscription",
			"status": "past_due",
			"current_period_end": 1700000000,
			"cancel_at_period_end": true,
			"items": {"object": "list", "data": [{"id": "si_1", "object": "subscription_item", "price": {"id": "price_abc", "object": "price"}}]}
		}`))
	}))
	defer server.Close()

	c := NewClient("sk_test", testWebhookSecret, NewBackends(server.URL))

	detail, err := c.GetSubscription(context.Background(), "sub_123")
	require.NoError(t, err)
	assert.Equal(t, "sub_123", detail.ID)
	assert.Equal(t, "price_abc", detail.PriceID)
	assert.True(t, detail.CancelAtPeriodEnd)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), detail.CurrentPeriodEnd)
	assert.Equal(t, "past_due", detail.Status)
	assert.False(t, detail.Active())
	assert.False(t, detail.Canceled())
}

func TestSubscriptionDetail_Status(t *testing.T) {
	assert.True(t, (&SubscriptionDetail{Status: "active"}).Active())
	assert.True(t, (&SubscriptionDetail{Status: "trialing"}).Active())
	assert.False(t, (&SubscriptionDetail{Status: "unpaid"}).Active())
	assert.True(t, (&SubscriptionDetail{Status: "canceled"}).Canceled())
	assert.False(t, (&SubscriptionDetail{Status: "canceled"}).Active())
}

func TestClient_CreateCheckoutSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "subscription", r.PostForm.Get("mode"))
		assert.Equal(t, "cus_1", r.PostForm.Get("customer"))
		assert.Equal(t, "price_abc", r.PostForm.Get("line_items[0][price]"))
		assert.Equal(t, "42", r.PostForm.Get("metadata[user_id]"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_1","object":"checkout.session","url":"https://checkout.example/cs_1"}`))
	}))
	defer server.Close()

	c := NewClient("sk_test", testWebhookSecret, NewBackends(server.URL))

	sess, err := c.CreateCheckoutSession(context.Background(), CheckoutParams{
		UserID:     42,
		CustomerID: "cus_1",
		PriceID:    "price_abc",
		SuccessURL: "http://app/dashboard?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  "http://app/dashboard",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_1", sess.ID)
	assert.Equal(t, "https://checkout.example/cs_1", sess.URL)
}

func TestClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such subscription"}}`))
	}))
	defer server.Close()

	c := NewClient("sk_test", testWebhookSecret, NewBackends(server.URL))

	_, err := c.GetSubscription(context.Background(), "sub_missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sub_missing")
}
