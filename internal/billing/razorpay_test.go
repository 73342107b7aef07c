package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) RazorpayConfig {
	return RazorpayConfig{
		KeyID:         "rzp_test_abc",
		KeySecret:     "secret",
		WebhookSecret: "whsec",
		BaseURL:       baseURL,
		Timeout:       5 * time.Second,
	}
}

func TestRazorpayConfig_Validate(t *testing.T) {
	cfg := testConfig("")
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.IsTestMode())

	missing := cfg
	missing.KeySecret = ""
	assert.ErrorIs(t, missing.Validate(), ErrMissingCredentials)

	noWebhook := cfg
	noWebhook.WebhookSecret = ""
	assert.Error(t, noWebhook.Validate())
}

func TestRazorpayProvider_CreateMandate(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/subscriptions", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "rzp_test_abc", user)
		assert.Equal(t, "secret", pass)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":         "sub_100",
			"status":     "created",
			"plan_id":    "plan_pro",
			"start_at":   1756512000,
			"created_at": 1753833600,
		})
	}))
	defer srv.Close()

	provider, err := NewRazorpayProvider(testConfig(srv.URL))
	require.NoError(t, err)

	startAt := time.Unix(1756512000, 0).UTC()
	mandate, err := provider.CreateMandate(context.Background(), CreateMandateParams{
		PlanID:          "plan_pro",
		TotalCount:      1000,
		StartAt:         startAt,
		AuthAmountCents: 100,
		Currency:        "INR",
	})
	require.NoError(t, err)

	assert.Equal(t, "sub_100", mandate.ID)
	assert.Equal(t, "created", mandate.Status)
	assert.Equal(t, "INR", mandate.Currency)
	assert.Equal(t, int64(100), mandate.AuthAmountCents)
	assert.Equal(t, startAt, mandate.StartAt)

	assert.Equal(t, "plan_pro", gotBody["plan_id"])
	assert.Equal(t, float64(1000), gotBody["total_count"])
	addons, ok := gotBody["addons"].([]interface{})
	require.True(t, ok)
	require.Len(t, addons, 1)
}

func TestRazorpayProvider_RefundPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/pay_42/refund", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":         "rfnd_1",
			"payment_id": "pay_42",
			"amount":     100,
			"status":     "processed",
			"created_at": 1753833600,
		})
	}))
	defer srv.Close()

	provider, err := NewRazorpayProvider(testConfig(srv.URL))
	require.NoError(t, err)

	refund, err := provider.RefundPayment(context.Background(), RefundParams{PaymentID: "pay_42", AmountCents: 100})
	require.NoError(t, err)

	assert.Equal(t, "rfnd_1", refund.ID)
	assert.Equal(t, "pay_42", refund.PaymentID)
	assert.Equal(t, "processed", refund.Status)
	assert.Equal(t, "1", refund.Amount.String())
}

func TestRazorpayProvider_CancelSubscription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscriptions/sub_7/cancel", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(1), body["cancel_at_cycle_end"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":          "sub_7",
			"status":      "active",
			"current_end": 1756512000,
		})
	}))
	defer srv.Close()

	provider, err := NewRazorpayProvider(testConfig(srv.URL))
	require.NoError(t, err)

	sub, err := provider.CancelSubscription(context.Background(), CancelSubscriptionParams{
		SubscriptionID: "sub_7",
		AtCycleEnd:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, "sub_7", sub.ID)
	assert.Equal(t, "active", sub.Status)
	assert.Equal(t, time.Unix(1756512000, 0).UTC(), sub.CurrentEnd)
}

func TestRazorpayProvider_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{
				"code":        "BAD_REQUEST_ERROR",
				"description": "The plan id provided does not exist",
			},
		})
	}))
	defer srv.Close()

	provider, err := NewRazorpayProvider(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = provider.CreateMandate(context.Background(), CreateMandateParams{PlanID: "plan_nope"})
	require.Error(t, err)

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusBadRequest, gwErr.StatusCode)
	assert.Equal(t, "BAD_REQUEST_ERROR", gwErr.Code)
	assert.Contains(t, gwErr.Description, "plan id")
	assert.False(t, gwErr.IsTemporary())
}
