package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWebhookEvent_Charged(t *testing.T) {
	raw := []byte(`{
		"event": "subscription.charged",
		"payload": {
			"subscription": {"id": "sub_001", "status": "active", "current_end": 1756512000},
			"payment": {"id": "pay_001", "amount": 99900, "currency": "INR", "created_at": 1753833600}
		}
	}`)

	evt, err := ParseWebhookEvent(raw)
	require.NoError(t, err)

	assert.Equal(t, EventSubscriptionCharged, evt.Type)
	assert.Equal(t, "sub_001", evt.Subscription.ID)
	assert.Equal(t, time.Unix(1756512000, 0).UTC(), evt.Subscription.CurrentEnd)
	require.NotNil(t, evt.Payment)
	assert.Equal(t, "pay_001", evt.Payment.ID)
	assert.Equal(t, int64(99900), evt.Payment.AmountCents)
	assert.True(t, evt.IsChargeEvent())
	assert.Equal(t, string(raw), string(evt.Raw))
}

func TestParseWebhookEvent_ChargeFailedWithoutPayment(t *testing.T) {
	// Failure events delivered before the gateway allocates a payment id
	// carry only the subscription entity.
	raw := []byte(`{
		"event": "subscription.charge_failed",
		"payload": {"subscription": {"id": "sub_002", "status": "active"}}
	}`)

	evt, err := ParseWebhookEvent(raw)
	require.NoError(t, err)

	assert.Equal(t, EventSubscriptionChargeFailed, evt.Type)
	assert.Equal(t, "sub_002", evt.Subscription.ID)
	assert.Nil(t, evt.Payment)
	assert.True(t, evt.IsChargeEvent())
}

func TestParseWebhookEvent_MandateLifecycle(t *testing.T) {
	for _, eventType := range []string{
		EventSubscriptionAuthenticated,
		EventSubscriptionActivated,
		EventSubscriptionCancelled,
		EventSubscriptionHalted,
	} {
		t.Run(eventType, func(t *testing.T) {
			raw := []byte(`{"event": "` + eventType + `", "payload": {"subscription": {"id": "sub_003"}}}`)

			evt, err := ParseWebhookEvent(raw)
			require.NoError(t, err)
			assert.Equal(t, eventType, evt.Type)
			assert.False(t, evt.IsChargeEvent())
		})
	}
}

func TestParseWebhookEvent_FailsClosed(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{
			name:    "unknown event type",
			raw:     `{"event": "order.paid", "payload": {"subscription": {"id": "sub_1"}}}`,
			wantErr: ErrUnknownEvent,
		},
		{
			name:    "not json",
			raw:     `--- definitely not json ---`,
			wantErr: ErrMalformedEvent,
		},
		{
			name:    "missing subscription",
			raw:     `{"event": "subscription.activated", "payload": {}}`,
			wantErr: ErrMalformedEvent,
		},
		{
			name:    "empty subscription id",
			raw:     `{"event": "subscription.charged", "payload": {"subscription": {"id": ""}}}`,
			wantErr: ErrMalformedEvent,
		},
		{
			name:    "payload wrong shape",
			raw:     `{"event": "subscription.charged", "payload": "a string"}`,
			wantErr: ErrMalformedEvent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt, err := ParseWebhookEvent([]byte(tt.raw))
			assert.Nil(t, evt)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
