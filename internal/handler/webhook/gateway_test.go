package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/counterbook/counterbook/internal/billing"
	"github.com/counterbook/counterbook/internal/domain"
	"github.com/counterbook/counterbook/internal/service"
)

const testWebhookSecret = "whsec_test"

// mockSubscriptionService implements service.SubscriptionService for testing
type mockSubscriptionService struct {
	processEventFunc func(ctx context.Context, evt *billing.WebhookEvent) error
	processed        []*billing.WebhookEvent
}

func (m *mockSubscriptionService) ProcessEvent(ctx context.Context, evt *billing.WebhookEvent) error {
	m.processed = append(m.processed, evt)
	if m.processEventFunc != nil {
		return m.processEventFunc(ctx, evt)
	}
	return nil
}

// Stub implementations for other required interface methods
func (m *mockSubscriptionService) CreateMandate(ctx context.Context, plan domain.Plan) (*service.MandateDetail, error) {
	return nil, domain.Internal(nil, "mock", "not implemented")
}

func (m *mockSubscriptionService) VerifyMandate(ctx context.Context, params service.VerifyMandateParams) (string, error) {
	return "", domain.Internal(nil, "mock", "not implemented")
}

func (m *mockSubscriptionService) Cancel(ctx context.Context, accountID uuid.UUID) (*service.CancelResult, error) {
	return nil, domain.Internal(nil, "mock", "not implemented")
}

func (m *mockSubscriptionService) ListPayments(ctx context.Context, accountID uuid.UUID, limit int32) ([]domain.PaymentRecord, error) {
	return nil, domain.Internal(nil, "mock", "not implemented")
}

var _ service.SubscriptionService = (*mockSubscriptionService)(nil)

func signedRequest(t *testing.T, body []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, billing.ComputeSignature(testWebhookSecret, body))
	return req
}

func eventBody(t *testing.T, eventType, subscriptionID string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"event": eventType,
		"payload": map[string]interface{}{
			"subscription": map[string]interface{}{
				"id":     subscriptionID,
				"status": "active",
			},
		},
	})
	require.NoError(t, err)
	return body
}

func newTestHandler(svc service.SubscriptionService) *GatewayHandler {
	return NewGatewayHandler(svc, GatewayWebhookConfig{WebhookSecret: testWebhookSecret}, nil)
}

func TestHandleWebhook_ValidEventProcessed(t *testing.T) {
	svc := &mockSubscriptionService{}
	h := newTestHandler(svc)

	body := eventBody(t, billing.EventSubscriptionActivated, "sub_wh1")
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, signedRequest(t, body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success": true}`, rec.Body.String())

	require.Len(t, svc.processed, 1)
	assert.Equal(t, billing.EventSubscriptionActivated, svc.processed[0].Type)
	assert.Equal(t, "sub_wh1", svc.processed[0].Subscription.ID)
}

func TestHandleWebhook_InvalidSignatureRejected(t *testing.T) {
	svc := &mockSubscriptionService{}
	h := newTestHandler(svc)

	body := eventBody(t, billing.EventSubscriptionActivated, "sub_wh1")
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, "deadbeef")

	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.processed, "unauthenticated events must never reach the service")
}

func TestHandleWebhook_MissingSignatureRejected(t *testing.T) {
	svc := &mockSubscriptionService{}
	h := newTestHandler(svc)

	body := eventBody(t, billing.EventSubscriptionActivated, "sub_wh1")
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", bytes.NewReader(body))

	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.processed)
}

func TestHandleWebhook_TamperedBodyRejected(t *testing.T) {
	svc := &mockSubscriptionService{}
	h := newTestHandler(svc)

	body := eventBody(t, billing.EventSubscriptionActivated, "sub_wh1")
	sig := billing.ComputeSignature(testWebhookSecret, body)

	tampered := eventBody(t, billing.EventSubscriptionActivated, "sub_evil")
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", bytes.NewReader(tampered))
	req.Header.Set(SignatureHeader, sig)

	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.processed)
}

func TestHandleWebhook_UnknownEventAcknowledged(t *testing.T) {
	svc := &mockSubscriptionService{}
	h := newTestHandler(svc)

	body := eventBody(t, "subscription.paused", "sub_wh1")
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, signedRequest(t, body))

	// Signed but unknown: ack so the gateway stops retrying, never process.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, svc.processed)
}

func TestHandleWebhook_MalformedPayloadAcknowledged(t *testing.T) {
	svc := &mockSubscriptionService{}
	h := newTestHandler(svc)

	body := []byte(`{"event": "subscription.activated", "payload": {`)
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, signedRequest(t, body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, svc.processed)
}

func TestHandleWebhook_ProcessingFailureStillAcknowledged(t *testing.T) {
	svc := &mockSubscriptionService{
		processEventFunc: func(ctx context.Context, evt *billing.WebhookEvent) error {
			return domain.Internal(nil, "subscription.process", "status update failed")
		},
	}
	h := newTestHandler(svc)

	body := eventBody(t, billing.EventSubscriptionHalted, "sub_wh1")
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, signedRequest(t, body))

	// A retry would hit the same failure; redelivery storms are worse.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success": true}`, rec.Body.String())
	assert.Len(t, svc.processed, 1)
}

func TestHandleWebhook_MethodNotAllowed(t *testing.T) {
	svc := &mockSubscriptionService{}
	h := newTestHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/webhooks/gateway", nil)
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.processed)
}
