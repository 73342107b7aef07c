package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/counterbook/counterbook/internal/billing"
	"github.com/counterbook/counterbook/internal/domain"
	"github.com/counterbook/counterbook/internal/handler"
	"github.com/counterbook/counterbook/internal/router"
	"github.com/counterbook/counterbook/internal/service"
)

type mockAccountStore struct {
	bySession map[string]*domain.Account
}

func (m *mockAccountStore) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return nil, domain.NotFound("account.get", "account", id.String())
}

func (m *mockAccountStore) GetAccountBySubscriptionID(ctx context.Context, subscriptionID string) (*domain.Account, error) {
	return nil, domain.NotFound("account.get", "subscription", subscriptionID)
}

func (m *mockAccountStore) GetAccountBySessionToken(ctx context.Context, token string) (*domain.Account, error) {
	if account, ok := m.bySession[token]; ok {
		return account, nil
	}
	return nil, domain.Unauthorized("account.session", "invalid or expired session")
}

func (m *mockAccountStore) UpdateSubscriptionStatus(ctx context.Context, params domain.UpdateSubscriptionStatusParams) error {
	return nil
}

var _ domain.AccountStore = (*mockAccountStore)(nil)

type stubSubscriptionService struct {
	listed    bool
	cancelled bool
}

func (s *stubSubscriptionService) CreateMandate(ctx context.Context, plan domain.Plan) (*service.MandateDetail, error) {
	return &service.MandateDetail{MandateID: "sub_stub"}, nil
}

func (s *stubSubscriptionService) VerifyMandate(ctx context.Context, params service.VerifyMandateParams) (string, error) {
	return params.MandateID, nil
}

func (s *stubSubscriptionService) ProcessEvent(ctx context.Context, evt *billing.WebhookEvent) error {
	return nil
}

func (s *stubSubscriptionService) Cancel(ctx context.Context, accountID uuid.UUID) (*service.CancelResult, error) {
	s.cancelled = true
	return &service.CancelResult{GatewayStatus: "active"}, nil
}

func (s *stubSubscriptionService) ListPayments(ctx context.Context, accountID uuid.UUID, limit int32) ([]domain.PaymentRecord, error) {
	s.listed = true
	return nil, nil
}

var _ service.SubscriptionService = (*stubSubscriptionService)(nil)

func billingRouter(t *testing.T, svc service.SubscriptionService, accounts domain.AccountStore) *router.Router {
	t.Helper()
	r := router.New()
	RegisterBillingRoutes(r, BillingDeps{
		Handler:  handler.NewBillingHandler(svc),
		Accounts: accounts,
	})
	return r
}

func sessionRequest(method, path, token string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: handler.SessionCookieName, Value: token})
	}
	return req
}

func TestBillingRoutes_PaymentsRequiresActiveSubscription(t *testing.T) {
	tests := []struct {
		name       string
		status     domain.SubscriptionStatus
		wantCode   int
		wantListed bool
	}{
		{"active owner admitted", domain.SubscriptionActive, http.StatusOK, true},
		{"halted owner blocked", domain.SubscriptionHalted, http.StatusForbidden, false},
		{"cancelled owner blocked", domain.SubscriptionCancelled, http.StatusForbidden, false},
		{"expired owner blocked", domain.SubscriptionExpired, http.StatusForbidden, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubSubscriptionService{}
			store := &mockAccountStore{bySession: map[string]*domain.Account{
				"tok": {
					ID:                 uuid.New(),
					Role:               domain.RoleOwner,
					SubscriptionStatus: tt.status,
				},
			}}

			rec := httptest.NewRecorder()
			billingRouter(t, svc, store).ServeHTTP(rec, sessionRequest(http.MethodGet, "/api/billing/payments", "tok"))

			require.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantListed, svc.listed)
		})
	}
}

func TestBillingRoutes_BlockedOwnerCanStillCancel(t *testing.T) {
	svc := &stubSubscriptionService{}
	store := &mockAccountStore{bySession: map[string]*domain.Account{
		"tok": {
			ID:                     uuid.New(),
			Role:                   domain.RoleOwner,
			SubscriptionStatus:     domain.SubscriptionHalted,
			ExternalSubscriptionID: "sub_halted",
		},
	}}

	rec := httptest.NewRecorder()
	billingRouter(t, svc, store).ServeHTTP(rec, sessionRequest(http.MethodPost, "/api/billing/cancel", "tok"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.cancelled)
}

func TestBillingRoutes_PaymentsRequiresSession(t *testing.T) {
	svc := &stubSubscriptionService{}
	store := &mockAccountStore{bySession: map[string]*domain.Account{}}

	rec := httptest.NewRecorder()
	billingRouter(t, svc, store).ServeHTTP(rec, sessionRequest(http.MethodGet, "/api/billing/payments", ""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, svc.listed)
}
