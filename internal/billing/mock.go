package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockProvider is a mock billing provider for testing.
// Simulates successful gateway flows without network calls.
type MockProvider struct {
	// CreateMandateFunc allows customizing mandate creation behavior
	CreateMandateFunc func(ctx context.Context, params CreateMandateParams) (*Mandate, error)

	// RefundPaymentFunc allows customizing refund behavior
	RefundPaymentFunc func(ctx context.Context, params RefundParams) (*Refund, error)

	// CancelSubscriptionFunc allows customizing cancellation behavior
	CancelSubscriptionFunc func(ctx context.Context, params CancelSubscriptionParams) (*Subscription, error)

	// Mandates stores created mandates for retrieval
	Mandates map[string]*Mandate

	// Refunds stores issued refunds keyed by payment id
	Refunds map[string]*Refund

	// CallLog tracks method calls for test assertions
	CallLog []string
}

// Compile-time check to ensure MockProvider implements Provider.
var _ Provider = (*MockProvider)(nil)

// NewMockProvider creates a new mock billing provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Mandates: make(map[string]*Mandate),
		Refunds:  make(map[string]*Refund),
		CallLog:  []string{},
	}
}

// CreateMandate creates a mock mandate.
func (m *MockProvider) CreateMandate(ctx context.Context, params CreateMandateParams) (*Mandate, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CreateMandate(%s, %d)", params.PlanID, params.AuthAmountCents))

	if m.CreateMandateFunc != nil {
		return m.CreateMandateFunc(ctx, params)
	}

	mandate := &Mandate{
		ID:              "sub_" + uuid.New().String(),
		Status:          "created",
		PlanID:          params.PlanID,
		AuthAmountCents: params.AuthAmountCents,
		Currency:        params.Currency,
		StartAt:         params.StartAt,
		CreatedAt:       time.Now(),
	}
	m.Mandates[mandate.ID] = mandate
	return mandate, nil
}

// RefundPayment records a mock refund.
func (m *MockProvider) RefundPayment(ctx context.Context, params RefundParams) (*Refund, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("RefundPayment(%s)", params.PaymentID))

	if m.RefundPaymentFunc != nil {
		return m.RefundPaymentFunc(ctx, params)
	}

	refund := &Refund{
		ID:        "rfnd_" + uuid.New().String(),
		PaymentID: params.PaymentID,
		Amount:    decimal.NewFromInt(params.AmountCents).Div(decimal.NewFromInt(100)),
		Status:    "processed",
		CreatedAt: time.Now(),
	}
	m.Refunds[params.PaymentID] = refund
	return refund, nil
}

// CancelSubscription marks a mock mandate cancelled at cycle end.
func (m *MockProvider) CancelSubscription(ctx context.Context, params CancelSubscriptionParams) (*Subscription, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CancelSubscription(%s, %t)", params.SubscriptionID, params.AtCycleEnd))

	if m.CancelSubscriptionFunc != nil {
		return m.CancelSubscriptionFunc(ctx, params)
	}

	status := "cancelled"
	if params.AtCycleEnd {
		status = "active"
	}
	return &Subscription{
		ID:         params.SubscriptionID,
		Status:     status,
		CurrentEnd: time.Now().AddDate(0, 1, 0),
	}, nil
}
