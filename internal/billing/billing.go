package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Provider defines the interface to the recurring-payment gateway.
// The production implementation talks to Razorpay; tests use MockProvider.
type Provider interface {
	// CreateMandate registers a recurring-payment mandate for a gateway
	// plan. The gateway charges AuthAmount immediately to verify the
	// payment method; billing proper starts at StartAt.
	// No local state is touched - the caller has no account yet.
	CreateMandate(ctx context.Context, params CreateMandateParams) (*Mandate, error)

	// RefundPayment refunds a completed payment, in full when AmountCents
	// is zero. Used to return the mandate verification charge.
	RefundPayment(ctx context.Context, params RefundParams) (*Refund, error)

	// CancelSubscription requests gateway-side cancellation.
	// With AtCycleEnd the mandate stays chargeable until the period
	// boundary; the gateway confirms the final state via webhook.
	CancelSubscription(ctx context.Context, params CancelSubscriptionParams) (*Subscription, error)
}

// CreateMandateParams contains parameters for creating a mandate.
type CreateMandateParams struct {
	// PlanID is the gateway's plan identifier (plan_...).
	PlanID string

	// TotalCount is the number of billing cycles the mandate covers.
	// The gateway requires a finite ceiling; callers pass a large value
	// to stand in for "until cancelled".
	TotalCount int

	// StartAt is when the first real charge happens (trial boundary).
	StartAt time.Time

	// AuthAmountCents is the verification charge in minor currency units.
	// It is refunded once the mandate signature checks out.
	AuthAmountCents int64

	// Currency code (ISO 4217) - e.g., "INR", "USD".
	Currency string

	// Notes are free-form key/values stored on the gateway object.
	Notes map[string]string
}

// Mandate represents a gateway-side recurring-payment authorization.
type Mandate struct {
	// ID is the gateway's subscription/mandate id (sub_...).
	ID string

	// Status as reported by the gateway at creation ("created").
	Status string

	// PlanID echoes the gateway plan the mandate was created against.
	PlanID string

	// AuthAmountCents is the verification charge in minor units.
	AuthAmountCents int64

	Currency  string
	StartAt   time.Time
	CreatedAt time.Time
}

// RefundParams contains parameters for refunding a payment.
type RefundParams struct {
	// PaymentID is the gateway payment id (pay_...).
	PaymentID string

	// AmountCents refunds a partial amount when non-zero.
	AmountCents int64

	Notes map[string]string
}

// Refund represents a gateway refund.
type Refund struct {
	ID        string
	PaymentID string
	Amount    decimal.Decimal
	Status    string
	CreatedAt time.Time
}

// CancelSubscriptionParams contains parameters for cancelling a mandate.
type CancelSubscriptionParams struct {
	// SubscriptionID is the gateway subscription id to cancel.
	SubscriptionID string

	// AtCycleEnd cancels at the period boundary instead of immediately.
	AtCycleEnd bool
}

// Subscription is the gateway's view of a mandate after an operation.
type Subscription struct {
	ID     string
	Status string

	// CurrentEnd is the end of the current billing period, zero when the
	// gateway omits it.
	CurrentEnd time.Time
}
