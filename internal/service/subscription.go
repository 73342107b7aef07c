package service

import (
	"context"

	"github.com/counterbook/counterbook/internal/billing"
	"github.com/counterbook/counterbook/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubscriptionService provides business logic for the subscription billing
// lifecycle: mandate setup before signup, webhook reconciliation afterwards,
// and owner-initiated cancellation.
type SubscriptionService interface {
	// CreateMandate registers a recurring-payment mandate for a plan.
	//
	// Flow:
	//  1. Validates the plan maps to a configured gateway plan id
	//  2. Computes the trial-start offset
	//  3. Creates the gateway mandate with a small verification charge
	//
	// This call precedes signup, so no account is touched. Gateway errors
	// surface to the caller with the gateway's status and message; the
	// caller decides whether to retry.
	CreateMandate(ctx context.Context, plan domain.Plan) (*MandateDetail, error)

	// VerifyMandate validates the signature returned by the checkout after
	// the verification charge and refunds that charge best-effort. A
	// failed refund is logged but never fails verification. Returns an
	// opaque transaction reference the signup flow persists.
	VerifyMandate(ctx context.Context, params VerifyMandateParams) (string, error)

	// ProcessEvent applies one gateway webhook event: resolves the owning
	// account, transitions its subscription status, and appends to the
	// payment ledger for charge events. Idempotent under redelivery.
	//
	// A nil return means the event is settled; an unresolvable account is
	// settled too (stale or foreign event). Errors mean the caller should
	// log and acknowledge anyway - the gateway retries forever otherwise.
	ProcessEvent(ctx context.Context, evt *billing.WebhookEvent) error

	// Cancel requests gateway-side cancellation at period end for the
	// account's mandate, then marks the account cancellation_pending.
	// The terminal cancelled status is reserved for the webhook
	// confirming the gateway actually did it.
	Cancel(ctx context.Context, accountID uuid.UUID) (*CancelResult, error)

	// ListPayments returns the account's payment ledger, newest first.
	ListPayments(ctx context.Context, accountID uuid.UUID, limit int32) ([]domain.PaymentRecord, error)
}

// SubscriptionConfig carries the injected plan tables and gateway knobs.
// Prices and plan mappings are configuration so environments and tests can
// swap them without touching code.
type SubscriptionConfig struct {
	// PlanIDs maps each plan tier to its gateway plan id.
	// A tier missing here cannot be subscribed to.
	PlanIDs map[domain.Plan]string

	// PlanPrices is the fallback price table in major units, used when a
	// charge event arrives without an amount in its payload.
	PlanPrices map[domain.Plan]decimal.Decimal

	// Currency for mandates and the verification charge.
	Currency string

	// TrialDays is the offset before the first real charge.
	TrialDays int

	// VerificationAmountCents is the refunded verification charge.
	VerificationAmountCents int64

	// MandateCycles is the repeat-count ceiling sent to the gateway,
	// standing in for "until cancelled".
	MandateCycles int

	// CheckoutSecret signs the paymentID|mandateID message the gateway
	// returns after the verification charge.
	CheckoutSecret string

	// GatewayPublicKey is handed to the frontend checkout.
	GatewayPublicKey string
}

// MandateDetail is returned to the caller starting a signup.
type MandateDetail struct {
	// MandateID is the gateway mandate id the signup flow carries forward.
	MandateID string

	Currency string

	// VerificationAmountCents is echoed so the checkout can display it.
	VerificationAmountCents int64

	// GatewayPublicKey is the key id the frontend checkout needs.
	GatewayPublicKey string
}

// VerifyMandateParams contains the checkout callback fields.
type VerifyMandateParams struct {
	// PaymentID is the gateway payment id of the verification charge.
	PaymentID string

	// Signature is HMAC-SHA256(secret, paymentID|mandateID) from the
	// gateway checkout.
	Signature string

	// MandateID is the mandate the charge verified.
	MandateID string
}

// CancelResult reports the gateway's view after a cancellation request.
type CancelResult struct {
	// GatewayStatus is the mandate status the gateway reported; usually
	// still "active" until the period boundary.
	GatewayStatus string
}
