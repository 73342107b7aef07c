package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the outcome recorded in the payment ledger.
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
	PaymentPending PaymentStatus = "pending"
	PaymentOverdue PaymentStatus = "overdue"
)

// PaymentRecord is one row of the append-only payment ledger.
// Rows are written only by the webhook reconciler and never mutated.
type PaymentRecord struct {
	ID        uuid.UUID
	AccountID uuid.UUID

	// SubscriptionID is the gateway's subscription id.
	SubscriptionID string

	// PaymentID is the gateway's payment id. For failure events delivered
	// before the gateway allocates one, a deterministic placeholder is
	// synthesized so distinct failures do not collapse into one row.
	PaymentID string

	// EventType is the gateway event that produced this row.
	EventType string

	// Amount in major currency units.
	Amount decimal.Decimal

	Status PaymentStatus

	PaymentDate time.Time

	// RawPayload is the unparsed gateway payload, kept for audit and replay.
	RawPayload json.RawMessage

	CreatedAt time.Time
}

// PaymentStore provides access to the payment ledger.
type PaymentStore interface {
	// InsertPaymentRecord appends a ledger row. Insertion is idempotent on
	// payment_id: a duplicate delivery reports inserted=false without
	// error. The uniqueness must hold under concurrent inserts, which
	// requires a storage-level constraint rather than a read-check.
	InsertPaymentRecord(ctx context.Context, rec PaymentRecord) (inserted bool, err error)

	// ListPaymentsForAccount returns ledger rows for an account,
	// newest first.
	ListPaymentsForAccount(ctx context.Context, accountID uuid.UUID, limit int32) ([]PaymentRecord, error)
}
