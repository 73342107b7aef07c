package postgres

import (
	"context"
	"fmt"

	"github.com/counterbook/counterbook/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PaymentStore implements domain.PaymentStore using PostgreSQL.
type PaymentStore struct {
	pool *pgxpool.Pool
}

// Compile-time check to ensure PaymentStore implements domain.PaymentStore.
var _ domain.PaymentStore = (*PaymentStore)(nil)

// NewPaymentStore creates a new PaymentStore instance.
func NewPaymentStore(pool *pgxpool.Pool) *PaymentStore {
	return &PaymentStore{pool: pool}
}

// InsertPaymentRecord appends one ledger row. Idempotency under concurrent
// duplicate webhook delivery rests on the partial unique index over
// payment_id, not on a read-then-write check: a conflicting insert becomes a
// no-op and reports inserted=false.
func (s *PaymentStore) InsertPaymentRecord(ctx context.Context, rec domain.PaymentRecord) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO payments (
			account_id, subscription_id, payment_id, event_type,
			amount, status, payment_date, raw_payload
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (payment_id) WHERE payment_id IS NOT NULL DO NOTHING`,
		rec.AccountID, rec.SubscriptionID, rec.PaymentID, rec.EventType,
		rec.Amount.String(), rec.Status, rec.PaymentDate, rec.RawPayload)
	if err != nil {
		return false, fmt.Errorf("insert payment record: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListPaymentsForAccount returns ledger rows for an account, newest first.
func (s *PaymentStore) ListPaymentsForAccount(ctx context.Context, accountID uuid.UUID, limit int32) ([]domain.PaymentRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, account_id, subscription_id, payment_id, event_type,
		       amount::text, status, payment_date, raw_payload, created_at
		FROM payments
		WHERE account_id = $1
		ORDER BY payment_date DESC, created_at DESC
		LIMIT $2`,
		accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var records []domain.PaymentRecord
	for rows.Next() {
		var (
			rec    domain.PaymentRecord
			amount string
		)
		if err := rows.Scan(
			&rec.ID, &rec.AccountID, &rec.SubscriptionID, &rec.PaymentID, &rec.EventType,
			&amount, &rec.Status, &rec.PaymentDate, &rec.RawPayload, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan payment record: %w", err)
		}
		rec.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse payment amount %q: %w", amount, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return records, nil
}
