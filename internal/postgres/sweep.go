package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/counterbook/counterbook/internal/domain"
)

// Sweep transitions for accounts whose paid period lapsed without the
// gateway confirming the terminal state. The webhook reconciler remains the
// primary writer; these catch the deliveries that never arrive.

// CancelLapsedAccounts finalizes cancellation_pending accounts whose plan
// end date has passed. Returns the number of accounts transitioned.
func (s *AccountStore) CancelLapsedAccounts(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts
		SET subscription_status = $1,
		    last_status_update = $2
		WHERE subscription_status = $3
		  AND plan_end_date IS NOT NULL
		  AND plan_end_date <= $2`,
		domain.SubscriptionCancelled, now, domain.SubscriptionCancellationPending)
	if err != nil {
		return 0, fmt.Errorf("cancel lapsed accounts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ExpireLapsedAccounts marks accounts expired when their plan end date
// passed before the cutoff and no renewal charge ever arrived. The cutoff
// is the grace window: callers pass now minus however long they are willing
// to wait for a late subscription.charged delivery.
//
// A renewal charge can arrive without a new period boundary, leaving
// plan_end_date stale while the account is in good standing. Every
// reconciled event refreshes last_status_update, so the sweep also
// requires that timestamp to predate the cutoff before expiring.
func (s *AccountStore) ExpireLapsedAccounts(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts
		SET subscription_status = $1,
		    last_status_update = now()
		WHERE subscription_status IN ($2, $3)
		  AND plan_end_date IS NOT NULL
		  AND plan_end_date <= $4
		  AND last_status_update <= $4`,
		domain.SubscriptionExpired, domain.SubscriptionActive, domain.SubscriptionAuthenticated, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire lapsed accounts: %w", err)
	}
	return tag.RowsAffected(), nil
}
