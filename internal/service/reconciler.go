package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/counterbook/counterbook/internal/billing"
	"github.com/counterbook/counterbook/internal/domain"
	"github.com/counterbook/counterbook/internal/telemetry"
	"github.com/shopspring/decimal"
)

// ProcessEvent applies one webhook event to the owning account and ledger.
//
// Transitions are unconditional on the current status: the gateway is the
// source of truth for billing state and local state may lag, so the most
// recent event wins. Deliveries can race for the same account; status
// overwrites are last-write-wins and the ledger relies on the storage-level
// uniqueness of payment ids to stay duplicate-free.
func (s *subscriptionService) ProcessEvent(ctx context.Context, evt *billing.WebhookEvent) error {
	const op = "subscription.process_event"

	account, err := s.accounts.GetAccountBySubscriptionID(ctx, evt.Subscription.ID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			// Stale or foreign event. Settled, not an error: erroring
			// would only make the gateway redeliver it forever.
			s.logger.Info("webhook for unknown subscription dropped",
				slog.String("event", evt.Type),
				slog.String("subscription_id", evt.Subscription.ID))
			return nil
		}
		return domain.WrapError(err, domain.EINTERNAL, op, "account lookup failed")
	}

	now := time.Now().UTC()

	var newStatus domain.SubscriptionStatus
	switch evt.Type {
	case billing.EventSubscriptionAuthenticated:
		newStatus = domain.SubscriptionAuthenticated
	case billing.EventSubscriptionActivated:
		newStatus = domain.SubscriptionActive
	case billing.EventSubscriptionCancelled:
		newStatus = domain.SubscriptionCancelled
	case billing.EventSubscriptionHalted:
		newStatus = domain.SubscriptionHalted
	case billing.EventSubscriptionCharged:
		newStatus = domain.SubscriptionActive
	case billing.EventSubscriptionChargeFailed:
		// A failed charge leaves the status alone; the gateway reports
		// halting separately once its retries are exhausted.
		newStatus = account.SubscriptionStatus
	default:
		// ParseWebhookEvent only emits the types above.
		s.logger.Warn("unhandled event type reached reconciler", slog.String("event", evt.Type))
		return nil
	}

	if err := s.applyTransition(ctx, account, evt, newStatus, now); err != nil {
		return err
	}

	if evt.IsChargeEvent() {
		if err := s.appendLedger(ctx, account, evt, now); err != nil {
			return err
		}
	}

	return nil
}

// applyTransition writes the new status and lastStatusUpdate, carrying the
// period boundary forward when the event includes one.
func (s *subscriptionService) applyTransition(ctx context.Context, account *domain.Account, evt *billing.WebhookEvent, status domain.SubscriptionStatus, now time.Time) error {
	params := domain.UpdateSubscriptionStatusParams{
		AccountID: account.ID,
		Status:    status,
		UpdatedAt: now,
	}
	if !evt.Subscription.CurrentEnd.IsZero() {
		end := evt.Subscription.CurrentEnd
		params.PlanEndDate = &end
	}

	if err := s.accounts.UpdateSubscriptionStatus(ctx, params); err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "subscription.process_event", "status update failed")
	}

	if status != account.SubscriptionStatus {
		s.logger.Info("subscription status transition",
			slog.String("account_id", account.ID.String()),
			slog.String("event", evt.Type),
			slog.String("from", string(account.SubscriptionStatus)),
			slog.String("to", string(status)))
	}
	return nil
}

// appendLedger writes one payment row for a charge event. Duplicate
// deliveries hit the payment-id uniqueness constraint and report a no-op.
func (s *subscriptionService) appendLedger(ctx context.Context, account *domain.Account, evt *billing.WebhookEvent, now time.Time) error {
	status := domain.PaymentPaid
	if evt.Type == billing.EventSubscriptionChargeFailed {
		status = domain.PaymentFailed
	}

	paymentID := ""
	paymentDate := now
	if evt.Payment != nil {
		paymentID = evt.Payment.ID
		if !evt.Payment.CreatedAt.IsZero() {
			paymentDate = evt.Payment.CreatedAt
		}
	}
	if paymentID == "" {
		paymentID = synthesizePaymentID(evt.Type, evt.Subscription.ID, now)
	}

	rec := domain.PaymentRecord{
		AccountID:      account.ID,
		SubscriptionID: evt.Subscription.ID,
		PaymentID:      paymentID,
		EventType:      evt.Type,
		Amount:         s.resolveAmount(evt, account.Plan),
		Status:         status,
		PaymentDate:    paymentDate,
		RawPayload:     evt.Raw,
	}

	inserted, err := s.payments.InsertPaymentRecord(ctx, rec)
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "subscription.process_event", "ledger insert failed")
	}
	if !inserted {
		s.logger.Info("duplicate charge event dropped",
			slog.String("payment_id", paymentID),
			slog.String("subscription_id", evt.Subscription.ID))
		return nil
	}

	if telemetry.Business != nil {
		if status == domain.PaymentPaid {
			telemetry.Business.PaymentSucceeded.WithLabelValues(string(account.Plan)).Inc()
		} else {
			telemetry.Business.PaymentFailed.WithLabelValues(string(account.Plan)).Inc()
		}
	}
	return nil
}

// resolveAmount prefers the amount embedded in the event; failure payloads
// can be incomplete, so missing amounts fall back to the injected plan price
// table.
func (s *subscriptionService) resolveAmount(evt *billing.WebhookEvent, plan domain.Plan) decimal.Decimal {
	if evt.Payment != nil && evt.Payment.AmountCents > 0 {
		return decimal.NewFromInt(evt.Payment.AmountCents).Div(decimal.NewFromInt(100))
	}

	price, ok := s.config.PlanPrices[plan]
	if !ok {
		s.logger.Warn("no price configured for plan, recording zero amount",
			slog.String("plan", string(plan)))
		return decimal.Zero
	}
	return price
}

// synthesizePaymentID builds a deterministic placeholder id for events the
// gateway delivered without a payment id. The hour bucket means identical
// failures inside the same hour collapse into one row - an accepted
// approximation for early-stage failures that never reached the gateway.
func synthesizePaymentID(eventType, subscriptionID string, at time.Time) string {
	return fmt.Sprintf("local_%s_%s_%d", eventType, subscriptionID, at.Truncate(time.Hour).Unix())
}
