package service

import (
	"context"
	"testing"
	"time"

	"github.com/counterbook/counterbook/internal/billing"
	"github.com/counterbook/counterbook/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chargedEvent(subscriptionID, paymentID string, amountCents int64) *billing.WebhookEvent {
	evt := &billing.WebhookEvent{
		Type:         billing.EventSubscriptionCharged,
		Subscription: billing.SubscriptionEntity{ID: subscriptionID, Status: "active"},
		Raw:          []byte(`{"event":"subscription.charged"}`),
	}
	if paymentID != "" || amountCents > 0 {
		evt.Payment = &billing.PaymentEntity{
			ID:          paymentID,
			AmountCents: amountCents,
			Currency:    "INR",
			CreatedAt:   time.Now().UTC(),
		}
	}
	return evt
}

func lifecycleEvent(eventType, subscriptionID string) *billing.WebhookEvent {
	return &billing.WebhookEvent{
		Type:         eventType,
		Subscription: billing.SubscriptionEntity{ID: subscriptionID},
		Raw:          []byte(`{"event":"` + eventType + `"}`),
	}
}

func TestProcessEvent_ChargedTransitionsAndAppendsLedger(t *testing.T) {
	account := ownerAccount("sub_r1", domain.SubscriptionAuthenticated)
	accounts := newMockAccountStore(account)
	payments := newMockPaymentStore()
	svc := newTestService(t, accounts, payments, billing.NewMockProvider())

	err := svc.ProcessEvent(context.Background(), chargedEvent("sub_r1", "pay_r1", 99900))
	require.NoError(t, err)

	assert.Equal(t, domain.SubscriptionActive, accounts.byID[account.ID].SubscriptionStatus)
	require.Len(t, payments.records, 1)
	rec := payments.records[0]
	assert.Equal(t, account.ID, rec.AccountID)
	assert.Equal(t, "pay_r1", rec.PaymentID)
	assert.Equal(t, domain.PaymentPaid, rec.Status)
	assert.Equal(t, "999", rec.Amount.String(), "amount converted from minor units")
	assert.Equal(t, billing.EventSubscriptionCharged, rec.EventType)
	assert.NotEmpty(t, rec.RawPayload)
}

func TestProcessEvent_DuplicateChargeIsIdempotent(t *testing.T) {
	account := ownerAccount("sub_r2", domain.SubscriptionAuthenticated)
	accounts := newMockAccountStore(account)
	payments := newMockPaymentStore()
	svc := newTestService(t, accounts, payments, billing.NewMockProvider())

	// At-least-once delivery: the same charge arrives several times.
	for i := 0; i < 5; i++ {
		require.NoError(t, svc.ProcessEvent(context.Background(), chargedEvent("sub_r2", "pay_r2", 99900)))
	}

	assert.Len(t, payments.records, 1, "exactly one ledger row regardless of redelivery count")
	assert.Equal(t, domain.SubscriptionActive, accounts.byID[account.ID].SubscriptionStatus)
}

func TestProcessEvent_LifecycleTransitions(t *testing.T) {
	tests := []struct {
		event string
		want  domain.SubscriptionStatus
	}{
		{billing.EventSubscriptionAuthenticated, domain.SubscriptionAuthenticated},
		{billing.EventSubscriptionActivated, domain.SubscriptionActive},
		{billing.EventSubscriptionCancelled, domain.SubscriptionCancelled},
		{billing.EventSubscriptionHalted, domain.SubscriptionHalted},
	}

	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			account := ownerAccount("sub_r3", domain.SubscriptionCreated)
			accounts := newMockAccountStore(account)
			payments := newMockPaymentStore()
			svc := newTestService(t, accounts, payments, billing.NewMockProvider())

			require.NoError(t, svc.ProcessEvent(context.Background(), lifecycleEvent(tt.event, "sub_r3")))

			assert.Equal(t, tt.want, accounts.byID[account.ID].SubscriptionStatus)
			assert.Empty(t, payments.records, "lifecycle events do not touch the ledger")
			require.Len(t, accounts.updates, 1)
			assert.False(t, accounts.updates[0].UpdatedAt.IsZero())
		})
	}
}

func TestProcessEvent_OutOfOrderLastWriteWins(t *testing.T) {
	// activated then halted lands on halted...
	account := ownerAccount("sub_r4", domain.SubscriptionCreated)
	accounts := newMockAccountStore(account)
	svc := newTestService(t, accounts, newMockPaymentStore(), billing.NewMockProvider())

	require.NoError(t, svc.ProcessEvent(context.Background(), lifecycleEvent(billing.EventSubscriptionActivated, "sub_r4")))
	require.NoError(t, svc.ProcessEvent(context.Background(), lifecycleEvent(billing.EventSubscriptionHalted, "sub_r4")))
	assert.Equal(t, domain.SubscriptionHalted, accounts.byID[account.ID].SubscriptionStatus)

	// ...and the reverse order lands on active. Last write wins; the
	// transitions are deliberately not commutative.
	account2 := ownerAccount("sub_r5", domain.SubscriptionCreated)
	accounts2 := newMockAccountStore(account2)
	svc2 := newTestService(t, accounts2, newMockPaymentStore(), billing.NewMockProvider())

	require.NoError(t, svc2.ProcessEvent(context.Background(), lifecycleEvent(billing.EventSubscriptionHalted, "sub_r5")))
	require.NoError(t, svc2.ProcessEvent(context.Background(), lifecycleEvent(billing.EventSubscriptionActivated, "sub_r5")))
	assert.Equal(t, domain.SubscriptionActive, accounts2.byID[account2.ID].SubscriptionStatus)
}

func TestProcessEvent_ChargeFailedLeavesStatusUnchanged(t *testing.T) {
	account := ownerAccount("sub_r6", domain.SubscriptionActive)
	accounts := newMockAccountStore(account)
	payments := newMockPaymentStore()
	svc := newTestService(t, accounts, payments, billing.NewMockProvider())

	evt := &billing.WebhookEvent{
		Type:         billing.EventSubscriptionChargeFailed,
		Subscription: billing.SubscriptionEntity{ID: "sub_r6"},
		Payment:      &billing.PaymentEntity{ID: "pay_f1", AmountCents: 99900},
		Raw:          []byte(`{}`),
	}
	require.NoError(t, svc.ProcessEvent(context.Background(), evt))

	assert.Equal(t, domain.SubscriptionActive, accounts.byID[account.ID].SubscriptionStatus)
	require.Len(t, payments.records, 1)
	assert.Equal(t, domain.PaymentFailed, payments.records[0].Status)
}

func TestProcessEvent_ChargeFailedWithoutPaymentID(t *testing.T) {
	account := ownerAccount("sub_r7", domain.SubscriptionActive)
	accounts := newMockAccountStore(account)
	payments := newMockPaymentStore()
	svc := newTestService(t, accounts, payments, billing.NewMockProvider())

	evt := &billing.WebhookEvent{
		Type:         billing.EventSubscriptionChargeFailed,
		Subscription: billing.SubscriptionEntity{ID: "sub_r7"},
		Raw:          []byte(`{}`),
	}

	// Two identical deliveries inside the same hour bucket collapse to a
	// single synthesized row.
	require.NoError(t, svc.ProcessEvent(context.Background(), evt))
	require.NoError(t, svc.ProcessEvent(context.Background(), evt))

	require.Len(t, payments.records, 1)
	rec := payments.records[0]
	assert.Contains(t, rec.PaymentID, "local_subscription.charge_failed_sub_r7_")
	assert.Equal(t, domain.PaymentFailed, rec.Status)
	// No amount in the payload, so the PRO plan table price is used.
	assert.Equal(t, "999", rec.Amount.String())
}

func TestProcessEvent_UnknownSubscriptionDropped(t *testing.T) {
	accounts := newMockAccountStore()
	payments := newMockPaymentStore()
	svc := newTestService(t, accounts, payments, billing.NewMockProvider())

	err := svc.ProcessEvent(context.Background(), chargedEvent("sub_foreign", "pay_x", 100))

	assert.NoError(t, err, "stale or foreign events are settled, not errors")
	assert.Empty(t, payments.records)
	assert.Empty(t, accounts.updates)
}

func TestProcessEvent_CarriesPlanEndDateForward(t *testing.T) {
	account := ownerAccount("sub_r8", domain.SubscriptionAuthenticated)
	accounts := newMockAccountStore(account)
	svc := newTestService(t, accounts, newMockPaymentStore(), billing.NewMockProvider())

	currentEnd := time.Now().UTC().AddDate(0, 1, 0).Truncate(time.Second)
	evt := lifecycleEvent(billing.EventSubscriptionActivated, "sub_r8")
	evt.Subscription.CurrentEnd = currentEnd

	require.NoError(t, svc.ProcessEvent(context.Background(), evt))
	assert.Equal(t, currentEnd, accounts.byID[account.ID].PlanEndDate)
}

func TestProcessEvent_ChargedWithoutCurrentEndRefreshesStatusUpdate(t *testing.T) {
	// A renewal charge may omit the new period boundary. The account must
	// still get a fresh last_status_update so the expiry sweep, which
	// ignores accounts touched after its cutoff, does not expire a paying
	// customer off a stale plan_end_date.
	account := ownerAccount("sub_r10", domain.SubscriptionActive)
	accounts := newMockAccountStore(account)
	svc := newTestService(t, accounts, newMockPaymentStore(), billing.NewMockProvider())

	before := time.Now().UTC()
	require.NoError(t, svc.ProcessEvent(context.Background(), chargedEvent("sub_r10", "pay_r10", 99900)))

	require.Len(t, accounts.updates, 1)
	update := accounts.updates[0]
	assert.False(t, update.UpdatedAt.Before(before))
	assert.Nil(t, update.PlanEndDate, "no boundary in the event, none written")
}

func TestProcessEvent_StoreFailureSurfaces(t *testing.T) {
	account := ownerAccount("sub_r9", domain.SubscriptionActive)
	accounts := newMockAccountStore(account)
	accounts.updateErr = errStoreDown
	svc := newTestService(t, accounts, newMockPaymentStore(), billing.NewMockProvider())

	err := svc.ProcessEvent(context.Background(), lifecycleEvent(billing.EventSubscriptionHalted, "sub_r9"))

	// The caller logs and acknowledges; the error itself still carries
	// the failure for that log line.
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.EINTERNAL))
}

func TestSynthesizePaymentID_Deterministic(t *testing.T) {
	at := time.Date(2026, 8, 30, 10, 42, 13, 0, time.UTC)
	a := synthesizePaymentID(billing.EventSubscriptionChargeFailed, "sub_1", at)
	b := synthesizePaymentID(billing.EventSubscriptionChargeFailed, "sub_1", at.Add(10*time.Minute))
	c := synthesizePaymentID(billing.EventSubscriptionChargeFailed, "sub_1", at.Add(2*time.Hour))
	d := synthesizePaymentID(billing.EventSubscriptionChargeFailed, "sub_2", at)

	assert.Equal(t, a, b, "same hour bucket collapses")
	assert.NotEqual(t, a, c, "different hour bucket is a distinct failure")
	assert.NotEqual(t, a, d, "different subscription is a distinct failure")
}
