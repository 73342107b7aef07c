package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/counterbook/counterbook/internal/billing"
	"github.com/counterbook/counterbook/internal/domain"
	"github.com/counterbook/counterbook/internal/telemetry"
	"github.com/google/uuid"
)

// subscriptionService implements SubscriptionService.
type subscriptionService struct {
	accounts domain.AccountStore
	payments domain.PaymentStore
	provider billing.Provider
	config   SubscriptionConfig
	logger   *slog.Logger
}

// Compile-time check to ensure subscriptionService implements SubscriptionService.
var _ SubscriptionService = (*subscriptionService)(nil)

// NewSubscriptionService creates a new SubscriptionService instance.
func NewSubscriptionService(
	accounts domain.AccountStore,
	payments domain.PaymentStore,
	provider billing.Provider,
	config SubscriptionConfig,
	logger *slog.Logger,
) (SubscriptionService, error) {
	if config.VerificationAmountCents <= 0 {
		config.VerificationAmountCents = 100
	}
	if config.MandateCycles <= 0 {
		config.MandateCycles = 1000
	}
	if config.TrialDays <= 0 {
		config.TrialDays = 7
	}
	if config.Currency == "" {
		config.Currency = "INR"
	}
	if config.CheckoutSecret == "" {
		return nil, fmt.Errorf("subscription service: checkout secret is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &subscriptionService{
		accounts: accounts,
		payments: payments,
		provider: provider,
		config:   config,
		logger:   logger,
	}, nil
}

// CreateMandate creates a gateway mandate for the requested plan.
func (s *subscriptionService) CreateMandate(ctx context.Context, plan domain.Plan) (*MandateDetail, error) {
	const op = "subscription.create_mandate"

	if !plan.Valid() {
		return nil, domain.Invalid(op, fmt.Sprintf("unknown plan %q", plan))
	}

	planID, ok := s.config.PlanIDs[plan]
	if !ok || planID == "" {
		// Missing mapping is an operator problem, not a caller problem.
		return nil, domain.Errorf(domain.EINTERNAL, op, "no gateway plan configured for %s", plan)
	}

	startAt := time.Now().UTC().AddDate(0, 0, s.config.TrialDays)

	mandate, err := s.provider.CreateMandate(ctx, billing.CreateMandateParams{
		PlanID:          planID,
		TotalCount:      s.config.MandateCycles,
		StartAt:         startAt,
		AuthAmountCents: s.config.VerificationAmountCents,
		Currency:        s.config.Currency,
		Notes:           map[string]string{"plan": string(plan)},
	})
	if err != nil {
		return nil, gatewayError(err, op, "failed to create mandate")
	}

	s.logger.Info("mandate created",
		slog.String("mandate_id", mandate.ID),
		slog.String("plan", string(plan)),
		slog.Time("start_at", startAt))

	return &MandateDetail{
		MandateID:               mandate.ID,
		Currency:                mandate.Currency,
		VerificationAmountCents: mandate.AuthAmountCents,
		GatewayPublicKey:        s.config.GatewayPublicKey,
	}, nil
}

// VerifyMandate checks the checkout signature and refunds the verification
// charge.
func (s *subscriptionService) VerifyMandate(ctx context.Context, params VerifyMandateParams) (string, error) {
	const op = "subscription.verify_mandate"

	if params.PaymentID == "" || params.Signature == "" || params.MandateID == "" {
		return "", domain.Invalid(op, "paymentId, signature and mandateId are required")
	}

	if err := billing.VerifyMandateSignature(s.config.CheckoutSecret, params.PaymentID, params.MandateID, params.Signature); err != nil {
		return "", domain.Invalid(op, "invalid payment signature")
	}

	// The verification charge is returned best-effort. A failed refund is
	// an operator follow-up, not a verification failure: the mandate is
	// already proven good.
	refund, err := s.provider.RefundPayment(ctx, billing.RefundParams{
		PaymentID:   params.PaymentID,
		AmountCents: s.config.VerificationAmountCents,
		Notes:       map[string]string{"reason": "mandate_verification"},
	})
	if err != nil {
		s.logger.Warn("verification charge refund failed",
			slog.String("payment_id", params.PaymentID),
			slog.String("mandate_id", params.MandateID),
			slog.String("error", err.Error()))
		if telemetry.Business != nil {
			telemetry.Business.RefundsFailed.Inc()
		}
	} else {
		s.logger.Info("verification charge refunded",
			slog.String("payment_id", params.PaymentID),
			slog.String("refund_id", refund.ID))
		if telemetry.Business != nil {
			telemetry.Business.RefundsIssued.Inc()
		}
	}

	return params.MandateID, nil
}

// Cancel requests cancellation at period end and marks the account
// cancellation_pending.
func (s *subscriptionService) Cancel(ctx context.Context, accountID uuid.UUID) (*CancelResult, error) {
	const op = "subscription.cancel"

	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.ExternalSubscriptionID == "" {
		return nil, domain.NotFound(op, "subscription", accountID.String())
	}

	sub, err := s.provider.CancelSubscription(ctx, billing.CancelSubscriptionParams{
		SubscriptionID: account.ExternalSubscriptionID,
		AtCycleEnd:     true,
	})
	if err != nil {
		// Local state stays untouched on gateway failure.
		return nil, gatewayError(err, op, "failed to cancel subscription")
	}

	if err := s.accounts.UpdateSubscriptionStatus(ctx, domain.UpdateSubscriptionStatusParams{
		AccountID: account.ID,
		Status:    domain.SubscriptionCancellationPending,
		UpdatedAt: time.Now().UTC(),
	}); err != nil {
		return nil, domain.Internal(err, op, "failed to update subscription status")
	}

	s.logger.Info("subscription cancellation requested",
		slog.String("account_id", account.ID.String()),
		slog.String("subscription_id", account.ExternalSubscriptionID),
		slog.String("gateway_status", sub.Status))

	return &CancelResult{GatewayStatus: sub.Status}, nil
}

// ListPayments returns the account's ledger, newest first.
func (s *subscriptionService) ListPayments(ctx context.Context, accountID uuid.UUID, limit int32) ([]domain.PaymentRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.payments.ListPaymentsForAccount(ctx, accountID, limit)
}

// gatewayError maps a provider error onto the domain taxonomy, preserving
// the gateway's own status and message for the caller.
func gatewayError(err error, op, message string) error {
	var gwErr *billing.GatewayError
	if errors.As(err, &gwErr) && gwErr.Description != "" {
		return domain.WrapError(err, domain.EPAYMENT, op, fmt.Sprintf("%s: %s", message, gwErr.Description))
	}
	return domain.WrapError(err, domain.EPAYMENT, op, message)
}
