package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/counterbook/counterbook/internal/domain"
	"github.com/counterbook/counterbook/internal/middleware"
	"github.com/counterbook/counterbook/internal/service"
	"github.com/counterbook/counterbook/internal/telemetry"
)

// BillingHandler exposes the subscription billing API: mandate setup,
// checkout verification, cancellation, and the payment ledger.
type BillingHandler struct {
	subscriptions service.SubscriptionService
	validate      *validator.Validate
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(subscriptions service.SubscriptionService) *BillingHandler {
	return &BillingHandler{
		subscriptions: subscriptions,
		validate:      validator.New(),
	}
}

type createMandateRequest struct {
	Plan string `json:"plan" validate:"required,oneof=BASIC PRO PREMIUM"`
}

type createMandateResponse struct {
	MandateID               string `json:"mandateId"`
	Currency                string `json:"currency"`
	VerificationAmountCents int64  `json:"verificationAmount"`
	GatewayPublicKey        string `json:"gatewayPublicKey"`
}

// CreateMandate handles POST /api/billing/mandate
//
// Called before signup completes, so this route is unauthenticated. The
// returned mandate id is fed into the gateway checkout on the frontend.
func (h *BillingHandler) CreateMandate(w http.ResponseWriter, r *http.Request) {
	var req createMandateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, domain.Invalid("billing.mandate", "invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		ValidationErrorResponse(w, r, err)
		return
	}

	detail, err := h.subscriptions.CreateMandate(r.Context(), domain.Plan(req.Plan))
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.MandatesCreated.WithLabelValues(req.Plan).Inc()
	}

	RespondJSON(w, http.StatusCreated, createMandateResponse{
		MandateID:               detail.MandateID,
		Currency:                detail.Currency,
		VerificationAmountCents: detail.VerificationAmountCents,
		GatewayPublicKey:        detail.GatewayPublicKey,
	})
}

type verifyMandateRequest struct {
	PaymentID string `json:"paymentId" validate:"required"`
	Signature string `json:"signature" validate:"required"`
	MandateID string `json:"mandateId" validate:"required"`
}

type verifyMandateResponse struct {
	Success              bool   `json:"success"`
	TransactionReference string `json:"transactionReference"`
}

// VerifyMandate handles POST /api/billing/verify
//
// The checkout posts back the gateway's payment id and signature. On a
// valid signature the verification charge is refunded and the signup flow
// may proceed with the returned reference.
func (h *BillingHandler) VerifyMandate(w http.ResponseWriter, r *http.Request) {
	var req verifyMandateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, domain.Invalid("billing.verify", "invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		ValidationErrorResponse(w, r, err)
		return
	}

	reference, err := h.subscriptions.VerifyMandate(r.Context(), service.VerifyMandateParams{
		PaymentID: req.PaymentID,
		Signature: req.Signature,
		MandateID: req.MandateID,
	})
	if err != nil {
		if telemetry.Business != nil {
			telemetry.Business.MandatesVerified.WithLabelValues("rejected").Inc()
		}
		ErrorResponse(w, r, err)
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.MandatesVerified.WithLabelValues("verified").Inc()
	}

	RespondJSON(w, http.StatusOK, verifyMandateResponse{
		Success:              true,
		TransactionReference: reference,
	})
}

type cancelResponse struct {
	Success       bool   `json:"success"`
	Status        string `json:"status"`
	GatewayStatus string `json:"gatewayStatus"`
}

// Cancel handles POST /api/billing/cancel
//
// Requires an authenticated owner account. Access remains until the
// current period ends; the webhook flips the account to cancelled when
// the gateway confirms.
func (h *BillingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccountFromContext(r.Context())
	if account == nil {
		UnauthorizedResponse(w, r)
		return
	}

	result, err := h.subscriptions.Cancel(r.Context(), account.ID)
	if err != nil {
		logger := middleware.GetLogger(r.Context())
		logger.Error("cancellation failed",
			"account_id", account.ID,
			"error", err,
		)
		if domain.ErrorCode(err) == domain.EPAYMENT || domain.ErrorCode(err) == domain.EINTERNAL {
			telemetry.CaptureErrorWithAccount(err, account.ID.String(), map[string]interface{}{
				"op": "billing.cancel",
			})
		}
		ErrorResponse(w, r, err)
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.SubscriptionsCancelled.Inc()
	}

	RespondJSON(w, http.StatusOK, cancelResponse{
		Success:       true,
		Status:        string(domain.SubscriptionCancellationPending),
		GatewayStatus: result.GatewayStatus,
	})
}

type paymentItem struct {
	PaymentID   string    `json:"paymentId"`
	EventType   string    `json:"eventType"`
	Amount      string    `json:"amount"`
	Status      string    `json:"status"`
	PaymentDate time.Time `json:"paymentDate"`
}

type listPaymentsResponse struct {
	Payments []paymentItem `json:"payments"`
}

// ListPayments handles GET /api/billing/payments
//
// Returns the authenticated account's payment ledger, newest first.
// Staff see their owner's ledger.
func (h *BillingHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccountFromContext(r.Context())
	if account == nil {
		UnauthorizedResponse(w, r)
		return
	}

	accountID := account.ID
	if account.Role == domain.RoleStaff && account.OwnerID != nil {
		accountID = *account.OwnerID
	}

	var limit int32
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || parsed < 1 {
			ErrorResponse(w, r, domain.Invalid("billing.payments", "limit must be a positive integer"))
			return
		}
		limit = int32(parsed)
	}

	records, err := h.subscriptions.ListPayments(r.Context(), accountID, limit)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	items := make([]paymentItem, 0, len(records))
	for _, rec := range records {
		items = append(items, paymentItem{
			PaymentID:   rec.PaymentID,
			EventType:   rec.EventType,
			Amount:      rec.Amount.StringFixed(2),
			Status:      string(rec.Status),
			PaymentDate: rec.PaymentDate,
		})
	}

	RespondJSON(w, http.StatusOK, listPaymentsResponse{Payments: items})
}
