package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const defaultBaseURL = "https://api.razorpay.com/v1"

// RazorpayConfig contains configuration for the Razorpay provider.
type RazorpayConfig struct {
	// KeyID is the API key id (rzp_test_... or rzp_live_...).
	// Also served to the frontend checkout as the public key.
	KeyID string

	// KeySecret is the API key secret. Signs checkout callbacks.
	KeySecret string

	// WebhookSecret signs webhook deliveries. Distinct from KeySecret.
	WebhookSecret string

	// BaseURL overrides the API endpoint, used by tests.
	BaseURL string

	// Timeout bounds every gateway call. Default: 30s.
	Timeout time.Duration
}

// Validate checks that required configuration is present.
func (c *RazorpayConfig) Validate() error {
	if c.KeyID == "" || c.KeySecret == "" {
		return ErrMissingCredentials
	}
	if c.WebhookSecret == "" {
		return errors.New("billing: webhook secret is required")
	}
	return nil
}

// IsTestMode returns true if using test mode API keys.
func (c *RazorpayConfig) IsTestMode() bool {
	return strings.HasPrefix(c.KeyID, "rzp_test_")
}

// RazorpayProvider implements Provider against the Razorpay REST API.
// The API surface used here is small enough that a thin client over
// net/http beats carrying an SDK.
type RazorpayProvider struct {
	config  RazorpayConfig
	baseURL string
	client  *http.Client
}

// Compile-time check to ensure RazorpayProvider implements Provider.
var _ Provider = (*RazorpayProvider)(nil)

// NewRazorpayProvider creates a Razorpay-backed billing provider.
func NewRazorpayProvider(config RazorpayConfig) (*RazorpayProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &RazorpayProvider{
		config:  config,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// CreateMandate creates a gateway subscription with an upfront verification
// charge attached as an addon on the first invoice.
func (p *RazorpayProvider) CreateMandate(ctx context.Context, params CreateMandateParams) (*Mandate, error) {
	body := map[string]interface{}{
		"plan_id":         params.PlanID,
		"total_count":     params.TotalCount,
		"customer_notify": 1,
		"start_at":        params.StartAt.Unix(),
		"addons": []map[string]interface{}{
			{
				"item": map[string]interface{}{
					"name":     "Mandate verification",
					"amount":   params.AuthAmountCents,
					"currency": params.Currency,
				},
			},
		},
	}
	if len(params.Notes) > 0 {
		body["notes"] = params.Notes
	}

	var resp struct {
		ID        string `json:"id"`
		Status    string `json:"status"`
		PlanID    string `json:"plan_id"`
		StartAt   int64  `json:"start_at"`
		CreatedAt int64  `json:"created_at"`
	}
	if err := p.post(ctx, "/subscriptions", body, &resp); err != nil {
		return nil, err
	}

	return &Mandate{
		ID:              resp.ID,
		Status:          resp.Status,
		PlanID:          resp.PlanID,
		AuthAmountCents: params.AuthAmountCents,
		Currency:        params.Currency,
		StartAt:         time.Unix(resp.StartAt, 0).UTC(),
		CreatedAt:       time.Unix(resp.CreatedAt, 0).UTC(),
	}, nil
}

// RefundPayment refunds a payment, in full when AmountCents is zero.
func (p *RazorpayProvider) RefundPayment(ctx context.Context, params RefundParams) (*Refund, error) {
	body := map[string]interface{}{}
	if params.AmountCents > 0 {
		body["amount"] = params.AmountCents
	}
	if len(params.Notes) > 0 {
		body["notes"] = params.Notes
	}

	var resp struct {
		ID        string `json:"id"`
		PaymentID string `json:"payment_id"`
		Amount    int64  `json:"amount"`
		Status    string `json:"status"`
		CreatedAt int64  `json:"created_at"`
	}
	path := fmt.Sprintf("/payments/%s/refund", params.PaymentID)
	if err := p.post(ctx, path, body, &resp); err != nil {
		return nil, err
	}

	return &Refund{
		ID:        resp.ID,
		PaymentID: resp.PaymentID,
		Amount:    decimal.NewFromInt(resp.Amount).Div(decimal.NewFromInt(100)),
		Status:    resp.Status,
		CreatedAt: time.Unix(resp.CreatedAt, 0).UTC(),
	}, nil
}

// CancelSubscription requests gateway-side cancellation.
func (p *RazorpayProvider) CancelSubscription(ctx context.Context, params CancelSubscriptionParams) (*Subscription, error) {
	atCycleEnd := 0
	if params.AtCycleEnd {
		atCycleEnd = 1
	}
	body := map[string]interface{}{"cancel_at_cycle_end": atCycleEnd}

	var resp struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		CurrentEnd int64  `json:"current_end"`
	}
	path := fmt.Sprintf("/subscriptions/%s/cancel", params.SubscriptionID)
	if err := p.post(ctx, path, body, &resp); err != nil {
		return nil, err
	}

	sub := &Subscription{ID: resp.ID, Status: resp.Status}
	if resp.CurrentEnd > 0 {
		sub.CurrentEnd = time.Unix(resp.CurrentEnd, 0).UTC()
	}
	return sub, nil
}

// post performs an authenticated JSON POST and decodes the response into out.
func (p *RazorpayProvider) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(p.config.KeyID, p.config.KeySecret)

	resp, err := p.client.Do(req)
	if err != nil {
		return &GatewayError{OriginalError: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return parseGatewayError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &GatewayError{
			StatusCode:    resp.StatusCode,
			Description:   "unparseable gateway response",
			OriginalError: err,
		}
	}
	return nil
}

// parseGatewayError decodes Razorpay's error envelope:
// {"error": {"code": "...", "description": "..."}}
func parseGatewayError(resp *http.Response) error {
	var envelope struct {
		Error struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	}
	gwErr := &GatewayError{StatusCode: resp.StatusCode}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil {
		gwErr.Code = envelope.Error.Code
		gwErr.Description = envelope.Error.Description
	}
	if gwErr.Description == "" {
		gwErr.Description = http.StatusText(resp.StatusCode)
	}
	return gwErr
}
