package billing

import (
	"encoding/json"
	"fmt"
	"time"
)

// Webhook event types delivered by the gateway. Anything else is dropped.
const (
	EventSubscriptionAuthenticated = "subscription.authenticated"
	EventSubscriptionActivated     = "subscription.activated"
	EventSubscriptionCancelled     = "subscription.cancelled"
	EventSubscriptionHalted        = "subscription.halted"
	EventSubscriptionCharged       = "subscription.charged"
	EventSubscriptionChargeFailed  = "subscription.charge_failed"
)

// WebhookEvent is a parsed gateway webhook delivery.
// The gateway delivers at least once, possibly out of order and possibly
// concurrently; consumers must tolerate duplicates.
type WebhookEvent struct {
	// Type is one of the Event* constants.
	Type string

	// Subscription identifies the mandate the event belongs to.
	// Always present.
	Subscription SubscriptionEntity

	// Payment is present on charge events when the gateway includes one.
	// Failure events delivered before the gateway allocates a payment id
	// may carry a partial entity or none at all.
	Payment *PaymentEntity

	// Raw is the unparsed delivery body, kept for the audit ledger.
	Raw json.RawMessage
}

// SubscriptionEntity is the subscription object embedded in a webhook payload.
type SubscriptionEntity struct {
	ID     string
	Status string

	// CurrentEnd is the end of the current billing period, zero when
	// the gateway omits it.
	CurrentEnd time.Time
}

// PaymentEntity is the payment object embedded in a charge event.
type PaymentEntity struct {
	ID          string
	AmountCents int64
	Currency    string
	CreatedAt   time.Time
}

// IsChargeEvent reports whether the event should append a ledger row.
func (e *WebhookEvent) IsChargeEvent() bool {
	return e.Type == EventSubscriptionCharged || e.Type == EventSubscriptionChargeFailed
}

// webhookEnvelope is the outer wire shape: {"event": ..., "payload": ...}.
type webhookEnvelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type webhookPayload struct {
	Subscription *struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		CurrentEnd int64  `json:"current_end"`
	} `json:"subscription"`
	Payment *struct {
		ID        string `json:"id"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		CreatedAt int64  `json:"created_at"`
	} `json:"payment"`
}

// ParseWebhookEvent decodes a raw webhook body into a tagged event.
// Parsing fails closed: unrecognized event types return ErrUnknownEvent and
// recognized types with an unusable payload return ErrMalformedEvent, so the
// caller can acknowledge and drop instead of crashing on a surprise shape.
func ParseWebhookEvent(raw []byte) (*WebhookEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	switch env.Event {
	case EventSubscriptionAuthenticated,
		EventSubscriptionActivated,
		EventSubscriptionCancelled,
		EventSubscriptionHalted,
		EventSubscriptionCharged,
		EventSubscriptionChargeFailed:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}

	var payload webhookPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	// Every handled event is keyed by the subscription id; without one the
	// owning account cannot be resolved.
	if payload.Subscription == nil || payload.Subscription.ID == "" {
		return nil, fmt.Errorf("%w: missing subscription id for %q", ErrMalformedEvent, env.Event)
	}

	evt := &WebhookEvent{
		Type: env.Event,
		Subscription: SubscriptionEntity{
			ID:     payload.Subscription.ID,
			Status: payload.Subscription.Status,
		},
		Raw: json.RawMessage(raw),
	}
	if payload.Subscription.CurrentEnd > 0 {
		evt.Subscription.CurrentEnd = time.Unix(payload.Subscription.CurrentEnd, 0).UTC()
	}

	if payload.Payment != nil {
		p := &PaymentEntity{
			ID:          payload.Payment.ID,
			AmountCents: payload.Payment.Amount,
			Currency:    payload.Payment.Currency,
		}
		if payload.Payment.CreatedAt > 0 {
			p.CreatedAt = time.Unix(payload.Payment.CreatedAt, 0).UTC()
		}
		evt.Payment = p
	}

	return evt, nil
}
