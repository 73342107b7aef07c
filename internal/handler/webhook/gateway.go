package webhook

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/counterbook/counterbook/internal/billing"
	"github.com/counterbook/counterbook/internal/domain"
	"github.com/counterbook/counterbook/internal/handler"
	"github.com/counterbook/counterbook/internal/service"
	"github.com/counterbook/counterbook/internal/telemetry"
)

// SignatureHeader carries the gateway's HMAC over the raw body.
const SignatureHeader = "X-Signature"

// maxBodyBytes caps webhook payloads; gateway events are small.
const maxBodyBytes = 1 << 20

// GatewayHandler handles payment gateway webhook events
type GatewayHandler struct {
	subscriptions service.SubscriptionService
	config        GatewayWebhookConfig
	logger        *slog.Logger
}

// GatewayWebhookConfig contains configuration for webhook handling
type GatewayWebhookConfig struct {
	// WebhookSecret is the signing secret from the gateway dashboard.
	// Distinct from the checkout secret used for mandate verification.
	WebhookSecret string
}

// NewGatewayHandler creates a new gateway webhook handler
func NewGatewayHandler(subscriptions service.SubscriptionService, config GatewayWebhookConfig, logger *slog.Logger) *GatewayHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GatewayHandler{
		subscriptions: subscriptions,
		config:        config,
		logger:        logger,
	}
}

// HandleWebhook processes incoming gateway webhook events.
//
// Contract with the gateway: a non-2xx response triggers redelivery, so
// only a bad signature is rejected. Unknown event types, malformed
// payloads, and internal processing failures are all acknowledged with
// 200 - retrying those deliveries cannot help, and redelivery storms are
// worse than a logged drop.
func (h *GatewayHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	if r.Method != http.MethodPost {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "webhook.gateway", "Method not allowed"))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "webhook.gateway", "Error reading request body"))
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		h.logger.Warn("webhook missing signature header")
		if telemetry.Business != nil {
			telemetry.Business.WebhookRejected.Inc()
		}
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "webhook.gateway", "Missing signature"))
		return
	}

	if err := billing.VerifyWebhookSignature(h.config.WebhookSecret, payload, signature); err != nil {
		h.logger.Warn("webhook signature verification failed", "payload_bytes", len(payload))
		if telemetry.Business != nil {
			telemetry.Business.WebhookRejected.Inc()
		}
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "webhook.gateway", "Invalid signature"))
		return
	}

	evt, err := billing.ParseWebhookEvent(payload)
	if err != nil {
		// Authenticated but unusable. Ack so the gateway stops retrying.
		switch {
		case errors.Is(err, billing.ErrUnknownEvent):
			h.logger.Info("ignoring unknown webhook event type")
		default:
			h.logger.Error("malformed webhook payload", "error", err)
			telemetry.CaptureError(err, map[string]interface{}{
				"op":            "webhook.parse",
				"payload_bytes": len(payload),
			})
		}
		ack(w)
		return
	}

	h.logger.Info("webhook received",
		"event", evt.Type,
		"subscription_id", evt.Subscription.ID,
	)

	if telemetry.Business != nil {
		telemetry.Business.WebhookReceived.WithLabelValues(evt.Type).Inc()
	}

	defer func() {
		if telemetry.Business != nil {
			telemetry.Business.WebhookLatency.WithLabelValues(evt.Type).Observe(time.Since(startTime).Seconds())
		}
	}()

	if err := h.subscriptions.ProcessEvent(r.Context(), evt); err != nil {
		h.logger.Error("webhook processing failed",
			"event", evt.Type,
			"subscription_id", evt.Subscription.ID,
			"error", err,
		)
		telemetry.CaptureError(err, map[string]interface{}{
			"op":              "webhook.process",
			"event":           evt.Type,
			"subscription_id": evt.Subscription.ID,
		})
		if telemetry.Business != nil {
			telemetry.Business.WebhookFailed.WithLabelValues(evt.Type, domain.ErrorCode(err)).Inc()
		}
		// Still ack: the event is signed and parsed, a retry would hit
		// the same failure. Operators chase these via logs and Sentry.
		ack(w)
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.WebhookProcessed.WithLabelValues(evt.Type).Inc()
	}

	ack(w)
}

func ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"success": true}`))
}
