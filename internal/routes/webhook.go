package routes

import (
	"github.com/counterbook/counterbook/internal/router"
)

// RegisterWebhookRoutes registers all webhook routes.
// These routes handle incoming webhooks from external services.
//
// Note: Webhook routes do NOT have authentication middleware.
// The handler verifies the gateway's HMAC signature over the raw body.
func RegisterWebhookRoutes(r *router.Router, deps WebhookDeps) {
	r.Post("/webhooks/gateway", deps.GatewayHandler)
}
