package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSignature is returned when signature verification fails,
	// for both checkout callbacks and webhook deliveries.
	ErrInvalidSignature = errors.New("billing: invalid signature")

	// ErrMissingCredentials is returned when the gateway key pair is not
	// configured.
	ErrMissingCredentials = errors.New("billing: missing gateway credentials")

	// ErrUnknownEvent is returned by ParseWebhookEvent for event types the
	// reconciler does not handle. Callers acknowledge and drop.
	ErrUnknownEvent = errors.New("billing: unknown webhook event type")

	// ErrMalformedEvent is returned when a known event type arrives with a
	// payload shape that does not parse. Callers acknowledge and drop.
	ErrMalformedEvent = errors.New("billing: malformed webhook payload")
)

// GatewayError wraps an error response from the gateway API.
// StatusCode and Description are surfaced to callers of the mandate and
// cancellation flows; webhook processing never sees one of these.
type GatewayError struct {
	// StatusCode is the HTTP status the gateway responded with.
	StatusCode int

	// Code is the gateway's machine error code (e.g., "BAD_REQUEST_ERROR").
	Code string

	// Description is the gateway's human-readable message.
	Description string

	// OriginalError is the transport error, if the request never completed.
	OriginalError error
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway: %s (code: %s, status: %d)", e.Description, e.Code, e.StatusCode)
	}
	if e.OriginalError != nil {
		return fmt.Sprintf("gateway: %v", e.OriginalError)
	}
	return fmt.Sprintf("gateway: %s (status: %d)", e.Description, e.StatusCode)
}

func (e *GatewayError) Unwrap() error {
	return e.OriginalError
}

// IsTemporary returns true if the request may succeed on retry.
func (e *GatewayError) IsTemporary() bool {
	return e.StatusCode >= 500 || e.OriginalError != nil
}
