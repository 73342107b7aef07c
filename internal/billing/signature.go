package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// ComputeSignature returns the hex-encoded HMAC-SHA256 of message.
func ComputeSignature(secret string, message []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a hex-encoded HMAC-SHA256 signature against the
// message in constant time. Returns ErrInvalidSignature on mismatch.
func VerifySignature(secret string, message []byte, signature string) error {
	expected := ComputeSignature(secret, message)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyMandateSignature checks the signature the gateway hands to the
// browser after the verification charge. The signed message is
// "<paymentID>|<mandateID>", keyed with the API key secret.
func VerifyMandateSignature(secret, paymentID, mandateID, signature string) error {
	return VerifySignature(secret, []byte(paymentID+"|"+mandateID), signature)
}

// VerifyWebhookSignature checks the X-Signature header of a webhook delivery
// against the unparsed request body. Any transformation of the body before
// this call invalidates the signature.
func VerifyWebhookSignature(secret string, rawBody []byte, signature string) error {
	return VerifySignature(secret, rawBody, signature)
}
