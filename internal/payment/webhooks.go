// Package payment validates webhook deliveries from the payment
// confirmation service.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// SignatureHeader carries the hex-encoded HMAC-SHA256 of the raw body.
const SignatureHeader = "X-Payment-Signature"

// Event is one settled payment fact. ID is the delivery id used for
// deduplication; Type is one of payment.succeeded, payment.failed or
// refund.processed.
type Event struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	OrderID       string `json:"order_id"`
	TransactionID string `json:"transaction_id"`
	Method        string `json:"method"`
}

// ReadWebhookEvent verifies the request signature and decodes the event.
func ReadWebhookEvent(r *http.Request, secret string) (*Event, error) {
	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		return nil, fmt.Errorf("missing payment signature header")
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	if err := verifySignature(payload, signature, secret); err != nil {
		return nil, err
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode webhook payload: %w", err)
	}

	return &event, nil
}

// Sign computes the signature for a payload. Used by tests and the
// payment service's delivery tooling.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func verifySignature(payload []byte, signature, secret string) error {
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("malformed signature: %w", err)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return fmt.Errorf("webhook signature validation failed")
	}
	return nil
}
