package handlers

import (
	"net/http"
	"time"

	"github.com/freshfoldapp/freshfold/internal/cache"
	"github.com/freshfoldapp/freshfold/internal/payment"
	"github.com/freshfoldapp/freshfold/internal/services"
)

// webhookIdempotencyTTL is how long webhook event ids are kept for
// deduplication.
const webhookIdempotencyTTL = 24 * time.Hour

func (h *Handlers) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	event, err := payment.ReadWebhookEvent(r, h.config.PaymentWebhookSecret)
	if err != nil {
		logger.Error("failed to read payment webhook payload", "error", err)
		http.Error(w, "Invalid webhook", http.StatusBadRequest)
		return
	}

	if event.ID == "" || event.OrderID == "" {
		logger.Error("payment webhook missing event or order id")
		http.Error(w, "Missing event ID", http.StatusBadRequest)
		return
	}

	// Claim the event id before processing so a concurrent redelivery is
	// acknowledged without being reapplied. The claim is released on
	// failure so the sender's retry can land.
	cacheKey := cache.PaymentEventKey(event.ID)
	claimed, err := h.cacheProvider.Add(ctx, cacheKey, "processed", webhookIdempotencyTTL)
	if err != nil {
		logger.Error("failed to check webhook idempotency cache", "error", err)
		http.Error(w, "Processing failed", http.StatusInternalServerError)
		return
	}
	if !claimed {
		logger.Info("webhook already processed", "event_id", event.ID)
		w.WriteHeader(http.StatusOK)
		return
	}

	processErr := h.orderService.HandlePaymentEvent(ctx, services.PaymentEventInput{
		Type:          event.Type,
		OrderID:       event.OrderID,
		TransactionID: event.TransactionID,
		Method:        event.Method,
	})
	if processErr != nil {
		if err := h.cacheProvider.Delete(ctx, cacheKey); err != nil {
			logger.Error("failed to release webhook claim", "error", err)
		}
		logger.Error("failed to process payment webhook", "error", processErr, "type", event.Type)
		http.Error(w, "Processing failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
