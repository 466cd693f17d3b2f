package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/freshfoldapp/freshfold/internal/models"
	"github.com/freshfoldapp/freshfold/internal/payment"
)

func (env *testEnv) postWebhook(t *testing.T, body, signature string) *httptest.ResponseRecorder {
	t.Helper()

	r := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body))
	if signature != "" {
		r.Header.Set(payment.SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, r)
	return w
}

func paymentSucceededBody(orderID string) string {
	return fmt.Sprintf(`{"id":"evt_1","type":"payment.succeeded","order_id":%q,"transaction_id":"txn_1","method":"card"}`, orderID)
}

func TestPaymentWebhookHandler(t *testing.T) {
	t.Parallel()

	const secret = "whsec_test_secret"

	t.Run("marks order paid", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		orderID := env.seedOrder(t, "cust-1", models.StatusPending)
		body := paymentSucceededBody(orderID)

		w := env.postWebhook(t, body, payment.Sign([]byte(body), secret))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}

		order, err := env.store.GetByOrderID(context.Background(), orderID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.PaymentStatus != models.PaymentPaid {
			t.Fatalf("expected paid, got %s", order.PaymentStatus)
		}
		if order.PaymentDetails == nil || order.PaymentDetails.TransactionID == "txn_1" {
			t.Fatal("expected transaction id to be stored encrypted")
		}
	})

	t.Run("redelivery is acknowledged without reapplying", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		orderID := env.seedOrder(t, "cust-1", models.StatusPending)
		body := paymentSucceededBody(orderID)
		signature := payment.Sign([]byte(body), secret)

		if w := env.postWebhook(t, body, signature); w.Code != http.StatusOK {
			t.Fatalf("first delivery failed: %d", w.Code)
		}

		// A second identical delivery would fail MarkPaid if reapplied;
		// the dedupe cache must absorb it instead.
		if w := env.postWebhook(t, body, signature); w.Code != http.StatusOK {
			t.Fatalf("expected 200 for redelivery, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("rejects bad signature", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		orderID := env.seedOrder(t, "cust-1", models.StatusPending)
		body := paymentSucceededBody(orderID)

		w := env.postWebhook(t, body, payment.Sign([]byte(body), "wrong"))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("rejects missing signature", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		w := env.postWebhook(t, `{"id":"evt_1"}`, "")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("failed processing releases the claim", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		body := paymentSucceededBody("FF-20260830-ZZZZZZZZZZZZ")
		signature := payment.Sign([]byte(body), secret)

		if w := env.postWebhook(t, body, signature); w.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500 for unknown order, got %d", w.Code)
		}

		// Seed the order and retry the same event id; the claim must have
		// been released so the retry can process.
		env.store.mu.Lock()
		env.store.orders["FF-20260830-ZZZZZZZZZZZZ"] = &models.Order{
			OrderID:       "FF-20260830-ZZZZZZZZZZZZ",
			CustomerID:    "cust-1",
			Status:        models.StatusPending,
			PaymentStatus: models.PaymentPending,
		}
		env.store.mu.Unlock()

		if w := env.postWebhook(t, body, signature); w.Code != http.StatusOK {
			t.Fatalf("expected retry to succeed, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("refund processed", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		orderID := env.seedOrder(t, "cust-1", models.StatusCancelled)
		env.store.mu.Lock()
		env.store.orders[orderID].PaymentStatus = models.PaymentPaid
		env.store.orders[orderID].RefundStatus = models.RefundPending
		env.store.mu.Unlock()

		body := fmt.Sprintf(`{"id":"evt_2","type":"refund.processed","order_id":%q}`, orderID)
		w := env.postWebhook(t, body, payment.Sign([]byte(body), secret))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}

		order, _ := env.store.GetByOrderID(context.Background(), orderID)
		if order.RefundStatus != models.RefundProcessed || order.PaymentStatus != models.PaymentRefunded {
			t.Fatalf("unexpected state %s %s", order.RefundStatus, order.PaymentStatus)
		}
	})
}
