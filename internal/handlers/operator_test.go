package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/freshfoldapp/freshfold/internal/models"
)

func TestUpdateOrderStatusHandler(t *testing.T) {
	t.Parallel()

	t.Run("advances status", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		orderID := env.seedOrder(t, "cust-1", models.StatusPending)

		w := env.do(t, http.MethodPost, "/api/operator/orders/"+orderID+"/status",
			`{"status": "confirmed", "note": "driver assigned"}`, operatorClaims())
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var order models.Order
		if err := json.Unmarshal(w.Body.Bytes(), &order); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if order.Status != models.StatusConfirmed {
			t.Fatalf("expected confirmed, got %s", order.Status)
		}
		last := order.StatusHistory[len(order.StatusHistory)-1]
		if last.Note != "driver assigned" || last.Actor != "op-1" {
			t.Fatalf("unexpected history tail %+v", last)
		}
	})

	t.Run("backward transition conflicts", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		orderID := env.seedOrder(t, "cust-1", models.StatusReady)

		w := env.do(t, http.MethodPost, "/api/operator/orders/"+orderID+"/status",
			`{"status": "picked_up"}`, operatorClaims())
		if w.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", w.Code)
		}
	})

	t.Run("unknown status is a bad request", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		orderID := env.seedOrder(t, "cust-1", models.StatusPending)

		w := env.do(t, http.MethodPost, "/api/operator/orders/"+orderID+"/status",
			`{"status": "teleported"}`, operatorClaims())
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("operator cancel from in_process", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		orderID := env.seedOrder(t, "cust-1", models.StatusInProcess)

		w := env.do(t, http.MethodPost, "/api/operator/orders/"+orderID+"/status",
			`{"status": "cancelled", "note": "machine breakdown"}`, operatorClaims())
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var order models.Order
		if err := json.Unmarshal(w.Body.Bytes(), &order); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if order.Status != models.StatusCancelled || order.CancellationReason != "machine breakdown" {
			t.Fatalf("unexpected order %+v", order)
		}
	})
}

func TestListRecentOrdersHandler(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedOrder(t, "cust-1", models.StatusPending)
	env.seedOrder(t, "cust-2", models.StatusReady)

	t.Run("lists all", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/operator/orders", "", operatorClaims())
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var payload struct {
			Orders []models.Order `json:"orders"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(payload.Orders) != 2 {
			t.Fatalf("expected 2 orders, got %d", len(payload.Orders))
		}
	})

	t.Run("filters by status", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/operator/orders?status=ready", "", operatorClaims())
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var payload struct {
			Orders []models.Order `json:"orders"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(payload.Orders) != 1 || payload.Orders[0].Status != models.StatusReady {
			t.Fatalf("unexpected orders %+v", payload.Orders)
		}
	})

	t.Run("rejects unknown filter", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/operator/orders?status=bogus", "", operatorClaims())
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})
}

func TestInspectCouponHandler(t *testing.T) {
	t.Parallel()

	t.Run("returns coupon with ledger", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.store.coupons["SAVE10"] = &models.Coupon{
			Code:          "SAVE10",
			DiscountType:  models.DiscountPercentage,
			DiscountValue: 10,
			UsedCount:     1,
			IsActive:      true,
		}
		env.store.ledger["SAVE10"] = []models.Redemption{
			{CustomerID: "cust-1", OrderID: "FF-20260830-4C2E91A7D0F3"},
		}

		w := env.do(t, http.MethodGet, "/api/operator/coupons/SAVE10", "", operatorClaims())
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var coupon models.Coupon
		if err := json.Unmarshal(w.Body.Bytes(), &coupon); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if coupon.Code != "SAVE10" || coupon.UsedCount != 1 {
			t.Fatalf("unexpected coupon %+v", coupon)
		}
		if len(coupon.UsedBy) != 1 || coupon.UsedBy[0].CustomerID != "cust-1" {
			t.Fatalf("unexpected ledger %+v", coupon.UsedBy)
		}
	})

	t.Run("unknown code is not found", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		w := env.do(t, http.MethodGet, "/api/operator/coupons/NOPE", "", operatorClaims())
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
	})
}
