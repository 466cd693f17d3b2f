package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/freshfoldapp/freshfold/internal/models"
)

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note"`
}

// UpdateOrderStatus moves an order along the fulfillment pipeline on
// behalf of an operator.
func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeErrorCode(w, http.StatusUnauthorized, "unauthorized", "missing credentials")
		return
	}

	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	next := models.OrderStatus(req.Status)
	if !next.IsValid() {
		writeErrorCode(w, http.StatusBadRequest, "invalid_request", "unknown status")
		return
	}

	order, err := h.orderService.UpdateStatus(r.Context(), mux.Vars(r)["orderId"], next, req.Note, claims.Subject)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// ListRecentOrders returns the operator work queue, optionally filtered by
// status.
func (h *Handlers) ListRecentOrders(w http.ResponseWriter, r *http.Request) {
	status := models.OrderStatus(r.URL.Query().Get("status"))
	if status != "" && !status.IsValid() {
		writeErrorCode(w, http.StatusBadRequest, "invalid_request", "unknown status filter")
		return
	}

	orders, err := h.orderService.ListRecent(r.Context(), status, queryLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if orders == nil {
		orders = []*models.Order{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// InspectCoupon returns a coupon together with its redemption ledger so
// operators can audit who used a code and when.
func (h *Handlers) InspectCoupon(w http.ResponseWriter, r *http.Request) {
	coupon, err := h.couponService.Inspect(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, coupon)
}
