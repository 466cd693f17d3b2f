package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/freshfoldapp/freshfold/internal/models"
)

var requestValidator = validator.New(validator.WithRequiredStructEnabled())

// decodeJSON reads and validates a JSON request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}

	if err := requestValidator.Struct(dst); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

// writeError maps domain sentinel errors to HTTP statuses. Anything
// unmapped is an internal error and its detail stays out of the response.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrOrderNotFound):
		writeErrorCode(w, http.StatusNotFound, "order_not_found", "order not found")
	case errors.Is(err, models.ErrCouponNotFound):
		writeErrorCode(w, http.StatusNotFound, "coupon_not_found", "coupon not found")
	case errors.Is(err, models.ErrInvalidCart):
		writeErrorCode(w, http.StatusBadRequest, "invalid_cart", err.Error())
	case errors.Is(err, models.ErrCouponExpired):
		writeErrorCode(w, http.StatusUnprocessableEntity, "coupon_expired", "coupon is not valid at this time")
	case errors.Is(err, models.ErrCouponUsageExceeded):
		writeErrorCode(w, http.StatusUnprocessableEntity, "coupon_usage_exceeded", "coupon usage limit reached")
	case errors.Is(err, models.ErrCouponAlreadyUsed):
		writeErrorCode(w, http.StatusUnprocessableEntity, "coupon_already_used", "coupon already used by this customer")
	case errors.Is(err, models.ErrCouponMinOrderNotMet):
		writeErrorCode(w, http.StatusUnprocessableEntity, "coupon_min_order_not_met", "order subtotal below coupon minimum")
	case errors.Is(err, models.ErrOrderNotCancellable):
		writeErrorCode(w, http.StatusConflict, "order_not_cancellable", "order can no longer be cancelled")
	case errors.Is(err, models.ErrInvalidStatusTransition):
		writeErrorCode(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, models.ErrPaymentStateInvalid):
		writeErrorCode(w, http.StatusConflict, "payment_state_invalid", "order payment state does not allow this event")
	case errors.Is(err, models.ErrRefundNotPending):
		writeErrorCode(w, http.StatusConflict, "refund_not_pending", "order has no pending refund")
	default:
		writeErrorCode(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
