package handlers

import (
	"net/http"
)

type validateCouponRequest struct {
	Code          string `json:"code" validate:"required"`
	SubtotalCents int    `json:"subtotal_cents" validate:"required,gt=0"`
}

// ValidateCoupon previews a coupon against a prospective subtotal. Unlike
// checkout this path fails hard so the client can show a precise reason.
func (h *Handlers) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeErrorCode(w, http.StatusUnauthorized, "unauthorized", "missing credentials")
		return
	}

	var req validateCouponRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	preview, err := h.couponService.Validate(r.Context(), req.Code, claims.Subject, req.SubtotalCents)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, preview)
}
