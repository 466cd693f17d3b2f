package models

import "errors"

// Validation errors are caller-correctable and returned synchronously.
var (
	ErrInvalidCart          = errors.New("cart is empty or contains invalid lines")
	ErrCouponNotFound       = errors.New("coupon not found")
	ErrCouponExpired        = errors.New("coupon is outside its validity window")
	ErrCouponUsageExceeded  = errors.New("coupon usage limit reached")
	ErrCouponAlreadyUsed    = errors.New("coupon already used by this customer")
	ErrCouponMinOrderNotMet = errors.New("order subtotal below coupon minimum")
)

// State errors indicate a request incompatible with current persisted state.
var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrOrderNotCancellable     = errors.New("order can no longer be cancelled")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	ErrPaymentStateInvalid     = errors.New("order payment state does not allow this update")
	ErrRefundNotPending        = errors.New("order has no pending refund")
)
