package models

import (
	"strings"
	"time"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Redemption is one recorded use of a coupon by a specific customer
// against a specific order. The redemption ledger is append-only.
type Redemption struct {
	CustomerID string    `json:"customer_id"`
	OrderID    string    `json:"order_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// Coupon is a promotional rule. Codes are case-normalized to upper case.
// DiscountValue is a whole percentage for percentage coupons and cents for
// fixed coupons. Zero UsageLimit means unlimited; zero MaxDiscountCents
// means uncapped.
type Coupon struct {
	Code             string       `json:"code"`
	DiscountType     DiscountType `json:"discount_type"`
	DiscountValue    int          `json:"discount_value"`
	MaxDiscountCents int          `json:"max_discount_cents,omitempty"`
	MinOrderCents    int          `json:"min_order_cents"`
	ValidFrom        time.Time    `json:"valid_from"`
	ValidUntil       time.Time    `json:"valid_until"`
	UsageLimit       int          `json:"usage_limit,omitempty"`
	UsedCount        int          `json:"used_count"`
	UserUsageLimit   int          `json:"user_usage_limit"`
	IsActive         bool         `json:"is_active"`
	UsedBy           []Redemption `json:"used_by,omitempty"`
}

// NormalizeCode upper-cases and trims a coupon code before any lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate runs the redemption checks in order, short-circuiting on the
// first failure, and returns the discount in cents on success. priorUses
// is the number of redemptions already recorded for the requesting
// customer; the caller supplies it from the ledger.
//
// The check order is fixed: active, validity window, global usage cap,
// per-customer cap, minimum order value.
func (c *Coupon) Validate(subtotalCents, priorUses int, now time.Time) (int, error) {
	if !c.IsActive {
		return 0, ErrCouponNotFound
	}
	if now.Before(c.ValidFrom) || now.After(c.ValidUntil) {
		return 0, ErrCouponExpired
	}
	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return 0, ErrCouponUsageExceeded
	}
	if priorUses >= c.userLimit() {
		return 0, ErrCouponAlreadyUsed
	}
	if subtotalCents < c.MinOrderCents {
		return 0, ErrCouponMinOrderNotMet
	}
	return c.Discount(subtotalCents), nil
}

// Discount computes the discount for a given subtotal without running the
// redemption checks. Percentage discounts are capped at MaxDiscountCents
// when set; fixed discounts never exceed the subtotal.
func (c *Coupon) Discount(subtotalCents int) int {
	switch c.DiscountType {
	case DiscountPercentage:
		discount := subtotalCents * c.DiscountValue / 100
		if c.MaxDiscountCents > 0 && discount > c.MaxDiscountCents {
			discount = c.MaxDiscountCents
		}
		return discount
	case DiscountFixed:
		if c.DiscountValue > subtotalCents {
			return subtotalCents
		}
		return c.DiscountValue
	default:
		return 0
	}
}

func (c *Coupon) userLimit() int {
	if c.UserUsageLimit <= 0 {
		return 1
	}
	return c.UserUsageLimit
}
