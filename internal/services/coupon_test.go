package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/freshfoldapp/freshfold/internal/models"
)

func TestCouponServiceValidate(t *testing.T) {
	t.Parallel()

	t.Run("returns preview for valid coupon", func(t *testing.T) {
		t.Parallel()

		store := newFakeStore()
		storeCoupon(store, func(c *models.Coupon) { c.MaxDiscountCents = 500 })
		svc := NewCouponService(store, discardLogger())

		preview, err := svc.Validate(context.Background(), "  save10 ", "cust-1", 6000)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if preview.Code != "SAVE10" {
			t.Fatalf("expected normalized code, got %q", preview.Code)
		}
		if preview.CalculatedDiscountCents != 500 {
			t.Fatalf("expected capped discount 500, got %d", preview.CalculatedDiscountCents)
		}
		if preview.DiscountType != models.DiscountPercentage || preview.DiscountValue != 10 {
			t.Fatalf("unexpected preview %+v", preview)
		}
	})

	t.Run("unknown code fails hard", func(t *testing.T) {
		t.Parallel()

		svc := NewCouponService(newFakeStore(), discardLogger())
		if _, err := svc.Validate(context.Background(), "NOPE", "cust-1", 6000); !errors.Is(err, models.ErrCouponNotFound) {
			t.Fatalf("expected ErrCouponNotFound, got %v", err)
		}
	})

	t.Run("expired code fails hard", func(t *testing.T) {
		t.Parallel()

		store := newFakeStore()
		storeCoupon(store, func(c *models.Coupon) { c.ValidUntil = time.Now().UTC().Add(-time.Hour) })
		svc := NewCouponService(store, discardLogger())

		if _, err := svc.Validate(context.Background(), "SAVE10", "cust-1", 6000); !errors.Is(err, models.ErrCouponExpired) {
			t.Fatalf("expected ErrCouponExpired, got %v", err)
		}
	})

	t.Run("already redeemed by customer fails hard", func(t *testing.T) {
		t.Parallel()

		store := newFakeStore()
		storeCoupon(store, nil)
		store.ledger["SAVE10"] = append(store.ledger["SAVE10"], models.Redemption{
			CustomerID: "cust-1",
			OrderID:    "FF-20260830-AAAAAAAAAAAA",
			Timestamp:  time.Now().UTC(),
		})
		svc := NewCouponService(store, discardLogger())

		if _, err := svc.Validate(context.Background(), "SAVE10", "cust-1", 6000); !errors.Is(err, models.ErrCouponAlreadyUsed) {
			t.Fatalf("expected ErrCouponAlreadyUsed, got %v", err)
		}
	})

	t.Run("below minimum order fails hard", func(t *testing.T) {
		t.Parallel()

		store := newFakeStore()
		storeCoupon(store, nil)
		svc := NewCouponService(store, discardLogger())

		if _, err := svc.Validate(context.Background(), "SAVE10", "cust-1", 900); !errors.Is(err, models.ErrCouponMinOrderNotMet) {
			t.Fatalf("expected ErrCouponMinOrderNotMet, got %v", err)
		}
	})
}

func TestCouponServiceInspect(t *testing.T) {
	t.Parallel()

	t.Run("loads the redemption ledger", func(t *testing.T) {
		t.Parallel()

		store := newFakeStore()
		storeCoupon(store, func(c *models.Coupon) { c.UsedCount = 2 })
		store.ledger["SAVE10"] = []models.Redemption{
			{CustomerID: "cust-1", OrderID: "FF-20260829-0D418BC2E671", Timestamp: time.Now().UTC().Add(-time.Hour)},
			{CustomerID: "cust-2", OrderID: "FF-20260830-77F1A09C3B54", Timestamp: time.Now().UTC()},
		}
		svc := NewCouponService(store, discardLogger())

		coupon, err := svc.Inspect(context.Background(), " save10 ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if coupon.Code != "SAVE10" || coupon.UsedCount != 2 {
			t.Fatalf("unexpected coupon %+v", coupon)
		}
		if len(coupon.UsedBy) != 2 {
			t.Fatalf("expected 2 ledger entries, got %d", len(coupon.UsedBy))
		}
		if coupon.UsedBy[0].CustomerID != "cust-1" || coupon.UsedBy[1].OrderID != "FF-20260830-77F1A09C3B54" {
			t.Fatalf("unexpected ledger %+v", coupon.UsedBy)
		}
	})

	t.Run("unknown code is not found", func(t *testing.T) {
		t.Parallel()

		svc := NewCouponService(newFakeStore(), discardLogger())
		if _, err := svc.Inspect(context.Background(), "NOPE"); !errors.Is(err, models.ErrCouponNotFound) {
			t.Fatalf("expected ErrCouponNotFound, got %v", err)
		}
	})
}
