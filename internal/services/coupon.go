package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"

	"github.com/freshfoldapp/freshfold/internal/logging"
	"github.com/freshfoldapp/freshfold/internal/models"
	"github.com/freshfoldapp/freshfold/internal/observability"
)

type CouponService struct {
	coupons couponStore
	logger  *slog.Logger
	nowFunc func() time.Time
}

func NewCouponService(coupons couponStore, logger *slog.Logger) *CouponService {
	return &CouponService{
		coupons: coupons,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// CouponPreview is the result of a standalone validation. It is advisory;
// the discount is recomputed and the caps rechecked when the order is
// actually placed.
type CouponPreview struct {
	Code                    string              `json:"code"`
	DiscountType            models.DiscountType `json:"discount_type"`
	DiscountValue           int                 `json:"discount_value"`
	CalculatedDiscountCents int                 `json:"calculated_discount_cents"`
}

// Validate checks a coupon against a prospective subtotal and returns the
// discount it would grant. Unlike checkout, every failure is surfaced to
// the caller.
func (s *CouponService) Validate(ctx context.Context, code, customerID string, subtotalCents int) (*CouponPreview, error) {
	meter := observability.MeterFromContext(ctx)
	normalized := models.NormalizeCode(code)

	coupon, err := s.coupons.GetByCode(ctx, normalized)
	if err != nil {
		return nil, err
	}

	priorUses, err := s.coupons.CustomerRedemptions(ctx, normalized, customerID)
	if err != nil {
		return nil, err
	}

	discount, err := coupon.Validate(subtotalCents, priorUses, s.nowFunc().UTC())
	if err != nil {
		meter.Count("coupon.preview.rejected", 1, sentry.WithAttributes(
			attribute.String("code", normalized),
		))
		return nil, err
	}

	logging.FromContext(ctx, s.logger).Debug("coupon validated",
		"code", normalized,
		"discount_cents", discount,
	)

	return &CouponPreview{
		Code:                    coupon.Code,
		DiscountType:            coupon.DiscountType,
		DiscountValue:           coupon.DiscountValue,
		CalculatedDiscountCents: discount,
	}, nil
}

// Inspect returns a coupon with its full redemption ledger loaded, for the
// operator console.
func (s *CouponService) Inspect(ctx context.Context, code string) (*models.Coupon, error) {
	coupon, err := s.coupons.GetByCode(ctx, models.NormalizeCode(code))
	if err != nil {
		return nil, err
	}

	usedBy, err := s.coupons.Redemptions(ctx, coupon.Code)
	if err != nil {
		return nil, err
	}
	coupon.UsedBy = usedBy

	return coupon, nil
}
