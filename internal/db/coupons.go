package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freshfoldapp/freshfold/internal/models"
)

type CouponStore struct {
	pool *pgxpool.Pool
}

func NewCouponStore(pool *pgxpool.Pool) *CouponStore {
	return &CouponStore{pool: pool}
}

// GetByCode looks up a coupon by its normalized code. The redemption
// ledger is not loaded; use CustomerRedemptions for per-customer counts.
func (s *CouponStore) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var (
		coupon      models.Coupon
		maxDiscount pgtype.Int4
		usageLimit  pgtype.Int4
	)

	err := s.pool.QueryRow(ctx, `
		SELECT code, discount_type, discount_value, max_discount_cents,
		       min_order_cents, valid_from, valid_until,
		       usage_limit, used_count, user_usage_limit, is_active
		FROM coupons
		WHERE code = $1`, models.NormalizeCode(code),
	).Scan(
		&coupon.Code, &coupon.DiscountType, &coupon.DiscountValue, &maxDiscount,
		&coupon.MinOrderCents, &coupon.ValidFrom, &coupon.ValidUntil,
		&usageLimit, &coupon.UsedCount, &coupon.UserUsageLimit, &coupon.IsActive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrCouponNotFound
	}
	if err != nil {
		return nil, err
	}

	if maxDiscount.Valid {
		coupon.MaxDiscountCents = int(maxDiscount.Int32)
	}
	if usageLimit.Valid {
		coupon.UsageLimit = int(usageLimit.Int32)
	}

	return &coupon, nil
}

// CustomerRedemptions counts the ledger entries a customer already holds
// for a coupon.
func (s *CouponStore) CustomerRedemptions(ctx context.Context, code, customerID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM coupon_redemptions
		WHERE coupon_code = $1 AND customer_id = $2`,
		models.NormalizeCode(code), customerID,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Redemptions returns the full append-only ledger for a coupon, newest
// first.
func (s *CouponStore) Redemptions(ctx context.Context, code string) ([]models.Redemption, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT customer_id, order_id, created_at
		FROM coupon_redemptions
		WHERE coupon_code = $1
		ORDER BY created_at DESC`, models.NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var redemptions []models.Redemption
	for rows.Next() {
		var r models.Redemption
		if err := rows.Scan(&r.CustomerID, &r.OrderID, &r.Timestamp); err != nil {
			return nil, err
		}
		redemptions = append(redemptions, r)
	}
	return redemptions, rows.Err()
}
