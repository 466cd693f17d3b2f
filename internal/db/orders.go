package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freshfoldapp/freshfold/internal/models"
)

type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderColumns = `
	id, order_id, customer_id, items, total_item_count,
	subtotal_cents, discount_cents, delivery_cents, tax_cents, total_cents,
	coupon_code, status, status_history,
	pickup_address, delivery_address, pickup_date, delivery_date,
	pickup_window, delivery_window, actual_pickup_at, actual_delivery_at,
	payment_method, payment_status, payment_details,
	refund_status, refund_amount_cents, cancellation_reason, customer_note,
	created_at`

// Create persists a new order. When order.CouponCode is set, the coupon
// redemption is recorded in the same transaction, so the order and the
// redemption commit or roll back as one unit. The coupon row is locked for
// the duration, serializing redemption per coupon code, and the usage
// predicates are re-checked at write time.
func (s *OrderStore) Create(ctx context.Context, order *models.Order) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return err
	}
	historyJSON, err := json.Marshal(order.StatusHistory)
	if err != nil {
		return err
	}
	pickupAddrJSON, err := json.Marshal(order.PickupAddress)
	if err != nil {
		return err
	}
	deliveryAddrJSON, err := json.Marshal(order.DeliveryAddress)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (
			id, order_id, customer_id, items, total_item_count,
			subtotal_cents, discount_cents, delivery_cents, tax_cents, total_cents,
			coupon_code, status, status_history,
			pickup_address, delivery_address, pickup_date, delivery_date,
			pickup_window, delivery_window,
			payment_method, payment_status, refund_status, refund_amount_cents,
			customer_note, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25
		)`,
		order.ID, order.OrderID, order.CustomerID, itemsJSON, order.TotalItemCount,
		order.SubtotalCents, order.DiscountCents, order.DeliveryCents, order.TaxCents, order.TotalCents,
		textOrNull(order.CouponCode), string(order.Status), historyJSON,
		pickupAddrJSON, deliveryAddrJSON, order.PickupDate, order.DeliveryDate,
		order.PickupWindow, order.DeliveryWindow,
		order.PaymentMethod, string(order.PaymentStatus), string(order.RefundStatus), order.RefundAmountCents,
		textOrNull(order.CustomerNote), order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	if order.CouponCode != "" {
		if err := redeemCoupon(ctx, tx, order.CouponCode, order.CustomerID, order.OrderID, order.CreatedAt); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}
	return nil
}

// redeemCoupon appends a redemption ledger entry and increments the usage
// counter inside the caller's transaction. The SELECT ... FOR UPDATE makes
// concurrent check-then-increment sequences equivalent to a single atomic
// compare-and-increment. Retried redemptions for the same order id are
// absorbed by the unique ledger key and do not double-count.
func redeemCoupon(ctx context.Context, tx pgx.Tx, code, customerID, orderID string, now time.Time) error {
	var (
		usageLimit     pgtype.Int4
		usedCount      int
		userUsageLimit int
	)
	err := tx.QueryRow(ctx, `
		SELECT usage_limit, used_count, user_usage_limit
		FROM coupons
		WHERE code = $1
		FOR UPDATE`, code,
	).Scan(&usageLimit, &usedCount, &userUsageLimit)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrCouponNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock coupon: %w", err)
	}

	if usageLimit.Valid && usedCount >= int(usageLimit.Int32) {
		return models.ErrCouponUsageExceeded
	}

	var priorUses int
	err = tx.QueryRow(ctx, `
		SELECT count(*)
		FROM coupon_redemptions
		WHERE coupon_code = $1 AND customer_id = $2`, code, customerID,
	).Scan(&priorUses)
	if err != nil {
		return fmt.Errorf("failed to count customer redemptions: %w", err)
	}
	if priorUses >= userUsageLimit {
		return models.ErrCouponAlreadyUsed
	}

	cmdTag, err := tx.Exec(ctx, `
		INSERT INTO coupon_redemptions (coupon_code, customer_id, order_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_id) DO NOTHING`,
		code, customerID, orderID, now,
	)
	if err != nil {
		return fmt.Errorf("failed to record redemption: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		// Already redeemed for this order id.
		return nil
	}

	if _, err := tx.Exec(ctx, `UPDATE coupons SET used_count = used_count + 1 WHERE code = $1`, code); err != nil {
		return fmt.Errorf("failed to increment coupon usage: %w", err)
	}
	return nil
}

func (s *OrderStore) GetByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id = $1`, orderID)
	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderStore) ListByCustomer(ctx context.Context, customerID string, limit int) ([]*models.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOrders(rows)
}

// ListRecent returns the newest orders across customers, optionally
// filtered by status. Operator-facing.
func (s *OrderStore) ListRecent(ctx context.Context, status models.OrderStatus, limit int) ([]*models.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOrders(rows)
}

// UpdateStatus moves an order from expected to entry.Status and appends
// the history entry in the same statement. The expected-status guard makes
// the update a compare-and-set; a concurrent change surfaces as
// ErrInvalidStatusTransition. Entering picked_up or delivered also stamps
// the corresponding actual date once.
func (s *OrderStore) UpdateStatus(ctx context.Context, orderID string, expected models.OrderStatus, entry models.StatusHistoryEntry) error {
	entryJSON, err := json.Marshal([]models.StatusHistoryEntry{entry})
	if err != nil {
		return err
	}

	query := `
		UPDATE orders
		SET status = $1,
		    status_history = status_history || $2::jsonb,
		    actual_pickup_at = CASE WHEN $1 = 'picked_up' AND actual_pickup_at IS NULL THEN $3 ELSE actual_pickup_at END,
		    actual_delivery_at = CASE WHEN $1 = 'delivered' AND actual_delivery_at IS NULL THEN $3 ELSE actual_delivery_at END
		WHERE order_id = $4 AND status = $5
	`
	cmdTag, err := s.pool.Exec(ctx, query, string(entry.Status), entryJSON, entry.Timestamp, orderID, string(expected))
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected %s", models.ErrInvalidStatusTransition, expected)
	}
	return nil
}

// Cancel terminates an order, appending the history entry and booking
// refund fields when refundCents is positive. The allowed-status guard is
// re-checked at write time; a zero row count means the order moved out of
// a cancellable state concurrently.
func (s *OrderStore) Cancel(ctx context.Context, orderID string, allowedFrom []models.OrderStatus, entry models.StatusHistoryEntry, reason string, refundCents int) error {
	entryJSON, err := json.Marshal([]models.StatusHistoryEntry{entry})
	if err != nil {
		return err
	}

	allowed := make([]string, len(allowedFrom))
	for i, status := range allowedFrom {
		allowed[i] = string(status)
	}

	query := `
		UPDATE orders
		SET status = $1,
		    status_history = status_history || $2::jsonb,
		    cancellation_reason = $3,
		    refund_status = CASE WHEN $4 > 0 THEN 'pending' ELSE refund_status END,
		    refund_amount_cents = CASE WHEN $4 > 0 THEN $4 ELSE refund_amount_cents END
		WHERE order_id = $5 AND status = ANY($6)
	`
	cmdTag, err := s.pool.Exec(ctx, query, string(models.StatusCancelled), entryJSON, reason, refundCents, orderID, allowed)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrOrderNotCancellable
	}
	return nil
}

// MarkPaid records payment confirmation from the payment collaborator.
// details.TransactionID must already be encrypted by the caller.
func (s *OrderStore) MarkPaid(ctx context.Context, orderID string, details models.PaymentDetails) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return err
	}

	query := `
		UPDATE orders
		SET payment_status = 'paid', payment_details = $1
		WHERE order_id = $2 AND payment_status IN ('pending', 'failed')
	`
	cmdTag, err := s.pool.Exec(ctx, query, detailsJSON, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected pending/failed", models.ErrPaymentStateInvalid)
	}
	return nil
}

func (s *OrderStore) MarkPaymentFailed(ctx context.Context, orderID string) error {
	query := `
		UPDATE orders
		SET payment_status = 'failed'
		WHERE order_id = $1 AND payment_status = 'pending'
	`
	cmdTag, err := s.pool.Exec(ctx, query, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected pending", models.ErrPaymentStateInvalid)
	}
	return nil
}

// MarkRefundProcessed records that the external refund settlement
// completed for a cancelled, paid order.
func (s *OrderStore) MarkRefundProcessed(ctx context.Context, orderID string) error {
	query := `
		UPDATE orders
		SET refund_status = 'processed', payment_status = 'refunded'
		WHERE order_id = $1 AND refund_status = 'pending'
	`
	cmdTag, err := s.pool.Exec(ctx, query, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrRefundNotPending
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		order                                models.Order
		itemsJSON, historyJSON               []byte
		pickupAddrJSON, deliveryAddrJSON     []byte
		paymentDetailsJSON                   []byte
		couponCode, cancellationReason, note pgtype.Text
		status, paymentStatus, refundStatus  string
		actualPickupAt, actualDeliveryAt     pgtype.Timestamptz
	)

	err := row.Scan(
		&order.ID, &order.OrderID, &order.CustomerID, &itemsJSON, &order.TotalItemCount,
		&order.SubtotalCents, &order.DiscountCents, &order.DeliveryCents, &order.TaxCents, &order.TotalCents,
		&couponCode, &status, &historyJSON,
		&pickupAddrJSON, &deliveryAddrJSON, &order.PickupDate, &order.DeliveryDate,
		&order.PickupWindow, &order.DeliveryWindow, &actualPickupAt, &actualDeliveryAt,
		&order.PaymentMethod, &paymentStatus, &paymentDetailsJSON,
		&refundStatus, &order.RefundAmountCents, &cancellationReason, &note,
		&order.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	order.Status = models.OrderStatus(status)
	order.PaymentStatus = models.PaymentStatus(paymentStatus)
	order.RefundStatus = models.RefundStatus(refundStatus)

	if couponCode.Valid {
		order.CouponCode = couponCode.String
	}
	if cancellationReason.Valid {
		order.CancellationReason = cancellationReason.String
	}
	if note.Valid {
		order.CustomerNote = note.String
	}
	if actualPickupAt.Valid {
		order.ActualPickupDate = actualPickupAt.Time
	}
	if actualDeliveryAt.Valid {
		order.ActualDeliveryDate = actualDeliveryAt.Time
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(historyJSON, &order.StatusHistory); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(pickupAddrJSON, &order.PickupAddress); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(deliveryAddrJSON, &order.DeliveryAddress); err != nil {
		return nil, err
	}
	if paymentDetailsJSON != nil {
		order.PaymentDetails = &models.PaymentDetails{}
		if err := json.Unmarshal(paymentDetailsJSON, order.PaymentDetails); err != nil {
			return nil, err
		}
	}

	return &order, nil
}

func scanOrders(rows pgx.Rows) ([]*models.Order, error) {
	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func textOrNull(value string) pgtype.Text {
	return pgtype.Text{String: value, Valid: value != ""}
}
