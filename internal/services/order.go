package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"

	"github.com/freshfoldapp/freshfold/internal/crypto"
	"github.com/freshfoldapp/freshfold/internal/logging"
	"github.com/freshfoldapp/freshfold/internal/models"
	"github.com/freshfoldapp/freshfold/internal/observability"
	"github.com/freshfoldapp/freshfold/internal/pricing"
)

type OrderService struct {
	orders    orderStore
	coupons   couponStore
	pricer    cartPricer
	settings  settingsSource
	encryptor crypto.Encryptor
	notifier  OrderNotifier
	logger    *slog.Logger
	nowFunc   func() time.Time
}

type orderStore interface {
	Create(ctx context.Context, order *models.Order) error
	GetByOrderID(ctx context.Context, orderID string) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]*models.Order, error)
	ListRecent(ctx context.Context, status models.OrderStatus, limit int) ([]*models.Order, error)
	UpdateStatus(ctx context.Context, orderID string, expected models.OrderStatus, entry models.StatusHistoryEntry) error
	Cancel(ctx context.Context, orderID string, allowedFrom []models.OrderStatus, entry models.StatusHistoryEntry, reason string, refundCents int) error
	MarkPaid(ctx context.Context, orderID string, details models.PaymentDetails) error
	MarkPaymentFailed(ctx context.Context, orderID string) error
	MarkRefundProcessed(ctx context.Context, orderID string) error
}

type couponStore interface {
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	CustomerRedemptions(ctx context.Context, code, customerID string) (int, error)
	Redemptions(ctx context.Context, code string) ([]models.Redemption, error)
}

type cartPricer interface {
	PriceCart(cart []pricing.CartGroup) ([]models.OrderItemGroup, int, error)
}

type settingsSource interface {
	PricingSettings() pricing.Settings
}

func NewOrderService(orders orderStore, coupons couponStore, pricer cartPricer, settings settingsSource, encryptor crypto.Encryptor, notifier OrderNotifier, logger *slog.Logger) *OrderService {
	if notifier == nil {
		notifier = noopOrderNotifier{}
	}

	return &OrderService{
		orders:    orders,
		coupons:   coupons,
		pricer:    pricer,
		settings:  settings,
		encryptor: encryptor,
		notifier:  notifier,
		logger:    logger,
		nowFunc:   time.Now,
	}
}

func (s *OrderService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

type CreateOrderInput struct {
	CustomerID      string
	Cart            []pricing.CartGroup
	CouponCode      string
	PickupAddress   models.Address
	DeliveryAddress models.Address
	PickupDate      time.Time
	DeliveryDate    time.Time
	PickupWindow    string
	DeliveryWindow  string
	PaymentMethod   string
	CustomerNote    string
}

// Create turns a cart into a priced, persisted order. Coupon application
// soft-fails: a code that does not validate is logged and dropped, and the
// order proceeds without a discount. A coupon that validates but loses the
// redemption race at commit time fails the whole creation instead, so
// usage caps are never overshot.
func (s *OrderService) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	span := sentry.StartSpan(
		ctx,
		"service.order.create",
		sentry.WithOpName("service.order"),
		sentry.WithDescription("Create"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	recordFailure := func(reason string) {
		meter.Count("order.intake.failed", 1, sentry.WithAttributes(
			attribute.String("reason", reason),
		))
	}
	meter.Count("order.intake.received", 1)

	items, subtotal, err := s.pricer.PriceCart(input.Cart)
	if err != nil {
		recordFailure("invalid_cart")
		return nil, err
	}

	discount, appliedCode := s.applyCoupon(ctx, input.CouponCode, input.CustomerID, subtotal)

	quote := pricing.Finalize(items, subtotal, discount, s.settings.PricingSettings())

	order := models.NewOrder(models.NewOrderParams{
		CustomerID:      input.CustomerID,
		Items:           quote.Items,
		SubtotalCents:   quote.SubtotalCents,
		DiscountCents:   quote.DiscountCents,
		DeliveryCents:   quote.DeliveryCents,
		TaxCents:        quote.TaxCents,
		TotalCents:      quote.TotalCents,
		CouponCode:      appliedCode,
		PickupAddress:   input.PickupAddress,
		DeliveryAddress: input.DeliveryAddress,
		PickupDate:      input.PickupDate,
		DeliveryDate:    input.DeliveryDate,
		PickupWindow:    input.PickupWindow,
		DeliveryWindow:  input.DeliveryWindow,
		PaymentMethod:   input.PaymentMethod,
		CustomerNote:    input.CustomerNote,
		Now:             s.nowFunc().UTC(),
	})

	if err := s.orders.Create(ctx, order); err != nil {
		if errors.Is(err, models.ErrCouponUsageExceeded) || errors.Is(err, models.ErrCouponAlreadyUsed) {
			recordFailure("coupon_slot_lost")
			return nil, err
		}
		recordFailure("order_create_failed")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	meter.Count("order.created", 1)
	if appliedCode != "" {
		meter.Count("coupon.redeemed", 1, sentry.WithAttributes(
			attribute.String("code", appliedCode),
		))
	}

	logger.Info("order created",
		"order_id", order.OrderID,
		"customer_id", order.CustomerID,
		"total_cents", order.TotalCents,
		"coupon", appliedCode,
	)

	s.notifier.OrderCreated(ctx, order)

	return order, nil
}

// applyCoupon validates a coupon for checkout and returns the discount and
// the code to record. Any validation failure applies zero discount and
// drops the code; the standalone validate endpoint is the hard-fail path.
func (s *OrderService) applyCoupon(ctx context.Context, code, customerID string, subtotalCents int) (int, string) {
	if code == "" {
		return 0, ""
	}

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	normalized := models.NormalizeCode(code)

	coupon, err := s.coupons.GetByCode(ctx, normalized)
	if err != nil {
		meter.Count("coupon.rejected", 1, sentry.WithAttributes(
			attribute.String("reason", "not_found"),
		))
		logger.Warn("coupon not applied", "code", normalized, "error", err)
		return 0, ""
	}

	priorUses, err := s.coupons.CustomerRedemptions(ctx, normalized, customerID)
	if err != nil {
		meter.Count("coupon.rejected", 1, sentry.WithAttributes(
			attribute.String("reason", "ledger_unavailable"),
		))
		logger.Warn("coupon not applied", "code", normalized, "error", err)
		return 0, ""
	}

	discount, err := coupon.Validate(subtotalCents, priorUses, s.nowFunc().UTC())
	if err != nil {
		meter.Count("coupon.rejected", 1, sentry.WithAttributes(
			attribute.String("reason", "validation_failed"),
		))
		logger.Warn("coupon not applied", "code", normalized, "error", err)
		return 0, ""
	}

	if discount == 0 {
		return 0, ""
	}
	return discount, normalized
}

// Cancel handles the customer-facing cancellation path. Cancellation is
// permitted only while the order is pending or confirmed. Cancelling a
// paid order books a full-amount pending refund.
func (s *OrderService) Cancel(ctx context.Context, orderID, customerID, reason string) (*models.Order, error) {
	order, err := s.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, models.ErrOrderNotFound
	}
	if !order.Status.CustomerCanCancel() {
		return nil, models.ErrOrderNotCancellable
	}

	if reason == "" {
		reason = "Cancelled by user"
	}

	refundCents := 0
	if order.PaymentStatus == models.PaymentPaid {
		refundCents = order.TotalCents
	}

	entry := models.StatusHistoryEntry{
		Status:    models.StatusCancelled,
		Timestamp: s.nowFunc().UTC(),
		Note:      reason,
		Actor:     "customer",
	}

	allowedFrom := []models.OrderStatus{models.StatusPending, models.StatusConfirmed}
	if err := s.orders.Cancel(ctx, orderID, allowedFrom, entry, reason, refundCents); err != nil {
		return nil, err
	}

	meter := observability.MeterFromContext(ctx)
	meter.Count("order.cancelled", 1, sentry.WithAttributes(
		attribute.String("actor", "customer"),
	))
	s.loggerFromContext(ctx).Info("order cancelled",
		"order_id", orderID,
		"refund_cents", refundCents,
	)

	updated, err := s.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.notifier.OrderStatusChanged(ctx, updated, entry)
	return updated, nil
}

// UpdateStatus handles the operator-facing path: any forward transition
// along the fulfillment pipeline, or a direct move to cancelled. Every
// transition appends exactly one history entry.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, next models.OrderStatus, note, actor string) (*models.Order, error) {
	order, err := s.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", models.ErrInvalidStatusTransition, order.Status, next)
	}

	now := s.nowFunc().UTC()
	entry := models.StatusHistoryEntry{
		Status:    next,
		Timestamp: now,
		Note:      note,
		Actor:     actor,
	}

	if next == models.StatusCancelled {
		reason := note
		if reason == "" {
			reason = "Cancelled by operator"
		}
		entry.Note = reason

		refundCents := 0
		if order.PaymentStatus == models.PaymentPaid {
			refundCents = order.TotalCents
		}

		allowedFrom := []models.OrderStatus{
			models.StatusPending, models.StatusConfirmed, models.StatusPickedUp,
			models.StatusInProcess, models.StatusReady, models.StatusOutForDelivery,
		}
		if err := s.orders.Cancel(ctx, orderID, allowedFrom, entry, reason, refundCents); err != nil {
			if errors.Is(err, models.ErrOrderNotCancellable) {
				return nil, fmt.Errorf("%w: %s -> %s", models.ErrInvalidStatusTransition, order.Status, next)
			}
			return nil, err
		}
	} else if err := s.orders.UpdateStatus(ctx, orderID, order.Status, entry); err != nil {
		return nil, err
	}

	meter := observability.MeterFromContext(ctx)
	meter.Count("order.status.updated", 1, sentry.WithAttributes(
		attribute.String("from", string(order.Status)),
		attribute.String("to", string(next)),
	))
	s.loggerFromContext(ctx).Info("order status updated",
		"order_id", orderID,
		"from", order.Status,
		"to", next,
		"actor", actor,
	)

	updated, err := s.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.notifier.OrderStatusChanged(ctx, updated, entry)
	return updated, nil
}

// Get returns an order owned by the requesting customer.
func (s *OrderService) Get(ctx context.Context, orderID, customerID string) (*models.Order, error) {
	order, err := s.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, models.ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) ListByCustomer(ctx context.Context, customerID string, limit int) ([]*models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.orders.ListByCustomer(ctx, customerID, limit)
}

func (s *OrderService) ListRecent(ctx context.Context, status models.OrderStatus, limit int) ([]*models.Order, error) {
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrInvalidStatusTransition, status)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.orders.ListRecent(ctx, status, limit)
}

// TrackingInfo is the read-only projection served by the track endpoint.
type TrackingInfo struct {
	OrderID            string                      `json:"order_id"`
	Status             models.OrderStatus          `json:"status"`
	StatusHistory      []models.StatusHistoryEntry `json:"status_history"`
	PickupDate         time.Time                   `json:"pickup_date"`
	DeliveryDate       time.Time                   `json:"delivery_date"`
	ActualPickupDate   *time.Time                  `json:"actual_pickup_date,omitempty"`
	ActualDeliveryDate *time.Time                  `json:"actual_delivery_date,omitempty"`
}

func (s *OrderService) Track(ctx context.Context, orderID, customerID string) (*TrackingInfo, error) {
	order, err := s.Get(ctx, orderID, customerID)
	if err != nil {
		return nil, err
	}

	info := &TrackingInfo{
		OrderID:       order.OrderID,
		Status:        order.Status,
		StatusHistory: order.StatusHistory,
		PickupDate:    order.PickupDate,
		DeliveryDate:  order.DeliveryDate,
	}
	if !order.ActualPickupDate.IsZero() {
		t := order.ActualPickupDate
		info.ActualPickupDate = &t
	}
	if !order.ActualDeliveryDate.IsZero() {
		t := order.ActualDeliveryDate
		info.ActualDeliveryDate = &t
	}
	return info, nil
}

// PaymentEventInput is a settled fact from the payment-confirmation
// collaborator.
type PaymentEventInput struct {
	Type          string
	OrderID       string
	TransactionID string
	Method        string
}

const (
	PaymentEventSucceeded       = "payment.succeeded"
	PaymentEventFailed          = "payment.failed"
	PaymentEventRefundProcessed = "refund.processed"
)

// HandlePaymentEvent applies a payment collaborator event to the order.
// Transaction ids are encrypted before they are stored.
func (s *OrderService) HandlePaymentEvent(ctx context.Context, input PaymentEventInput) error {
	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	meter.Count("payment.event.received", 1, sentry.WithAttributes(
		attribute.String("type", input.Type),
	))

	switch input.Type {
	case PaymentEventSucceeded:
		encrypted, err := s.encryptor.Encrypt(input.TransactionID)
		if err != nil {
			return fmt.Errorf("failed to encrypt transaction id: %w", err)
		}
		details := models.PaymentDetails{
			TransactionID: encrypted,
			Method:        input.Method,
			PaidAt:        s.nowFunc().UTC(),
		}
		if err := s.orders.MarkPaid(ctx, input.OrderID, details); err != nil {
			return err
		}
		logger.Info("order marked paid", "order_id", input.OrderID, "method", input.Method)
		return nil
	case PaymentEventFailed:
		if err := s.orders.MarkPaymentFailed(ctx, input.OrderID); err != nil {
			return err
		}
		logger.Warn("order payment failed", "order_id", input.OrderID)
		return nil
	case PaymentEventRefundProcessed:
		if err := s.orders.MarkRefundProcessed(ctx, input.OrderID); err != nil {
			return err
		}
		logger.Info("order refund processed", "order_id", input.OrderID)
		return nil
	default:
		return fmt.Errorf("unknown payment event type: %s", input.Type)
	}
}
