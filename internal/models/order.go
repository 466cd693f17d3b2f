package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	StatusPending        OrderStatus = "pending"
	StatusConfirmed      OrderStatus = "confirmed"
	StatusPickedUp       OrderStatus = "picked_up"
	StatusInProcess      OrderStatus = "in_process"
	StatusReady          OrderStatus = "ready"
	StatusOutForDelivery OrderStatus = "out_for_delivery"
	StatusDelivered      OrderStatus = "delivered"
	StatusCancelled      OrderStatus = "cancelled"
)

// fulfillmentSequence is the forward pipeline from placement to delivery.
// cancelled sits outside the sequence and is reachable from any
// non-terminal state on the operator path.
var fulfillmentSequence = []OrderStatus{
	StatusPending,
	StatusConfirmed,
	StatusPickedUp,
	StatusInProcess,
	StatusReady,
	StatusOutForDelivery,
	StatusDelivered,
}

var sequenceIndex = func() map[OrderStatus]int {
	idx := make(map[OrderStatus]int, len(fulfillmentSequence))
	for i, s := range fulfillmentSequence {
		idx[s] = i
	}
	return idx
}()

// customerCancellable lists the states from which the customer-facing
// cancellation path is still open.
var customerCancellable = map[OrderStatus]bool{
	StatusPending:   true,
	StatusConfirmed: true,
}

func (s OrderStatus) IsValid() bool {
	if s == StatusCancelled {
		return true
	}
	_, ok := sequenceIndex[s]
	return ok
}

func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransitionTo reports whether the operator path may move an order from
// s to next: any forward jump along the pipeline, or a direct move to
// cancelled from a non-terminal state.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.IsTerminal() || !next.IsValid() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	from, ok := sequenceIndex[s]
	if !ok {
		return false
	}
	to, ok := sequenceIndex[next]
	if !ok {
		return false
	}
	return to > from
}

// CustomerCanCancel reports whether the customer-facing cancellation path
// is allowed for an order in state s.
func (s OrderStatus) CustomerCanCancel() bool {
	return customerCancellable[s]
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type RefundStatus string

const (
	RefundNone      RefundStatus = "none"
	RefundPending   RefundStatus = "pending"
	RefundProcessed RefundStatus = "processed"
)

// StatusHistoryEntry records one status change. The history is append-only
// and its last entry always matches the order's current status.
type StatusHistoryEntry struct {
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Note      string      `json:"note"`
	Actor     string      `json:"actor"`
}

// OrderItemLine is one priced line within a service group. UnitPriceCents
// is always resolved server-side from the catalog.
type OrderItemLine struct {
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int    `json:"unit_price_cents"`
}

// OrderItemGroup is one catalog service within an order: either a list of
// per-item lines or a weight for per-kg pricing. Immutable once the order
// is created.
type OrderItemGroup struct {
	ServiceID     string          `json:"service_id"`
	ServiceName   string          `json:"service_name"`
	Lines         []OrderItemLine `json:"lines,omitempty"`
	WeightKg      float64         `json:"weight_kg,omitempty"`
	SubtotalCents int             `json:"subtotal_cents"`
}

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone,omitempty"`
}

// PaymentDetails is set only by the payment-confirmation collaborator.
// TransactionID is stored encrypted at rest.
type PaymentDetails struct {
	TransactionID string    `json:"transaction_id"`
	Method        string    `json:"method"`
	PaidAt        time.Time `json:"paid_at"`
}

type Order struct {
	ID                 uuid.UUID            `json:"id"`
	OrderID            string               `json:"order_id"`
	CustomerID         string               `json:"customer_id"`
	Items              []OrderItemGroup     `json:"items"`
	TotalItemCount     int                  `json:"total_item_count"`
	SubtotalCents      int                  `json:"subtotal_cents"`
	DiscountCents      int                  `json:"discount_cents"`
	DeliveryCents      int                  `json:"delivery_cents"`
	TaxCents           int                  `json:"tax_cents"`
	TotalCents         int                  `json:"total_cents"`
	CouponCode         string               `json:"coupon_code,omitempty"`
	Status             OrderStatus          `json:"status"`
	StatusHistory      []StatusHistoryEntry `json:"status_history"`
	PickupAddress      Address              `json:"pickup_address"`
	DeliveryAddress    Address              `json:"delivery_address"`
	PickupDate         time.Time            `json:"pickup_date"`
	DeliveryDate       time.Time            `json:"delivery_date"`
	PickupWindow       string               `json:"pickup_window"`
	DeliveryWindow     string               `json:"delivery_window"`
	ActualPickupDate   time.Time            `json:"actual_pickup_date"`
	ActualDeliveryDate time.Time            `json:"actual_delivery_date"`
	PaymentMethod      string               `json:"payment_method"`
	PaymentStatus      PaymentStatus        `json:"payment_status"`
	PaymentDetails     *PaymentDetails      `json:"payment_details,omitempty"`
	RefundStatus       RefundStatus         `json:"refund_status"`
	RefundAmountCents  int                  `json:"refund_amount_cents"`
	CancellationReason string               `json:"cancellation_reason,omitempty"`
	CustomerNote       string               `json:"customer_note,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
}

// NewOrderParams carries everything NewOrder needs to build a fully
// initialized aggregate in one step.
type NewOrderParams struct {
	CustomerID      string
	Items           []OrderItemGroup
	SubtotalCents   int
	DiscountCents   int
	DeliveryCents   int
	TaxCents        int
	TotalCents      int
	CouponCode      string
	PickupAddress   Address
	DeliveryAddress Address
	PickupDate      time.Time
	DeliveryDate    time.Time
	PickupWindow    string
	DeliveryWindow  string
	PaymentMethod   string
	CustomerNote    string
	Now             time.Time
}

// NewOrder constructs the aggregate with a generated order id, status
// pending and the first history entry already stamped. There is no other
// construction path.
func NewOrder(p NewOrderParams) *Order {
	now := p.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	itemCount := 0
	for _, group := range p.Items {
		for _, line := range group.Lines {
			itemCount += line.Quantity
		}
	}

	return &Order{
		ID:             uuid.New(),
		OrderID:        NewOrderID(now),
		CustomerID:     p.CustomerID,
		Items:          p.Items,
		TotalItemCount: itemCount,
		SubtotalCents:  p.SubtotalCents,
		DiscountCents:  p.DiscountCents,
		DeliveryCents:  p.DeliveryCents,
		TaxCents:       p.TaxCents,
		TotalCents:     p.TotalCents,
		CouponCode:     p.CouponCode,
		Status:         StatusPending,
		StatusHistory: []StatusHistoryEntry{{
			Status:    StatusPending,
			Timestamp: now,
			Note:      "Order placed",
			Actor:     "customer",
		}},
		PickupAddress:   p.PickupAddress,
		DeliveryAddress: p.DeliveryAddress,
		PickupDate:      p.PickupDate,
		DeliveryDate:    p.DeliveryDate,
		PickupWindow:    p.PickupWindow,
		DeliveryWindow:  p.DeliveryWindow,
		PaymentMethod:   p.PaymentMethod,
		PaymentStatus:   PaymentPending,
		RefundStatus:    RefundNone,
		CustomerNote:    p.CustomerNote,
		CreatedAt:       now,
	}
}

// NewOrderID generates a human-readable, globally unique order identifier,
// e.g. FF-20260830-9F3A2C1B7E04. The 48-bit random suffix keeps the
// birthday collision odds negligible at any plausible daily order volume.
func NewOrderID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:12]
	return fmt.Sprintf("FF-%s-%s", now.UTC().Format("20060102"), suffix)
}
