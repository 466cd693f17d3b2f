package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/freshfoldapp/freshfold/internal/auth"
	"github.com/freshfoldapp/freshfold/internal/cache"
	"github.com/freshfoldapp/freshfold/internal/config"
	"github.com/freshfoldapp/freshfold/internal/crypto"
	"github.com/freshfoldapp/freshfold/internal/models"
	"github.com/freshfoldapp/freshfold/internal/pricing"
	"github.com/freshfoldapp/freshfold/internal/services"
)

// memStore is a minimal in-memory stand-in for the pgx-backed stores. The
// ledger is keyed by coupon code, like the coupon_redemptions table.
type memStore struct {
	mu      sync.Mutex
	orders  map[string]*models.Order
	coupons map[string]*models.Coupon
	ledger  map[string][]models.Redemption
}

func newMemStore() *memStore {
	return &memStore{
		orders:  make(map[string]*models.Order),
		coupons: make(map[string]*models.Coupon),
		ledger:  make(map[string][]models.Redemption),
	}
}

func (s *memStore) Create(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.CouponCode != "" {
		coupon, ok := s.coupons[order.CouponCode]
		if !ok {
			return models.ErrCouponNotFound
		}
		if coupon.UsageLimit > 0 && coupon.UsedCount >= coupon.UsageLimit {
			return models.ErrCouponUsageExceeded
		}
		seen := false
		for _, r := range s.ledger[order.CouponCode] {
			if r.OrderID == order.OrderID {
				seen = true
				break
			}
		}
		if !seen {
			s.ledger[order.CouponCode] = append(s.ledger[order.CouponCode], models.Redemption{
				CustomerID: order.CustomerID,
				OrderID:    order.OrderID,
				Timestamp:  time.Now().UTC(),
			})
			coupon.UsedCount++
		}
	}

	clone := *order
	s.orders[order.OrderID] = &clone
	return nil
}

func (s *memStore) GetByOrderID(_ context.Context, orderID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	clone := *order
	return &clone, nil
}

func (s *memStore) ListByCustomer(_ context.Context, customerID string, limit int) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Order
	for _, order := range s.orders {
		if order.CustomerID == customerID && len(out) < limit {
			clone := *order
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *memStore) ListRecent(_ context.Context, status models.OrderStatus, limit int) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Order
	for _, order := range s.orders {
		if (status == "" || order.Status == status) && len(out) < limit {
			clone := *order
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *memStore) UpdateStatus(_ context.Context, orderID string, expected models.OrderStatus, entry models.StatusHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok || order.Status != expected {
		return models.ErrInvalidStatusTransition
	}
	order.Status = entry.Status
	order.StatusHistory = append(order.StatusHistory, entry)
	if entry.Status == models.StatusPickedUp && order.ActualPickupDate.IsZero() {
		order.ActualPickupDate = entry.Timestamp
	}
	if entry.Status == models.StatusDelivered && order.ActualDeliveryDate.IsZero() {
		order.ActualDeliveryDate = entry.Timestamp
	}
	return nil
}

func (s *memStore) Cancel(_ context.Context, orderID string, allowedFrom []models.OrderStatus, entry models.StatusHistoryEntry, reason string, refundCents int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return models.ErrOrderNotFound
	}
	allowed := false
	for _, from := range allowedFrom {
		if order.Status == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return models.ErrOrderNotCancellable
	}
	order.Status = models.StatusCancelled
	order.StatusHistory = append(order.StatusHistory, entry)
	order.CancellationReason = reason
	if refundCents > 0 {
		order.RefundStatus = models.RefundPending
		order.RefundAmountCents = refundCents
	}
	return nil
}

func (s *memStore) MarkPaid(_ context.Context, orderID string, details models.PaymentDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return models.ErrOrderNotFound
	}
	if order.PaymentStatus != models.PaymentPending && order.PaymentStatus != models.PaymentFailed {
		return models.ErrPaymentStateInvalid
	}
	order.PaymentStatus = models.PaymentPaid
	order.PaymentDetails = &details
	return nil
}

func (s *memStore) MarkPaymentFailed(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return models.ErrOrderNotFound
	}
	if order.PaymentStatus != models.PaymentPending {
		return models.ErrPaymentStateInvalid
	}
	order.PaymentStatus = models.PaymentFailed
	return nil
}

func (s *memStore) MarkRefundProcessed(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return models.ErrOrderNotFound
	}
	if order.RefundStatus != models.RefundPending {
		return models.ErrRefundNotPending
	}
	order.RefundStatus = models.RefundProcessed
	order.PaymentStatus = models.PaymentRefunded
	return nil
}

func (s *memStore) GetByCode(_ context.Context, code string) (*models.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coupon, ok := s.coupons[models.NormalizeCode(code)]
	if !ok {
		return nil, models.ErrCouponNotFound
	}
	clone := *coupon
	return &clone, nil
}

func (s *memStore) CustomerRedemptions(_ context.Context, code, customerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, r := range s.ledger[models.NormalizeCode(code)] {
		if r.CustomerID == customerID {
			count++
		}
	}
	return count, nil
}

func (s *memStore) Redemptions(_ context.Context, code string) ([]models.Redemption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.ledger[models.NormalizeCode(code)]
	out := make([]models.Redemption, len(entries))
	copy(out, entries)
	return out, nil
}

type fixedPricer struct {
	items    []models.OrderItemGroup
	subtotal int
}

func (p fixedPricer) PriceCart([]pricing.CartGroup) ([]models.OrderItemGroup, int, error) {
	return p.items, p.subtotal, nil
}

type testEnv struct {
	handlers *Handlers
	store    *memStore
	router   *mux.Router
	verifier *auth.Verifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		DeliveryFeeCents:           500,
		FreeDeliveryThresholdCents: 5000,
		TaxRateBasisPoints:         500,
		PaymentWebhookSecret:       "whsec_test_secret",
	}

	store := newMemStore()
	encryptor, err := crypto.NewEncryptor("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("failed to build encryptor: %v", err)
	}
	verifier, err := auth.NewVerifier("test-token-secret")
	if err != nil {
		t.Fatalf("failed to build verifier: %v", err)
	}
	cacheProvider, err := cache.NewMemoryProvider()
	if err != nil {
		t.Fatalf("failed to build cache: %v", err)
	}

	pricer := fixedPricer{
		items: []models.OrderItemGroup{{
			ServiceID:     "wash_fold",
			ServiceName:   "Wash & Fold",
			Lines:         []models.OrderItemLine{{Name: "Shirt", Quantity: 4, UnitPriceCents: 1500}},
			SubtotalCents: 6000,
		}},
		subtotal: 6000,
	}

	h := &Handlers{
		config:        cfg,
		orderService:  services.NewOrderService(store, store, pricer, cfg, encryptor, nil, logger),
		couponService: services.NewCouponService(store, logger),
		cacheProvider: cacheProvider,
		verifier:      verifier,
		logger:        logger,
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/orders", h.CreateOrder).Methods(http.MethodPost)
	router.HandleFunc("/api/orders", h.ListOrders).Methods(http.MethodGet)
	router.HandleFunc("/api/orders/{orderId}", h.GetOrder).Methods(http.MethodGet)
	router.HandleFunc("/api/orders/{orderId}/track", h.TrackOrder).Methods(http.MethodGet)
	router.HandleFunc("/api/orders/{orderId}/cancel", h.CancelOrder).Methods(http.MethodPost)
	router.HandleFunc("/api/coupons/validate", h.ValidateCoupon).Methods(http.MethodPost)
	router.HandleFunc("/api/operator/orders", h.ListRecentOrders).Methods(http.MethodGet)
	router.HandleFunc("/api/operator/orders/{orderId}/status", h.UpdateOrderStatus).Methods(http.MethodPost)
	router.HandleFunc("/api/operator/coupons/{code}", h.InspectCoupon).Methods(http.MethodGet)
	router.HandleFunc("/webhooks/payment", h.PaymentWebhook).Methods(http.MethodPost)

	return &testEnv{handlers: h, store: store, router: router, verifier: verifier}
}

func (env *testEnv) do(t *testing.T, method, target, body string, claims *auth.Claims) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, target, reader)
	if claims != nil {
		r = r.WithContext(withClaims(r.Context(), claims))
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, r)
	return w
}

func (env *testEnv) seedOrder(t *testing.T, customerID string, status models.OrderStatus) string {
	t.Helper()

	order := models.NewOrder(models.NewOrderParams{
		CustomerID:    customerID,
		Items:         []models.OrderItemGroup{{ServiceID: "wash_fold", SubtotalCents: 6000}},
		SubtotalCents: 6000,
		TaxCents:      300,
		TotalCents:    6300,
		PickupDate:    time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		DeliveryDate:  time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC),
		PaymentMethod: "card",
	})
	if err := env.store.Create(context.Background(), order); err != nil {
		t.Fatalf("failed to seed order: %v", err)
	}
	if status != models.StatusPending {
		env.store.mu.Lock()
		env.store.orders[order.OrderID].Status = status
		env.store.mu.Unlock()
	}
	return order.OrderID
}

func customerClaims(id string) *auth.Claims {
	return &auth.Claims{Subject: id, Role: auth.RoleCustomer}
}

func operatorClaims() *auth.Claims {
	return &auth.Claims{Subject: "op-1", Role: auth.RoleOperator}
}
