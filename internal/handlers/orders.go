package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/freshfoldapp/freshfold/internal/models"
	"github.com/freshfoldapp/freshfold/internal/pricing"
	"github.com/freshfoldapp/freshfold/internal/services"
)

type addressPayload struct {
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Phone      string `json:"phone"`
}

func (a addressPayload) toModel() models.Address {
	return models.Address{
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Phone:      a.Phone,
	}
}

type cartLinePayload struct {
	Name     string `json:"name" validate:"required"`
	Quantity int    `json:"quantity"`
}

// cartGroupPayload carries either per-item lines or a weight; quantity and
// weight plausibility is owned by the pricing engine, not the binding
// layer.
type cartGroupPayload struct {
	ServiceID string            `json:"service_id" validate:"required"`
	Lines     []cartLinePayload `json:"lines" validate:"dive"`
	WeightKg  float64           `json:"weight_kg"`
}

type createOrderRequest struct {
	Items           []cartGroupPayload `json:"items" validate:"required,min=1,dive"`
	CouponCode      string             `json:"coupon_code"`
	PickupAddress   addressPayload     `json:"pickup_address" validate:"required"`
	DeliveryAddress addressPayload     `json:"delivery_address" validate:"required"`
	PickupDate      time.Time          `json:"pickup_date" validate:"required"`
	DeliveryDate    time.Time          `json:"delivery_date" validate:"required"`
	PickupWindow    string             `json:"pickup_window" validate:"required"`
	DeliveryWindow  string             `json:"delivery_window" validate:"required"`
	PaymentMethod   string             `json:"payment_method" validate:"required,oneof=card cash"`
	CustomerNote    string             `json:"customer_note"`
}

func (req createOrderRequest) cart() []pricing.CartGroup {
	cart := make([]pricing.CartGroup, 0, len(req.Items))
	for _, group := range req.Items {
		lines := make([]pricing.CartLine, 0, len(group.Lines))
		for _, line := range group.Lines {
			lines = append(lines, pricing.CartLine{Name: line.Name, Quantity: line.Quantity})
		}
		cart = append(cart, pricing.CartGroup{
			ServiceID: group.ServiceID,
			Lines:     lines,
			WeightKg:  group.WeightKg,
		})
	}
	return cart
}

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeErrorCode(w, http.StatusUnauthorized, "unauthorized", "missing credentials")
		return
	}

	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	order, err := h.orderService.Create(r.Context(), services.CreateOrderInput{
		CustomerID:      claims.Subject,
		Cart:            req.cart(),
		CouponCode:      req.CouponCode,
		PickupAddress:   req.PickupAddress.toModel(),
		DeliveryAddress: req.DeliveryAddress.toModel(),
		PickupDate:      req.PickupDate,
		DeliveryDate:    req.DeliveryDate,
		PickupWindow:    req.PickupWindow,
		DeliveryWindow:  req.DeliveryWindow,
		PaymentMethod:   req.PaymentMethod,
		CustomerNote:    req.CustomerNote,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeErrorCode(w, http.StatusUnauthorized, "unauthorized", "missing credentials")
		return
	}

	order, err := h.orderService.Get(r.Context(), mux.Vars(r)["orderId"], claims.Subject)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (h *Handlers) TrackOrder(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeErrorCode(w, http.StatusUnauthorized, "unauthorized", "missing credentials")
		return
	}

	info, err := h.orderService.Track(r.Context(), mux.Vars(r)["orderId"], claims.Subject)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeErrorCode(w, http.StatusUnauthorized, "unauthorized", "missing credentials")
		return
	}

	orders, err := h.orderService.ListByCustomer(r.Context(), claims.Subject, queryLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if orders == nil {
		orders = []*models.Order{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeErrorCode(w, http.StatusUnauthorized, "unauthorized", "missing credentials")
		return
	}

	// The body is optional; cancelling without a reason is fine.
	var req cancelOrderRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeErrorCode(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	order, err := h.orderService.Cancel(r.Context(), mux.Vars(r)["orderId"], claims.Subject, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func queryLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return limit
}
