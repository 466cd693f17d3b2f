package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/freshfoldapp/freshfold/internal/auth"
	"github.com/freshfoldapp/freshfold/internal/config"
	"github.com/freshfoldapp/freshfold/internal/handlers"
)

type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	handlers   *handlers.Handlers
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, h *handlers.Handlers) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if h == nil {
		return nil, fmt.Errorf("handlers are required")
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: h,
	}

	router := s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

func (s *Server) Run() error {
	s.logger.Info("server starting", "port", s.cfg.Port)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) buildRouter() *mux.Router {
	h := s.handlers

	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.SecurityHeaders)
	r.HandleFunc("/health", h.Health).Methods("GET").Name("health")
	r.HandleFunc("/webhooks/payment", h.PaymentWebhook).Methods("POST").Name("webhooks.payment")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	// Customer-facing API.
	customerRouter := r.PathPrefix("/api").Subrouter()
	customerRouter.Use(h.RequireRole(auth.RoleCustomer))
	customerRouter.HandleFunc("/orders", h.CreateOrder).Methods("POST").Name("orders.create")
	customerRouter.HandleFunc("/orders", h.ListOrders).Methods("GET").Name("orders.list")
	customerRouter.HandleFunc("/orders/{orderId}", h.GetOrder).Methods("GET").Name("orders.get")
	customerRouter.HandleFunc("/orders/{orderId}/track", h.TrackOrder).Methods("GET").Name("orders.track")
	customerRouter.HandleFunc("/orders/{orderId}/cancel", h.CancelOrder).Methods("POST").Name("orders.cancel")
	customerRouter.HandleFunc("/coupons/validate", h.ValidateCoupon).Methods("POST").Name("coupons.validate")

	// Operator API.
	operatorRouter := r.PathPrefix("/api/operator").Subrouter()
	operatorRouter.Use(h.RequireRole(auth.RoleOperator))
	operatorRouter.HandleFunc("/orders", h.ListRecentOrders).Methods("GET").Name("operator.orders.list")
	operatorRouter.HandleFunc("/orders/{orderId}/status", h.UpdateOrderStatus).Methods("POST").Name("operator.orders.status")
	operatorRouter.HandleFunc("/coupons/{code}", h.InspectCoupon).Methods("GET").Name("operator.coupons.inspect")

	return r
}
