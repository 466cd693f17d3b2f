package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freshfoldapp/freshfold/internal/auth"
	"github.com/freshfoldapp/freshfold/internal/cache"
	"github.com/freshfoldapp/freshfold/internal/config"
	"github.com/freshfoldapp/freshfold/internal/logging"
	"github.com/freshfoldapp/freshfold/internal/services"
)

const maxRequestBodyBytes = 1 << 20 // 1 MB

// Handlers provides the HTTP request handlers for the FreshFold API.
type Handlers struct {
	config        *config.Config
	db            *pgxpool.Pool
	orderService  *services.OrderService
	couponService *services.CouponService
	cacheProvider cache.Provider
	verifier      *auth.Verifier
	logger        *slog.Logger
}

type Dependencies struct {
	Config        *config.Config
	DB            *pgxpool.Pool
	OrderService  *services.OrderService
	CouponService *services.CouponService
	CacheProvider cache.Provider
	Verifier      *auth.Verifier
	Logger        *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("handlers dependencies: db is required")
	}
	if deps.OrderService == nil {
		return nil, fmt.Errorf("handlers dependencies: orderService is required")
	}
	if deps.CouponService == nil {
		return nil, fmt.Errorf("handlers dependencies: couponService is required")
	}
	if deps.CacheProvider == nil {
		return nil, fmt.Errorf("handlers dependencies: cacheProvider is required")
	}
	if deps.Verifier == nil {
		return nil, fmt.Errorf("handlers dependencies: verifier is required")
	}

	return &Handlers{
		config:        deps.Config,
		db:            deps.DB,
		orderService:  deps.OrderService,
		couponService: deps.CouponService,
		cacheProvider: deps.CacheProvider,
		verifier:      deps.Verifier,
		logger:        logger.With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if err := h.db.Ping(ctx); err != nil {
		logger.Error("database health check failed", "error", err)
		http.Error(w, "Database unhealthy", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	}); err != nil {
		logger.Error("failed to encode health response", "error", err)
	}
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}
