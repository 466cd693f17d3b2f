package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/lmittmann/tint"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freshfoldapp/freshfold/internal/auth"
	"github.com/freshfoldapp/freshfold/internal/cache"
	"github.com/freshfoldapp/freshfold/internal/catalog"
	"github.com/freshfoldapp/freshfold/internal/config"
	"github.com/freshfoldapp/freshfold/internal/crypto"
	"github.com/freshfoldapp/freshfold/internal/db"
	"github.com/freshfoldapp/freshfold/internal/handlers"
	"github.com/freshfoldapp/freshfold/internal/logging"
	"github.com/freshfoldapp/freshfold/internal/pricing"
	"github.com/freshfoldapp/freshfold/internal/services"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	DB            *pgxpool.Pool
	CacheProvider cache.Provider
	Handlers      *handlers.Handlers

	logFile    *os.File
	sentryInit bool
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, logFile := newLogger(cfg)

	sentryInit := false
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.1,
		}); err != nil {
			logger.Warn("failed to initialize sentry", "error", err)
		} else {
			sentryInit = true
		}
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	database, err := db.Connect(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	serviceCatalog, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		database.Close()
		return nil, err
	}

	cacheProvider, err := cache.NewProvider(cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}

	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	verifier, err := auth.NewVerifier(cfg.AuthTokenSecret)
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize token verifier: %w", err)
	}

	orderStore := db.NewOrderStore(database)
	couponStore := db.NewCouponStore(database)
	pricer := pricing.NewPricer(serviceCatalog)

	orderService := services.NewOrderService(
		orderStore,
		couponStore,
		pricer,
		cfg,
		encryptor,
		nil,
		logger.With("component", "order_service"),
	)
	couponService := services.NewCouponService(couponStore, logger.With("component", "coupon_service"))

	h, err := handlers.New(handlers.Dependencies{
		Config:        cfg,
		DB:            database,
		OrderService:  orderService,
		CouponService: couponService,
		CacheProvider: cacheProvider,
		Verifier:      verifier,
		Logger:        logger,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		DB:            database,
		CacheProvider: cacheProvider,
		Handlers:      h,
		logFile:       logFile,
		sentryInit:    sentryInit,
	}, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
	if a.sentryInit {
		sentry.Flush(2 * time.Second)
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

// loadCatalog parses and validates the service catalog at startup. A bad
// catalog is a deployment error; the process refuses to start.
func loadCatalog(path string) (*catalog.Catalog, error) {
	parsed, err := catalog.NewParser().ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	if err := catalog.NewValidator().Validate(parsed); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return parsed, nil
}

func newLogger(cfg *config.Config) (*slog.Logger, *os.File) {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(cfg.LogFormat)) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level: cfg.LogLevel,
		})
	}

	var logFile *os.File
	if cfg.LogFile != "" {
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			slog.New(handler).Warn("failed to open log file, logging to stdout only", "path", cfg.LogFile, "error", err)
		} else {
			logFile = file
			handler = logging.MultiHandler(handler, slog.NewJSONHandler(file, opts))
		}
	}

	return slog.New(handler), logFile
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}
