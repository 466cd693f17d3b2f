package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"

	"github.com/freshfoldapp/freshfold/internal/pricing"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	CatalogPath string `env:"CATALOG_PATH" envDefault:"catalog.yaml" validate:"required"`

	// Pricing constants, read live at order-creation time.
	DeliveryFeeCents           int `env:"DELIVERY_FEE_CENTS" envDefault:"500" validate:"min=0"`
	FreeDeliveryThresholdCents int `env:"FREE_DELIVERY_THRESHOLD_CENTS" envDefault:"5000" validate:"min=0"`
	TaxRateBasisPoints         int `env:"TAX_RATE_BASIS_POINTS" envDefault:"500" validate:"min=0,max=10000"`

	AuthTokenSecret      string `env:"AUTH_TOKEN_SECRET,required" validate:"required,min=32"`
	PaymentWebhookSecret string `env:"PAYMENT_WEBHOOK_SECRET,required" validate:"required,min=16"`
	EncryptionKey        string `env:"ENCRYPTION_KEY,required" validate:"required,len=32"`

	CacheProvider         string `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RedisConnectionString string `env:"REDIS_CONNECTION_STRING" envDefault:"redis://localhost:6379/0" validate:"required_if=CacheProvider redis"`

	SentryDSN string `env:"SENTRY_DSN"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text" validate:"omitempty,oneof=text json"`
	LogFile   string     `env:"LOG_FILE"`
	Port      string     `env:"PORT" envDefault:"8080"`
}

var configValidator = validator.New()

func Load() (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	if strings.TrimSpace(c.AuthTokenSecret) == strings.TrimSpace(c.PaymentWebhookSecret) {
		return fmt.Errorf("AUTH_TOKEN_SECRET and PAYMENT_WEBHOOK_SECRET must differ")
	}

	return nil
}

// PricingSettings snapshots the live configured pricing constants.
func (c *Config) PricingSettings() pricing.Settings {
	return pricing.Settings{
		DeliveryFeeCents:           c.DeliveryFeeCents,
		FreeDeliveryThresholdCents: c.FreeDeliveryThresholdCents,
		TaxRateBasisPoints:         c.TaxRateBasisPoints,
	}
}
