package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	AppPort string `envconfig:"APP_PORT" default:"8080"`
	AppEnv  string `envconfig:"APP_ENV" default:"development"`

	// Store selects the persistence backend: "postgres" or "memory"
	Store string `envconfig:"STORE" default:"postgres"`

	// Database
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"postgres"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName     string `envconfig:"DB_NAME" default:"restaurant_ops"`
	DBURL      string `envconfig:"DB_URL"`

	// Redis (order numbers, QR table tokens). Empty URL falls back to the database.
	RedisURL      string `envconfig:"REDIS_URL" default:"redis://localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`

	JWTSecret string `envconfig:"JWT_SECRET" default:"change-this-secret-in-production"`

	// Business day boundaries for order numbers and profit rows
	Timezone string `envconfig:"TIMEZONE" default:"Africa/Addis_Ababa"`

	// Pricing defaults, as percentages. Restaurants may override them.
	TaxRate     string `envconfig:"TAX_RATE" default:"15"`
	ServiceRate string `envconfig:"SERVICE_RATE" default:"10"`

	// Waste priority tiers in base currency
	WasteTierLow    string `envconfig:"WASTE_TIER_LOW" default:"20"`
	WasteTierMedium string `envconfig:"WASTE_TIER_MEDIUM" default:"50"`
	WasteTierHigh   string `envconfig:"WASTE_TIER_HIGH" default:"100"`

	PaymentTimeout         time.Duration `envconfig:"PAYMENT_TIMEOUT" default:"30s"`
	DuplicatePaymentWindow time.Duration `envconfig:"DUPLICATE_PAYMENT_WINDOW" default:"5m"`
	TableTokenTTL          time.Duration `envconfig:"TABLE_TOKEN_TTL" default:"4h"`
	RecomputeWorkers       int           `envconfig:"RECOMPUTE_WORKERS" default:"4"`

	// Gateways
	CBEBaseURL            string `envconfig:"CBE_BASE_URL" default:"https://api.cbe.com.et"`
	CBEAPIKey             string `envconfig:"CBE_API_KEY"`
	CBEWebhookSecret      string `envconfig:"CBE_WEBHOOK_SECRET"`
	TelebirrBaseURL       string `envconfig:"TELEBIRR_BASE_URL" default:"https://api.ethiotelecom.et/telebirr"`
	TelebirrAPIKey        string `envconfig:"TELEBIRR_API_KEY"`
	TelebirrWebhookSecret string `envconfig:"TELEBIRR_WEBHOOK_SECRET"`
	CardBaseURL           string `envconfig:"CARD_BASE_URL"`
	CardAPIKey            string `envconfig:"CARD_API_KEY"`
	CardWebhookSecret     string `envconfig:"CARD_WEBHOOK_SECRET"`
	PaymentCallbackURL    string `envconfig:"PAYMENT_CALLBACK_URL"`
}

var instance *Config

// Load initializes and returns the singleton Config instance
func Load() (*Config, error) {
	if instance != nil {
		return instance, nil
	}

	// Load .env file if it exists (for local development)
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment variables: %w", err)
	}

	if cfg.DBURL == "" {
		if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
			cfg.DBURL = databaseURL
		}
	}
	if cfg.DBURL == "" {
		cfg.DBURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	}

	if _, err := cfg.Pricing(); err != nil {
		return nil, err
	}
	if _, err := cfg.WasteTiers(); err != nil {
		return nil, err
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	instance = cfg
	return instance, nil
}

// Get returns the singleton Config instance (must call Load first)
func Get() *Config {
	if instance == nil {
		panic("config not loaded: call config.Load() first")
	}
	return instance
}

// Pricing returns the default tax and service rates
func (c *Config) Pricing() (core.PricingPolicy, error) {
	tax, err := decimal.NewFromString(c.TaxRate)
	if err != nil {
		return core.PricingPolicy{}, fmt.Errorf("invalid TAX_RATE %q: %w", c.TaxRate, err)
	}
	service, err := decimal.NewFromString(c.ServiceRate)
	if err != nil {
		return core.PricingPolicy{}, fmt.Errorf("invalid SERVICE_RATE %q: %w", c.ServiceRate, err)
	}
	return core.PricingPolicy{TaxRate: tax, ServiceRate: service}, nil
}

// WasteTiers returns the cost tiers used to prioritise waste records
func (c *Config) WasteTiers() (core.WasteTiers, error) {
	var tiers core.WasteTiers
	for _, t := range []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{"WASTE_TIER_LOW", c.WasteTierLow, &tiers.Low},
		{"WASTE_TIER_MEDIUM", c.WasteTierMedium, &tiers.Medium},
		{"WASTE_TIER_HIGH", c.WasteTierHigh, &tiers.High},
	} {
		d, err := decimal.NewFromString(t.value)
		if err != nil {
			return core.WasteTiers{}, fmt.Errorf("invalid %s %q: %w", t.name, t.value, err)
		}
		*t.dst = d
	}
	if !tiers.Low.LessThan(tiers.Medium) || !tiers.Medium.LessThan(tiers.High) {
		return core.WasteTiers{}, fmt.Errorf("waste tiers must be increasing: %s < %s < %s", tiers.Low, tiers.Medium, tiers.High)
	}
	return tiers, nil
}

// Location returns the business timezone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// IsDevelopment reports whether the app runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
