// Package config loads the bot configuration: the core transport and logging
// settings plus storage, encryption and order flow parameters.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	coreconfig "github.com/m3rciful/blikbot/core/config"
	coredatabase "github.com/m3rciful/blikbot/core/database"
	"github.com/m3rciful/blikbot/internal/checkout"
	"github.com/m3rciful/blikbot/internal/secret"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// StorageConfig selects the order store backend.
type StorageConfig struct {
	Driver string `yaml:"driver" envconfig:"STORAGE_DRIVER"`
}

// CryptoConfig holds the key sealing payment codes at rest.
type CryptoConfig struct {
	// EncryptionKey is the standard base64 encoding of a 32-byte key.
	EncryptionKey string `yaml:"encryption_key" envconfig:"ENCRYPTION_KEY"`
}

// OperatorConfig names an operator that is registered and available at startup.
type OperatorConfig struct {
	ChatID int64 `yaml:"chat_id" envconfig:"OPERATOR_CHAT_ID"`
}

// OrdersConfig holds the order flow constants.
type OrdersConfig struct {
	MinTotal           string `yaml:"min_total" envconfig:"ORDERS_MIN_TOTAL"`
	ReservationMinutes int    `yaml:"reservation_minutes" envconfig:"ORDERS_RESERVATION_MINUTES"`
	ShippingSLAHours   int    `yaml:"shipping_sla_hours" envconfig:"ORDERS_SHIPPING_SLA_HOURS"`
	Currency           string `yaml:"currency" envconfig:"ORDERS_CURRENCY"`

	minTotal decimal.Decimal
}

// Config is the full bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Storage  StorageConfig       `yaml:"storage"`
	Crypto   CryptoConfig        `yaml:"crypto"`
	Operator OperatorConfig      `yaml:"operator"`
	Orders   OrdersConfig        `yaml:"orders"`
}

// Load reads path (optional) and the environment, then validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}

	if _, err := secret.NewCodecFromBase64(cfg.Crypto.EncryptionKey); err != nil {
		if strings.TrimSpace(cfg.Crypto.EncryptionKey) == "" {
			return fmt.Errorf("crypto.encryption_key is required (ENCRYPTION_KEY)")
		}
		return fmt.Errorf("crypto.encryption_key: %w", err)
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	switch driver {
	case "", DriverPostgres:
		driver = DriverPostgres
		if err := cfg.Database.Normalize(); err != nil {
			return err
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid storage.driver %q; allowed: postgres, memory", cfg.Storage.Driver)
	}
	cfg.Storage.Driver = driver

	if cfg.Operator.ChatID < 0 {
		return fmt.Errorf("operator.chat_id must be a user id, got %d", cfg.Operator.ChatID)
	}
	return cfg.Orders.normalize()
}

func (o *OrdersConfig) normalize() error {
	def := checkout.DefaultSettings()
	o.minTotal = def.MinTotal
	if raw := strings.TrimSpace(o.MinTotal); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("orders.min_total: %w", err)
		}
		if v.IsNegative() {
			return fmt.Errorf("orders.min_total must be >= 0")
		}
		o.minTotal = v
	}
	if o.ReservationMinutes < 0 || o.ShippingSLAHours < 0 {
		return fmt.Errorf("orders.reservation_minutes and orders.shipping_sla_hours must be >= 0")
	}
	if o.ReservationMinutes == 0 {
		o.ReservationMinutes = int(def.ReservationWindow / time.Minute)
	}
	if o.ShippingSLAHours == 0 {
		o.ShippingSLAHours = int(def.ShippingSLA / time.Hour)
	}
	o.Currency = strings.ToUpper(strings.TrimSpace(o.Currency))
	if o.Currency == "" {
		o.Currency = def.Currency
	}
	return nil
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// UsePostgres reports whether orders are stored in PostgreSQL.
func (c *Config) UsePostgres() bool {
	return c.Storage.Driver == DriverPostgres
}

// ReservationWindow is how long a created order stays reserved.
func (c *Config) ReservationWindow() time.Duration {
	return time.Duration(c.Orders.ReservationMinutes) * time.Minute
}

// CheckoutSettings converts the orders section for the order controller.
func (c *Config) CheckoutSettings() checkout.Settings {
	return checkout.Settings{
		MinTotal:          c.Orders.minTotal,
		ReservationWindow: c.ReservationWindow(),
		ShippingSLA:       time.Duration(c.Orders.ShippingSLAHours) * time.Hour,
		Currency:          c.Orders.Currency,
	}
}
