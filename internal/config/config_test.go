package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_requiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorIs(t, err, ErrMissingJWTSecret)
}

func TestLoad_defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.True(t, cfg.Pricing.TaxRate.Equal(decimal.RequireFromString("0.08")))
	assert.True(t, cfg.Pricing.FreeShippingThreshold.Equal(decimal.NewFromInt(4150)))
	assert.True(t, cfg.Pricing.ShippingFlatFee.Equal(decimal.NewFromInt(830)))
	assert.Equal(t, "inr", cfg.Payment.Currency)
	assert.Equal(t, 15*time.Second, cfg.Payment.Timeout)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoad_overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TAX_RATE", "0.18")
	t.Setenv("SHIPPING_FLAT_FEE", "99.00")
	t.Setenv("PAYMENT_CURRENCY", "USD")
	t.Setenv("PAYMENT_TIMEOUT", "3s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Pricing.TaxRate.Equal(decimal.RequireFromString("0.18")))
	assert.True(t, cfg.Pricing.ShippingFlatFee.Equal(decimal.RequireFromString("99")))
	assert.Equal(t, "usd", cfg.Payment.Currency)
	assert.Equal(t, 3*time.Second, cfg.Payment.Timeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSAllowedOrigins)
}

func TestLoad_invalidValuesFallBack(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TAX_RATE", "eight percent")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "many")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Pricing.TaxRate.Equal(decimal.RequireFromString("0.08")))
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
}

func TestLoad_rejectsNegativePricing(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TAX_RATE", "-0.1")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadDatabase_withoutJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "postgres://migrate@db:5432/shop?sslmode=disable")
	t.Setenv("LOG_FORMAT", "console")

	db, logCfg := LoadDatabase()
	assert.Equal(t, "postgres://migrate@db:5432/shop?sslmode=disable", db.URL)
	assert.Equal(t, 5*time.Minute, db.ConnMaxLifetime)
	assert.Equal(t, "console", logCfg.Format)
	assert.Equal(t, "info", logCfg.Level)
}
