package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("RETURN_TAX_RATE", "")
	t.Setenv("PAGE_SIZE", "")
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("HTTP_PORT", "")

	cfg := Load()
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.True(t, cfg.UsesDefaultDSN())
	assert.True(t, decimal.RequireFromString("0.16").Equal(cfg.ReturnTaxRate))
	assert.Equal(t, 10, cfg.PageSize)
	assert.Error(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("RETURN_TAX_RATE", "0.19")
	t.Setenv("PAGE_SIZE", "25")
	t.Setenv("JWT_TTL_HOURS", "not-a-number")

	cfg := Load()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "0.19", cfg.ReturnTaxRate.String())
	assert.Equal(t, 25, cfg.PageSize)
	assert.Equal(t, 24, cfg.JWTTTLHours)
}

func TestValidateShortSecret(t *testing.T) {
	cfg := &Config{JWTSecret: "short", PageSize: 10, MaxPageSize: 100}
	assert.EqualError(t, cfg.Validate(), "JWT_SECRET must be at least 32 characters")
}
