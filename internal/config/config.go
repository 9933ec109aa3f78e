package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=tienda port=5432 sslmode=disable"

type Config struct {
	HTTPPort    string
	DatabaseDSN string
	JWTSecret   string
	JWTTTLHours int
	CORSOrigins string
	LogLevel    string
	LogFormat   string // json | console

	// ReturnTaxRate is applied when a return recomputes the sale totals.
	ReturnTaxRate decimal.Decimal
	PageSize      int
	MaxPageSize   int
}

// Load reads the environment, after merging an optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPPort:      getEnv("HTTP_PORT", "8080"),
		DatabaseDSN:   getEnv("DATABASE_DSN", defaultDSN),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		JWTTTLHours:   getEnvInt("JWT_TTL_HOURS", 24),
		CORSOrigins:   getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		ReturnTaxRate: getEnvDecimal("RETURN_TAX_RATE", decimal.RequireFromString("0.16")),
		PageSize:      getEnvInt("PAGE_SIZE", 10),
		MaxPageSize:   getEnvInt("MAX_PAGE_SIZE", 100),
	}
}

// Validate runs the production checks; main refuses to start when it fails.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	if c.ReturnTaxRate.IsNegative() {
		return errors.New("RETURN_TAX_RATE cannot be negative")
	}
	if c.PageSize < 1 || c.MaxPageSize < c.PageSize {
		return errors.New("PAGE_SIZE must be positive and not above MAX_PAGE_SIZE")
	}
	return nil
}

// UsesDefaultDSN reports whether the built-in development DSN is in effect.
func (c *Config) UsesDefaultDSN() bool { return c.DatabaseDSN == defaultDSN }

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvDecimal(key string, def decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return def
	}
	return d
}
