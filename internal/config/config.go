package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration
type Config struct {
	StoreDSN    string
	QuoteAPIURL string
	FeeModel    string
	InitialCash decimal.Decimal
	QuoteMaxAge time.Duration
	LogLevel    string
	Port        int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		StoreDSN:    getEnv("STORE_DSN", "./data"),
		QuoteAPIURL: getEnv("QUOTE_API_URL", "http://localhost:9000"),
		FeeModel:    getEnv("FEE_MODEL", "flat:10"),
		InitialCash: getEnvAsDecimal("INITIAL_CASH", decimal.NewFromInt(10000)),
		QuoteMaxAge: getEnvAsDuration("QUOTE_MAX_AGE", 0),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Port:        getEnvAsInt("PORT", 8080),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.StoreDSN == "" {
		return fmt.Errorf("STORE_DSN is required")
	}
	if c.QuoteAPIURL == "" {
		return fmt.Errorf("QUOTE_API_URL is required")
	}
	if !c.InitialCash.IsPositive() {
		return fmt.Errorf("INITIAL_CASH must be positive, got %s", c.InitialCash)
	}
	if c.QuoteMaxAge < 0 {
		return fmt.Errorf("QUOTE_MAX_AGE cannot be negative, got %s", c.QuoteMaxAge)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if decVal, err := decimal.NewFromString(value); err == nil {
			return decVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if durVal, err := time.ParseDuration(value); err == nil {
			return durVal
		}
	}
	return defaultValue
}
