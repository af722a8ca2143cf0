// Package config loads engine configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/costgov/costgov/internal/repository/sqlstore"
)

// Config holds all engine configuration
type Config struct {
	Engine    EngineConfig
	Database  sqlstore.Config
	Logging   LoggingConfig
	Providers ProvidersConfig
	Metrics   MetricsConfig
}

// EngineConfig tunes the evaluation loop.
type EngineConfig struct {
	PolicyDir          string
	EvalInterval       time.Duration
	IdempotencyBucket  time.Duration
	Workers            int
	ProviderRPS        float64
	JournalRetention   time.Duration
	CycleTimeout       time.Duration
	InventoryFile      string // offline inventory fixture; disables live collectors when set
	MetricsFile        string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json or console
}

// ProvidersConfig holds per-cloud credentials. A provider with no
// credentials configured is skipped.
type ProvidersConfig struct {
	AWS   AWSConfig
	Azure AzureConfig
}

type AWSConfig struct {
	Enabled         bool
	AccessKeyID     string
	SecretAccessKey string
	Region          string
}

type AzureConfig struct {
	Enabled        bool
	TenantID       string
	ClientID       string
	ClientSecret   string
	SubscriptionID string
	Location       string
}

// MetricsConfig configures the Prometheus/health endpoint.
type MetricsConfig struct {
	Enabled bool
	Host    string
	Port    int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors as it's optional)
	_ = godotenv.Load()

	cfg := &Config{
		Engine: EngineConfig{
			PolicyDir:         getEnv("POLICY_DIR", "./policies"),
			EvalInterval:      getEnvAsDuration("EVAL_INTERVAL", 5*time.Minute),
			IdempotencyBucket: getEnvAsDuration("IDEMPOTENCY_BUCKET", time.Hour),
			Workers:           getEnvAsInt("EVAL_WORKERS", 8),
			ProviderRPS:       getEnvAsFloat("PROVIDER_RPS", 10),
			JournalRetention:  getEnvAsDuration("JOURNAL_RETENTION", 7*24*time.Hour),
			CycleTimeout:      getEnvAsDuration("CYCLE_TIMEOUT", 10*time.Minute),
			InventoryFile:     getEnv("INVENTORY_FILE", ""),
			MetricsFile:       getEnv("METRICS_FILE", ""),
		},
		Database: sqlstore.Config{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			Path:            getEnv("DB_PATH", "./costgov.db"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "costgov"),
			User:            getEnv("DB_USER", ""),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Providers: ProvidersConfig{
			AWS: AWSConfig{
				Enabled:         getEnvAsBool("AWS_ENABLED", false),
				AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
				Region:          getEnv("AWS_REGION", "us-east-1"),
			},
			Azure: AzureConfig{
				Enabled:        getEnvAsBool("AZURE_ENABLED", false),
				TenantID:       getEnv("AZURE_TENANT_ID", ""),
				ClientID:       getEnv("AZURE_CLIENT_ID", ""),
				ClientSecret:   getEnv("AZURE_CLIENT_SECRET", ""),
				SubscriptionID: getEnv("AZURE_SUBSCRIPTION_ID", ""),
				Location:       getEnv("AZURE_LOCATION", "eastus"),
			},
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
			Host:    getEnv("METRICS_HOST", "0.0.0.0"),
			Port:    getEnvAsInt("METRICS_PORT", 9090),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Engine.EvalInterval <= 0 {
		return fmt.Errorf("EVAL_INTERVAL must be positive")
	}
	if c.Engine.IdempotencyBucket <= 0 {
		return fmt.Errorf("IDEMPOTENCY_BUCKET must be positive")
	}
	if c.Engine.Workers < 1 {
		return fmt.Errorf("EVAL_WORKERS must be at least 1")
	}
	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
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
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
