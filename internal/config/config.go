package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Secrets    SecretsConfig
	Reconciler ReconcilerConfig
	Logger     LoggerConfig
}

// ServerConfig holds the metrics/health HTTP server configuration
type ServerConfig struct {
	Host        string
	MetricsPort int
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// SecretsConfig selects the secret backend that tenant provider credentials
// are hydrated from
type SecretsConfig struct {
	// Backend is one of: aws, vault, local
	Backend string

	// AWS Secrets Manager
	AWSRegion   string
	AWSProfile  string
	AWSEndpoint string

	// HashiCorp Vault
	VaultAddress   string
	VaultToken     string
	VaultRoleID    string
	VaultSecretID  string
	VaultMountPath string

	// Local file backend (development only)
	LocalPath string

	CacheTTL time.Duration
}

// ReconcilerConfig holds reconciliation sweep configuration
type ReconcilerConfig struct {
	Interval    time.Duration
	StuckAfter  time.Duration
	BatchSize   int32
	MaxAttempts int
	PollRate    float64
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			MetricsPort: getEnvAsInt("METRICS_PORT", 9090),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "payment_core"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		},
		Secrets: SecretsConfig{
			Backend:        getEnv("SECRETS_BACKEND", "local"),
			AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
			AWSProfile:     getEnv("AWS_PROFILE", ""),
			AWSEndpoint:    getEnv("AWS_SECRETS_ENDPOINT", ""),
			VaultAddress:   getEnv("VAULT_ADDR", ""),
			VaultToken:     getEnv("VAULT_TOKEN", ""),
			VaultRoleID:    getEnv("VAULT_ROLE_ID", ""),
			VaultSecretID:  getEnv("VAULT_SECRET_ID", ""),
			VaultMountPath: getEnv("VAULT_MOUNT_PATH", "secret"),
			LocalPath:      getEnv("SECRETS_LOCAL_PATH", "./secrets"),
			CacheTTL:       getEnvAsDuration("SECRETS_CACHE_TTL", 5*time.Minute),
		},
		Reconciler: ReconcilerConfig{
			Interval:    getEnvAsDuration("RECONCILER_INTERVAL", time.Minute),
			StuckAfter:  getEnvAsDuration("RECONCILER_STUCK_AFTER", 5*time.Minute),
			BatchSize:   int32(getEnvAsInt("RECONCILER_BATCH_SIZE", 50)),
			MaxAttempts: getEnvAsInt("RECONCILER_MAX_ATTEMPTS", 10),
			PollRate:    getEnvAsFloat("RECONCILER_POLL_RATE", 5),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	// Validate required fields
	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	switch cfg.Secrets.Backend {
	case "aws", "local":
	case "vault":
		if cfg.Secrets.VaultAddress == "" {
			return nil, fmt.Errorf("VAULT_ADDR is required when SECRETS_BACKEND=vault")
		}
	default:
		return nil, fmt.Errorf("unknown SECRETS_BACKEND %q (expected aws, vault or local)", cfg.Secrets.Backend)
	}

	return cfg, nil
}

// ConnectionString returns the PostgreSQL connection URL
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
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
