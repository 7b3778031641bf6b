package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Crypto   CryptoConfig
	SMS      SMSConfig
	Seed     SeedConfig
	Log      LogConfig
	Metrics  MetricsConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        string
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	SigningKey      string
	ExpirationHours int
}

// CryptoConfig holds the key material for PII field encryption.
// Encrypted values are used as exact-match query predicates, so the key
// must stay stable across deployments.
type CryptoConfig struct {
	PIIKey string
}

// SMSConfig holds the Twilio credentials for verification code delivery
type SMSConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	Template   string
}

// SeedAccount describes one bootstrap service account
type SeedAccount struct {
	Username    string
	FirstName   string
	Password    string
	PhoneNumber string
	PhotoURL    string
	Birthday    string
}

// SeedConfig holds the two bootstrap service accounts created at startup
type SeedConfig struct {
	Team  SeedAccount
	Stock SeedAccount
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// MetricsConfig holds metrics-related configuration
type MetricsConfig struct {
	Prefix string
}

// Load loads the application configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Name:            getEnv("DB_NAME", "flips_db"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 1*time.Hour),
			LogLevel:        getEnv("DB_LOG_LEVEL", "info"),
		},
		JWT: JWTConfig{
			SigningKey:      getEnv("JWT_SIGNING_KEY", "flipsbackendsecretkey"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		},
		Crypto: CryptoConfig{
			PIIKey: getEnv("CRYPTO_PII_KEY", "flips-dev-pii-key"),
		},
		SMS: SMSConfig{
			AccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			FromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
			Template:   getEnv("SMS_TEMPLATE", "Your Flips verification code: %s"),
		},
		Seed: SeedConfig{
			Team: SeedAccount{
				Username:    getEnv("TEAMFLIPS_USERNAME", ""),
				FirstName:   getEnv("TEAMFLIPS_FIRST_NAME", "Team Flips"),
				Password:    getEnv("TEAMFLIPS_PASSWORD", ""),
				PhoneNumber: getEnv("TEAMFLIPS_PHONE_NUMBER", ""),
				PhotoURL:    getEnv("TEAMFLIPS_PHOTO_URL", ""),
				Birthday:    getEnv("TEAMFLIPS_BIRTHDAY", "1990-01-01"),
			},
			Stock: SeedAccount{
				Username:    getEnv("STOCKFLIPS_USERNAME", ""),
				FirstName:   getEnv("STOCKFLIPS_FIRST_NAME", "Stock Flips"),
				Password:    getEnv("STOCKFLIPS_PASSWORD", ""),
				PhoneNumber: getEnv("STOCKFLIPS_PHONE_NUMBER", ""),
				PhotoURL:    getEnv("STOCKFLIPS_PHOTO_URL", ""),
				Birthday:    getEnv("STOCKFLIPS_BIRTHDAY", "1990-01-01"),
			},
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Prefix: getEnv("METRICS_PREFIX", "flips"),
		},
	}, nil
}

// Helper function to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as integers
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as durations
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
