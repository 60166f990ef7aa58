package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Notifications NotificationsConfig
	Verification  VerificationConfig
	OTEL          OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NotificationsConfig holds the notification gateway configuration
type NotificationsConfig struct {
	GatewayURL string
	APIToken   string
	SenderID   string
}

// VerificationConfig holds tunables of the verification workflow
type VerificationConfig struct {
	DefaultMaxDailyCapacity int
	MinJustificationLength  int
	UploadDailyCap          int
	UploadMaxSizeBytes      int64
	StatsCacheTTLSeconds    int
	DashboardCacheTTL       int
	HealthCacheTTLSeconds   int
	ReconcileInterval       time.Duration
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "pharmacy_backend"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Notifications: NotificationsConfig{
			GatewayURL: getEnv("NOTIFY_GATEWAY_URL", ""),
			APIToken:   getEnv("NOTIFY_API_TOKEN", ""),
			SenderID:   getEnv("NOTIFY_SENDER_ID", "medleaf-pharmacy"),
		},
		Verification: VerificationConfig{
			DefaultMaxDailyCapacity: getEnvAsInt("VERIFY_DEFAULT_DAILY_CAPACITY", 30),
			MinJustificationLength:  getEnvAsInt("VERIFY_MIN_JUSTIFICATION_LEN", 10),
			UploadDailyCap:          getEnvAsInt("UPLOAD_DAILY_CAP", 50),
			UploadMaxSizeBytes:      int64(getEnvAsInt("UPLOAD_MAX_SIZE_BYTES", 10*1024*1024)),
			StatsCacheTTLSeconds:    getEnvAsInt("STATS_CACHE_TTL_SECONDS", 300),
			DashboardCacheTTL:       getEnvAsInt("DASHBOARD_CACHE_TTL_SECONDS", 180),
			HealthCacheTTLSeconds:   getEnvAsInt("HEALTH_CACHE_TTL_SECONDS", 600),
			ReconcileInterval:       getEnvAsDuration("RECONCILE_INTERVAL", 15*time.Minute),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "pharmacy-verification"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
