package app

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HumHubURL string // Required: credential-check endpoint, e.g. https://social.example.org/api/v1/auth/current

	Issuer          string        // Optional: issuer claim for session tokens (default: humhub-bridge)
	TokenSecretFile string        // Optional: path to session token signing secret file (default: ./session.secret)
	TokenTTL        time.Duration // Optional: session token lifetime (default: 1h)

	DatabaseFile string // Optional: path to SQLite database file (default: ./bridge.db)
	PepperFile   string // Optional: path to password hashing pepper file (default: ./pepper)

	RemoteConnectTimeout time.Duration // Optional: remote dial timeout (default: 5s)
	RemoteReadTimeout    time.Duration // Optional: remote response timeout (default: 5s)

	BootstrapUsername string // Optional: local user created when the store is empty
	BootstrapPassword string // Optional: its password; both must be set

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
	AuditRetention       time.Duration // Login audit retention (default: 720h)
}

func LoadConfig() Config {
	// A local .env is a dev convenience; absence is not an error.
	_ = godotenv.Load()

	return Config{
		HumHubURL: os.Getenv("BRIDGE_HUMHUB_URL"),

		Issuer:          getEnvOrDefault("BRIDGE_ISSUER", "humhub-bridge"),
		TokenSecretFile: getEnvOrDefault("BRIDGE_TOKEN_SECRET_FILE", "session.secret"),
		TokenTTL:        getEnvDurationOrDefault("BRIDGE_TOKEN_TTL", time.Hour),

		DatabaseFile: getEnvOrDefault("BRIDGE_DATABASE_FILE", "bridge.db"),
		PepperFile:   getEnvOrDefault("BRIDGE_PEPPER_FILE", "pepper"),

		RemoteConnectTimeout: getEnvDurationOrDefault("BRIDGE_REMOTE_CONNECT_TIMEOUT", 5*time.Second),
		RemoteReadTimeout:    getEnvDurationOrDefault("BRIDGE_REMOTE_READ_TIMEOUT", 5*time.Second),

		BootstrapUsername: os.Getenv("BRIDGE_BOOTSTRAP_USERNAME"),
		BootstrapPassword: os.Getenv("BRIDGE_BOOTSTRAP_PASSWORD"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		AuditRetention:       getEnvDurationOrDefault("AUDIT_RETENTION", 30*24*time.Hour),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
