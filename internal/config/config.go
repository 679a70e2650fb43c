package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string

	// StoreBackend selects the account store: "postgres" or "memory".
	StoreBackend string
}

type AuthConfig struct {
	SessionSecret string
	SessionExpiry time.Duration

	LoginMaxAttempts    int
	LoginWindow         time.Duration
	RegisterMaxAttempts int
	RegisterWindow      time.Duration

	BruteForceThreshold int
	BruteForceWindow    time.Duration
	EventLogCapacity    int

	// CleanupInterval drives the background sweep of expired rate limit
	// entries. Memory bounding only, correctness never depends on it.
	CleanupInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	sessionSecret := getEnv("SESSION_SECRET", "")
	if sessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "identity"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxConns:        int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:        int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Env:          env,
			LogLevel:     getEnv("LOG_LEVEL", "info"),
			StoreBackend: getEnv("STORE_BACKEND", "postgres"),
		},
		Auth: AuthConfig{
			SessionSecret:       sessionSecret,
			SessionExpiry:       getEnvAsDuration("SESSION_EXPIRY", 24*time.Hour),
			LoginMaxAttempts:    getEnvAsInt("LOGIN_MAX_ATTEMPTS", 5),
			LoginWindow:         getEnvAsDuration("LOGIN_WINDOW", 15*time.Minute),
			RegisterMaxAttempts: getEnvAsInt("REGISTER_MAX_ATTEMPTS", 3),
			RegisterWindow:      getEnvAsDuration("REGISTER_WINDOW", 1*time.Hour),
			BruteForceThreshold: getEnvAsInt("BRUTE_FORCE_THRESHOLD", 5),
			BruteForceWindow:    getEnvAsDuration("BRUTE_FORCE_WINDOW", 15*time.Minute),
			EventLogCapacity:    getEnvAsInt("EVENT_LOG_CAPACITY", 500),
			CleanupInterval:     getEnvAsDuration("RATE_LIMIT_CLEANUP_INTERVAL", 1*time.Hour),
		},
	}

	switch cfg.Server.StoreBackend {
	case "postgres":
		if cfg.Database.Password == "" {
			return nil, fmt.Errorf("DB_PASSWORD is required for the postgres backend")
		}
	case "memory":
		// No database settings needed.
	default:
		return nil, fmt.Errorf("STORE_BACKEND must be \"postgres\" or \"memory\", got %q", cfg.Server.StoreBackend)
	}

	if err := validateSessionSecret(sessionSecret, env); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSessionSecret enforces minimum security standards for the signing secret
func validateSessionSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}
	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("SESSION_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}
