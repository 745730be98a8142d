package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_store/internal/repository"
)

type Config struct {
	Env      string
	LogLevel string

	HTTPPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	DBDriver       string
	DB             repository.Credentials
	SQLitePath     string
	MigrationsPath string

	// RedisAddr empty disables the cart cache.
	RedisAddr    string
	CartCacheTTL time.Duration

	// KafkaBrokers empty disables the outbox publisher.
	KafkaBrokers       []string
	KafkaTopic         string
	KafkaGroupID       string
	OutboxPollInterval time.Duration
}

func Load() (*Config, error) {
	port, err := getEnvInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	requestTimeout, err := getEnvDuration("REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := getEnvDuration("CART_CACHE_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	pollInterval, err := getEnvDuration("OUTBOX_POLL_INTERVAL", 2*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:             getEnv("APP_ENV", "dev"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		RequestTimeout:  requestTimeout,
		ShutdownTimeout: shutdownTimeout,
		DBDriver:        getEnv("DB_DRIVER", repository.DriverSQLite),
		DB: repository.Credentials{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     port,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "store"),
		},
		SQLitePath:         getEnv("SQLITE_PATH", "store.db"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		CartCacheTTL:       cacheTTL,
		KafkaBrokers:       splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "order-events"),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "order-notifier"),
		OutboxPollInterval: pollInterval,
	}

	switch cfg.DBDriver {
	case repository.DriverPostgres, repository.DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	cfg.MigrationsPath = getEnv("MIGRATIONS_PATH", "internal/repository/migrations/"+cfg.DBDriver)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
