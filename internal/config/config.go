package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP    HTTPConfig
	Storage StorageConfig
	Engine  EngineConfig
	Logging LoggingConfig
	// SeedAccounts is an optional "id:balance,id:balance" list created at startup.
	SeedAccounts string
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// StorageConfig selects and configures the persistence adapter.
type StorageConfig struct {
	// Driver is "memory" or "postgres".
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// EngineConfig sizes the transfer engine's pools and retry policy.
type EngineConfig struct {
	DebitWorkers  int
	CreditWorkers int
	NotifyWorkers int
	QueueSize     int
	MaxAttempts   int
	BackoffStep   time.Duration
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level  string
	Format string // text|json
}

const (
	defaultHost            = "0.0.0.0"
	defaultPort            = 8080
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultLoggingLevel    = "info"
	defaultLoggingFormat   = "text"
	defaultStorageDriver   = "memory"
	defaultStageWorkers    = 8
	defaultNotifyWorkers   = 4
	defaultQueueSize       = 1024
	defaultMaxAttempts     = 50
	defaultBackoffStep     = 10 * time.Millisecond
)

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			Host:            valueOrDefault("SERVER_HOST", defaultHost),
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			IdleTimeout:     defaultIdleTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Storage: StorageConfig{
			Driver:   valueOrDefault("STORAGE_DRIVER", defaultStorageDriver),
			Host:     valueOrDefault("DB_HOST", "localhost"),
			Port:     valueOrDefault("DB_PORT", "5432"),
			User:     valueOrDefault("DB_USER", "postgres"),
			Password: valueOrDefault("DB_PASSWORD", "postgres"),
			DBName:   valueOrDefault("DB_NAME", "fundsflow"),
		},
		Engine: EngineConfig{
			DebitWorkers:  parseIntWithDefault("ENGINE_DEBIT_WORKERS", defaultStageWorkers),
			CreditWorkers: parseIntWithDefault("ENGINE_CREDIT_WORKERS", defaultStageWorkers),
			NotifyWorkers: parseIntWithDefault("ENGINE_NOTIFY_WORKERS", defaultNotifyWorkers),
			QueueSize:     parseIntWithDefault("ENGINE_QUEUE_SIZE", defaultQueueSize),
			MaxAttempts:   parseIntWithDefault("ENGINE_MAX_ATTEMPTS", defaultMaxAttempts),
			BackoffStep:   defaultBackoffStep,
		},
		Logging: LoggingConfig{
			Level:  valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format: valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
		},
		SeedAccounts: os.Getenv("SEED_ACCOUNTS"),
	}

	port, err := parsePort("SERVER_PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTP.Port = port

	if v := os.Getenv("ENGINE_BACKOFF_STEP"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ENGINE_BACKOFF_STEP: %w", err)
		}
		cfg.Engine.BackoffStep = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT: %w", err)
		}
		cfg.HTTP.ShutdownTimeout = d
	}

	if cfg.Storage.Driver != "memory" && cfg.Storage.Driver != "postgres" {
		return Config{}, fmt.Errorf("invalid STORAGE_DRIVER %q, expected memory or postgres", cfg.Storage.Driver)
	}

	return cfg, nil
}

// ConnString builds a lib/pq connection string from the storage settings.
func (s StorageConfig) ConnString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		s.Host, s.Port, s.User, s.Password, s.DBName)
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}
