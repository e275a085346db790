package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	HTTP      HTTPConfig
	Storage   StorageConfig
	NATS      NATSConfig
	Log       LogConfig
	Orders    OrdersConfig
	Bootstrap BootstrapConfig
}

type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type StorageConfig struct {
	Backend     string
	PostgresDSN string
}

type NATSConfig struct {
	// пустой URL отключает публикацию событий
	URL string
}

type LogConfig struct {
	Level string
}

type OrdersConfig struct {
	StrictTransitions bool
}

// BootstrapConfig администратор, создаваемый при старте, если задан
type BootstrapConfig struct {
	AdminUsername string
	AdminEmail    string
}

// Load читает .env (если есть) и переменные окружения
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdown, err := time.ParseDuration(getEnv("SHUTDOWN_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}
	strict, err := strconv.ParseBool(getEnv("STRICT_STATUS_TRANSITIONS", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid STRICT_STATUS_TRANSITIONS: %w", err)
	}

	cfg := &Config{
		HTTP: HTTPConfig{
			Addr:            getEnv("HTTP_ADDR", ":9091"),
			ShutdownTimeout: shutdown,
		},
		Storage: StorageConfig{
			Backend:     getEnv("STORAGE", StorageMemory),
			PostgresDSN: getEnv("POSTGRES_DSN", ""),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Orders: OrdersConfig{
			StrictTransitions: strict,
		},
		Bootstrap: BootstrapConfig{
			AdminUsername: getEnv("ADMIN_USERNAME", ""),
			AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	switch c.Storage.Backend {
	case StorageMemory:
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for postgres storage")
		}
	default:
		return fmt.Errorf("unknown STORAGE %q", c.Storage.Backend)
	}
	if (c.Bootstrap.AdminUsername == "") != (c.Bootstrap.AdminEmail == "") {
		return fmt.Errorf("ADMIN_USERNAME and ADMIN_EMAIL must be set together")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
