package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig
	Model    ModelConfig
	Agent    AgentConfig
	Redis    RedisConfig
	Database DatabaseConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ModelConfig holds language-model service settings.
type ModelConfig struct {
	Provider string // "openai" or "script"
	APIKey   string //nolint:gosec // G117: upstream credential config
	BaseURL  string
	Model    string
}

// AgentConfig bounds the orchestration loop.
type AgentConfig struct {
	SessionTTL     time.Duration
	MaxIterations  int
	MaxAttachments int
	MaxAttachChars int
}

// RedisConfig holds optional Redis event-mirror settings.
// An empty Addr disables the mirror and the websocket watcher.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// DatabaseConfig holds optional PostgreSQL run-archive settings.
// An empty Host disables the archive.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// Load reads configuration from environment variables. Defaults are safe for
// local development only; the model API key must be set explicitly unless the
// scripted provider is selected.
func Load() (*Config, error) {
	readTimeout, err := getEnvDuration("LUMEN_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	// Streaming responses stay open across model round-trips, so the write
	// timeout is generous by default.
	writeTimeout, err := getEnvDuration("LUMEN_SERVER_WRITE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	sessionTTL, err := getEnvDuration("LUMEN_SESSION_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	maxIterations, err := getEnvInt("LUMEN_MAX_ITERATIONS", 10)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("LUMEN_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbPort, err := getEnvInt("LUMEN_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("LUMEN_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:         getEnv("LUMEN_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		Model: ModelConfig{
			Provider: getEnv("LUMEN_MODEL_PROVIDER", "openai"),
			APIKey:   getEnv("LUMEN_MODEL_API_KEY", os.Getenv("OPENAI_API_KEY")),
			BaseURL:  getEnv("LUMEN_MODEL_BASE_URL", ""),
			Model:    getEnv("LUMEN_MODEL_NAME", "gpt-4o"),
		},
		Agent: AgentConfig{
			SessionTTL:     sessionTTL,
			MaxIterations:  maxIterations,
			MaxAttachments: 5,
			MaxAttachChars: 8000,
		},
		Redis: RedisConfig{
			Addr:     getEnv("LUMEN_REDIS_ADDR", ""),
			Password: getEnv("LUMEN_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Database: DatabaseConfig{
			Host:     getEnv("LUMEN_DB_HOST", ""),
			Port:     dbPort,
			User:     getEnv("LUMEN_DB_USER", "lumen"),
			Password: getEnv("LUMEN_DB_PASSWORD", ""),
			DBName:   getEnv("LUMEN_DB_NAME", "lumen_dev"),
			SSLMode:  getEnv("LUMEN_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	switch c.Model.Provider {
	case "openai", "script":
	default:
		return fmt.Errorf("LUMEN_MODEL_PROVIDER must be 'openai' or 'script', got %q", c.Model.Provider)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("LUMEN_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("LUMEN_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Agent.SessionTTL <= 0 {
		return fmt.Errorf("LUMEN_SESSION_TTL must be positive, got %s", c.Agent.SessionTTL)
	}
	if c.Agent.MaxIterations < 1 {
		return fmt.Errorf("LUMEN_MAX_ITERATIONS must be >= 1, got %d", c.Agent.MaxIterations)
	}
	if c.Database.Host != "" {
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("LUMEN_DB_PORT must be 1-65535, got %d", c.Database.Port)
		}
		if c.Database.MaxConns < 1 {
			return fmt.Errorf("LUMEN_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
		}
	}

	return nil
}

// ArchiveEnabled reports whether the Postgres run archive is configured.
func (c *Config) ArchiveEnabled() bool {
	return c.Database.Host != ""
}

// MirrorEnabled reports whether the Redis event mirror is configured.
func (c *Config) MirrorEnabled() bool {
	return c.Redis.Addr != ""
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}
