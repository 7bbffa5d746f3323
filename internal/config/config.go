// Package config loads runtime configuration from the environment.
// A .env file in the working directory is read first when present; real
// environment variables take precedence over it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is the full runtime configuration.
type Config struct {
	App   AppConfig
	Log   LogConfig
	Store StoreConfig
	Auth  AuthConfig

	// ModelsFile is the YAML file declaring models and their counters.
	ModelsFile string
}

// AppConfig configures the HTTP server.
type AppConfig struct {
	Env             string        `validate:"oneof=development production test"`
	Port            int           `validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
}

// IsDevelopment reports whether the app runs in development mode.
func (c AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// LogConfig configures the logger.
type LogConfig struct {
	Level      string `validate:"oneof=debug info warn error"`
	File       string
	MaxSizeMB  int `validate:"gte=0"`
	MaxBackups int `validate:"gte=0"`
	MaxAgeDays int `validate:"gte=0"`
}

// StoreConfig selects the counter store backend.
type StoreConfig struct {
	Backend     string `validate:"oneof=memory postgres sqlite redis"`
	DatabaseURL string `validate:"required_if=Backend postgres"`
	RedisURL    string `validate:"required_if=Backend redis"`
	KeyPrefix   string
	SQLitePath  string `validate:"required_if=Backend sqlite"`

	// Timeout bounds each store round trip.
	Timeout time.Duration `validate:"gt=0"`
}

// AuthConfig configures bearer-token authentication of the admin API.
type AuthConfig struct {
	Enabled   bool
	JWTSecret string `validate:"required_if=Enabled true"`
	Issuer    string
	TokenTTL  time.Duration `validate:"gt=0"`
}

const minSecretLen = 32

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads the configuration and validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Env:             getEnv("APP_ENV", "development"),
			Port:            getEnvInt("APP_PORT", 8080),
			ShutdownTimeout: getEnvDuration("APP_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Log: LogConfig{
			Level:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
		},
		Store: StoreConfig{
			Backend:     strings.ToLower(getEnv("COUNTER_STORE", "memory")),
			DatabaseURL: getEnv("DATABASE_URL", ""),
			RedisURL:    getEnv("REDIS_URL", ""),
			KeyPrefix:   getEnv("REDIS_KEY_PREFIX", ""),
			SQLitePath:  getEnv("SQLITE_PATH", "autoinc.db"),
			Timeout:     getEnvDuration("STORE_TIMEOUT", 5*time.Second),
		},
		Auth: AuthConfig{
			Enabled:   getEnvBool("AUTH_ENABLED", false),
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", "autoinc"),
			TokenTTL:  getEnvDuration("JWT_TTL", time.Hour),
		},
		ModelsFile: getEnv("MODELS_FILE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Auth.Enabled && len(c.Auth.JWTSecret) < minSecretLen {
		return fmt.Errorf("invalid configuration: JWT_SECRET must be at least %d bytes", minSecretLen)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
