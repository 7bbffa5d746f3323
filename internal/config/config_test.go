package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into an empty directory so no stray .env is read.
func chdir(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t)
	for _, key := range []string{"APP_ENV", "APP_PORT", "COUNTER_STORE", "AUTH_ENABLED", "LOG_LEVEL", "STORE_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.True(t, cfg.App.IsDevelopment())
	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 5*time.Second, cfg.Store.Timeout)
	assert.False(t, cfg.Auth.Enabled)
}

func TestLoad_Env(t *testing.T) {
	chdir(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("COUNTER_STORE", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/autoinc")
	t.Setenv("STORE_TIMEOUT", "250ms")
	t.Setenv("AUTH_ENABLED", "true")
	t.Setenv("JWT_SECRET", strings.Repeat("s", 32))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, "postgres", cfg.Store.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.Store.Timeout)
	assert.True(t, cfg.Auth.Enabled)
}

func TestLoad_DotEnv(t *testing.T) {
	chdir(t)
	for _, key := range []string{"COUNTER_STORE", "SQLITE_PATH"} {
		t.Setenv(key, "") // restored on cleanup
		require.NoError(t, os.Unsetenv(key))
	}
	require.NoError(t, os.WriteFile(filepath.Join(".", ".env"), []byte("COUNTER_STORE=sqlite\nSQLITE_PATH=/tmp/c.db\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "/tmp/c.db", cfg.Store.SQLitePath)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:   AppConfig{Env: "test", Port: 8080, ShutdownTimeout: time.Second},
			Log:   LogConfig{Level: "info"},
			Store: StoreConfig{Backend: "memory", Timeout: time.Second},
			Auth:  AuthConfig{TokenTTL: time.Hour},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown backend", func(c *Config) { c.Store.Backend = "etcd" }},
		{"postgres without url", func(c *Config) { c.Store.Backend = "postgres" }},
		{"redis without url", func(c *Config) { c.Store.Backend = "redis" }},
		{"bad port", func(c *Config) { c.App.Port = 0 }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"auth without secret", func(c *Config) { c.Auth.Enabled = true }},
		{"short secret", func(c *Config) { c.Auth.Enabled = true; c.Auth.JWTSecret = "short" }},
		{"zero timeout", func(c *Config) { c.Store.Timeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
