package counterstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"autoinc/internal/core/sequence"
	"autoinc/internal/infrastructure/storage/postgres"
)

// Supported backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Backend     string
	DatabaseURL string
	SQLitePath  string
	RedisURL    string
	KeyPrefix   string

	// EnsureSchema creates the SQL table on open.
	EnsureSchema bool
}

// Handle is an opened store with its resources.
type Handle struct {
	Store sequence.AdminStore

	// Pool is set for the postgres backend so callers can share it.
	Pool *postgres.Pool

	closers []func() error
}

// Close releases the store's connections.
func (h *Handle) Close() error {
	var first error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open connects the configured backend.
func Open(ctx context.Context, opts Options) (*Handle, error) {
	switch opts.Backend {
	case BackendMemory, "":
		return &Handle{Store: NewMemoryStore()}, nil

	case BackendPostgres:
		pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(opts.DatabaseURL))
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		store := NewPostgresStore(pool.Pool)
		if opts.EnsureSchema {
			if err := store.EnsureSchema(ctx); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return &Handle{
			Store:   store,
			Pool:    pool,
			closers: []func() error{func() error { pool.Close(); return nil }},
		}, nil

	case BackendSQLite:
		store, err := OpenSQLite(ctx, opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Handle{Store: store, closers: []func() error{store.Close}}, nil

	case BackendRedis:
		redisOpts, err := redis.ParseURL(opts.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(redisOpts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return &Handle{
			Store:   NewRedisStore(client, opts.KeyPrefix),
			closers: []func() error{client.Close},
		}, nil
	}
	return nil, fmt.Errorf("unknown counter store backend %q", opts.Backend)
}
