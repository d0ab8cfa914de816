// Package storage persists the client state that survives between runs:
// the access token, the cached profile and the remembered credentials.
package storage

import (
	"context"
	"fmt"

	"github.com/al-bashkir/payroll-console/internal/config"
)

// Well-known keys. Each one can be removed independently.
const (
	KeyToken    = "token"
	KeyUser     = "user"
	KeyUsername = "username"
	KeyPassword = "password"
)

// Store is a small string key-value store.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Open returns the Store selected by cfg.Driver.
func Open(ctx context.Context, cfg *config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "file":
		return OpenFile(cfg.Path)
	case "redis":
		return OpenRedis(ctx, RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
