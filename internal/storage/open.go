package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/vtu_client/internal/config"
)

// Backends carries the already connected clients a store may need.
type Backends struct {
	DB    *pgxpool.Pool
	Cache *redis.Client
}

// Open selects the store configured by SESSION_STORE.
func Open(ctx context.Context, cfg config.Config, b Backends) (Store, error) {
	switch cfg.SessionStore {
	case config.StoreMemory:
		return NewMemoryStore(), nil
	case config.StoreFile:
		return NewFileStore(cfg.SessionFile), nil
	case config.StoreRedis:
		if b.Cache == nil {
			return nil, fmt.Errorf("redis client is required for %s store", config.StoreRedis)
		}
		return NewRedisStore(b.Cache, cfg.SessionProfile), nil
	case config.StorePostgres:
		if b.DB == nil {
			return nil, fmt.Errorf("database is required for %s store", config.StorePostgres)
		}
		store := NewPostgresStore(b.DB, cfg.SessionProfile)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}
