package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/tideline/tideline/internal/config"
)

// Store is a namespaced byte cache. Entries are stamped with the relay
// configuration generation they were computed under; a lookup with a newer
// generation misses, so bumping the generation invalidates every namespace
// at once without iterating entries.
type Store interface {
	Get(ctx context.Context, namespace, key string, generation uint64) ([]byte, bool)
	Set(ctx context.Context, namespace, key string, generation uint64, value []byte, ttl time.Duration)
}

// New builds a cache store from configuration
func New(cfg *config.Caching) (Store, error) {
	if !cfg.Enabled {
		return Disabled{}, nil
	}
	switch cfg.Engine {
	case "memory":
		return NewMemory(), nil
	case "redis":
		return NewRedis(cfg.RedisURL)
	default:
		return nil, fmt.Errorf("unknown cache engine: %s", cfg.Engine)
	}
}

// Disabled is a cache that never stores anything
type Disabled struct{}

func (Disabled) Get(context.Context, string, string, uint64) ([]byte, bool) { return nil, false }

func (Disabled) Set(context.Context, string, string, uint64, []byte, time.Duration) {}
