package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a cache store backed by a redis server. The generation is part
// of the key, so entries from older relay configurations simply become
// unreachable and expire on their own.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a redis-backed cache from a redis:// URL
func NewRedis(rawURL string) (*Redis, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("redis cache engine requires a redis_url")
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return &Redis{client: redis.NewClient(opts)}, nil
}

func redisKey(namespace, key string, generation uint64) string {
	// Batch keys can be long comma-joined id lists; hash them down
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("tideline:%s:g%d:%s", namespace, generation, hex.EncodeToString(sum[:16]))
}

// Get returns the cached value if present
func (r *Redis) Get(ctx context.Context, namespace, key string, generation uint64) ([]byte, bool) {
	val, err := r.client.Get(ctx, redisKey(namespace, key, generation)).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

// Set stores a value with a TTL
func (r *Redis) Set(ctx context.Context, namespace, key string, generation uint64, value []byte, ttl time.Duration) {
	// Failures degrade to uncached operation; nothing to surface
	_ = r.client.Set(ctx, redisKey(namespace, key, generation), value, ttl).Err()
}

// Close releases the redis connection
func (r *Redis) Close() error {
	return r.client.Close()
}
