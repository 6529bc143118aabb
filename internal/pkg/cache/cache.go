package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/env"
)

var (
	client    *redis.Client
	available bool
)

// Options returns the Redis connection settings from the environment.
func Options() *redis.Options {
	return &redis.Options{
		Addr:        fmt.Sprintf("%s:%s", env.GetEnv("CACHE_HOST", "localhost"), env.GetEnv("CACHE_PORT", "6379")),
		Password:    env.GetEnv("CACHE_PASSWORD", ""),
		DB:          env.GetEnvInt("CACHE_DB", 0),
		DialTimeout: 2 * time.Second,
	}
}

// SetupCache initializes the connection to the Redis-compatible cache server.
// The cache is optional: a failed ping is logged and callers degrade.
func SetupCache() {
	client = redis.NewClient(Options())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if pong, err := client.Ping(ctx).Result(); err != nil {
		available = false
		log.Warnf("[Cache] Could not connect to cache: %v", err)
	} else {
		available = true
		log.Infof("[Cache] Connected to cache: %s", pong)
	}
}

// IsAvailable reports whether the last SetupCache ping succeeded.
func IsAvailable() bool {
	return available
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	if client == nil {
		SetupCache()
	}
	return client
}

// Store is the subset of cache operations used by the application.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ErrMiss is returned by Store.Get when the key does not exist.
var ErrMiss = redis.Nil

// RedisStore adapts a go-redis client to Store.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(c redis.Cmdable) *RedisStore {
	return &RedisStore{client: c}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	return s.client.Get(ctx, key).Result()
}

func (s *RedisStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
