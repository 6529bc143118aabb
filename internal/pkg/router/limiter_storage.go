package router

import (
	"net"
	"strconv"

	"github.com/gofiber/storage/redis"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/env"
)

// NewLimiterStorage keeps rate limit counters in Redis database 1 so limits
// hold across instances. The cache client's address and password are reused
// when available.
func NewLimiterStorage(client *goredis.Client) *redis.Storage {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnvInt("CACHE_PORT", 6379)
	password := env.GetEnv("CACHE_PASSWORD", "")
	if client != nil {
		addr := client.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := client.Options().Password; p != "" {
			password = p
		}
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1, // cache uses DB 0
		Reset:    false,
	})
}
