package config

import (
	"context"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds the client from environment variables and
// pings it once. A nil return means Redis is unreachable; the cache
// and rate-limit middleware then run as pass-throughs, so the API
// stays up without it.
//
//	REDIS_URL - full redis:// URL, takes precedence over the rest
//	REDIS_HOST + REDIS_PORT, or REDIS_ADDR - server address
//	REDIS_PASSWORD - optional password
//	REDIS_DB - database number (default 0)
func NewRedisClient() *redis.Client {
	client := redis.NewClient(redisOptionsFromEnv())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}

func redisOptionsFromEnv() *redis.Options {
	if raw := os.Getenv("REDIS_URL"); raw != "" {
		if opts, err := redis.ParseURL(raw); err == nil {
			return opts
		}
	}

	addr := os.Getenv("REDIS_ADDR")
	if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
		addr = net.JoinHostPort(host, port)
	}
	if addr == "" {
		addr = "localhost:6379"
	}
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	return &redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}
}
