package config

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

var (
	rdb    *redis.Client
	locker *redislock.Client
)

func GetRedisDB() *redis.Client {
	return rdb
}

func GetRedisLock() *redislock.Client {
	return locker
}

// SetRedisClient installs an already connected client (tools and tests).
func SetRedisClient(c *redis.Client) {
	rdb = c
	if c == nil {
		locker = nil
		return
	}
	locker = redislock.New(c)
}

// GetRedisObject decodes the JSON stored at key into dest. A miss, or no Redis, is (false, nil).
func GetRedisObject(key string, dest interface{}) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	raw, err := rdb.Get(context.Background(), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetRedisObject stores obj as JSON. Caching is skipped silently without Redis.
func SetRedisObject(key string, obj interface{}, exp time.Duration) error {
	if rdb == nil {
		return nil
	}
	payload, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return rdb.Set(context.Background(), key, payload, exp).Err()
}

func RemoveRedisKey(keys ...string) error {
	if rdb == nil || len(keys) == 0 {
		return nil
	}
	return rdb.Del(context.Background(), keys...).Err()
}

// redisOptionsFromEnv reads REDIS_ADDRESS (default localhost:6379), REDIS_PASSWORD,
// REDIS_DB (0) and REDIS_POOL_SIZE (100).
func redisOptionsFromEnv() *redis.Options {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDRESS"))
	if addr == "" {
		addr = "localhost:6379"
		log.Printf("REDIS_ADDRESS not set; defaulting to %s", addr)
	}
	return &redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       IntFromEnv("REDIS_DB", 0),
		PoolSize: IntFromEnv("REDIS_POOL_SIZE", 100),
	}
}

// ConnectRedisWithRetry blocks until Redis answers PING and installs the client and lock client.
// Call it from main() after the HTTP server is listening.
func ConnectRedisWithRetry() {
	opts := redisOptionsFromEnv()
	for attempt := 1; ; attempt++ {
		client := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			SetRedisClient(client)
			log.Printf("connected to redis (attempt=%d addr=%s db=%d)", attempt, opts.Addr, opts.DB)
			return
		}
		_ = client.Close()
		sleep := RetryBackoff(attempt)
		log.Printf("failed to connect redis (attempt=%d addr=%s): %v; retrying in %s", attempt, opts.Addr, err, sleep)
		time.Sleep(sleep)
	}
}
