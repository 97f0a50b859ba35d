package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/redis/go-redis/v9"
)

// RateLimiter counts requests per client IP in fixed Redis windows.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window}
}

// RateLimiterFromEnv reads RATE_LIMIT_MAX_REQUESTS (600) and RATE_LIMIT_WINDOW_SECONDS (60).
func RateLimiterFromEnv() *RateLimiter {
	return &RateLimiter{
		limit:  int64(config.IntFromEnv("RATE_LIMIT_MAX_REQUESTS", 600)),
		window: time.Duration(config.IntFromEnv("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
	}
}

func (rl *RateLimiter) redisClient() *redis.Client {
	if rl.client != nil {
		return rl.client
	}
	return config.GetRedisDB()
}

// Middleware lets requests through while Redis is unavailable.
func (rl *RateLimiter) Middleware(c *gin.Context) {
	client := rl.redisClient()
	if client == nil {
		c.Next()
		return
	}
	key := "RateLimit:" + c.ClientIP()
	ctx := c.Request.Context()

	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		config.LogError(config.GetLogger(), "middlewares", "RateLimiter", "incr", key, err)
		c.Next()
		return
	}
	if count == 1 {
		if err := client.Expire(ctx, key, rl.window).Err(); err != nil {
			config.LogError(config.GetLogger(), "middlewares", "RateLimiter", "expire", key, err)
		}
	}
	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"category": "RATE_LIMITED",
			"message":  fmt.Sprintf("rate limit exceeded; try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}
	c.Next()
}
