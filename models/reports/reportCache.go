package reports

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/katariastoneworld/stoneworld_backend/utils"
)

func reportCacheEnabled() bool {
	return config.EnvBool("ENABLE_REPORT_CACHE")
}

// Env: REPORT_CACHE_TTL_SECONDS (default 120s)
func reportCacheTTL() time.Duration {
	return time.Duration(config.IntFromEnv("REPORT_CACHE_TTL_SECONDS", 120)) * time.Second
}

// Env: REPORT_SLOW_MS (default 500ms)
func reportSlowMs() int64 {
	return int64(config.IntFromEnv("REPORT_SLOW_MS", 500))
}

func logSlowReport(ctx context.Context, name string, started time.Time, extra map[string]any) {
	d := time.Since(started)
	if d.Milliseconds() < reportSlowMs() {
		return
	}
	location, _ := utils.GetLocationFromContext(ctx)
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	log.Printf("slow_report name=%s ms=%d location=%s correlation_id=%s extra=%v", name, d.Milliseconds(), location, cid, extra)
}

func reportCacheKey(name, location string, parts ...any) string {
	return fmt.Sprintf("report:%s:%s:%v", name, location, parts)
}

func cacheGet[T any](key string, dest *T) (bool, error) {
	return config.GetRedisObject(key, dest)
}

func cacheSet(key string, obj any, ttl time.Duration) error {
	return config.SetRedisObject(key, obj, ttl)
}
