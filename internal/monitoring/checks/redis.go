package checks

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ecohubkosova/ecohub/internal/monitoring"
)

const defaultRedisTimeout = 2 * time.Second

// Redis returns a readiness probe for the rate limit store. A nil client means Redis was
// configured but never connected, so requests are limited in memory; that reports degraded.
func Redis(client *redis.Client, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("redis", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if client == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "redis unavailable; using in-memory rate limits"}
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout, defaultRedisTimeout))
		defer cancel()

		return monitoring.ResultFromError(client.Ping(probeCtx).Err(), time.Since(start))
	})
}
