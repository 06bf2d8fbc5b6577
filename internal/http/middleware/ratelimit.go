package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"telegram-bingo/internal/metrics"
)

// RedisRateLimit is a fixed-window limiter using INCR/EXPIRE, keyed by the
// authenticated user or the client IP. A nil client or a Redis failure
// lets the request through.
func RedisRateLimit(client redis.UniversalClient, prefix string, maxRequests int, window time.Duration) gin.HandlerFunc {
	windowSecs := strconv.FormatInt(int64(window.Seconds()), 10)
	return func(c *gin.Context) {
		if client == nil || maxRequests <= 0 {
			c.Next()
			return
		}

		ident := c.ClientIP()
		if p, ok := Principal(c); ok {
			ident = "u:" + p.UserID
		}
		key := prefix + "rl:" + windowSecs + ":" + ident
		ctx := c.Request.Context()

		n, err := client.Incr(ctx, key).Result()
		if err != nil {
			log.Warn().Err(err).Msg("Rate limiter unavailable")
			c.Header("X-RateLimit-Error", "redis-error")
			c.Next()
			return
		}
		if n == 1 {
			client.Expire(ctx, key, window)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(int64(maxRequests)-n, 0), 10))
		if n > int64(maxRequests) {
			metrics.RateLimited.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
