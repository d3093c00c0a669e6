package middleware

import (
	"fmt"
	"net/http"

	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// NewLimiterStore returns a Redis backed store when a client is given, else an in-process one.
func NewLimiterStore(rdb *redis.Client) (limiter.Store, error) {
	if rdb == nil {
		return memory.NewStore(), nil
	}
	return limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "procurement:limiter"})
}

// RateLimit throttles a route group. rate uses the limiter format, e.g. "600-M".
// Requests are keyed by token subject when authenticated, else by client IP.
func RateLimit(store limiter.Store, rate string) (gin.HandlerFunc, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", rate, err)
	}
	return mgin.NewMiddleware(limiter.New(store, r),
		mgin.WithKeyGetter(func(c *gin.Context) string {
			if userID := c.GetString(ContextUserID); userID != "" {
				return "user:" + userID
			}
			return "ip:" + c.ClientIP()
		}),
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, response.Error(http.StatusTooManyRequests, "Too many requests"))
		}),
	), nil
}
