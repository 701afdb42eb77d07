package ratelimit

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

const keyPrefix = "ratelimit:auth"

// Limiter counts hits per key in fixed windows.
type Limiter interface {
	// Allow records one hit and reports whether it fits the window, plus the time until the window resets.
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// Store adapts a ulule limiter to Limiter.
type Store struct {
	lim *limiter.Limiter
}

// NewMemory keeps the windows in this process only.
func NewMemory(limit int, period time.Duration) *Store {
	store := memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          keyPrefix,
		CleanUpInterval: period,
	})
	return newStore(store, limit, period)
}

// NewRedis shares the windows across processes. It fails when the scripts cannot be loaded.
func NewRedis(rdb *redis.Client, limit int, period time.Duration) (*Store, error) {
	store, err := sredis.NewStoreWithOptions(rdb, limiter.StoreOptions{
		Prefix:   keyPrefix,
		MaxRetry: 3,
	})
	if err != nil {
		return nil, fmt.Errorf("redis limiter store: %w", err)
	}
	return newStore(store, limit, period), nil
}

func newStore(store limiter.Store, limit int, period time.Duration) *Store {
	return &Store{lim: limiter.New(store, limiter.Rate{Period: period, Limit: int64(limit)})}
}

func (s *Store) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	lc, err := s.lim.Get(ctx, key)
	if err != nil {
		return false, 0, err
	}
	retryIn := time.Until(time.Unix(lc.Reset, 0))
	if retryIn < time.Second {
		retryIn = time.Second
	}
	return !lc.Reached, retryIn, nil
}

// Middleware answers 429 once the client IP exceeds the limit. Limiter failures let the request through.
func Middleware(l Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, retryIn, err := l.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			log.Printf("ratelimit: %v", err)
			c.Next()
			return
		}
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryIn.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many authentication attempts, please try again later",
				"code":  "rate_limited",
			})
			return
		}
		c.Next()
	}
}
