package pricecache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// RedisCache implements Cache on a shared Redis instance. Keys are
// last-writer-wins point values; no compare-and-swap is needed because
// prices are monotonically refreshed, never accumulated.
type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache wraps an existing Redis client.
func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func priceKey(symbol string) string {
	return fmt.Sprintf("price:%s", strings.ToUpper(symbol))
}

func (c *RedisCache) Get(ctx context.Context, symbol string) (decimal.Decimal, bool) {
	val, err := c.rdb.Get(ctx, priceKey(symbol)).Result()
	if err != nil {
		if err != redis.Nil {
			slog.Debug("price cache read failed", "ticker", symbol, "err", err)
		}
		return decimal.Decimal{}, false
	}

	price, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return price, true
}

func (c *RedisCache) Set(ctx context.Context, symbol string, price decimal.Decimal, ttl time.Duration) {
	if err := c.rdb.Set(ctx, priceKey(symbol), price.String(), ttl).Err(); err != nil {
		// Cache unavailability must not break pricing.
		slog.Debug("price cache write failed", "ticker", symbol, "err", err)
	}
}
