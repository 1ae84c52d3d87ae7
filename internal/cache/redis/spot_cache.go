package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// spotKey holds the last-good BTC spot price as a hash with "price" and "ts"
// (Unix nanosecond) fields.
const spotKey = "spot:btc"

// defaultSpotMaxAge bounds how stale a cached spot may be before it stops
// counting as a fallback.
const defaultSpotMaxAge = 5 * time.Minute

// SpotCache implements domain.SpotCache on Redis.
type SpotCache struct {
	rdb    *redis.Client
	maxAge time.Duration
}

// NewSpotCache creates a SpotCache backed by the given Client. maxAge <= 0
// selects the default staleness bound.
func NewSpotCache(c *Client, maxAge time.Duration) *SpotCache {
	if maxAge <= 0 {
		maxAge = defaultSpotMaxAge
	}
	return &SpotCache{rdb: c.rdb, maxAge: maxAge}
}

var _ domain.SpotCache = (*SpotCache)(nil)

// SetSpot stores the latest sanity-checked spot price.
func (sc *SpotCache) SetSpot(ctx context.Context, price float64) error {
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(time.Now().UnixNano(), 10),
	}
	if err := sc.rdb.HSet(ctx, spotKey, fields).Err(); err != nil {
		return fmt.Errorf("redis: set spot: %w", err)
	}
	return nil
}

// GetSpot returns the cached spot price. A missing or stale entry yields
// domain.ErrNotFound; trading on an old print is worse than not trading.
func (sc *SpotCache) GetSpot(ctx context.Context) (float64, error) {
	vals, err := sc.rdb.HGetAll(ctx, spotKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: get spot: %w", err)
	}
	if len(vals) == 0 {
		return 0, domain.ErrNotFound
	}

	price, err := strconv.ParseFloat(vals["price"], 64)
	if err != nil {
		return 0, fmt.Errorf("redis: parse spot price: %w", err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis: parse spot ts: %w", err)
	}

	if time.Since(time.Unix(0, tsNano)) > sc.maxAge {
		return 0, fmt.Errorf("redis: spot stale: %w", domain.ErrNotFound)
	}
	return price, nil
}
