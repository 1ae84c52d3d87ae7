package redis

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// volKey holds the rolling spot-sample window as a sorted set: score is the
// Unix-nanosecond sample time, member is "ts:price" (the timestamp prefix
// keeps equal prices distinct).
const volKey = "vol:samples"

// VolCache implements domain.VolCache on Redis: a rolling sample window from
// which the realized-volatility estimate is computed on read.
type VolCache struct {
	rdb    *redis.Client
	window time.Duration
}

// NewVolCache creates a VolCache with the given rolling window (the model's
// reference window, typically 15 minutes).
func NewVolCache(c *Client, window time.Duration) *VolCache {
	return &VolCache{rdb: c.rdb, window: window}
}

var _ domain.VolCache = (*VolCache)(nil)

// AddSample appends a spot sample and trims everything older than the
// window.
func (vc *VolCache) AddSample(ctx context.Context, price float64, ts time.Time) error {
	member := fmt.Sprintf("%d:%s", ts.UnixNano(), strconv.FormatFloat(price, 'f', -1, 64))

	pipe := vc.rdb.TxPipeline()
	pipe.ZAdd(ctx, volKey, redis.Z{Score: float64(ts.UnixNano()), Member: member})
	cutoff := strconv.FormatInt(time.Now().Add(-vc.window).UnixNano(), 10)
	pipe.ZRemRangeByScore(ctx, volKey, "-inf", "("+cutoff)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: add vol sample: %w", err)
	}
	return nil
}

// GetVolatility computes the realized volatility over the window: the sample
// standard deviation of minute-close percentage returns, scaled by the
// square root of the window length in minutes so the result expresses a
// full-window move. Samples reports the raw sample count so callers can
// enforce a statistical floor.
func (vc *VolCache) GetVolatility(ctx context.Context) (domain.Volatility, error) {
	cutoff := strconv.FormatInt(time.Now().Add(-vc.window).UnixNano(), 10)
	members, err := vc.rdb.ZRangeByScore(ctx, volKey, &redis.ZRangeBy{
		Min: cutoff,
		Max: "+inf",
	}).Result()
	if err != nil {
		return domain.Volatility{}, fmt.Errorf("redis: get vol samples: %w", err)
	}

	samples := make([]sample, 0, len(members))
	for _, m := range members {
		s, err := parseSample(m)
		if err != nil {
			continue
		}
		samples = append(samples, s)
	}

	return domain.Volatility{
		Std:     realizedStd(samples, vc.window),
		Samples: len(samples),
	}, nil
}

type sample struct {
	ts    time.Time
	price float64
}

func parseSample(member string) (sample, error) {
	tsStr, priceStr, ok := strings.Cut(member, ":")
	if !ok {
		return sample{}, fmt.Errorf("malformed sample %q", member)
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return sample{}, err
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return sample{}, err
	}
	return sample{ts: time.Unix(0, tsNano), price: price}, nil
}

// realizedStd reduces raw samples to minute closes, takes percentage returns
// between consecutive minutes, and scales their standard deviation to the
// window horizon.
func realizedStd(samples []sample, window time.Duration) float64 {
	if len(samples) < 2 {
		return 0
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].ts.Before(samples[j].ts) })

	// Last price of each minute bucket.
	closes := make([]float64, 0, len(samples))
	var lastMinute int64 = math.MinInt64
	for _, s := range samples {
		minute := s.ts.Unix() / 60
		if minute == lastMinute {
			closes[len(closes)-1] = s.price
			continue
		}
		closes = append(closes, s.price)
		lastMinute = minute
	}
	if len(closes) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, (closes[i]-closes[i-1])/closes[i-1]*100)
	}
	if len(returns) < 2 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)

	return math.Sqrt(variance) * math.Sqrt(window.Minutes())
}
