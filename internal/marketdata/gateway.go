package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// QuoteSource lists the markets under an hourly event with their strikes and
// NO-side quotes.
type QuoteSource interface {
	EventMarkets(ctx context.Context, eventTicker string) ([]domain.MarketQuote, error)
}

// SpotSource fetches the current BTC spot price from the reference exchange.
type SpotSource interface {
	SpotPrice(ctx context.Context) (float64, error)
}

// Config bounds what the gateway will accept as valid data.
type Config struct {
	Series        string
	Location      *time.Location
	SpotSanityMin float64
	SpotSanityMax float64
	MinVolSamples int
}

// Gateway is the single place the decision loop reads market data from. It
// fronts the live sources with the shared caches and applies the sanity
// bounds before anything reaches the model.
type Gateway struct {
	quotes    QuoteSource
	spot      SpotSource
	spotCache domain.SpotCache
	volCache  domain.VolCache
	cfg       Config
	logger    *slog.Logger
}

// NewGateway wires the live sources and caches together.
func NewGateway(quotes QuoteSource, spot SpotSource, spotCache domain.SpotCache, volCache domain.VolCache, cfg Config, logger *slog.Logger) *Gateway {
	return &Gateway{
		quotes:    quotes,
		spot:      spot,
		spotCache: spotCache,
		volCache:  volCache,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "marketdata")),
	}
}

// CurrentEvent returns the event settling at the top of the next hour.
func (g *Gateway) CurrentEvent(now time.Time) Event {
	return NextHourEvent(g.cfg.Series, g.cfg.Location, now)
}

// Spot returns a sanity-checked BTC spot price. The live source is preferred;
// when it fails or returns an implausible value the cached last-good price is
// used instead. With neither available the cycle cannot proceed and
// domain.ErrDataUnavailable is returned.
func (g *Gateway) Spot(ctx context.Context) (float64, error) {
	price, err := g.spot.SpotPrice(ctx)
	if err == nil && g.plausible(price) {
		if g.spotCache != nil {
			if cacheErr := g.spotCache.SetSpot(ctx, price); cacheErr != nil {
				g.logger.WarnContext(ctx, "spot cache write failed", slog.String("error", cacheErr.Error()))
			}
		}
		return price, nil
	}
	if err == nil {
		err = fmt.Errorf("spot %.2f outside sanity bounds [%.0f, %.0f]", price, g.cfg.SpotSanityMin, g.cfg.SpotSanityMax)
	}

	if g.spotCache != nil {
		cached, cacheErr := g.spotCache.GetSpot(ctx)
		if cacheErr == nil && g.plausible(cached) {
			g.logger.WarnContext(ctx, "using cached spot price",
				slog.Float64("spot", cached),
				slog.String("live_error", err.Error()),
			)
			return cached, nil
		}
	}

	return 0, fmt.Errorf("marketdata: spot: %w: %w", domain.ErrDataUnavailable, err)
}

// Quotes returns the event's markets sorted by strike ascending. Markets with
// no tradeable NO ask are filtered out before the model sees them.
func (g *Gateway) Quotes(ctx context.Context, eventTicker string) ([]domain.MarketQuote, error) {
	all, err := g.quotes.EventMarkets(ctx, eventTicker)
	if err != nil {
		return nil, fmt.Errorf("marketdata: quotes %s: %w: %w", eventTicker, domain.ErrDataUnavailable, err)
	}

	out := make([]domain.MarketQuote, 0, len(all))
	for _, q := range all {
		if q.Tradeable() {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strike < out[j].Strike })
	return out, nil
}

// Volatility returns the realized-vol estimate, requiring the minimum sample
// count before the model may trust it.
func (g *Gateway) Volatility(ctx context.Context) (domain.Volatility, error) {
	vol, err := g.volCache.GetVolatility(ctx)
	if err != nil {
		return domain.Volatility{}, fmt.Errorf("marketdata: volatility: %w: %w", domain.ErrDataUnavailable, err)
	}
	if vol.Samples < g.cfg.MinVolSamples {
		return domain.Volatility{}, fmt.Errorf("marketdata: volatility: %d of %d required samples: %w",
			vol.Samples, g.cfg.MinVolSamples, domain.ErrDataUnavailable)
	}
	return vol, nil
}

func (g *Gateway) plausible(price float64) bool {
	return price >= g.cfg.SpotSanityMin && price <= g.cfg.SpotSanityMax
}
