package marketdata

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

type fakeQuoteSource struct {
	quotes []domain.MarketQuote
	err    error
}

func (f *fakeQuoteSource) EventMarkets(_ context.Context, _ string) ([]domain.MarketQuote, error) {
	return f.quotes, f.err
}

type fakeSpotSource struct {
	price float64
	err   error
}

func (f *fakeSpotSource) SpotPrice(_ context.Context) (float64, error) {
	return f.price, f.err
}

type fakeSpotCache struct {
	price  float64
	getErr error
	sets   []float64
}

func (f *fakeSpotCache) SetSpot(_ context.Context, price float64) error {
	f.sets = append(f.sets, price)
	return nil
}

func (f *fakeSpotCache) GetSpot(_ context.Context) (float64, error) {
	return f.price, f.getErr
}

type fakeVolCache struct {
	vol domain.Volatility
	err error
}

func (f *fakeVolCache) AddSample(_ context.Context, _ float64, _ time.Time) error { return nil }
func (f *fakeVolCache) GetVolatility(_ context.Context) (domain.Volatility, error) {
	return f.vol, f.err
}

func newTestGateway(q QuoteSource, s SpotSource, sc domain.SpotCache, vc domain.VolCache) *Gateway {
	return NewGateway(q, s, sc, vc, Config{
		Series:        "KXBTCD",
		Location:      time.UTC,
		SpotSanityMin: 10_000,
		SpotSanityMax: 500_000,
		MinVolSamples: 10,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSpotLiveAndCached(t *testing.T) {
	cache := &fakeSpotCache{}
	g := newTestGateway(nil, &fakeSpotSource{price: 90_000}, cache, nil)

	price, err := g.Spot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 90_000.0, price)
	assert.Equal(t, []float64{90_000}, cache.sets, "good live reads refresh the cache")
}

func TestSpotFallsBackToCache(t *testing.T) {
	cache := &fakeSpotCache{price: 91_234}
	g := newTestGateway(nil, &fakeSpotSource{err: errors.New("down")}, cache, nil)

	price, err := g.Spot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 91_234.0, price)
}

func TestSpotRejectsImplausibleLiveValue(t *testing.T) {
	cache := &fakeSpotCache{price: 91_234}
	g := newTestGateway(nil, &fakeSpotSource{price: 12.5}, cache, nil)

	// A $12.50 BTC print is garbage; the cached value wins.
	price, err := g.Spot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 91_234.0, price)
	assert.Empty(t, cache.sets)
}

func TestSpotUnavailableEverywhere(t *testing.T) {
	cache := &fakeSpotCache{getErr: errors.New("cache miss")}
	g := newTestGateway(nil, &fakeSpotSource{err: errors.New("down")}, cache, nil)

	_, err := g.Spot(context.Background())
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestQuotesSortedAndFiltered(t *testing.T) {
	q := &fakeQuoteSource{quotes: []domain.MarketQuote{
		{Ticker: "C", Strike: 90_750, NoAsk: 70},
		{Ticker: "DEAD", Strike: 90_250, NoAsk: 0},    // no ask
		{Ticker: "FULL", Strike: 91_000, NoAsk: 100},  // priced at certainty
		{Ticker: "A", Strike: 90_250, NoAsk: 92, NoBid: 90},
		{Ticker: "B", Strike: 90_500, NoAsk: 85},
	}}
	g := newTestGateway(q, nil, nil, nil)

	quotes, err := g.Quotes(context.Background(), "KXBTCD-25AUG2915")
	require.NoError(t, err)
	require.Len(t, quotes, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{quotes[0].Ticker, quotes[1].Ticker, quotes[2].Ticker})
}

func TestQuotesSourceFailure(t *testing.T) {
	g := newTestGateway(&fakeQuoteSource{err: errors.New("api down")}, nil, nil, nil)
	_, err := g.Quotes(context.Background(), "KXBTCD-25AUG2915")
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestVolatilityRequiresSamples(t *testing.T) {
	g := newTestGateway(nil, nil, nil, &fakeVolCache{vol: domain.Volatility{Std: 0.08, Samples: 9}})
	_, err := g.Volatility(context.Background())
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)

	g = newTestGateway(nil, nil, nil, &fakeVolCache{vol: domain.Volatility{Std: 0.08, Samples: 10}})
	vol, err := g.Volatility(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.08, vol.Std)
}
