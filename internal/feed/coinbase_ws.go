// Package feed streams the BTC reference price into the shared caches: each
// ticker print refreshes the last-good spot and extends the rolling sample
// window the volatility estimate is computed from.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// CoinbaseWSFeed subscribes to the Coinbase exchange ticker channel and
// writes every plausible print into the spot and volatility caches. It
// reconnects with a fixed backoff on disconnect.
type CoinbaseWSFeed struct {
	wsURL     string
	productID string
	spotCache domain.SpotCache
	volCache  domain.VolCache
	sanityMin float64
	sanityMax float64
	logger    *slog.Logger
}

// NewCoinbaseWSFeed creates the feed. Prints outside [sanityMin, sanityMax]
// are dropped before they can poison the caches.
func NewCoinbaseWSFeed(wsURL, productID string, spotCache domain.SpotCache, volCache domain.VolCache, sanityMin, sanityMax float64, logger *slog.Logger) *CoinbaseWSFeed {
	return &CoinbaseWSFeed{
		wsURL:     wsURL,
		productID: productID,
		spotCache: spotCache,
		volCache:  volCache,
		sanityMin: sanityMin,
		sanityMax: sanityMax,
		logger:    logger.With(slog.String("component", "coinbase_ws_feed")),
	}
}

// subscribeCmd is the Coinbase exchange websocket subscription message.
type subscribeCmd struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

// tickerMsg is the subset of the ticker channel payload the feed reads.
type tickerMsg struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Time      string `json:"time"`
}

// Run connects, subscribes, and pumps ticker prints into the caches until
// ctx is cancelled. Reconnects with backoff on disconnect.
func (f *CoinbaseWSFeed) Run(ctx context.Context) error {
	for {
		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			f.logger.Info("coinbase ws feed stopped")
			return ctx.Err()
		}
		f.logger.Warn("coinbase ws disconnected, reconnecting", slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (f *CoinbaseWSFeed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", f.wsURL, err)
	}
	defer conn.Close()

	sub := subscribeCmd{
		Type:       "subscribe",
		ProductIDs: []string{f.productID},
		Channels:   []string{"ticker"},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	f.logger.InfoContext(ctx, "coinbase ws subscribed", slog.String("product_id", f.productID))

	// Unblock ReadMessage on shutdown.
	go func() {
		<-ctx.Done()
		_ = conn.SetReadDeadline(time.Now())
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: read: %w", err)
		}

		var msg tickerMsg
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "ticker" {
			continue
		}
		f.handleTicker(ctx, msg)
	}
}

// handleTicker validates one print and writes it through to both caches.
func (f *CoinbaseWSFeed) handleTicker(ctx context.Context, msg tickerMsg) {
	price, err := strconv.ParseFloat(msg.Price, 64)
	if err != nil {
		f.logger.DebugContext(ctx, "unparseable ticker price", slog.String("price", msg.Price))
		return
	}
	if price < f.sanityMin || price > f.sanityMax {
		f.logger.WarnContext(ctx, "ticker price outside sanity bounds, dropped",
			slog.Float64("price", price),
		)
		return
	}

	ts := time.Now().UTC()
	if msg.Time != "" {
		if t, err := time.Parse(time.RFC3339Nano, msg.Time); err == nil {
			ts = t.UTC()
		}
	}

	if err := f.spotCache.SetSpot(ctx, price); err != nil {
		f.logger.WarnContext(ctx, "spot cache write failed", slog.String("error", err.Error()))
	}
	if err := f.volCache.AddSample(ctx, price, ts); err != nil {
		f.logger.WarnContext(ctx, "vol sample write failed", slog.String("error", err.Error()))
	}
}
