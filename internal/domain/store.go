package domain

import (
	"context"
	"time"
)

// PositionStore is the durable copy of the position ledger, keyed by
// (namespace, ticker). It is the crash-recovery boundary: a mutation is only
// committed once the store accepted it.
type PositionStore interface {
	// Put inserts or replaces the position for (ns, p.Ticker).
	Put(ctx context.Context, ns Namespace, p Position) error
	// Delete removes the position for (ns, ticker). Deleting a missing row is
	// not an error.
	Delete(ctx context.Context, ns Namespace, ticker string) error
	// List returns every persisted position in the namespace.
	List(ctx context.Context, ns Namespace) ([]Position, error)
}

// TradeStore is the append-only journal of confirmed fills.
type TradeStore interface {
	Record(ctx context.Context, t TradeRecord) error
	// ListBefore returns journal rows executed strictly before the cutoff,
	// used by the archiver.
	ListBefore(ctx context.Context, ns Namespace, before time.Time) ([]TradeRecord, error)
	// DeleteBefore removes journal rows executed strictly before the cutoff.
	// Called only after the archive upload has been verified.
	DeleteBefore(ctx context.Context, ns Namespace, before time.Time) (int64, error)
}

// SpotCache holds the most recent spot price observed by the price feed.
type SpotCache interface {
	SetSpot(ctx context.Context, price float64) error
	// GetSpot returns the cached price, or ErrNotFound when the cache is
	// empty or the entry is too stale to trade on.
	GetSpot(ctx context.Context) (float64, error)
}

// VolCache holds the rolling spot-sample window the volatility estimate is
// computed from.
type VolCache interface {
	AddSample(ctx context.Context, price float64, ts time.Time) error
	GetVolatility(ctx context.Context) (Volatility, error)
}

// BlobWriter uploads a blob to object storage.
type BlobWriter interface {
	Write(ctx context.Context, key string, data []byte, contentType string) error
}
