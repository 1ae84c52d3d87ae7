package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by the given pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

var _ domain.TradeStore = (*TradeStore)(nil)

// Record appends one confirmed fill to the journal.
func (s *TradeStore) Record(ctx context.Context, rec domain.TradeRecord) error {
	const query = `
		INSERT INTO trades (
			id, namespace, ticker, action, contracts, price_cents,
			edge_pct, model_prob, market_prob, spot, strike,
			fee_cents, order_id, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, string(rec.Namespace), rec.Ticker, string(rec.Action),
		rec.Contracts, rec.PriceCents,
		rec.EdgePct, rec.ModelProb, rec.MarketProb, rec.Spot, rec.Strike,
		rec.FeeCents, rec.OrderID, rec.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record trade %s: %w", rec.ID, err)
	}
	return nil
}

// ListBefore returns all trades in the namespace executed before cutoff,
// oldest first.
func (s *TradeStore) ListBefore(ctx context.Context, ns domain.Namespace, cutoff time.Time) ([]domain.TradeRecord, error) {
	const query = `
		SELECT id, ticker, action, contracts, price_cents,
		       edge_pct, model_prob, market_prob, spot, strike,
		       fee_cents, order_id, executed_at
		FROM trades
		WHERE namespace = $1 AND executed_at < $2
		ORDER BY executed_at`

	rows, err := s.pool.Query(ctx, query, string(ns), cutoff)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades %s: %w", ns, err)
	}
	defer rows.Close()

	var trades []domain.TradeRecord
	for rows.Next() {
		rec := domain.TradeRecord{Namespace: ns}
		var action string
		if err := rows.Scan(
			&rec.ID, &rec.Ticker, &action, &rec.Contracts, &rec.PriceCents,
			&rec.EdgePct, &rec.ModelProb, &rec.MarketProb, &rec.Spot, &rec.Strike,
			&rec.FeeCents, &rec.OrderID, &rec.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		rec.Action = domain.TradeAction(action)
		trades = append(trades, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list trades %s: %w", ns, err)
	}
	return trades, nil
}

// DeleteBefore removes journal rows older than cutoff and returns how many
// went away. Used after a successful archive upload.
func (s *TradeStore) DeleteBefore(ctx context.Context, ns domain.Namespace, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM trades WHERE namespace = $1 AND executed_at < $2",
		string(ns), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete trades %s: %w", ns, err)
	}
	return tag.RowsAffected(), nil
}
