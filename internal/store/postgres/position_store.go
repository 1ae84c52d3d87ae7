package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL. Keys are
// (namespace, ticker); writes are upserts so an ADD replaces the row.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a PositionStore backed by the given pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

var _ domain.PositionStore = (*PositionStore)(nil)

// Put inserts or replaces the position under (namespace, ticker).
func (s *PositionStore) Put(ctx context.Context, ns domain.Namespace, p domain.Position) error {
	const query = `
		INSERT INTO positions (
			namespace, ticker, contracts, avg_price_cents,
			entry_edge, last_edge, strike, spot_at_entry,
			opened_at, expiry_time, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (namespace, ticker) DO UPDATE SET
			contracts       = EXCLUDED.contracts,
			avg_price_cents = EXCLUDED.avg_price_cents,
			entry_edge      = EXCLUDED.entry_edge,
			last_edge       = EXCLUDED.last_edge,
			strike          = EXCLUDED.strike,
			spot_at_entry   = EXCLUDED.spot_at_entry,
			opened_at       = EXCLUDED.opened_at,
			expiry_time     = EXCLUDED.expiry_time,
			updated_at      = NOW()`

	_, err := s.pool.Exec(ctx, query,
		string(ns), p.Ticker, p.Contracts, p.AvgPriceCents,
		p.EntryEdge, p.LastEdge, p.Strike, p.SpotAtEntry,
		p.OpenedAt, p.ExpiryTime,
	)
	if err != nil {
		return fmt.Errorf("postgres: put position %s/%s: %w", ns, p.Ticker, err)
	}
	return nil
}

// Delete removes the position under (namespace, ticker). Deleting a missing
// row is not an error.
func (s *PositionStore) Delete(ctx context.Context, ns domain.Namespace, ticker string) error {
	_, err := s.pool.Exec(ctx,
		"DELETE FROM positions WHERE namespace = $1 AND ticker = $2",
		string(ns), ticker,
	)
	if err != nil {
		return fmt.Errorf("postgres: delete position %s/%s: %w", ns, ticker, err)
	}
	return nil
}

// List returns all positions in the namespace.
func (s *PositionStore) List(ctx context.Context, ns domain.Namespace) ([]domain.Position, error) {
	const query = `
		SELECT ticker, contracts, avg_price_cents,
		       entry_edge, last_edge, strike, spot_at_entry,
		       opened_at, expiry_time
		FROM positions
		WHERE namespace = $1
		ORDER BY ticker`

	rows, err := s.pool.Query(ctx, query, string(ns))
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions %s: %w", ns, err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(
			&p.Ticker, &p.Contracts, &p.AvgPriceCents,
			&p.EntryEdge, &p.LastEdge, &p.Strike, &p.SpotAtEntry,
			&p.OpenedAt, &p.ExpiryTime,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list positions %s: %w", ns, err)
	}
	return positions, nil
}
