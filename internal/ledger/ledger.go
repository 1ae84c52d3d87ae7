// Package ledger is the authoritative record of open positions. It keeps the
// in-memory working set and the durable copy in step: every contracts-mutating
// transition is persisted before it is considered committed, and startup
// reconciliation refuses to admit positions whose settlement window has
// already passed.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// Config holds the policy thresholds the ledger enforces.
type Config struct {
	// Namespace selects the durable key space (paper or live) and the
	// persistence-failure policy.
	Namespace domain.Namespace
	// EdgeIncreaseThreshold is the minimum net-edge improvement, in
	// percentage points over the position's last refresh, required before
	// adding to an existing position.
	EdgeIncreaseThreshold float64
	// ExitEdgePct flags a position for liquidation once its refreshed edge
	// falls to or below it.
	ExitEdgePct float64
}

// Ledger owns all position state for one namespace. The decision loop is the
// only writer, but the HTTP server reads exposure and snapshots from request
// goroutines, so every method takes the internal lock.
type Ledger struct {
	store  domain.PositionStore
	cfg    Config
	logger *slog.Logger

	mu        sync.RWMutex
	positions map[string]domain.Position
	frozen    map[string]bool // liquidation submitted but fill unconfirmed
}

// New creates an empty Ledger. Call Reconcile before first use so crash
// recovery runs against the durable store.
func New(store domain.PositionStore, cfg Config, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:     store,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "ledger"), slog.String("namespace", string(cfg.Namespace))),
		positions: make(map[string]domain.Position),
		frozen:    make(map[string]bool),
	}
}

// Reconcile reloads persisted positions for the namespace. Positions whose
// expiry has already passed are purged from the store and never admitted:
// they settled while the process was down and re-trading them would
// double-commit risk.
//
// In the live namespace a store failure here is fatal — trading without the
// persisted position state could duplicate positions. In paper the ledger
// starts empty with a warning.
func (l *Ledger) Reconcile(ctx context.Context) error {
	persisted, err := l.store.List(ctx, l.cfg.Namespace)
	if err != nil {
		if l.cfg.Namespace == domain.NamespaceLive {
			return fmt.Errorf("ledger: reconcile: %w", err)
		}
		l.logger.WarnContext(ctx, "reconcile: store unavailable, starting empty",
			slog.String("error", err.Error()),
		)
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now().UTC()
	loaded, expired := 0, 0
	for _, p := range persisted {
		if p.Expired(now) {
			expired++
			if delErr := l.store.Delete(ctx, l.cfg.Namespace, p.Ticker); delErr != nil {
				l.logger.WarnContext(ctx, "reconcile: purge expired position failed",
					slog.String("ticker", p.Ticker),
					slog.String("error", delErr.Error()),
				)
			}
			continue
		}
		l.positions[p.Ticker] = p
		loaded++
	}

	l.logger.InfoContext(ctx, "reconciled positions",
		slog.Int("loaded", loaded),
		slog.Int("purged_expired", expired),
	)
	return nil
}

// Has reports whether a position exists for the ticker.
func (l *Ledger) Has(ticker string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.positions[ticker]
	return ok
}

// Get returns the position for the ticker, if any.
func (l *Ledger) Get(ticker string) (domain.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.positions[ticker]
	return p, ok
}

// CanAdd reports whether adding to the ticker's position is permitted: the
// current net edge must have improved on the last refresh by at least the
// configured threshold. A missing position can always be opened. Frozen
// positions never accept adds.
func (l *Ledger) CanAdd(ticker string, currentEdge float64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.frozen[ticker] {
		return false
	}
	p, ok := l.positions[ticker]
	if !ok {
		return true
	}
	return currentEdge-p.LastEdge >= l.cfg.EdgeIncreaseThreshold
}

// Open records a new position after a confirmed OPEN fill. The durable write
// happens first; in the live namespace a store failure aborts the mutation
// so memory and store never disagree.
func (l *Ledger) Open(ctx context.Context, p domain.Position) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.positions[p.Ticker]; exists {
		return fmt.Errorf("ledger: open %s: position already exists", p.Ticker)
	}
	if err := l.persist(ctx, p); err != nil {
		return err
	}
	l.positions[p.Ticker] = p
	return nil
}

// Add applies a confirmed ADD fill: contracts increase and the average price
// is recomputed as the cost-weighted mean of all fills.
func (l *Ledger) Add(ctx context.Context, ticker string, contracts int, priceCents, edge float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.positions[ticker]
	if !ok {
		return fmt.Errorf("ledger: add %s: %w", ticker, domain.ErrNotFound)
	}

	total := p.Contracts + contracts
	totalCost := float64(p.Contracts)*p.AvgPriceCents + float64(contracts)*priceCents

	updated := p
	updated.Contracts = total
	updated.AvgPriceCents = totalCost / float64(total)
	updated.LastEdge = edge

	if err := l.persist(ctx, updated); err != nil {
		return err
	}
	l.positions[ticker] = updated
	return nil
}

// RefreshEdge updates the in-memory last-seen edge without touching the
// durable store. Contracts do not change, so skipping the write bounds
// persistence volume to actual trades.
func (l *Ledger) RefreshEdge(ticker string, edge float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.positions[ticker]; ok {
		p.LastEdge = edge
		l.positions[ticker] = p
	}
}

// Close removes a position after a confirmed LIQUIDATE fill and returns the
// removed record.
func (l *Ledger) Close(ctx context.Context, ticker string) (domain.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.positions[ticker]
	if !ok {
		return domain.Position{}, fmt.Errorf("ledger: close %s: %w", ticker, domain.ErrNotFound)
	}

	if err := l.store.Delete(ctx, l.cfg.Namespace, ticker); err != nil {
		if l.cfg.Namespace == domain.NamespaceLive {
			return domain.Position{}, fmt.Errorf("ledger: close %s: %w: %w", ticker, domain.ErrPersistence, err)
		}
		l.logger.WarnContext(ctx, "close: durable delete failed, removing from memory anyway",
			slog.String("ticker", ticker),
			slog.String("error", err.Error()),
		)
	}

	delete(l.positions, ticker)
	delete(l.frozen, ticker)
	return p, nil
}

// Freeze marks a position whose liquidation fill could not be confirmed. The
// entry stays in the ledger untouched and is excluded from further exit
// attempts and adds until an operator reconciles it.
func (l *Ledger) Freeze(ticker string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.positions[ticker]; ok {
		l.frozen[ticker] = true
	}
}

// Frozen reports whether the ticker is awaiting manual reconciliation.
func (l *Ledger) Frozen(ticker string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frozen[ticker]
}

// ShouldExit reports whether the position's refreshed edge has decayed to
// the exit floor. Frozen positions are never re-flagged.
func (l *Ledger) ShouldExit(p domain.Position) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.frozen[p.Ticker] {
		return false
	}
	return p.LastEdge <= l.cfg.ExitEdgePct
}

// Snapshot returns a copy of all positions, safe to iterate while the ledger
// is being mutated.
func (l *Ledger) Snapshot() []domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, p)
	}
	return out
}

// TotalExposure returns the dollars committed across all positions.
func (l *Ledger) TotalExposure() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var total float64
	for _, p := range l.positions {
		total += p.TotalCost()
	}
	return total
}

// TotalContracts returns the contract count across all positions.
func (l *Ledger) TotalContracts() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var total int
	for _, p := range l.positions {
		total += p.Contracts
	}
	return total
}

// Len returns the number of open positions.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.positions)
}

// persist writes the position durably, applying the namespace policy: live
// fails closed, paper degrades to a warning.
func (l *Ledger) persist(ctx context.Context, p domain.Position) error {
	err := l.store.Put(ctx, l.cfg.Namespace, p)
	if err == nil {
		return nil
	}
	if l.cfg.Namespace == domain.NamespaceLive {
		return fmt.Errorf("ledger: persist %s: %w: %w", p.Ticker, domain.ErrPersistence, err)
	}
	l.logger.WarnContext(ctx, "persist failed, continuing in-memory",
		slog.String("ticker", p.Ticker),
		slog.String("error", err.Error()),
	)
	return nil
}
