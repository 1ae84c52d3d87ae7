// Package engine drives the decision loop: one single-threaded cycle that
// reads market state, scores every eligible strike, and turns edges into
// orders through the sizer, executor, and ledger. The next cycle never starts
// before the current one, including any fill wait, has finished — that is
// what keeps at most one in-flight order per ticker without locks.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/kalshibot/internal/domain"
	"github.com/alanyoungcy/kalshibot/internal/ledger"
	"github.com/alanyoungcy/kalshibot/internal/marketdata"
	"github.com/alanyoungcy/kalshibot/internal/metrics"
	"github.com/alanyoungcy/kalshibot/internal/model"
)

// MarketData supplies everything a cycle reads: the active event, spot,
// quotes, and volatility.
type MarketData interface {
	CurrentEvent(now time.Time) marketdata.Event
	Spot(ctx context.Context) (float64, error)
	Quotes(ctx context.Context, eventTicker string) ([]domain.MarketQuote, error)
	Volatility(ctx context.Context) (domain.Volatility, error)
}

// BalanceSource reports the bankroll in dollars. Live mode asks the broker;
// paper mode asks the simulated account.
type BalanceSource interface {
	Balance(ctx context.Context) (float64, error)
}

// OrderExecutor commits orders and blocks until a terminal outcome.
type OrderExecutor interface {
	Execute(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error)
}

// PositionLister exposes the broker's view of held positions, read once at
// startup to cross-check the ledger.
type PositionLister interface {
	Positions(ctx context.Context) ([]domain.BrokerPosition, error)
}

// Alerter pushes operator notifications. Implemented by notify.Notifier.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config holds the per-cycle policy knobs.
type Config struct {
	Namespace            domain.Namespace
	MinEdgePct           float64
	MaxExposureFraction  float64
	MaxSlippageCents     int
	TradingCutoffMinutes int
	RefreshInterval      time.Duration
}

// Engine owns one decision loop for one namespace.
type Engine struct {
	md       MarketData
	balances BalanceSource
	exec     OrderExecutor
	book     *ledger.Ledger
	sizer    *model.Sizer
	trades   domain.TradeStore
	alerts   Alerter
	stats    *metrics.Metrics
	cfg      Config
	logger   *slog.Logger
}

// New assembles an Engine. trades, alerts, and stats may be nil; the loop
// then runs without journaling, notifications, or instrumentation.
func New(md MarketData, balances BalanceSource, exec OrderExecutor, book *ledger.Ledger, sizer *model.Sizer, trades domain.TradeStore, alerts Alerter, stats *metrics.Metrics, cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		md:       md,
		balances: balances,
		exec:     exec,
		book:     book,
		sizer:    sizer,
		trades:   trades,
		alerts:   alerts,
		stats:    stats,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "engine"), slog.String("namespace", string(cfg.Namespace))),
	}
}

// Run executes cycles until ctx is cancelled. The current cycle always
// completes before shutdown; cancellation is only observed between cycles and
// inside the inter-cycle sleep.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.InfoContext(ctx, "decision loop starting",
		slog.Duration("refresh_interval", e.cfg.RefreshInterval),
		slog.Float64("min_edge_pct", e.cfg.MinEdgePct),
	)

	for {
		if err := e.RunCycle(ctx); err != nil {
			e.stats.RecordCycleError()
			e.logger.WarnContext(ctx, "cycle skipped", slog.String("error", err.Error()))
			if e.alerts != nil && !errors.Is(err, domain.ErrDataUnavailable) {
				_ = e.alerts.Notify(ctx, "error", "Cycle error", err.Error())
			}
		}

		if !e.sleep(ctx) {
			e.logger.Info("decision loop stopped")
			return ctx.Err()
		}
	}
}

// RunCycle performs exactly one scan: spot, volatility, quotes, the entry
// pass over the strike ladder, and the exit pass over held positions.
// Data-quality failures abort the cycle with no mutation.
func (e *Engine) RunCycle(ctx context.Context) error {
	now := time.Now().UTC()
	event := e.md.CurrentEvent(now)
	minutesLeft := event.MinutesLeft(now)

	spot, err := e.md.Spot(ctx)
	if err != nil {
		return err
	}
	vol, err := e.md.Volatility(ctx)
	if err != nil {
		return err
	}
	quotes, err := e.md.Quotes(ctx, event.Ticker)
	if err != nil {
		return err
	}
	if len(quotes) == 0 {
		return fmt.Errorf("engine: no tradeable quotes for %s: %w", event.Ticker, domain.ErrDataUnavailable)
	}
	balance, err := e.balances.Balance(ctx)
	if err != nil {
		return fmt.Errorf("engine: balance: %w: %w", domain.ErrDataUnavailable, err)
	}

	budget := balance*e.cfg.MaxExposureFraction - e.book.TotalExposure()
	entriesAllowed := minutesLeft > float64(e.cfg.TradingCutoffMinutes) && budget > 0

	trades := e.entryPass(ctx, event, quotes, spot, vol, minutesLeft, budget, entriesAllowed)
	exits := e.exitPass(ctx, event)

	e.stats.RecordCycle(e.book.Len(), e.book.TotalExposure(), spot, vol.Std)
	e.logger.InfoContext(ctx, "cycle complete",
		slog.String("event", event.Ticker),
		slog.Float64("spot", spot),
		slog.Float64("vol_std", vol.Std),
		slog.Float64("minutes_left", minutesLeft),
		slog.Float64("exposure", e.book.TotalExposure()),
		slog.Int("positions", e.book.Len()),
		slog.Int("entries", trades),
		slog.Int("exits", exits),
		slog.Bool("entries_allowed", entriesAllowed),
	)
	return nil
}

// entryPass walks strikes above spot in ascending order. Every held ticker
// gets its edge refreshed whether or not it trades, so the exit pass always
// sees current data.
func (e *Engine) entryPass(ctx context.Context, event marketdata.Event, quotes []domain.MarketQuote, spot float64, vol domain.Volatility, minutesLeft, budget float64, entriesAllowed bool) int {
	executed := 0
	for _, q := range quotes {
		if q.Strike <= spot {
			continue
		}

		prob, err := model.FairProbability(spot, q.Strike, vol.Std, minutesLeft)
		if err != nil {
			e.logger.DebugContext(ctx, "strike skipped on degenerate inputs",
				slog.String("ticker", q.Ticker),
				slog.String("error", err.Error()),
			)
			continue
		}
		netEdge := model.NetEdge(prob, q.NoAsk)

		held := e.book.Has(q.Ticker)
		if held {
			e.book.RefreshEdge(q.Ticker, netEdge)
		}

		if !entriesAllowed || netEdge < e.cfg.MinEdgePct {
			continue
		}
		if spread := q.Spread(); spread >= 0 && spread > float64(e.cfg.MaxSlippageCents) {
			e.logger.DebugContext(ctx, "strike skipped on slippage",
				slog.String("ticker", q.Ticker),
				slog.Float64("spread_cents", spread),
			)
			continue
		}
		if held && !e.book.CanAdd(q.Ticker, netEdge) {
			continue
		}

		contracts := e.sizer.Contracts(prob, q.NoAsk, budget)
		if contracts == 0 {
			continue
		}

		action := domain.TradeActionOpen
		if held {
			action = domain.TradeActionAdd
		}
		if e.placeEntry(ctx, event, q, action, contracts, prob, netEdge, spot) {
			executed++
			budget -= float64(contracts) * q.NoAsk / 100
		}
	}
	return executed
}

// placeEntry commits one entry order and, on a confirmed fill, applies the
// ledger mutation and journals the trade. Returns true when a fill landed.
func (e *Engine) placeEntry(ctx context.Context, event marketdata.Event, q domain.MarketQuote, action domain.TradeAction, contracts int, prob, netEdge, spot float64) bool {
	req := domain.OrderRequest{
		Ticker:     q.Ticker,
		Contracts:  contracts,
		PriceCents: q.NoAsk,
		Action:     action,
	}

	res, err := e.exec.Execute(ctx, req)
	if err != nil {
		e.stats.RecordOrder(string(action), orderResultLabel(err))
		e.logger.WarnContext(ctx, "entry order failed",
			slog.String("ticker", q.Ticker),
			slog.String("action", string(action)),
			slog.String("error", err.Error()),
		)
		return false
	}

	now := time.Now().UTC()
	switch action {
	case domain.TradeActionOpen:
		err = e.book.Open(ctx, domain.Position{
			Ticker:        q.Ticker,
			Contracts:     contracts,
			AvgPriceCents: q.NoAsk,
			EntryEdge:     netEdge,
			LastEdge:      netEdge,
			Strike:        q.Strike,
			SpotAtEntry:   spot,
			OpenedAt:      now,
			ExpiryTime:    event.Expiry,
		})
	case domain.TradeActionAdd:
		err = e.book.Add(ctx, q.Ticker, contracts, q.NoAsk, netEdge)
	}
	if err != nil {
		// The fill happened but the books could not record it. Fail-closed
		// namespaces surface this for manual reconciliation.
		e.logger.ErrorContext(ctx, "fill confirmed but ledger update failed",
			slog.String("ticker", q.Ticker),
			slog.String("order_id", res.OrderID),
			slog.String("error", err.Error()),
		)
		if e.alerts != nil {
			_ = e.alerts.Notify(ctx, "error", "Ledger update failed",
				fmt.Sprintf("%s %s x%d filled (order %s) but ledger write failed: %v", action, q.Ticker, contracts, res.OrderID, err))
		}
		return false
	}

	e.stats.RecordOrder(string(action), "filled")
	e.stats.RecordTrade(string(action))
	e.journal(ctx, domain.TradeRecord{
		ID:         uuid.New().String(),
		Namespace:  e.cfg.Namespace,
		Ticker:     q.Ticker,
		Action:     action,
		Contracts:  contracts,
		PriceCents: q.NoAsk,
		EdgePct:    netEdge,
		ModelProb:  prob,
		MarketProb: q.NoAsk / 100,
		Spot:       spot,
		Strike:     q.Strike,
		FeeCents:   model.FeeCents(contracts, q.NoAsk),
		OrderID:    res.OrderID,
		ExecutedAt: now,
	})

	e.logger.InfoContext(ctx, "position "+string(action)+"ed",
		slog.String("ticker", q.Ticker),
		slog.Int("contracts", contracts),
		slog.Float64("price_cents", q.NoAsk),
		slog.Float64("net_edge", netEdge),
		slog.Float64("model_prob", prob),
	)
	if e.alerts != nil {
		eventName := "position_opened"
		if action == domain.TradeActionAdd {
			eventName = "position_added"
		}
		_ = e.alerts.Notify(ctx, eventName, "Position "+string(action),
			fmt.Sprintf("%s: %d @ %.0f¢, edge %.1fpp", q.Ticker, contracts, q.NoAsk, netEdge))
	}
	return true
}

// exitPass liquidates every position whose edge has decayed to the floor. It
// iterates a snapshot so closes cannot invalidate the iteration. A
// liquidation that cannot be confirmed filled freezes the entry instead of
// clearing it.
func (e *Engine) exitPass(ctx context.Context, event marketdata.Event) int {
	closed := 0
	for _, p := range e.book.Snapshot() {
		if !e.book.ShouldExit(p) {
			continue
		}

		req := domain.OrderRequest{
			Ticker:    p.Ticker,
			Contracts: p.Contracts,
			Action:    domain.TradeActionLiquidate,
			// PriceCents zero: market order, immediate exit intent.
		}
		res, err := e.exec.Execute(ctx, req)
		if err != nil || res.Status != domain.OrderStatusFilled {
			e.freezeUnconfirmed(ctx, p, res, err)
			continue
		}

		if _, err := e.book.Close(ctx, p.Ticker); err != nil {
			e.logger.ErrorContext(ctx, "liquidation filled but ledger close failed",
				slog.String("ticker", p.Ticker),
				slog.String("error", err.Error()),
			)
			continue
		}
		closed++
		e.stats.RecordOrder(string(domain.TradeActionLiquidate), "filled")
		e.stats.RecordTrade(string(domain.TradeActionLiquidate))
		e.journal(ctx, domain.TradeRecord{
			ID:         uuid.New().String(),
			Namespace:  e.cfg.Namespace,
			Ticker:     p.Ticker,
			Action:     domain.TradeActionLiquidate,
			Contracts:  p.Contracts,
			PriceCents: p.AvgPriceCents,
			EdgePct:    p.LastEdge,
			Strike:     p.Strike,
			OrderID:    res.OrderID,
			ExecutedAt: time.Now().UTC(),
		})
		e.logger.InfoContext(ctx, "position liquidated",
			slog.String("ticker", p.Ticker),
			slog.Int("contracts", p.Contracts),
			slog.Float64("last_edge", p.LastEdge),
		)
		if e.alerts != nil {
			_ = e.alerts.Notify(ctx, "position_closed", "Position closed",
				fmt.Sprintf("%s: %d contracts, edge decayed to %.1fpp", p.Ticker, p.Contracts, p.LastEdge))
		}
	}
	return closed
}

// freezeUnconfirmed handles a liquidation whose fill could not be confirmed:
// the ledger entry stays, frozen, and an operator is paged. Clearing it on
// anything but an explicit fill would let the books diverge from the broker.
func (e *Engine) freezeUnconfirmed(ctx context.Context, p domain.Position, res domain.OrderResult, err error) {
	e.book.Freeze(p.Ticker)
	e.stats.RecordOrder(string(domain.TradeActionLiquidate), "unconfirmed")

	detail := string(res.Status)
	if err != nil {
		detail = err.Error()
	}
	e.logger.ErrorContext(ctx, "liquidation unconfirmed, position frozen",
		slog.String("ticker", p.Ticker),
		slog.String("detail", detail),
	)
	if e.alerts != nil {
		_ = e.alerts.Notify(ctx, "liquidation_unconfirmed", "Liquidation unconfirmed",
			fmt.Sprintf("%s: %s; manual reconciliation required", p.Ticker, detail))
	}
}

// VerifyBroker cross-checks the ledger against the broker's position list,
// logging discrepancies without fixing them. Run once at startup, live mode
// only.
func (e *Engine) VerifyBroker(ctx context.Context, broker PositionLister) error {
	remote, err := broker.Positions(ctx)
	if err != nil {
		return fmt.Errorf("engine: verify broker positions: %w", err)
	}

	byTicker := make(map[string]domain.BrokerPosition, len(remote))
	for _, bp := range remote {
		byTicker[bp.Ticker] = bp
	}

	for _, p := range e.book.Snapshot() {
		bp, ok := byTicker[p.Ticker]
		switch {
		case !ok:
			e.logger.WarnContext(ctx, "ledger position missing at broker",
				slog.String("ticker", p.Ticker),
				slog.Int("contracts", p.Contracts),
			)
		case bp.Contracts != p.Contracts:
			e.logger.WarnContext(ctx, "contract count mismatch with broker",
				slog.String("ticker", p.Ticker),
				slog.Int("ledger", p.Contracts),
				slog.Int("broker", bp.Contracts),
			)
		}
		delete(byTicker, p.Ticker)
	}
	for ticker, bp := range byTicker {
		e.logger.WarnContext(ctx, "broker position unknown to ledger",
			slog.String("ticker", ticker),
			slog.Int("contracts", bp.Contracts),
		)
	}
	return nil
}

// journal records a confirmed fill; journaling failures never block trading.
func (e *Engine) journal(ctx context.Context, rec domain.TradeRecord) {
	if e.trades == nil {
		return
	}
	if err := e.trades.Record(ctx, rec); err != nil {
		e.logger.WarnContext(ctx, "trade journal write failed",
			slog.String("ticker", rec.Ticker),
			slog.String("error", err.Error()),
		)
	}
}

// sleep waits one refresh interval in one-second increments so shutdown is
// observed promptly. Returns false when ctx was cancelled.
func (e *Engine) sleep(ctx context.Context) bool {
	remaining := e.cfg.RefreshInterval
	for remaining > 0 {
		step := time.Second
		if remaining < step {
			step = remaining
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(step):
			remaining -= step
		}
	}
	return true
}

// orderResultLabel maps executor failures onto metric labels.
func orderResultLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrOrderTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrOrderRejected):
		return "rejected"
	default:
		return "error"
	}
}
