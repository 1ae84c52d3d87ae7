// Package paper simulates the broker for dry-run trading. Orders fill
// immediately against the requested price, a running cash balance stands in
// for the real account, and the exchange fee schedule is applied so paper
// results stay comparable to live ones.
package paper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/alanyoungcy/kalshibot/internal/domain"
	"github.com/alanyoungcy/kalshibot/internal/model"
)

type holding struct {
	contracts     int
	avgPriceCents float64
}

// Broker is the simulated venue. It satisfies the executor's broker surface
// plus the balance and position queries the engine needs.
type Broker struct {
	mu       sync.Mutex
	balance  float64 // dollars
	holdings map[string]holding
	orders   map[string]domain.OrderStatus
	logger   *slog.Logger
}

// NewBroker creates a simulated account with the given starting balance in
// dollars.
func NewBroker(startingBalance float64, logger *slog.Logger) *Broker {
	return &Broker{
		balance:  startingBalance,
		holdings: make(map[string]holding),
		orders:   make(map[string]domain.OrderStatus),
		logger:   logger.With(slog.String("component", "paper_broker")),
	}
}

// CreateOrder fills buys at the limit price and sells at the position's cost
// basis (a market-price stand-in; paper mode exercises the decision path,
// not exit economics). A buy the balance cannot cover is rejected.
func (b *Broker) CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	orderID := uuid.New().String()

	if req.Action == domain.TradeActionLiquidate {
		return b.fillSell(ctx, orderID, req)
	}
	return b.fillBuy(ctx, orderID, req)
}

func (b *Broker) fillBuy(ctx context.Context, orderID string, req domain.OrderRequest) (domain.OrderResult, error) {
	if req.Market() {
		return domain.OrderResult{}, fmt.Errorf("paper: buy on %s: market entries not supported", req.Ticker)
	}

	cost := float64(req.Contracts)*req.PriceCents/100 + float64(model.FeeCents(req.Contracts, req.PriceCents))/100
	if cost > b.balance {
		b.orders[orderID] = domain.OrderStatusRejected
		b.logger.WarnContext(ctx, "buy rejected, insufficient balance",
			slog.String("ticker", req.Ticker),
			slog.Float64("cost", cost),
			slog.Float64("balance", b.balance),
		)
		return domain.OrderResult{OrderID: orderID, Status: domain.OrderStatusRejected}, nil
	}

	b.balance -= cost
	h := b.holdings[req.Ticker]
	total := h.contracts + req.Contracts
	h.avgPriceCents = (float64(h.contracts)*h.avgPriceCents + float64(req.Contracts)*req.PriceCents) / float64(total)
	h.contracts = total
	b.holdings[req.Ticker] = h
	b.orders[orderID] = domain.OrderStatusFilled

	b.logger.InfoContext(ctx, "paper buy filled",
		slog.String("ticker", req.Ticker),
		slog.Int("contracts", req.Contracts),
		slog.Float64("price_cents", req.PriceCents),
		slog.Float64("balance", b.balance),
	)
	return domain.OrderResult{OrderID: orderID, Status: domain.OrderStatusFilled}, nil
}

func (b *Broker) fillSell(ctx context.Context, orderID string, req domain.OrderRequest) (domain.OrderResult, error) {
	h, ok := b.holdings[req.Ticker]
	if !ok || h.contracts < req.Contracts {
		b.orders[orderID] = domain.OrderStatusRejected
		return domain.OrderResult{OrderID: orderID, Status: domain.OrderStatusRejected}, nil
	}

	price := req.PriceCents
	if req.Market() {
		price = h.avgPriceCents
	}
	proceeds := float64(req.Contracts) * price / 100
	b.balance += proceeds

	h.contracts -= req.Contracts
	if h.contracts == 0 {
		delete(b.holdings, req.Ticker)
	} else {
		b.holdings[req.Ticker] = h
	}
	b.orders[orderID] = domain.OrderStatusFilled

	b.logger.InfoContext(ctx, "paper sell filled",
		slog.String("ticker", req.Ticker),
		slog.Int("contracts", req.Contracts),
		slog.Float64("price_cents", price),
		slog.Float64("balance", b.balance),
	)
	return domain.OrderResult{OrderID: orderID, Status: domain.OrderStatusFilled}, nil
}

// GetOrder reports the simulated order's terminal status.
func (b *Broker) GetOrder(_ context.Context, orderID string) (domain.OrderStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	status, ok := b.orders[orderID]
	if !ok {
		return "", fmt.Errorf("paper: order %s: %w", orderID, domain.ErrNotFound)
	}
	return status, nil
}

// CancelOrder is a no-op success for known orders; simulated fills are
// immediate so there is never anything resting to cancel.
func (b *Broker) CancelOrder(_ context.Context, orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.orders[orderID]; !ok {
		return fmt.Errorf("paper: order %s: %w", orderID, domain.ErrNotFound)
	}
	return nil
}

// Balance returns the simulated cash balance in dollars.
func (b *Broker) Balance(_ context.Context) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance, nil
}

// Positions returns the simulated holdings.
func (b *Broker) Positions(_ context.Context) ([]domain.BrokerPosition, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.BrokerPosition, 0, len(b.holdings))
	for ticker, h := range b.holdings {
		out = append(out, domain.BrokerPosition{Ticker: ticker, Contracts: h.contracts})
	}
	return out, nil
}
