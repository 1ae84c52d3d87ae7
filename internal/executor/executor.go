// Package executor owns the order lifecycle: submit, wait for the fill,
// cancel on timeout. It knows nothing about edges or sizing; callers hand it
// a fully-formed order request and get back a confirmed outcome.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// Broker is the interface through which the executor talks to the venue. It
// is implemented by the live exchange client and by the paper broker.
type Broker interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error)
	GetOrder(ctx context.Context, orderID string) (domain.OrderStatus, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// Config holds the fill-wait timing knobs.
type Config struct {
	// OrderTimeout bounds how long a resting order may wait for its fill.
	OrderTimeout time.Duration
	// PollInterval is the period between fill-status polls.
	PollInterval time.Duration
}

// Executor submits orders and blocks until each reaches a terminal outcome.
type Executor struct {
	broker Broker
	cfg    Config
	logger *slog.Logger
}

// New creates an Executor backed by the given broker.
func New(broker Broker, cfg Config, logger *slog.Logger) *Executor {
	return &Executor{
		broker: broker,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "executor")),
	}
}

// Execute submits the order and waits for a terminal outcome. It returns the
// filled result on success. A rejected order returns domain.ErrOrderRejected.
// An order that neither fills nor cancels within the timeout is cancelled
// best-effort and reported as domain.ErrOrderTimeout.
//
// Liquidations get no special handling here; the caller decides what an
// unconfirmed sell means for its books.
func (e *Executor) Execute(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	res, err := e.broker.CreateOrder(ctx, req)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("executor: submit %s: %w", req.Ticker, err)
	}

	e.logger.InfoContext(ctx, "order submitted",
		slog.String("ticker", req.Ticker),
		slog.String("order_id", res.OrderID),
		slog.String("action", string(req.Action)),
		slog.Int("contracts", req.Contracts),
		slog.Float64("price_cents", req.PriceCents),
		slog.String("status", string(res.Status)),
	)

	switch res.Status {
	case domain.OrderStatusFilled:
		return res, nil
	case domain.OrderStatusRejected, domain.OrderStatusCancelled:
		return domain.OrderResult{}, fmt.Errorf("executor: order %s on %s: %w", res.OrderID, req.Ticker, domain.ErrOrderRejected)
	}

	return e.waitForFill(ctx, req, res)
}

// waitForFill polls a resting order until it fills, dies, or times out.
func (e *Executor) waitForFill(ctx context.Context, req domain.OrderRequest, res domain.OrderResult) (domain.OrderResult, error) {
	deadline := time.NewTimer(e.cfg.OrderTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.cancel(req.Ticker, res.OrderID)
			return domain.OrderResult{}, fmt.Errorf("executor: wait for fill %s: %w", res.OrderID, ctx.Err())

		case <-deadline.C:
			e.cancel(req.Ticker, res.OrderID)
			e.logger.WarnContext(ctx, "order timed out",
				slog.String("ticker", req.Ticker),
				slog.String("order_id", res.OrderID),
				slog.Duration("timeout", e.cfg.OrderTimeout),
			)
			return domain.OrderResult{}, fmt.Errorf("executor: order %s on %s: %w", res.OrderID, req.Ticker, domain.ErrOrderTimeout)

		case <-ticker.C:
			status, err := e.broker.GetOrder(ctx, res.OrderID)
			if err != nil {
				// Transient poll failure; the deadline still bounds us.
				e.logger.WarnContext(ctx, "order status poll failed",
					slog.String("order_id", res.OrderID),
					slog.String("error", err.Error()),
				)
				continue
			}
			switch status {
			case domain.OrderStatusFilled:
				res.Status = domain.OrderStatusFilled
				e.logger.InfoContext(ctx, "order filled",
					slog.String("ticker", req.Ticker),
					slog.String("order_id", res.OrderID),
				)
				return res, nil
			case domain.OrderStatusRejected, domain.OrderStatusCancelled:
				return domain.OrderResult{}, fmt.Errorf("executor: order %s on %s became %s: %w", res.OrderID, req.Ticker, status, domain.ErrOrderRejected)
			}
		}
	}
}

// cancel issues a best-effort cancel. The order may have filled in the race;
// callers that care must treat the timeout as unconfirmed, not as a no-fill.
func (e *Executor) cancel(ticker, orderID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.broker.CancelOrder(ctx, orderID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		e.logger.Warn("order cancel failed",
			slog.String("ticker", ticker),
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}
}
