package executor

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

// scriptedBroker returns a fixed submit result and then a sequence of poll
// statuses, recording cancels.
type scriptedBroker struct {
	submitRes  domain.OrderResult
	submitErr  error
	pollSeq    []domain.OrderStatus
	pollIdx    int
	pollErr    error
	cancelled  []string
	cancelErr  error
}

func (b *scriptedBroker) CreateOrder(_ context.Context, _ domain.OrderRequest) (domain.OrderResult, error) {
	return b.submitRes, b.submitErr
}

func (b *scriptedBroker) GetOrder(_ context.Context, _ string) (domain.OrderStatus, error) {
	if b.pollErr != nil {
		return "", b.pollErr
	}
	if b.pollIdx >= len(b.pollSeq) {
		return domain.OrderStatusResting, nil
	}
	s := b.pollSeq[b.pollIdx]
	b.pollIdx++
	return s, nil
}

func (b *scriptedBroker) CancelOrder(_ context.Context, orderID string) error {
	b.cancelled = append(b.cancelled, orderID)
	return b.cancelErr
}

func newTestExecutor(b Broker) *Executor {
	return New(b, Config{
		OrderTimeout: 50 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testRequest() domain.OrderRequest {
	return domain.OrderRequest{
		Ticker:     "KXBTCD-25AUG2915-T90499.99",
		Contracts:  3,
		PriceCents: 85,
		Action:     domain.TradeActionOpen,
	}
}

func TestExecuteImmediateFill(t *testing.T) {
	b := &scriptedBroker{
		submitRes: domain.OrderResult{OrderID: "ord-1", Status: domain.OrderStatusFilled},
	}
	res, err := newTestExecutor(b).Execute(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "ord-1", res.OrderID)
	assert.Equal(t, domain.OrderStatusFilled, res.Status)
	assert.Empty(t, b.cancelled)
}

func TestExecuteRestingThenFilled(t *testing.T) {
	b := &scriptedBroker{
		submitRes: domain.OrderResult{OrderID: "ord-2", Status: domain.OrderStatusResting},
		pollSeq: []domain.OrderStatus{
			domain.OrderStatusResting,
			domain.OrderStatusResting,
			domain.OrderStatusFilled,
		},
	}
	res, err := newTestExecutor(b).Execute(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFilled, res.Status)
	assert.Empty(t, b.cancelled)
}

func TestExecuteRejectedOnSubmit(t *testing.T) {
	b := &scriptedBroker{
		submitRes: domain.OrderResult{OrderID: "ord-3", Status: domain.OrderStatusRejected},
	}
	_, err := newTestExecutor(b).Execute(context.Background(), testRequest())
	assert.ErrorIs(t, err, domain.ErrOrderRejected)
}

func TestExecuteCancelledWhileResting(t *testing.T) {
	b := &scriptedBroker{
		submitRes: domain.OrderResult{OrderID: "ord-4", Status: domain.OrderStatusResting},
		pollSeq:   []domain.OrderStatus{domain.OrderStatusCancelled},
	}
	_, err := newTestExecutor(b).Execute(context.Background(), testRequest())
	assert.ErrorIs(t, err, domain.ErrOrderRejected)
}

func TestExecuteTimeoutCancelsOrder(t *testing.T) {
	b := &scriptedBroker{
		submitRes: domain.OrderResult{OrderID: "ord-5", Status: domain.OrderStatusResting},
		// Never fills.
	}
	_, err := newTestExecutor(b).Execute(context.Background(), testRequest())
	assert.ErrorIs(t, err, domain.ErrOrderTimeout)
	assert.Equal(t, []string{"ord-5"}, b.cancelled)
}

func TestExecuteTimeoutWithFailingCancel(t *testing.T) {
	b := &scriptedBroker{
		submitRes: domain.OrderResult{OrderID: "ord-6", Status: domain.OrderStatusResting},
		cancelErr: errors.New("venue unavailable"),
	}
	// Cancel is best-effort; the timeout error still comes back.
	_, err := newTestExecutor(b).Execute(context.Background(), testRequest())
	assert.ErrorIs(t, err, domain.ErrOrderTimeout)
}

func TestExecutePollErrorsAreTransient(t *testing.T) {
	b := &scriptedBroker{
		submitRes: domain.OrderResult{OrderID: "ord-7", Status: domain.OrderStatusResting},
		pollErr:   errors.New("flaky"),
	}
	// Poll failures never surface directly; the deadline converts them into a
	// timeout.
	_, err := newTestExecutor(b).Execute(context.Background(), testRequest())
	assert.ErrorIs(t, err, domain.ErrOrderTimeout)
}

func TestExecuteSubmitError(t *testing.T) {
	b := &scriptedBroker{submitErr: errors.New("insufficient balance")}
	_, err := newTestExecutor(b).Execute(context.Background(), testRequest())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrOrderTimeout)
}

func TestExecuteContextCancelled(t *testing.T) {
	b := &scriptedBroker{
		submitRes: domain.OrderResult{OrderID: "ord-8", Status: domain.OrderStatusResting},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestExecutor(b).Execute(ctx, testRequest())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"ord-8"}, b.cancelled)
}
