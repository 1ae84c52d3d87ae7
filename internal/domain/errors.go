package domain

import "errors"

var (
	// ErrNotFound is returned by stores and caches when a key has no record.
	ErrNotFound = errors.New("not found")

	// ErrDataUnavailable indicates market data (spot, volatility, quotes) is
	// missing, stale, or outside sane bounds. The decision loop skips the
	// whole cycle; nothing is mutated or persisted.
	ErrDataUnavailable = errors.New("market data unavailable")

	// ErrModelInput indicates degenerate inputs for a single strike
	// (non-positive volatility or time remaining). Only that strike is skipped.
	ErrModelInput = errors.New("invalid model input")

	// ErrPersistence indicates the durable store rejected a write. In the live
	// namespace this aborts the position mutation; in paper it is a warning.
	ErrPersistence = errors.New("persistence failure")

	// ErrOrderTimeout indicates a resting order was not filled within the
	// fill-wait window and was cancelled. Safe to re-evaluate next cycle.
	ErrOrderTimeout = errors.New("order timed out")

	// ErrOrderRejected indicates the broker refused the order outright.
	ErrOrderRejected = errors.New("order rejected")

	// ErrLiquidationUnconfirmed indicates a liquidation order was submitted but
	// the broker did not report it filled. The ledger entry must stay frozen
	// until an operator reconciles it.
	ErrLiquidationUnconfirmed = errors.New("liquidation fill unconfirmed")
)
