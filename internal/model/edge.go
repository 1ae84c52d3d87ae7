package model

import "math"

// FeeRate is the exchange fee rate applied to the potential payout.
// The exact charge is ceil(FeeRate * contracts * price * (1 - price/100))
// cents per order.
const FeeRate = 0.07

// FeePct approximates the fee as a percentage of contract cost for a given
// ask price in cents. It is zero outside the tradeable range (0, 100).
//
// The per-contract fee is FeeRate * price * (1 - price/100) cents; dividing
// by the price and scaling to percent gives FeeRate * (1 - price/100) * 100.
// Cheap contracts therefore carry a proportionally larger fee: ~3.5% at 50¢
// versus ~0.7% at 90¢.
func FeePct(askCents float64) float64 {
	if askCents <= 0 || askCents >= 100 {
		return 0
	}
	return FeeRate * (1 - askCents/100) * 100
}

// FeeCents returns the exact exchange fee in cents for an order, rounded up
// per the fee schedule. This is what the journal records; decisions use the
// FeePct approximation.
func FeeCents(contracts int, askCents float64) int {
	if contracts <= 0 || askCents <= 0 || askCents >= 100 {
		return 0
	}
	return int(math.Ceil(FeeRate * float64(contracts) * askCents * (1 - askCents/100)))
}

// GrossEdge returns the raw edge in percentage points: the model probability
// minus the market-implied probability from the ask.
func GrossEdge(modelProb, askCents float64) float64 {
	return (modelProb - askCents/100) * 100
}

// NetEdge returns the edge after fees. All trading decisions use net edge;
// gross edge is kept for diagnostics only.
func NetEdge(modelProb, askCents float64) float64 {
	return GrossEdge(modelProb, askCents) - FeePct(askCents)
}
