package domain

import "time"

// TradeRecord is one confirmed fill in the journal. Only filled orders are
// recorded; resting, cancelled, and rejected orders never reach the journal.
type TradeRecord struct {
	ID         string
	Namespace  Namespace
	Ticker     string
	Action     TradeAction
	Contracts  int
	PriceCents float64
	EdgePct    float64 // net edge at execution
	ModelProb  float64
	MarketProb float64
	Spot       float64
	Strike     float64
	FeeCents   int
	OrderID    string
	ExecutedAt time.Time
}

// CostCents returns the total contract cost of the fill, excluding fees.
func (t TradeRecord) CostCents() float64 {
	return float64(t.Contracts) * t.PriceCents
}
