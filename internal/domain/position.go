package domain

import "time"

// Namespace isolates paper and live position/bankroll state. The two
// namespaces never share keys in the durable store and never read each
// other's records.
type Namespace string

const (
	NamespacePaper Namespace = "paper"
	NamespaceLive  Namespace = "live"
)

// Position is an open holding of NO contracts on a single market ticker.
// There is at most one Position per ticker within a namespace; avg price is
// the cost-weighted average across all fills.
type Position struct {
	Ticker        string
	Contracts     int
	AvgPriceCents float64
	EntryEdge     float64 // net edge at open, percentage points
	LastEdge      float64 // net edge at last refresh
	Strike        float64
	SpotAtEntry   float64
	OpenedAt      time.Time
	ExpiryTime    time.Time // settlement instant, fixed at open
}

// TotalCost returns the dollars committed to this position.
func (p Position) TotalCost() float64 {
	return float64(p.Contracts) * p.AvgPriceCents / 100
}

// PotentialProfit returns the dollars gained if the contract settles in our
// favor.
func (p Position) PotentialProfit() float64 {
	return float64(p.Contracts) * (100 - p.AvgPriceCents) / 100
}

// Expired reports whether the contract has already settled.
func (p Position) Expired(now time.Time) bool {
	return now.After(p.ExpiryTime)
}
