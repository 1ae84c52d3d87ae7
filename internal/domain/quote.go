package domain

import "time"

// MarketQuote is a validated top-of-book snapshot for one strike of the
// active settlement window. NoAsk must be in (0, 100) for the market to be
// tradeable; NoBid may be zero when the book has no bid.
type MarketQuote struct {
	Ticker    string
	Strike    float64
	NoBid     float64
	NoAsk     float64
	SampledAt time.Time
}

// Tradeable reports whether the quote has a usable ask.
func (q MarketQuote) Tradeable() bool {
	return q.NoAsk > 0 && q.NoAsk < 100
}

// Spread returns the bid-ask spread in cents, or -1 when there is no bid to
// measure against.
func (q MarketQuote) Spread() float64 {
	if q.NoBid <= 0 {
		return -1
	}
	return q.NoAsk - q.NoBid
}

// Volatility is a rolling estimate of per-window percentage price movement.
type Volatility struct {
	Std     float64 // standard deviation of percent returns over the window
	Samples int     // number of samples backing the estimate
}
