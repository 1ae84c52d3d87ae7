package model

import "math"

// SizerConfig bounds the Kelly position sizer.
type SizerConfig struct {
	// KellyCap caps the Kelly fraction below its theoretical optimum.
	KellyCap float64
	// MaxContracts is the hard per-trade contract limit.
	MaxContracts int
}

// Sizer converts a win probability, an ask price, and a dollar budget into a
// bounded contract count.
type Sizer struct {
	cfg SizerConfig
}

// NewSizer creates a Sizer with the given bounds.
func NewSizer(cfg SizerConfig) *Sizer {
	return &Sizer{cfg: cfg}
}

// Contracts returns the number of contracts to buy. The count never implies
// a cost above budgetDollars and never exceeds MaxContracts; zero means no
// trade.
func (s *Sizer) Contracts(winProb, askCents, budgetDollars float64) int {
	if askCents <= 0 || askCents >= 100 || budgetDollars <= 0 {
		return 0
	}

	// Payoff odds: win (100 - ask) against risking ask.
	b := (100 - askCents) / askCents
	p := winProb
	q := 1 - p

	kelly := (b*p - q) / b
	kelly = math.Max(0, math.Min(kelly, s.cfg.KellyCap))

	wager := budgetDollars * kelly
	contracts := int(wager / (askCents / 100))

	if contracts > s.cfg.MaxContracts {
		contracts = s.cfg.MaxContracts
	}
	return contracts
}
