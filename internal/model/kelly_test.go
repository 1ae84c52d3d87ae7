package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestSizer() *Sizer {
	return NewSizer(SizerConfig{KellyCap: 0.25, MaxContracts: 10})
}

func TestContractsNeverExceedsBudget(t *testing.T) {
	s := newTestSizer()
	for _, budget := range []float64{0.5, 1, 5, 20, 100, 1000} {
		for ask := 5.0; ask < 100; ask += 5 {
			n := s.Contracts(0.95, ask, budget)
			cost := float64(n) * ask / 100
			assert.LessOrEqualf(t, cost, budget, "budget=%.2f ask=%.0f", budget, ask)
		}
	}
}

func TestContractsCappedPerTrade(t *testing.T) {
	s := newTestSizer()
	// Huge bankroll and a near-certain win must still respect the cap.
	assert.LessOrEqual(t, s.Contracts(0.99, 50, 1_000_000), 10)
}

func TestContractsZeroOnDegenerateInputs(t *testing.T) {
	s := newTestSizer()
	assert.Equal(t, 0, s.Contracts(0.95, 0, 100))
	assert.Equal(t, 0, s.Contracts(0.95, 100, 100))
	assert.Equal(t, 0, s.Contracts(0.95, 50, 0))
	assert.Equal(t, 0, s.Contracts(0.95, 50, -10))
}

func TestContractsZeroWhenNoEdge(t *testing.T) {
	s := newTestSizer()
	// Win probability at or below the market-implied probability gives a
	// non-positive Kelly fraction.
	assert.Equal(t, 0, s.Contracts(0.80, 80, 100))
	assert.Equal(t, 0, s.Contracts(0.50, 80, 100))
}

func TestContractsQuarterKelly(t *testing.T) {
	s := newTestSizer()
	// p=0.95 at 85¢: b=15/85, kelly=(b*0.95-0.05)/b ≈ 0.6667, capped at 0.25.
	// Wager = 100*0.25 = $25 → floor(25/0.85) = 29 → capped at 10.
	assert.Equal(t, 10, s.Contracts(0.95, 85, 100))

	// Small budget: wager = 5*0.25 = $1.25 → floor(1.25/0.85) = 1.
	assert.Equal(t, 1, s.Contracts(0.95, 85, 5))
}
