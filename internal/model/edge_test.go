package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeePct(t *testing.T) {
	assert.InDelta(t, 1.4, FeePct(80), 1e-9)
	assert.InDelta(t, 0.7, FeePct(90), 1e-9)
	assert.InDelta(t, 3.5, FeePct(50), 1e-9)

	// Untradeable prices carry no fee.
	assert.Equal(t, 0.0, FeePct(0))
	assert.Equal(t, 0.0, FeePct(100))
	assert.Equal(t, 0.0, FeePct(-5))
}

func TestFeePctMonotonicallyDecreasingInAsk(t *testing.T) {
	prev := FeePct(1)
	for ask := 2.0; ask < 100; ask++ {
		cur := FeePct(ask)
		assert.Lessf(t, cur, prev, "ask=%.0f", ask)
		prev = cur
	}
}

func TestFeeCentsExample(t *testing.T) {
	// ceil(0.07 * 5 * 85 * 0.15) = ceil(5.3625) = 6 cents.
	assert.Equal(t, 6, FeeCents(5, 85))
	assert.Equal(t, 0, FeeCents(0, 85))
	assert.Equal(t, 0, FeeCents(5, 100))
}

func TestNetEdge(t *testing.T) {
	// Model 95% vs 85¢ ask: gross 10pp, fee 1.05pp.
	gross := GrossEdge(0.95, 85)
	assert.InDelta(t, 10.0, gross, 1e-9)
	assert.InDelta(t, gross-1.05, NetEdge(0.95, 85), 1e-9)

	// Net edge is always below gross for tradeable prices.
	for ask := 5.0; ask < 100; ask += 5 {
		assert.Less(t, NetEdge(0.9, ask), GrossEdge(0.9, ask))
	}
}
