package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"
)

func TestNormCDFMatchesReference(t *testing.T) {
	// The rational-polynomial approximation should stay within ~1e-6 of the
	// exact CDF across the working range.
	norm := distuv.Normal{Mu: 0, Sigma: 1}
	for z := -5.5; z <= 5.5; z += 0.25 {
		got := NormCDF(z)
		want := norm.CDF(z)
		assert.InDeltaf(t, want, got, 1e-6, "z=%.2f", z)
	}
}

func TestNormCDFSaturates(t *testing.T) {
	assert.Equal(t, 0.0, NormCDF(-6.01))
	assert.Equal(t, 1.0, NormCDF(6.01))
	assert.Equal(t, 0.0, NormCDF(-50))
	assert.Equal(t, 1.0, NormCDF(50))
}

func TestFairProbabilityInvalidInputs(t *testing.T) {
	_, err := FairProbability(90000, 90500, 0, 15)
	assert.Error(t, err)

	_, err = FairProbability(90000, 90500, -0.1, 15)
	assert.Error(t, err)

	_, err = FairProbability(90000, 90500, 0.08, 0)
	assert.Error(t, err)
}

func TestFairProbabilitySaturatedExample(t *testing.T) {
	// spot=90000 strike=90500 vol=0.08 minutes=15: scaled vol is 0.08, the
	// strike sits ~6.94 standard deviations above spot, so the probability
	// saturates to exactly 1.
	p, err := FairProbability(90000, 90500, 0.08, 15)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p)
}

func TestFairProbabilityMonotonicInStrike(t *testing.T) {
	// Further above spot means safer: probability strictly increases with the
	// strike for fixed spot/vol/minutes.
	prev := -1.0
	for strike := 90050.0; strike <= 90400; strike += 50 {
		p, err := FairProbability(90000, strike, 0.30, 30)
		require.NoError(t, err)
		assert.Greaterf(t, p, prev, "strike=%.0f", strike)
		prev = p
	}
}

func TestFairProbabilityMonotonicInTime(t *testing.T) {
	// Less time left means less room for the price to cross a strike above
	// spot: probability increases as minutes decrease.
	prev := -1.0
	for minutes := 60.0; minutes >= 5; minutes -= 5 {
		p, err := FairProbability(90000, 90200, 0.30, minutes)
		require.NoError(t, err)
		assert.Greaterf(t, p, prev, "minutes=%.0f", minutes)
		prev = p
	}
}

func TestFairProbabilityAtTheMoney(t *testing.T) {
	// A strike exactly at spot is a coin flip.
	p, err := FairProbability(90000, 90000, 0.10, 15)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p, 1e-6)
	assert.False(t, math.IsNaN(p))
}
