// Package model implements the pricing math for hourly binary contracts:
// the win-probability model, the fee-adjusted edge calculation, and the
// Kelly-bounded position sizer.
package model

import (
	"math"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// ReferenceWindowMinutes is the horizon the volatility estimate is measured
// over. The model rescales it to the time remaining before settlement.
const ReferenceWindowMinutes = 15.0

// FairProbability returns the model probability that the underlying settles
// below the strike, given the current spot, a per-window percentage
// volatility, and the minutes remaining until settlement.
//
// Volatility is projected onto the remaining horizon with a sqrt-of-time
// scaling, the strike distance is expressed in scaled standard deviations,
// and the result is the standard normal CDF of that distance.
func FairProbability(spot, strike, volStd float64, minutesLeft float64) (float64, error) {
	if volStd <= 0 || minutesLeft <= 0 {
		return 0, domain.ErrModelInput
	}

	volScaled := volStd * math.Sqrt(minutesLeft/ReferenceWindowMinutes)
	distPct := (strike - spot) / spot * 100
	stdDevs := distPct / volScaled

	return NormCDF(stdDevs), nil
}

// NormCDF evaluates the standard normal CDF using the Abramowitz & Stegun
// 26.2.17 rational-polynomial approximation (absolute error ~1e-7 on
// [-6, 6]). Outside that range the tails are saturated exactly.
func NormCDF(z float64) float64 {
	if z < -6 {
		return 0.0
	}
	if z > 6 {
		return 1.0
	}

	t := 1 / (1 + 0.2316419*math.Abs(z))
	d := 0.3989423 * math.Exp(-z*z/2)
	p := d * t * (0.3193815 + t*(-0.3565638+t*(1.781478+t*(-1.821256+t*1.330274))))

	if z > 0 {
		return 1 - p
	}
	return p
}
