// Package marketdata assembles the inputs a decision cycle needs: the active
// hourly event, the BTC spot price, the strike ladder with its quotes, and
// the realized volatility estimate.
package marketdata

import (
	"strings"
	"time"
)

// Event identifies one hourly settlement window.
type Event struct {
	// Ticker is the exchange event ticker, e.g. "KXBTCD-25AUG2915".
	Ticker string
	// Expiry is the settlement instant: the top of the hour, UTC.
	Expiry time.Time
}

// MinutesLeft returns the minutes remaining until settlement.
func (e Event) MinutesLeft(now time.Time) float64 {
	return e.Expiry.Sub(now).Minutes()
}

// NextHourEvent derives the event settling at the top of the next hour. The
// exchange stamps event tickers with the local date and hour in its own
// timezone, uppercased month abbreviation: SERIES-YYMMMDDHH.
func NextHourEvent(series string, loc *time.Location, now time.Time) Event {
	expiry := now.Truncate(time.Hour).Add(time.Hour)
	local := expiry.In(loc)
	return Event{
		Ticker: series + "-" + strings.ToUpper(local.Format("06Jan0215")),
		Expiry: expiry.UTC(),
	}
}
