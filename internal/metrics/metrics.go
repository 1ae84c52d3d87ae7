// Package metrics exposes the bot's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the bot registers. A nil *Metrics is valid
// and turns all recording into no-ops, so instrumentation stays optional in
// tests.
type Metrics struct {
	CyclesTotal      prometheus.Counter
	CycleErrorsTotal prometheus.Counter
	OrdersTotal      *prometheus.CounterVec
	TradesTotal      *prometheus.CounterVec
	OpenPositions    prometheus.Gauge
	ExposureDollars  prometheus.Gauge
	SpotPrice        prometheus.Gauge
	VolatilityStd    prometheus.Gauge
}

// New creates and registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kalshibot",
			Name:      "decision_cycles_total",
			Help:      "Completed decision cycles.",
		}),
		CycleErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kalshibot",
			Name:      "decision_cycle_errors_total",
			Help:      "Decision cycles skipped or aborted on error.",
		}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kalshibot",
			Name:      "orders_total",
			Help:      "Order outcomes by action and result.",
		}, []string{"action", "result"}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kalshibot",
			Name:      "trades_total",
			Help:      "Confirmed fills by action.",
		}, []string{"action"}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kalshibot",
			Name:      "open_positions",
			Help:      "Positions currently held.",
		}),
		ExposureDollars: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kalshibot",
			Name:      "exposure_dollars",
			Help:      "Dollars committed across open positions.",
		}),
		SpotPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kalshibot",
			Name:      "spot_price_usd",
			Help:      "Last sanity-checked BTC spot price.",
		}),
		VolatilityStd: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kalshibot",
			Name:      "volatility_std_pct",
			Help:      "Realized per-window volatility, percent.",
		}),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.CycleErrorsTotal,
		m.OrdersTotal,
		m.TradesTotal,
		m.OpenPositions,
		m.ExposureDollars,
		m.SpotPrice,
		m.VolatilityStd,
	)
	return m
}

// RecordCycle bumps the cycle counter and refreshes the state gauges.
func (m *Metrics) RecordCycle(positions int, exposure, spot, vol float64) {
	if m == nil {
		return
	}
	m.CyclesTotal.Inc()
	m.OpenPositions.Set(float64(positions))
	m.ExposureDollars.Set(exposure)
	m.SpotPrice.Set(spot)
	m.VolatilityStd.Set(vol)
}

// RecordCycleError counts a cycle that could not run to completion.
func (m *Metrics) RecordCycleError() {
	if m == nil {
		return
	}
	m.CycleErrorsTotal.Inc()
}

// RecordOrder counts one order outcome.
func (m *Metrics) RecordOrder(action, result string) {
	if m == nil {
		return
	}
	m.OrdersTotal.WithLabelValues(action, result).Inc()
}

// RecordTrade counts one confirmed fill.
func (m *Metrics) RecordTrade(action string) {
	if m == nil {
		return
	}
	m.TradesTotal.WithLabelValues(action).Inc()
}
