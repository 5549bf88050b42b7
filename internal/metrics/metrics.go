// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// FillsTotal counts committed fills by symbol and side.
var FillsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "coinpilot",
		Subsystem: "engine",
		Name:      "fills_total",
		Help:      "Total ledger fills committed",
	},
	[]string{"symbol", "side"},
)

// RejectionsTotal counts rejected order attempts by stage.
var RejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "coinpilot",
		Subsystem: "engine",
		Name:      "rejections_total",
		Help:      "Total order attempts rejected before execution",
	},
	[]string{"symbol", "stage"},
)

// CycleDuration observes the wall time of one full decision-loop pass.
var CycleDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "coinpilot",
		Subsystem: "engine",
		Name:      "cycle_duration_seconds",
		Help:      "Duration of one full symbol cycle",
		Buckets:   prometheus.DefBuckets,
	},
)

// Balance tracks the cash balance after the latest fill.
var Balance = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "coinpilot",
		Subsystem: "account",
		Name:      "balance",
		Help:      "Current cash balance",
	},
)

// OpenPositions tracks the count of open positions.
var OpenPositions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "coinpilot",
		Subsystem: "account",
		Name:      "open_positions",
		Help:      "Number of open positions",
	},
)

// RegimeState publishes the current regime per symbol (1 for the active
// regime label, 0 otherwise).
var RegimeState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "coinpilot",
		Subsystem: "regime",
		Name:      "state",
		Help:      "Active market regime per symbol",
	},
	[]string{"symbol", "regime"},
)

// RealizedPnL tracks cumulative realized PnL for the current UTC day.
var RealizedPnL = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "coinpilot",
		Subsystem: "risk",
		Name:      "daily_realized_pnl",
		Help:      "Realized PnL for the current UTC day",
	},
)
