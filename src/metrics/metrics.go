// Package metrics holds the Prometheus collectors the trader updates while it
// runs. They are registered in init() and served at /metrics by the server
// package.
//
//   - tradelifecycle_orders_placed_total{mode,kind,side}
//   - tradelifecycle_orders_filled_total{mode,kind}
//   - tradelifecycle_orders_finished_total{mode,status}   canceled|expired
//   - tradelifecycle_positions_closed_total{mode,result}  win|loss|flat
//   - tradelifecycle_sync_pass_failures_total{pass}
//   - tradelifecycle_integrity_violations_total
//   - tradelifecycle_driver_tick_failures_total{stage}
//   - tradelifecycle_equity, tradelifecycle_open_position, tradelifecycle_pending_orders
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

var (
	ordersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradelifecycle_orders_placed_total",
			Help: "Orders placed through the fill engine",
		},
		[]string{"mode", "kind", "side"},
	)

	ordersFilled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradelifecycle_orders_filled_total",
			Help: "Orders filled",
		},
		[]string{"mode", "kind"},
	)

	ordersFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradelifecycle_orders_finished_total",
			Help: "Orders that left the working set without a fill",
		},
		[]string{"mode", "status"},
	)

	positionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradelifecycle_positions_closed_total",
			Help: "Closed positions by result",
		},
		[]string{"mode", "result"},
	)

	syncPassFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradelifecycle_sync_pass_failures_total",
			Help: "Reconciliation passes that returned an error",
		},
		[]string{"pass"},
	)

	// Anything above zero means the single-position rule was broken in the store.
	integrityViolations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tradelifecycle_integrity_violations_total",
			Help: "Data integrity violations detected",
		},
	)

	tickFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradelifecycle_driver_tick_failures_total",
			Help: "Driver loop stages that failed within a tick",
		},
		[]string{"stage"},
	)

	equity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradelifecycle_equity",
			Help: "Paper account equity in quote currency",
		},
	)

	openPosition = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradelifecycle_open_position",
			Help: "1 while a position is tracked, else 0",
		},
	)

	pendingOrders = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradelifecycle_pending_orders",
			Help: "Orders in the in-memory working set",
		},
	)
)

func init() {
	prometheus.MustRegister(ordersPlaced, ordersFilled, ordersFinished, positionsClosed)
	prometheus.MustRegister(syncPassFailures, integrityViolations, tickFailures)
	prometheus.MustRegister(equity, openPosition, pendingOrders)
}

func IncOrderPlaced(mode, kind, side string) { ordersPlaced.WithLabelValues(mode, kind, side).Inc() }
func IncOrderFilled(mode, kind string)       { ordersFilled.WithLabelValues(mode, kind).Inc() }
func IncOrderFinished(mode, status string)   { ordersFinished.WithLabelValues(mode, status).Inc() }
func IncSyncPassFailure(pass string)         { syncPassFailures.WithLabelValues(pass).Inc() }
func IncIntegrityViolation()                 { integrityViolations.Inc() }
func IncTickFailure(stage string)            { tickFailures.WithLabelValues(stage).Inc() }

// IncPositionClosed buckets the close by the sign of the realized pnl.
func IncPositionClosed(mode string, pnl decimal.Decimal) {
	result := "flat"
	switch {
	case pnl.IsPositive():
		result = "win"
	case pnl.IsNegative():
		result = "loss"
	}
	positionsClosed.WithLabelValues(mode, result).Inc()
}

func SetEquity(v decimal.Decimal) { equity.Set(v.InexactFloat64()) }

func SetOpenPosition(open bool) {
	if open {
		openPosition.Set(1)
		return
	}
	openPosition.Set(0)
}

func SetPendingOrders(n int) { pendingOrders.Set(float64(n)) }
