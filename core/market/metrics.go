package market

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ordersSubmitted *prometheus.CounterVec
	ordersRejected  *prometheus.CounterVec
	ordersExpired   prometheus.Counter
	ordersCancelled prometheus.Counter
	tradesTotal     prometheus.Counter
	tradeVolume     prometheus.Counter
	lastTradePrice  prometheus.Gauge
	bookDepth       *prometheus.GaugeVec
	clearingPrice   prometheus.Gauge
	clearedVolume   prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, prometheus.Counter, prometheus.Counter, prometheus.Counter, prometheus.Counter, prometheus.Gauge, *prometheus.GaugeVec, prometheus.Gauge, prometheus.Counter) {
	submitted := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_orders_submitted_total",
			Help: "Number of orders accepted into the book",
		},
		[]string{"side"},
	)
	rejected := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_orders_rejected_total",
			Help: "Number of submissions rejected at ingestion",
		},
		[]string{"reason"},
	)
	expired := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "market_orders_expired_total",
			Help: "Number of orders evicted by the expiry sweeper",
		},
	)
	cancelled := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "market_orders_cancelled_total",
			Help: "Number of orders cancelled by their owner",
		},
	)
	trades := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "market_trades_total",
			Help: "Number of continuous-mode trades",
		},
	)
	volume := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "market_trade_volume_kwh_total",
			Help: "Total traded energy in kWh",
		},
	)
	price := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_last_price",
			Help: "Last broadcast market price in euro/kWh",
		},
	)
	depth := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "market_book_depth",
			Help: "Number of resting orders per side",
		},
		[]string{"side"},
	)
	clearPrice := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_clearing_price",
			Help: "Uniform price of the last batch auction",
		},
	)
	clearVol := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "market_cleared_volume_kwh_total",
			Help: "Total energy cleared by batch auctions in kWh",
		},
	)
	return submitted, rejected, expired, cancelled, trades, volume, price, depth, clearPrice, clearVol
}

func init() {
	ordersSubmitted, ordersRejected, ordersExpired, ordersCancelled, tradesTotal, tradeVolume, lastTradePrice, bookDepth, clearingPrice, clearedVolume = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers market metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(ordersSubmitted, ordersRejected, ordersExpired, ordersCancelled,
		tradesTotal, tradeVolume, lastTradePrice, bookDepth, clearingPrice, clearedVolume)
}

// ResetMetrics reinitializes metric collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	ordersSubmitted, ordersRejected, ordersExpired, ordersCancelled, tradesTotal, tradeVolume, lastTradePrice, bookDepth, clearingPrice, clearedVolume = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
