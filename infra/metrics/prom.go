package metrics

import (
	"time"

	coremetrics "github.com/cnergy/cnergy/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records market activity in Prometheus metrics.
type PromSink struct {
	trades    *prometheus.CounterVec
	volume    *prometheus.CounterVec
	orderFlow *prometheus.CounterVec
	price     prometheus.Gauge
}

// NewPromSink registers market metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(cfg coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	trades := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "market_sink_trades_total",
		Help: "Total number of recorded trades",
	}, []string{"buy_owner", "sell_owner"})
	volume := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "market_sink_trade_volume_kwh",
		Help: "Traded energy recorded per counterparty pair",
	}, []string{"buy_owner", "sell_owner"})
	orderFlow := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "market_sink_order_flow_total",
		Help: "Order lifecycle transitions per owner",
	}, []string{"owner", "side", "action"})
	price := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "market_sink_price",
		Help: "Last recorded market price in euro/kWh",
	})

	if err := reg.Register(trades); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			trades = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(volume); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			volume = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(orderFlow); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			orderFlow = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(price); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			price = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}

	return &PromSink{trades: trades, volume: volume, orderFlow: orderFlow, price: price}, nil
}

// RecordTrades increments the counters for each completed match.
func (s *PromSink) RecordTrades(recs []coremetrics.TradeRecord) error {
	for _, r := range recs {
		s.trades.WithLabelValues(r.BuyOwner, r.SellOwner).Inc()
		s.volume.WithLabelValues(r.BuyOwner, r.SellOwner).Add(r.Qty)
	}
	return nil
}

// RecordOrderFlow counts one order lifecycle transition.
func (s *PromSink) RecordOrderFlow(rec coremetrics.OrderFlowRecord) error {
	s.orderFlow.WithLabelValues(rec.Owner, rec.Side.String(), rec.Action).Inc()
	return nil
}

// RecordPrice sets the price gauge.
func (s *PromSink) RecordPrice(price float64, _ int64, _ time.Time) error {
	s.price.Set(price)
	return nil
}
