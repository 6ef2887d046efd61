package sim

import (
	"context"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/cnergy/cnergy/core/events"
	"github.com/cnergy/cnergy/core/logger"
	"github.com/cnergy/cnergy/core/market"
)

// Dashboard is the headless market monitor. It follows the observer bus and
// periodically logs trade throughput and summary statistics over the recent
// price series.
type Dashboard struct {
	fan    *market.Fanout
	log    logger.Logger
	period time.Duration

	trades int
	volume float64
	prices []float64
}

// NewDashboard creates the monitor. period controls how often the summary is
// logged.
func NewDashboard(fan *market.Fanout, log logger.Logger, period time.Duration) *Dashboard {
	if period <= 0 {
		period = 10 * time.Second
	}
	return &Dashboard{fan: fan, log: log, period: period}
}

// Run consumes events until the context is canceled.
func (d *Dashboard) Run(ctx context.Context) {
	sub := d.fan.Observe(256)
	defer d.fan.Unobserve(sub)
	ticker := time.NewTicker(d.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.report()
		case ev, ok := <-sub:
			if !ok {
				return
			}
			d.observe(ev)
		}
	}
}

func (d *Dashboard) observe(ev any) {
	switch e := ev.(type) {
	case events.TradeEvent:
		d.trades++
		d.volume += e.Trade.Qty
	case events.PriceEvent:
		d.prices = append(d.prices, e.Price)
		// keep a bounded window
		if len(d.prices) > 256 {
			d.prices = d.prices[len(d.prices)-256:]
		}
	case events.ClearingEvent:
		d.volume += e.Result.ClearedQty
	}
}

func (d *Dashboard) report() {
	if len(d.prices) == 0 {
		d.log.Infof("market quiet: no prices observed yet")
		return
	}
	mean, std := stat.MeanStdDev(d.prices, nil)
	d.log.Infof("trades %d, volume %.1f kWh, price mean %.4f stddev %.4f over %d samples",
		d.trades, d.volume, mean, std, len(d.prices))
}
