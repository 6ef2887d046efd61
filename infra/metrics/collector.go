package metrics

import (
	"context"
	"time"

	"github.com/cnergy/cnergy/core/events"
	"github.com/cnergy/cnergy/core/market"
	coremetrics "github.com/cnergy/cnergy/core/metrics"
)

// StartEventCollector subscribes to the market's observer bus and records
// metrics for events. It stops when the context is canceled.
func StartEventCollector(ctx context.Context, fan *market.Fanout, sink coremetrics.MetricsSink) {
	if fan == nil || sink == nil {
		return
	}
	sub := fan.Observe(0)
	go func() {
		defer fan.Unobserve(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				switch e := ev.(type) {
				case events.OrderEvent:
					if r, ok := sink.(coremetrics.OrderFlowRecorder); ok {
						_ = r.RecordOrderFlow(coremetrics.OrderFlowRecord{
							OrderID: e.Order.ID,
							Owner:   string(e.Order.Owner),
							Side:    e.Order.Side,
							Action:  string(e.Action),
							Qty:     e.Order.Qty,
							Price:   e.Order.Price,
							Tick:    e.Order.SubmitTick,
							Time:    time.Now(),
						})
					}
				case events.PriceEvent:
					if r, ok := sink.(coremetrics.PriceRecorder); ok {
						_ = r.RecordPrice(e.Price, e.Tick, time.Now())
					}
				}
			}
		}
	}()
}
