package metrics

import (
	"time"

	"github.com/cnergy/cnergy/core/model"
)

// TradeRecord represents one completed match to be recorded.
type TradeRecord struct {
	BuyID     int64
	SellID    int64
	BuyOwner  string
	SellOwner string
	Qty       float64
	Price     float64
	Tick      int64
	Time      time.Time
}

// MetricsSink records trades for observability purposes.
type MetricsSink interface {
	RecordTrades(trades []TradeRecord) error
}

// ClearingRecord captures the outcome of one batch auction interval.
type ClearingRecord struct {
	Price      float64
	ClearedQty float64
	Offers     int
	Bids       int
	Tick       int64
	Time       time.Time
}

// ClearingRecorder is implemented by sinks able to record auction results.
type ClearingRecorder interface {
	RecordClearing(rec ClearingRecord) error
}

// OrderFlowRecord is a snapshot of one order lifecycle transition.
type OrderFlowRecord struct {
	OrderID int64
	Owner   string
	Side    model.Side
	Action  string
	Qty     float64
	Price   float64
	Tick    int64
	Time    time.Time
}

// OrderFlowRecorder records order submissions, cancellations and expiries.
type OrderFlowRecorder interface {
	RecordOrderFlow(rec OrderFlowRecord) error
}

// PriceRecorder records the broadcast market price.
type PriceRecorder interface {
	RecordPrice(price float64, tick int64, t time.Time) error
}

// NopSink implements all recorder interfaces with no-op methods.
type NopSink struct{}

func (NopSink) RecordTrades([]TradeRecord) error                 { return nil }
func (NopSink) RecordClearing(ClearingRecord) error              { return nil }
func (NopSink) RecordOrderFlow(OrderFlowRecord) error            { return nil }
func (NopSink) RecordPrice(float64, int64, time.Time) error      { return nil }
