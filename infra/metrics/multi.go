package metrics

import (
	"time"

	coremetrics "github.com/cnergy/cnergy/core/metrics"
)

// MultiSink fanouts market records to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordTrades forwards the records to all sinks, returning the first error encountered.
func (m *MultiSink) RecordTrades(recs []coremetrics.TradeRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordTrades(recs); err != nil {
			return err
		}
	}
	return nil
}

// RecordClearing forwards auction outcomes.
func (m *MultiSink) RecordClearing(rec coremetrics.ClearingRecord) error {
	for _, s := range m.Sinks {
		if cr, ok := s.(coremetrics.ClearingRecorder); ok {
			if err := cr.RecordClearing(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordOrderFlow forwards order lifecycle transitions.
func (m *MultiSink) RecordOrderFlow(rec coremetrics.OrderFlowRecord) error {
	for _, s := range m.Sinks {
		if or, ok := s.(coremetrics.OrderFlowRecorder); ok {
			if err := or.RecordOrderFlow(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordPrice forwards price broadcasts.
func (m *MultiSink) RecordPrice(price float64, tick int64, t time.Time) error {
	for _, s := range m.Sinks {
		if pr, ok := s.(coremetrics.PriceRecorder); ok {
			if err := pr.RecordPrice(price, tick, t); err != nil {
				return err
			}
		}
	}
	return nil
}
