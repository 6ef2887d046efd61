// Package events defines the market events emitted on the observer bus.
//
// Available event types:
//   - OrderEvent: order-book delta (accepted, cancelled, expired, filled)
//   - TradeEvent: completed continuous-mode match
//   - PriceEvent: broadcast market price
//   - RejectEvent: submission refused at ingestion
//   - ClearingEvent: batch auction result
package events
