package events

import "github.com/cnergy/cnergy/core/model"

// OrderAction describes what happened to an order in the book.
type OrderAction string

const (
	OrderAccepted  OrderAction = "accepted"
	OrderCancelled OrderAction = "cancelled"
	OrderExpired   OrderAction = "expired"
	OrderFilled    OrderAction = "filled"
)

// OrderEvent is published for every order-book delta.
type OrderEvent struct {
	Order  model.Order
	Action OrderAction
}

// TradeEvent is published for every continuous-mode match.
type TradeEvent struct {
	Trade model.Trade
}

// PriceEvent carries the broadcast market price.
type PriceEvent struct {
	Price float64
	Tick  int64
}

// RejectEvent is published when a submission is refused at ingestion.
type RejectEvent struct {
	OrderID int64
	Owner   model.Ref
	Reason  string
}

// ClearingEvent is published after each batch auction interval that cleared.
type ClearingEvent struct {
	Result model.ClearingResult
}
