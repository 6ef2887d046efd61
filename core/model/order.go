package model

import "fmt"

// Epsilon is the quantity below which a bounded order counts as fully filled.
const Epsilon = 1e-6

// UnboundedQuantity is the sentinel for orders backed by effectively
// unlimited supply, such as the conventional backup producer. A large finite
// constant is used instead of math.Inf so that quantity arithmetic never
// produces NaN.
const UnboundedQuantity = 1e12

// unboundedFloor is the level below which an unbounded order's remaining
// quantity is topped back up to the sentinel.
const unboundedFloor = UnboundedQuantity / 2

// Ref is an opaque participant address used for message delivery. The engine
// holds no behavioral knowledge about the participant behind it.
type Ref string

// Side identifies the direction of an order.
type Side int

const (
	Buy Side = iota
	Sell
)

// String returns the wire token for the side.
func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

// ParseSide converts a wire token into a Side.
func ParseSide(s string) (Side, error) {
	switch s {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	default:
		return 0, fmt.Errorf("model: unknown side %q", s)
	}
}

// Order is a live entry in the order store. Quantity only ever decreases, and
// only through matching; the order is removed once Filled reports true or a
// terminal event (cancel, expiry) destroys it.
type Order struct {
	ID         int64
	Owner      Ref
	Side       Side
	Qty        float64
	Price      float64
	Unbounded  bool
	SubmitTick int64
	ExpiryTick int64
}

// Fill reduces the remaining quantity by qty. Unbounded orders are refilled
// to the sentinel whenever they drop below the floor, so they can never be
// exhausted by matching.
func (o *Order) Fill(qty float64) {
	o.Qty -= qty
	if o.Unbounded && o.Qty < unboundedFloor {
		o.Qty = UnboundedQuantity
	}
}

// Filled reports whether the order's remaining quantity is exhausted.
// Unbounded orders never report filled.
func (o *Order) Filled() bool {
	return !o.Unbounded && o.Qty <= Epsilon
}

// Trade is the immutable record of one match. Trades are events, not state:
// the engine emits them and keeps nothing.
type Trade struct {
	BuyID     int64
	SellID    int64
	BuyOwner  Ref
	SellOwner Ref
	Qty       float64
	Price     float64
	Tick      int64
}

// ClearingResult holds the outcome of one batch auction interval. Awards maps
// order id to awarded quantity; the result is discarded after notification.
type ClearingResult struct {
	Price      float64
	ClearedQty float64
	Awards     map[int64]float64
	Tick       int64
}
