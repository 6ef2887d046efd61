package market

import (
	"context"
	"fmt"
	"time"

	"github.com/cnergy/cnergy/core/events"
	"github.com/cnergy/cnergy/core/logger"
	coremetrics "github.com/cnergy/cnergy/core/metrics"
	"github.com/cnergy/cnergy/core/model"
	"github.com/cnergy/cnergy/core/wire"
	"github.com/cnergy/cnergy/internal/mailbox"
)

// envelope pairs an inbound message with its sender address.
type envelope struct {
	from model.Ref
	msg  wire.Message
}

// Engine is the continuous double-auction clearing engine. It is a single
// logical actor: every mutation of the book happens inside its run loop, so
// price-time priority can never be violated by interleaved ingestion.
type Engine struct {
	cfg  Config
	book *Book
	fan  *Fanout
	log  logger.Logger
	sink coremetrics.MetricsSink

	inbox     *mailbox.Mailbox[envelope]
	nextID    int64
	tick      int64
	lastPrice float64
}

// NewEngine creates a continuous clearing engine. The sink receives trade
// records only; order-flow and price series are recorded off the observer
// bus so every event produces exactly one record. A nil sink disables
// recording.
func NewEngine(cfg Config, fan *Fanout, sink coremetrics.MetricsSink, log logger.Logger) (*Engine, error) {
	if fan == nil || log == nil {
		return nil, fmt.Errorf("market: nil parameter provided to NewEngine")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("market: %w", err)
	}
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	return &Engine{
		cfg:       cfg,
		book:      NewBook(),
		fan:       fan,
		log:       log,
		sink:      sink,
		inbox:     mailbox.New[envelope](),
		lastPrice: cfg.InitialPrice,
	}, nil
}

// Send queues an inbound message for processing. It never blocks and is safe
// to call from any participant goroutine.
func (e *Engine) Send(from model.Ref, msg wire.Message) {
	e.inbox.Push(envelope{from: from, msg: msg})
}

// Tick returns the engine's logical clock.
func (e *Engine) Tick() int64 { return e.tick }

// LastPrice returns the last broadcast price.
func (e *Engine) LastPrice() float64 { return e.lastPrice }

// Book exposes the order book for inspection. Callers must only use it from
// the engine's own execution context (tests, or after Run has stopped).
func (e *Engine) Book() *Book { return e.book }

// Run drains the mailbox and advances the logical clock until the context is
// canceled. All state mutation happens here.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.TickInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.AdvanceTick()
		case <-e.inbox.Wake():
			e.Drain()
		}
	}
}

// Drain processes every queued inbound message.
func (e *Engine) Drain() {
	for {
		env, ok := e.inbox.Poll()
		if !ok {
			return
		}
		e.handle(env)
	}
}

// AdvanceTick drains pending messages, advances the clock and runs the
// expiry sweep. Draining first guarantees that matching triggered by this
// tick's messages settles before any expiry, so an order can never receive
// two terminal notifications.
func (e *Engine) AdvanceTick() {
	e.Drain()
	e.tick++
	e.sweep()
}

func (e *Engine) handle(env envelope) {
	switch env.msg.Kind {
	case wire.KindSubmit:
		e.handleSubmit(env.from, env.msg)
	case wire.KindCancel:
		e.handleCancel(env.from, env.msg)
	default:
		e.log.Warnf("dropping unexpected %s message from %s", env.msg.Kind, env.from)
	}
}

func (e *Engine) reject(from model.Ref, id int64, reason wire.Reason) {
	e.fan.Send(from, wire.NewReject(id, reason))
	e.fan.Publish(events.RejectEvent{OrderID: id, Owner: from, Reason: string(reason)})
	ordersRejected.WithLabelValues(string(reason)).Inc()
}

func (e *Engine) handleSubmit(from model.Ref, msg wire.Message) {
	sub, err := wire.ParseSubmit(msg)
	if err != nil {
		e.log.Warnf("malformed submit from %s: %v", from, err)
		e.reject(from, 0, wire.ReasonMalformed)
		return
	}
	e.nextID++
	id := e.nextID
	if sub.Price <= 0 {
		e.log.Debugf("rejecting order %d from %s: price %g", id, from, sub.Price)
		e.reject(from, id, wire.ReasonInvalidPrice)
		return
	}
	if !sub.Unbounded && sub.Qty <= 0 {
		e.log.Debugf("rejecting order %d from %s: qty %g", id, from, sub.Qty)
		e.reject(from, id, wire.ReasonMalformed)
		return
	}

	order := &model.Order{
		ID:         id,
		Owner:      from,
		Side:       sub.Side,
		Qty:        sub.Qty,
		Price:      sub.Price,
		Unbounded:  sub.Unbounded,
		SubmitTick: e.tick,
		ExpiryTick: e.tick + e.cfg.OrderTTLTicks,
	}
	e.book.Add(order)
	e.log.Debugw("new order", map[string]any{
		"id": id, "owner": string(from), "side": order.Side.String(),
		"qty": order.Qty, "price": order.Price,
	})
	ordersSubmitted.WithLabelValues(order.Side.String()).Inc()
	e.updateDepth()

	e.fan.Send(from, wire.NewAccept(*order))
	e.fan.Publish(events.OrderEvent{Order: *order, Action: events.OrderAccepted})

	e.match()
}

func (e *Engine) handleCancel(from model.Ref, msg wire.Message) {
	id, err := wire.ParseCancel(msg)
	if err != nil {
		e.log.Warnf("malformed cancel from %s: %v", from, err)
		e.reject(from, 0, wire.ReasonMalformed)
		return
	}
	order, ok := e.book.Get(id)
	if !ok {
		// already terminal or never existed; cancel is idempotent
		e.log.Debugf("cancel of unknown order %d from %s ignored", id, from)
		return
	}
	e.book.Remove(id)
	ordersCancelled.Inc()
	e.updateDepth()
	e.fan.Send(order.Owner, wire.NewReject(id, wire.ReasonCancelled))
	e.fan.Publish(events.OrderEvent{Order: *order, Action: events.OrderCancelled})
}

// match crosses the book while the best bid price is at or above the best
// ask price, then broadcasts the price tick. The execution price is always
// the resting ask's limit price.
func (e *Engine) match() {
	for {
		buy := e.book.Best(model.Buy)
		sell := e.book.Best(model.Sell)
		if buy == nil || sell == nil || buy.Price < sell.Price {
			break
		}
		if buy.Unbounded && sell.Unbounded {
			// no bounded side to size the trade; leave both resting
			e.log.Warnf("orders %d and %d are both unbounded, not crossing", buy.ID, sell.ID)
			break
		}
		var qty float64
		switch {
		case buy.Unbounded:
			qty = sell.Qty
		case sell.Unbounded:
			qty = buy.Qty
		default:
			qty = min(buy.Qty, sell.Qty)
		}
		price := sell.Price
		e.lastPrice = price

		trade := model.Trade{
			BuyID:     buy.ID,
			SellID:    sell.ID,
			BuyOwner:  buy.Owner,
			SellOwner: sell.Owner,
			Qty:       qty,
			Price:     price,
			Tick:      e.tick,
		}
		e.fan.Send(sell.Owner, wire.NewFill(sell.ID, qty, price, buy.Owner))
		e.fan.Send(buy.Owner, wire.NewFill(buy.ID, qty, price, sell.Owner))
		e.fan.Publish(events.TradeEvent{Trade: trade})
		e.log.Infof("trade %s <-> %s %.1f @ %.3f", buy.Owner, sell.Owner, qty, price)
		tradesTotal.Inc()
		tradeVolume.Add(qty)
		if err := e.sink.RecordTrades([]coremetrics.TradeRecord{{
			BuyID:     trade.BuyID,
			SellID:    trade.SellID,
			BuyOwner:  string(trade.BuyOwner),
			SellOwner: string(trade.SellOwner),
			Qty:       trade.Qty,
			Price:     trade.Price,
			Tick:      trade.Tick,
			Time:      time.Now(),
		}}); err != nil {
			e.log.Errorf("metrics error: %v", err)
		}

		buy.Fill(qty)
		sell.Fill(qty)
		if buy.Filled() {
			e.book.Remove(buy.ID)
			e.fan.Publish(events.OrderEvent{Order: *buy, Action: events.OrderFilled})
		}
		if sell.Filled() {
			e.book.Remove(sell.ID)
			e.fan.Publish(events.OrderEvent{Order: *sell, Action: events.OrderFilled})
		}
		e.updateDepth()
	}
	e.broadcastPrice()
}

// broadcastPrice sends the current price to every participant. Without a
// trade this round the previously broadcast price persists; the engine never
// invents a price.
func (e *Engine) broadcastPrice() {
	e.fan.Broadcast(wire.NewPriceTick(e.lastPrice))
	e.fan.Publish(events.PriceEvent{Price: e.lastPrice, Tick: e.tick})
	lastTradePrice.Set(e.lastPrice)
}

// sweep evicts orders whose time-to-live elapsed and notifies each owner
// exactly once.
func (e *Engine) sweep() {
	expired := e.book.Expire(e.tick)
	for _, o := range expired {
		e.fan.Send(o.Owner, wire.NewReject(o.ID, wire.ReasonExpired))
		e.fan.Publish(events.OrderEvent{Order: *o, Action: events.OrderExpired})
		ordersExpired.Inc()
		e.log.Debugf("order %d from %s expired at tick %d", o.ID, o.Owner, e.tick)
	}
	if len(expired) > 0 {
		e.updateDepth()
	}
}

func (e *Engine) updateDepth() {
	bookDepth.WithLabelValues(model.Buy.String()).Set(float64(e.book.Depth(model.Buy)))
	bookDepth.WithLabelValues(model.Sell.String()).Set(float64(e.book.Depth(model.Sell)))
}
