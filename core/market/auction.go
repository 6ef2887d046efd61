package market

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cnergy/cnergy/core/events"
	"github.com/cnergy/cnergy/core/logger"
	coremetrics "github.com/cnergy/cnergy/core/metrics"
	"github.com/cnergy/cnergy/core/model"
	"github.com/cnergy/cnergy/core/wire"
	"github.com/cnergy/cnergy/internal/mailbox"
)

// Auction is the periodic uniform-price clearing engine. Orders submitted
// during one interval are accumulated in two transient lists and cleared at
// a single price when the interval ends; the interval's orders are then
// discarded whether or not they were awarded.
type Auction struct {
	cfg  Config
	fan  *Fanout
	log  logger.Logger
	sink coremetrics.MetricsSink

	inbox  *mailbox.Mailbox[envelope]
	nextID int64
	tick   int64

	offers []*model.Order
	bids   []*model.Order
}

// NewAuction creates a batch clearing engine.
func NewAuction(cfg Config, fan *Fanout, sink coremetrics.MetricsSink, log logger.Logger) (*Auction, error) {
	if fan == nil || log == nil {
		return nil, fmt.Errorf("market: nil parameter provided to NewAuction")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("market: %w", err)
	}
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	return &Auction{
		cfg:   cfg,
		fan:   fan,
		log:   log,
		sink:  sink,
		inbox: mailbox.New[envelope](),
	}, nil
}

// Send queues an inbound message for processing. It never blocks.
func (a *Auction) Send(from model.Ref, msg wire.Message) {
	a.inbox.Push(envelope{from: from, msg: msg})
}

// Tick returns the auction's logical clock.
func (a *Auction) Tick() int64 { return a.tick }

// Run drains the mailbox and clears the market once per tick until the
// context is canceled.
func (a *Auction) Run(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.TickInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.AdvanceTick()
		case <-a.inbox.Wake():
			a.Drain()
		}
	}
}

// Drain processes every queued inbound message.
func (a *Auction) Drain() {
	for {
		env, ok := a.inbox.Poll()
		if !ok {
			return
		}
		a.handle(env)
	}
}

// AdvanceTick drains pending submissions, advances the clock and clears the
// interval.
func (a *Auction) AdvanceTick() {
	a.Drain()
	a.tick++
	a.clear()
}

func (a *Auction) handle(env envelope) {
	switch env.msg.Kind {
	case wire.KindSubmit:
		a.handleSubmit(env.from, env.msg)
	case wire.KindCancel:
		a.handleCancel(env.from, env.msg)
	default:
		a.log.Warnf("dropping unexpected %s message from %s", env.msg.Kind, env.from)
	}
}

func (a *Auction) reject(from model.Ref, id int64, reason wire.Reason) {
	a.fan.Send(from, wire.NewReject(id, reason))
	a.fan.Publish(events.RejectEvent{OrderID: id, Owner: from, Reason: string(reason)})
	ordersRejected.WithLabelValues(string(reason)).Inc()
}

func (a *Auction) handleSubmit(from model.Ref, msg wire.Message) {
	sub, err := wire.ParseSubmit(msg)
	if err != nil {
		a.log.Warnf("malformed submit from %s: %v", from, err)
		a.reject(from, 0, wire.ReasonMalformed)
		return
	}
	a.nextID++
	id := a.nextID
	// zero-price bids are legitimate here: a battery below its SoC floor
	// bids at zero to charge at any cost
	if sub.Price < 0 {
		a.reject(from, id, wire.ReasonInvalidPrice)
		return
	}
	if !sub.Unbounded && sub.Qty <= 0 {
		a.reject(from, id, wire.ReasonMalformed)
		return
	}

	order := &model.Order{
		ID:         id,
		Owner:      from,
		Side:       sub.Side,
		Qty:        sub.Qty,
		Price:      sub.Price,
		Unbounded:  sub.Unbounded,
		SubmitTick: a.tick,
	}
	if order.Side == model.Sell {
		a.offers = append(a.offers, order)
	} else {
		a.bids = append(a.bids, order)
	}
	ordersSubmitted.WithLabelValues(order.Side.String()).Inc()
	a.fan.Send(from, wire.NewAccept(*order))
	a.fan.Publish(events.OrderEvent{Order: *order, Action: events.OrderAccepted})
	a.log.Debugw("new interval order", map[string]any{
		"id": id, "owner": string(from), "side": order.Side.String(),
		"qty": order.Qty, "price": order.Price,
	})
}

func (a *Auction) handleCancel(from model.Ref, msg wire.Message) {
	id, err := wire.ParseCancel(msg)
	if err != nil {
		a.log.Warnf("malformed cancel from %s: %v", from, err)
		a.reject(from, 0, wire.ReasonMalformed)
		return
	}
	remove := func(list []*model.Order) ([]*model.Order, *model.Order) {
		for i, o := range list {
			if o.ID == id {
				return append(list[:i], list[i+1:]...), o
			}
		}
		return list, nil
	}
	var cancelled *model.Order
	a.offers, cancelled = remove(a.offers)
	if cancelled == nil {
		a.bids, cancelled = remove(a.bids)
	}
	if cancelled == nil {
		a.log.Debugf("cancel of unknown order %d from %s ignored", id, from)
		return
	}
	ordersCancelled.Inc()
	a.fan.Send(cancelled.Owner, wire.NewReject(id, wire.ReasonCancelled))
	a.fan.Publish(events.OrderEvent{Order: *cancelled, Action: events.OrderCancelled})
}

// clear computes the uniform clearing price and awards for the interval.
//
// Offers are walked in ascending price order until accumulated supply covers
// total demand; the marginal accepted offer sets the price. Bids are then
// awarded in descending price order until the cleared quantity is exhausted.
// Demand is not filtered by bid price at this stage, so a bid below the
// clearing price can still be awarded. Participant strategies rely on this:
// a battery bidding under the going rate still gets charged.
func (a *Auction) clear() {
	if len(a.offers) == 0 || len(a.bids) == 0 {
		a.discard()
		return
	}

	sort.Slice(a.offers, func(i, j int) bool {
		if a.offers[i].Price != a.offers[j].Price {
			return a.offers[i].Price < a.offers[j].Price
		}
		return a.offers[i].ID < a.offers[j].ID
	})
	sort.Slice(a.bids, func(i, j int) bool {
		if a.bids[i].Price != a.bids[j].Price {
			return a.bids[i].Price > a.bids[j].Price
		}
		return a.bids[i].ID < a.bids[j].ID
	})

	remainingDemand := 0.0
	for _, b := range a.bids {
		remainingDemand += b.Qty
	}

	awards := make(map[int64]float64)
	clearingPriceVal := 0.0
	clearedQty := 0.0
	for _, off := range a.offers {
		if remainingDemand <= model.Epsilon {
			break
		}
		exchange := min(off.Qty, remainingDemand)
		awards[off.ID] += exchange
		remainingDemand -= exchange
		clearedQty += exchange
		clearingPriceVal = off.Price
	}

	remaining := clearedQty
	for _, bid := range a.bids {
		if remaining <= model.Epsilon {
			break
		}
		fill := min(bid.Qty, remaining)
		awards[bid.ID] += fill
		remaining -= fill
	}

	result := model.ClearingResult{
		Price:      clearingPriceVal,
		ClearedQty: clearedQty,
		Awards:     awards,
		Tick:       a.tick,
	}
	a.sendAwards(a.offers, awards, clearingPriceVal, wire.RoleProducer)
	a.sendAwards(a.bids, awards, clearingPriceVal, wire.RoleConsumer)

	a.fan.Broadcast(wire.NewPriceTick(clearingPriceVal))
	a.fan.Publish(events.PriceEvent{Price: clearingPriceVal, Tick: a.tick})
	a.fan.Publish(events.ClearingEvent{Result: result})
	a.log.Infof("auction cleared %.1f kWh at %.3f euro/kWh", clearedQty, clearingPriceVal)

	clearingPrice.Set(clearingPriceVal)
	clearedVolume.Add(clearedQty)
	if cr, ok := a.sink.(coremetrics.ClearingRecorder); ok {
		if err := cr.RecordClearing(coremetrics.ClearingRecord{
			Price:      clearingPriceVal,
			ClearedQty: clearedQty,
			Offers:     len(a.offers),
			Bids:       len(a.bids),
			Tick:       a.tick,
			Time:       time.Now(),
		}); err != nil {
			a.log.Errorf("clearing metrics error: %v", err)
		}
	}
	a.discard()
}

// sendAwards aggregates per-order awards by owner and delivers one AWARD
// message per participant.
func (a *Auction) sendAwards(orders []*model.Order, awards map[int64]float64, price float64, role wire.Role) {
	byOwner := make(map[model.Ref]float64)
	var owners []model.Ref
	for _, o := range orders {
		qty, ok := awards[o.ID]
		if !ok {
			continue
		}
		if _, seen := byOwner[o.Owner]; !seen {
			owners = append(owners, o.Owner)
		}
		byOwner[o.Owner] += qty
	}
	for _, owner := range owners {
		a.fan.Send(owner, wire.NewAward(byOwner[owner], price, role))
	}
}

func (a *Auction) discard() {
	a.offers = nil
	a.bids = nil
}
