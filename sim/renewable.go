package sim

import (
	"context"
	"time"

	"github.com/cnergy/cnergy/core/logger"
	"github.com/cnergy/cnergy/core/model"
	"github.com/cnergy/cnergy/core/wire"
	"github.com/cnergy/cnergy/internal/mailbox"
)

type renewableKind int

const (
	solarKind renewableKind = iota
	windKind
)

// Renewable is a weather-driven producer with optional storage. Solar parks
// follow the sun tokens and go dark at night; wind parks follow the wind
// tokens around the clock.
type Renewable struct {
	agent
	cfg  RenewableConfig
	kind renewableKind

	goodWeather bool
	night       bool
	lastPrice   float64
	soc         float64
	fault       faultState

	openID       int64
	openQty      float64
	lastOfferQty float64
	margin       float64
	awaitAccept  bool
}

// NewSolar creates a sun-driven producer.
func NewSolar(cfg RenewableConfig, box *mailbox.Mailbox[wire.Message], gw Gateway, log logger.Logger, interval time.Duration) *Renewable {
	cfg.SetDefaults()
	return newRenewable(cfg, solarKind, box, gw, log, interval)
}

// NewWind creates a wind-driven producer.
func NewWind(cfg RenewableConfig, box *mailbox.Mailbox[wire.Message], gw Gateway, log logger.Logger, interval time.Duration) *Renewable {
	cfg.SetDefaults()
	return newRenewable(cfg, windKind, box, gw, log, interval)
}

func newRenewable(cfg RenewableConfig, kind renewableKind, box *mailbox.Mailbox[wire.Message], gw Gateway, log logger.Logger, interval time.Duration) *Renewable {
	return &Renewable{
		agent:  newAgent(model.Ref(cfg.Name), box, gw, log, interval),
		cfg:    cfg,
		kind:   kind,
		margin: cfg.Margin,
	}
}

// Run drives the producer until the context is canceled.
func (r *Renewable) Run(ctx context.Context) {
	r.loop(ctx, r.onTick, r.onMsg)
}

func (r *Renewable) onTick() {
	if r.fault.idle() {
		r.log.Debugf("%s faulted, %d ticks remaining", r.ref, r.fault.remaining)
		return
	}

	// withdraw the stale offer so leftover energy returns to storage
	if r.openID != 0 {
		r.cancel(r.openID)
		r.storeEnergy(r.openQty)
		r.openID, r.openQty = 0, 0
	}

	production := r.produce()
	available := production + r.soc
	if available < model.Epsilon {
		return
	}
	price := r.cfg.BaseCost + r.margin
	// avoid undercutting the going rate
	if floor := r.lastPrice - 0.02; price < floor {
		price = floor
	}

	r.soc = 0
	r.openQty = available
	r.lastOfferQty = available
	r.awaitAccept = true
	r.submit(model.Sell, available, price, false)
	r.log.Debugf("%s offering %.1f kWh at %.3f", r.ref, available, price)
}

func (r *Renewable) produce() float64 {
	if r.kind == solarKind && r.night {
		return 0
	}
	factor := r.cfg.CoeffBad
	if r.goodWeather {
		factor = r.cfg.CoeffGood
	}
	production := r.cfg.Capacity * factor
	if r.cfg.HasStorage {
		if free := r.cfg.StorageCapacity - r.soc; production > free {
			production = free
		}
	}
	return production
}

func (r *Renewable) storeEnergy(qty float64) {
	if !r.cfg.HasStorage {
		return
	}
	r.soc += qty
	if r.soc > r.cfg.StorageCapacity {
		r.soc = r.cfg.StorageCapacity
	}
}

func (r *Renewable) onMsg(msg wire.Message) {
	switch msg.Kind {
	case wire.KindAccept:
		acc, err := wire.ParseAccept(msg)
		if err != nil || !r.awaitAccept {
			return
		}
		r.openID = acc.ID
		r.awaitAccept = false
	case wire.KindFill:
		fill, err := wire.ParseFill(msg)
		if err != nil || fill.ID != r.openID {
			return
		}
		r.openQty -= fill.Qty
		if r.openQty < model.Epsilon {
			r.openID, r.openQty = 0, 0
		}
	case wire.KindReject:
		rej, err := wire.ParseReject(msg)
		if err != nil || rej.ID != r.openID || r.openID == 0 {
			return
		}
		r.storeEnergy(r.openQty)
		r.openID, r.openQty = 0, 0
	case wire.KindPriceTick:
		if price, err := wire.ParsePriceTick(msg); err == nil {
			r.lastPrice = price
		}
	case wire.KindAward:
		award, err := wire.ParseAward(msg)
		if err != nil {
			return
		}
		r.lastPrice = award.Price
		util := 0.0
		if r.lastOfferQty > model.Epsilon {
			util = award.Qty / r.lastOfferQty
		}
		r.margin += r.cfg.Alpha * (0.9 - util)
		r.margin = clamp(r.margin, -0.02, 0.02)
	case wire.KindWeather:
		w, err := wire.ParseWeather(msg)
		if err != nil {
			return
		}
		if r.kind == solarKind {
			r.goodWeather = w.Sun == "SUNNY"
			r.night = w.Time == "NIGHT"
		} else {
			r.goodWeather = w.Wind == "WINDY"
		}
	case wire.KindFault:
		if outage, err := wire.ParseFault(msg); err == nil {
			r.fault.hit(outage)
			r.log.Warnf("%s fault injected for %d ticks", r.ref, outage)
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
