package sim

import (
	"context"
	"time"

	"github.com/cnergy/cnergy/core/logger"
	"github.com/cnergy/cnergy/core/model"
	"github.com/cnergy/cnergy/core/wire"
	"github.com/cnergy/cnergy/internal/mailbox"
)

// Battery arbitrages between cheap and expensive hours. The state of charge
// picks the stance: nearly empty batteries bid over the going rate, nearly
// full ones sell above it.
type Battery struct {
	agent
	cfg BatteryConfig

	soc       float64
	lastPrice float64
	fault     faultState

	openID      int64
	openSide    model.Side
	awaitAccept bool
}

// NewBattery creates the storage arbitrageur.
func NewBattery(cfg BatteryConfig, box *mailbox.Mailbox[wire.Message], gw Gateway, log logger.Logger, interval time.Duration) *Battery {
	cfg.SetDefaults()
	return &Battery{
		agent:     newAgent(model.Ref(cfg.Name), box, gw, log, interval),
		cfg:       cfg,
		soc:       cfg.InitialSoC,
		lastPrice: 0.06,
	}
}

// Run drives the battery until the context is canceled.
func (b *Battery) Run(ctx context.Context) {
	b.loop(ctx, b.onTick, b.onMsg)
}

func (b *Battery) onTick() {
	if b.fault.idle() {
		b.log.Debugf("%s faulted, %d ticks remaining", b.ref, b.fault.remaining)
		return
	}
	if b.openID != 0 {
		b.cancel(b.openID)
		b.openID = 0
	}

	rate := b.cfg.ChargeRate
	socPct := b.soc / b.cfg.Capacity
	switch {
	case socPct < 0.3:
		// charge urgently: bid over the going rate, never at zero,
		// which the continuous matcher rejects
		b.place(model.Buy, rate, b.lastPrice+b.cfg.Margin)
	case socPct < 0.5:
		b.place(model.Buy, rate, max(0.001, b.lastPrice-b.cfg.Margin))
	case socPct < 0.7:
		b.place(model.Sell, rate, b.lastPrice)
	default:
		b.place(model.Sell, rate, b.lastPrice+b.cfg.Margin)
	}
}

func (b *Battery) place(side model.Side, qty, price float64) {
	b.openSide = side
	b.awaitAccept = true
	b.submit(side, qty, price, false)
	b.log.Debugf("%s %s %.1f kWh at %.3f, soc %.1f", b.ref, side, qty, price, b.soc)
}

func (b *Battery) onMsg(msg wire.Message) {
	switch msg.Kind {
	case wire.KindAccept:
		acc, err := wire.ParseAccept(msg)
		if err != nil || !b.awaitAccept {
			return
		}
		b.openID = acc.ID
		b.awaitAccept = false
	case wire.KindFill:
		fill, err := wire.ParseFill(msg)
		if err != nil || fill.ID != b.openID {
			return
		}
		b.moveCharge(fill.Qty, b.openSide == model.Sell)
		b.lastPrice = fill.Price
	case wire.KindAward:
		award, err := wire.ParseAward(msg)
		if err != nil {
			return
		}
		b.moveCharge(award.Qty, award.Role == wire.RoleProducer)
		b.lastPrice = award.Price
	case wire.KindReject:
		if rej, err := wire.ParseReject(msg); err == nil && rej.ID == b.openID {
			b.openID = 0
		}
	case wire.KindPriceTick:
		if price, err := wire.ParsePriceTick(msg); err == nil {
			b.lastPrice = price
		}
	case wire.KindFault:
		if outage, err := wire.ParseFault(msg); err == nil {
			b.fault.hit(outage)
			b.log.Warnf("%s fault injected for %d ticks", b.ref, outage)
		}
	}
}

func (b *Battery) moveCharge(qty float64, discharging bool) {
	if discharging {
		b.soc -= qty
	} else {
		b.soc += qty
	}
	b.soc = clamp(b.soc, 0, b.cfg.Capacity)
}
