package sim

import (
	"context"
	"time"

	"github.com/cnergy/cnergy/core/logger"
	"github.com/cnergy/cnergy/core/model"
	"github.com/cnergy/cnergy/core/wire"
	"github.com/cnergy/cnergy/internal/mailbox"
)

// Conventional is the backup producer of last resort. It keeps one unbounded
// offer resting just above the going rate, so it only trades when nothing
// cheaper is available.
type Conventional struct {
	agent
	cfg ConventionalConfig

	lastPrice   float64
	fault       faultState
	openID      int64
	awaitAccept bool
}

// NewConventional creates the backup producer.
func NewConventional(cfg ConventionalConfig, box *mailbox.Mailbox[wire.Message], gw Gateway, log logger.Logger, interval time.Duration) *Conventional {
	cfg.SetDefaults()
	return &Conventional{
		agent:     newAgent(model.Ref(cfg.Name), box, gw, log, interval),
		cfg:       cfg,
		lastPrice: 0.06,
	}
}

// Run drives the producer until the context is canceled.
func (c *Conventional) Run(ctx context.Context) {
	c.loop(ctx, c.onTick, c.onMsg)
}

func (c *Conventional) onTick() {
	if c.fault.idle() {
		c.log.Debugf("%s faulted, %d ticks remaining", c.ref, c.fault.remaining)
		return
	}
	if c.openID != 0 {
		c.cancel(c.openID)
		c.openID = 0
	}
	price := c.lastPrice + c.cfg.Margin
	c.awaitAccept = true
	c.submit(model.Sell, 0, price, true)
	c.log.Debugf("%s offering unbounded supply at %.3f", c.ref, price)
}

func (c *Conventional) onMsg(msg wire.Message) {
	switch msg.Kind {
	case wire.KindAccept:
		acc, err := wire.ParseAccept(msg)
		if err != nil || !c.awaitAccept {
			return
		}
		c.openID = acc.ID
		c.awaitAccept = false
	case wire.KindFill:
		if fill, err := wire.ParseFill(msg); err == nil {
			c.log.Debugf("%s delivered %.1f kWh backup at %.3f", c.ref, fill.Qty, fill.Price)
		}
	case wire.KindReject:
		if rej, err := wire.ParseReject(msg); err == nil && rej.ID == c.openID {
			c.openID = 0
		}
	case wire.KindPriceTick:
		if price, err := wire.ParsePriceTick(msg); err == nil {
			c.lastPrice = price
		}
	case wire.KindFault:
		if outage, err := wire.ParseFault(msg); err == nil {
			c.fault.hit(outage)
			c.log.Warnf("%s fault injected for %d ticks", c.ref, outage)
		}
	}
}
