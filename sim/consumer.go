package sim

import (
	"context"
	"time"

	"github.com/cnergy/cnergy/core/logger"
	"github.com/cnergy/cnergy/core/model"
	"github.com/cnergy/cnergy/core/wire"
	"github.com/cnergy/cnergy/internal/mailbox"
)

// Consumer bids for an hourly load curve. Demand the market did not serve is
// carried forward as backlog, and the willingness to pay adapts to how well
// recent bids were served.
type Consumer struct {
	agent
	cfg ConsumerConfig

	tick    int
	backlog float64
	margin  float64

	openID      int64
	openQty     float64
	awaitAccept bool
}

// NewConsumer creates the aggregated consumer.
func NewConsumer(cfg ConsumerConfig, box *mailbox.Mailbox[wire.Message], gw Gateway, log logger.Logger, interval time.Duration) *Consumer {
	cfg.SetDefaults()
	return &Consumer{
		agent:  newAgent(model.Ref(cfg.Name), box, gw, log, interval),
		cfg:    cfg,
		margin: cfg.Margin,
	}
}

// Run drives the consumer until the context is canceled.
func (c *Consumer) Run(ctx context.Context) {
	c.loop(ctx, c.onTick, c.onMsg)
}

func (c *Consumer) onTick() {
	c.tick++
	hour := c.tick % 24

	if c.openID != 0 {
		c.cancel(c.openID)
		c.backlog += c.openQty
		c.openID, c.openQty = 0, 0
	}

	demand := c.cfg.HourlyLoad[hour] + c.backlog
	if demand < model.Epsilon {
		return
	}
	price := c.cfg.UtilityCap + c.margin
	if price < 0 {
		price = 0
	}
	c.openQty = demand
	c.awaitAccept = true
	c.submit(model.Buy, demand, price, false)
	c.log.Debugf("%s bidding %.1f kWh at %.3f, backlog %.1f", c.ref, demand, price, c.backlog)
}

func (c *Consumer) onMsg(msg wire.Message) {
	switch msg.Kind {
	case wire.KindAccept:
		acc, err := wire.ParseAccept(msg)
		if err != nil || !c.awaitAccept {
			return
		}
		c.openID = acc.ID
		c.awaitAccept = false
	case wire.KindFill:
		fill, err := wire.ParseFill(msg)
		if err != nil || fill.ID != c.openID {
			return
		}
		c.served(fill.Qty)
	case wire.KindAward:
		award, err := wire.ParseAward(msg)
		if err != nil || award.Role != wire.RoleConsumer {
			return
		}
		c.served(award.Qty)
	case wire.KindReject:
		rej, err := wire.ParseReject(msg)
		if err != nil || rej.ID != c.openID || c.openID == 0 {
			return
		}
		c.backlog += c.openQty
		c.openID, c.openQty = 0, 0
		// pay a bit more next time
		c.margin += 0.002
		if c.margin > 0.05 {
			c.margin = 0.05
		}
	}
}

// served books qty of delivered energy against the open bid and the backlog,
// then relaxes the margin proportionally to how satisfied the bid was.
func (c *Consumer) served(qty float64) {
	c.openQty -= qty
	if c.openQty < model.Epsilon {
		c.openID, c.openQty = 0, 0
	}
	c.backlog -= qty
	if c.backlog < 0 {
		c.backlog = 0
	}
	util := qty / (qty + c.openQty + 1e-9)
	c.margin += c.cfg.Alpha * (0.9 - util)
	c.margin = clamp(c.margin, 0.005, 0.05)
}
