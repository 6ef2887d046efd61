package sim

import (
	"context"
	"time"

	"github.com/cnergy/cnergy/core/logger"
	"github.com/cnergy/cnergy/core/model"
	"github.com/cnergy/cnergy/core/wire"
	"github.com/cnergy/cnergy/internal/mailbox"
)

// Trader accumulates a long position by bidding under the going rate,
// bounded by a position limit. Its margin decays slightly with every fill.
type Trader struct {
	agent
	cfg TraderConfig

	lastPrice float64
	position  float64
	margin    float64

	bidID       int64
	awaitAccept bool
}

// NewTrader creates the proprietary trader.
func NewTrader(cfg TraderConfig, box *mailbox.Mailbox[wire.Message], gw Gateway, log logger.Logger, interval time.Duration) *Trader {
	cfg.SetDefaults()
	return &Trader{
		agent:     newAgent(model.Ref(cfg.Name), box, gw, log, interval),
		cfg:       cfg,
		lastPrice: 0.06,
		margin:    cfg.Margin,
	}
}

// Run drives the trader until the context is canceled.
func (t *Trader) Run(ctx context.Context) {
	t.loop(ctx, t.onTick, t.onMsg)
}

func (t *Trader) onTick() {
	if t.bidID != 0 {
		t.cancel(t.bidID)
		t.bidID = 0
	}
	if t.position >= t.cfg.PosLimit {
		return
	}
	bid := max(0, t.lastPrice-t.margin)
	t.awaitAccept = true
	t.submit(model.Buy, t.cfg.OrderSize, bid, false)
	t.log.Debugf("%s bidding %.1f kWh at %.3f, position %.1f", t.ref, t.cfg.OrderSize, bid, t.position)
}

func (t *Trader) onMsg(msg wire.Message) {
	switch msg.Kind {
	case wire.KindAccept:
		acc, err := wire.ParseAccept(msg)
		if err != nil || !t.awaitAccept {
			return
		}
		t.bidID = acc.ID
		t.awaitAccept = false
	case wire.KindFill:
		fill, err := wire.ParseFill(msg)
		if err != nil || fill.ID != t.bidID {
			return
		}
		t.position += fill.Qty
		t.margin = max(0.002, t.margin*0.999)
		t.log.Debugf("%s bought %.1f at %.4f from %s, position %.1f", t.ref, fill.Qty, fill.Price, fill.From, t.position)
	case wire.KindReject:
		if rej, err := wire.ParseReject(msg); err == nil && rej.ID == t.bidID {
			t.bidID = 0
		}
	case wire.KindPriceTick:
		if price, err := wire.ParsePriceTick(msg); err == nil {
			t.lastPrice = price
		}
	}
}
