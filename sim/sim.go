// Package sim implements the participant fleet that exercises the market:
// renewable and conventional producers, a consumer, a battery, a trader, a
// weather generator and a fault injector. Each participant is one goroutine
// owning its state; all coordination is message passing through mailboxes.
package sim

import (
	"context"
	"time"

	"github.com/cnergy/cnergy/core/logger"
	"github.com/cnergy/cnergy/core/model"
	"github.com/cnergy/cnergy/core/wire"
	"github.com/cnergy/cnergy/internal/mailbox"
)

// Gateway accepts inbound market messages. Both clearing engines satisfy it.
type Gateway interface {
	Send(from model.Ref, msg wire.Message)
}

// Participant is a fleet member driven by its own goroutine.
type Participant interface {
	Ref() model.Ref
	Run(ctx context.Context)
}

// agent carries the plumbing every participant shares: its address, inbound
// mailbox, the engine gateway and a ticker interval.
type agent struct {
	ref      model.Ref
	box      *mailbox.Mailbox[wire.Message]
	gw       Gateway
	log      logger.Logger
	interval time.Duration
}

func newAgent(ref model.Ref, box *mailbox.Mailbox[wire.Message], gw Gateway, log logger.Logger, interval time.Duration) agent {
	if interval <= 0 {
		interval = time.Second
	}
	return agent{ref: ref, box: box, gw: gw, log: log, interval: interval}
}

// Ref returns the participant's market address.
func (a *agent) Ref() model.Ref { return a.ref }

// loop alternates between draining the mailbox and running the periodic
// action. The drain before each tick means decisions are always made on the
// freshest state the market has delivered.
func (a *agent) loop(ctx context.Context, onTick func(), onMsg func(wire.Message)) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.drain(onMsg)
			onTick()
		case <-a.box.Wake():
			a.drain(onMsg)
		}
	}
}

func (a *agent) drain(onMsg func(wire.Message)) {
	for {
		msg, ok := a.box.Poll()
		if !ok {
			return
		}
		onMsg(msg)
	}
}

func (a *agent) submit(side model.Side, qty, price float64, unbounded bool) {
	a.gw.Send(a.ref, wire.NewSubmit(side, qty, price, unbounded))
}

func (a *agent) cancel(id int64) {
	a.gw.Send(a.ref, wire.NewCancel(id))
}

// faultState is shared by participants that can be taken down by the fault
// injector.
type faultState struct {
	remaining int
}

// hit records an injected outage.
func (f *faultState) hit(outageTicks int) {
	f.remaining = outageTicks
}

// idle burns one faulted tick and reports whether the participant should
// skip its periodic action.
func (f *faultState) idle() bool {
	if f.remaining <= 0 {
		return false
	}
	f.remaining--
	return true
}
