package market

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/cnergy/cnergy/core/metrics"
	"github.com/cnergy/cnergy/core/model"
	"github.com/cnergy/cnergy/core/wire"
)

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *Fanout) {
	t.Helper()
	ResetMetrics(prometheus.NewRegistry())
	cfg.SetDefaults()
	fan := NewFanout()
	eng, err := NewEngine(cfg, fan, nil, nopLogger{})
	require.NoError(t, err)
	return eng, fan
}

// drain empties a participant mailbox into a slice.
func drainBox(box interface {
	Poll() (wire.Message, bool)
}) []wire.Message {
	var out []wire.Message
	for {
		msg, ok := box.Poll()
		if !ok {
			return out
		}
		out = append(out, msg)
	}
}

func kinds(msgs []wire.Message) []wire.Kind {
	out := make([]wire.Kind, len(msgs))
	for i, m := range msgs {
		out[i] = m.Kind
	}
	return out
}

func TestEngineMatchesAtRestingAskPrice(t *testing.T) {
	eng, fan := newTestEngine(t, Config{})
	solar := fan.Register("solar")
	consumer := fan.Register("consumer")

	eng.Send("solar", wire.NewSubmit(model.Sell, 10, 0.05, false))
	eng.Drain()
	drainBox(solar)
	drainBox(consumer)

	eng.Send("consumer", wire.NewSubmit(model.Buy, 6, 0.06, false))
	eng.Drain()

	msgs := drainBox(consumer)
	require.Equal(t, []wire.Kind{wire.KindAccept, wire.KindFill, wire.KindPriceTick}, kinds(msgs))
	fill, err := wire.ParseFill(msgs[1])
	require.NoError(t, err)
	assert.Equal(t, 6.0, fill.Qty)
	assert.Equal(t, 0.05, fill.Price, "trade executes at the resting ask's limit")
	assert.Equal(t, model.Ref("solar"), fill.From)

	msgs = drainBox(solar)
	require.Equal(t, []wire.Kind{wire.KindFill, wire.KindPriceTick}, kinds(msgs))
	tick, err := wire.ParsePriceTick(msgs[1])
	require.NoError(t, err)
	assert.Equal(t, 0.05, tick)

	// the ask rests with its remainder, the bid is gone
	ask := eng.Book().Best(model.Sell)
	require.NotNil(t, ask)
	assert.InDelta(t, 4.0, ask.Qty, 1e-9)
	assert.Nil(t, eng.Book().Best(model.Buy))
	assert.Equal(t, 0.05, eng.LastPrice())
}

func TestEngineFIFOAtEqualPrice(t *testing.T) {
	eng, fan := newTestEngine(t, Config{})
	first := fan.Register("first")
	second := fan.Register("second")
	buyer := fan.Register("buyer")

	eng.Send("first", wire.NewSubmit(model.Sell, 5, 0.05, false))
	eng.Send("second", wire.NewSubmit(model.Sell, 5, 0.05, false))
	eng.Send("buyer", wire.NewSubmit(model.Buy, 5, 0.05, false))
	eng.Drain()

	msgs := drainBox(first)
	assert.Contains(t, kinds(msgs), wire.KindFill, "earlier ask fills first")
	msgs = drainBox(second)
	assert.NotContains(t, kinds(msgs), wire.KindFill, "later ask still rests")
	drainBox(buyer)
	assert.Equal(t, 1, eng.Book().Depth(model.Sell))
}

func TestEngineExpiryNotifiesOnce(t *testing.T) {
	eng, fan := newTestEngine(t, Config{OrderTTLTicks: 3})
	box := fan.Register("bidder")

	eng.Send("bidder", wire.NewSubmit(model.Buy, 2, 0.04, false))
	eng.Drain()
	drainBox(box)

	var rejects []wire.Reject
	for i := 0; i < 5; i++ {
		eng.AdvanceTick()
		for _, msg := range drainBox(box) {
			if msg.Kind == wire.KindReject {
				rej, err := wire.ParseReject(msg)
				require.NoError(t, err)
				rejects = append(rejects, rej)
			}
		}
	}
	require.Len(t, rejects, 1, "exactly one terminal notification")
	assert.Equal(t, wire.ReasonExpired, rejects[0].Reason)
	assert.Nil(t, eng.Book().Best(model.Buy))
}

func TestEngineRejectsNonPositivePrice(t *testing.T) {
	eng, fan := newTestEngine(t, Config{})
	box := fan.Register("bidder")

	eng.Send("bidder", wire.NewSubmit(model.Buy, 5, -0.01, false))
	eng.Drain()

	msgs := drainBox(box)
	require.Equal(t, []wire.Kind{wire.KindReject}, kinds(msgs), "no ACCEPT, no book mutation")
	rej, err := wire.ParseReject(msgs[0])
	require.NoError(t, err)
	assert.Equal(t, wire.ReasonInvalidPrice, rej.Reason)
	assert.Equal(t, 0, eng.Book().Depth(model.Buy))
}

func TestEngineRejectsMalformedSubmit(t *testing.T) {
	eng, fan := newTestEngine(t, Config{})
	box := fan.Register("sender")

	eng.Send("sender", wire.Message{Kind: wire.KindSubmit, Fields: map[string]string{"side": "buy"}})
	eng.Drain()

	msgs := drainBox(box)
	require.Equal(t, []wire.Kind{wire.KindReject}, kinds(msgs))
	rej, err := wire.ParseReject(msgs[0])
	require.NoError(t, err)
	assert.Equal(t, int64(0), rej.ID, "no order was created")
	assert.Equal(t, wire.ReasonMalformed, rej.Reason)
}

func TestEngineCancel(t *testing.T) {
	eng, fan := newTestEngine(t, Config{})
	box := fan.Register("owner")

	eng.Send("owner", wire.NewSubmit(model.Sell, 5, 0.05, false))
	eng.Drain()
	msgs := drainBox(box)
	acc, err := wire.ParseAccept(msgs[0])
	require.NoError(t, err)

	eng.Send("owner", wire.NewCancel(acc.ID))
	eng.Drain()
	msgs = drainBox(box)
	require.Equal(t, []wire.Kind{wire.KindReject}, kinds(msgs))
	rej, err := wire.ParseReject(msgs[0])
	require.NoError(t, err)
	assert.Equal(t, wire.ReasonCancelled, rej.Reason)

	// cancelling again is a silent no-op
	eng.Send("owner", wire.NewCancel(acc.ID))
	eng.Drain()
	assert.Empty(t, drainBox(box))
}

func TestEngineUnboundedAskNeverExhausts(t *testing.T) {
	eng, fan := newTestEngine(t, Config{})
	backup := fan.Register("backup")
	buyer := fan.Register("buyer")

	eng.Send("backup", wire.NewSubmit(model.Sell, 0, 0.08, true))
	eng.Send("buyer", wire.NewSubmit(model.Buy, 7, 0.09, false))
	eng.Drain()

	var fills []wire.Fill
	for _, msg := range drainBox(buyer) {
		if msg.Kind == wire.KindFill {
			fill, err := wire.ParseFill(msg)
			require.NoError(t, err)
			fills = append(fills, fill)
		}
	}
	require.Len(t, fills, 1)
	assert.Equal(t, 7.0, fills[0].Qty)
	assert.Equal(t, 0.08, fills[0].Price)

	drainBox(backup)
	ask := eng.Book().Best(model.Sell)
	require.NotNil(t, ask, "unbounded ask keeps resting")
	assert.True(t, ask.Unbounded)
	assert.False(t, ask.Filled())
}

func TestEngineRefusesDoubleUnboundedCross(t *testing.T) {
	eng, fan := newTestEngine(t, Config{})
	fan.Register("a")
	fan.Register("b")

	eng.Send("a", wire.NewSubmit(model.Sell, 0, 0.05, true))
	eng.Send("b", wire.NewSubmit(model.Buy, 0, 0.06, true))
	eng.Drain()

	assert.NotNil(t, eng.Book().Best(model.Sell))
	assert.NotNil(t, eng.Book().Best(model.Buy))
	assert.Equal(t, 0.06, eng.LastPrice(), "no trade, price unchanged")
}

func TestEnginePriceTickPersistsWithoutTrades(t *testing.T) {
	eng, fan := newTestEngine(t, Config{})
	seller := fan.Register("seller")
	buyer := fan.Register("buyer")

	eng.Send("seller", wire.NewSubmit(model.Sell, 5, 0.04, false))
	eng.Send("buyer", wire.NewSubmit(model.Buy, 5, 0.05, false))
	eng.Drain()
	drainBox(seller)
	drainBox(buyer)
	require.Equal(t, 0.04, eng.LastPrice())

	// a submission that doesn't trade still broadcasts the old price
	eng.Send("seller", wire.NewSubmit(model.Sell, 5, 0.09, false))
	eng.Drain()
	msgs := drainBox(buyer)
	require.Equal(t, []wire.Kind{wire.KindPriceTick}, kinds(msgs))
	tick, err := wire.ParsePriceTick(msgs[0])
	require.NoError(t, err)
	assert.Equal(t, 0.04, tick)
}

// countingSink tallies every record it receives.
type countingSink struct {
	mu        sync.Mutex
	trades    int
	orderFlow int
	prices    int
}

func (s *countingSink) RecordTrades(recs []coremetrics.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades += len(recs)
	return nil
}

func (s *countingSink) RecordOrderFlow(coremetrics.OrderFlowRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderFlow++
	return nil
}

func (s *countingSink) RecordPrice(float64, int64, time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices++
	return nil
}

func (s *countingSink) counts() (int, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trades, s.orderFlow, s.prices
}

// The sink belongs to the engine for trades only; order-flow and price
// series come from the observer-bus collector, so the engine must not
// record them itself or they would be counted twice.
func TestEngineSinkReceivesOnlyTrades(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())
	cfg := Config{}
	cfg.SetDefaults()
	fan := NewFanout()
	sink := &countingSink{}
	eng, err := NewEngine(cfg, fan, sink, nopLogger{})
	require.NoError(t, err)
	fan.Register("solar")
	fan.Register("consumer")

	eng.Send("solar", wire.NewSubmit(model.Sell, 10, 0.05, false))
	eng.Send("consumer", wire.NewSubmit(model.Buy, 6, 0.06, false))
	eng.Send("consumer", wire.NewCancel(99))
	eng.AdvanceTick() // matches, then expires the resting ask remainder

	trades, orderFlow, prices := sink.counts()
	assert.Equal(t, 1, trades)
	assert.Zero(t, orderFlow, "order flow is the collector's job")
	assert.Zero(t, prices, "price series is the collector's job")
}
