package sim

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnergy/cnergy/core/market"
	"github.com/cnergy/cnergy/core/model"
	"github.com/cnergy/cnergy/core/wire"
	"github.com/cnergy/cnergy/infra/logger"
	"github.com/cnergy/cnergy/internal/mailbox"
)

// fakeGateway records what a participant sends to the market.
type fakeGateway struct {
	msgs []wire.Message
	from []model.Ref
}

func (g *fakeGateway) Send(from model.Ref, msg wire.Message) {
	g.from = append(g.from, from)
	g.msgs = append(g.msgs, msg)
}

func (g *fakeGateway) lastSubmit(t *testing.T) wire.Submit {
	t.Helper()
	for i := len(g.msgs) - 1; i >= 0; i-- {
		if g.msgs[i].Kind == wire.KindSubmit {
			sub, err := wire.ParseSubmit(g.msgs[i])
			require.NoError(t, err)
			return sub
		}
	}
	t.Fatal("no SUBMIT recorded")
	return wire.Submit{}
}

func (g *fakeGateway) countKind(k wire.Kind) int {
	n := 0
	for _, m := range g.msgs {
		if m.Kind == k {
			n++
		}
	}
	return n
}

func newBox() *mailbox.Mailbox[wire.Message] {
	return mailbox.New[wire.Message]()
}

func TestConsumerBidsLoadCurve(t *testing.T) {
	gw := &fakeGateway{}
	c := NewConsumer(ConsumerConfig{}, newBox(), gw, logger.NopLogger{}, time.Second)

	c.onTick() // hour 1, load 1
	sub := gw.lastSubmit(t)
	assert.Equal(t, model.Buy, sub.Side)
	assert.Equal(t, 1.0, sub.Qty)
	assert.InDelta(t, 0.125, sub.Price, 1e-9, "utility cap plus margin")
}

func TestConsumerCarriesBacklog(t *testing.T) {
	gw := &fakeGateway{}
	c := NewConsumer(ConsumerConfig{}, newBox(), gw, logger.NopLogger{}, time.Second)

	c.onTick()
	c.onMsg(wire.NewAccept(model.Order{ID: 11, Side: model.Buy, Qty: 1, Price: 0.125}))
	require.Equal(t, int64(11), c.openID)

	// nothing was served; the demand is cancelled and rolls into the next bid
	c.onTick()
	assert.Equal(t, 1, gw.countKind(wire.KindCancel))
	sub := gw.lastSubmit(t)
	assert.Equal(t, 2.0, sub.Qty, "hour 2 load plus 1 kWh backlog")
}

func TestConsumerRejectionRaisesMargin(t *testing.T) {
	gw := &fakeGateway{}
	c := NewConsumer(ConsumerConfig{}, newBox(), gw, logger.NopLogger{}, time.Second)

	c.onTick()
	c.onMsg(wire.NewAccept(model.Order{ID: 5, Side: model.Buy, Qty: 1, Price: 0.125}))
	before := c.margin
	c.onMsg(wire.NewReject(5, wire.ReasonExpired))

	assert.Greater(t, c.margin, before)
	assert.Equal(t, 1.0, c.backlog)
	assert.Equal(t, int64(0), c.openID)
}

func TestConsumerFullServiceRelaxesMargin(t *testing.T) {
	gw := &fakeGateway{}
	c := NewConsumer(ConsumerConfig{Margin: 0.03}, newBox(), gw, logger.NopLogger{}, time.Second)

	c.onTick()
	c.onMsg(wire.NewAccept(model.Order{ID: 5, Side: model.Buy, Qty: 1, Price: 0.15}))
	before := c.margin
	c.onMsg(wire.NewFill(5, 1, 0.05, "solar"))

	assert.Less(t, c.margin, before, "a fully served bid lowers the willingness to pay")
	assert.Equal(t, 0.0, c.backlog)
}

func TestBatteryStanceFollowsSoC(t *testing.T) {
	tests := []struct {
		name  string
		soc   float64
		side  model.Side
		price float64
	}{
		{"nearly empty bids over the rate", 10, model.Buy, 0.07},
		{"low charge bids under the rate", 40, model.Buy, 0.05},
		{"high charge sells at the rate", 60, model.Sell, 0.06},
		{"nearly full sells above the rate", 90, model.Sell, 0.07},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{}
			b := NewBattery(BatteryConfig{InitialSoC: tt.soc}, newBox(), gw, logger.NopLogger{}, time.Second)
			b.onMsg(wire.NewPriceTick(0.06))

			b.onTick()
			sub := gw.lastSubmit(t)
			assert.Equal(t, tt.side, sub.Side)
			assert.InDelta(t, tt.price, sub.Price, 1e-9)
		})
	}
}

// A deeply discharged battery must still be able to recharge on the
// continuous market, so its bid has to carry a price the matcher accepts.
func TestBatteryEmptyBidCrossesContinuousBook(t *testing.T) {
	market.ResetMetrics(prometheus.NewRegistry())
	cfg := market.Config{}
	cfg.SetDefaults()
	fan := market.NewFanout()
	eng, err := market.NewEngine(cfg, fan, nil, logger.NopLogger{})
	require.NoError(t, err)

	box := fan.Register("battery")
	fan.Register("solar")
	b := NewBattery(BatteryConfig{Name: "battery", InitialSoC: 10}, box, eng, logger.NopLogger{}, time.Second)

	eng.Send("solar", wire.NewSubmit(model.Sell, 50, 0.06, false))
	b.onTick()
	eng.Drain()

	for {
		msg, ok := box.Poll()
		if !ok {
			break
		}
		require.NotEqual(t, wire.KindReject, msg.Kind, "bid must not be rejected: %s", msg.Encode())
		b.onMsg(msg)
	}
	assert.Equal(t, 20.0, b.soc, "bought a full charge-rate slice")
}

func TestBatteryChargeMovesWithFills(t *testing.T) {
	gw := &fakeGateway{}
	b := NewBattery(BatteryConfig{InitialSoC: 40}, newBox(), gw, logger.NopLogger{}, time.Second)
	b.onMsg(wire.NewPriceTick(0.06))

	b.onTick() // buy stance
	b.onMsg(wire.NewAccept(model.Order{ID: 3, Side: model.Buy, Qty: 10, Price: 0.05}))
	b.onMsg(wire.NewFill(3, 10, 0.05, "solar"))

	assert.Equal(t, 50.0, b.soc)
	assert.Equal(t, 0.05, b.lastPrice)
}

func TestBatteryAwardRoleDecidesDirection(t *testing.T) {
	gw := &fakeGateway{}
	b := NewBattery(BatteryConfig{InitialSoC: 60}, newBox(), gw, logger.NopLogger{}, time.Second)

	b.onMsg(wire.NewAward(10, 0.05, wire.RoleProducer))
	assert.Equal(t, 50.0, b.soc, "a producer award discharges")

	b.onMsg(wire.NewAward(5, 0.04, wire.RoleConsumer))
	assert.Equal(t, 55.0, b.soc, "a consumer award charges")
}

func TestBatteryFaultIdles(t *testing.T) {
	gw := &fakeGateway{}
	b := NewBattery(BatteryConfig{}, newBox(), gw, logger.NopLogger{}, time.Second)

	b.onMsg(wire.NewFault(2))
	b.onTick()
	b.onTick()
	assert.Empty(t, gw.msgs, "faulted battery stays out of the market")

	b.onTick()
	assert.Equal(t, 1, gw.countKind(wire.KindSubmit))
}

func TestTraderRespectsPositionLimit(t *testing.T) {
	gw := &fakeGateway{}
	tr := NewTrader(TraderConfig{PosLimit: 10, OrderSize: 10}, newBox(), gw, logger.NopLogger{}, time.Second)

	tr.onTick()
	sub := gw.lastSubmit(t)
	assert.Equal(t, model.Buy, sub.Side)
	assert.InDelta(t, 0.05, sub.Price, 1e-9, "last price less margin")

	tr.onMsg(wire.NewAccept(model.Order{ID: 2, Side: model.Buy, Qty: 10, Price: 0.05}))
	tr.onMsg(wire.NewFill(2, 10, 0.05, "wind"))
	require.Equal(t, 10.0, tr.position)

	tr.onTick()
	assert.Equal(t, 1, gw.countKind(wire.KindSubmit), "position limit stops new bids")
}

func TestTraderMarginDecaysWithFills(t *testing.T) {
	gw := &fakeGateway{}
	tr := NewTrader(TraderConfig{}, newBox(), gw, logger.NopLogger{}, time.Second)

	tr.onTick()
	before := tr.margin
	tr.onMsg(wire.NewAccept(model.Order{ID: 1, Side: model.Buy, Qty: 1, Price: 0.05}))
	tr.onMsg(wire.NewFill(1, 1, 0.05, "solar"))

	assert.Less(t, tr.margin, before)
}

func TestSolarGoesDarkAtNight(t *testing.T) {
	gw := &fakeGateway{}
	r := NewSolar(RenewableConfig{Name: "solar"}, newBox(), gw, logger.NopLogger{}, time.Second)

	r.onMsg(wire.NewWeather(wire.Weather{Sun: "SUNNY", Wind: "CALM", Time: "NIGHT", Hour: 2}))
	r.onTick()
	assert.Empty(t, gw.msgs, "no sun, no storage, nothing to offer")

	r.onMsg(wire.NewWeather(wire.Weather{Sun: "SUNNY", Wind: "CALM", Time: "DAY", Hour: 12}))
	r.onTick()
	sub := gw.lastSubmit(t)
	assert.Equal(t, model.Sell, sub.Side)
	assert.Equal(t, 50.0, sub.Qty, "full capacity in good weather")
}

func TestWindIgnoresDayNight(t *testing.T) {
	gw := &fakeGateway{}
	r := NewWind(RenewableConfig{Name: "wind", CoeffBad: 0.2}, newBox(), gw, logger.NopLogger{}, time.Second)

	r.onMsg(wire.NewWeather(wire.Weather{Sun: "CLOUDY", Wind: "WINDY", Time: "NIGHT", Hour: 2}))
	r.onTick()
	sub := gw.lastSubmit(t)
	assert.Equal(t, 50.0, sub.Qty)

	r.onMsg(wire.NewWeather(wire.Weather{Sun: "CLOUDY", Wind: "CALM", Time: "NIGHT", Hour: 3}))
	r.onMsg(wire.NewAccept(model.Order{ID: 4, Side: model.Sell, Qty: 50, Price: 0.04}))
	r.onMsg(wire.NewFill(4, 50, 0.04, "consumer"))
	r.onTick()
	sub = gw.lastSubmit(t)
	assert.Equal(t, 10.0, sub.Qty, "bad weather derates to coeff_bad")
}

func TestRenewableStoresUnsoldEnergy(t *testing.T) {
	gw := &fakeGateway{}
	r := NewSolar(RenewableConfig{Name: "solar", HasStorage: true}, newBox(), gw, logger.NopLogger{}, time.Second)
	r.onMsg(wire.NewWeather(wire.Weather{Sun: "SUNNY", Wind: "CALM", Time: "DAY", Hour: 12}))

	r.onTick()
	r.onMsg(wire.NewAccept(model.Order{ID: 8, Side: model.Sell, Qty: 50, Price: 0.04}))
	// no fill arrives; the next tick withdraws the offer and banks the energy
	r.onTick()
	sub := gw.lastSubmit(t)
	assert.Equal(t, 100.0, sub.Qty, "stored 50 plus fresh 50")

	// storage is full, production is capped at the free headroom
	r.onMsg(wire.NewAccept(model.Order{ID: 9, Side: model.Sell, Qty: 100, Price: 0.04}))
	r.onTick()
	sub = gw.lastSubmit(t)
	assert.Equal(t, 100.0, sub.Qty)
}

func TestRenewableAwardAdjustsMargin(t *testing.T) {
	gw := &fakeGateway{}
	r := NewWind(RenewableConfig{Name: "wind"}, newBox(), gw, logger.NopLogger{}, time.Second)
	r.onMsg(wire.NewWeather(wire.Weather{Wind: "WINDY"}))

	r.onTick()
	r.onMsg(wire.NewAccept(model.Order{ID: 1, Side: model.Sell, Qty: 50, Price: 0.04}))

	before := r.margin
	r.onMsg(wire.NewAward(50, 0.05, wire.RoleProducer))
	assert.Less(t, r.margin, before, "a fully awarded offer lowers the ask")

	r.onTick()
	r.onMsg(wire.NewAccept(model.Order{ID: 2, Side: model.Sell, Qty: 50, Price: 0.04}))
	before = r.margin
	r.onMsg(wire.NewAward(5, 0.05, wire.RoleProducer))
	assert.Greater(t, r.margin, before, "a mostly unsold offer raises it")
}

func TestWeatherStepBroadcastsToTargets(t *testing.T) {
	var got []wire.Message
	var refs []model.Ref
	deliver := func(ref model.Ref, msg wire.Message) {
		refs = append(refs, ref)
		got = append(got, msg)
	}
	w := NewWeather(WeatherConfig{Seed: 7}, deliver, []model.Ref{"solar", "wind"}, logger.NopLogger{}, time.Second)

	w.Step()
	require.Len(t, got, 2)
	assert.Equal(t, []model.Ref{"solar", "wind"}, refs)

	weather, err := wire.ParseWeather(got[0])
	require.NoError(t, err)
	assert.Contains(t, []string{"SUNNY", "CLOUDY"}, weather.Sun)
	assert.Contains(t, []string{"WINDY", "CALM"}, weather.Wind)
	assert.Equal(t, got[0], got[1], "all targets see the same conditions")
}

func TestFaultInjectorPicksConfiguredTargets(t *testing.T) {
	var refs []model.Ref
	var msgs []wire.Message
	deliver := func(ref model.Ref, msg wire.Message) {
		refs = append(refs, ref)
		msgs = append(msgs, msg)
	}
	f := NewFaultInjector(FaultConfig{Seed: 3, Targets: []string{"solar", "wind"}}, deliver, logger.NopLogger{}, time.Second)

	for i := 0; i < 10; i++ {
		f.Step()
	}
	require.Len(t, msgs, 10)
	for i, ref := range refs {
		assert.Contains(t, []model.Ref{"solar", "wind"}, ref)
		outage, err := wire.ParseFault(msgs[i])
		require.NoError(t, err)
		assert.Equal(t, 5, outage, "default outage duration")
	}
}
