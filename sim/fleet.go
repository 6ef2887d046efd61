package sim

import (
	"time"

	"github.com/cnergy/cnergy/core/market"
	"github.com/cnergy/cnergy/core/model"
	"github.com/cnergy/cnergy/infra/logger"
)

// NewFleet builds the full participant fleet against the given fan-out and
// gateway. Every participant gets its mailbox registered before any of them
// starts trading.
func NewFleet(cfg Config, fan *market.Fanout, gw Gateway, interval time.Duration) []Participant {
	cfg.SetDefaults()

	solar := NewSolar(cfg.Solar, fan.Register(model.Ref(cfg.Solar.Name)), gw, logger.New("solar"), interval)
	wind := NewWind(cfg.Wind, fan.Register(model.Ref(cfg.Wind.Name)), gw, logger.New("wind"), interval)
	conventional := NewConventional(cfg.Conventional, fan.Register(model.Ref(cfg.Conventional.Name)), gw, logger.New("conventional"), interval)
	consumer := NewConsumer(cfg.Consumer, fan.Register(model.Ref(cfg.Consumer.Name)), gw, logger.New("consumer"), interval)
	battery := NewBattery(cfg.Battery, fan.Register(model.Ref(cfg.Battery.Name)), gw, logger.New("battery"), interval)
	trader := NewTrader(cfg.Trader, fan.Register(model.Ref(cfg.Trader.Name)), gw, logger.New("trader"), interval)

	weather := NewWeather(cfg.Weather, fan.Send, []model.Ref{solar.Ref(), wind.Ref()}, logger.New("weather"), interval)
	faults := NewFaultInjector(cfg.Fault, fan.Send, logger.New("fault-injector"), interval)

	return []Participant{solar, wind, conventional, consumer, battery, trader, weather, faults}
}
