package sim

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/cnergy/cnergy/core/logger"
	"github.com/cnergy/cnergy/core/model"
	"github.com/cnergy/cnergy/core/wire"
)

// Deliver pushes a message into a participant's mailbox. The fan-out's Send
// satisfies it.
type Deliver func(ref model.Ref, msg wire.Message)

// Weather advances a logical hour every period and broadcasts sun and wind
// conditions drawn as independent Bernoulli trials.
type Weather struct {
	cfg     WeatherConfig
	deliver Deliver
	targets []model.Ref
	log     logger.Logger

	interval time.Duration
	sun      distuv.Bernoulli
	wind     distuv.Bernoulli
	tick     int
}

// NewWeather creates the weather generator. The interval is the market tick
// period; weather updates fire every cfg.PeriodTicks of them.
func NewWeather(cfg WeatherConfig, deliver Deliver, targets []model.Ref, log logger.Logger, interval time.Duration) *Weather {
	cfg.SetDefaults()
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	src := rand.NewSource(seed)
	if interval <= 0 {
		interval = time.Second
	}
	return &Weather{
		cfg:      cfg,
		deliver:  deliver,
		targets:  targets,
		log:      log,
		interval: interval,
		sun:      distuv.Bernoulli{P: cfg.SolarProb, Src: src},
		wind:     distuv.Bernoulli{P: cfg.WindProb, Src: src},
	}
}

// Ref returns the generator's address. It never trades, but having an
// address keeps the fleet uniform.
func (w *Weather) Ref() model.Ref { return "weather" }

// Run emits weather updates until the context is canceled.
func (w *Weather) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval * time.Duration(w.cfg.PeriodTicks))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Step()
		}
	}
}

// Step advances the logical clock by one period and broadcasts the drawn
// conditions.
func (w *Weather) Step() {
	w.tick += w.cfg.PeriodTicks
	hour := w.tick % 24

	timeToken := "NIGHT"
	if hour >= 7 && hour <= 21 {
		timeToken = "DAY"
	}
	sunToken := "CLOUDY"
	if w.sun.Rand() == 1 {
		sunToken = "SUNNY"
	}
	windToken := "CALM"
	if w.wind.Rand() == 1 {
		windToken = "WINDY"
	}

	msg := wire.NewWeather(wire.Weather{Sun: sunToken, Wind: windToken, Time: timeToken, Hour: hour})
	for _, ref := range w.targets {
		w.deliver(ref, msg)
	}
	w.log.Debugf("weather update: %s at %s, sun %s, wind %s", timeToken, fmt.Sprintf("%02d:00", hour), sunToken, windToken)
}
