package sim

import (
	"context"
	"time"

	"golang.org/x/exp/rand"

	"github.com/cnergy/cnergy/core/logger"
	"github.com/cnergy/cnergy/core/model"
	"github.com/cnergy/cnergy/core/wire"
)

// FaultInjector periodically knocks out a random producer for a fixed number
// of ticks, exercising the market's reaction to lost supply.
type FaultInjector struct {
	cfg     FaultConfig
	deliver Deliver
	log     logger.Logger

	interval time.Duration
	rng      *rand.Rand
}

// NewFaultInjector creates the injector. The interval is the market tick
// period; faults fire every cfg.PeriodTicks of them.
func NewFaultInjector(cfg FaultConfig, deliver Deliver, log logger.Logger, interval time.Duration) *FaultInjector {
	cfg.SetDefaults()
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &FaultInjector{
		cfg:      cfg,
		deliver:  deliver,
		log:      log,
		interval: interval,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Ref returns the injector's address.
func (f *FaultInjector) Ref() model.Ref { return "fault-injector" }

// Run injects faults until the context is canceled.
func (f *FaultInjector) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval * time.Duration(f.cfg.PeriodTicks))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.Step()
		}
	}
}

// Step picks a uniformly random victim and delivers the outage.
func (f *FaultInjector) Step() {
	if len(f.cfg.Targets) == 0 {
		return
	}
	victim := model.Ref(f.cfg.Targets[f.rng.Intn(len(f.cfg.Targets))])
	f.deliver(victim, wire.NewFault(f.cfg.DurationTicks))
	f.log.Infof("fault injected on %s for %d ticks", victim, f.cfg.DurationTicks)
}
