// Package app wires the clearing engine, the participant fleet and the
// observability stack into a runnable service.
package app

import (
	"context"
	"fmt"

	"github.com/cnergy/cnergy/config"
	"github.com/cnergy/cnergy/core/market"
	coremetrics "github.com/cnergy/cnergy/core/metrics"
	"github.com/cnergy/cnergy/infra/logger"
	"github.com/cnergy/cnergy/infra/metrics"
	"github.com/cnergy/cnergy/infra/mqtt"
	"github.com/cnergy/cnergy/sim"
)

// Service orchestrates one clearing engine and its fleet.
type Service struct {
	cfg  *config.Config
	fan  *market.Fanout
	log  logger.Logger
	sink coremetrics.MetricsSink
	run  func(ctx context.Context)
	gate sim.Gateway
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	fan := market.NewFanout()

	sink, err := metrics.NewSink(cfg.Metrics, logg)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	svc := &Service{cfg: cfg, fan: fan, log: logg, sink: sink}
	switch cfg.Market.Mode {
	case market.ModeAuction:
		eng, err := market.NewAuction(cfg.Market, fan, sink, logger.New("auction"))
		if err != nil {
			return nil, fmt.Errorf("auction engine: %w", err)
		}
		svc.run = eng.Run
		svc.gate = eng
	default:
		eng, err := market.NewEngine(cfg.Market, fan, sink, logger.New("market"))
		if err != nil {
			return nil, fmt.Errorf("market engine: %w", err)
		}
		svc.run = eng.Run
		svc.gate = eng
	}
	return svc, nil
}

// Gateway exposes the engine's ingestion side, mainly for the CLI.
func (s *Service) Gateway() sim.Gateway { return s.gate }

// Fanout exposes the notification fan-out.
func (s *Service) Fanout() *market.Fanout { return s.fan }

// Run starts the engine, the fleet and the observers, then blocks until the
// context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go s.run(ctx)

	metrics.StartEventCollector(ctx, s.fan, s.sink)
	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	if s.cfg.MQTT.Enabled {
		bridge, err := mqtt.NewBridge(s.cfg.MQTT)
		if err != nil {
			s.log.Errorf("mqtt bridge unavailable: %v", err)
		} else {
			go bridge.Run(ctx, s.fan)
		}
	}

	if s.cfg.Fleet.Enabled {
		fleet := sim.NewFleet(s.cfg.Fleet, s.fan, s.gate, s.cfg.Market.TickInterval())
		for _, p := range fleet {
			go p.Run(ctx)
		}
		dash := sim.NewDashboard(s.fan, logger.New("dashboard"), 10*s.cfg.Market.TickInterval())
		go dash.Run(ctx)
	}

	<-ctx.Done()
	s.fan.Close()
	return nil
}
