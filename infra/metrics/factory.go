package metrics

import (
	coremetrics "github.com/cnergy/cnergy/core/metrics"
	"github.com/cnergy/cnergy/infra/logger"
)

// NewSink builds the configured sink stack. Prometheus and Influx sinks are
// combined through a MultiSink; with neither enabled a NopSink is returned so
// callers never need a nil check.
func NewSink(cfg coremetrics.Config, log logger.Logger) (coremetrics.MetricsSink, error) {
	var sinks []coremetrics.MetricsSink
	if cfg.PrometheusEnabled {
		s, err := NewPromSink(cfg)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if cfg.InfluxEnabled {
		s := NewInfluxSinkWithFallback(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
		if _, nop := s.(coremetrics.NopSink); nop && log != nil {
			log.Warnf("influx sink unavailable, metrics will be dropped")
		}
		sinks = append(sinks, s)
	}
	switch len(sinks) {
	case 0:
		return coremetrics.NopSink{}, nil
	case 1:
		return sinks[0], nil
	default:
		return NewMultiSink(sinks...), nil
	}
}
