package market

import (
	"fmt"
	"time"
)

// Mode selects the clearing mechanism. An engine instance runs exactly one
// of the two, never both.
type Mode string

const (
	// ModeContinuous matches the book after every submission.
	ModeContinuous Mode = "continuous"
	// ModeAuction accumulates orders per interval and clears them at one
	// uniform price.
	ModeAuction Mode = "auction"
)

// Config defines the clearing engine parameters.
type Config struct {
	// Mode selects the clearing mechanism: "continuous" or "auction".
	Mode Mode `json:"mode"`
	// TickIntervalMS is the logical clock period in milliseconds.
	TickIntervalMS int `json:"tick_interval_ms"`
	// OrderTTLTicks is the number of ticks an unmatched order stays live.
	OrderTTLTicks int64 `json:"order_ttl_ticks"`
	// InitialPrice seeds the broadcast price before the first trade.
	InitialPrice float64 `json:"initial_price"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Mode == "" {
		c.Mode = ModeContinuous
	}
	if c.TickIntervalMS == 0 {
		c.TickIntervalMS = 1000
	}
	if c.OrderTTLTicks == 0 {
		c.OrderTTLTicks = 1
	}
	if c.InitialPrice == 0 {
		c.InitialPrice = 0.06
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Mode != ModeContinuous && c.Mode != ModeAuction {
		return fmt.Errorf("unknown market mode %q", c.Mode)
	}
	if c.TickIntervalMS <= 0 {
		return fmt.Errorf("tick_interval_ms must be positive")
	}
	if c.OrderTTLTicks < 1 {
		return fmt.Errorf("order_ttl_ticks must be at least 1")
	}
	return nil
}

// TickInterval returns the logical clock period.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMS) * time.Millisecond
}
