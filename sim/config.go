package sim

// Defaults describe the built-in scenario: a 50 kW solar and wind park with
// storage, an always-on backup producer, one aggregated consumer, a battery
// and a small proprietary trader.

// RenewableConfig parameterizes a weather-driven producer.
type RenewableConfig struct {
	Name            string  `json:"name"`
	Capacity        float64 `json:"capacity"`
	HasStorage      bool    `json:"has_storage"`
	StorageCapacity float64 `json:"storage_capacity"`
	CoeffGood       float64 `json:"coeff_good"`
	CoeffBad        float64 `json:"coeff_bad"`
	BaseCost        float64 `json:"base_cost"`
	Margin          float64 `json:"margin"`
	Alpha           float64 `json:"alpha"`
}

// SetDefaults applies the default solar park parameters.
func (c *RenewableConfig) SetDefaults() {
	if c.Capacity == 0 {
		c.Capacity = 50
	}
	if c.StorageCapacity == 0 {
		c.StorageCapacity = 100
	}
	if c.CoeffGood == 0 {
		c.CoeffGood = 1.0
	}
	if c.CoeffBad == 0 {
		c.CoeffBad = 0.4
	}
	if c.BaseCost == 0 {
		c.BaseCost = 0.035
	}
	if c.Margin == 0 {
		c.Margin = 0.005
	}
	if c.Alpha == 0 {
		c.Alpha = 0.03
	}
}

// ConventionalConfig parameterizes the unbounded backup producer.
type ConventionalConfig struct {
	Name   string  `json:"name"`
	Margin float64 `json:"margin"`
}

// SetDefaults applies the default backup margin.
func (c *ConventionalConfig) SetDefaults() {
	if c.Name == "" {
		c.Name = "conventional"
	}
	if c.Margin == 0 {
		c.Margin = 0.05
	}
}

// ConsumerConfig parameterizes the aggregated consumer.
type ConsumerConfig struct {
	Name       string    `json:"name"`
	Margin     float64   `json:"margin"`
	Alpha      float64   `json:"alpha"`
	UtilityCap float64   `json:"utility_cap"`
	HourlyLoad []float64 `json:"hourly_load"`
}

// SetDefaults applies the default load curve.
func (c *ConsumerConfig) SetDefaults() {
	if c.Name == "" {
		c.Name = "consumer"
	}
	if c.Margin == 0 {
		c.Margin = 0.005
	}
	if c.Alpha == 0 {
		c.Alpha = 0.03
	}
	if c.UtilityCap == 0 {
		c.UtilityCap = 0.12
	}
	if len(c.HourlyLoad) != 24 {
		c.HourlyLoad = []float64{
			1, 1, 1, 1, 1, 1, 2, 3, 3, 2, 2, 2,
			2, 2, 2, 2, 3, 5, 5, 4, 3, 2, 1, 1,
		}
	}
}

// BatteryConfig parameterizes the storage arbitrageur.
type BatteryConfig struct {
	Name       string  `json:"name"`
	Capacity   float64 `json:"capacity"`
	InitialSoC float64 `json:"initial_soc"`
	Margin     float64 `json:"margin"`
	ChargeRate float64 `json:"charge_rate"`
}

// SetDefaults applies the default battery parameters.
func (c *BatteryConfig) SetDefaults() {
	if c.Name == "" {
		c.Name = "battery"
	}
	if c.Capacity == 0 {
		c.Capacity = 100
	}
	if c.InitialSoC == 0 {
		c.InitialSoC = 50
	}
	if c.Margin == 0 {
		c.Margin = 0.01
	}
	if c.ChargeRate == 0 {
		c.ChargeRate = 10
	}
}

// TraderConfig parameterizes the proprietary trader.
type TraderConfig struct {
	Name      string  `json:"name"`
	Margin    float64 `json:"margin"`
	PosLimit  float64 `json:"pos_limit"`
	OrderSize float64 `json:"order_size"`
}

// SetDefaults applies the default trader parameters.
func (c *TraderConfig) SetDefaults() {
	if c.Name == "" {
		c.Name = "trader"
	}
	if c.Margin == 0 {
		c.Margin = 0.010
	}
	if c.PosLimit == 0 {
		c.PosLimit = 10
	}
	if c.OrderSize == 0 {
		c.OrderSize = 50
	}
}

// WeatherConfig parameterizes the weather generator.
type WeatherConfig struct {
	PeriodTicks int     `json:"period_ticks"`
	SolarProb   float64 `json:"solar_prob"`
	WindProb    float64 `json:"wind_prob"`
	Seed        uint64  `json:"seed"`
}

// SetDefaults applies the default weather parameters.
func (c *WeatherConfig) SetDefaults() {
	if c.PeriodTicks == 0 {
		c.PeriodTicks = 3
	}
	if c.SolarProb == 0 {
		c.SolarProb = 0.5
	}
	if c.WindProb == 0 {
		c.WindProb = 0.5
	}
}

// FaultConfig parameterizes the fault injector.
type FaultConfig struct {
	PeriodTicks   int      `json:"period_ticks"`
	DurationTicks int      `json:"duration_ticks"`
	Targets       []string `json:"targets"`
	Seed          uint64   `json:"seed"`
}

// SetDefaults applies the default fault cadence.
func (c *FaultConfig) SetDefaults() {
	if c.PeriodTicks == 0 {
		c.PeriodTicks = 10
	}
	if c.DurationTicks == 0 {
		c.DurationTicks = 5
	}
}

// Config assembles the full fleet.
type Config struct {
	Enabled      bool               `json:"enabled"`
	Solar        RenewableConfig    `json:"solar"`
	Wind         RenewableConfig    `json:"wind"`
	Conventional ConventionalConfig `json:"conventional"`
	Consumer     ConsumerConfig     `json:"consumer"`
	Battery      BatteryConfig      `json:"battery"`
	Trader       TraderConfig       `json:"trader"`
	Weather      WeatherConfig      `json:"weather"`
	Fault        FaultConfig        `json:"fault"`
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	if c.Solar.Name == "" {
		c.Solar.Name = "solar"
	}
	c.Solar.SetDefaults()
	if c.Wind.Name == "" {
		c.Wind.Name = "wind"
		c.Wind.CoeffBad = 0.2
	}
	c.Wind.SetDefaults()
	c.Conventional.SetDefaults()
	c.Consumer.SetDefaults()
	c.Battery.SetDefaults()
	c.Trader.SetDefaults()
	c.Weather.SetDefaults()
	c.Fault.SetDefaults()
	if len(c.Fault.Targets) == 0 {
		c.Fault.Targets = []string{c.Solar.Name, c.Wind.Name, c.Conventional.Name}
	}
}
