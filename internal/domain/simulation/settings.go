package simulation

import "time"

// Params are the inputs of Init
type Params struct {
	BufferSize       int
	ProducerCount    int
	ConsumerCount    int
	SimulationSpeed  time.Duration
	ProductionDelay  time.Duration
	ConsumptionDelay time.Duration
	DelayPolicy      string
}

// Limits bound the accepted Params
type Limits struct {
	MaxBufferSize int
	MaxWorkers    int
	MaxDelay      time.Duration
}

// Options configure an Engine for its whole lifetime
type Options struct {
	Limits          Limits
	Defaults        Params
	Backoff         time.Duration
	LogCapacity     int
	HistoryCapacity int
}

// DefaultParams mirrors the settings restored by Reset
func DefaultParams() Params {
	return Params{
		BufferSize:       5,
		ProducerCount:    2,
		ConsumerCount:    2,
		SimulationSpeed:  time.Second,
		ProductionDelay:  5 * time.Second,
		ConsumptionDelay: 5 * time.Second,
		DelayPolicy:      PolicyFixed,
	}
}

// DefaultOptions returns production-ready engine options
func DefaultOptions() Options {
	return Options{
		Limits: Limits{
			MaxBufferSize: 20,
			MaxWorkers:    20,
			MaxDelay:      5 * time.Second,
		},
		Defaults:        DefaultParams(),
		Backoff:         100 * time.Millisecond,
		LogCapacity:     50,
		HistoryCapacity: 50,
	}
}

func (o Options) withFallbacks() Options {
	def := DefaultOptions()
	if o.Limits.MaxBufferSize <= 0 {
		o.Limits.MaxBufferSize = def.Limits.MaxBufferSize
	}
	if o.Limits.MaxWorkers <= 0 {
		o.Limits.MaxWorkers = def.Limits.MaxWorkers
	}
	if o.Limits.MaxDelay <= 0 {
		o.Limits.MaxDelay = def.Limits.MaxDelay
	}
	if o.Backoff <= 0 {
		o.Backoff = def.Backoff
	}
	if o.LogCapacity <= 0 {
		o.LogCapacity = def.LogCapacity
	}
	if o.HistoryCapacity <= 0 {
		o.HistoryCapacity = def.HistoryCapacity
	}
	if o.Defaults.DelayPolicy == "" {
		o.Defaults.DelayPolicy = PolicyFixed
	}
	if o.Defaults.SimulationSpeed <= 0 {
		o.Defaults.SimulationSpeed = def.Defaults.SimulationSpeed
	}
	return o
}

// Validate checks p against the limits. Delays may be zero.
func (l Limits) Validate(p Params) error {
	if p.BufferSize < 1 || p.BufferSize > l.MaxBufferSize {
		return outOfRange("bufferSize", p.BufferSize, 1, l.MaxBufferSize)
	}
	if p.ProducerCount < 1 || p.ProducerCount > l.MaxWorkers {
		return outOfRange("producerCount", p.ProducerCount, 1, l.MaxWorkers)
	}
	if p.ConsumerCount < 1 || p.ConsumerCount > l.MaxWorkers {
		return outOfRange("consumerCount", p.ConsumerCount, 1, l.MaxWorkers)
	}
	if p.ProductionDelay < 0 || p.ProductionDelay > l.MaxDelay {
		return outOfRange("productionDelay", p.ProductionDelay, time.Duration(0), l.MaxDelay)
	}
	if p.ConsumptionDelay < 0 || p.ConsumptionDelay > l.MaxDelay {
		return outOfRange("consumptionDelay", p.ConsumptionDelay, time.Duration(0), l.MaxDelay)
	}
	if p.SimulationSpeed <= 0 {
		return &ConfigurationError{Field: "simulationSpeed", Value: p.SimulationSpeed, Reason: "must be positive"}
	}
	return nil
}

// SettingsView is the JSON form of the active parameters
type SettingsView struct {
	BufferSize         int    `json:"bufferSize"`
	ProducerCount      int    `json:"producerCount"`
	ConsumerCount      int    `json:"consumerCount"`
	SimulationSpeedMs  int64  `json:"simulationSpeed"`
	ProductionDelayMs  int64  `json:"productionSpeed"`
	ConsumptionDelayMs int64  `json:"consumptionSpeed"`
	DelayPolicy        string `json:"delayPolicy"`
}

func (p Params) view() SettingsView {
	return SettingsView{
		BufferSize:         p.BufferSize,
		ProducerCount:      p.ProducerCount,
		ConsumerCount:      p.ConsumerCount,
		SimulationSpeedMs:  p.SimulationSpeed.Milliseconds(),
		ProductionDelayMs:  p.ProductionDelay.Milliseconds(),
		ConsumptionDelayMs: p.ConsumptionDelay.Milliseconds(),
		DelayPolicy:        p.DelayPolicy,
	}
}
