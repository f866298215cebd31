package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/GriffinCanCode/ringsim/internal/domain/simulation"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Logging    LogConfig
	RateLimit  RateLimitConfig
	Simulation SimulationConfig
	Stream     StreamConfig
	Presets    PresetConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8000"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	CORSOrigins     []string      `envconfig:"CORS_ORIGINS" default:"*"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// SimulationConfig bounds what init accepts and what reset restores.
type SimulationConfig struct {
	MaxBufferSize    int           `envconfig:"SIM_MAX_BUFFER" default:"20"`
	MaxWorkers       int           `envconfig:"SIM_MAX_WORKERS" default:"20"`
	MaxDelay         time.Duration `envconfig:"SIM_MAX_DELAY" default:"5s"`
	Backoff          time.Duration `envconfig:"SIM_BACKOFF" default:"100ms"`
	LogCapacity      int           `envconfig:"SIM_LOG_CAPACITY" default:"50"`
	HistoryCapacity  int           `envconfig:"SIM_HISTORY_CAPACITY" default:"50"`
	DefaultBuffer    int           `envconfig:"SIM_DEFAULT_BUFFER" default:"5"`
	DefaultProducers int           `envconfig:"SIM_DEFAULT_PRODUCERS" default:"2"`
	DefaultConsumers int           `envconfig:"SIM_DEFAULT_CONSUMERS" default:"2"`
	DefaultSpeed     time.Duration `envconfig:"SIM_DEFAULT_SPEED" default:"1s"`
	ProductionDelay  time.Duration `envconfig:"SIM_PRODUCTION_DELAY" default:"5s"`
	ConsumptionDelay time.Duration `envconfig:"SIM_CONSUMPTION_DELAY" default:"5s"`
	DelayPolicy      string        `envconfig:"SIM_DELAY_POLICY" default:"fixed"`
}

// Options converts the section into engine options
func (s SimulationConfig) Options() simulation.Options {
	return simulation.Options{
		Limits: simulation.Limits{
			MaxBufferSize: s.MaxBufferSize,
			MaxWorkers:    s.MaxWorkers,
			MaxDelay:      s.MaxDelay,
		},
		Defaults: simulation.Params{
			BufferSize:       s.DefaultBuffer,
			ProducerCount:    s.DefaultProducers,
			ConsumerCount:    s.DefaultConsumers,
			SimulationSpeed:  s.DefaultSpeed,
			ProductionDelay:  s.ProductionDelay,
			ConsumptionDelay: s.ConsumptionDelay,
			DelayPolicy:      s.DelayPolicy,
		},
		Backoff:         s.Backoff,
		LogCapacity:     s.LogCapacity,
		HistoryCapacity: s.HistoryCapacity,
	}
}

// StreamConfig holds websocket snapshot stream configuration.
type StreamConfig struct {
	MinInterval  time.Duration `envconfig:"STREAM_MIN_INTERVAL" default:"100ms"`
	MaxInterval  time.Duration `envconfig:"STREAM_MAX_INTERVAL" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STREAM_WRITE_TIMEOUT" default:"5s"`
}

// fallbackStreamInterval is the floor when no positive minimum is configured
const fallbackStreamInterval = 100 * time.Millisecond

// Clamp bounds a requested push interval. The result is always positive.
func (s StreamConfig) Clamp(d time.Duration) time.Duration {
	floor := s.MinInterval
	if floor <= 0 {
		floor = fallbackStreamInterval
	}
	if s.MaxInterval > 0 && d > s.MaxInterval {
		d = s.MaxInterval
	}
	if d < floor {
		return floor
	}
	return d
}

// PresetConfig points at an optional scenario preset file.
type PresetConfig struct {
	Path string `envconfig:"PRESETS_FILE" default:""`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	def := simulation.DefaultOptions()
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Simulation: SimulationConfig{
			MaxBufferSize:    def.Limits.MaxBufferSize,
			MaxWorkers:       def.Limits.MaxWorkers,
			MaxDelay:         def.Limits.MaxDelay,
			Backoff:          def.Backoff,
			LogCapacity:      def.LogCapacity,
			HistoryCapacity:  def.HistoryCapacity,
			DefaultBuffer:    def.Defaults.BufferSize,
			DefaultProducers: def.Defaults.ProducerCount,
			DefaultConsumers: def.Defaults.ConsumerCount,
			DefaultSpeed:     def.Defaults.SimulationSpeed,
			ProductionDelay:  def.Defaults.ProductionDelay,
			ConsumptionDelay: def.Defaults.ConsumptionDelay,
			DelayPolicy:      def.Defaults.DelayPolicy,
		},
		Stream: StreamConfig{
			MinInterval:  100 * time.Millisecond,
			MaxInterval:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
	}
}
