package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/ringsim/internal/domain/simulation"
)

// Preset is a named init scenario
type Preset struct {
	Name               string `yaml:"name" toml:"name" json:"name"`
	Description        string `yaml:"description" toml:"description" json:"description"`
	BufferSize         int    `yaml:"bufferSize" toml:"bufferSize" json:"bufferSize"`
	ProducerCount      int    `yaml:"producerCount" toml:"producerCount" json:"producerCount"`
	ConsumerCount      int    `yaml:"consumerCount" toml:"consumerCount" json:"consumerCount"`
	SimulationSpeedMs  int64  `yaml:"simulationSpeed" toml:"simulationSpeed" json:"simulationSpeed"`
	ProductionDelayMs  int64  `yaml:"productionDelayMs" toml:"productionDelayMs" json:"productionDelayMs"`
	ConsumptionDelayMs int64  `yaml:"consumptionDelayMs" toml:"consumptionDelayMs" json:"consumptionDelayMs"`
	DelayPolicy        string `yaml:"delayPolicy" toml:"delayPolicy" json:"delayPolicy"`
}

// Params converts the preset into init parameters
func (p Preset) Params() simulation.Params {
	speed := time.Duration(p.SimulationSpeedMs) * time.Millisecond
	if speed == 0 {
		speed = time.Second
	}
	return simulation.Params{
		BufferSize:       p.BufferSize,
		ProducerCount:    p.ProducerCount,
		ConsumerCount:    p.ConsumerCount,
		SimulationSpeed:  speed,
		ProductionDelay:  time.Duration(p.ProductionDelayMs) * time.Millisecond,
		ConsumptionDelay: time.Duration(p.ConsumptionDelayMs) * time.Millisecond,
		DelayPolicy:      p.DelayPolicy,
	}
}

type presetFile struct {
	Presets []Preset `yaml:"presets" toml:"presets"`
}

// Presets is a set of scenarios keyed by name
type Presets map[string]Preset

// Names returns the preset names in order
func (ps Presets) Names() []string {
	names := make([]string, 0, len(ps))
	for name := range ps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns the presets ordered by name
func (ps Presets) List() []Preset {
	out := make([]Preset, 0, len(ps))
	for _, name := range ps.Names() {
		out = append(out, ps[name])
	}
	return out
}

// DefaultPresets are served when no preset file is configured
func DefaultPresets() Presets {
	return Presets{
		"balanced": {
			Name: "balanced", Description: "Two producers and two consumers at equal pace",
			BufferSize: 5, ProducerCount: 2, ConsumerCount: 2,
			SimulationSpeedMs: 1000, ProductionDelayMs: 2000, ConsumptionDelayMs: 2000,
			DelayPolicy: simulation.PolicyFixed,
		},
		"producer-heavy": {
			Name: "producer-heavy", Description: "Producers outpace a single consumer; the ring fills",
			BufferSize: 3, ProducerCount: 2, ConsumerCount: 1,
			SimulationSpeedMs: 1000, ProductionDelayMs: 1000, ConsumptionDelayMs: 3000,
			DelayPolicy: simulation.PolicyFixed,
		},
		"consumer-heavy": {
			Name: "consumer-heavy", Description: "Consumers starve waiting for completed items",
			BufferSize: 5, ProducerCount: 1, ConsumerCount: 3,
			SimulationSpeedMs: 1000, ProductionDelayMs: 3000, ConsumptionDelayMs: 1000,
			DelayPolicy: simulation.PolicyFixed,
		},
		"jittery": {
			Name: "jittery", Description: "Randomized phase lengths around the configured delays",
			BufferSize: 8, ProducerCount: 3, ConsumerCount: 3,
			SimulationSpeedMs: 500, ProductionDelayMs: 2000, ConsumptionDelayMs: 2000,
			DelayPolicy: simulation.PolicyJitter,
		},
	}
}

// LoadPresets reads a preset file. The format follows the extension: .yaml,
// .yml or .toml. An empty path yields DefaultPresets.
func LoadPresets(path string) (Presets, error) {
	if path == "" {
		return DefaultPresets(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read presets: %w", err)
	}

	var file presetFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	case ".toml":
		err = toml.Unmarshal(data, &file)
	default:
		return nil, fmt.Errorf("unsupported preset format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse presets %s: %w", path, err)
	}

	presets := make(Presets, len(file.Presets))
	for i, p := range file.Presets {
		if p.Name == "" {
			return nil, fmt.Errorf("preset %d has no name", i)
		}
		if _, dup := presets[p.Name]; dup {
			return nil, fmt.Errorf("duplicate preset %q", p.Name)
		}
		presets[p.Name] = p
	}
	return presets, nil
}
