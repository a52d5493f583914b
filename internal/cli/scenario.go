package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/conduit/internal/sim"
)

// Scenario defines a simulation run loaded from a YAML file.
//
// Example:
//
//	name: smoke
//	producers: 2
//	consumers: 5
//	items_per_producer: 30
//	capacity: 8
//	jitter: true
type Scenario struct {
	// Name labels the run. Defaults to the scenario file name.
	Name string `yaml:"name,omitempty"`

	Producers        int `yaml:"producers"`
	Consumers        int `yaml:"consumers"`
	ItemsPerProducer int `yaml:"items_per_producer"`
	Capacity         int `yaml:"capacity"`

	// Jitter adds random scheduling yields to widen the interleavings
	// a run explores.
	Jitter bool `yaml:"jitter,omitempty"`
}

// LoadScenario reads and parses a scenario file. Unknown fields are
// rejected so a typo fails loudly instead of silently running defaults.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}

	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario %s: %w", path, err)
	}

	if s.Name == "" {
		base := filepath.Base(path)
		s.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return &s, nil
}

// Config converts the scenario into a simulation config.
// Full validation happens in sim.Run.
func (s *Scenario) Config() sim.Config {
	return sim.Config{
		Name:             s.Name,
		Producers:        s.Producers,
		Consumers:        s.Consumers,
		ItemsPerProducer: s.ItemsPerProducer,
		Capacity:         s.Capacity,
		Jitter:           s.Jitter,
	}
}
