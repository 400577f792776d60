package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure
type Config struct {
	Version     int            `yaml:"version"`
	Temperature float64        `yaml:"temperature"` // K
	Materials   string         `yaml:"materials,omitempty"`
	Stack       StackConfig    `yaml:"stack"`
	Beam        BeamConfig     `yaml:"beam"`
	Backend     BackendConfig  `yaml:"backend"`
	Sweep       *SweepConfig   `yaml:"sweep,omitempty"`
	Fit         *FitConfig     `yaml:"fit,omitempty"`
	Database    DatabaseConfig `yaml:"database"`
	LogLevel    string         `yaml:"log_level"`
}

// StackConfig describes the sample: a semi-infinite substrate with zero
// or more finite layers stacked on top, listed bottom to top.
type StackConfig struct {
	Substrate  string             `yaml:"substrate"`
	Layers     []LayerConfig      `yaml:"layers,omitempty"`
	Interfaces []ConductanceValue `yaml:"interfaces,omitempty"`
}

// LayerConfig describes one finite layer
type LayerConfig struct {
	Material  string  `yaml:"material"`
	Thickness float64 `yaml:"thickness"` // cm
}

// ConductanceValue is either the literal string "ideal" or a finite
// thermal boundary conductance in W/(cm^2 K).
type ConductanceValue struct {
	Ideal bool
	G     float64
}

// UnmarshalYAML accepts "ideal" or a number
func (c *ConductanceValue) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		if strings.EqualFold(strings.TrimSpace(s), "ideal") {
			c.Ideal = true
			c.G = 0
			return nil
		}
	}
	var g float64
	if err := value.Decode(&g); err != nil {
		return fmt.Errorf("interface conductance must be \"ideal\" or a number, got %q", value.Value)
	}
	c.Ideal = false
	c.G = g
	return nil
}

// MarshalYAML emits "ideal" or the numeric conductance
func (c ConductanceValue) MarshalYAML() (interface{}, error) {
	if c.Ideal {
		return "ideal", nil
	}
	return c.G, nil
}

// BeamConfig holds pump and probe spot geometry in cm
type BeamConfig struct {
	PumpRadius  float64 `yaml:"pump_radius"`
	ProbeRadius float64 `yaml:"probe_radius"`
	Offset      float64 `yaml:"offset,omitempty"`
}

// BackendConfig selects the impedance evaluation backend
type BackendConfig struct {
	Kind   string `yaml:"kind"`             // fast or precise
	Digits int    `yaml:"digits,omitempty"` // precise backend only
}

// SweepConfig describes a log-spaced frequency sweep in Hz
type SweepConfig struct {
	StartHz float64 `yaml:"start_hz"`
	EndHz   float64 `yaml:"end_hz"`
	Points  int     `yaml:"points"`
}

// FitConfig drives a fitting run against measured datasets
type FitConfig struct {
	Method     string            `yaml:"method"`   // simplex, gradient, global
	Residual   string            `yaml:"residual"` // phase, amplitude, both
	Datasets   []string          `yaml:"datasets"`
	Parameters []ParameterConfig `yaml:"parameters"`
}

// ParameterConfig declares one named fit parameter bound to a model path
// such as "layers.1.thickness" or "interfaces.1.g".
type ParameterConfig struct {
	Name  string  `yaml:"name"`
	Path  string  `yaml:"path"`
	Value float64 `yaml:"value"`
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
	Vary  *bool   `yaml:"vary,omitempty"` // nil = true
}

// Varies reports whether the parameter is free during fitting
func (p ParameterConfig) Varies() bool {
	return p.Vary == nil || *p.Vary
}

// DatabaseConfig holds result store settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}
