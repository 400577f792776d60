// Package config provides configuration management for fdtrlab.
//
// A run is described by a single YAML file: the sample stack, beam
// geometry, solver backend, and optionally a sweep and a fitting run.
//
// Config file locations (priority order):
//  1. $FDTRLAB_CONFIG
//  2. ./fdtrlab.yaml
//  3. ~/.config/fdtrlab/config.yaml
//  4. /etc/fdtrlab/config.yaml
package config

import (
	"fmt"
	"math"
	"os"

	"fdtrlab/internal/domain"

	"gopkg.in/yaml.v3"
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a bare substrate run
func DefaultConfig() *Config {
	return &Config{
		Version:     1,
		Temperature: 300.0,
		Stack:       StackConfig{Substrate: "sapphire"},
		Beam:        BeamConfig{PumpRadius: 4.05e-4, ProbeRadius: 4.05e-4},
		Backend:     BackendConfig{Kind: "fast"},
		Sweep:       &SweepConfig{StartHz: 1e4, EndHz: 4e7, Points: 50},
		Database:    DatabaseConfig{Path: "./fdtrlab.db"},
		LogLevel:    "info",
	}
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Temperature == 0 {
		c.Temperature = 300.0
	}
	if c.Backend.Kind == "" {
		c.Backend.Kind = "fast"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./fdtrlab.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Fit != nil {
		if c.Fit.Method == "" {
			c.Fit.Method = "simplex"
		}
		if c.Fit.Residual == "" {
			c.Fit.Residual = "phase"
		}
	}
}

// Validate checks cross-field consistency before any model is built
func (c *Config) Validate() error {
	if c.Stack.Substrate == "" {
		return fmt.Errorf("%w: stack.substrate is required", domain.ErrConfiguration)
	}
	for i, l := range c.Stack.Layers {
		if l.Material == "" {
			return fmt.Errorf("%w: stack.layers[%d].material is required", domain.ErrConfiguration, i)
		}
		if !(l.Thickness > 0) || math.IsInf(l.Thickness, 0) {
			return fmt.Errorf("%w: stack.layers[%d].thickness must be > 0 and finite", domain.ErrConfiguration, i)
		}
	}
	if len(c.Stack.Interfaces) > len(c.Stack.Layers) {
		return fmt.Errorf("%w: %d interfaces declared for %d layers",
			domain.ErrConfiguration, len(c.Stack.Interfaces), len(c.Stack.Layers))
	}
	for i, g := range c.Stack.Interfaces {
		if !g.Ideal && !(g.G > 0) {
			return fmt.Errorf("%w: stack.interfaces[%d] must be \"ideal\" or > 0", domain.ErrConfiguration, i)
		}
	}
	if !(c.Beam.PumpRadius > 0) || !(c.Beam.ProbeRadius > 0) {
		return fmt.Errorf("%w: beam radii must be > 0", domain.ErrConfiguration)
	}
	if c.Beam.Offset < 0 {
		return fmt.Errorf("%w: beam.offset must be >= 0", domain.ErrConfiguration)
	}
	if c.Backend.Kind != "fast" && c.Backend.Kind != "precise" {
		return fmt.Errorf("%w: backend.kind must be fast or precise, got %q", domain.ErrConfiguration, c.Backend.Kind)
	}
	if c.Backend.Digits < 0 {
		return fmt.Errorf("%w: backend.digits must be >= 0", domain.ErrConfiguration)
	}
	if c.Sweep != nil {
		if !(c.Sweep.StartHz > 0) || !(c.Sweep.EndHz > c.Sweep.StartHz) {
			return fmt.Errorf("%w: sweep range must satisfy 0 < start_hz < end_hz", domain.ErrConfiguration)
		}
		if c.Sweep.Points < 2 {
			return fmt.Errorf("%w: sweep.points must be >= 2", domain.ErrConfiguration)
		}
	}
	if c.Fit != nil {
		if len(c.Fit.Datasets) == 0 {
			return fmt.Errorf("%w: fit.datasets must not be empty", domain.ErrConfiguration)
		}
		if len(c.Fit.Parameters) == 0 {
			return fmt.Errorf("%w: fit.parameters must not be empty", domain.ErrConfiguration)
		}
		seen := make(map[string]bool, len(c.Fit.Parameters))
		for i, p := range c.Fit.Parameters {
			if p.Name == "" || p.Path == "" {
				return fmt.Errorf("%w: fit.parameters[%d] needs name and path", domain.ErrConfiguration, i)
			}
			if seen[p.Name] {
				return fmt.Errorf("%w: duplicate fit parameter %q", domain.ErrConfiguration, p.Name)
			}
			seen[p.Name] = true
		}
	}
	return nil
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Substrate: %s, layers: %d, T: %g K\n",
		c.Stack.Substrate, len(c.Stack.Layers), c.Temperature)
	summary += fmt.Sprintf("Beam: pump %g cm, probe %g cm, backend: %s\n",
		c.Beam.PumpRadius, c.Beam.ProbeRadius, c.Backend.Kind)
	if c.Sweep != nil {
		summary += fmt.Sprintf("Sweep: %g..%g Hz, %d points\n", c.Sweep.StartHz, c.Sweep.EndHz, c.Sweep.Points)
	}
	if c.Fit != nil {
		summary += fmt.Sprintf("Fit: %s on %s residual, %d datasets, %d parameters",
			c.Fit.Method, c.Fit.Residual, len(c.Fit.Datasets), len(c.Fit.Parameters))
	}
	return summary
}
