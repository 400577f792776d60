package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"fdtrlab/internal/domain"
)

const sampleConfig = `
version: 1
temperature: 310
stack:
  substrate: sapphire
  layers:
    - material: gold
      thickness: 1.0e-5
  interfaces:
    - 5000.0
beam:
  pump_radius: 4.05e-4
  probe_radius: 4.05e-4
backend:
  kind: precise
  digits: 30
sweep:
  start_hz: 1.0e4
  end_hz: 4.0e7
  points: 40
fit:
  method: gradient
  residual: phase
  datasets:
    - data/sweep1.txt
  parameters:
    - name: g1
      path: interfaces.1.g
      value: 4000
      min: 500
      max: 50000
database:
  path: ./results.db
log_level: debug
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fdtrlab.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromPath(t *testing.T) {
	cfg, path, err := LoadFromPath(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if path == "" {
		t.Error("expected returned path")
	}
	if cfg.Temperature != 310 {
		t.Errorf("temperature = %g, want 310", cfg.Temperature)
	}
	if cfg.Backend.Kind != "precise" || cfg.Backend.Digits != 30 {
		t.Errorf("backend = %+v", cfg.Backend)
	}
	if len(cfg.Stack.Layers) != 1 || cfg.Stack.Layers[0].Material != "gold" {
		t.Errorf("layers = %+v", cfg.Stack.Layers)
	}
	if len(cfg.Stack.Interfaces) != 1 || cfg.Stack.Interfaces[0].Ideal || cfg.Stack.Interfaces[0].G != 5000 {
		t.Errorf("interfaces = %+v", cfg.Stack.Interfaces)
	}
	if cfg.Fit == nil || cfg.Fit.Method != "gradient" {
		t.Errorf("fit = %+v", cfg.Fit)
	}
	if !cfg.Fit.Parameters[0].Varies() {
		t.Error("vary should default to true")
	}
}

func TestConductanceValueIdeal(t *testing.T) {
	content := `
stack:
  substrate: sapphire
  layers:
    - material: gold
      thickness: 1.0e-5
  interfaces:
    - ideal
beam:
  pump_radius: 1.0e-4
  probe_radius: 1.0e-4
`
	cfg, _, err := LoadFromPath(writeConfig(t, content))
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if !cfg.Stack.Interfaces[0].Ideal {
		t.Error("expected ideal interface")
	}
}

func TestApplyDefaults(t *testing.T) {
	content := `
stack:
  substrate: sapphire
beam:
  pump_radius: 1.0e-4
  probe_radius: 1.0e-4
`
	cfg, _, err := LoadFromPath(writeConfig(t, content))
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Version != 1 {
		t.Errorf("version = %d, want 1", cfg.Version)
	}
	if cfg.Temperature != 300 {
		t.Errorf("temperature = %g, want 300", cfg.Temperature)
	}
	if cfg.Backend.Kind != "fast" {
		t.Errorf("backend.kind = %q, want fast", cfg.Backend.Kind)
	}
	if cfg.Database.Path != "./fdtrlab.db" {
		t.Errorf("database.path = %q", cfg.Database.Path)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log_level = %q, want info", cfg.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := DefaultConfig()
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing substrate", func(c *Config) { c.Stack.Substrate = "" }},
		{"zero thickness", func(c *Config) {
			c.Stack.Layers = []LayerConfig{{Material: "gold", Thickness: 0}}
		}},
		{"more interfaces than layers", func(c *Config) {
			c.Stack.Interfaces = []ConductanceValue{{G: 1000}}
		}},
		{"negative conductance", func(c *Config) {
			c.Stack.Layers = []LayerConfig{{Material: "gold", Thickness: 1e-5}}
			c.Stack.Interfaces = []ConductanceValue{{G: -5}}
		}},
		{"zero pump radius", func(c *Config) { c.Beam.PumpRadius = 0 }},
		{"negative offset", func(c *Config) { c.Beam.Offset = -1 }},
		{"unknown backend", func(c *Config) { c.Backend.Kind = "quantum" }},
		{"inverted sweep", func(c *Config) { c.Sweep = &SweepConfig{StartHz: 1e6, EndHz: 1e4, Points: 10} }},
		{"single point sweep", func(c *Config) { c.Sweep = &SweepConfig{StartHz: 1e4, EndHz: 1e6, Points: 1} }},
		{"fit without datasets", func(c *Config) {
			c.Fit = &FitConfig{Method: "simplex", Residual: "phase",
				Parameters: []ParameterConfig{{Name: "g", Path: "interfaces.1.g"}}}
		}},
		{"fit without parameters", func(c *Config) {
			c.Fit = &FitConfig{Method: "simplex", Residual: "phase", Datasets: []string{"d.txt"}}
		}},
		{"duplicate fit parameter", func(c *Config) {
			c.Fit = &FitConfig{Method: "simplex", Residual: "phase", Datasets: []string{"d.txt"},
				Parameters: []ParameterConfig{
					{Name: "g", Path: "interfaces.1.g"},
					{Name: "g", Path: "layers.1.thickness"},
				}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, domain.ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
		})
	}

	if err := base().Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoadFromPathRejectsInvalid(t *testing.T) {
	content := `
stack:
  substrate: sapphire
beam:
  pump_radius: 0
  probe_radius: 1.0e-4
`
	if _, _, err := LoadFromPath(writeConfig(t, content)); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestFindConfigPathEnv(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	t.Setenv(EnvConfigPath, path)
	if got := FindConfigPath(); got != path {
		t.Errorf("FindConfigPath() = %q, want %q", got, path)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Stack.Layers = []LayerConfig{{Material: "gold", Thickness: 1e-5}}
	cfg.Stack.Interfaces = []ConductanceValue{{Ideal: true}}

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, _, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if !loaded.Stack.Interfaces[0].Ideal {
		t.Error("ideal interface lost in round trip")
	}
	if loaded.Stack.Layers[0].Thickness != 1e-5 {
		t.Errorf("thickness = %g", loaded.Stack.Layers[0].Thickness)
	}
}
