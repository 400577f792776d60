package loader

import (
	"fmt"
	"os"

	"fdtrlab/internal/domain"
	"fdtrlab/internal/material"

	"gopkg.in/yaml.v3"
)

// MaterialsYAML represents a materials overlay file
type MaterialsYAML struct {
	Materials map[string]*MaterialYAML `yaml:"materials"`
}

// MaterialYAML represents one catalog entry. Values use the same unit
// contract as the built-in catalog: conductivities in W/(cm K),
// volumetric heat capacity in J/(cm^3 K), density in g/cm^3.
type MaterialYAML struct {
	Kr      float64 `yaml:"kr"`
	Kz      float64 `yaml:"kz"`
	C       float64 `yaml:"c"`
	Density float64 `yaml:"density,omitempty"`
}

// LoadMaterials loads catalog overlay entries from a YAML file.
func LoadMaterials(path string) ([]material.Material, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return ParseMaterials(data)
}

// ParseMaterials parses catalog overlay entries from YAML bytes.
func ParseMaterials(data []byte) ([]material.Material, error) {
	var yamlData MaterialsYAML
	if err := yaml.Unmarshal(data, &yamlData); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(yamlData.Materials) == 0 {
		return nil, fmt.Errorf("%w: no materials defined", domain.ErrValidation)
	}

	mats := make([]material.Material, 0, len(yamlData.Materials))
	for name, m := range yamlData.Materials {
		if name == "" {
			return nil, fmt.Errorf("%w: material with empty name", domain.ErrValidation)
		}
		if m == nil {
			return nil, fmt.Errorf("%w: material %q has no properties", domain.ErrValidation, name)
		}
		if m.Kr <= 0 || m.Kz <= 0 || m.C <= 0 {
			return nil, fmt.Errorf("%w: material %q: kr, kz and c must be > 0", domain.ErrValidation, name)
		}
		if m.Density < 0 {
			return nil, fmt.Errorf("%w: material %q: density must be >= 0", domain.ErrValidation, name)
		}
		mats = append(mats, material.Material{
			Name:    name,
			Kr:      m.Kr,
			Kz:      m.Kz,
			C:       m.C,
			Density: m.Density,
		})
	}
	return mats, nil
}
