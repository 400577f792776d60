package material

import (
	"fmt"
	"sort"
	"strings"
)

// Built-in materials. Conductivity fits are tabulated in W/(m·K) and heat
// capacities in J/(m³·K); the 1e-2 and 1e-6 factors convert to the cm
// convention.

// Sapphire returns single-crystal Al2O3 properties at a temperature.
func Sapphire(t float64) Material {
	k := 1.0e-2 * power(t, 10.8225, 4.94027e+07, -2.56139)
	return Material{
		Name:    "Sapphire",
		Kr:      k,
		Kz:      k,
		C:       1.0e-6 * polynomial(t, -1.6373e+06, 24234.3, -33.2459, 0.0160457),
		Density: 3.97,
	}
}

// Gold returns thin-film Au properties at a temperature.
func Gold(t float64) Material {
	k := 1.0e-2 * polynomial(t, 69.1593, -0.009147, -4.37555e-06)
	return Material{
		Name:    "Au",
		Kr:      k,
		Kz:      k,
		C:       1.0e-6 * polynomial(t, 1.21201e+06, 13615.4, -60.5398, 0.136611, -0.000146641, 5.99102e-08),
		Density: 19.3,
	}
}

// Alumina returns amorphous Al2O3 properties.
func Alumina(float64) Material {
	return Material{
		Name:    "Alumina",
		Kr:      1.0e-2 * 1,
		Kz:      1.0e-2 * 1,
		C:       2.15,
		Density: 3.15,
	}
}

// In2Se3 returns indium selenide properties. Strongly anisotropic:
// the van der Waals cross-plane conductivity is ~50x below in-plane.
func In2Se3(float64) Material {
	return Material{
		Name:    "In2Se3",
		Kr:      1.0e-2 * 10,
		Kz:      1.0e-2 * 0.200,
		C:       2.55,
		Density: 5.67,
	}
}

// SrTiO3 returns strontium titanate properties.
func SrTiO3(float64) Material {
	return Material{
		Name:    "STO",
		Kr:      1.0e-2 * 9.8,
		Kz:      1.0e-2 * 9.8,
		C:       2.72,
		Density: 5.11,
	}
}

// Default returns the placeholder material used when none is specified.
func Default(float64) Material {
	return Material{
		Name:    "default",
		Kr:      0.5,
		Kz:      0.5,
		C:       1.0,
		Density: 1.0,
	}
}

// Catalog maps material names to their property Sources. Lookup is
// case-insensitive. Loaded yaml overlays may extend a copy of this map.
type Catalog map[string]Source

// BuiltinCatalog returns a fresh catalog of the built-in materials.
func BuiltinCatalog() Catalog {
	return Catalog{
		"sapphire": Sapphire,
		"au":       Gold,
		"gold":     Gold,
		"alumina":  Alumina,
		"in2se3":   In2Se3,
		"sto":      SrTiO3,
		"srtio3":   SrTiO3,
		"default":  Default,
	}
}

// Lookup resolves a material name to its Source.
func (c Catalog) Lookup(name string) (Source, error) {
	src, ok := c[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown material %q (have: %s)", name, strings.Join(c.names(), ", "))
	}
	return src, nil
}

// Add registers a Source under a name, replacing any existing entry.
func (c Catalog) Add(name string, src Source) {
	c[strings.ToLower(name)] = src
}

func (c Catalog) names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
