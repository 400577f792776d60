// Package material defines thermal material property records and the
// built-in catalog of temperature-dependent property fits.
//
// Units follow the instrument convention throughout: lengths in cm,
// thermal conductivity in W/(cm·K), volumetric heat capacity in
// J/(cm³·K), density in g/cm³. Working in cm keeps the spatial-frequency
// integrals well scaled.
package material

import "math"

// Material is an immutable physical-property record. Layers share
// Material values by copy; a Material is never mutated after creation.
type Material struct {
	Name    string
	Kr      float64 // in-plane thermal conductivity, W/(cm·K)
	Kz      float64 // cross-plane thermal conductivity, W/(cm·K)
	C       float64 // volumetric heat capacity, J/(cm³·K)
	Density float64 // g/cm³, informational only (not used by the solver)
}

// Diffusivity returns the cross-plane thermal diffusivity Kz/C in cm²/s.
func (m Material) Diffusivity() float64 {
	return m.Kz / m.C
}

// InPlaneDiffusivity returns Kr/C in cm²/s.
func (m Material) InPlaneDiffusivity() float64 {
	return m.Kr / m.C
}

// Source produces a Material evaluated at a temperature in kelvin.
// Catalog entries are Sources; a temperature change on a stack
// re-evaluates every layer built from one.
type Source func(temperatureK float64) Material

// Fixed wraps a temperature-independent Material as a Source.
func Fixed(m Material) Source {
	return func(float64) Material { return m }
}

// polynomial evaluates sum(coef[i] * x^i).
func polynomial(x float64, coef ...float64) float64 {
	sum := 0.0
	pow := 1.0
	for _, c := range coef {
		sum += c * pow
		pow *= x
	}
	return sum
}

// power evaluates a + b*x^c.
func power(x, a, b, c float64) float64 {
	return a + b*math.Pow(x, c)
}
