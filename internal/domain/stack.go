package domain

import (
	"fmt"
	"math"
	"strings"

	"fdtrlab/internal/material"
)

// Conductance is the thermal contact conductance of a layer boundary in
// W/(cm²·K). The zero value is not valid; boundaries default to Ideal.
type Conductance struct {
	G     float64
	Ideal bool
}

// IdealConductance is a boundary with no added thermal resistance.
func IdealConductance() Conductance {
	return Conductance{Ideal: true}
}

// NewConductance validates a finite interface conductance.
func NewConductance(g float64) (Conductance, error) {
	if math.IsNaN(g) || math.IsInf(g, 0) || g <= 0 {
		return Conductance{}, fmt.Errorf("%w: interface conductance must be finite and > 0, got %g", ErrValidation, g)
	}
	return Conductance{G: g}, nil
}

func (c Conductance) String() string {
	if c.Ideal {
		return "ideal"
	}
	return fmt.Sprintf("%g W/(cm²·K)", c.G)
}

// Layer is one slab of the heat path. The substrate layer is
// semi-infinite and its Thickness is ignored by the solver.
type Layer struct {
	Material  material.Material
	Thickness float64 // cm
	source    material.Source
}

// Stack is the layered domain: exactly one substrate under an ordered,
// append-only sequence of layers, with a conductance at each boundary.
// Interfaces are numbered 1..N from the substrate boundary upward.
type Stack struct {
	temperature float64
	substrate   *Layer
	layers      []*Layer
	interfaces  map[int]Conductance
}

// New creates an empty stack at an ambient temperature in kelvin.
func New(temperatureK float64) *Stack {
	return &Stack{
		temperature: temperatureK,
		interfaces:  make(map[int]Conductance),
	}
}

// Temperature returns the ambient temperature in kelvin.
func (s *Stack) Temperature() float64 { return s.temperature }

// HasSubstrate reports whether the stack is usable by the solver.
func (s *Stack) HasSubstrate() bool { return s.substrate != nil }

// NumLayers returns the number of layers above the substrate.
func (s *Stack) NumLayers() int { return len(s.layers) }

// AddSubstrate sets the semi-infinite base of the stack.
func (s *Stack) AddSubstrate(src material.Source) error {
	if s.substrate != nil {
		return fmt.Errorf("%w: substrate already defined", ErrDomainState)
	}
	if src == nil {
		src = material.Sapphire
	}
	s.substrate = &Layer{Material: src(s.temperature), source: src}
	return nil
}

// AddLayer appends a layer to the top of the stack. The boundary below
// it defaults to an ideal interface until SetInterface is called.
func (s *Stack) AddLayer(thickness float64, src material.Source) error {
	if s.substrate == nil {
		return fmt.Errorf("%w: add a substrate before adding layers", ErrDomainState)
	}
	if math.IsNaN(thickness) || math.IsInf(thickness, 0) || thickness <= 0 {
		return fmt.Errorf("%w: layer thickness must be finite and > 0, got %g", ErrValidation, thickness)
	}
	if src == nil {
		src = material.Default
	}
	s.layers = append(s.layers, &Layer{
		Material:  src(s.temperature),
		Thickness: thickness,
		source:    src,
	})
	return nil
}

// SetInterface sets the conductance of boundary index (1-based from the
// substrate boundary upward).
func (s *Stack) SetInterface(index int, c Conductance) error {
	if s.substrate == nil {
		return fmt.Errorf("%w: add a substrate before setting interfaces", ErrDomainState)
	}
	if index < 1 || index > len(s.layers) {
		return fmt.Errorf("%w: interface %d with %d layers", ErrIndex, index, len(s.layers))
	}
	if !c.Ideal {
		if math.IsNaN(c.G) || math.IsInf(c.G, 0) || c.G <= 0 {
			return fmt.Errorf("%w: interface conductance must be finite and > 0, got %g", ErrValidation, c.G)
		}
	}
	s.interfaces[index] = c
	return nil
}

// Interface returns the conductance of boundary index, which is ideal
// unless explicitly set.
func (s *Stack) Interface(index int) Conductance {
	if c, ok := s.interfaces[index]; ok {
		return c
	}
	return IdealConductance()
}

// Substrate returns the semi-infinite base layer, or nil before
// AddSubstrate.
func (s *Stack) Substrate() *Layer { return s.substrate }

// LayerAt returns the 1-based layer above the substrate.
func (s *Stack) LayerAt(index int) (*Layer, error) {
	if index < 1 || index > len(s.layers) {
		return nil, fmt.Errorf("%w: layer %d with %d layers", ErrIndex, index, len(s.layers))
	}
	return s.layers[index-1], nil
}

// Layers returns the layers bottom-to-top. The slice is shared; callers
// must treat it as read-only.
func (s *Stack) Layers() []*Layer { return s.layers }

// SetTemperature changes the ambient temperature and re-evaluates every
// catalog-backed layer material at the new temperature. Explicit
// per-layer overrides applied after this call are preserved until the
// next temperature change.
func (s *Stack) SetTemperature(temperatureK float64) error {
	if math.IsNaN(temperatureK) || math.IsInf(temperatureK, 0) || temperatureK <= 0 {
		return fmt.Errorf("%w: temperature must be finite and > 0, got %g", ErrValidation, temperatureK)
	}
	s.temperature = temperatureK
	if s.substrate != nil && s.substrate.source != nil {
		s.substrate.Material = s.substrate.source(temperatureK)
	}
	for _, l := range s.layers {
		if l.source != nil {
			l.Material = l.source(temperatureK)
		}
	}
	return nil
}

// Describe returns a textual snapshot of the stack, top surface first.
// Pure: calling it twice without mutation yields identical output.
func (s *Stack) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "stack at %g K\n", s.temperature)
	if s.substrate == nil {
		b.WriteString("  (no substrate)\n")
		return b.String()
	}
	for i := len(s.layers); i >= 1; i-- {
		l := s.layers[i-1]
		fmt.Fprintf(&b, "  layer %d: %s, %g cm (kz=%g kr=%g C=%g)\n",
			i, l.Material.Name, l.Thickness, l.Material.Kz, l.Material.Kr, l.Material.C)
		fmt.Fprintf(&b, "  interface %d: %s\n", i, s.Interface(i))
	}
	fmt.Fprintf(&b, "  substrate: %s (kz=%g kr=%g C=%g), semi-infinite\n",
		s.substrate.Material.Name, s.substrate.Material.Kz, s.substrate.Material.Kr, s.substrate.Material.C)
	return b.String()
}
