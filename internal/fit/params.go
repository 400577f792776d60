// Package fit pairs thermal models with measured frequency sweeps and
// minimizes a residual over named, bounded parameters. Jobs run on a
// background goroutine with cooperative cancellation between residual
// evaluations, so a foreground caller stays responsive.
package fit

import (
	"fmt"
	"math"

	"fdtrlab/internal/domain"
)

// Param is one named fitting parameter with box constraints. Path is
// the model parameter path the value binds to and must resolve on every
// paired model; it defaults to Name.
type Param struct {
	Name  string
	Path  string
	Value float64
	Min   float64
	Max   float64
	Vary  bool
}

// Params is an ordered, named parameter set shared by all pairings of a
// job; fitting the same names across several datasets yields a global
// fit.
type Params struct {
	order  []*Param
	byName map[string]*Param
}

// NewParams returns an empty parameter set.
func NewParams() *Params {
	return &Params{byName: make(map[string]*Param)}
}

// Add registers a parameter. The value must lie inside finite bounds.
func (p *Params) Add(name string, value, min, max float64, vary bool) error {
	if name == "" {
		return fmt.Errorf("%w: parameter name must not be empty", domain.ErrConfiguration)
	}
	if _, dup := p.byName[name]; dup {
		return fmt.Errorf("%w: duplicate parameter %q", domain.ErrConfiguration, name)
	}
	for _, v := range []float64{value, min, max} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: parameter %q has non-finite value/bounds (%g, %g, %g)", domain.ErrValidation, name, value, min, max)
		}
	}
	if min >= max {
		return fmt.Errorf("%w: parameter %q bounds inverted: min %g >= max %g", domain.ErrValidation, name, min, max)
	}
	if value < min || value > max {
		return fmt.Errorf("%w: parameter %q value %g outside [%g, %g]", domain.ErrValidation, name, value, min, max)
	}
	par := &Param{Name: name, Path: name, Value: value, Min: min, Max: max, Vary: vary}
	p.order = append(p.order, par)
	p.byName[name] = par
	return nil
}

// AddPath registers a parameter whose display name differs from the
// model path it binds to.
func (p *Params) AddPath(name, path string, value, min, max float64, vary bool) error {
	if err := p.Add(name, value, min, max, vary); err != nil {
		return err
	}
	if path != "" {
		p.byName[name].Path = path
	}
	return nil
}

// Get looks a parameter up by name.
func (p *Params) Get(name string) (*Param, bool) {
	par, ok := p.byName[name]
	return par, ok
}

// All returns the parameters in insertion order. Shared slice; treat as
// read-only.
func (p *Params) All() []*Param { return p.order }

// Varying returns the subset with the vary flag set, in order.
func (p *Params) Varying() []*Param {
	var out []*Param
	for _, par := range p.order {
		if par.Vary {
			out = append(out, par)
		}
	}
	return out
}

// Values snapshots current values by name.
func (p *Params) Values() map[string]float64 {
	out := make(map[string]float64, len(p.order))
	for _, par := range p.order {
		out[par.Name] = par.Value
	}
	return out
}
