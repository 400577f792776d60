// Package sensitivity computes normalized phase-sensitivity curves,
// used to judge whether a parameter is identifiable from a measured
// frequency band before fitting it.
package sensitivity

import (
	"fmt"
	"math"

	"fdtrlab/internal/domain"
	"fdtrlab/internal/model"
)

// DefaultRelativeStep is the central-difference perturbation used when
// the caller passes a non-positive step.
const DefaultRelativeStep = 1e-2

// Analyze returns S(f) = (p/φ(f))·∂φ(f)/∂p for the parameter at path,
// approximated by a central finite difference at p·(1±ε). The parameter
// is restored to its original value even if an evaluation fails.
func Analyze(m *model.Model, path string, freqsHz []float64, relStep float64) ([]float64, error) {
	if len(freqsHz) == 0 {
		return nil, fmt.Errorf("%w: sensitivity needs at least one frequency", domain.ErrValidation)
	}
	if relStep <= 0 {
		relStep = DefaultRelativeStep
	}

	par, err := m.Resolve(path)
	if err != nil {
		return nil, err
	}
	p0 := par.Get()
	if p0 == 0 || math.IsInf(p0, 0) {
		return nil, fmt.Errorf("%w: cannot perturb %s around %g", domain.ErrValidation, path, p0)
	}
	defer func() {
		// scoped mutation: always put the stack back
		_ = par.Set(p0)
	}()

	base, _, err := m.Sweep(freqsHz)
	if err != nil {
		return nil, err
	}

	if err := par.Set(p0 * (1 + relStep)); err != nil {
		return nil, err
	}
	hi, _, err := m.Sweep(freqsHz)
	if err != nil {
		return nil, err
	}

	if err := par.Set(p0 * (1 - relStep)); err != nil {
		return nil, err
	}
	lo, _, err := m.Sweep(freqsHz)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(freqsHz))
	for i := range freqsHz {
		if base[i] == 0 {
			out[i] = 0
			continue
		}
		// (p/φ)·(φ⁺-φ⁻)/(2εp) = (φ⁺-φ⁻)/(2ε·φ)
		out[i] = (hi[i] - lo[i]) / (2 * relStep * base[i])
	}
	return out, nil
}
