// Package model binds a stack to frozen beam geometry and an arithmetic
// backend, exposing amplitude and phase at arbitrary modulation
// frequency plus parameter-path access for the fitting and sensitivity
// engines.
package model

import (
	"fmt"
	"math/cmplx"

	"fdtrlab/internal/domain"
	"fdtrlab/internal/solver"
)

// Model evaluates the thermal response of a shared stack under frozen
// geometry. Geometry and backend are immutable; rebuild the Model to
// change them. Several Models may share one stack for comparison.
//
// A Model memoizes responses per frequency. The cache is invalidated by
// parameter writes made through Resolve'd setters. Evaluating a single
// Model from more than one goroutine at a time is not supported; each
// concurrent evaluator needs its own Model.
type Model struct {
	stack   *domain.Stack
	beam    solver.Beam
	backend solver.Backend
	cache   map[float64]complex128
}

// New validates the inputs and constructs a Model. The stack must
// already have a substrate.
func New(st *domain.Stack, beam solver.Beam, backend solver.Backend) (*Model, error) {
	if st == nil || !st.HasSubstrate() {
		return nil, fmt.Errorf("%w: model requires a stack with a substrate", domain.ErrDomainState)
	}
	if err := beam.Validate(); err != nil {
		return nil, err
	}
	if backend == nil {
		backend = solver.FastBackend{}
	}
	return &Model{
		stack:   st,
		beam:    beam,
		backend: backend,
		cache:   make(map[float64]complex128),
	}, nil
}

// Stack returns the shared stack backing this model.
func (m *Model) Stack() *domain.Stack { return m.stack }

// Beam returns the frozen geometry.
func (m *Model) Beam() solver.Beam { return m.beam }

// Backend returns the arithmetic backend.
func (m *Model) Backend() solver.Backend { return m.backend }

// WithBackend returns a Model sharing this one's stack and geometry but
// evaluating on a different backend, with its own cache. The fitting
// engine uses this for the precise-backend fallback.
func (m *Model) WithBackend(b solver.Backend) *Model {
	return &Model{
		stack:   m.stack,
		beam:    m.beam,
		backend: b,
		cache:   make(map[float64]complex128),
	}
}

func (m *Model) response(freqHz float64) (complex128, error) {
	if r, ok := m.cache[freqHz]; ok {
		return r, nil
	}
	r, err := solver.Response(m.stack, m.beam, freqHz, m.backend)
	if err != nil {
		return 0, err
	}
	m.cache[freqHz] = r
	return r, nil
}

// Phase returns the modeled phase in radians on [-π, π].
func (m *Model) Phase(freqHz float64) (float64, error) {
	r, err := m.response(freqHz)
	if err != nil {
		return 0, err
	}
	return cmplx.Phase(r), nil
}

// Amplitude returns the unnormalized response magnitude.
func (m *Model) Amplitude(freqHz float64) (float64, error) {
	r, err := m.response(freqHz)
	if err != nil {
		return 0, err
	}
	return cmplx.Abs(r), nil
}

// Sweep evaluates phase and amplitude over a frequency list, returning
// parallel slices.
func (m *Model) Sweep(freqsHz []float64) (phases, amps []float64, err error) {
	phases = make([]float64, len(freqsHz))
	amps = make([]float64, len(freqsHz))
	for i, f := range freqsHz {
		r, err := m.response(f)
		if err != nil {
			return nil, nil, err
		}
		phases[i] = cmplx.Phase(r)
		amps[i] = cmplx.Abs(r)
	}
	return phases, amps, nil
}

// Invalidate drops all memoized responses. Parameter setters call this
// automatically; it is exported for callers that mutate the stack
// directly.
func (m *Model) Invalidate() {
	clear(m.cache)
}

// WellConditioned reports whether the fast backend can be trusted for
// this model at a frequency.
func (m *Model) WellConditioned(freqHz float64) bool {
	return solver.WellConditioned(m.stack, m.beam, freqHz)
}
