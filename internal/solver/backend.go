package solver

import (
	"fmt"

	"fdtrlab/internal/domain"
)

// Backend tags accepted by NewBackend.
const (
	TagFast    = "fast"
	TagPrecise = "precise"
)

// ConditioningThreshold is the |γ·L| product above which the fast and
// precise backends are no longer guaranteed to agree. Below it, phases
// from the two backends match to well under a microradian.
const ConditioningThreshold = 25.0

// Backend evaluates the surface thermal impedance Z(k, ω) of a stack.
// It is the only arithmetic-specific piece of the solver; the envelope
// and quadrature are shared.
type Backend interface {
	Name() string

	// Eps is the smallest relative magnitude the backend resolves; the
	// quadrature truncates the Gaussian envelope at this threshold.
	Eps() float64

	// Nodes is the Gauss-Legendre node count matched to the backend's
	// cost profile.
	Nodes() int

	// Impedance returns Z at every k in ks, plus the largest |γ·L|
	// encountered, for conditioning diagnostics. Non-finite results
	// fail with domain.ErrNumericalInstability.
	Impedance(st *domain.Stack, ks []float64, omega float64) ([]complex128, float64, error)
}

// NewBackend constructs a backend from its tag. digits is the working
// decimal precision of the precise backend and is ignored by the fast
// one; zero selects the default.
func NewBackend(tag string, digits int) (Backend, error) {
	switch tag {
	case TagFast, "":
		return FastBackend{}, nil
	case TagPrecise:
		return NewPreciseBackend(digits), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q (want %q or %q)", domain.ErrConfiguration, tag, TagFast, TagPrecise)
	}
}
