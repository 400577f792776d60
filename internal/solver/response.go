package solver

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate/quad"

	"fdtrlab/internal/domain"
)

// Beam is the frozen pump/probe geometry. All lengths in cm.
type Beam struct {
	PumpRadius  float64 // 1/e² pump spot radius
	ProbeRadius float64 // 1/e² probe spot radius
	Offset      float64 // lateral pump-probe offset
}

// Validate checks the geometry for finite, physical values.
func (g Beam) Validate() error {
	if !isFinitePos(g.PumpRadius) {
		return fmt.Errorf("%w: pump radius must be finite and > 0, got %g", domain.ErrValidation, g.PumpRadius)
	}
	if !isFinitePos(g.ProbeRadius) {
		return fmt.Errorf("%w: probe radius must be finite and > 0, got %g", domain.ErrValidation, g.ProbeRadius)
	}
	if math.IsNaN(g.Offset) || math.IsInf(g.Offset, 0) || g.Offset < 0 {
		return fmt.Errorf("%w: offset must be finite and >= 0, got %g", domain.ErrValidation, g.Offset)
	}
	return nil
}

// Response computes the complex surface temperature oscillation of the
// stack at a modulation frequency in Hz. Its argument is the instrument
// phase in radians on [-π, π]; its magnitude is the unnormalized
// amplitude.
func Response(st *domain.Stack, beam Beam, freqHz float64, b Backend) (complex128, error) {
	if st == nil || !st.HasSubstrate() {
		return 0, fmt.Errorf("%w: stack has no substrate", domain.ErrDomainState)
	}
	if err := beam.Validate(); err != nil {
		return 0, err
	}
	if !isFinitePos(freqHz) {
		return 0, fmt.Errorf("%w: frequency must be finite and > 0, got %g", domain.ErrValidation, freqHz)
	}

	omega := 2 * math.Pi * freqHz
	s2 := beam.PumpRadius*beam.PumpRadius + beam.ProbeRadius*beam.ProbeRadius

	// Truncate where the Gaussian envelope has decayed to the backend's
	// resolution: exp(-s²k²/8) = eps.
	kmax := math.Sqrt(8 * math.Log(1/b.Eps()) / s2)

	n := b.Nodes()
	ks := make([]float64, n)
	ws := make([]float64, n)
	quad.Legendre{}.FixedLocations(ks, ws, 0, kmax)

	zs, _, err := b.Impedance(st, ks, omega)
	if err != nil {
		return 0, fmt.Errorf("impedance at f=%g Hz: %w", freqHz, err)
	}

	var sum complex128
	for i, k := range ks {
		env := k * math.Exp(-s2*k*k/8) / (2 * math.Pi)
		if beam.Offset > 0 {
			env *= math.J0(k * beam.Offset)
		}
		sum += complex(ws[i]*env, 0) * zs[i]
	}
	if !isFiniteC(sum) {
		return 0, fmt.Errorf("%w: non-finite integral at f=%g Hz", domain.ErrNumericalInstability, freqHz)
	}
	return sum, nil
}

// Conditioning returns the largest |γ·L| product the fast backend's
// fold visits on the quadrature grid Response integrates over. Values
// above ConditioningThreshold mean the fast backend's phase can no
// longer be trusted against the precise one. The diagnostic is still
// returned when the fold itself blows up, alongside the instability
// error.
func Conditioning(st *domain.Stack, beam Beam, freqHz float64) (float64, error) {
	if st == nil || !st.HasSubstrate() {
		return 0, fmt.Errorf("%w: stack has no substrate", domain.ErrDomainState)
	}
	if err := beam.Validate(); err != nil {
		return 0, err
	}
	if !isFinitePos(freqHz) {
		return 0, fmt.Errorf("%w: frequency must be finite and > 0, got %g", domain.ErrValidation, freqHz)
	}
	b := FastBackend{}
	omega := 2 * math.Pi * freqHz
	s2 := beam.PumpRadius*beam.PumpRadius + beam.ProbeRadius*beam.ProbeRadius
	kmax := math.Sqrt(8 * math.Log(1/b.Eps()) / s2)

	n := b.Nodes()
	ks := make([]float64, n)
	ws := make([]float64, n)
	quad.Legendre{}.FixedLocations(ks, ws, 0, kmax)

	_, maxGammaL, err := b.Impedance(st, ks, omega)
	return maxGammaL, err
}

// WellConditioned reports whether the fast backend is trustworthy for
// this stack, geometry and frequency.
func WellConditioned(st *domain.Stack, beam Beam, freqHz float64) bool {
	gl, err := Conditioning(st, beam, freqHz)
	return err == nil && gl < ConditioningThreshold
}

func isFinitePos(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0) && x > 0
}
