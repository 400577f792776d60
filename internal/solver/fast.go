package solver

import (
	"fmt"
	"math"
	"math/cmplx"

	"fdtrlab/internal/domain"
	"fdtrlab/internal/material"
)

// FastBackend evaluates the impedance fold in machine precision,
// vectorized over the whole k grid per call.
type FastBackend struct{}

func (FastBackend) Name() string { return TagFast }

func (FastBackend) Eps() float64 { return 1e-12 }

func (FastBackend) Nodes() int { return 256 }

// Impedance folds the stack bottom-up for every spatial frequency.
func (FastBackend) Impedance(st *domain.Stack, ks []float64, omega float64) ([]complex128, float64, error) {
	zs := make([]complex128, len(ks))
	maxGammaL := 0.0
	for i, k := range ks {
		z, gl := foldStack(st, k, omega)
		if gl > maxGammaL {
			maxGammaL = gl
		}
		if !isFiniteC(z) {
			return nil, maxGammaL, fmt.Errorf("%w: fast backend produced %v at k=%g omega=%g", domain.ErrNumericalInstability, z, k, omega)
		}
		zs[i] = z
	}
	return zs, maxGammaL, nil
}

// gamma is the complex thermal wavenumber sqrt((Kr·k² + iωC)/Kz).
// Anisotropy enters as the Kr/Kz rescaling of k².
func gamma(m material.Material, k, omega float64) complex128 {
	return cmplx.Sqrt(complex(m.Kr*k*k/m.Kz, omega*m.C/m.Kz))
}

// foldStack combines layers from the substrate termination toward the
// surface with a plain iterative fold (no recursion) and returns the
// surface impedance plus the largest |γ·L| product seen.
func foldStack(st *domain.Stack, k, omega float64) (complex128, float64) {
	sub := st.Substrate().Material
	g := gamma(sub, k, omega)
	z := 1 / (complex(sub.Kz, 0) * g)

	maxGammaL := 0.0
	for i, l := range st.Layers() {
		if c := st.Interface(i + 1); !c.Ideal {
			z += complex(1/c.G, 0)
		}
		gi := gamma(l.Material, k, omega)
		gl := gi * complex(l.Thickness, 0)
		if a := cmplx.Abs(gl); a > maxGammaL {
			maxGammaL = a
		}
		kg := complex(l.Material.Kz, 0) * gi
		th := cmplx.Tanh(gl)
		z = (z + th/kg) / (1 + kg*z*th)
	}
	return z, maxGammaL
}

func isFiniteC(z complex128) bool {
	return !math.IsNaN(real(z)) && !math.IsNaN(imag(z)) &&
		!math.IsInf(real(z), 0) && !math.IsInf(imag(z), 0)
}
