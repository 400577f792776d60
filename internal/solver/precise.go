package solver

import (
	"fmt"
	"math"
	"math/big"

	"fdtrlab/internal/domain"
	"fdtrlab/internal/material"
)

// DefaultDigits is the working decimal precision of the precise backend
// when the caller does not choose one.
const DefaultDigits = 30

// PreciseBackend evaluates the impedance fold in arbitrary-precision
// arithmetic, one k at a time. It exists for stacks whose |γ·L|
// products push the fast backend into catastrophic cancellation; on
// well-conditioned stacks it agrees with the fast backend to well under
// the phase tolerance and is simply slower.
type PreciseBackend struct {
	digits int
	prec   uint // mantissa bits
}

// NewPreciseBackend returns a backend working at the given number of
// decimal digits; zero or negative selects DefaultDigits.
func NewPreciseBackend(digits int) PreciseBackend {
	if digits <= 0 {
		digits = DefaultDigits
	}
	return PreciseBackend{
		digits: digits,
		prec:   uint(math.Ceil(float64(digits)*math.Log2(10))) + 32,
	}
}

func (b PreciseBackend) Name() string { return TagPrecise }

func (b PreciseBackend) Eps() float64 {
	// never truncate the envelope earlier than the fast backend would
	return math.Min(math.Pow(10, -float64(b.digits)), 1e-12)
}

func (b PreciseBackend) Nodes() int { return 96 }

// Impedance runs the same fold as the fast backend, in big precision.
func (b PreciseBackend) Impedance(st *domain.Stack, ks []float64, omega float64) ([]complex128, float64, error) {
	zs := make([]complex128, len(ks))
	maxGammaL := 0.0
	for i, k := range ks {
		z, gl := b.foldStack(st, k, omega)
		if gl > maxGammaL {
			maxGammaL = gl
		}
		zc := z.complex128()
		if !isFiniteC(zc) {
			return nil, maxGammaL, fmt.Errorf("%w: precise backend produced %v at k=%g omega=%g", domain.ErrNumericalInstability, zc, k, omega)
		}
		zs[i] = zc
	}
	return zs, maxGammaL, nil
}

func (b PreciseBackend) gamma(m material.Material, k, omega float64) bigComplex {
	p := b.prec
	kk := new(big.Float).SetPrec(p).SetFloat64(k)
	kk.Mul(kk, kk)
	re := new(big.Float).SetPrec(p).SetFloat64(m.Kr)
	re.Mul(re, kk)
	re.Quo(re, new(big.Float).SetPrec(p).SetFloat64(m.Kz))
	im := new(big.Float).SetPrec(p).SetFloat64(omega)
	im.Mul(im, new(big.Float).SetPrec(p).SetFloat64(m.C))
	im.Quo(im, new(big.Float).SetPrec(p).SetFloat64(m.Kz))
	return bigComplex{re: re, im: im}.sqrt()
}

func (b PreciseBackend) foldStack(st *domain.Stack, k, omega float64) (bigComplex, float64) {
	p := b.prec
	one := newBC(1, 0, p)

	sub := st.Substrate().Material
	g := b.gamma(sub, k, omega)
	z := one.div(g.mulReal(big.NewFloat(sub.Kz).SetPrec(p)))

	maxGammaL := 0.0
	for i, l := range st.Layers() {
		if c := st.Interface(i + 1); !c.Ideal {
			z = z.add(newBC(1/c.G, 0, p))
		}
		gi := b.gamma(l.Material, k, omega)
		gl := gi.mulReal(big.NewFloat(l.Thickness).SetPrec(p))
		if a := bcAbs(gl); a > maxGammaL {
			maxGammaL = a
		}
		kg := gi.mulReal(big.NewFloat(l.Material.Kz).SetPrec(p))
		th := gl.tanh()
		// z = (z + th/kg) / (1 + kg·z·th)
		num := z.add(th.div(kg))
		den := one.add(kg.mul(z).mul(th))
		z = num.div(den)
	}
	return z, maxGammaL
}

// bcAbs is a float64 modulus, plenty for conditioning diagnostics.
func bcAbs(a bigComplex) float64 {
	re, _ := a.re.Float64()
	im, _ := a.im.Float64()
	return math.Hypot(re, im)
}
