package solver

import (
	"math/big"
	"sync"

	"github.com/ALTree/bigfloat"
)

// Arbitrary-precision complex arithmetic for the precise backend.
// Only the handful of operations the impedance fold needs are
// implemented. Real transcendentals come from ALTree/bigfloat; sin and
// cos have no library equivalent at arbitrary precision and are a
// range-reduced Taylor series.

type bigComplex struct {
	re, im *big.Float
}

func newBC(re, im float64, prec uint) bigComplex {
	return bigComplex{
		re: big.NewFloat(re).SetPrec(prec),
		im: big.NewFloat(im).SetPrec(prec),
	}
}

func (a bigComplex) prec() uint { return a.re.Prec() }

func (a bigComplex) complex128() complex128 {
	re, _ := a.re.Float64()
	im, _ := a.im.Float64()
	return complex(re, im)
}

func (a bigComplex) add(b bigComplex) bigComplex {
	p := a.prec()
	return bigComplex{
		re: new(big.Float).SetPrec(p).Add(a.re, b.re),
		im: new(big.Float).SetPrec(p).Add(a.im, b.im),
	}
}

func (a bigComplex) mul(b bigComplex) bigComplex {
	p := a.prec()
	rr := new(big.Float).SetPrec(p).Mul(a.re, b.re)
	ii := new(big.Float).SetPrec(p).Mul(a.im, b.im)
	ri := new(big.Float).SetPrec(p).Mul(a.re, b.im)
	ir := new(big.Float).SetPrec(p).Mul(a.im, b.re)
	return bigComplex{
		re: rr.Sub(rr, ii),
		im: ri.Add(ri, ir),
	}
}

func (a bigComplex) mulReal(x *big.Float) bigComplex {
	p := a.prec()
	return bigComplex{
		re: new(big.Float).SetPrec(p).Mul(a.re, x),
		im: new(big.Float).SetPrec(p).Mul(a.im, x),
	}
}

func (a bigComplex) div(b bigComplex) bigComplex {
	p := a.prec()
	// (a * conj(b)) / |b|²
	den := new(big.Float).SetPrec(p).Mul(b.re, b.re)
	den.Add(den, new(big.Float).SetPrec(p).Mul(b.im, b.im))
	conj := bigComplex{re: b.re, im: new(big.Float).SetPrec(p).Neg(b.im)}
	num := a.mul(conj)
	return bigComplex{
		re: num.re.Quo(num.re, den),
		im: num.im.Quo(num.im, den),
	}
}

// sqrt returns the principal square root: for z = x+iy with modulus m,
// Re = sqrt((m+x)/2) and Im = sign(y)·sqrt((m-x)/2). Needs only real
// square roots, which big.Float provides natively.
func (a bigComplex) sqrt() bigComplex {
	p := a.prec()
	m := new(big.Float).SetPrec(p).Mul(a.re, a.re)
	m.Add(m, new(big.Float).SetPrec(p).Mul(a.im, a.im))
	m.Sqrt(m)

	half := big.NewFloat(0.5).SetPrec(p)
	wre := new(big.Float).SetPrec(p).Add(m, a.re)
	wre.Mul(wre, half).Sqrt(wre)
	wim := new(big.Float).SetPrec(p).Sub(m, a.re)
	wim.Mul(wim, half).Sqrt(wim)
	if a.im.Sign() < 0 {
		wim.Neg(wim)
	}
	return bigComplex{re: wre, im: wim}
}

// tanh uses the real decomposition
//
//	tanh(x+iy) = (sinh 2x + i·sin 2y) / (cosh 2x + cos 2y)
//
// which stays exact in big precision for the large Re(γL) regime that
// defeats the fast backend.
func (a bigComplex) tanh() bigComplex {
	p := a.prec()
	two := big.NewFloat(2).SetPrec(p)
	x2 := new(big.Float).SetPrec(p).Mul(a.re, two)
	y2 := new(big.Float).SetPrec(p).Mul(a.im, two)

	e := bigfloat.Exp(x2)
	einv := new(big.Float).SetPrec(p).Quo(big.NewFloat(1).SetPrec(p), e)
	sinh := new(big.Float).SetPrec(p).Sub(e, einv)
	sinh.Quo(sinh, two)
	cosh := new(big.Float).SetPrec(p).Add(e, einv)
	cosh.Quo(cosh, two)

	sin, cos := sincosBig(y2, p)

	den := new(big.Float).SetPrec(p).Add(cosh, cos)
	return bigComplex{
		re: sinh.Quo(sinh, den),
		im: sin.Quo(sin, den),
	}
}

// piCache holds π at the highest precision requested so far.
var piCache struct {
	sync.Mutex
	pi *big.Float
}

// pi120 is π to 120 decimal digits, enough for ~400 bits of precision.
const pi120 = "3.14159265358979323846264338327950288419716939937510582097494459230781640628620899862803482534211706798214808651328230665"

func bigPi(prec uint) *big.Float {
	piCache.Lock()
	defer piCache.Unlock()
	if piCache.pi == nil || piCache.pi.Prec() < prec {
		pi, _, _ := big.ParseFloat(pi120, 10, prec, big.ToNearestEven)
		piCache.pi = pi
	}
	return new(big.Float).SetPrec(prec).Set(piCache.pi)
}

// sincosBig evaluates sin and cos by Taylor series after reducing the
// argument modulo 2π. Arguments here are 2·Im(γL), at most a few
// hundred, so a single reduction pass suffices.
func sincosBig(x *big.Float, prec uint) (sin, cos *big.Float) {
	wp := prec + 64 // guard bits for the reduction
	y := new(big.Float).SetPrec(wp).Set(x)

	twoPi := bigPi(wp)
	twoPi.Mul(twoPi, big.NewFloat(2).SetPrec(wp))
	q := new(big.Float).SetPrec(wp).Quo(y, twoPi)
	qi, _ := q.Int(nil)
	if qi.Sign() != 0 {
		y.Sub(y, new(big.Float).SetPrec(wp).Mul(twoPi, new(big.Float).SetPrec(wp).SetInt(qi)))
	}

	// Taylor about 0; |y| <= 2π after reduction, terms vanish fast.
	x2 := new(big.Float).SetPrec(wp).Mul(y, y)

	sin = new(big.Float).SetPrec(wp).Set(y)
	termS := new(big.Float).SetPrec(wp).Set(y)
	cos = big.NewFloat(1).SetPrec(wp)
	termC := big.NewFloat(1).SetPrec(wp)

	for n := 1; n <= int(wp)/2+24; n++ {
		// sin term: y^(2n+1)/(2n+1)!, alternating
		termS.Mul(termS, x2)
		termS.Quo(termS, big.NewFloat(float64(2*n)*float64(2*n+1)).SetPrec(wp))
		termS.Neg(termS)
		sin.Add(sin, termS)

		// cos term: y^(2n)/(2n)!, alternating
		termC.Mul(termC, x2)
		termC.Quo(termC, big.NewFloat(float64(2*n-1)*float64(2*n)).SetPrec(wp))
		termC.Neg(termC)
		cos.Add(cos, termC)

		if negligible(termS, sin, prec) && negligible(termC, cos, prec) {
			break
		}
	}
	return sin.SetPrec(prec), cos.SetPrec(prec)
}

// negligible reports whether |term| no longer affects sum at prec bits.
func negligible(term, sum *big.Float, prec uint) bool {
	if term.Sign() == 0 {
		return true
	}
	if sum.Sign() == 0 {
		return false
	}
	return term.MantExp(nil) < sum.MantExp(nil)-int(prec)-8
}
