package fit

import (
	"errors"
	"fmt"
	"math"

	"github.com/MaxHalford/eaopt"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"fdtrlab/internal/domain"
)

// Method selects the optimization strategy.
type Method string

const (
	// MethodSimplex is the derivative-free local Nelder-Mead simplex.
	MethodSimplex Method = "simplex"
	// MethodGradient is local BFGS on finite-difference gradients; the
	// only method that reports per-parameter uncertainties.
	MethodGradient Method = "gradient"
	// MethodGlobal is stochastic differential evolution over the full
	// parameter box.
	MethodGlobal Method = "global"
)

// ParseMethod validates a method tag; empty means simplex.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodSimplex, MethodGradient, MethodGlobal:
		return Method(s), nil
	case "":
		return MethodSimplex, nil
	}
	return "", fmt.Errorf("%w: unknown fit method %q", domain.ErrConfiguration, s)
}

// Box constraints for the gonum methods use the lmfit-style sine
// transform: the optimizer sees an unbounded x, the model sees
// v = min + (max-min)·(sin x + 1)/2.

func toExternal(x, min, max float64) float64 {
	return min + (max-min)*(math.Sin(x)+1)/2
}

func toInternal(v, min, max float64) float64 {
	u := 2*(v-min)/(max-min) - 1
	return math.Asin(math.Max(-1, math.Min(1, u)))
}

// minimize dispatches to the chosen method and returns the best
// external varying-parameter values, the reduced chi-square, and
// uncertainties where supported.
func (j *Job) minimize(method Method) (best []float64, chisq float64, stderr map[string]float64, err error) {
	switch method {
	case MethodSimplex:
		best, err = j.minimizeGonum(&optimize.NelderMead{})
	case MethodGradient:
		best, err = j.minimizeGonum(&optimize.BFGS{})
	case MethodGlobal:
		best, err = j.minimizeGlobal()
	default:
		return nil, 0, nil, fmt.Errorf("%w: unknown fit method %q", domain.ErrConfiguration, method)
	}
	if err != nil {
		return nil, 0, nil, err
	}

	res, rerr := j.residuals(best)
	if rerr != nil {
		return nil, 0, nil, rerr
	}
	dof := len(res) - len(j.params.Varying())
	if dof < 1 {
		dof = 1
	}
	chisq = sumSquares(res) / float64(dof)

	if method == MethodGradient {
		stderr = j.uncertainties(best, chisq)
	}
	return best, chisq, stderr, nil
}

// objective is the scalar sum-of-squares over external values. Errors
// during evaluation are latched in j.evalErr and surfaced through the
// problem's Status hook; the optimizer sees +Inf meanwhile.
func (j *Job) objective(external []float64) float64 {
	res, err := j.residuals(external)
	if err != nil {
		if !errors.Is(err, errCancelled) {
			j.evalErr = err
		}
		return math.Inf(1)
	}
	return sumSquares(res)
}

func (j *Job) minimizeGonum(method optimize.Method) ([]float64, error) {
	varying := j.params.Varying()
	n := len(varying)

	x0 := make([]float64, n)
	for i, par := range varying {
		x0[i] = toInternal(par.Value, par.Min, par.Max)
	}

	obj := func(x []float64) float64 {
		ext := make([]float64, n)
		for i, par := range varying {
			ext[i] = toExternal(x[i], par.Min, par.Max)
		}
		return j.objective(ext)
	}

	prob := optimize.Problem{
		Func: obj,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, obj, x, nil)
		},
		Status: func() (optimize.Status, error) {
			if j.cancelled.Load() {
				return optimize.Failure, errCancelled
			}
			if j.evalErr != nil {
				return optimize.Failure, j.evalErr
			}
			return optimize.NotTerminated, nil
		},
	}

	result, err := optimize.Minimize(prob, x0, nil, method)
	if j.cancelled.Load() {
		return nil, errCancelled
	}
	if j.evalErr != nil {
		return nil, j.evalErr
	}
	if err != nil {
		return nil, fmt.Errorf("optimizer: %w", err)
	}

	best := make([]float64, n)
	for i, par := range varying {
		best[i] = toExternal(result.X[i], par.Min, par.Max)
	}
	return best, nil
}

// minimizeGlobal runs differential evolution on the unit box and maps
// linearly onto each parameter's bounds.
func (j *Job) minimizeGlobal() ([]float64, error) {
	varying := j.params.Varying()
	n := len(varying)

	obj := func(u []float64) float64 {
		ext := make([]float64, n)
		for i, par := range varying {
			ext[i] = par.Min + (par.Max-par.Min)*clamp01(u[i])
		}
		return j.objective(ext)
	}

	de, err := eaopt.NewDiffEvo(40, 60, 0, 1, 0.5, 0.3, false, nil)
	if err != nil {
		return nil, fmt.Errorf("differential evolution setup: %w", err)
	}
	u, _, err := de.Minimize(obj, uint(n))
	if j.cancelled.Load() {
		return nil, errCancelled
	}
	if j.evalErr != nil {
		return nil, j.evalErr
	}
	if err != nil {
		return nil, fmt.Errorf("differential evolution: %w", err)
	}

	best := make([]float64, n)
	for i, par := range varying {
		best[i] = par.Min + (par.Max-par.Min)*clamp01(u[i])
	}
	return best, nil
}

// uncertainties estimates per-parameter standard errors from the
// residual Jacobian at the optimum: cov = chisq·(JᵀJ)⁻¹.
func (j *Job) uncertainties(best []float64, chisq float64) map[string]float64 {
	varying := j.params.Varying()
	n := len(varying)

	base, err := j.residuals(best)
	if err != nil {
		return nil
	}
	nres := len(base)

	jac := mat.NewDense(nres, n, nil)
	for col := 0; col < n; col++ {
		h := 1e-5 * math.Max(math.Abs(best[col]), 1e-20)
		hi := append([]float64(nil), best...)
		lo := append([]float64(nil), best...)
		hi[col] += h
		lo[col] -= h
		rHi, err := j.residuals(hi)
		if err != nil {
			return nil
		}
		rLo, err := j.residuals(lo)
		if err != nil {
			return nil
		}
		for row := 0; row < nres; row++ {
			jac.Set(row, col, (rHi[row]-rLo[row])/(2*h))
		}
	}
	// restore the optimum after the perturbations
	if _, err := j.residuals(best); err != nil {
		return nil
	}

	var jtj mat.Dense
	jtj.Mul(jac.T(), jac)
	var cov mat.Dense
	if err := cov.Inverse(&jtj); err != nil {
		j.logger.Warn("singular Jacobian, no uncertainty estimates", "job", j.ID)
		return nil
	}

	out := make(map[string]float64, n)
	for i, par := range varying {
		v := chisq * cov.At(i, i)
		if v > 0 {
			out[par.Name] = math.Sqrt(v)
		}
	}
	return out
}

func clamp01(u float64) float64 {
	return math.Max(0, math.Min(1, u))
}
