package fit

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"fdtrlab/internal/domain"
	"fdtrlab/internal/model"
	"fdtrlab/internal/solver"
)

// Status is the fit job state machine: Idle → Running → one of
// Converged, Failed, Cancelled.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusConverged Status = "converged"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ResidualMode selects what the residual is built from. Phase is the
// primary instrument signal and the default; amplitude residuals are
// normalized to their first sample so arbitrary lock-in scaling drops
// out.
type ResidualMode string

const (
	ResidualPhase     ResidualMode = "phase"
	ResidualAmplitude ResidualMode = "amplitude"
	ResidualBoth      ResidualMode = "both"
)

// ParseResidualMode validates a residual mode tag; empty means phase.
func ParseResidualMode(s string) (ResidualMode, error) {
	switch ResidualMode(s) {
	case ResidualPhase, ResidualAmplitude, ResidualBoth:
		return ResidualMode(s), nil
	case "":
		return ResidualPhase, nil
	}
	return "", fmt.Errorf("%w: unknown residual mode %q", domain.ErrConfiguration, s)
}

// errCancelled aborts the optimizer between residual evaluations.
var errCancelled = errors.New("fit cancelled")

// pairing binds one model to one dataset, with parameter setters
// resolved up front and a sticky precise-backend fallback.
type pairing struct {
	model      *model.Model
	data       Dataset
	resolved   []model.Parameter // parallel to params.All()
	usePrecise bool
}

// Result is the snapshot a finished job leaves behind.
type Result struct {
	JobID    uuid.UUID
	Method   Method
	Status   Status
	Values   map[string]float64
	Stderr   map[string]float64 // gradient method only; nil otherwise
	ChiSq    float64            // reduced chi-square of the best fit
	NEval    int
	Err      error
	Started  time.Time
	Finished time.Time
}

// Job owns one fit: a parameter set, one or more model/dataset
// pairings, and the optimization state. Each Job owns its parameter set
// and model bindings exclusively; no locks guard the models themselves.
type Job struct {
	ID     uuid.UUID
	logger *slog.Logger

	params   *Params
	mode     ResidualMode
	pairings []pairing

	// OnProgress, if set before Start, is called after every residual
	// evaluation with the running evaluation count and chi-square.
	OnProgress func(nEval int, chisq float64)

	mu        sync.Mutex
	status    Status
	result    *Result
	cancelled atomic.Bool
	done      chan struct{}

	nEval   int
	evalErr error
}

// NewJob creates an idle job over a parameter set.
func NewJob(params *Params, mode ResidualMode, logger *slog.Logger) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	if mode == "" {
		mode = ResidualPhase
	}
	return &Job{
		ID:     uuid.New(),
		logger: logger,
		params: params,
		mode:   mode,
		status: StatusIdle,
		done:   make(chan struct{}),
	}
}

// Params returns the job's parameter set.
func (j *Job) Params() *Params { return j.params }

// Pair binds a model to a dataset. Every parameter path is resolved on
// the model here, so a bad path fails fast before any evaluation.
func (j *Job) Pair(m *model.Model, d Dataset) error {
	if j.Status() != StatusIdle {
		return fmt.Errorf("%w: cannot pair on a %s job", domain.ErrDomainState, j.Status())
	}
	if d.Len() == 0 {
		return fmt.Errorf("%w: dataset %q is empty", domain.ErrValidation, d.Name)
	}
	if j.mode == ResidualAmplitude || j.mode == ResidualBoth {
		// The first sample normalizes the amplitude residuals.
		if d.Points[0].Amplitude == 0 {
			return fmt.Errorf("%w: dataset %q: first amplitude sample is zero and cannot normalize amplitude residuals", domain.ErrValidation, d.Name)
		}
	}
	resolved := make([]model.Parameter, 0, len(j.params.All()))
	for _, par := range j.params.All() {
		handle, err := m.Resolve(par.Path)
		if err != nil {
			return err
		}
		resolved = append(resolved, handle)
	}
	j.pairings = append(j.pairings, pairing{model: m, data: d, resolved: resolved})
	return nil
}

// Start validates preconditions and launches the minimization on a
// background goroutine. Callers observe completion via Done or Wait.
func (j *Job) Start(method Method) error {
	if len(j.pairings) == 0 {
		return fmt.Errorf("%w: no model/dataset pairings", domain.ErrConfiguration)
	}
	if len(j.params.Varying()) == 0 {
		return fmt.Errorf("%w: no varying parameters", domain.ErrConfiguration)
	}
	if _, err := ParseMethod(string(method)); err != nil {
		return err
	}

	j.mu.Lock()
	if j.status != StatusIdle {
		j.mu.Unlock()
		return fmt.Errorf("%w: job already %s", domain.ErrDomainState, j.status)
	}
	j.status = StatusRunning
	j.mu.Unlock()

	go j.run(method)
	return nil
}

// Cancel requests cooperative cancellation. The flag is checked between
// residual evaluations, never mid-evaluation; the job transitions to
// Cancelled at the next checkpoint and partial results are discarded.
func (j *Job) Cancel() {
	j.cancelled.Store(true)
}

// Done is closed when the job leaves Running.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks for completion and returns the result snapshot.
func (j *Job) Wait() *Result {
	<-j.done
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Status returns the current state.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *Job) run(method Method) {
	started := time.Now()

	initial := make([]float64, 0, len(j.params.Varying()))
	for _, par := range j.params.Varying() {
		initial = append(initial, par.Value)
	}

	best, chisq, stderr, err := j.minimize(method)

	res := &Result{
		JobID:   j.ID,
		Method:  method,
		NEval:   j.nEval,
		Started: started,
	}

	j.mu.Lock()
	defer func() {
		j.result = res
		j.mu.Unlock()
		close(j.done)
	}()
	res.Finished = time.Now()

	restore := func() {
		for i, par := range j.params.Varying() {
			par.Value = initial[i]
		}
		_ = j.applyParams()
	}

	switch {
	case j.cancelled.Load():
		restore()
		res.Status = StatusCancelled
		j.status = StatusCancelled
		j.logger.Info("fit cancelled", "job", j.ID, "evals", j.nEval)
	case err != nil:
		restore()
		res.Status = StatusFailed
		res.Err = err
		j.status = StatusFailed
		j.logger.Error("fit failed", "job", j.ID, "evals", j.nEval, "error", err)
	default:
		// write the best values back into the parameter set and stacks
		for i, par := range j.params.Varying() {
			par.Value = best[i]
		}
		j.applyParams()
		res.Status = StatusConverged
		res.Values = j.params.Values()
		res.Stderr = stderr
		res.ChiSq = chisq
		j.status = StatusConverged
		j.logger.Info("fit converged", "job", j.ID, "evals", j.nEval, "chisq", chisq)
	}
}

// applyParams pushes every parameter's current value into every paired
// stack. Non-varying parameters are applied too, so explicit values in
// the set always win over whatever the stack was built with.
func (j *Job) applyParams() error {
	for pi := range j.pairings {
		p := &j.pairings[pi]
		for i, par := range j.params.All() {
			if err := p.resolved[i].Set(par.Value); err != nil {
				return fmt.Errorf("apply %s=%g: %w", par.Name, par.Value, err)
			}
		}
	}
	return nil
}

// residuals evaluates the concatenated residual vector for the given
// varying-parameter values. On numerical instability from a fast
// backend, the affected pairing is retried on the precise backend and
// stays there for the remainder of the fit.
func (j *Job) residuals(varying []float64) ([]float64, error) {
	if j.cancelled.Load() {
		return nil, errCancelled
	}
	for i, par := range j.params.Varying() {
		par.Value = varying[i]
	}
	if err := j.applyParams(); err != nil {
		return nil, err
	}

	var out []float64
	for pi := range j.pairings {
		p := &j.pairings[pi]
		res, err := j.pairingResiduals(p)
		if err != nil {
			return nil, err
		}
		out = append(out, res...)
	}
	j.nEval++
	if j.OnProgress != nil {
		j.OnProgress(j.nEval, sumSquares(out)/float64(max(1, len(out)-len(j.params.Varying()))))
	}
	return out, nil
}

func (j *Job) pairingResiduals(p *pairing) ([]float64, error) {
	m := p.model
	if p.usePrecise {
		m = p.model.WithBackend(solver.NewPreciseBackend(0))
	}
	freqs := p.data.Frequencies()
	phases, amps, err := m.Sweep(freqs)
	if errors.Is(err, domain.ErrNumericalInstability) && !p.usePrecise {
		// Documented fallback: the fast backend lost the recursion on
		// this stack; retry on the precise backend rather than failing
		// the whole run.
		j.logger.Warn("fast backend unstable, retrying on precise backend",
			"job", j.ID, "dataset", p.data.Name, "error", err)
		p.usePrecise = true
		phases, amps, err = p.model.WithBackend(solver.NewPreciseBackend(0)).Sweep(freqs)
	}
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", p.data.Name, err)
	}

	var out []float64
	if j.mode == ResidualPhase || j.mode == ResidualBoth {
		for i, ph := range p.data.Phases() {
			out = append(out, phases[i]-ph)
		}
	}
	if j.mode == ResidualAmplitude || j.mode == ResidualBoth {
		measured := p.data.Amplitudes()
		scaleModel, scaleData := amps[0], measured[0]
		if scaleModel == 0 {
			return nil, fmt.Errorf("%w: dataset %q: zero model amplitude at normalization frequency %g Hz",
				domain.ErrNumericalInstability, p.data.Name, freqs[0])
		}
		for i, a := range measured {
			out = append(out, amps[i]/scaleModel-a/scaleData)
		}
	}
	return out, nil
}

func sumSquares(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x * x
	}
	return s
}
