// Package service wires the configuration, material catalog, solver,
// fitting, and result store into the operations the CLI exposes.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"fdtrlab/internal/config"
	"fdtrlab/internal/domain"
	"fdtrlab/internal/fit"
	"fdtrlab/internal/loader"
	"fdtrlab/internal/material"
	"fdtrlab/internal/model"
	"fdtrlab/internal/repository/sqlite"
	"fdtrlab/internal/sensitivity"
	"fdtrlab/internal/solver"
)

// SweepPoint is one computed sample of a frequency sweep
type SweepPoint struct {
	FrequencyHz float64
	PhaseRad    float64
	Amplitude   float64
}

// AnalysisService provides the modeling operations: sweeps, sensitivity
// analysis, and fitting runs against measured datasets.
type AnalysisService struct {
	cfg      *config.Config
	catalog  material.Catalog
	model    *model.Model
	repo     *sqlite.Repository
	eventBus *EventBus
	logger   *slog.Logger
}

// NewAnalysisService builds the material catalog, sample stack, and
// model described by cfg. repo may be nil to skip result persistence.
func NewAnalysisService(cfg *config.Config, repo *sqlite.Repository, eventBus *EventBus, logger *slog.Logger) (*AnalysisService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if eventBus == nil {
		eventBus = NewEventBus()
	}

	catalog := material.BuiltinCatalog()
	if cfg.Materials != "" {
		mats, err := loader.LoadMaterials(cfg.Materials)
		if err != nil {
			return nil, fmt.Errorf("load materials overlay: %w", err)
		}
		for _, m := range mats {
			catalog.Add(m.Name, material.Fixed(m))
		}
		logger.Info("materials overlay loaded", "path", cfg.Materials, "count", len(mats))
	}

	m, err := buildModel(cfg, catalog)
	if err != nil {
		return nil, err
	}
	logger.Debug("stack configured", "description", m.Stack().Describe())

	return &AnalysisService{
		cfg:      cfg,
		catalog:  catalog,
		model:    m,
		repo:     repo,
		eventBus: eventBus,
		logger:   logger,
	}, nil
}

func buildModel(cfg *config.Config, catalog material.Catalog) (*model.Model, error) {
	st := domain.New(cfg.Temperature)

	src, err := catalog.Lookup(cfg.Stack.Substrate)
	if err != nil {
		return nil, err
	}
	if err := st.AddSubstrate(src); err != nil {
		return nil, err
	}

	for i, l := range cfg.Stack.Layers {
		src, err := catalog.Lookup(l.Material)
		if err != nil {
			return nil, err
		}
		if err := st.AddLayer(l.Thickness, src); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i+1, err)
		}
	}

	for i, g := range cfg.Stack.Interfaces {
		c := domain.IdealConductance()
		if !g.Ideal {
			c, err = domain.NewConductance(g.G)
			if err != nil {
				return nil, fmt.Errorf("interface %d: %w", i+1, err)
			}
		}
		if err := st.SetInterface(i+1, c); err != nil {
			return nil, err
		}
	}

	backend, err := solver.NewBackend(cfg.Backend.Kind, cfg.Backend.Digits)
	if err != nil {
		return nil, err
	}

	beam := solver.Beam{
		PumpRadius:  cfg.Beam.PumpRadius,
		ProbeRadius: cfg.Beam.ProbeRadius,
		Offset:      cfg.Beam.Offset,
	}

	return model.New(st, beam, backend)
}

// Model exposes the configured model, mainly for inspection
func (s *AnalysisService) Model() *model.Model { return s.model }

// SweepFrequencies returns the log-spaced frequency grid of the
// configured sweep.
func (s *AnalysisService) SweepFrequencies() ([]float64, error) {
	if s.cfg.Sweep == nil {
		return nil, fmt.Errorf("%w: no sweep configured", domain.ErrConfiguration)
	}
	return logspace(s.cfg.Sweep.StartHz, s.cfg.Sweep.EndHz, s.cfg.Sweep.Points), nil
}

// Sweep computes the configured frequency sweep
func (s *AnalysisService) Sweep() ([]SweepPoint, error) {
	freqs, err := s.SweepFrequencies()
	if err != nil {
		return nil, err
	}

	phases, amps, err := s.model.Sweep(freqs)
	if err != nil {
		return nil, err
	}

	points := make([]SweepPoint, len(freqs))
	for i := range freqs {
		points[i] = SweepPoint{FrequencyHz: freqs[i], PhaseRad: phases[i], Amplitude: amps[i]}
	}

	s.eventBus.Publish(Event{
		Type:    EventSweepCompleted,
		Payload: map[string]interface{}{"points": len(points)},
	})

	return points, nil
}

// Sensitivity computes the normalized phase sensitivity of one model
// parameter over the configured sweep grid.
func (s *AnalysisService) Sensitivity(path string) ([]float64, []float64, error) {
	freqs, err := s.SweepFrequencies()
	if err != nil {
		return nil, nil, err
	}
	sens, err := sensitivity.Analyze(s.model, path, freqs, sensitivity.DefaultRelativeStep)
	if err != nil {
		return nil, nil, err
	}
	return freqs, sens, nil
}

// RunFit loads the configured datasets, runs the fit to completion, and
// persists the result. Cancelling ctx cancels the job cooperatively;
// the returned result then carries the cancelled status.
func (s *AnalysisService) RunFit(ctx context.Context) (*fit.Result, error) {
	fc := s.cfg.Fit
	if fc == nil {
		return nil, fmt.Errorf("%w: no fit configured", domain.ErrConfiguration)
	}

	mode, err := fit.ParseResidualMode(fc.Residual)
	if err != nil {
		return nil, err
	}
	method, err := fit.ParseMethod(fc.Method)
	if err != nil {
		return nil, err
	}

	params := fit.NewParams()
	for _, p := range fc.Parameters {
		if err := params.AddPath(p.Name, p.Path, p.Value, p.Min, p.Max, p.Varies()); err != nil {
			return nil, err
		}
	}

	job := fit.NewJob(params, mode, s.logger)
	job.OnProgress = func(nEval int, chisq float64) {
		s.eventBus.Publish(Event{
			Type:    EventJobProgress,
			Payload: map[string]interface{}{"job_id": job.ID.String(), "neval": nEval, "chisq": chisq},
		})
	}

	for _, path := range fc.Datasets {
		d, err := loader.LoadDataset(path)
		if err != nil {
			return nil, err
		}
		s.eventBus.Publish(Event{
			Type:    EventDatasetLoaded,
			Payload: map[string]interface{}{"path": path, "points": d.Len()},
		})
		if err := job.Pair(s.model, d); err != nil {
			return nil, err
		}
	}

	if err := job.Start(method); err != nil {
		return nil, err
	}
	s.eventBus.Publish(Event{
		Type:    EventJobStarted,
		Payload: map[string]interface{}{"job_id": job.ID.String(), "method": string(method)},
	})

	select {
	case <-ctx.Done():
		job.Cancel()
		<-job.Done()
	case <-job.Done():
	}
	res := job.Wait()

	s.eventBus.Publish(Event{
		Type:    terminalEvent(res.Status),
		Payload: map[string]interface{}{"job_id": res.JobID.String(), "status": string(res.Status), "chisq": res.ChiSq},
	})

	if s.repo != nil {
		if err := s.repo.SaveResult(context.WithoutCancel(ctx), *res, params); err != nil {
			return res, fmt.Errorf("save result: %w", err)
		}
	}

	return res, nil
}

func terminalEvent(st fit.Status) EventType {
	switch st {
	case fit.StatusConverged:
		return EventJobConverged
	case fit.StatusCancelled:
		return EventJobCancelled
	default:
		return EventJobFailed
	}
}

// logspace returns n log-spaced values from lo to hi inclusive
func logspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	step := (math.Log10(hi) - math.Log10(lo)) / float64(n-1)
	for i := range out {
		out[i] = math.Pow(10, math.Log10(lo)+float64(i)*step)
	}
	return out
}
