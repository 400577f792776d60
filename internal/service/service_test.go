package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"fdtrlab/internal/config"
	"fdtrlab/internal/domain"
	"fdtrlab/internal/fit"
	"fdtrlab/internal/repository/sqlite"

	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// baseConfig is gold on sapphire with one finite boundary conductance
func baseConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Stack.Layers = []config.LayerConfig{{Material: "gold", Thickness: 1.0e-5}}
	cfg.Stack.Interfaces = []config.ConductanceValue{{G: 5000}}
	cfg.Sweep = &config.SweepConfig{StartHz: 1e4, EndHz: 1e7, Points: 12}
	return cfg
}

// writeDataset computes the configured model's sweep and writes it in
// the instrument file format.
func writeDataset(t *testing.T, cfg *config.Config) string {
	t.Helper()
	svc, err := NewAnalysisService(cfg, nil, nil, quietLogger())
	require.NoError(t, err)

	points, err := svc.Sweep()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "sweep.txt")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	fmt.Fprintln(f, "synthetic sweep")
	fmt.Fprintln(f, "freq_hz amplitude phase_rad")
	for _, p := range points {
		fmt.Fprintf(f, "%.10e %.10e %.10e\n", p.FrequencyHz, p.Amplitude, p.PhaseRad)
	}
	return path
}

func TestNewAnalysisServiceRejectsUnknownMaterial(t *testing.T) {
	cfg := baseConfig()
	cfg.Stack.Substrate = "unobtainium"
	_, err := NewAnalysisService(cfg, nil, nil, quietLogger())
	require.Error(t, err)
}

func TestSweep(t *testing.T) {
	cfg := baseConfig()
	bus := NewEventBus()
	events := make(chan Event, 16)
	bus.Subscribe(events)

	svc, err := NewAnalysisService(cfg, nil, bus, quietLogger())
	require.NoError(t, err)

	points, err := svc.Sweep()
	require.NoError(t, err)
	require.Len(t, points, cfg.Sweep.Points)
	require.InEpsilon(t, cfg.Sweep.StartHz, points[0].FrequencyHz, 1e-9)
	for _, p := range points {
		require.Greater(t, p.Amplitude, 0.0)
		require.Less(t, p.PhaseRad, 0.0)
	}

	select {
	case ev := <-events:
		require.Equal(t, EventSweepCompleted, ev.Type)
	default:
		t.Fatal("expected sweep event")
	}
}

func TestSweepRequiresConfiguration(t *testing.T) {
	cfg := baseConfig()
	cfg.Sweep = nil
	svc, err := NewAnalysisService(cfg, nil, nil, quietLogger())
	require.NoError(t, err)

	_, err = svc.Sweep()
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestSensitivity(t *testing.T) {
	svc, err := NewAnalysisService(baseConfig(), nil, nil, quietLogger())
	require.NoError(t, err)

	freqs, sens, err := svc.Sensitivity("interfaces.1.g")
	require.NoError(t, err)
	require.Len(t, sens, len(freqs))

	maxAbs := 0.0
	for _, s := range sens {
		maxAbs = max(maxAbs, math.Abs(s))
	}
	require.Greater(t, maxAbs, 1e-6)
}

func TestRunFitRecoversConductance(t *testing.T) {
	dataPath := writeDataset(t, baseConfig())

	cfg := baseConfig()
	cfg.Fit = &config.FitConfig{
		Method:   "simplex",
		Residual: "phase",
		Datasets: []string{dataPath},
		Parameters: []config.ParameterConfig{
			{Name: "g1", Path: "interfaces.1.g", Value: 2000, Min: 500, Max: 50000},
		},
	}

	repo, err := sqlite.New(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer repo.Close()

	bus := NewEventBus()
	events := make(chan Event, 1024)
	bus.Subscribe(events)

	svc, err := NewAnalysisService(cfg, repo, bus, quietLogger())
	require.NoError(t, err)

	res, err := svc.RunFit(context.Background())
	require.NoError(t, err)
	require.Equal(t, fit.StatusConverged, res.Status)
	require.InEpsilon(t, 5000.0, res.Values["g1"], 1e-2)

	seen := map[EventType]bool{}
	for len(events) > 0 {
		seen[(<-events).Type] = true
	}
	require.True(t, seen[EventDatasetLoaded])
	require.True(t, seen[EventJobStarted])
	require.True(t, seen[EventJobProgress])
	require.True(t, seen[EventJobConverged])

	stored, err := repo.GetResult(context.Background(), res.JobID)
	require.NoError(t, err)
	require.Equal(t, fit.StatusConverged, stored.Status)
	require.Len(t, stored.Params, 1)
	require.Equal(t, "g1", stored.Params[0].Name)
}

func TestRunFitCancelledContext(t *testing.T) {
	dataPath := writeDataset(t, baseConfig())

	cfg := baseConfig()
	cfg.Fit = &config.FitConfig{
		Method:   "simplex",
		Residual: "phase",
		Datasets: []string{dataPath},
		Parameters: []config.ParameterConfig{
			{Name: "g1", Path: "interfaces.1.g", Value: 2000, Min: 500, Max: 50000},
		},
	}

	svc, err := NewAnalysisService(cfg, nil, nil, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := svc.RunFit(ctx)
	require.NoError(t, err)
	require.Equal(t, fit.StatusCancelled, res.Status)
}

func TestRunFitRequiresConfiguration(t *testing.T) {
	svc, err := NewAnalysisService(baseConfig(), nil, nil, quietLogger())
	require.NoError(t, err)

	_, err = svc.RunFit(context.Background())
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestRunFitRejectsBadParameterPath(t *testing.T) {
	dataPath := writeDataset(t, baseConfig())

	cfg := baseConfig()
	cfg.Fit = &config.FitConfig{
		Method:   "simplex",
		Residual: "phase",
		Datasets: []string{dataPath},
		Parameters: []config.ParameterConfig{
			{Name: "bogus", Path: "layers.9.thickness", Value: 1, Min: 0.5, Max: 2},
		},
	}

	svc, err := NewAnalysisService(cfg, nil, nil, quietLogger())
	require.NoError(t, err)

	_, err = svc.RunFit(context.Background())
	require.Error(t, err)
}
