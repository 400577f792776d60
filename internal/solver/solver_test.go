package solver

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/integrate/quad"

	"fdtrlab/internal/domain"
	"fdtrlab/internal/material"
)

func goldOnSapphire(t *testing.T) *domain.Stack {
	t.Helper()
	st := domain.New(300)
	require.NoError(t, st.AddSubstrate(material.Sapphire))
	require.NoError(t, st.AddLayer(60e-7, material.Gold))
	c, err := domain.NewConductance(5e3)
	require.NoError(t, err)
	require.NoError(t, st.SetInterface(1, c))
	return st
}

var stdBeam = Beam{PumpRadius: 4.05e-4, ProbeRadius: 4.05e-4}

func TestBareSubstrateDCLimit(t *testing.T) {
	st := domain.New(300)
	require.NoError(t, st.AddSubstrate(material.Sapphire))

	// As ω→0 with an isotropic bare substrate, γ→k and the Hankel
	// integral collapses to 1/(Kz·s·sqrt(2π)) with s² = r_p²+r_s².
	kz := st.Substrate().Material.Kz
	s := math.Sqrt(stdBeam.PumpRadius*stdBeam.PumpRadius + stdBeam.ProbeRadius*stdBeam.ProbeRadius)
	want := 1 / (kz * s * math.Sqrt(2*math.Pi))

	resp, err := Response(st, stdBeam, 1e-3, FastBackend{})
	require.NoError(t, err)
	assert.InEpsilon(t, want, cmplx.Abs(resp), 1e-2, "DC amplitude limit")
	assert.InDelta(t, 0, cmplx.Phase(resp), 1e-2, "phase approaches zero at DC")
}

func TestExampleScenarioPhase(t *testing.T) {
	st := goldOnSapphire(t)

	first, err := Response(st, stdBeam, 1e6, FastBackend{})
	require.NoError(t, err)
	phase := cmplx.Phase(first)

	assert.False(t, math.IsNaN(phase) || math.IsInf(phase, 0), "phase must be finite")
	assert.Greater(t, phase, -math.Pi/2, "thermal phase lag stays within a quadrant")
	assert.Less(t, phase, 0.0, "phase is a lag")

	second, err := Response(st, stdBeam, 1e6, FastBackend{})
	require.NoError(t, err)
	assert.Equal(t, first, second, "same inputs reproduce bit-identical results")
}

func TestBackendsAgreeWhenWellConditioned(t *testing.T) {
	st := goldOnSapphire(t)
	require.True(t, WellConditioned(st, stdBeam, 1e6))

	for _, f := range []float64{1e4, 1e5, 1e6, 1e7} {
		fast, err := Response(st, stdBeam, f, FastBackend{})
		require.NoError(t, err)
		precise, err := Response(st, stdBeam, f, NewPreciseBackend(30))
		require.NoError(t, err)
		assert.InDelta(t, cmplx.Phase(fast), cmplx.Phase(precise), 1e-6,
			"phase disagreement at f=%g", f)
	}
}

func TestConditioningFlagsThickStacks(t *testing.T) {
	st := domain.New(300)
	require.NoError(t, st.AddSubstrate(material.Sapphire))
	require.NoError(t, st.AddLayer(0.1, material.Gold)) // 1 mm of gold

	gl, err := Conditioning(st, stdBeam, 1e7)
	require.NoError(t, err)
	assert.Greater(t, gl, ConditioningThreshold, "millimeter films must be flagged")
	assert.False(t, WellConditioned(st, stdBeam, 1e7))
}

func TestConditioningMatchesFoldDiagnostic(t *testing.T) {
	st := goldOnSapphire(t)
	b := FastBackend{}
	omega := 2 * math.Pi * 1e6
	s2 := stdBeam.PumpRadius*stdBeam.PumpRadius + stdBeam.ProbeRadius*stdBeam.ProbeRadius
	kmax := math.Sqrt(8 * math.Log(1/b.Eps()) / s2)
	ks := make([]float64, b.Nodes())
	ws := make([]float64, b.Nodes())
	quad.Legendre{}.FixedLocations(ks, ws, 0, kmax)

	_, want, err := b.Impedance(st, ks, omega)
	require.NoError(t, err)

	got, err := Conditioning(st, stdBeam, 1e6)
	require.NoError(t, err)
	assert.Equal(t, want, got, "diagnostic must come from the same fold the integral uses")
}

func TestDegenerateMaterialSurfacesInstability(t *testing.T) {
	st := domain.New(300)
	require.NoError(t, st.AddSubstrate(material.Fixed(material.Material{Name: "void", Kr: 0, Kz: 0, C: 0})))

	_, err := Response(st, stdBeam, 1e6, FastBackend{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNumericalInstability)
}

func TestResponsePreconditions(t *testing.T) {
	t.Run("no substrate", func(t *testing.T) {
		_, err := Response(domain.New(300), stdBeam, 1e6, FastBackend{})
		assert.ErrorIs(t, err, domain.ErrDomainState)
	})

	t.Run("bad beam", func(t *testing.T) {
		st := goldOnSapphire(t)
		_, err := Response(st, Beam{PumpRadius: -1, ProbeRadius: 4.05e-4}, 1e6, FastBackend{})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("bad frequency", func(t *testing.T) {
		st := goldOnSapphire(t)
		for _, f := range []float64{0, -10, math.NaN(), math.Inf(1)} {
			_, err := Response(st, stdBeam, f, FastBackend{})
			assert.ErrorIs(t, err, domain.ErrValidation, "f=%g", f)
		}
	})
}

func TestOffsetDampsResponse(t *testing.T) {
	st := goldOnSapphire(t)

	centered, err := Response(st, stdBeam, 1e6, FastBackend{})
	require.NoError(t, err)

	offset := stdBeam
	offset.Offset = 8e-4 // two spot radii away
	displaced, err := Response(st, offset, 1e6, FastBackend{})
	require.NoError(t, err)

	assert.Less(t, cmplx.Abs(displaced), cmplx.Abs(centered),
		"moving the probe off the pump must reduce the measured amplitude")
}

func TestNewBackend(t *testing.T) {
	t.Run("fast", func(t *testing.T) {
		b, err := NewBackend("fast", 0)
		require.NoError(t, err)
		assert.Equal(t, TagFast, b.Name())
	})
	t.Run("precise", func(t *testing.T) {
		b, err := NewBackend("precise", 40)
		require.NoError(t, err)
		assert.Equal(t, TagPrecise, b.Name())
	})
	t.Run("empty tag defaults to fast", func(t *testing.T) {
		b, err := NewBackend("", 0)
		require.NoError(t, err)
		assert.Equal(t, TagFast, b.Name())
	})
	t.Run("unknown tag", func(t *testing.T) {
		_, err := NewBackend("quantum", 0)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})
}

func TestInterfaceConductanceShiftsPhase(t *testing.T) {
	ideal := domain.New(300)
	require.NoError(t, ideal.AddSubstrate(material.Sapphire))
	require.NoError(t, ideal.AddLayer(60e-7, material.Gold))

	resistive := goldOnSapphire(t)

	a, err := Response(ideal, stdBeam, 1e6, FastBackend{})
	require.NoError(t, err)
	b, err := Response(resistive, stdBeam, 1e6, FastBackend{})
	require.NoError(t, err)

	assert.Greater(t, math.Abs(cmplx.Phase(a)-cmplx.Phase(b)), 1e-3,
		"finite interface conductance must change the response")
}
