package fit

// Point is one experimental sample: modulation frequency, lock-in
// amplitude, and phase in radians.
type Point struct {
	FrequencyHz float64
	Amplitude   float64
	PhaseRad    float64
}

// Dataset is an ordered experimental sweep, read-only once loaded.
type Dataset struct {
	Name   string
	Points []Point
}

// Len returns the sample count.
func (d Dataset) Len() int { return len(d.Points) }

// Frequencies returns the frequency column.
func (d Dataset) Frequencies() []float64 {
	out := make([]float64, len(d.Points))
	for i, p := range d.Points {
		out[i] = p.FrequencyHz
	}
	return out
}

// Phases returns the phase column in radians.
func (d Dataset) Phases() []float64 {
	out := make([]float64, len(d.Points))
	for i, p := range d.Points {
		out[i] = p.PhaseRad
	}
	return out
}

// Amplitudes returns the amplitude column.
func (d Dataset) Amplitudes() []float64 {
	out := make([]float64, len(d.Points))
	for i, p := range d.Points {
		out[i] = p.Amplitude
	}
	return out
}
