// Package loader reads the external file formats the core consumes:
// instrument sweep files and yaml materials catalogs.
package loader

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"fdtrlab/internal/domain"
	"fdtrlab/internal/fit"
)

// headerLines is the fixed instrument preamble skipped in sweep files.
const headerLines = 2

// LoadDataset parses an instrument sweep file: two header lines, then
// whitespace-delimited triples of frequency in Hz, amplitude, and phase
// in radians, one sample per line. Blank lines are tolerated.
func LoadDataset(path string) (fit.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return fit.Dataset{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	d := fit.Dataset{Name: path}
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo <= headerLines {
			continue
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return fit.Dataset{}, fmt.Errorf("%w: %s:%d: want 3 columns, got %d", domain.ErrValidation, path, lineNo, len(fields))
		}
		var vals [3]float64
		for i, s := range fields {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fit.Dataset{}, fmt.Errorf("%w: %s:%d: column %d: %v", domain.ErrValidation, path, lineNo, i+1, err)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fit.Dataset{}, fmt.Errorf("%w: %s:%d: non-finite value %q", domain.ErrValidation, path, lineNo, s)
			}
			vals[i] = v
		}
		if vals[0] <= 0 {
			return fit.Dataset{}, fmt.Errorf("%w: %s:%d: frequency must be > 0, got %g", domain.ErrValidation, path, lineNo, vals[0])
		}
		d.Points = append(d.Points, fit.Point{FrequencyHz: vals[0], Amplitude: vals[1], PhaseRad: vals[2]})
	}
	if err := scanner.Err(); err != nil {
		return fit.Dataset{}, fmt.Errorf("read dataset: %w", err)
	}
	if d.Len() == 0 {
		return fit.Dataset{}, fmt.Errorf("%w: %s: no samples after header", domain.ErrValidation, path)
	}
	return d, nil
}
