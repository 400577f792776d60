package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"fdtrlab/internal/domain"
)

// Parameter is a resolved get/set handle on one scalar quantity of the
// model's stack. Set validates and invalidates the response cache.
type Parameter struct {
	Path string
	Get  func() float64
	Set  func(v float64) error
}

// Resolve turns a dotted parameter path into a Parameter. Supported
// paths:
//
//	substrate.kz | substrate.kr | substrate.c | substrate.density
//	layers.N.thickness | layers.N.kz | layers.N.kr | layers.N.c | layers.N.density
//	interfaces.N.g
//
// N is 1-based from the bottom of the stack. Unknown paths fail with
// domain.ErrConfiguration so fitting can reject them before any
// evaluation.
func (m *Model) Resolve(path string) (Parameter, error) {
	parts := strings.Split(path, ".")
	switch parts[0] {
	case "substrate":
		if len(parts) != 2 {
			return Parameter{}, badPath(path)
		}
		return m.materialField(path, m.stack.Substrate(), parts[1])

	case "layers":
		if len(parts) != 3 {
			return Parameter{}, badPath(path)
		}
		idx, err := strconv.Atoi(parts[1])
		if err != nil {
			return Parameter{}, badPath(path)
		}
		layer, err := m.stack.LayerAt(idx)
		if err != nil {
			return Parameter{}, fmt.Errorf("%w: %q: %v", domain.ErrConfiguration, path, err)
		}
		if parts[2] == "thickness" {
			return Parameter{
				Path: path,
				Get:  func() float64 { return layer.Thickness },
				Set: func(v float64) error {
					if !finitePos(v) {
						return fmt.Errorf("%w: %s must be finite and > 0, got %g", domain.ErrValidation, path, v)
					}
					layer.Thickness = v
					m.Invalidate()
					return nil
				},
			}, nil
		}
		return m.materialField(path, layer, parts[2])

	case "interfaces":
		if len(parts) != 3 || parts[2] != "g" {
			return Parameter{}, badPath(path)
		}
		idx, err := strconv.Atoi(parts[1])
		if err != nil {
			return Parameter{}, badPath(path)
		}
		if idx < 1 || idx > m.stack.NumLayers() {
			return Parameter{}, fmt.Errorf("%w: %q: interface %d with %d layers", domain.ErrConfiguration, path, idx, m.stack.NumLayers())
		}
		return Parameter{
			Path: path,
			Get: func() float64 {
				c := m.stack.Interface(idx)
				if c.Ideal {
					return math.Inf(1)
				}
				return c.G
			},
			Set: func(v float64) error {
				c, err := domain.NewConductance(v)
				if err != nil {
					return err
				}
				if err := m.stack.SetInterface(idx, c); err != nil {
					return err
				}
				m.Invalidate()
				return nil
			},
		}, nil
	}
	return Parameter{}, badPath(path)
}

func (m *Model) materialField(path string, layer *domain.Layer, field string) (Parameter, error) {
	var ptr *float64
	switch field {
	case "kz":
		ptr = &layer.Material.Kz
	case "kr":
		ptr = &layer.Material.Kr
	case "c":
		ptr = &layer.Material.C
	case "density":
		ptr = &layer.Material.Density
	default:
		return Parameter{}, badPath(path)
	}
	return Parameter{
		Path: path,
		Get:  func() float64 { return *ptr },
		Set: func(v float64) error {
			if !finitePos(v) {
				return fmt.Errorf("%w: %s must be finite and > 0, got %g", domain.ErrValidation, path, v)
			}
			*ptr = v
			m.Invalidate()
			return nil
		},
	}, nil
}

func badPath(path string) error {
	return fmt.Errorf("%w: unresolvable parameter path %q", domain.ErrConfiguration, path)
}

func finitePos(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
