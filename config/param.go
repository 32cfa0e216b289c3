package config

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/spray/timefunc"
)

// ScalarParam is a time-varying scalar as written in YAML: either a bare
// number, {type: table, values: [[t, v], ...]} or
// {type: polynomial, coeffs: [[c, e], ...]}.
type ScalarParam struct {
	Type   string      `yaml:"type"` // constant, table, polynomial; empty = unset
	Value  float64     `yaml:"value,omitempty"`
	Values [][]float64 `yaml:"values,omitempty"`
	Coeffs [][]float64 `yaml:"coeffs,omitempty"`
}

// ConstantScalar returns a constant parameter.
func ConstantScalar(v float64) ScalarParam {
	return ScalarParam{Type: "constant", Value: v}
}

// IsSet reports whether the parameter was given.
func (s ScalarParam) IsSet() bool { return s.Type != "" }

// UnmarshalYAML accepts a number or a typed mapping.
func (s *ScalarParam) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		var v float64
		if err := n.Decode(&v); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		*s = ConstantScalar(v)
		return nil
	}
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a number or a mapping", n.Line)
	}
	// Alias type drops the method set so Decode does not recurse.
	type raw ScalarParam
	var r raw
	if err := n.Decode(&r); err != nil {
		return err
	}
	r.Type = strings.ToLower(r.Type)
	switch r.Type {
	case "constant", "table", "polynomial":
	default:
		return fmt.Errorf("line %d: unknown time function type %q", n.Line, r.Type)
	}
	*s = ScalarParam(r)
	return nil
}

// MarshalYAML writes constants back as bare numbers.
func (s ScalarParam) MarshalYAML() (any, error) {
	if s.Type == "constant" {
		return s.Value, nil
	}
	type raw ScalarParam
	return raw(s), nil
}

// Build returns the time function, or nil when the parameter is unset.
func (s ScalarParam) Build() (timefunc.Scalar, error) {
	switch s.Type {
	case "":
		return nil, nil
	case "constant":
		return timefunc.Constant(s.Value), nil
	case "table":
		ts, vs, err := columns(s.Values, 2)
		if err != nil {
			return nil, err
		}
		return timefunc.NewTable(ts, vs[0])
	case "polynomial":
		poly := make(timefunc.Polynomial, len(s.Coeffs))
		for i, c := range s.Coeffs {
			if len(c) != 2 {
				return nil, fmt.Errorf("%w: polynomial term %d needs [coeff, exp], got %d values",
					ErrInvalid, i, len(c))
			}
			poly[i] = timefunc.Term{Coeff: c[0], Exp: c[1]}
		}
		return poly, nil
	}
	return nil, fmt.Errorf("%w: unknown time function type %q", ErrInvalid, s.Type)
}

// VectorParam is a time-varying 3-vector as written in YAML: either
// [x, y, z] or {type: table, values: [[t, x, y, z], ...]}.
type VectorParam struct {
	Type   string      `yaml:"type"` // constant, table; empty = unset
	Value  [3]float64  `yaml:"value,omitempty"`
	Values [][]float64 `yaml:"values,omitempty"`
}

// ConstantVector returns a constant vector parameter.
func ConstantVector(v r3.Vec) VectorParam {
	return VectorParam{Type: "constant", Value: [3]float64{v.X, v.Y, v.Z}}
}

// IsSet reports whether the parameter was given.
func (p VectorParam) IsSet() bool { return p.Type != "" }

// UnmarshalYAML accepts a three-element sequence or a table mapping.
func (p *VectorParam) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.SequenceNode:
		var v [3]float64
		if err := n.Decode(&v); err != nil {
			return fmt.Errorf("line %d: vector: %w", n.Line, err)
		}
		*p = VectorParam{Type: "constant", Value: v}
		return nil
	case yaml.MappingNode:
		type raw VectorParam
		var r raw
		if err := n.Decode(&r); err != nil {
			return err
		}
		r.Type = strings.ToLower(r.Type)
		if r.Type != "constant" && r.Type != "table" {
			return fmt.Errorf("line %d: unknown vector function type %q", n.Line, r.Type)
		}
		*p = VectorParam(r)
		return nil
	}
	return fmt.Errorf("line %d: expected [x, y, z] or a mapping", n.Line)
}

// MarshalYAML writes constants back as bare sequences.
func (p VectorParam) MarshalYAML() (any, error) {
	if p.Type == "constant" {
		return p.Value[:], nil
	}
	type raw VectorParam
	return raw(p), nil
}

// Build returns the vector function, or nil when the parameter is unset.
func (p VectorParam) Build() (timefunc.Vector, error) {
	switch p.Type {
	case "":
		return nil, nil
	case "constant":
		return timefunc.ConstantVector{X: p.Value[0], Y: p.Value[1], Z: p.Value[2]}, nil
	case "table":
		ts, cs, err := columns(p.Values, 4)
		if err != nil {
			return nil, err
		}
		vs := make([]r3.Vec, len(ts))
		for i := range vs {
			vs[i] = r3.Vec{X: cs[0][i], Y: cs[1][i], Z: cs[2][i]}
		}
		return timefunc.NewVectorTable(ts, vs)
	}
	return nil, fmt.Errorf("%w: unknown vector function type %q", ErrInvalid, p.Type)
}

// columns splits table rows of width w into the time column and the w-1
// value columns.
func columns(rows [][]float64, w int) (ts []float64, vs [][]float64, err error) {
	ts = make([]float64, len(rows))
	vs = make([][]float64, w-1)
	for j := range vs {
		vs[j] = make([]float64, len(rows))
	}
	for i, row := range rows {
		if len(row) != w {
			return nil, nil, fmt.Errorf("%w: table row %d has %d values, want %d", ErrInvalid, i, len(row), w)
		}
		ts[i] = row[0]
		for j := 1; j < w; j++ {
			vs[j-1][i] = row[j]
		}
	}
	return ts, vs, nil
}
