// Package timefunc provides time-varying scalar and vector parameters.
//
// Injector properties such as position, cone angles, velocity magnitude and
// the flow-rate profile are all evaluated through these types, so they can be
// constant or tabulated without the injection code caring which.
package timefunc

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrInvalidTable is returned when table knots cannot define a function.
var ErrInvalidTable = errors.New("timefunc: invalid table")

// Scalar is a deterministic scalar function of time.
type Scalar interface {
	Value(t float64) float64
	// Integrate returns the integral of the function over [t0, t1].
	Integrate(t0, t1 float64) float64
}

// Vector is a deterministic 3-vector function of time.
type Vector interface {
	Value(t float64) r3.Vec
}

// Constant is a time-invariant scalar.
type Constant float64

// Value returns the constant.
func (c Constant) Value(float64) float64 { return float64(c) }

// Integrate returns c*(t1-t0).
func (c Constant) Integrate(t0, t1 float64) float64 { return float64(c) * (t1 - t0) }

// Table is a piecewise-linear function through (time, value) knots.
// Outside the knot range the end values are held.
type Table struct {
	ts, vs []float64
	pl     *interp.PiecewiseLinear
}

// NewTable builds a table from knots. Times must be strictly increasing.
// A single knot yields a constant function.
func NewTable(ts, vs []float64) (*Table, error) {
	if len(ts) == 0 {
		return nil, fmt.Errorf("%w: no knots", ErrInvalidTable)
	}
	if len(ts) != len(vs) {
		return nil, fmt.Errorf("%w: %d times but %d values", ErrInvalidTable, len(ts), len(vs))
	}
	for i := 1; i < len(ts); i++ {
		if !(ts[i] > ts[i-1]) {
			return nil, fmt.Errorf("%w: times not strictly increasing at knot %d (%g <= %g)",
				ErrInvalidTable, i, ts[i], ts[i-1])
		}
	}

	tab := &Table{
		ts: append([]float64(nil), ts...),
		vs: append([]float64(nil), vs...),
	}
	if len(ts) > 1 {
		tab.pl = &interp.PiecewiseLinear{}
		if err := tab.pl.Fit(tab.ts, tab.vs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
		}
	}
	return tab, nil
}

// Value interpolates the table at t.
func (tab *Table) Value(t float64) float64 {
	if tab.pl == nil {
		return tab.vs[0]
	}
	return tab.pl.Predict(t)
}

// Integrate integrates the table exactly over [t0, t1].
func (tab *Table) Integrate(t0, t1 float64) float64 {
	if t1 == t0 {
		return 0
	}
	if t1 < t0 {
		return -tab.Integrate(t1, t0)
	}
	if tab.pl == nil {
		return tab.vs[0] * (t1 - t0)
	}

	// Trapezoid rule is exact on the interval split at every interior knot.
	xs := make([]float64, 0, len(tab.ts)+2)
	xs = append(xs, t0)
	for _, k := range tab.ts {
		if k > t0 && k < t1 {
			xs = append(xs, k)
		}
	}
	xs = append(xs, t1)

	fs := make([]float64, len(xs))
	for i, x := range xs {
		fs[i] = tab.pl.Predict(x)
	}
	return integrate.Trapezoidal(xs, fs)
}

// Len returns the number of knots.
func (tab *Table) Len() int { return len(tab.ts) }

// Term is a single polynomial term Coeff * t^Exp.
type Term struct {
	Coeff float64
	Exp   float64
}

// Polynomial is a sum of power terms in t.
type Polynomial []Term

// Value evaluates the polynomial at t.
func (p Polynomial) Value(t float64) float64 {
	var v float64
	for _, term := range p {
		v += term.Coeff * math.Pow(t, term.Exp)
	}
	return v
}

// Integrate integrates the polynomial analytically over [t0, t1].
func (p Polynomial) Integrate(t0, t1 float64) float64 {
	var v float64
	for _, term := range p {
		if term.Exp == -1 {
			v += term.Coeff * math.Log(t1/t0)
			continue
		}
		e := term.Exp + 1
		v += term.Coeff / e * (math.Pow(t1, e) - math.Pow(t0, e))
	}
	return v
}

// ConstantVector is a time-invariant vector.
type ConstantVector r3.Vec

// Value returns the vector.
func (c ConstantVector) Value(float64) r3.Vec { return r3.Vec(c) }

// VectorTable interpolates each component of a vector independently.
type VectorTable struct {
	x, y, z *Table
}

// NewVectorTable builds a component-wise piecewise-linear vector function.
func NewVectorTable(ts []float64, vs []r3.Vec) (*VectorTable, error) {
	if len(ts) != len(vs) {
		return nil, fmt.Errorf("%w: %d times but %d vectors", ErrInvalidTable, len(ts), len(vs))
	}
	xs := make([]float64, len(vs))
	ys := make([]float64, len(vs))
	zs := make([]float64, len(vs))
	for i, v := range vs {
		xs[i], ys[i], zs[i] = v.X, v.Y, v.Z
	}

	vt := &VectorTable{}
	var err error
	if vt.x, err = NewTable(ts, xs); err != nil {
		return nil, err
	}
	if vt.y, err = NewTable(ts, ys); err != nil {
		return nil, err
	}
	if vt.z, err = NewTable(ts, zs); err != nil {
		return nil, err
	}
	return vt, nil
}

// Value interpolates the vector at t.
func (vt *VectorTable) Value(t float64) r3.Vec {
	return r3.Vec{X: vt.x.Value(t), Y: vt.y.Value(t), Z: vt.z.Value(t)}
}

// IsConstant reports whether f is known not to vary in time.
// Unknown implementations are assumed to vary.
func IsConstant(f any) bool {
	switch fn := f.(type) {
	case Constant, ConstantVector:
		return true
	case *Table:
		return fn.Len() == 1
	case *VectorTable:
		return fn.x.Len() == 1
	}
	return false
}

// sampledBreakpoints is the number of equal intervals Breakpoints uses for
// functions that are not piecewise linear.
const sampledBreakpoints = 64

// Breakpoints returns sorted times in [t0, t1], both ends included, between
// which every function in fs is linear. Tables contribute their interior
// knots. Any other time-varying function makes the grid uniform with
// sampledBreakpoints intervals, so checks on it are approximate.
func Breakpoints(t0, t1 float64, fs ...any) []float64 {
	ts := []float64{t0, t1}
	if t1 <= t0 {
		return ts[:1]
	}
	knots := func(tab *Table) {
		for _, k := range tab.ts {
			if k > t0 && k < t1 {
				ts = append(ts, k)
			}
		}
	}
	sampled := false
	for _, f := range fs {
		switch fn := f.(type) {
		case Constant, ConstantVector:
		case *Table:
			knots(fn)
		case *VectorTable:
			knots(fn.x)
		default:
			sampled = true
		}
	}
	if sampled {
		for i := 1; i < sampledBreakpoints; i++ {
			ts = append(ts, t0+(t1-t0)*float64(i)/sampledBreakpoints)
		}
	}
	slices.Sort(ts)
	return slices.Compact(ts)
}
