package injection

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"
)

// parallelTol is how close |d.z| may get to 1 before the basis switches
// its reference axis from z to x.
const parallelTol = 1e-6

// Cone is the injector state at one instant.
type Cone struct {
	Position   r3.Vec
	Direction  r3.Vec  // need not be normalised
	ThetaInner float64 // degrees
	ThetaOuter float64 // degrees
}

// Sample is one geometry draw.
type Sample struct {
	Position  r3.Vec
	Direction r3.Vec // unit vector inside the cone
}

// Basis returns unit vectors e1, e2 completing the unit axis d to a
// right-handed orthonormal frame.
func Basis(d r3.Vec) (e1, e2 r3.Vec) {
	ref := r3.Vec{Z: 1}
	if math.Abs(d.Z) > 1-parallelTol {
		ref = r3.Vec{X: 1}
	}
	e1 = r3.Unit(r3.Cross(ref, d))
	e2 = r3.Cross(d, e1)
	return e1, e2
}

// SampleGeometry draws a position and direction for method m.
//
// Draws are consumed from rng in a fixed order: azimuth, cone angle, then
// whatever m needs for its offset. The same azimuth orients both the
// position offset and the tilt of the direction. A zero or non-finite
// cone direction yields a non-finite sample.
func SampleGeometry(cone Cone, m Method, rng *rand.Rand) Sample {
	axis := r3.Unit(cone.Direction)
	e1, e2 := Basis(axis)

	phi := 2 * math.Pi * rng.Float64()
	radial := r3.Add(r3.Scale(math.Cos(phi), e1), r3.Scale(math.Sin(phi), e2))

	dir := coneDirection(axis, radial, cone.ThetaInner, cone.ThetaOuter, rng.Float64())
	pos := r3.Add(cone.Position, m.offset(rng, radial, axis))

	return Sample{Position: pos, Direction: dir}
}

// coneDirection tilts axis towards radial by an angle whose cosine is
// uniform between cos(thetaOuter) and cos(thetaInner), giving equal parcel
// density per unit solid angle.
func coneDirection(axis, radial r3.Vec, thetaInner, thetaOuter, u float64) r3.Vec {
	ci := math.Cos(thetaInner * math.Pi / 180)
	co := math.Cos(thetaOuter * math.Pi / 180)
	c := ci + u*(co-ci)
	s := math.Sqrt(math.Max(0, 1-c*c))
	return r3.Unit(r3.Add(r3.Scale(c, axis), r3.Scale(s, radial)))
}
