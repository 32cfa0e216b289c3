package injection

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"
)

// Method is the injection geometry. It is one of Point, Disc or Cylinder;
// each variant carries only the fields it uses.
type Method interface {
	// Name returns the configuration name of the method.
	Name() string
	// Area returns the cross-sectional flow area of the injector.
	Area() float64

	// offset draws the position offset from the injector origin, given the
	// unit radial vector for the sampled azimuth and the unit axis.
	offset(rng *rand.Rand, radial, axis r3.Vec) r3.Vec
	validate() error
}

// Point injects every parcel at the injector position.
// ReferenceArea stands in for the flow area under FlowRateAndDischarge.
type Point struct {
	ReferenceArea float64
}

func (Point) Name() string                             { return "point" }
func (p Point) Area() float64                          { return p.ReferenceArea }
func (Point) offset(*rand.Rand, r3.Vec, r3.Vec) r3.Vec { return r3.Vec{} }

func (p Point) validate() error {
	if p.ReferenceArea < 0 {
		return fmt.Errorf("%w: point reference area must be >= 0, got %g", ErrInvalidConfig, p.ReferenceArea)
	}
	return nil
}

// Disc injects over an annulus normal to the injector axis.
type Disc struct {
	DInner, DOuter float64
}

func (Disc) Name() string { return "disc" }

// Area returns the annulus area.
func (d Disc) Area() float64 { return annulusArea(d.DInner, d.DOuter) }

func (d Disc) offset(rng *rand.Rand, radial, _ r3.Vec) r3.Vec {
	return r3.Scale(annulusRadius(d.DInner, d.DOuter, rng.Float64()), radial)
}

func (d Disc) validate() error {
	return validateDiameters("disc", d.DInner, d.DOuter)
}

// Cylinder injects within an annular cylinder along the injector axis,
// starting Offset from the injector position and extending Height.
type Cylinder struct {
	DInner, DOuter float64
	Height         float64
	Offset         float64
}

func (Cylinder) Name() string { return "cylinder" }

// Area returns the annulus area of the cylinder cross-section.
func (c Cylinder) Area() float64 { return annulusArea(c.DInner, c.DOuter) }

func (c Cylinder) offset(rng *rand.Rand, radial, axis r3.Vec) r3.Vec {
	r := annulusRadius(c.DInner, c.DOuter, rng.Float64())
	z := c.Offset + rng.Float64()*c.Height
	return r3.Add(r3.Scale(r, radial), r3.Scale(z, axis))
}

func (c Cylinder) validate() error {
	if err := validateDiameters("cylinder", c.DInner, c.DOuter); err != nil {
		return err
	}
	if c.Height < 0 {
		return fmt.Errorf("%w: cylinder height must be >= 0, got %g", ErrInvalidConfig, c.Height)
	}
	return nil
}

func validateDiameters(method string, dInner, dOuter float64) error {
	if dInner < 0 {
		return fmt.Errorf("%w: %s inner diameter must be >= 0, got %g", ErrInvalidConfig, method, dInner)
	}
	if dOuter < dInner {
		return fmt.Errorf("%w: %s outer diameter %g is smaller than inner diameter %g",
			ErrInvalidConfig, method, dOuter, dInner)
	}
	return nil
}

func annulusArea(dInner, dOuter float64) float64 {
	return 0.25 * math.Pi * (dOuter*dOuter - dInner*dInner)
}

// annulusRadius maps u in [0,1) to a radius with uniform density per unit
// area of the annulus.
func annulusRadius(dInner, dOuter, u float64) float64 {
	ri, ro := 0.5*dInner, 0.5*dOuter
	return math.Sqrt(ri*ri + u*(ro*ro-ri*ri))
}
