package injection

import (
	"fmt"
	"math"

	"github.com/pthm-cable/spray/timefunc"
)

// FlowContext carries the externally owned quantities the velocity models read.
type FlowContext struct {
	Density      float64 // carrier density at the parcel's cell
	Pressure     float64 // carrier pressure at the parcel's cell
	Area         float64 // injector cross-sectional area
	MassFlowRate float64 // instantaneous injected mass rate
}

// Flow is the injection velocity closure. It is one of ConstantVelocity,
// PressureDriven or FlowRateAndDischarge.
type Flow interface {
	// Name returns the configuration name of the flow type.
	Name() string
	// Speed returns the injection speed at time t (relative to SOI).
	// clamped is true when a non-physical result was replaced by zero.
	Speed(t float64, ctx FlowContext) (speed float64, clamped bool)

	validate(area float64) error
}

// ConstantVelocity injects at a prescribed speed.
type ConstantVelocity struct {
	Umag timefunc.Scalar
}

func (ConstantVelocity) Name() string { return "constantVelocity" }

func (f ConstantVelocity) Speed(t float64, _ FlowContext) (float64, bool) {
	return f.Umag.Value(t), false
}

func (f ConstantVelocity) validate(float64) error {
	if f.Umag == nil {
		return fmt.Errorf("%w: constantVelocity requires umag", ErrInvalidConfig)
	}
	return nil
}

// PressureDriven derives speed from the injection pressure over the local
// carrier pressure, sqrt(2 (Pinj - p) / rho).
type PressureDriven struct {
	Pinj timefunc.Scalar
}

func (PressureDriven) Name() string { return "pressureDrivenVelocity" }

// Speed clamps a pressure deficit to zero speed.
func (f PressureDriven) Speed(t float64, ctx FlowContext) (float64, bool) {
	if !(ctx.Density > 0) {
		return 0, true
	}
	radicand := 2 * (f.Pinj.Value(t) - ctx.Pressure) / ctx.Density
	if !(radicand > 0) || math.IsInf(radicand, 0) {
		return 0, radicand != 0
	}
	return math.Sqrt(radicand), false
}

func (f PressureDriven) validate(float64) error {
	if f.Pinj == nil {
		return fmt.Errorf("%w: pressureDrivenVelocity requires pinj", ErrInvalidConfig)
	}
	return nil
}

// FlowRateAndDischarge derives speed from the mass flow rate through the
// injector area, mdot / (rho A Cd).
type FlowRateAndDischarge struct {
	Cd timefunc.Scalar
}

func (FlowRateAndDischarge) Name() string { return "flowRateAndDischarge" }

func (f FlowRateAndDischarge) Speed(t float64, ctx FlowContext) (float64, bool) {
	denom := ctx.Density * ctx.Area * f.Cd.Value(t)
	if !(denom > 0) {
		return 0, true
	}
	u := ctx.MassFlowRate / denom
	if math.IsNaN(u) || math.IsInf(u, 0) || u < 0 {
		return 0, true
	}
	return u, false
}

func (f FlowRateAndDischarge) validate(area float64) error {
	if f.Cd == nil {
		return fmt.Errorf("%w: flowRateAndDischarge requires cd", ErrInvalidConfig)
	}
	if !(area > 0) {
		return fmt.Errorf("%w: flowRateAndDischarge requires a positive injector area, got %g",
			ErrInvalidConfig, area)
	}
	return nil
}
