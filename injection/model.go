// Package injection seeds Lagrangian parcels from a cone, disc or cylinder
// injector into a continuum flow.
//
// Each parcel is built in two phases, matching the parcel-creation pipeline
// of the host solver: SetPositionAndCell samples the geometry and resolves
// its mesh address, then SetProperties fills in velocity and size. Between
// the two phases the scheduler checks ValidInjection and drops parcels whose
// position fell outside the locally owned mesh.
package injection

import (
	"errors"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/spray/mesh"
	"github.com/pthm-cable/spray/parcel"
)

// ErrInvalidConfig marks configuration errors detected at injector setup.
var ErrInvalidConfig = errors.New("injection: invalid configuration")

// InjectionModel is the capability a scheduler needs from an injector.
type InjectionModel interface {
	// Name identifies the injector in logs and output.
	Name() string

	// SOI returns the start-of-injection time.
	SOI() float64
	// TimeEnd returns SOI plus the injection duration.
	TimeEnd() float64
	// MassTotal returns the total mass injected over the whole duration.
	MassTotal() float64

	// ParcelsToInject returns the number of parcels to introduce in [t0, t1].
	ParcelsToInject(t0, t1 float64) int
	// VolumeToInject returns the flow-rate profile integral over [t0, t1]
	// intersected with the injection window.
	VolumeToInject(t0, t1 float64) float64

	// FullyDescribed reports whether the model sets every parcel property.
	FullyDescribed() bool
	// ValidInjection reports whether the latest sample of parcelI landed in the mesh.
	ValidInjection(parcelI int) bool
	// NotifyMeshChanged re-resolves cached mesh addresses.
	NotifyMeshChanged()

	// SetPositionAndCell samples parcelI's position and mesh address at time t.
	SetPositionAndCell(parcelI, nParcels int, t float64) (r3.Vec, mesh.Address)
	// SetProperties sets velocity and size for parcelI on p.
	SetProperties(parcelI, nParcels int, t float64, p *parcel.Parcel)
}

// Fluid supplies carrier properties at a mesh address.
type Fluid interface {
	Density(addr mesh.Address, t float64) float64
	Pressure(addr mesh.Address, t float64) float64
}

// UniformFluid is a Fluid with the same state everywhere.
type UniformFluid struct {
	Rho float64
	P   float64
}

func (u UniformFluid) Density(mesh.Address, float64) float64  { return u.Rho }
func (u UniformFluid) Pressure(mesh.Address, float64) float64 { return u.P }
