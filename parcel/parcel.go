// Package parcel defines injected parcels and the container that stores them.
package parcel

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/spray/mesh"
)

// Parcel is one stochastic sample of injected particles.
// It is handed around by value; the Cloud owns stored parcels.
type Parcel struct {
	Position  r3.Vec
	Address   mesh.Address
	Direction r3.Vec // unit injection direction
	Velocity  r3.Vec
	Speed     float64
	Diameter  float64
	Mass      float64 // total mass carried by the parcel
	NParticle float64 // physical particles represented
	Injector  int     // index of the injector that created it
	Time      float64 // injection instant
}

// ParticleVolume returns the volume of one spherical particle of the parcel.
func (p Parcel) ParticleVolume() float64 {
	return math.Pi / 6 * p.Diameter * p.Diameter * p.Diameter
}

// ParticlesForMass returns how many particles of diameter d and material
// density rho make up mass. Returns 0 for degenerate inputs.
func ParticlesForMass(mass, d, rho float64) float64 {
	v := math.Pi / 6 * d * d * d
	if v <= 0 || rho <= 0 {
		return 0
	}
	return mass / (rho * v)
}
