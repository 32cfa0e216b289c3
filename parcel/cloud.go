package parcel

import (
	"sort"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/spray/mesh"
)

// Position is the parcel's absolute position component.
type Position struct {
	X, Y, Z float64
}

// Velocity is the parcel's velocity component.
type Velocity struct {
	X, Y, Z float64
}

// Droplet holds size and mass loading.
type Droplet struct {
	Diameter  float64
	Mass      float64
	NParticle float64
}

// Cell holds the cached mesh address.
type Cell struct {
	Address mesh.Address
}

// Origin records where and when the parcel was injected.
type Origin struct {
	Serial    int // insertion order, used for deterministic iteration
	Injector  int
	Time      float64
	Direction r3.Vec
	Speed     float64
}

// Cloud stores parcels as ECS entities.
type Cloud struct {
	world  *ecs.World
	mapper *ecs.Map5[Position, Velocity, Droplet, Cell, Origin]
	filter *ecs.Filter5[Position, Velocity, Droplet, Cell, Origin]
	count  int
	serial int
}

// NewCloud creates an empty parcel container.
func NewCloud() *Cloud {
	c := &Cloud{}
	c.reset()
	return c
}

func (c *Cloud) reset() {
	world := ecs.NewWorld()
	c.world = world
	c.mapper = ecs.NewMap5[Position, Velocity, Droplet, Cell, Origin](world)
	c.filter = ecs.NewFilter5[Position, Velocity, Droplet, Cell, Origin](world)
	c.count = 0
	c.serial = 0
}

// Add stores a parcel.
func (c *Cloud) Add(p Parcel) {
	pos := Position{X: p.Position.X, Y: p.Position.Y, Z: p.Position.Z}
	vel := Velocity{X: p.Velocity.X, Y: p.Velocity.Y, Z: p.Velocity.Z}
	drop := Droplet{Diameter: p.Diameter, Mass: p.Mass, NParticle: p.NParticle}
	cell := Cell{Address: p.Address}
	org := Origin{
		Serial:    c.serial,
		Injector:  p.Injector,
		Time:      p.Time,
		Direction: p.Direction,
		Speed:     p.Speed,
	}
	c.mapper.NewEntity(&pos, &vel, &drop, &cell, &org)
	c.serial++
	c.count++
}

// Len returns the number of stored parcels.
func (c *Cloud) Len() int { return c.count }

// Each calls fn for every stored parcel in insertion order.
func (c *Cloud) Each(fn func(Parcel)) {
	for _, p := range c.Parcels() {
		fn(p)
	}
}

// Parcels returns a copy of all stored parcels in insertion order.
func (c *Cloud) Parcels() []Parcel {
	type keyed struct {
		serial int
		p      Parcel
	}
	out := make([]keyed, 0, c.count)

	// Queries lock the world until fully consumed.
	query := c.filter.Query()
	for query.Next() {
		pos, vel, drop, cell, org := query.Get()
		out = append(out, keyed{
			serial: org.Serial,
			p: Parcel{
				Position:  r3.Vec{X: pos.X, Y: pos.Y, Z: pos.Z},
				Address:   cell.Address,
				Direction: org.Direction,
				Velocity:  r3.Vec{X: vel.X, Y: vel.Y, Z: vel.Z},
				Speed:     org.Speed,
				Diameter:  drop.Diameter,
				Mass:      drop.Mass,
				NParticle: drop.NParticle,
				Injector:  org.Injector,
				Time:      org.Time,
			},
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].serial < out[j].serial })
	parcels := make([]Parcel, len(out))
	for i, k := range out {
		parcels[i] = k.p
	}
	return parcels
}

// TotalMass returns the summed mass of all stored parcels.
func (c *Cloud) TotalMass() float64 {
	var m float64
	query := c.filter.Query()
	for query.Next() {
		_, _, drop, _, _ := query.Get()
		m += drop.Mass
	}
	return m
}

// Clear removes all parcels.
func (c *Cloud) Clear() {
	c.reset()
}
