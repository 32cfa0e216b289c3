package injection

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/spray/distribution"
	"github.com/pthm-cable/spray/mesh"
	"github.com/pthm-cable/spray/parcel"
	"github.com/pthm-cable/spray/timefunc"
)

// Params configures a ConeCylinder injector.
//
// Every time function is evaluated at time relative to SOI.
type Params struct {
	Name string

	SOI              float64 // start of injection [s]
	Duration         float64 // [s]
	ParcelsPerSecond float64
	MassTotal        float64 // [kg]
	NParticle        float64 // fixed particles per parcel; 0 derives it from mass
	FlowRateProfile  timefunc.Scalar

	Position   timefunc.Vector
	Direction  timefunc.Vector
	ThetaInner timefunc.Scalar // [deg]
	ThetaOuter timefunc.Scalar // [deg]

	Method Method
	Flow   Flow
	Size   distribution.Model

	Seed uint64
}

// ConeCylinder injects parcels from a point, disc or cylinder with
// directions spread over a hollow cone.
type ConeCylinder struct {
	p     Params
	loc   mesh.Locator
	fluid Fluid
	log   *slog.Logger

	positionConstant bool
	volumeTotal      float64

	mu       sync.Mutex
	injector mesh.Address // cached address of the injector position
	pending  map[int]pending

	deficits atomic.Int64
	misses   atomic.Int64
}

// pending is the first-phase result for one parcel index.
type pending struct {
	t     float64
	pos   r3.Vec
	dir   r3.Vec
	addr  mesh.Address
	valid bool
	rng   *rand.Rand
}

var _ InjectionModel = (*ConeCylinder)(nil)

// New validates p and creates an injector that locates parcels with loc and
// reads carrier properties from fluid. The injector position is located
// immediately.
func New(p Params, loc mesh.Locator, fluid Fluid) (*ConeCylinder, error) {
	if err := validate(p); err != nil {
		return nil, fmt.Errorf("injector %q: %w", p.Name, err)
	}
	if loc == nil {
		return nil, fmt.Errorf("injector %q: %w: no mesh locator", p.Name, ErrInvalidConfig)
	}
	if fluid == nil {
		return nil, fmt.Errorf("injector %q: %w: no fluid properties", p.Name, ErrInvalidConfig)
	}

	c := &ConeCylinder{
		p:                p,
		loc:              loc,
		fluid:            fluid,
		log:              slog.Default().With("injector", p.Name),
		positionConstant: timefunc.IsConstant(p.Position),
		volumeTotal:      p.FlowRateProfile.Integrate(0, p.Duration),
		injector:         mesh.NotFound,
		pending:          make(map[int]pending),
	}

	if math.IsNaN(c.volumeTotal) || math.IsInf(c.volumeTotal, 0) {
		return nil, fmt.Errorf("injector %q: %w: flow rate profile integral over the injection window is %g",
			p.Name, ErrInvalidConfig, c.volumeTotal)
	}
	if _, ok := p.Flow.(FlowRateAndDischarge); ok && !(c.volumeTotal > 0) {
		return nil, fmt.Errorf("injector %q: %w: flowRateAndDischarge requires a positive flow rate profile integral, got %g",
			p.Name, ErrInvalidConfig, c.volumeTotal)
	}

	c.NotifyMeshChanged()
	return c, nil
}

func validate(p Params) error {
	switch {
	case p.Duration < 0:
		return fmt.Errorf("%w: duration must be >= 0, got %g", ErrInvalidConfig, p.Duration)
	case p.ParcelsPerSecond < 0:
		return fmt.Errorf("%w: parcels per second must be >= 0, got %g", ErrInvalidConfig, p.ParcelsPerSecond)
	case p.MassTotal < 0:
		return fmt.Errorf("%w: mass total must be >= 0, got %g", ErrInvalidConfig, p.MassTotal)
	case p.NParticle < 0:
		return fmt.Errorf("%w: nParticle must be >= 0, got %g", ErrInvalidConfig, p.NParticle)
	case p.FlowRateProfile == nil:
		return fmt.Errorf("%w: missing flow rate profile", ErrInvalidConfig)
	case p.Position == nil:
		return fmt.Errorf("%w: missing position", ErrInvalidConfig)
	case p.Direction == nil:
		return fmt.Errorf("%w: missing direction", ErrInvalidConfig)
	case p.ThetaInner == nil || p.ThetaOuter == nil:
		return fmt.Errorf("%w: missing cone angles", ErrInvalidConfig)
	case p.Method == nil:
		return fmt.Errorf("%w: missing injection method", ErrInvalidConfig)
	case p.Flow == nil:
		return fmt.Errorf("%w: missing flow type", ErrInvalidConfig)
	case p.Size == nil:
		return fmt.Errorf("%w: missing size distribution", ErrInvalidConfig)
	}

	ts := timefunc.Breakpoints(0, p.Duration, p.Direction, p.ThetaInner, p.ThetaOuter)
	if err := validateDirection(p.Direction, ts); err != nil {
		return err
	}
	for _, t := range ts {
		ti, to := p.ThetaInner.Value(t), p.ThetaOuter.Value(t)
		if ti < 0 || to < ti || to > 180 {
			return fmt.Errorf("%w: cone angles must satisfy 0 <= inner <= outer <= 180, got inner=%g outer=%g at t=%g",
				ErrInvalidConfig, ti, to, t)
		}
	}
	if err := p.Method.validate(); err != nil {
		return err
	}
	if err := p.Flow.validate(p.Method.Area()); err != nil {
		return err
	}
	if p.MassTotal <= 0 {
		if _, ok := p.Flow.(FlowRateAndDischarge); ok {
			return fmt.Errorf("%w: flowRateAndDischarge requires mass total > 0", ErrInvalidConfig)
		}
	}
	return nil
}

// validateDirection rejects a direction that is zero or non-finite at any
// breakpoint, or that passes through zero on a linear segment between two.
func validateDirection(dir timefunc.Vector, ts []float64) error {
	prev := r3.Vec{}
	for i, t := range ts {
		d := dir.Value(t)
		n := r3.Norm(d)
		if !finite(d) || n == 0 {
			return fmt.Errorf("%w: direction must be non-zero, got %v at t=%g", ErrInvalidConfig, d, t)
		}
		if i > 0 {
			// Collinear and opposed ends put the origin on the segment.
			pn := r3.Norm(prev)
			if r3.Norm(r3.Cross(prev, d)) <= 1e-12*pn*n && r3.Dot(prev, d) < 0 {
				return fmt.Errorf("%w: direction passes through zero between t=%g and t=%g",
					ErrInvalidConfig, ts[i-1], t)
			}
		}
		prev = d
	}
	return nil
}

func finite(v r3.Vec) bool {
	for _, x := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Name returns the injector name.
func (c *ConeCylinder) Name() string { return c.p.Name }

// SOI returns the start-of-injection time.
func (c *ConeCylinder) SOI() float64 { return c.p.SOI }

// TimeEnd returns the end-of-injection time.
func (c *ConeCylinder) TimeEnd() float64 { return c.p.SOI + c.p.Duration }

// MassTotal returns the total injected mass.
func (c *ConeCylinder) MassTotal() float64 { return c.p.MassTotal }

// Method returns the injection geometry.
func (c *ConeCylinder) Method() Method { return c.p.Method }

// Flow returns the velocity closure.
func (c *ConeCylinder) Flow() Flow { return c.p.Flow }

// FullyDescribed is always true: position, velocity and size all come from
// this model.
func (c *ConeCylinder) FullyDescribed() bool { return true }

// overlap clamps [t0, t1] to the injection window, relative to SOI.
func (c *ConeCylinder) overlap(t0, t1 float64) (a, b float64, ok bool) {
	a = math.Min(math.Max(t0-c.p.SOI, 0), c.p.Duration)
	b = math.Min(math.Max(t1-c.p.SOI, 0), c.p.Duration)
	return a, b, b > a
}

// ParcelsToInject counts parcels whose nominal injection times fall in
// [t0, t1]. Counts over consecutive windows sum to the count over their union.
func (c *ConeCylinder) ParcelsToInject(t0, t1 float64) int {
	a, b, ok := c.overlap(t0, t1)
	if !ok {
		return 0
	}
	pps := c.p.ParcelsPerSecond
	return int(math.Floor(pps*b) - math.Floor(pps*a))
}

// VolumeToInject integrates the flow rate profile over the overlap of
// [t0, t1] with the injection window.
func (c *ConeCylinder) VolumeToInject(t0, t1 float64) float64 {
	a, b, ok := c.overlap(t0, t1)
	if !ok {
		return 0
	}
	return c.p.FlowRateProfile.Integrate(a, b)
}

// MassFlowRate returns the instantaneous injected mass rate at time t.
func (c *ConeCylinder) MassFlowRate(t float64) float64 {
	if !(c.volumeTotal > 0) {
		return 0
	}
	return c.p.MassTotal * c.p.FlowRateProfile.Value(t-c.p.SOI) / c.volumeTotal
}

// NotifyMeshChanged locates the injector position at SOI and drops pending
// samples, whose addresses may refer to the old mesh.
func (c *ConeCylinder) NotifyMeshChanged() {
	pos := c.p.Position.Value(0)
	addr, ok := c.loc.Locate(pos)
	if !ok {
		c.log.Warn("injector position not found in mesh",
			"x", pos.X, "y", pos.Y, "z", pos.Z)
		addr = mesh.NotFound
	}

	c.mu.Lock()
	c.injector = addr
	clear(c.pending)
	c.mu.Unlock()
}

// InjectorAddress returns the cached mesh address of the injector position.
func (c *ConeCylinder) InjectorAddress() mesh.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.injector
}

// cone evaluates the injector state at time t relative to SOI.
func (c *ConeCylinder) cone(tRel float64) Cone {
	return Cone{
		Position:   c.p.Position.Value(tRel),
		Direction:  c.p.Direction.Value(tRel),
		ThetaInner: c.p.ThetaInner.Value(tRel),
		ThetaOuter: c.p.ThetaOuter.Value(tRel),
	}
}

// SetPositionAndCell samples the geometry for parcelI at time t and resolves
// the position in the mesh. A position outside the mesh, or a non-finite
// sample, is returned with mesh.NotFound and marks parcelI invalid until it
// is sampled again.
func (c *ConeCylinder) SetPositionAndCell(parcelI, nParcels int, t float64) (r3.Vec, mesh.Address) {
	rng := parcelStream(c.p.Seed, t, parcelI)
	s := SampleGeometry(c.cone(t-c.p.SOI), c.p.Method, rng)

	var addr mesh.Address
	var ok bool
	_, isPoint := c.p.Method.(Point)
	switch {
	case !finite(s.Position) || !finite(s.Direction):
		c.log.Debug("non-finite injection sample", "parcel", parcelI, "time", t)
	case isPoint && c.positionConstant:
		addr = c.InjectorAddress()
		ok = addr.Found()
	default:
		addr, ok = c.loc.Locate(s.Position)
	}
	if !ok {
		c.misses.Add(1)
		addr = mesh.NotFound
	}

	c.mu.Lock()
	c.pending[parcelI] = pending{t: t, pos: s.Position, dir: s.Direction, addr: addr, valid: ok, rng: rng}
	c.mu.Unlock()

	return s.Position, addr
}

// ValidInjection reports false only if the latest sample of parcelI missed the
// mesh or was not finite.
func (c *ConeCylinder) ValidInjection(parcelI int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ps, ok := c.pending[parcelI]
	return !ok || ps.valid
}

// SetProperties completes parcelI: position and address from the first
// phase, velocity from the flow model along the sampled direction, and a
// diameter from the size distribution.
func (c *ConeCylinder) SetProperties(parcelI, nParcels int, t float64, p *parcel.Parcel) {
	c.mu.Lock()
	ps, ok := c.pending[parcelI]
	c.mu.Unlock()
	if !ok || ps.t != t {
		c.SetPositionAndCell(parcelI, nParcels, t)
		c.mu.Lock()
		ps = c.pending[parcelI]
		c.mu.Unlock()
	}
	c.mu.Lock()
	delete(c.pending, parcelI)
	c.mu.Unlock()

	tRel := t - c.p.SOI
	ctx := FlowContext{
		Density:      c.fluid.Density(ps.addr, t),
		Pressure:     c.fluid.Pressure(ps.addr, t),
		Area:         c.p.Method.Area(),
		MassFlowRate: c.MassFlowRate(t),
	}
	speed, clamped := c.p.Flow.Speed(tRel, ctx)
	if clamped {
		c.deficits.Add(1)
		c.log.Debug("injection speed clamped to zero",
			"flow", c.p.Flow.Name(), "parcel", parcelI, "time", t,
			"density", ctx.Density, "pressure", ctx.Pressure)
	}

	p.Position = ps.pos
	p.Address = ps.addr
	p.Direction = ps.dir
	p.Speed = speed
	p.Velocity = r3.Scale(speed, ps.dir)
	p.Diameter = c.p.Size.Sample(ps.rng)
	p.NParticle = c.p.NParticle
	p.Time = t
}

// SpeedClamps returns how many parcels had a non-physical speed replaced by zero.
func (c *ConeCylinder) SpeedClamps() int64 { return c.deficits.Load() }

// Misses returns how many samples fell outside the mesh.
func (c *ConeCylinder) Misses() int64 { return c.misses.Load() }
