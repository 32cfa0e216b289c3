package config

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/spray/distribution"
	"github.com/pthm-cable/spray/injection"
	"github.com/pthm-cable/spray/mesh"
)

// Setup is the runtime state built from a Config.
type Setup struct {
	Bounds    r3.Box
	Mesh      mesh.Locator
	Fluid     injection.UniformFluid
	Injectors []*injection.ConeCylinder
}

// Build constructs the mesh, carrier fluid and injectors. Each injector gets
// its own seed derived from the run seed and its index.
func (c *Config) Build() (*Setup, error) {
	bounds := r3.Box{
		Min: r3.Vec{X: c.Mesh.Min[0], Y: c.Mesh.Min[1], Z: c.Mesh.Min[2]},
		Max: r3.Vec{X: c.Mesh.Max[0], Y: c.Mesh.Max[1], Z: c.Mesh.Max[2]},
	}
	box, err := mesh.NewBoxMesh(bounds, c.Mesh.NX, c.Mesh.NY, c.Mesh.NZ)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	s := &Setup{
		Bounds: bounds,
		Mesh:   box,
		Fluid:  injection.UniformFluid{Rho: c.Fluid.Rho, P: c.Fluid.P},
	}
	if c.Mesh.Partitions > 1 {
		parts, err := box.Decompose(c.Mesh.Partitions)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		s.Mesh = parts
	}

	for i, ic := range c.Injectors {
		p, err := ic.params(injection.DeriveSeed(c.Seed, i))
		if err != nil {
			return nil, fmt.Errorf("injector %q: %w", ic.Name, err)
		}
		inj, err := injection.New(p, s.Mesh, s.Fluid)
		if err != nil {
			return nil, err
		}
		s.Injectors = append(s.Injectors, inj)
	}
	return s, nil
}

// params converts the YAML description into injection model parameters.
func (ic InjectorConfig) params(seed uint64) (injection.Params, error) {
	p := injection.Params{
		Name:             ic.Name,
		SOI:              ic.SOI,
		Duration:         ic.Duration,
		ParcelsPerSecond: ic.ParcelsPerSecond,
		MassTotal:        ic.MassTotal,
		NParticle:        ic.NParticle,
		Seed:             seed,
	}

	var err error
	if p.FlowRateProfile, err = ic.FlowRateProfile.Build(); err != nil {
		return p, fmt.Errorf("flow_rate_profile: %w", err)
	}
	if p.Position, err = ic.Position.Build(); err != nil {
		return p, fmt.Errorf("position: %w", err)
	}
	if p.Direction, err = ic.Direction.Build(); err != nil {
		return p, fmt.Errorf("direction: %w", err)
	}
	if p.ThetaInner, err = ic.ThetaInner.Build(); err != nil {
		return p, fmt.Errorf("theta_inner: %w", err)
	}
	if p.ThetaOuter, err = ic.ThetaOuter.Build(); err != nil {
		return p, fmt.Errorf("theta_outer: %w", err)
	}

	switch strings.ToLower(ic.InjectionMethod) {
	case "point":
		p.Method = injection.Point{ReferenceArea: ic.ReferenceArea}
	case "disc":
		p.Method = injection.Disc{DInner: ic.DInner, DOuter: ic.DOuter}
	case "cylinder":
		p.Method = injection.Cylinder{
			DInner: ic.DInner,
			DOuter: ic.DOuter,
			Height: ic.HCylinder,
			Offset: ic.OffsetCylinder,
		}
	default:
		return p, fmt.Errorf("%w: unknown injection_method %q", ErrInvalid, ic.InjectionMethod)
	}

	switch strings.ToLower(ic.FlowType) {
	case "constantvelocity":
		umag, err := ic.Umag.Build()
		if err != nil {
			return p, fmt.Errorf("umag: %w", err)
		}
		p.Flow = injection.ConstantVelocity{Umag: umag}
	case "pressuredrivenvelocity":
		pinj, err := ic.Pinj.Build()
		if err != nil {
			return p, fmt.Errorf("pinj: %w", err)
		}
		p.Flow = injection.PressureDriven{Pinj: pinj}
	case "flowrateanddischarge":
		cd, err := ic.Cd.Build()
		if err != nil {
			return p, fmt.Errorf("cd: %w", err)
		}
		p.Flow = injection.FlowRateAndDischarge{Cd: cd}
	default:
		return p, fmt.Errorf("%w: unknown flow_type %q", ErrInvalid, ic.FlowType)
	}

	size, err := distribution.New(ic.SizeDistribution)
	if err != nil {
		return p, fmt.Errorf("size_distribution: %w", err)
	}
	p.Size = size
	return p, nil
}
