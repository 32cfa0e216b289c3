// Package config provides configuration loading and access for spray runs.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/spray/distribution"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by every configuration validation error.
var ErrInvalid = errors.New("config: invalid configuration")

// Config holds all run configuration parameters.
type Config struct {
	Seed      uint64           `yaml:"seed"`
	Run       RunConfig        `yaml:"run"`
	Mesh      MeshConfig       `yaml:"mesh"`
	Fluid     FluidConfig      `yaml:"fluid"`
	Parcel    ParcelConfig     `yaml:"parcel"`
	Telemetry TelemetryConfig  `yaml:"telemetry"`
	Injectors []InjectorConfig `yaml:"injectors"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// RunConfig holds the time loop settings.
type RunConfig struct {
	Start   float64 `yaml:"start"`   // first injection event [s]
	End     float64 `yaml:"end"`     // 0 = latest injector end
	DT      float64 `yaml:"dt"`      // injection event length [s]
	Workers int     `yaml:"workers"` // 0 = GOMAXPROCS, 1 = serial
}

// MeshConfig describes the box mesh parcels are located in.
type MeshConfig struct {
	Min        [3]float64 `yaml:"min"`
	Max        [3]float64 `yaml:"max"`
	NX         int        `yaml:"nx"`
	NY         int        `yaml:"ny"`
	NZ         int        `yaml:"nz"`
	Partitions int        `yaml:"partitions"` // slabs along x; 1 = undecomposed
}

// FluidConfig holds the uniform carrier state.
type FluidConfig struct {
	Rho float64 `yaml:"rho"` // [kg/m^3]
	P   float64 `yaml:"p"`   // [Pa]
}

// ParcelConfig holds parcel material properties.
type ParcelConfig struct {
	Density float64 `yaml:"density"` // [kg/m^3]
}

// TelemetryConfig holds statistics and output settings.
type TelemetryConfig struct {
	WindowSec    float64 `yaml:"window_sec"`    // stats window in simulated seconds
	OutputDir    string  `yaml:"output_dir"`    // empty = no files
	WriteParcels bool    `yaml:"write_parcels"` // append injected parcels to parcels.csv
	Snapshot     bool    `yaml:"snapshot"`      // write a JSON snapshot at the end of the run
}

// InjectorConfig describes one cone injector. Keys follow the injection
// model dictionary in snake_case.
type InjectorConfig struct {
	Name string `yaml:"name"`

	SOI              float64     `yaml:"soi"`
	Duration         float64     `yaml:"duration"`
	MassTotal        float64     `yaml:"mass_total"`
	ParcelsPerSecond float64     `yaml:"parcels_per_second"`
	FlowRateProfile  ScalarParam `yaml:"flow_rate_profile"`
	NParticle        float64     `yaml:"n_particle,omitempty"`

	Position   VectorParam `yaml:"position"`
	Direction  VectorParam `yaml:"direction"`
	ThetaInner ScalarParam `yaml:"theta_inner"`
	ThetaOuter ScalarParam `yaml:"theta_outer"`

	InjectionMethod string  `yaml:"injection_method"` // point, disc, cylinder
	DInner          float64 `yaml:"d_inner,omitempty"`
	DOuter          float64 `yaml:"d_outer,omitempty"`
	HCylinder       float64 `yaml:"h_cylinder,omitempty"`
	OffsetCylinder  float64 `yaml:"offset_cylinder,omitempty"`
	ReferenceArea   float64 `yaml:"reference_area,omitempty"` // point only

	FlowType string      `yaml:"flow_type"` // constantVelocity, pressureDrivenVelocity, flowRateAndDischarge
	Umag     ScalarParam `yaml:"umag,omitempty"`
	Pinj     ScalarParam `yaml:"pinj,omitempty"`
	Cd       ScalarParam `yaml:"cd,omitempty"`

	SizeDistribution distribution.Config `yaml:"size_distribution"`
}

// DerivedConfig holds values computed from the loaded config.
type DerivedConfig struct {
	End      float64 // Run.End, or the latest injector end when unset
	NumCells int     // NX*NY*NZ
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used. A user injectors list
// replaces the default one.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// computeDerived fills per-injector defaults and calculates derived values.
func (c *Config) computeDerived() {
	end := math.Inf(-1)
	for i := range c.Injectors {
		inj := &c.Injectors[i]
		if inj.Name == "" {
			inj.Name = fmt.Sprintf("injector%d", i)
		}
		if inj.FlowType == "" {
			inj.FlowType = "constantVelocity"
		}
		if !inj.FlowRateProfile.IsSet() {
			inj.FlowRateProfile = ConstantScalar(1)
		}
		if !inj.ThetaInner.IsSet() {
			inj.ThetaInner = ConstantScalar(0)
		}
		end = math.Max(end, inj.SOI+inj.Duration)
	}

	c.Derived.End = c.Run.End
	if c.Derived.End == 0 && len(c.Injectors) > 0 {
		c.Derived.End = end
	}
	c.Derived.NumCells = c.Mesh.NX * c.Mesh.NY * c.Mesh.NZ
}

// Validate checks settings that are not owned by the injection model;
// per-injector physics is validated when the injectors are built.
func (c *Config) Validate() error {
	if !(c.Run.DT > 0) {
		return fmt.Errorf("%w: run.dt must be > 0, got %g", ErrInvalid, c.Run.DT)
	}
	if c.Derived.End < c.Run.Start {
		return fmt.Errorf("%w: run end %g before start %g", ErrInvalid, c.Derived.End, c.Run.Start)
	}
	if c.Run.Workers < 0 {
		return fmt.Errorf("%w: run.workers must be >= 0, got %d", ErrInvalid, c.Run.Workers)
	}
	if c.Mesh.NX < 1 || c.Mesh.NY < 1 || c.Mesh.NZ < 1 {
		return fmt.Errorf("%w: mesh needs at least one cell per axis, got %dx%dx%d",
			ErrInvalid, c.Mesh.NX, c.Mesh.NY, c.Mesh.NZ)
	}
	if c.Mesh.Partitions < 0 {
		return fmt.Errorf("%w: mesh.partitions must be >= 0, got %d", ErrInvalid, c.Mesh.Partitions)
	}
	if !(c.Fluid.Rho > 0) {
		return fmt.Errorf("%w: fluid.rho must be > 0, got %g", ErrInvalid, c.Fluid.Rho)
	}
	if !(c.Parcel.Density > 0) {
		return fmt.Errorf("%w: parcel.density must be > 0, got %g", ErrInvalid, c.Parcel.Density)
	}
	if c.Telemetry.WindowSec < 0 {
		return fmt.Errorf("%w: telemetry.window_sec must be >= 0, got %g", ErrInvalid, c.Telemetry.WindowSec)
	}
	if len(c.Injectors) == 0 {
		return fmt.Errorf("%w: no injectors", ErrInvalid)
	}

	seen := make(map[string]bool, len(c.Injectors))
	for _, inj := range c.Injectors {
		if seen[inj.Name] {
			return fmt.Errorf("%w: duplicate injector name %q", ErrInvalid, inj.Name)
		}
		seen[inj.Name] = true
		switch strings.ToLower(inj.InjectionMethod) {
		case "point", "disc", "cylinder":
		default:
			return fmt.Errorf("%w: injector %q: unknown injection_method %q", ErrInvalid, inj.Name, inj.InjectionMethod)
		}
		switch strings.ToLower(inj.FlowType) {
		case "constantvelocity", "pressuredrivenvelocity", "flowrateanddischarge":
		default:
			return fmt.Errorf("%w: injector %q: unknown flow_type %q", ErrInvalid, inj.Name, inj.FlowType)
		}
		if !inj.Position.IsSet() || !inj.Direction.IsSet() || !inj.ThetaOuter.IsSet() {
			return fmt.Errorf("%w: injector %q needs position, direction and theta_outer", ErrInvalid, inj.Name)
		}
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
