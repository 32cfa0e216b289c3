package injection

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/spray/timefunc"
)

const nSamples = 20000

func angleDeg(a, b r3.Vec) float64 {
	c := r3.Dot(r3.Unit(a), r3.Unit(b))
	c = math.Max(-1, math.Min(1, c))
	return math.Acos(c) * 180 / math.Pi
}

// ---------- Basis ----------

func TestBasis_Orthonormal(t *testing.T) {
	dirs := []r3.Vec{
		{X: 1}, {Y: 1}, {Z: 1}, {Z: -1},
		{X: 1, Y: 2, Z: 3}, {X: 1e-9, Z: 1}, {X: -0.3, Y: 0.1, Z: -0.9},
	}
	for _, d := range dirs {
		d = r3.Unit(d)
		e1, e2 := Basis(d)
		for name, got := range map[string]float64{
			"|e1|":  r3.Norm(e1),
			"|e2|":  r3.Norm(e2),
			"e1.d":  r3.Dot(e1, d),
			"e2.d":  r3.Dot(e2, d),
			"e1.e2": r3.Dot(e1, e2),
		} {
			want := 0.0
			if name[0] == '|' {
				want = 1
			}
			if !scalar.EqualWithinAbs(got, want, 1e-12) {
				t.Errorf("d=%v: %s = %g, want %g", d, name, got, want)
			}
		}
	}
}

// ---------- Cone angle ----------

func TestSampleGeometry_AngleWithinCone(t *testing.T) {
	tests := []struct {
		name   string
		ti, to float64
		method Method
	}{
		{"point hollow", 10, 30, Point{}},
		{"point full", 0, 45, Point{}},
		{"disc", 5, 20, Disc{DInner: 0.01, DOuter: 0.02}},
		{"cylinder", 0, 90, Cylinder{DOuter: 0.01, Height: 0.1}},
		{"wide", 80, 170, Point{}},
	}
	axis := r3.Vec{X: 1, Y: 2, Z: 3}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cone := Cone{Direction: axis, ThetaInner: tt.ti, ThetaOuter: tt.to}
			rng := rand.New(rand.NewPCG(1, 2))
			for i := 0; i < nSamples; i++ {
				s := SampleGeometry(cone, tt.method, rng)
				if !scalar.EqualWithinAbs(r3.Norm(s.Direction), 1, 1e-12) {
					t.Fatalf("direction not unit: %v", s.Direction)
				}
				a := angleDeg(s.Direction, axis)
				if a < tt.ti-1e-6 || a > tt.to+1e-6 {
					t.Fatalf("sample %d: angle %g outside [%g, %g]", i, a, tt.ti, tt.to)
				}
			}
		})
	}
}

func TestSampleGeometry_FixedConeAngle(t *testing.T) {
	cone := Cone{Direction: r3.Vec{Y: 1}, ThetaInner: 25, ThetaOuter: 25}
	rng := rand.New(rand.NewPCG(3, 4))
	var sumX, sumZ float64
	for i := 0; i < nSamples; i++ {
		s := SampleGeometry(cone, Point{}, rng)
		if a := angleDeg(s.Direction, cone.Direction); !scalar.EqualWithinAbs(a, 25, 1e-6) {
			t.Fatalf("angle = %g, want 25", a)
		}
		sumX += s.Direction.X
		sumZ += s.Direction.Z
	}
	// Azimuth stays random, so the tilt averages out.
	if math.Abs(sumX/nSamples) > 0.01 || math.Abs(sumZ/nSamples) > 0.01 {
		t.Errorf("mean tilt = (%g, %g), want ~0", sumX/nSamples, sumZ/nSamples)
	}
}

func TestSampleGeometry_SolidAngleUniform(t *testing.T) {
	// cos(theta) is uniform on [cos(to), cos(ti)], so its mean is the midpoint.
	cone := Cone{Direction: r3.Vec{Z: 1}, ThetaInner: 0, ThetaOuter: 60}
	rng := rand.New(rand.NewPCG(5, 6))
	var sum float64
	for i := 0; i < nSamples; i++ {
		sum += SampleGeometry(cone, Point{}, rng).Direction.Z
	}
	want := 0.5 * (1 + math.Cos(math.Pi/3))
	if got := sum / nSamples; !scalar.EqualWithinAbs(got, want, 0.005) {
		t.Errorf("mean cos(theta) = %g, want %g", got, want)
	}
}

// ---------- Positions ----------

func TestSampleGeometry_PointExact(t *testing.T) {
	cone := Cone{Position: r3.Vec{X: 0.1, Y: -0.2, Z: 0.3}, Direction: r3.Vec{X: 1}, ThetaOuter: 30}
	rng := rand.New(rand.NewPCG(7, 8))
	for i := 0; i < 1000; i++ {
		if s := SampleGeometry(cone, Point{}, rng); s.Position != cone.Position {
			t.Fatalf("position = %v, want %v", s.Position, cone.Position)
		}
	}
}

func TestSampleGeometry_DiscUniformArea(t *testing.T) {
	origin := r3.Vec{X: 1, Y: 1, Z: 1}
	axis := r3.Unit(r3.Vec{X: 1, Y: -1, Z: 0.5})
	const R = 0.5
	cone := Cone{Position: origin, Direction: axis, ThetaOuter: 10}
	rng := rand.New(rand.NewPCG(9, 10))

	xs := []float64{0.1, 0.25, 0.5, 0.75, 0.9}
	counts := make([]int, len(xs))
	for i := 0; i < nSamples; i++ {
		off := r3.Sub(SampleGeometry(cone, Disc{DOuter: 2 * R}, rng).Position, origin)
		if d := r3.Dot(off, axis); math.Abs(d) > 1e-12 {
			t.Fatalf("disc offset has axial component %g", d)
		}
		r := r3.Norm(off)
		if r > R+1e-12 {
			t.Fatalf("radius %g beyond outer radius %g", r, R)
		}
		for j, x := range xs {
			if r <= x*R {
				counts[j]++
			}
		}
	}
	for j, x := range xs {
		got := float64(counts[j]) / nSamples
		if want := x * x; !scalar.EqualWithinAbs(got, want, 0.015) {
			t.Errorf("P(r <= %gR) = %g, want %g", x, got, want)
		}
	}
}

func TestSampleGeometry_Annulus(t *testing.T) {
	tests := []struct {
		name   string
		di, do float64
	}{
		{"annulus", 0.2, 0.6},
		{"circle", 0.4, 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cone := Cone{Direction: r3.Vec{Z: 1}, ThetaOuter: 5}
			rng := rand.New(rand.NewPCG(11, 12))
			for i := 0; i < 5000; i++ {
				r := r3.Norm(SampleGeometry(cone, Disc{DInner: tt.di, DOuter: tt.do}, rng).Position)
				if r < tt.di/2-1e-12 || r > tt.do/2+1e-12 {
					t.Fatalf("radius %g outside [%g, %g]", r, tt.di/2, tt.do/2)
				}
			}
		})
	}
}

func TestSampleGeometry_CylinderAxialRange(t *testing.T) {
	tests := []struct {
		name   string
		height float64
		offset float64
	}{
		{"from origin", 0.2, 0},
		{"offset", 0.1, 0.05},
		{"zero height", 0, 0.03},
	}
	axis := r3.Unit(r3.Vec{X: 0.2, Y: 0.3, Z: 1})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Cylinder{DInner: 0.01, DOuter: 0.03, Height: tt.height, Offset: tt.offset}
			cone := Cone{Direction: axis, ThetaOuter: 15}
			rng := rand.New(rand.NewPCG(13, 14))
			var sum float64
			for i := 0; i < nSamples; i++ {
				p := SampleGeometry(cone, m, rng).Position
				z := r3.Dot(p, axis)
				if z < tt.offset-1e-12 || z > tt.offset+tt.height+1e-12 {
					t.Fatalf("axial offset %g outside [%g, %g]", z, tt.offset, tt.offset+tt.height)
				}
				r := r3.Norm(r3.Sub(p, r3.Scale(z, axis)))
				if r < 0.005-1e-12 || r > 0.015+1e-12 {
					t.Fatalf("radius %g outside annulus", r)
				}
				sum += z
			}
			if want := tt.offset + tt.height/2; !scalar.EqualWithinAbs(sum/nSamples, want, 0.01*tt.height+1e-12) {
				t.Errorf("mean axial offset = %g, want %g", sum/nSamples, want)
			}
		})
	}
}

func TestSampleGeometry_DrawOrder(t *testing.T) {
	// Disc and cylinder share the azimuth, cone and radial draws, so a
	// zero-height cylinder at zero offset lands where the disc does.
	cone := Cone{Direction: r3.Vec{X: 1, Y: 1}, ThetaInner: 3, ThetaOuter: 12}
	a := rand.New(rand.NewPCG(15, 16))
	b := rand.New(rand.NewPCG(15, 16))
	for i := 0; i < 100; i++ {
		sd := SampleGeometry(cone, Disc{DInner: 0.1, DOuter: 0.2}, a)
		a.Float64() // cylinder's axial draw
		sc := SampleGeometry(cone, Cylinder{DInner: 0.1, DOuter: 0.2}, b)
		if sd.Direction != sc.Direction {
			t.Fatalf("directions differ: %v vs %v", sd.Direction, sc.Direction)
		}
		if r3.Norm(r3.Sub(sd.Position, sc.Position)) > 1e-15 {
			t.Fatalf("positions differ: %v vs %v", sd.Position, sc.Position)
		}
	}
}

// ---------- Flow ----------

func TestFlow_Speed(t *testing.T) {
	tests := []struct {
		name        string
		flow        Flow
		ctx         FlowContext
		want        float64
		wantClamped bool
	}{
		{"constant", ConstantVelocity{Umag: timefunc.Constant(35)}, FlowContext{}, 35, false},
		{"pressure", PressureDriven{Pinj: timefunc.Constant(2)}, FlowContext{Density: 1, Pressure: 0}, 2, false},
		{"pressure deficit", PressureDriven{Pinj: timefunc.Constant(0)}, FlowContext{Density: 1, Pressure: 1}, 0, true},
		{"pressure balanced", PressureDriven{Pinj: timefunc.Constant(1)}, FlowContext{Density: 1, Pressure: 1}, 0, false},
		{"pressure no density", PressureDriven{Pinj: timefunc.Constant(5)}, FlowContext{Density: 0}, 0, true},
		{"discharge", FlowRateAndDischarge{Cd: timefunc.Constant(0.8)},
			FlowContext{Density: 1, Area: 0.5, MassFlowRate: 1}, 2.5, false},
		{"discharge no density", FlowRateAndDischarge{Cd: timefunc.Constant(0.8)},
			FlowContext{Density: 0, Area: 0.5, MassFlowRate: 1}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, clamped := tt.flow.Speed(0, tt.ctx)
			if got != tt.want {
				t.Errorf("speed = %v, want %v", got, tt.want)
			}
			if clamped != tt.wantClamped {
				t.Errorf("clamped = %v, want %v", clamped, tt.wantClamped)
			}
			if math.IsNaN(got) || math.IsInf(got, 0) {
				t.Errorf("speed not finite: %v", got)
			}
		})
	}
}

func TestFlow_TimeVarying(t *testing.T) {
	umag, err := timefunc.NewTable([]float64{0, 1}, []float64{10, 20})
	if err != nil {
		t.Fatal(err)
	}
	f := ConstantVelocity{Umag: umag}
	if got, _ := f.Speed(0.5, FlowContext{}); !scalar.EqualWithinAbs(got, 15, 1e-12) {
		t.Errorf("speed(0.5) = %g, want 15", got)
	}
}

// ---------- Method ----------

func TestMethod_Area(t *testing.T) {
	tests := []struct {
		name string
		m    Method
		want float64
	}{
		{"point", Point{}, 0},
		{"point reference", Point{ReferenceArea: 0.5}, 0.5},
		{"disc", Disc{DOuter: 2}, math.Pi},
		{"annulus", Disc{DInner: 1, DOuter: 2}, 0.75 * math.Pi},
		{"cylinder", Cylinder{DInner: 1, DOuter: 2, Height: 3}, 0.75 * math.Pi},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.Area(); !scalar.EqualWithinAbs(got, tt.want, 1e-12) {
				t.Errorf("Area() = %g, want %g", got, tt.want)
			}
		})
	}
}
