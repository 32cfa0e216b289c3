package distribution

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/stat"
)

func newRNG() *rand.Rand {
	return rand.New(rand.NewPCG(11, 13))
}

// ---------- New ----------

func TestNew_Types(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"fixed", Config{Type: "fixedValue", Value: 1e-3}},
		{"uniform", Config{Type: "uniform", Min: 1e-4, Max: 2e-4}},
		{"normal", Config{Type: "normal", Mu: 1e-4, Sigma: 1e-5, Min: 5e-5, Max: 2e-4}},
		{"logNormal", Config{Type: "logNormal", Mu: math.Log(1e-4), Sigma: 0.3, Min: 1e-5, Max: 1e-3}},
		{"RosinRammler", Config{Type: "RosinRammler", D: 1e-4, N: 3, Min: 1e-5, Max: 5e-4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.cfg)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			rng := newRNG()
			for i := 0; i < 2000; i++ {
				d := m.Sample(rng)
				if d < m.Min() || d > m.Max() {
					t.Fatalf("sample %g outside [%g, %g]", d, m.Min(), m.Max())
				}
			}
		})
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing type", Config{}},
		{"unknown type", Config{Type: "gamma"}},
		{"fixed zero", Config{Type: "fixedValue"}},
		{"uniform inverted", Config{Type: "uniform", Min: 2, Max: 1}},
		{"normal no sigma", Config{Type: "normal", Min: 0, Max: 1}},
		{"rosin no n", Config{Type: "RosinRammler", D: 1, Min: 0, Max: 2}},
		{"negative min", Config{Type: "uniform", Min: -1, Max: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); !errors.Is(err, ErrInvalidDistribution) {
				t.Errorf("expected ErrInvalidDistribution, got %v", err)
			}
		})
	}
}

// ---------- Sampling ----------

func TestUniform_Mean(t *testing.T) {
	u := Uniform{Lo: 1, Hi: 3}
	rng := newRNG()
	xs := make([]float64, 20000)
	for i := range xs {
		xs[i] = u.Sample(rng)
	}
	if m := stat.Mean(xs, nil); math.Abs(m-2) > 0.02 {
		t.Errorf("mean = %v, want ~2", m)
	}
}

func TestNormal_Truncated(t *testing.T) {
	n := Normal{Mu: 0, Sigma: 1, Lo: 0, Hi: 10}
	rng := newRNG()
	xs := make([]float64, 20000)
	for i := range xs {
		xs[i] = n.Sample(rng)
	}
	// Half-normal mean is sigma*sqrt(2/pi).
	want := math.Sqrt(2 / math.Pi)
	if m := stat.Mean(xs, nil); math.Abs(m-want) > 0.02 {
		t.Errorf("mean = %v, want ~%v", m, want)
	}
}

func TestRosinRammler_Median(t *testing.T) {
	r := RosinRammler{D: 1, N: 2, Lo: 0, Hi: 100}
	rng := newRNG()
	below := 0
	const samples = 20000
	median := math.Pow(math.Ln2, 1/r.N)
	for i := 0; i < samples; i++ {
		if r.Sample(rng) <= median {
			below++
		}
	}
	frac := float64(below) / samples
	if math.Abs(frac-0.5) > 0.015 {
		t.Errorf("fraction below median = %v, want ~0.5", frac)
	}
}

func TestSample_Reproducible(t *testing.T) {
	m, _ := New(Config{Type: "RosinRammler", D: 1e-4, N: 2.5, Min: 1e-6, Max: 1e-3})
	a, b := newRNG(), newRNG()
	for i := 0; i < 100; i++ {
		if x, y := m.Sample(a), m.Sample(b); x != y {
			t.Fatalf("draw %d differs: %v vs %v", i, x, y)
		}
	}
}

// ---------- Fitting ----------

func TestFitRosinRammler_RecoversParameters(t *testing.T) {
	truth := RosinRammler{D: 50e-6, N: 3, Lo: 0, Hi: 1}
	rng := newRNG()
	ds := make([]float64, 5000)
	for i := range ds {
		ds[i] = truth.Sample(rng)
	}

	fit, err := FitRosinRammler(ds)
	if err != nil {
		t.Fatalf("FitRosinRammler: %v", err)
	}
	if math.Abs(fit.D-truth.D)/truth.D > 0.05 {
		t.Errorf("D = %g, want ~%g", fit.D, truth.D)
	}
	if math.Abs(fit.N-truth.N)/truth.N > 0.05 {
		t.Errorf("N = %g, want ~%g", fit.N, truth.N)
	}
	if fit.Count != len(ds) {
		t.Errorf("Count = %d, want %d", fit.Count, len(ds))
	}
	if fit.SMD <= fit.Mean {
		t.Errorf("SMD %g should exceed arithmetic mean %g for a spread sample", fit.SMD, fit.Mean)
	}
}

func TestFitRosinRammler_Invalid(t *testing.T) {
	if _, err := FitRosinRammler([]float64{1}); !errors.Is(err, ErrInvalidDistribution) {
		t.Errorf("expected ErrInvalidDistribution for single value, got %v", err)
	}
	if _, err := FitRosinRammler([]float64{1, 0}); !errors.Is(err, ErrInvalidDistribution) {
		t.Errorf("expected ErrInvalidDistribution for zero diameter, got %v", err)
	}
}

func TestSauterMean(t *testing.T) {
	if got := SauterMean([]float64{2, 2, 2}); got != 2 {
		t.Errorf("SauterMean of equal sizes = %v, want 2", got)
	}
	// (1 + 8) / (1 + 4)
	if got := SauterMean([]float64{1, 2}); math.Abs(got-1.8) > 1e-12 {
		t.Errorf("SauterMean = %v, want 1.8", got)
	}
	if SauterMean(nil) != 0 {
		t.Error("SauterMean(nil) should be 0")
	}
}
