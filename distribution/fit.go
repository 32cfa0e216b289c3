package distribution

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// FitResult holds fitted Rosin-Rammler parameters and summary statistics
// of the measured sample.
type FitResult struct {
	D     float64 `yaml:"d"`
	N     float64 `yaml:"n"`
	Mean  float64 `yaml:"mean"`
	SMD   float64 `yaml:"smd"`
	Count int     `yaml:"count"`
}

// Config returns a RosinRammler distribution config spanning [lo, hi].
func (r FitResult) Config(lo, hi float64) Config {
	return Config{Type: "RosinRammler", D: r.D, N: r.N, Min: lo, Max: hi}
}

// FitRosinRammler estimates D and N from measured diameters by maximum
// likelihood. Parameters are optimised in log space to stay positive.
func FitRosinRammler(diameters []float64) (FitResult, error) {
	if len(diameters) < 2 {
		return FitResult{}, fmt.Errorf("%w: need at least 2 diameters to fit, got %d",
			ErrInvalidDistribution, len(diameters))
	}
	for i, d := range diameters {
		if !(d > 0) {
			return FitResult{}, fmt.Errorf("%w: diameter %d is not positive (%g)",
				ErrInvalidDistribution, i, d)
		}
	}

	mean := stat.Mean(diameters, nil)
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			w := distuv.Weibull{Lambda: math.Exp(x[0]), K: math.Exp(x[1])}
			var nll float64
			for _, d := range diameters {
				nll -= w.LogProb(d)
			}
			return nll
		},
	}

	initX := []float64{math.Log(mean), math.Log(2)}
	res, err := optimize.Minimize(problem, initX, nil, &optimize.NelderMead{})
	if res == nil {
		return FitResult{}, fmt.Errorf("fitting Rosin-Rammler: %w", err)
	}

	return FitResult{
		D:     math.Exp(res.X[0]),
		N:     math.Exp(res.X[1]),
		Mean:  mean,
		SMD:   SauterMean(diameters),
		Count: len(diameters),
	}, nil
}

// SauterMean returns the Sauter mean diameter sum(d^3)/sum(d^2).
func SauterMean(diameters []float64) float64 {
	var d2, d3 float64
	for _, d := range diameters {
		sq := d * d
		d2 += sq
		d3 += sq * d
	}
	if d2 == 0 {
		return 0
	}
	return d3 / d2
}
