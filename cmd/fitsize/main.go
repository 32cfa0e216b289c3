// Package main fits Rosin-Rammler size distribution parameters to measured
// droplet diameters and prints a size_distribution block for spray configs.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"slices"

	"github.com/gocarina/gocsv"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/spray/distribution"
)

// sample is one row of the input CSV.
type sample struct {
	Diameter float64 `csv:"diameter"`
}

// output is the YAML document written to stdout.
type output struct {
	SizeDistribution distribution.Config    `yaml:"size_distribution"`
	Fit              distribution.FitResult `yaml:"fit"`
}

func main() {
	input := flag.String("input", "", "CSV file with a diameter column [m] (empty = stdin)")
	lo := flag.Float64("min", 0, "Lower diameter bound (0 = smallest sample)")
	hi := flag.Float64("max", 0, "Upper diameter bound (0 = largest sample)")
	flag.Parse()

	var r io.Reader = os.Stdin
	if *input != "" {
		f, err := os.Open(*input)
		if err != nil {
			log.Fatalf("opening input: %v", err)
		}
		defer f.Close()
		r = f
	}

	ds, err := readDiameters(r)
	if err != nil {
		log.Fatalf("reading diameters: %v", err)
	}
	doc, err := fit(ds, *lo, *hi)
	if err != nil {
		log.Fatalf("fitting: %v", err)
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		log.Fatalf("writing result: %v", err)
	}
	if err := enc.Close(); err != nil {
		log.Fatalf("writing result: %v", err)
	}
}

// readDiameters decodes the diameter column of a CSV stream.
func readDiameters(r io.Reader) ([]float64, error) {
	var rows []sample
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, err
	}
	ds := make([]float64, len(rows))
	for i, row := range rows {
		ds[i] = row.Diameter
	}
	return ds, nil
}

// fit runs the fit and bounds the distribution by the sample range unless
// explicit bounds are given.
func fit(ds []float64, lo, hi float64) (output, error) {
	res, err := distribution.FitRosinRammler(ds)
	if err != nil {
		return output{}, err
	}
	if lo == 0 {
		lo = slices.Min(ds)
	}
	if hi == 0 {
		hi = slices.Max(ds)
	}
	if hi <= lo {
		return output{}, fmt.Errorf("max %g must exceed min %g", hi, lo)
	}
	cfg := res.Config(lo, hi)
	if _, err := distribution.New(cfg); err != nil {
		return output{}, err
	}
	return output{SizeDistribution: cfg, Fit: res}, nil
}
