package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/spray/distribution"
)

// WindowStats holds aggregated injection statistics for a time window.
type WindowStats struct {
	WindowStart float64 `csv:"-"`
	WindowEnd   float64 `csv:"sim_time"`

	// Injection events during window
	Events     int     `csv:"events"`
	Injected   int     `csv:"injected"`
	Rejected   int     `csv:"rejected"`
	Clamped    int64   `csv:"clamped"`
	RejectRate float64 `csv:"reject_rate"`

	// Loading
	MassInjected   float64 `csv:"mass_injected"`
	VolumeInjected float64 `csv:"volume_injected"`

	// Size distribution of parcels injected in the window
	DiameterMean float64 `csv:"d_mean"`
	DiameterP10  float64 `csv:"d_p10"`
	DiameterP50  float64 `csv:"d_p50"`
	DiameterP90  float64 `csv:"d_p90"`
	SMD          float64 `csv:"d32"`

	// Injection speed
	SpeedMean float64 `csv:"speed_mean"`
	SpeedP50  float64 `csv:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90"`

	// Cloud totals at window end
	CloudParcels int     `csv:"cloud_parcels"`
	CloudMass    float64 `csv:"cloud_mass"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeStats calculates mean and percentiles.
func ComputeStats(values []float64) (mean, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}
	mean = stat.Mean(values, nil)

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return mean, Percentile(sorted, 0.10), Percentile(sorted, 0.50), Percentile(sorted, 0.90)
}

// DiameterStats summarises a set of particle diameters.
type DiameterStats struct {
	Mean, P10, P50, P90 float64
	SMD                 float64 // Sauter mean diameter d32
}

// ComputeDiameterStats calculates percentiles and the Sauter mean diameter.
func ComputeDiameterStats(ds []float64) DiameterStats {
	var s DiameterStats
	s.Mean, s.P10, s.P50, s.P90 = ComputeStats(ds)
	s.SMD = distribution.SauterMean(ds)
	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("window_start", s.WindowStart),
		slog.Float64("sim_time", s.WindowEnd),
		slog.Int("events", s.Events),
		slog.Int("injected", s.Injected),
		slog.Int("rejected", s.Rejected),
		slog.Int64("clamped", s.Clamped),
		slog.Float64("reject_rate", s.RejectRate),
		slog.Float64("mass_injected", s.MassInjected),
		slog.Float64("volume_injected", s.VolumeInjected),
		slog.Float64("d_mean", s.DiameterMean),
		slog.Float64("d_p10", s.DiameterP10),
		slog.Float64("d_p50", s.DiameterP50),
		slog.Float64("d_p90", s.DiameterP90),
		slog.Float64("d32", s.SMD),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_p50", s.SpeedP50),
		slog.Float64("speed_p90", s.SpeedP90),
		slog.Int("cloud_parcels", s.CloudParcels),
		slog.Float64("cloud_mass", s.CloudMass),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"sim_time", s.WindowEnd,
		"injected", s.Injected,
		"rejected", s.Rejected,
		"clamped", s.Clamped,
		"mass_injected", s.MassInjected,
		"d32", s.SMD,
		"speed_mean", s.SpeedMean,
		"cloud_parcels", s.CloudParcels,
		"cloud_mass", s.CloudMass,
	)
}
