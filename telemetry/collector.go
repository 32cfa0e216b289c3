package telemetry

import "gonum.org/v1/gonum/floats"

// Collector accumulates injection events within time windows and produces
// WindowStats. It is not safe for concurrent use; the scheduler records
// events after each batch in parcel index order.
type Collector struct {
	windowDurationSec float64

	// Current window tracking
	windowStart float64

	// Event counters for current window
	injected  int
	rejected  int
	clamped   int64
	volume    float64
	events    int
	masses    []float64
	diameters []float64
	speeds    []float64
}

// NewCollector creates a collector flushing every windowDurationSec of
// simulated time, starting at start.
func NewCollector(windowDurationSec, start float64) *Collector {
	if windowDurationSec <= 0 {
		windowDurationSec = 1e-3
	}
	return &Collector{
		windowDurationSec: windowDurationSec,
		windowStart:       start,
	}
}

// Record adds one event to the current window.
func (c *Collector) Record(e Event) {
	switch e.Type {
	case EventInjected:
		c.injected++
		c.masses = append(c.masses, e.Mass)
		c.diameters = append(c.diameters, e.Diameter)
		c.speeds = append(c.speeds, e.Speed)
	case EventRejected:
		c.rejected++
	}
}

// RecordBatch records one injection event of an injector: the flow-rate
// volume it covered and how many speeds were clamped to zero.
func (c *Collector) RecordBatch(volume float64, clamped int64) {
	c.events++
	c.volume += volume
	c.clamped += clamped
}

// ShouldFlush returns true once the window has covered its duration.
func (c *Collector) ShouldFlush(simTime float64) bool {
	return simTime-c.windowStart >= c.windowDurationSec*(1-1e-9)
}

// CloudState summarises the parcel container at flush time.
type CloudState struct {
	Parcels int
	Mass    float64
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(simTime float64, cloud CloudState) WindowStats {
	var rejectRate float64
	if total := c.injected + c.rejected; total > 0 {
		rejectRate = float64(c.rejected) / float64(total)
	}

	d := ComputeDiameterStats(c.diameters)
	speedMean, _, speedP50, speedP90 := ComputeStats(c.speeds)

	stats := WindowStats{
		WindowStart: c.windowStart,
		WindowEnd:   simTime,

		Events:     c.events,
		Injected:   c.injected,
		Rejected:   c.rejected,
		Clamped:    c.clamped,
		RejectRate: rejectRate,

		MassInjected:   floats.Sum(c.masses),
		VolumeInjected: c.volume,

		DiameterMean: d.Mean,
		DiameterP10:  d.P10,
		DiameterP50:  d.P50,
		DiameterP90:  d.P90,
		SMD:          d.SMD,

		SpeedMean: speedMean,
		SpeedP50:  speedP50,
		SpeedP90:  speedP90,

		CloudParcels: cloud.Parcels,
		CloudMass:    cloud.Mass,
	}

	// Reset for next window
	c.windowStart = simTime
	c.injected = 0
	c.rejected = 0
	c.clamped = 0
	c.volume = 0
	c.events = 0
	c.masses = c.masses[:0]
	c.diameters = c.diameters[:0]
	c.speeds = c.speeds[:0]

	return stats
}

// WindowDuration returns the window length in seconds.
func (c *Collector) WindowDuration() float64 {
	return c.windowDurationSec
}
