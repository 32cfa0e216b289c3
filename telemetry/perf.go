package telemetry

import (
	"log/slog"
	"time"
)

// Phases of one scheduler step: counting parcels per injector, generating
// them (possibly on the worker pool), apportioning mass into the cloud, and
// window bookkeeping plus callbacks.
const (
	PhaseSchedule  = "schedule"
	PhaseGenerate  = "generate"
	PhaseStore     = "store"
	PhaseTelemetry = "telemetry"
)

var phases = []string{PhaseSchedule, PhaseGenerate, PhaseStore, PhaseTelemetry}

// PerfSample is the wall-clock cost of one injection step.
type PerfSample struct {
	StepDuration time.Duration
	Parcels      int
	Phases       map[string]time.Duration
}

// PerfCollector keeps the last windowSize step samples in a ring and splits
// each step into phases. Calls must come from the goroutine driving the
// scheduler.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	stepStart     time.Time
	phaseStart    time.Time
	lastPhase     string
	parcels       int
}

// NewPerfCollector returns a collector averaging over windowSize steps
// (100 if windowSize < 1).
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 100
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
	}
}

// StartStep resets the phase clock and parcel count for a new step.
func (p *PerfCollector) StartStep() {
	p.stepStart = time.Now()
	p.currentPhases = make(map[string]time.Duration)
	p.lastPhase = ""
	p.parcels = 0
}

// StartPhase charges time since the last phase change to that phase and
// switches to phase. A phase entered more than once per step accumulates.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// AddParcels adds n requested parcels to the current step's throughput.
func (p *PerfCollector) AddParcels(n int) {
	p.parcels += n
}

// EndStep closes the open phase and stores the step in the ring,
// overwriting the oldest sample once the window is full.
func (p *PerfCollector) EndStep() {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}

	p.samples[p.writeIndex] = PerfSample{
		StepDuration: now.Sub(p.stepStart),
		Parcels:      p.parcels,
		Phases:       p.currentPhases,
	}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// PerfStats summarises the samples currently in the window.
type PerfStats struct {
	AvgStepDuration time.Duration
	MinStepDuration time.Duration
	MaxStepDuration time.Duration

	// Mean time per phase and its percentage of the mean step
	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64

	StepsPerSecond   float64
	ParcelsPerSecond float64 // parcels requested per second of step time
}

// Stats averages the window. An empty window yields zero durations and
// empty phase maps.
func (p *PerfCollector) Stats() PerfStats {
	if p.sampleCount == 0 {
		return PerfStats{
			PhaseAvg: make(map[string]time.Duration),
			PhasePct: make(map[string]float64),
		}
	}

	var total time.Duration
	var minStep, maxStep time.Duration
	var parcels int
	phaseSum := make(map[string]time.Duration)

	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		total += s.StepDuration
		parcels += s.Parcels

		if i == 0 || s.StepDuration < minStep {
			minStep = s.StepDuration
		}
		if s.StepDuration > maxStep {
			maxStep = s.StepDuration
		}
		for phase, dur := range s.Phases {
			phaseSum[phase] += dur
		}
	}

	avg := total / time.Duration(p.sampleCount)

	phaseAvg := make(map[string]time.Duration)
	phasePct := make(map[string]float64)
	for phase, sum := range phaseSum {
		phaseAvg[phase] = sum / time.Duration(p.sampleCount)
		if avg > 0 {
			phasePct[phase] = float64(phaseAvg[phase]) / float64(avg) * 100
		}
	}

	var stepsPerSec, parcelsPerSec float64
	if avg > 0 {
		stepsPerSec = float64(time.Second) / float64(avg)
	}
	if total > 0 {
		parcelsPerSec = float64(parcels) / total.Seconds()
	}

	return PerfStats{
		AvgStepDuration:  avg,
		MinStepDuration:  minStep,
		MaxStepDuration:  maxStep,
		PhaseAvg:         phaseAvg,
		PhasePct:         phasePct,
		StepsPerSecond:   stepsPerSec,
		ParcelsPerSecond: parcelsPerSec,
	}
}

// LogStats logs one "perf" record, omitting phases under 0.1% of a step.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_step_us", s.AvgStepDuration.Microseconds(),
		"min_step_us", s.MinStepDuration.Microseconds(),
		"max_step_us", s.MaxStepDuration.Microseconds(),
		"steps_per_sec", int(s.StepsPerSecond),
		"parcels_per_sec", int(s.ParcelsPerSecond),
	}
	for _, phase := range phases {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, phase+"_pct", int(pct*10)/10.0)
		}
	}
	slog.Info("perf", attrs...)
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_step_us", s.AvgStepDuration.Microseconds()),
		slog.Int64("min_step_us", s.MinStepDuration.Microseconds()),
		slog.Int64("max_step_us", s.MaxStepDuration.Microseconds()),
		slog.Float64("steps_per_sec", s.StepsPerSecond),
		slog.Float64("parcels_per_sec", s.ParcelsPerSecond),
	}
	for phase, pct := range s.PhasePct {
		attrs = append(attrs, slog.Float64(phase+"_pct", pct))
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is one row of perf.csv.
type PerfStatsCSV struct {
	SimTime       float64 `csv:"sim_time"`
	AvgStepUS     int64   `csv:"avg_step_us"`
	MinStepUS     int64   `csv:"min_step_us"`
	MaxStepUS     int64   `csv:"max_step_us"`
	StepsPerSec   float64 `csv:"steps_per_sec"`
	ParcelsPerSec float64 `csv:"parcels_per_sec"`
	SchedulePct   float64 `csv:"schedule_pct"`
	GeneratePct   float64 `csv:"generate_pct"`
	StorePct      float64 `csv:"store_pct"`
	TelemetryPct  float64 `csv:"telemetry_pct"`
}

// ToCSV flattens s into a perf.csv row stamped with simTime.
func (s PerfStats) ToCSV(simTime float64) PerfStatsCSV {
	return PerfStatsCSV{
		SimTime:       simTime,
		AvgStepUS:     s.AvgStepDuration.Microseconds(),
		MinStepUS:     s.MinStepDuration.Microseconds(),
		MaxStepUS:     s.MaxStepDuration.Microseconds(),
		StepsPerSec:   s.StepsPerSecond,
		ParcelsPerSec: s.ParcelsPerSecond,
		SchedulePct:   s.PhasePct[PhaseSchedule],
		GeneratePct:   s.PhasePct[PhaseGenerate],
		StorePct:      s.PhasePct[PhaseStore],
		TelemetryPct:  s.PhasePct[PhaseTelemetry],
	}
}
