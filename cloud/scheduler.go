// Package cloud drives injection models over time steps and collects the
// parcels they create.
package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/pthm-cable/spray/injection"
	"github.com/pthm-cable/spray/parcel"
	"github.com/pthm-cable/spray/telemetry"
)

// Options configures a Scheduler.
type Options struct {
	// Workers is the number of goroutines generating parcels; 0 uses
	// GOMAXPROCS and 1 disables parallel generation. With more than one
	// worker, models must accept concurrent calls for distinct parcel indices.
	Workers int

	// ParcelDensity is the particle material density [kg/m^3], used to
	// convert parcel mass into a particle count.
	ParcelDensity float64

	// WindowSec is the telemetry window length in simulated seconds.
	WindowSec float64

	// OnWindow is called with statistics each time a telemetry window closes.
	OnWindow func(telemetry.WindowStats, telemetry.PerfStats)
	// OnStep is called after each step with the parcels it added.
	OnStep func(t float64, added []parcel.Parcel)
}

// clampCounter is implemented by models that count clamped injection speeds.
type clampCounter interface {
	SpeedClamps() int64
}

type entry struct {
	model       injection.InjectionModel
	volumeTotal float64
	delayed     float64 // volume of events too short to hold a parcel
}

// slot is the generation result for one parcel index.
type slot struct {
	p  parcel.Parcel
	ok bool
}

// Scheduler injects parcels from registered models into a parcel cloud.
type Scheduler struct {
	opts   Options
	cloud  *parcel.Cloud
	models []entry
	pool   *workerPool
	stats  *telemetry.Collector
	perf   *telemetry.PerfCollector
	slots  []slot // reused between events
}

// New creates a scheduler storing parcels in c.
func New(c *parcel.Cloud, opts Options) (*Scheduler, error) {
	if c == nil {
		return nil, fmt.Errorf("cloud: nil parcel cloud")
	}
	if opts.ParcelDensity <= 0 {
		return nil, fmt.Errorf("cloud: parcel density must be > 0, got %g", opts.ParcelDensity)
	}
	return &Scheduler{
		opts:  opts,
		cloud: c,
		pool:  newWorkerPool(opts.Workers),
		perf:  telemetry.NewPerfCollector(100),
	}, nil
}

// Add registers an injection model and returns its injector index.
func (s *Scheduler) Add(m injection.InjectionModel) int {
	s.models = append(s.models, entry{
		model:       m,
		volumeTotal: m.VolumeToInject(m.SOI(), m.TimeEnd()),
	})
	return len(s.models) - 1
}

// Models returns the registered models in index order.
func (s *Scheduler) Models() []injection.InjectionModel {
	out := make([]injection.InjectionModel, len(s.models))
	for i, e := range s.models {
		out[i] = e.model
	}
	return out
}

// TimeEnd returns the latest end of injection over all models.
func (s *Scheduler) TimeEnd() float64 {
	end := math.Inf(-1)
	for _, e := range s.models {
		end = math.Max(end, e.model.TimeEnd())
	}
	return end
}

// Cloud returns the parcel container.
func (s *Scheduler) Cloud() *parcel.Cloud { return s.cloud }

// NotifyMeshChanged forwards a mesh change to every model.
func (s *Scheduler) NotifyMeshChanged() {
	for _, e := range s.models {
		e.model.NotifyMeshChanged()
	}
}

// Close stops the worker pool.
func (s *Scheduler) Close() {
	s.pool.stop()
}

// Inject runs one injection event over [t0, t1] for every model and
// returns the parcels added to the cloud, in model then parcel index order.
func (s *Scheduler) Inject(t0, t1 float64) []parcel.Parcel {
	var added []parcel.Parcel
	for mi := range s.models {
		e := &s.models[mi]
		if t0 >= e.model.TimeEnd() {
			continue
		}
		s.perf.StartPhase(telemetry.PhaseSchedule)
		n := e.model.ParcelsToInject(t0, t1)
		vol := e.model.VolumeToInject(t0, t1) + e.delayed
		if n <= 0 {
			e.delayed = vol
			continue
		}
		e.delayed = 0

		var before int64
		cc, counts := e.model.(clampCounter)
		if counts {
			before = cc.SpeedClamps()
		}

		s.perf.StartPhase(telemetry.PhaseGenerate)
		slots := s.generate(mi, e.model, n, t0, t1)
		s.perf.AddParcels(n)

		s.perf.StartPhase(telemetry.PhaseStore)
		added = s.store(added, *e, slots, vol)

		if s.stats != nil {
			var clamped int64
			if counts {
				clamped = cc.SpeedClamps() - before
			}
			s.stats.RecordBatch(vol, clamped)
			for i, sl := range slots {
				if !sl.ok {
					s.stats.Record(telemetry.NewRejectedEvent(sl.p.Time, mi, i))
				}
			}
		}
	}
	return added
}

// injectionTime spreads n parcels evenly over the part of [t0, t1] inside
// the model's injection window.
func injectionTime(m injection.InjectionModel, parcelI, n int, t0, t1 float64) float64 {
	a := math.Max(t0, m.SOI())
	b := math.Min(t1, m.TimeEnd())
	if b < a {
		b = a
	}
	return a + (float64(parcelI)+0.5)*(b-a)/float64(n)
}

// generate runs both construction phases for parcels [0, n). Results are
// written into index slots so the parallel path matches the serial one.
func (s *Scheduler) generate(mi int, m injection.InjectionModel, n int, t0, t1 float64) []slot {
	if cap(s.slots) < n {
		s.slots = make([]slot, n)
	}
	slots := s.slots[:n]

	s.pool.run(n, func(i0, i1 int) {
		for i := i0; i < i1; i++ {
			ti := injectionTime(m, i, n, t0, t1)
			var p parcel.Parcel
			m.SetPositionAndCell(i, n, ti)
			if !m.ValidInjection(i) {
				slots[i] = slot{p: parcel.Parcel{Time: ti, Injector: mi}}
				continue
			}
			m.SetProperties(i, n, ti, &p)
			p.Injector = mi
			p.Time = ti
			slots[i] = slot{p: p, ok: true}
		}
	})
	return slots
}

// store apportions mass over the valid parcels and adds them to the cloud.
func (s *Scheduler) store(added []parcel.Parcel, e entry, slots []slot, vol float64) []parcel.Parcel {
	valid := 0
	for _, sl := range slots {
		if sl.ok {
			valid++
		}
	}
	if valid == 0 {
		slog.Debug("no valid parcels in injection event",
			"injector", e.model.Name(), "requested", len(slots))
		return added
	}

	var massPerParcel float64
	if e.volumeTotal > 0 {
		massPerParcel = e.model.MassTotal() * vol / e.volumeTotal / float64(valid)
	}
	rho := s.opts.ParcelDensity

	for i := range slots {
		if !slots[i].ok {
			continue
		}
		p := slots[i].p
		if p.NParticle > 0 {
			// Fixed particles per parcel: the mass follows from the size.
			p.Mass = p.NParticle * rho * p.ParticleVolume()
		} else {
			p.Mass = massPerParcel
			p.NParticle = parcel.ParticlesForMass(p.Mass, p.Diameter, rho)
		}
		s.cloud.Add(p)
		added = append(added, p)
		if s.stats != nil {
			s.stats.Record(telemetry.NewInjectedEvent(i, p))
		}
	}

	slog.Debug("injected parcels",
		"injector", e.model.Name(), "requested", len(slots), "valid", valid,
		"mass_per_parcel", massPerParcel)
	return added
}

// Run injects over [start, end] in steps of dt, honouring ctx cancellation
// between steps.
func (s *Scheduler) Run(ctx context.Context, start, end, dt float64) error {
	if !(dt > 0) {
		return fmt.Errorf("cloud: time step must be > 0, got %g", dt)
	}
	if end < start {
		return fmt.Errorf("cloud: end %g before start %g", end, start)
	}
	if s.stats == nil {
		window := s.opts.WindowSec
		if window <= 0 {
			window = dt
		}
		s.stats = telemetry.NewCollector(window, start)
	}

	steps := int(math.Ceil((end-start)/dt - 1e-9))
	for k := 0; k < steps; k++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		t0 := start + float64(k)*dt
		t1 := start + float64(k+1)*dt
		if k == steps-1 {
			t1 = end
		}

		s.perf.StartStep()
		added := s.Inject(t0, t1)

		s.perf.StartPhase(telemetry.PhaseTelemetry)
		if s.opts.OnStep != nil {
			s.opts.OnStep(t1, added)
		}
		final := k == steps-1
		if s.stats.ShouldFlush(t1) || final {
			ws := s.stats.Flush(t1, telemetry.CloudState{Parcels: s.cloud.Len(), Mass: s.cloud.TotalMass()})
			s.perf.EndStep()
			if s.opts.OnWindow != nil {
				s.opts.OnWindow(ws, s.perf.Stats())
			}
			continue
		}
		s.perf.EndStep()
	}
	return nil
}
