package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/spray/parcel"
)

// YAMLWriter is implemented by configurations that can snapshot themselves.
type YAMLWriter interface {
	WriteYAML(path string) error
}

// ParcelRecord is the CSV row for one injected parcel.
type ParcelRecord struct {
	Injector  int     `csv:"injector"`
	Time      float64 `csv:"time"`
	X         float64 `csv:"x"`
	Y         float64 `csv:"y"`
	Z         float64 `csv:"z"`
	U         float64 `csv:"u"`
	V         float64 `csv:"v"`
	W         float64 `csv:"w"`
	Speed     float64 `csv:"speed"`
	Diameter  float64 `csv:"d"`
	Mass      float64 `csv:"mass"`
	NParticle float64 `csv:"n_particle"`
	Cell      int     `csv:"cell"`
	TetFace   int     `csv:"tet_face"`
	TetPoint  int     `csv:"tet_point"`
}

// NewParcelRecord flattens p for CSV output.
func NewParcelRecord(p parcel.Parcel) ParcelRecord {
	return ParcelRecord{
		Injector:  p.Injector,
		Time:      p.Time,
		X:         p.Position.X,
		Y:         p.Position.Y,
		Z:         p.Position.Z,
		U:         p.Velocity.X,
		V:         p.Velocity.Y,
		W:         p.Velocity.Z,
		Speed:     p.Speed,
		Diameter:  p.Diameter,
		Mass:      p.Mass,
		NParticle: p.NParticle,
		Cell:      p.Address.Cell,
		TetFace:   p.Address.TetFace,
		TetPoint:  p.Address.TetPoint,
	}
}

// csvFile appends records to one CSV file, writing the header once.
type csvFile struct {
	f             *os.File
	headerWritten bool
}

func createCSV(dir, name string) (*csvFile, error) {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", name, err)
	}
	return &csvFile{f: f}, nil
}

func (c *csvFile) write(records any) error {
	if !c.headerWritten {
		if err := gocsv.Marshal(records, c.f); err != nil {
			return err
		}
		c.headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, c.f)
}

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir       string
	telemetry *csvFile
	perf      *csvFile
	parcels   *csvFile
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	var err error
	if om.telemetry, err = createCSV(dir, "telemetry.csv"); err != nil {
		return nil, err
	}
	if om.perf, err = createCSV(dir, "perf.csv"); err != nil {
		om.Close()
		return nil, err
	}
	if om.parcels, err = createCSV(dir, "parcels.csv"); err != nil {
		om.Close()
		return nil, err
	}
	return om, nil
}

// WriteConfig saves the effective configuration as YAML.
func (om *OutputManager) WriteConfig(cfg YAMLWriter) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteTelemetry writes a window stats record to telemetry.csv.
func (om *OutputManager) WriteTelemetry(stats WindowStats) error {
	if om == nil {
		return nil
	}
	if err := om.telemetry.write([]WindowStats{stats}); err != nil {
		return fmt.Errorf("writing telemetry: %w", err)
	}
	return nil
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, simTime float64) error {
	if om == nil {
		return nil
	}
	if err := om.perf.write([]PerfStatsCSV{stats.ToCSV(simTime)}); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WriteParcels appends parcels to parcels.csv.
func (om *OutputManager) WriteParcels(ps []parcel.Parcel) error {
	if om == nil || len(ps) == 0 {
		return nil
	}
	records := make([]ParcelRecord, len(ps))
	for i, p := range ps {
		records[i] = NewParcelRecord(p)
	}
	if err := om.parcels.write(records); err != nil {
		return fmt.Errorf("writing parcels: %w", err)
	}
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, c := range []*csvFile{om.telemetry, om.perf, om.parcels} {
		if c == nil {
			continue
		}
		if err := c.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
