package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/spray/mesh"
	"github.com/pthm-cable/spray/parcel"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the parcel cloud at one instant.
type Snapshot struct {
	Version   int      `json:"version"`
	Seed      uint64   `json:"seed"`
	Time      float64  `json:"time"`
	Injectors []string `json:"injectors"`

	Parcels []ParcelState `json:"parcels"`
}

// ParcelState holds one parcel's complete state.
type ParcelState struct {
	Injector int        `json:"injector"`
	Time     float64    `json:"time"`
	Position [3]float64 `json:"position"`
	Velocity [3]float64 `json:"velocity"`
	Dir      [3]float64 `json:"direction"`
	Speed    float64    `json:"speed"`

	Diameter  float64 `json:"d"`
	Mass      float64 `json:"mass"`
	NParticle float64 `json:"n_particle"`

	Cell     int `json:"cell"`
	TetFace  int `json:"tet_face"`
	TetPoint int `json:"tet_point"`
}

func vec3(v r3.Vec) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }
func r3vec(a [3]float64) r3.Vec { return r3.Vec{X: a[0], Y: a[1], Z: a[2]} }

// NewSnapshot captures parcels in order.
func NewSnapshot(seed uint64, t float64, injectors []string, ps []parcel.Parcel) *Snapshot {
	s := &Snapshot{
		Version:   SnapshotVersion,
		Seed:      seed,
		Time:      t,
		Injectors: injectors,
		Parcels:   make([]ParcelState, len(ps)),
	}
	for i, p := range ps {
		s.Parcels[i] = ParcelState{
			Injector:  p.Injector,
			Time:      p.Time,
			Position:  vec3(p.Position),
			Velocity:  vec3(p.Velocity),
			Dir:       vec3(p.Direction),
			Speed:     p.Speed,
			Diameter:  p.Diameter,
			Mass:      p.Mass,
			NParticle: p.NParticle,
			Cell:      p.Address.Cell,
			TetFace:   p.Address.TetFace,
			TetPoint:  p.Address.TetPoint,
		}
	}
	return s
}

// ToParcels restores the captured parcels.
func (s *Snapshot) ToParcels() []parcel.Parcel {
	ps := make([]parcel.Parcel, len(s.Parcels))
	for i, st := range s.Parcels {
		ps[i] = parcel.Parcel{
			Position:  r3vec(st.Position),
			Address:   mesh.Address{Cell: st.Cell, TetFace: st.TetFace, TetPoint: st.TetPoint},
			Direction: r3vec(st.Dir),
			Velocity:  r3vec(st.Velocity),
			Speed:     st.Speed,
			Diameter:  st.Diameter,
			Mass:      st.Mass,
			NParticle: st.NParticle,
			Injector:  st.Injector,
			Time:      st.Time,
		}
	}
	return ps
}

// SaveSnapshot writes a snapshot to dir and returns its path.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("snapshot_%.6g.json", snapshot.Time))

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}
	return &snapshot, nil
}
