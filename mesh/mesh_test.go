package mesh

import (
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func unitBox(t *testing.T, n int) *BoxMesh {
	t.Helper()
	m, err := NewBoxMesh(r3.Box{Min: r3.Vec{}, Max: r3.Vec{X: 1, Y: 1, Z: 1}}, n, n, n)
	if err != nil {
		t.Fatalf("NewBoxMesh: %v", err)
	}
	return m
}

// ---------- BoxMesh ----------

func TestNewBoxMesh_Invalid(t *testing.T) {
	if _, err := NewBoxMesh(r3.Box{Max: r3.Vec{X: 1, Y: 1, Z: 1}}, 0, 1, 1); err == nil {
		t.Error("expected error for zero cells")
	}
	if _, err := NewBoxMesh(r3.Box{Max: r3.Vec{X: 1, Y: 0, Z: 1}}, 1, 1, 1); err == nil {
		t.Error("expected error for flat bounds")
	}
}

func TestBoxMesh_LocateCell(t *testing.T) {
	m := unitBox(t, 2)

	tests := []struct {
		name string
		p    r3.Vec
		cell int
		ok   bool
	}{
		{"first cell", r3.Vec{X: 0.25, Y: 0.25, Z: 0.25}, 0, true},
		{"x neighbour", r3.Vec{X: 0.75, Y: 0.25, Z: 0.25}, 1, true},
		{"y neighbour", r3.Vec{X: 0.25, Y: 0.75, Z: 0.25}, 2, true},
		{"z neighbour", r3.Vec{X: 0.25, Y: 0.25, Z: 0.75}, 4, true},
		{"last cell", r3.Vec{X: 0.9, Y: 0.9, Z: 0.9}, 7, true},
		{"min corner inside", r3.Vec{}, 0, true},
		{"max face outside", r3.Vec{X: 1, Y: 0.5, Z: 0.5}, -1, false},
		{"negative outside", r3.Vec{X: -0.01, Y: 0.5, Z: 0.5}, -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, ok := m.Locate(tt.p)
			if ok != tt.ok {
				t.Fatalf("Locate(%v) ok = %v, want %v", tt.p, ok, tt.ok)
			}
			if addr.Cell != tt.cell {
				t.Errorf("Locate(%v) cell = %d, want %d", tt.p, addr.Cell, tt.cell)
			}
			if !ok && addr != NotFound {
				t.Errorf("missed point should return NotFound, got %+v", addr)
			}
		})
	}
}

func TestBoxMesh_TetAddressConsistent(t *testing.T) {
	m := unitBox(t, 3)
	rng := rand.New(rand.NewPCG(1, 2))

	for n := 0; n < 2000; n++ {
		p := r3.Vec{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()}
		addr, ok := m.Locate(p)
		if !ok {
			t.Fatalf("interior point %v not found", p)
		}
		if addr.TetFace/FacesPerCell != addr.Cell {
			t.Fatalf("tet face %d not owned by cell %d", addr.TetFace, addr.Cell)
		}
		if addr.TetPoint != 1 && addr.TetPoint != 2 {
			t.Fatalf("tet point %d out of range", addr.TetPoint)
		}
	}
}

func TestBoxMesh_TetFaceMatchesNearestFace(t *testing.T) {
	m := unitBox(t, 1)

	// Points just inside each face lie in a tet built on that face.
	tests := []struct {
		p    r3.Vec
		face int
	}{
		{r3.Vec{X: 0.01, Y: 0.5, Z: 0.5}, 0},
		{r3.Vec{X: 0.99, Y: 0.5, Z: 0.5}, 1},
		{r3.Vec{X: 0.5, Y: 0.01, Z: 0.5}, 2},
		{r3.Vec{X: 0.5, Y: 0.99, Z: 0.5}, 3},
		{r3.Vec{X: 0.5, Y: 0.5, Z: 0.01}, 4},
		{r3.Vec{X: 0.5, Y: 0.5, Z: 0.99}, 5},
	}
	for _, tt := range tests {
		addr, ok := m.Locate(tt.p)
		if !ok {
			t.Fatalf("Locate(%v) missed", tt.p)
		}
		if addr.TetFace != tt.face {
			t.Errorf("Locate(%v) tet face = %d, want %d", tt.p, addr.TetFace, tt.face)
		}
	}
}

func TestBoxMesh_CellCentre(t *testing.T) {
	m := unitBox(t, 2)
	c := m.CellCentre(7)
	want := r3.Vec{X: 0.75, Y: 0.75, Z: 0.75}
	if r3.Norm(r3.Sub(c, want)) > 1e-12 {
		t.Errorf("CellCentre(7) = %v, want %v", c, want)
	}
	addr, _ := m.Locate(c)
	if addr.Cell != 7 {
		t.Errorf("centre of cell 7 located in cell %d", addr.Cell)
	}
}

// ---------- Partitioned ----------

func TestDecompose_LocatesEverywhere(t *testing.T) {
	m := unitBox(t, 4)
	parts, err := m.Decompose(2)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if len(parts.Parts) != 2 {
		t.Fatalf("expected 2 partitions, got %d", len(parts.Parts))
	}

	rng := rand.New(rand.NewPCG(3, 4))
	seen := make(map[int]bool)
	for n := 0; n < 5000; n++ {
		p := r3.Vec{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()}
		addr, ok := parts.Locate(p)
		if !ok {
			t.Fatalf("point %v not found in any partition", p)
		}
		seen[addr.Cell] = true
	}
	if len(seen) != m.NumCells() {
		t.Errorf("expected all %d global cells hit, got %d", m.NumCells(), len(seen))
	}
}

func TestDecompose_Invalid(t *testing.T) {
	m := unitBox(t, 3)
	if _, err := m.Decompose(2); err == nil {
		t.Error("expected error splitting 3 cells into 2 partitions")
	}
}

func TestPartitioned_MissesEverywhere(t *testing.T) {
	m := unitBox(t, 2)
	parts, _ := m.Decompose(2)
	addr, ok := parts.Locate(r3.Vec{X: 2, Y: 0.5, Z: 0.5})
	if ok || addr != NotFound {
		t.Errorf("expected NotFound, got %+v ok=%v", addr, ok)
	}
}

// ---------- Func ----------

func TestFunc_Locator(t *testing.T) {
	var calls int
	var loc Locator = Func(func(p r3.Vec) (Address, bool) {
		calls++
		if p.X > 0 {
			return Address{Cell: 3}, true
		}
		return NotFound, false
	})

	if a, ok := loc.Locate(r3.Vec{X: 1}); !ok || a.Cell != 3 {
		t.Errorf("expected hit in cell 3, got %+v %v", a, ok)
	}
	if _, ok := loc.Locate(r3.Vec{X: -1}); ok {
		t.Error("expected miss")
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}
