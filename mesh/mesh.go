// Package mesh provides point location in the host mesh.
//
// Injection only needs one service from the mesh: given a point, which cell
// and which tetrahedron of that cell's decomposition contains it. Locator
// captures that; BoxMesh and Partitioned are concrete meshes used by the
// scheduler and tests.
package mesh

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Address pins a point to a cell and to a tetrahedron of the cell's
// face-based decomposition.
type Address struct {
	Cell     int
	TetFace  int
	TetPoint int
}

// NotFound is the address of a point outside every mesh partition.
var NotFound = Address{Cell: -1, TetFace: -1, TetPoint: -1}

// Found reports whether the address refers to a real cell.
func (a Address) Found() bool {
	return a.Cell >= 0
}

// Locator resolves points to mesh addresses.
// Locate must not block and returns (NotFound, false) for points outside the mesh.
type Locator interface {
	Locate(p r3.Vec) (Address, bool)
}

// Func adapts a function to the Locator interface.
type Func func(p r3.Vec) (Address, bool)

// Locate calls f(p).
func (f Func) Locate(p r3.Vec) (Address, bool) {
	return f(p)
}

// Partition is one locally owned piece of a decomposed mesh.
// Offsets shift local labels into a globally unique range.
type Partition struct {
	Locator    Locator
	CellOffset int
	FaceOffset int
}

// Partitioned searches a set of partitions in order.
// A point is only not found when every partition misses it.
type Partitioned struct {
	Parts []Partition
}

// NewPartitioned builds a partitioned locator from box meshes, assigning
// consecutive cell and face label ranges in the given order.
func NewPartitioned(parts ...*BoxMesh) *Partitioned {
	p := &Partitioned{Parts: make([]Partition, 0, len(parts))}
	cellOffset, faceOffset := 0, 0
	for _, m := range parts {
		p.Parts = append(p.Parts, Partition{
			Locator:    m,
			CellOffset: cellOffset,
			FaceOffset: faceOffset,
		})
		cellOffset += m.NumCells()
		faceOffset += m.NumFaces()
	}
	return p
}

// Locate returns the address from the first partition containing p.
func (p *Partitioned) Locate(pt r3.Vec) (Address, bool) {
	for _, part := range p.Parts {
		addr, ok := part.Locator.Locate(pt)
		if !ok {
			continue
		}
		addr.Cell += part.CellOffset
		addr.TetFace += part.FaceOffset
		return addr, true
	}
	return NotFound, false
}
