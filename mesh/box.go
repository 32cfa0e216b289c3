package mesh

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// containsEps is the relative signed-volume tolerance for points on tet faces.
const containsEps = 1e-10

// Hex corner offsets in units of cell size.
var hexCorners = [8]r3.Vec{
	{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 0},
	{X: 0, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: 0, Y: 1, Z: 1},
}

// Hex faces as corner indices, ordered -x, +x, -y, +y, -z, +z.
// Points are wound so that normals face out of the cell.
var hexFaces = [6][4]int{
	{0, 4, 7, 3},
	{1, 2, 6, 5},
	{0, 1, 5, 4},
	{3, 7, 6, 2},
	{0, 3, 2, 1},
	{4, 5, 6, 7},
}

// FacesPerCell is the number of face labels each hex cell owns.
const FacesPerCell = 6

// BoxMesh is a structured mesh of identical axis-aligned hexahedra.
//
// Each cell owns six face labels cell*6+localFace. A face is split into
// triangles on its first point, and each triangle together with the cell
// centre forms a tetrahedron; TetPoint is 1 or 2 for the two triangles.
type BoxMesh struct {
	bounds     r3.Box
	nx, ny, nz int
	size       r3.Vec
}

// NewBoxMesh creates a mesh spanning bounds with n cells per axis.
func NewBoxMesh(bounds r3.Box, nx, ny, nz int) (*BoxMesh, error) {
	if nx < 1 || ny < 1 || nz < 1 {
		return nil, fmt.Errorf("mesh: cell counts must be positive, got %dx%dx%d", nx, ny, nz)
	}
	ext := r3.Sub(bounds.Max, bounds.Min)
	if ext.X <= 0 || ext.Y <= 0 || ext.Z <= 0 {
		return nil, fmt.Errorf("mesh: bounds must have positive extent, got min %v max %v",
			bounds.Min, bounds.Max)
	}
	return &BoxMesh{
		bounds: bounds,
		nx:     nx,
		ny:     ny,
		nz:     nz,
		size:   r3.Vec{X: ext.X / float64(nx), Y: ext.Y / float64(ny), Z: ext.Z / float64(nz)},
	}, nil
}

// Bounds returns the mesh bounding box.
func (m *BoxMesh) Bounds() r3.Box { return m.bounds }

// NumCells returns the number of cells.
func (m *BoxMesh) NumCells() int { return m.nx * m.ny * m.nz }

// NumFaces returns the number of cell-owned face labels.
func (m *BoxMesh) NumFaces() int { return m.NumCells() * FacesPerCell }

// CellCentre returns the centre of cell c.
func (m *BoxMesh) CellCentre(c int) r3.Vec {
	i, j, k := m.ijk(c)
	return r3.Add(m.corner(i, j, k), r3.Scale(0.5, m.size))
}

// Locate finds the cell and tetrahedron containing p.
// The box is half-open: points on the max faces are outside.
func (m *BoxMesh) Locate(p r3.Vec) (Address, bool) {
	rel := r3.Sub(p, m.bounds.Min)
	fi := rel.X / m.size.X
	fj := rel.Y / m.size.Y
	fk := rel.Z / m.size.Z
	if math.IsNaN(fi) || math.IsNaN(fj) || math.IsNaN(fk) {
		return NotFound, false
	}
	i, j, k := int(math.Floor(fi)), int(math.Floor(fj)), int(math.Floor(fk))
	if i < 0 || i >= m.nx || j < 0 || j >= m.ny || k < 0 || k >= m.nz {
		return NotFound, false
	}

	cell := i + m.nx*(j+m.ny*k)
	face, tetPt := m.findTet(m.corner(i, j, k), p)
	return Address{
		Cell:     cell,
		TetFace:  cell*FacesPerCell + face,
		TetPoint: tetPt,
	}, true
}

// findTet returns the local face and triangle whose tet contains p.
// p is known to lie inside the hex with minimum corner origin.
func (m *BoxMesh) findTet(origin, p r3.Vec) (face, tetPt int) {
	var pts [8]r3.Vec
	for n, c := range hexCorners {
		pts[n] = r3.Add(origin, r3.Vec{X: c.X * m.size.X, Y: c.Y * m.size.Y, Z: c.Z * m.size.Z})
	}
	centre := r3.Add(origin, r3.Scale(0.5, m.size))

	bestFace, bestPt := 0, 1
	bestScore := math.Inf(-1)
	for f, fp := range hexFaces {
		for tri := 1; tri <= 2; tri++ {
			a, b, c := pts[fp[0]], pts[fp[tri]], pts[fp[tri+1]]
			score := tetScore(centre, a, b, c, p)
			if score >= -containsEps {
				return f, tri
			}
			// Rounding can leave a point marginally outside all tets.
			if score > bestScore {
				bestFace, bestPt, bestScore = f, tri, score
			}
		}
	}
	return bestFace, bestPt
}

// tetScore returns the smallest sub-volume of p against tet (a,b,c,d),
// relative to the tet volume. Non-negative scores mean p is inside,
// independent of the tet's winding.
func tetScore(a, b, c, d, p r3.Vec) float64 {
	vol := signedVolume(a, b, c, d)
	if vol == 0 {
		return math.Inf(-1)
	}
	return math.Min(
		math.Min(signedVolume(p, b, c, d)/vol, signedVolume(a, p, c, d)/vol),
		math.Min(signedVolume(a, b, p, d)/vol, signedVolume(a, b, c, p)/vol),
	)
}

func signedVolume(a, b, c, d r3.Vec) float64 {
	return r3.Dot(r3.Sub(b, a), r3.Cross(r3.Sub(c, a), r3.Sub(d, a))) / 6
}

func (m *BoxMesh) ijk(c int) (i, j, k int) {
	i = c % m.nx
	j = (c / m.nx) % m.ny
	k = c / (m.nx * m.ny)
	return i, j, k
}

func (m *BoxMesh) corner(i, j, k int) r3.Vec {
	return r3.Vec{
		X: m.bounds.Min.X + float64(i)*m.size.X,
		Y: m.bounds.Min.Y + float64(j)*m.size.Y,
		Z: m.bounds.Min.Z + float64(k)*m.size.Z,
	}
}

// Decompose splits the mesh into n slabs along x, each owning a contiguous
// range of x cells. nx must be divisible by n.
func (m *BoxMesh) Decompose(n int) (*Partitioned, error) {
	if n < 1 || m.nx%n != 0 {
		return nil, fmt.Errorf("mesh: cannot split %d x-cells into %d partitions", m.nx, n)
	}
	per := m.nx / n
	parts := make([]*BoxMesh, 0, n)
	for p := 0; p < n; p++ {
		lo := m.bounds.Min
		lo.X += float64(p*per) * m.size.X
		hi := m.bounds.Max
		if p < n-1 {
			hi.X = m.bounds.Min.X + float64((p+1)*per)*m.size.X
		}
		sub, err := NewBoxMesh(r3.Box{Min: lo, Max: hi}, per, m.ny, m.nz)
		if err != nil {
			return nil, err
		}
		parts = append(parts, sub)
	}
	return NewPartitioned(parts...), nil
}
