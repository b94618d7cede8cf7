package pointcloud

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/vrrop/vrrop/internal/wire"
)

// GridIndexOf computes the cell coordinate containing p: floor(p / gridSize)
// component-wise.
func GridIndexOf(p r3.Vec, gridSize float32) wire.GridIndex {
	g := float64(gridSize)
	return wire.GridIndex{
		X: int32(math.Floor(p.X / g)),
		Y: int32(math.Floor(p.Y / g)),
		Z: int32(math.Floor(p.Z / g)),
	}
}

// SpatialGridMap maps a grid cell to the colored points observed inside
// it. It is owned exclusively by the PointCloud that mutates it: every
// stored point's containing cell equals its map key, and a key is never
// present with zero points.
type SpatialGridMap struct {
	cells map[wire.GridIndex][]wire.Point
}

func newSpatialGridMap() *SpatialGridMap {
	return &SpatialGridMap{cells: make(map[wire.GridIndex][]wire.Point)}
}

// PointsInGrid returns the points stored at idx, for read-only renderer
// access. The returned slice must not be mutated by the caller.
func (g *SpatialGridMap) PointsInGrid(idx wire.GridIndex) []wire.Point {
	return g.cells[idx]
}

// GridCorners returns the 8 world-space corners of cell idx, for debug
// visualization of occupied cells.
func GridCorners(idx wire.GridIndex, gridSize float32) [8]r3.Vec {
	g := float64(gridSize)
	x0, y0, z0 := float64(idx.X)*g, float64(idx.Y)*g, float64(idx.Z)*g
	x1, y1, z1 := x0+g, y0+g, z0+g
	return [8]r3.Vec{
		{X: x0, Y: y0, Z: z0}, {X: x1, Y: y0, Z: z0},
		{X: x0, Y: y1, Z: z0}, {X: x1, Y: y1, Z: z0},
		{X: x0, Y: y0, Z: z1}, {X: x1, Y: y0, Z: z1},
		{X: x0, Y: y1, Z: z1}, {X: x1, Y: y1, Z: z1},
	}
}

// insert adds p into its grid_index(p.Position) cell.
func (g *SpatialGridMap) insert(p wire.Point, gridSize float32) wire.GridIndex {
	idx := GridIndexOf(p.Position, gridSize)
	g.cells[idx] = append(g.cells[idx], p)
	return idx
}

// removeAt removes the point at position i in cell idx via swap-removal,
// deleting the cell key entirely if it becomes empty.
func (g *SpatialGridMap) removeAt(idx wire.GridIndex, i int) {
	cell := g.cells[idx]
	last := len(cell) - 1
	cell[i] = cell[last]
	cell = cell[:last]
	if len(cell) == 0 {
		delete(g.cells, idx)
		return
	}
	g.cells[idx] = cell
}

// candidateKeys returns every grid cell key whose cell overlaps the given
// world-space AABB.
func candidateKeys(min, max r3.Vec, gridSize float32) []wire.GridIndex {
	minIdx := GridIndexOf(min, gridSize)
	maxIdx := GridIndexOf(max, gridSize)

	var keys []wire.GridIndex
	for x := minIdx.X; x <= maxIdx.X; x++ {
		for y := minIdx.Y; y <= maxIdx.Y; y++ {
			for z := minIdx.Z; z <= maxIdx.Z; z++ {
				keys = append(keys, wire.GridIndex{X: x, Y: y, Z: z})
			}
		}
	}
	return keys
}
