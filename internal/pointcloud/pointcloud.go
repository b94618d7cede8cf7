// Package pointcloud implements VRROP's reconstruction core: a sparse
// spatial grid of colored points, merged incrementally from successive
// RGB-D frames with stale-point eviction.
package pointcloud

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/vrrop/vrrop/internal/projector"
	"github.com/vrrop/vrrop/internal/wire"
)

// ModifiedSet is the set of grid cells touched by one merge. A cell
// named here that is still present in the grid means "rebuild"; a cell
// named here but absent from the grid (SpatialGridMap deletes a cell once
// it has no points) means "drop the mesh for it".
type ModifiedSet map[wire.GridIndex]struct{}

func (m ModifiedSet) add(idx wire.GridIndex) { m[idx] = struct{}{} }

// PointCloud is a sparse, incrementally-merged RGB-D reconstruction. It
// is not safe for concurrent use; callers must confine it to one task.
type PointCloud struct {
	gridSize float32
	grid     *SpatialGridMap
}

// New constructs an empty PointCloud with a fixed cell size in meters.
func New(gridSize float32) *PointCloud {
	return &PointCloud{gridSize: gridSize, grid: newSpatialGridMap()}
}

// PointsInGrid exposes read-only access to one cell's points.
func (pc *PointCloud) PointsInGrid(idx wire.GridIndex) []wire.Point {
	return pc.grid.PointsInGrid(idx)
}

// GridCorners returns the 8 world-space corners of cell idx.
func (pc *PointCloud) GridCorners(idx wire.GridIndex) [8]r3.Vec {
	return GridCorners(idx, pc.gridSize)
}

// MergeImages folds one correlated RGB-D frame into the cloud: it evicts
// points contradicted by the new depth observation, inserts newly
// observed points, and returns the set of grid cells touched. Merge is
// pure over its inputs and deterministic; it never fails. Malformed
// intrinsics or non-finite odometry must be filtered by the caller
// before this is invoked (they would simply produce non-finite, filtered
// projections here if not).
func (pc *PointCloud) MergeImages(msg wire.ImagesMessage, maxDepth, staleRemovalThreshold float32) ModifiedSet {
	extrinsics := projector.Extrinsics{
		Translation: msg.Odometry.Translation,
		Rotation:    msg.Odometry.Rotation,
	}
	colorProj := projector.New(msg.Color.Intrinsics, extrinsics)
	depthProj := projector.New(msg.Depth.Intrinsics, extrinsics)

	modified := make(ModifiedSet)

	pc.removeStalePoints(colorProj, depthProj, msg, maxDepth, staleRemovalThreshold, modified)
	pc.insertNewPoints(colorProj, depthProj, msg, maxDepth, modified)

	return modified
}

// removeStalePoints implements merge steps 1-3: find cells the new
// frustum could contradict, and evict any stored point whose new depth
// reading says nothing occupies its former position.
func (pc *PointCloud) removeStalePoints(
	colorProj, depthProj *projector.Projector,
	msg wire.ImagesMessage,
	maxDepth, staleRemovalThreshold float32,
	modified ModifiedSet,
) {
	min, max := colorProj.AABB(maxDepth)
	for _, idx := range candidateKeys(min, max, pc.gridSize) {
		if !cellIsCandidate(idx, pc.gridSize, colorProj, maxDepth) {
			continue
		}

		cell := pc.grid.cells[idx]
		for i := 0; i < len(cell); {
			p := cell[i]
			_, _, colorOK := colorProj.PointToPixel(p.Position)
			depthU, depthV, depthOK := depthProj.PointToPixel(p.Position)
			if !colorOK || !depthOK {
				i++
				continue
			}

			rawDepth := msg.Depth.Pixels[int(depthV)*int(msg.Depth.Intrinsics.Width)+int(depthU)]
			dNew := float32(rawDepth) * msg.DepthUnit
			dOld := depthProj.PointDepth(p.Position)

			if dNew > dOld-staleRemovalThreshold {
				pc.grid.removeAt(idx, i)
				modified.add(idx)
				cell = pc.grid.cells[idx] // swap-removal may have shrunk/deleted the cell
				continue                  // re-examine index i: a new point swapped in
			}
			i++
		}
	}
}

// cellIsCandidate reports whether any of idx's 8 corners projects into
// the color image within maxDepth — the condition that makes a cell
// worth checking for stale points at all.
func cellIsCandidate(idx wire.GridIndex, gridSize float32, colorProj *projector.Projector, maxDepth float32) bool {
	for _, corner := range GridCorners(idx, gridSize) {
		if _, _, ok := colorProj.PointToPixel(corner); ok {
			if colorProj.PointDepth(corner) < maxDepth {
				return true
			}
		}
	}
	return false
}

// insertNewPoints implements merge step 4: back-project every in-range
// depth pixel to a world point, look up its color, and insert it.
func (pc *PointCloud) insertNewPoints(
	colorProj, depthProj *projector.Projector,
	msg wire.ImagesMessage,
	maxDepth float32,
	modified ModifiedSet,
) {
	width := int(msg.Depth.Intrinsics.Width)
	height := int(msg.Depth.Intrinsics.Height)
	colorWidth := int(msg.Color.Intrinsics.Width)

	for v := 0; v < height; v++ {
		for u := 0; u < width; u++ {
			raw := msg.Depth.Pixels[v*width+u]
			depth := float32(raw) * msg.DepthUnit
			if depth == 0 || depth > maxDepth {
				continue
			}

			world := depthProj.PixelToPoint(float64(u), float64(v), depth)
			colorU, colorV, ok := colorProj.PointToPixel(world)
			if !ok {
				continue
			}

			colorOff := (int(colorV)*colorWidth + int(colorU)) * 3
			if colorOff+3 > len(msg.Color.Pixels) {
				continue
			}
			point := wire.Point{
				Position: world,
				Color: [3]uint8{
					msg.Color.Pixels[colorOff],
					msg.Color.Pixels[colorOff+1],
					msg.Color.Pixels[colorOff+2],
				},
				Size: depthProj.PointSize(depth),
			}

			idx := pc.grid.insert(point, pc.gridSize)
			modified.add(idx)
		}
	}
}
