// Package projector implements the pinhole camera math shared by
// PointCloud's merge algorithm: pixel-to-world and world-to-pixel
// projection, and the axis-aligned bound of a viewing frustum.
//
// Coordinate convention: the camera frame has +X forward (the depth
// axis), +Y left, +Z up. Pixels have x right, y down.
package projector

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/vrrop/vrrop/internal/wire"
)

// Extrinsics is the rigid-body transform from camera frame to world
// frame, derived from an Odometry sample.
type Extrinsics struct {
	Translation r3.Vec
	Rotation    quat.Number // unit quaternion, camera-to-world
}

// Projector binds a fixed set of intrinsics to a fixed pose.
type Projector struct {
	intrinsics wire.CameraIntrinsics
	extrinsics Extrinsics
	invRot     quat.Number // conjugate of extrinsics.Rotation, cached
}

// New builds a Projector for one frame's intrinsics and extrinsics.
func New(intrinsics wire.CameraIntrinsics, extrinsics Extrinsics) *Projector {
	return &Projector{
		intrinsics: intrinsics,
		extrinsics: extrinsics,
		invRot:     quat.Conj(extrinsics.Rotation),
	}
}

func rotate(q quat.Number, v r3.Vec) r3.Vec {
	asQuat := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	rotated := quat.Mul(quat.Mul(q, asQuat), quat.Conj(q))
	return r3.Vec{X: rotated.Imag, Y: rotated.Jmag, Z: rotated.Kmag}
}

// worldToCamera transforms a world point into this Projector's camera
// frame, applying the inverse extrinsics.
func (p *Projector) worldToCamera(world r3.Vec) r3.Vec {
	relative := r3.Sub(world, p.extrinsics.Translation)
	return rotate(p.invRot, relative)
}

// cameraToWorld is worldToCamera's inverse.
func (p *Projector) cameraToWorld(camera r3.Vec) r3.Vec {
	rotated := rotate(p.extrinsics.Rotation, camera)
	return r3.Add(rotated, p.extrinsics.Translation)
}

// PointToPixel projects a world point into this Projector's image plane.
// It reports ok=false if the point is behind the camera (camera-frame X
// <= 0) or falls outside the image bounds.
func (p *Projector) PointToPixel(world r3.Vec) (u, v int64, ok bool) {
	camera := p.worldToCamera(world)
	if camera.X <= 0 {
		return 0, 0, false
	}
	uf := float64(p.intrinsics.Fx)*(-camera.Y/camera.X) + float64(p.intrinsics.Cx)
	vf := float64(p.intrinsics.Fy)*(-camera.Z/camera.X) + float64(p.intrinsics.Cy)
	u = int64(uf)
	v = int64(vf)
	if u < 0 || u >= int64(p.intrinsics.Width) || v < 0 || v >= int64(p.intrinsics.Height) {
		return 0, 0, false
	}
	return u, v, true
}

// PointDepth returns the camera-frame X component of world after the
// inverse extrinsics transform.
func (p *Projector) PointDepth(world r3.Vec) float32 {
	return float32(p.worldToCamera(world).X)
}

// PixelToPoint back-projects a pixel at the given depth into a world
// point, the inverse of PointToPixel.
func (p *Projector) PixelToPoint(u, v float64, depth float32) r3.Vec {
	y := -(u - float64(p.intrinsics.Cx)) / float64(p.intrinsics.Fx)
	z := -(v - float64(p.intrinsics.Cy)) / float64(p.intrinsics.Fy)
	camera := r3.Scale(float64(depth), r3.Vec{X: 1, Y: y, Z: z})
	return p.cameraToWorld(camera)
}

// PointSize is the world-space footprint of one pixel at depth.
func (p *Projector) PointSize(depth float32) float32 {
	return depth / p.intrinsics.Fx
}

// AABB returns the world-space axis-aligned bounding box of the frustum
// between the camera origin and the four far-plane corners at maxDepth.
func (p *Projector) AABB(maxDepth float32) (min, max r3.Vec) {
	corners := [5]r3.Vec{
		p.extrinsics.Translation,
		p.PixelToPoint(0, 0, maxDepth),
		p.PixelToPoint(float64(p.intrinsics.Width), 0, maxDepth),
		p.PixelToPoint(0, float64(p.intrinsics.Height), maxDepth),
		p.PixelToPoint(float64(p.intrinsics.Width), float64(p.intrinsics.Height), maxDepth),
	}

	min, max = corners[0], corners[0]
	for _, c := range corners[1:] {
		min = r3.Vec{X: math.Min(min.X, c.X), Y: math.Min(min.Y, c.Y), Z: math.Min(min.Z, c.Z)}
		max = r3.Vec{X: math.Max(max.X, c.X), Y: math.Max(max.Y, c.Y), Z: math.Max(max.Z, c.Z)}
	}
	return min, max
}
