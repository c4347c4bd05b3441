// Package isect implements ray intersection tests against transformed
// primitives for an offline path tracer. Primitives live in their own object
// space and are placed in the world by a [Geom]. Supported primitives are the
// unit [Box], the [Sphere] of radius 0.5 and [ImplicitSurface]s defined by the
// zero level set of an algebraic [Field].
//
// All intersection routines are pure: they hold no state, do not allocate and
// run a statically bounded number of iterations, so they are safe to call
// concurrently over large ray batches sharing the same primitives.
package isect

import (
	"errors"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

const (
	// rayBias is subtracted from ray parameters before materializing a hit point
	// so the point lies slightly in front of the surface it was found on.
	rayBias = 1e-4
	// epstol is used to check for badly conditioned transformation matrix determinants.
	epstol = 6e-7
)

// Historical "no hit" values. Intersect reports misses with a false boolean;
// these are kept for callers that still store sentinels in a t buffer.
const (
	// MissAnalytic is the miss value box and sphere tests used to return.
	MissAnalytic = -1
	// MissImplicit is the miss value implicit surface tests used to return.
	// It is ambiguous with a hit at zero distance.
	MissImplicit = 0
)

// ErrSingularTransform is returned by [NewGeom] when the transform cannot be inverted.
var ErrSingularTransform = errors.New("singular transform")

// Ray is a half line in world space. Direction is expected to be of unit length.
type Ray struct {
	Origin    ms3.Vec
	Direction ms3.Vec
}

// PointAt returns the point at parameter t along the normalized ray direction,
// pulled back by a small fixed bias so the point does not sit behind the surface.
func (r Ray) PointAt(t float32) ms3.Vec {
	return ms3.Add(r.Origin, ms3.Scale(t-rayBias, ms3.Unit(r.Direction)))
}

// Geom places a primitive in the world. It is immutable once created and may
// be shared by any number of concurrent intersection calls.
type Geom struct {
	// Transform maps object space to world space.
	Transform ms3.Mat4
	// Inverse maps world space to object space.
	Inverse ms3.Mat4
	// InvTranspose is the transpose of Inverse. Only its linear part is
	// meaningful: applied with [MulDirection] it maps object space normals to
	// world space normals.
	InvTranspose ms3.Mat4
}

// NewGeom precomputes the inverse and inverse-transpose of an affine transform.
func NewGeom(transform ms3.Mat4) (Geom, error) {
	det := transform.Determinant()
	if math32.Abs(det) < epstol || math32.IsNaN(det) {
		return Geom{}, ErrSingularTransform
	}
	inv := transform.Inverse()
	return Geom{
		Transform:    transform,
		Inverse:      inv,
		InvTranspose: inv.Transpose(),
	}, nil
}

// MulDirection applies m to the homogeneous direction (d, 0), which discards
// the translation part of m. Points are transformed with [ms3.Mat4.MulPosition].
func MulDirection(m ms3.Mat4, d ms3.Vec) ms3.Vec {
	a := m.Array()
	return ms3.Vec{
		X: a[0]*d.X + a[1]*d.Y + a[2]*d.Z,
		Y: a[4]*d.X + a[5]*d.Y + a[6]*d.Z,
		Z: a[8]*d.X + a[9]*d.Y + a[10]*d.Z,
	}
}

// objectRay maps a world ray into g's object space. normalize controls whether
// the object space direction is rescaled to unit length.
func (g *Geom) objectRay(r Ray, normalize bool) Ray {
	dir := MulDirection(g.Inverse, r.Direction)
	if normalize {
		dir = ms3.Unit(dir)
	}
	return Ray{
		Origin:    g.Inverse.MulPosition(r.Origin),
		Direction: dir,
	}
}

func distance(a, b ms3.Vec) float32 {
	return ms3.Norm(ms3.Sub(a, b))
}

func negate(v ms3.Vec) ms3.Vec {
	return ms3.Scale(-1, v)
}
