package isect

import (
	"github.com/soypat/geometry/ms3"
)

// Field is a scalar function of object space position whose zero level set
// defines a surface. The value need not be a calibrated distance, it is only
// required to change sign across the surface.
type Field interface {
	Value(p ms3.Vec) float32
}

// FieldFunc adapts an ordinary function to the [Field] interface.
type FieldFunc func(p ms3.Vec) float32

// Value implements [Field].
func (f FieldFunc) Value(p ms3.Vec) float32 { return f(p) }

// Marching parameters. The march runs at most marchCoarseIter+marchFineIter
// field evaluations per ray regardless of input.
const (
	marchCoarseStep = 0.1
	marchFineStep   = 0.02
	marchCoarseIter = 700
	marchFineIter   = 10
	marchThreshold  = 0.001
	// normalEpsilon is the central difference half step for gradient normals.
	normalEpsilon = 1e-3
)

type marchState uint8

const (
	marchCoarse marchState = iota
	marchFine
	marchHit
	marchMiss
)

// March locates the first crossing of f's zero level set along origin+t*dir
// with a coarse search of 0.1 steps followed by a refinement of 0.02 steps.
// The returned t lies up to one fine step before the crossing.
//
// The field is oriented by its sign at origin: outside reports whether
// f(origin) >= 0, and the march detects where the oriented field drops below
// the threshold, so rays starting on either side find the next crossing.
// A miss returns t=0 and ok=false.
func March(f Field, origin, dir ms3.Vec) (t float32, outside, ok bool) {
	outside = f.Value(origin) >= 0
	sign := float32(1)
	if !outside {
		sign = -1
	}
	state := marchCoarse
	iter := 0
	for {
		switch state {
		case marchCoarse:
			if iter == marchCoarseIter {
				state = marchMiss
				break
			}
			iter++
			if sign*f.Value(ms3.Add(origin, ms3.Scale(t, dir))) < marchThreshold {
				// Step back once and increment slowly.
				t -= marchCoarseStep
				iter = 0
				state = marchFine
			} else {
				t += marchCoarseStep
			}

		case marchFine:
			if iter == marchFineIter {
				state = marchMiss
				break
			}
			iter++
			if sign*f.Value(ms3.Add(origin, ms3.Scale(t, dir))) < marchThreshold {
				t -= marchFineStep
				state = marchHit
			} else {
				t += marchFineStep
			}

		case marchHit:
			return t, outside, true

		default:
			return 0, outside, false
		}
	}
}

// GradientNormal estimates the unit normal of f's level set through p with
// central differences. The result is degenerate where the gradient vanishes.
func GradientNormal(f Field, p ms3.Vec) ms3.Vec {
	const h = normalEpsilon
	return ms3.Unit(ms3.Vec{
		X: f.Value(ms3.Vec{X: p.X + h, Y: p.Y, Z: p.Z}) - f.Value(ms3.Vec{X: p.X - h, Y: p.Y, Z: p.Z}),
		Y: f.Value(ms3.Vec{X: p.X, Y: p.Y + h, Z: p.Z}) - f.Value(ms3.Vec{X: p.X, Y: p.Y - h, Z: p.Z}),
		Z: f.Value(ms3.Vec{X: p.X, Y: p.Y, Z: p.Z + h}) - f.Value(ms3.Vec{X: p.X, Y: p.Y, Z: p.Z - h}),
	})
}

// ImplicitSurface is the zero level set of Field placed by Geom.
type ImplicitSurface struct {
	Geom  Geom
	Field Field
}

// NewImplicitSurface returns the surface f=0 placed by g.
func NewImplicitSurface(g Geom, f Field) *ImplicitSurface {
	return &ImplicitSurface{Geom: g, Field: f}
}

// Intersect implements [Intersectable] by marching the field in object space.
//
// The object space direction is not renormalized, so under scaling transforms
// the marching steps are measured in units of the transformed direction.
// Hits at or behind the ray origin are reported as misses.
func (s *ImplicitSurface) Intersect(r Ray) (Hit, bool) {
	q := s.Geom.objectRay(r, false)
	t, outside, ok := March(s.Field, q.Origin, q.Direction)
	return s.hitAt(r, q, t, outside, ok)
}

// hitAt builds the world space hit of world ray r from the march outcome along
// its object space counterpart q.
func (s *ImplicitSurface) hitAt(r, q Ray, t float32, outside, ok bool) (Hit, bool) {
	if !ok || t <= 0 {
		return Hit{}, false
	}
	objPoint := ms3.Add(q.Origin, ms3.Scale(t, q.Direction))
	point := s.Geom.Transform.MulPosition(objPoint)
	normal := ms3.Unit(MulDirection(s.Geom.InvTranspose, GradientNormal(s.Field, objPoint)))
	if !outside {
		normal = negate(normal)
	}
	return Hit{
		T:       distance(r.Origin, point),
		Param:   t,
		Point:   point,
		Normal:  normal,
		Outside: outside,
	}, true
}
