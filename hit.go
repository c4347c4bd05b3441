package isect

import "github.com/soypat/geometry/ms3"

// Intersectable is implemented by every primitive kind so that callers can
// traverse a heterogeneous primitive list uniformly. Intersect returns the
// best hit of the ray against the primitive and false if the ray misses.
type Intersectable interface {
	Intersect(r Ray) (Hit, bool)
}

var (
	_ Intersectable = (*Box)(nil)
	_ Intersectable = (*Sphere)(nil)
	_ Intersectable = (*ImplicitSurface)(nil)
)

// Hit is the result of a successful intersection. All vectors are in world space.
type Hit struct {
	// T is the Euclidean distance from the ray origin to Point. It is
	// comparable across primitive kinds and transforms.
	T float32
	// Param is the parameter the primitive solved for in its object space.
	// For box and sphere it is the object space ray parameter, for implicit
	// surfaces it is the raw marching parameter. It is not comparable across
	// primitives with different transforms.
	Param float32
	// Point is the hit point.
	Point ms3.Vec
	// Normal is of unit length and faces the side the ray came from.
	Normal ms3.Vec
	// Outside is true when the ray entered the surface from outside and
	// false when the ray origin was inside the primitive.
	Outside bool
}

// LegacyT returns the value the free-function intersection tests used to
// return for a primitive of the given family: Param-like distance on a hit and
// the family's sentinel on a miss. Analytic primitives returned world distance
// and [MissAnalytic]; implicit surfaces returned the marching parameter and [MissImplicit].
func LegacyT(h Hit, ok, implicit bool) float32 {
	switch {
	case implicit && !ok:
		return MissImplicit
	case implicit:
		return h.Param
	case !ok:
		return MissAnalytic
	}
	return h.T
}
