package isect

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

const (
	boxHalfSide  = 0.5
	sphereRadius = 0.5
	// largenum bounds the slab interval before any axis tightens it.
	largenum = 1e38
)

// Box is an axis aligned cube spanning [-0.5, 0.5] on each object space axis.
type Box struct {
	Geom Geom
}

// NewBox returns a unit box placed by g.
func NewBox(g Geom) *Box {
	return &Box{Geom: g}
}

// Intersect implements [Intersectable] with a slab test in object space.
func (b *Box) Intersect(r Ray) (Hit, bool) {
	q := b.Geom.objectRay(r, true)
	o := q.Origin.Array()
	d := q.Direction.Array()

	var tminN, tmaxN [3]float32
	tmin := float32(-largenum)
	tmax := float32(largenum)
	for axis := 0; axis < 3; axis++ {
		t1 := (-boxHalfSide - o[axis]) / d[axis]
		t2 := (boxHalfSide - o[axis]) / d[axis]
		ta, tb := t1, t2
		if t2 < t1 {
			ta, tb = t2, t1
		}
		var n [3]float32
		if t2 < t1 {
			n[axis] = 1
		} else {
			n[axis] = -1
		}
		if ta > 0 && ta > tmin {
			tmin = ta
			tminN = n
		}
		if tb < tmax {
			tmax = tb
			tmaxN = n
		}
	}
	// Written so that NaN slab parameters are reported as a miss.
	if !(tmax >= tmin && tmax > 0) {
		return Hit{}, false
	}
	outside := true
	t, n := tmin, tminN
	if tmin <= 0 {
		// Ray origin is inside the box.
		t, n = tmax, tmaxN
		outside = false
	}
	point := b.Geom.Transform.MulPosition(q.PointAt(t))
	normal := ms3.Unit(MulDirection(b.Geom.Transform, ms3.Vec{X: n[0], Y: n[1], Z: n[2]}))
	return Hit{
		T:       distance(r.Origin, point),
		Param:   t,
		Point:   point,
		Normal:  normal,
		Outside: outside,
	}, true
}

// Sphere is a sphere of radius 0.5 centered at the object space origin.
type Sphere struct {
	Geom Geom
}

// NewSphere returns a sphere placed by g.
func NewSphere(g Geom) *Sphere {
	return &Sphere{Geom: g}
}

// Intersect implements [Intersectable] by solving the ray-sphere quadratic in object space.
func (s *Sphere) Intersect(r Ray) (Hit, bool) {
	q := s.Geom.objectRay(r, true)
	b := ms3.Dot(q.Origin, q.Direction)
	radicand := b*b - (ms3.Dot(q.Origin, q.Origin) - sphereRadius*sphereRadius)
	if radicand < 0 {
		return Hit{}, false
	}
	sqrt := math32.Sqrt(radicand)
	t1 := -b + sqrt
	t2 := -b - sqrt

	var t float32
	outside := false
	switch {
	case t1 < 0 && t2 < 0:
		return Hit{}, false
	case t1 > 0 && t2 > 0:
		t = min(t1, t2)
		outside = true
	default:
		// Roots straddle zero, ray origin is inside the sphere.
		t = max(t1, t2)
	}

	objPoint := q.PointAt(t)
	point := s.Geom.Transform.MulPosition(objPoint)
	normal := ms3.Unit(MulDirection(s.Geom.InvTranspose, objPoint))
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
