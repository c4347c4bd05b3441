package isect_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/isect"
	"github.com/soypat/isect/isectaux"
)

// biasTol accounts for the ray parameter bias pulling analytic hit points in front of the surface.
const biasTol = 2e-4

func identityGeom(t *testing.T) isect.Geom {
	t.Helper()
	g, err := isect.NewGeom(ms3.ScalingMat4(ms3.Vec{X: 1, Y: 1, Z: 1}))
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func trsGeom(t *testing.T, translate, rotDeg, scale ms3.Vec) isect.Geom {
	t.Helper()
	g, err := isectaux.NewGeomTRS(translate, rotDeg, scale)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func vecNear(a, b ms3.Vec, tol float32) bool {
	d := ms3.Sub(a, b)
	return math32.Abs(d.X) <= tol && math32.Abs(d.Y) <= tol && math32.Abs(d.Z) <= tol
}

func TestBoxHit(t *testing.T) {
	box := isect.NewBox(identityGeom(t))
	hit, ok := box.Intersect(isect.Ray{Origin: ms3.Vec{Z: -2}, Direction: ms3.Vec{Z: 1}})
	if !ok {
		t.Fatal("expected hit")
	}
	if math32.Abs(hit.T-1.5) > biasTol {
		t.Errorf("want distance 1.5, got %v", hit.T)
	}
	if !vecNear(hit.Point, ms3.Vec{Z: -0.5}, biasTol) {
		t.Errorf("want point (0,0,-0.5), got %v", hit.Point)
	}
	if hit.Normal != (ms3.Vec{Z: -1}) {
		t.Errorf("want normal (0,0,-1), got %v", hit.Normal)
	}
	if !hit.Outside {
		t.Error("want outside hit")
	}
}

func TestBoxMissParallel(t *testing.T) {
	box := isect.NewBox(identityGeom(t))
	r := isect.Ray{Origin: ms3.Vec{Z: -2}, Direction: ms3.Vec{Y: 1}}
	hit, ok := box.Intersect(r)
	if ok {
		t.Fatalf("expected miss, got %+v", hit)
	}
	if got := isect.LegacyT(hit, ok, false); got != -1 {
		t.Errorf("want legacy miss -1, got %v", got)
	}
}

func TestBoxInside(t *testing.T) {
	box := isect.NewBox(identityGeom(t))
	for _, dir := range []ms3.Vec{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1}} {
		hit, ok := box.Intersect(isect.Ray{Direction: dir})
		if !ok {
			t.Fatal("expected hit from inside", dir)
		}
		if hit.Outside {
			t.Error("want inside hit", dir)
		}
		if math32.Abs(hit.T-0.5) > biasTol {
			t.Errorf("want distance 0.5 along %v, got %v", dir, hit.T)
		}
		if ms3.Dot(hit.Normal, dir) >= 0 {
			t.Errorf("normal %v does not face ray origin for direction %v", hit.Normal, dir)
		}
	}
}

func TestSphereInside(t *testing.T) {
	g := identityGeom(t)
	sphere := isect.NewSphere(g)
	hit, ok := sphere.Intersect(isect.Ray{Direction: ms3.Vec{X: 1}})
	if !ok {
		t.Fatal("expected hit")
	}
	if hit.Outside {
		t.Error("want inside hit")
	}
	objPoint := g.Inverse.MulPosition(hit.Point)
	if math32.Abs(ms3.Norm(objPoint)-0.5) > 1e-4 {
		t.Errorf("want object point magnitude 0.5, got %v", ms3.Norm(objPoint))
	}
	if !vecNear(hit.Normal, ms3.Vec{X: -1}, 1e-6) {
		t.Errorf("want inward facing normal, got %v", hit.Normal)
	}
}

func TestSphereOutside(t *testing.T) {
	sphere := isect.NewSphere(identityGeom(t))
	hit, ok := sphere.Intersect(isect.Ray{Origin: ms3.Vec{X: -3}, Direction: ms3.Vec{X: 1}})
	if !ok || !hit.Outside {
		t.Fatal("expected outside hit", ok)
	}
	if math32.Abs(hit.T-2.5) > biasTol {
		t.Errorf("want distance 2.5, got %v", hit.T)
	}
	if !vecNear(hit.Normal, ms3.Vec{X: -1}, 1e-6) {
		t.Errorf("want normal (-1,0,0), got %v", hit.Normal)
	}
	// Sphere entirely behind the ray.
	_, ok = sphere.Intersect(isect.Ray{Origin: ms3.Vec{X: 3}, Direction: ms3.Vec{X: 1}})
	if ok {
		t.Error("expected miss for sphere behind ray")
	}
	// Ray passing beside the sphere.
	_, ok = sphere.Intersect(isect.Ray{Origin: ms3.Vec{X: -3, Y: 0.6}, Direction: ms3.Vec{X: 1}})
	if ok {
		t.Error("expected miss for negative discriminant")
	}
}

func TestSphereNonUniformScaleNormal(t *testing.T) {
	// Ellipsoid with semi axes (1, 0.5, 0.25).
	scale := ms3.Vec{X: 2, Y: 1, Z: 0.5}
	g := trsGeom(t, ms3.Vec{}, ms3.Vec{}, scale)
	sphere := isect.NewSphere(g)
	semi := ms3.Scale(0.5, scale)
	rng := rand.New(rand.NewSource(1))
	hits := 0
	for i := 0; i < 200; i++ {
		origin := ms3.Scale(4, randomUnit(rng))
		target := ms3.MulElem(semi, ms3.Scale(0.8, randomUnit(rng)))
		dir := ms3.Unit(ms3.Sub(target, origin))
		hit, ok := sphere.Intersect(isect.Ray{Origin: origin, Direction: dir})
		if !ok {
			continue
		}
		hits++
		p := hit.Point
		want := ms3.Unit(ms3.Vec{X: p.X / (semi.X * semi.X), Y: p.Y / (semi.Y * semi.Y), Z: p.Z / (semi.Z * semi.Z)})
		if !vecNear(hit.Normal, want, 1e-3) {
			t.Errorf("ellipsoid normal at %v: got %v, want %v", p, hit.Normal, want)
		}
	}
	if hits < 150 {
		t.Errorf("expected most rays aimed inside ellipsoid to hit, got %d", hits)
	}
}

func TestTanglecubeMarch(t *testing.T) {
	// Along y=z=1.5 the field reduces to x⁴-5x²-0.575.
	rootX := math32.Sqrt((5 + math32.Sqrt(25+4*0.575)) / 2)
	origin := ms3.Vec{X: 4.991, Y: 1.5, Z: 1.5}
	dir := ms3.Vec{X: -1}
	tRoot := origin.X - rootX
	field := &isect.Tanglecube{}
	tm, outside, ok := isect.March(field, origin, dir)
	if !ok {
		t.Fatal("expected march to find crossing")
	} else if !outside {
		t.Error("origin is outside the tanglecube")
	}
	if diff := tRoot - tm; diff < 0 || diff >= 0.02 {
		t.Errorf("marched t=%v not within a fine step before root t=%v", tm, tRoot)
	}

	surf := isect.NewImplicitSurface(identityGeom(t), field)
	hit, ok := surf.Intersect(isect.Ray{Origin: origin, Direction: dir})
	if !ok {
		t.Fatal("expected surface hit")
	}
	if hit.Param != tm {
		t.Errorf("want param %v, got %v", tm, hit.Param)
	}
	if math32.Abs(hit.T-tm) > 1e-5 {
		t.Errorf("unit direction identity transform: distance %v should equal param %v", hit.T, tm)
	}
	if ms3.Dot(hit.Normal, dir) >= 0 {
		t.Errorf("normal %v does not face ray", hit.Normal)
	}
	if got := isect.LegacyT(hit, ok, true); got != tm {
		t.Errorf("legacy implicit value should be marching param, got %v", got)
	}
}

func TestTanglecubeInside(t *testing.T) {
	field := &isect.Tanglecube{}
	origin := ms3.Vec{X: 1.5, Y: 1.5, Z: 1.5}
	if field.Value(origin) >= 0 {
		t.Fatal("test origin must be inside a lobe")
	}
	dir := ms3.Vec{X: 1}
	rootX := math32.Sqrt((5 + math32.Sqrt(25+4*0.575)) / 2)
	tRoot := rootX - origin.X
	surf := isect.NewImplicitSurface(identityGeom(t), field)
	hit, ok := surf.Intersect(isect.Ray{Origin: origin, Direction: dir})
	if !ok {
		t.Fatal("expected hit from inside")
	}
	if hit.Outside {
		t.Error("want inside hit")
	}
	if diff := tRoot - hit.Param; diff < 0 || diff >= 0.02 {
		t.Errorf("marched t=%v not within a fine step before root t=%v", hit.Param, tRoot)
	}
	if ms3.Dot(hit.Normal, dir) >= 0 {
		t.Errorf("inside normal %v does not face ray origin", hit.Normal)
	}
}

func TestQuarticMarch(t *testing.T) {
	// Along the z axis the field is (z²-23.75)² - 0.5(z²-25)², largest root z²=41.4277/1.70711.
	sqrt2 := math32.Sqrt(2)
	rootZ := math32.Sqrt((23.75 + 25/sqrt2) / (1 + 1/sqrt2))
	origin := ms3.Vec{Z: 10}
	dir := ms3.Vec{Z: -1}
	tRoot := origin.Z - rootZ
	tm, outside, ok := isect.March(isect.DefaultQuartic(), origin, dir)
	if !ok || !outside {
		t.Fatal("expected outside hit", ok, outside)
	}
	if diff := tRoot - tm; diff < 0 || diff >= 0.02 {
		t.Errorf("marched t=%v not within a fine step before root t=%v", tm, tRoot)
	}
}

func TestMarchMiss(t *testing.T) {
	// Ray moving away from the tanglecube never crosses.
	tm, _, ok := isect.March(&isect.Tanglecube{}, ms3.Vec{X: 5}, ms3.Vec{X: 1})
	if ok || tm != 0 {
		t.Errorf("expected miss with zero t, got t=%v ok=%v", tm, ok)
	}
	surf := isect.NewImplicitSurface(identityGeom(t), &isect.Tanglecube{})
	hit, ok := surf.Intersect(isect.Ray{Origin: ms3.Vec{X: 5}, Direction: ms3.Vec{X: 1}})
	if ok {
		t.Fatal("expected miss")
	}
	if got := isect.LegacyT(hit, ok, true); got != 0 {
		t.Errorf("want legacy implicit miss 0, got %v", got)
	}
	// Field crossing beyond the march range of 70 units is not found.
	far := isect.FieldFunc(func(p ms3.Vec) float32 { return 100 - p.X })
	_, _, ok = isect.March(far, ms3.Vec{}, ms3.Vec{X: 1})
	if ok {
		t.Error("expected miss beyond bounded march range")
	}
}

func TestGradientNormal(t *testing.T) {
	sphereField := isect.FieldFunc(func(p ms3.Vec) float32 { return ms3.Norm(p) - 1 })
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		u := randomUnit(rng)
		n := isect.GradientNormal(sphereField, u)
		if !vecNear(n, u, 2e-3) {
			t.Errorf("gradient normal at %v: got %v", u, n)
		}
	}
}

func TestRoundTripAndUnitNormals(t *testing.T) {
	const (
		roundTol  = 1e-4
		normalTol = 1e-5
	)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		translate := ms3.Vec{X: rng.Float32()*4 - 2, Y: rng.Float32()*4 - 2, Z: rng.Float32()*4 - 2}
		rot := ms3.Vec{X: rng.Float32() * 360, Y: rng.Float32() * 360, Z: rng.Float32() * 360}
		scale := ms3.Vec{X: 0.5 + rng.Float32()*2, Y: 0.5 + rng.Float32()*2, Z: 0.5 + rng.Float32()*2}
		g := trsGeom(t, translate, rot, scale)
		implicitGeom := trsGeom(t, translate, rot, ms3.Scale(0.3, scale))
		objects := []isect.Intersectable{
			isect.NewBox(g),
			isect.NewSphere(g),
			isect.NewImplicitSurface(implicitGeom, &isect.Tanglecube{}),
			isect.NewImplicitSurface(trsGeom(t, translate, rot, ms3.Scale(0.15, scale)), isect.DefaultQuartic()),
		}
		for j, obj := range objects {
			hits := 0
			for k := 0; k < 40; k++ {
				origin := ms3.Add(translate, ms3.Scale(9, randomUnit(rng)))
				target := ms3.Add(translate, ms3.Scale(0.3, randomUnit(rng)))
				r := isect.Ray{Origin: origin, Direction: ms3.Unit(ms3.Sub(target, origin))}
				hit, ok := obj.Intersect(r)
				if !ok {
					continue
				}
				hits++
				geom := geomOf(obj)
				objPoint := geom.Inverse.MulPosition(hit.Point)
				back := geom.Transform.MulPosition(objPoint)
				if !vecNear(back, hit.Point, roundTol) {
					t.Errorf("object %d: round trip %v -> %v", j, hit.Point, back)
				}
				norm := ms3.Norm(hit.Normal)
				if math32.IsNaN(norm) || math32.Abs(norm-1) > normalTol {
					t.Errorf("object %d: normal %v has length %v", j, hit.Normal, norm)
				}
				if hit.T <= 0 {
					t.Errorf("object %d: non-positive distance %v", j, hit.T)
				}
				if !isWorldDistance(hit, r) {
					t.Errorf("object %d: T=%v is not distance from origin to %v", j, hit.T, hit.Point)
				}
			}
			if j < 2 && hits == 0 {
				t.Errorf("object %d: no hits from rays aimed at center", j)
			}
		}
	}
}

func TestIdempotent(t *testing.T) {
	g := trsGeom(t, ms3.Vec{X: 0.3, Y: -0.2, Z: 0.1}, ms3.Vec{X: 10, Y: 20, Z: 30}, ms3.Vec{X: 1.2, Y: 0.8, Z: 1})
	objects := []isect.Intersectable{
		isect.NewBox(g),
		isect.NewSphere(g),
		isect.NewImplicitSurface(g, &isect.Tanglecube{}),
		isect.NewImplicitSurface(g, isect.DefaultQuartic()),
	}
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 50; i++ {
		origin := ms3.Scale(6, randomUnit(rng))
		r := isect.Ray{Origin: origin, Direction: ms3.Unit(ms3.Scale(-1, origin))}
		for j, obj := range objects {
			h1, ok1 := obj.Intersect(r)
			h2, ok2 := obj.Intersect(r)
			if ok1 != ok2 || !bitIdentical(h1, h2) {
				t.Errorf("object %d: repeated intersection differs %+v vs %+v", j, h1, h2)
			}
		}
	}
}

func TestNewGeomSingular(t *testing.T) {
	_, err := isect.NewGeom(ms3.ScalingMat4(ms3.Vec{X: 1, Y: 0, Z: 1}))
	if !errors.Is(err, isect.ErrSingularTransform) {
		t.Errorf("want ErrSingularTransform, got %v", err)
	}
	g := trsGeom(t, ms3.Vec{X: 1}, ms3.Vec{Y: 30}, ms3.Vec{X: 2, Y: 3, Z: 4})
	// Inverse-transpose maps tangent-orthogonal normals: n·(M t) == 0 when (N n)·t == 0 for linear parts.
	tangent := ms3.Vec{X: 1, Y: -1}
	objNormal := ms3.Vec{X: 1, Y: 1}
	worldTangent := isect.MulDirection(g.Transform, tangent)
	worldNormal := isect.MulDirection(g.InvTranspose, objNormal)
	if d := ms3.Dot(worldTangent, worldNormal); math32.Abs(d) > 1e-5 {
		t.Errorf("inverse-transpose normal not orthogonal to transformed tangent: %v", d)
	}
}

func TestMulDirection(t *testing.T) {
	g := trsGeom(t, ms3.Vec{X: 3, Y: -2, Z: 1}, ms3.Vec{X: 15, Y: 40, Z: -70}, ms3.Vec{X: 1.5, Y: 0.7, Z: 2})
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		p := ms3.Scale(3, randomUnit(rng))
		d := randomUnit(rng)
		// A direction is the difference of two transformed points.
		want := ms3.Sub(g.Transform.MulPosition(ms3.Add(p, d)), g.Transform.MulPosition(p))
		got := isect.MulDirection(g.Transform, d)
		if !vecNear(got, want, 1e-5) {
			t.Errorf("direction %v: got %v, want %v", d, got, want)
		}
	}
	// The translation row of InvTranspose must not leak into normals.
	n := isect.MulDirection(g.InvTranspose, ms3.Vec{})
	if n != (ms3.Vec{}) {
		t.Errorf("zero normal mapped to %v", n)
	}
}

func TestBatchSurfaceMatchesIntersect(t *testing.T) {
	g := trsGeom(t, ms3.Vec{X: 0.5, Y: -0.3}, ms3.Vec{X: 25, Y: 10, Z: 5}, ms3.Vec{X: 0.5, Y: 0.6, Z: 0.4})
	for _, field := range []isect.Field{&isect.Tanglecube{}, isect.DefaultQuartic()} {
		surf := isect.NewImplicitSurface(g, field)
		bs, err := isect.NewBatchSurface(surf, isect.CPUMarcher{Field: field})
		if err != nil {
			t.Fatal(err)
		}
		rng := rand.New(rand.NewSource(4))
		rays := make([]isect.Ray, 200)
		for i := range rays {
			origin := ms3.Scale(5, randomUnit(rng))
			target := ms3.Scale(0.5, randomUnit(rng))
			rays[i] = isect.Ray{Origin: origin, Direction: ms3.Unit(ms3.Sub(target, origin))}
		}
		hits := make([]isect.Hit, len(rays))
		oks := make([]bool, len(rays))
		err = bs.IntersectBatch(rays, hits, oks)
		if err != nil {
			t.Fatal(err)
		}
		nhit := 0
		for i, r := range rays {
			want, wantOK := surf.Intersect(r)
			if oks[i] != wantOK || !bitIdentical(hits[i], want) {
				t.Fatalf("ray %d: batch %+v (%v) differs from single %+v (%v)", i, hits[i], oks[i], want, wantOK)
			}
			if wantOK {
				nhit++
			}
		}
		if nhit == 0 {
			t.Errorf("%T: no hits in batch", field)
		}
		err = bs.IntersectBatch(rays, hits[:1], oks)
		if err == nil {
			t.Error("expected error for mismatched batch buffers")
		}
	}
	if _, err := isect.NewBatchSurface(nil, isect.CPUMarcher{}); err == nil {
		t.Error("expected error for nil surface")
	}
}

func TestRayPointAt(t *testing.T) {
	r := isect.Ray{Origin: ms3.Vec{X: 1}, Direction: ms3.Vec{Y: 2}}
	p := r.PointAt(3)
	if !vecNear(p, ms3.Vec{X: 1, Y: 3 - 1e-4}, 1e-6) {
		t.Errorf("want biased point along unit direction, got %v", p)
	}
}

func TestLegacyT(t *testing.T) {
	h := isect.Hit{T: 3, Param: 1.5}
	for _, test := range []struct {
		ok, implicit bool
		want         float32
	}{
		{ok: true, implicit: false, want: 3},
		{ok: true, implicit: true, want: 1.5},
		{ok: false, implicit: false, want: isect.MissAnalytic},
		{ok: false, implicit: true, want: isect.MissImplicit},
	} {
		if got := isect.LegacyT(h, test.ok, test.implicit); got != test.want {
			t.Errorf("LegacyT(ok=%v, implicit=%v) = %v, want %v", test.ok, test.implicit, got, test.want)
		}
	}
}

func geomOf(obj isect.Intersectable) isect.Geom {
	switch o := obj.(type) {
	case *isect.Box:
		return o.Geom
	case *isect.Sphere:
		return o.Geom
	case *isect.ImplicitSurface:
		return o.Geom
	}
	panic("unknown primitive")
}

func isWorldDistance(hit isect.Hit, r isect.Ray) bool {
	d := ms3.Norm(ms3.Sub(hit.Point, r.Origin))
	return math32.Abs(d-hit.T) <= 1e-5*math32.Max(1, d)
}

func bitIdentical(a, b isect.Hit) bool {
	fa := [...]float32{a.T, a.Param, a.Point.X, a.Point.Y, a.Point.Z, a.Normal.X, a.Normal.Y, a.Normal.Z}
	fb := [...]float32{b.T, b.Param, b.Point.X, b.Point.Y, b.Point.Z, b.Normal.X, b.Normal.Y, b.Normal.Z}
	for i := range fa {
		if math32.Float32bits(fa[i]) != math32.Float32bits(fb[i]) {
			return false
		}
	}
	return a.Outside == b.Outside
}

func randomUnit(rng *rand.Rand) ms3.Vec {
	for {
		v := ms3.Vec{X: 2*rng.Float32() - 1, Y: 2*rng.Float32() - 1, Z: 2*rng.Float32() - 1}
		n := ms3.Norm(v)
		if n > 0.1 && n <= 1 {
			return ms3.Scale(1/n, v)
		}
	}
}
