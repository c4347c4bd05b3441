package isect

import (
	"errors"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/isect/gleval"
)

// BatchIntersectable is implemented by primitives that intersect many rays
// at once faster than one [Intersectable.Intersect] call per ray, such as
// implicit surfaces marched on the GPU. hits[i] and ok[i] receive the result
// for rays[i] and match what Intersect(rays[i]) returns.
type BatchIntersectable interface {
	Intersectable
	IntersectBatch(rays []Ray, hits []Hit, ok []bool) error
}

var _ BatchIntersectable = (*BatchSurface)(nil)

// RayMarcher marches batches of object space rays against a field.
// [gleval.MarchCompute] implements it on the GPU.
type RayMarcher interface {
	March(origins, dirs []ms3.Vec, dst []gleval.MarchResult) error
}

// CPUMarcher is a [RayMarcher] running [March] over each ray in turn.
type CPUMarcher struct {
	Field Field
}

// March implements [RayMarcher].
func (m CPUMarcher) March(origins, dirs []ms3.Vec, dst []gleval.MarchResult) error {
	if len(origins) != len(dirs) || len(dirs) != len(dst) {
		return errMismatchBufferLength
	}
	for i := range dst {
		t, outside, ok := March(m.Field, origins[i], dirs[i])
		dst[i] = gleval.MarchResult{T: t, Hit: ok, Outside: outside}
	}
	return nil
}

// BatchSurface is an [ImplicitSurface] whose ray batches are marched by a
// [RayMarcher]. Hit points and normals are still computed on the CPU.
// A BatchSurface reuses internal buffers and is not safe for concurrent batches.
type BatchSurface struct {
	*ImplicitSurface
	Marcher RayMarcher

	objRays []Ray
	origins []ms3.Vec
	dirs    []ms3.Vec
	results []gleval.MarchResult
}

// NewBatchSurface returns s marched in batches by m.
func NewBatchSurface(s *ImplicitSurface, m RayMarcher) (*BatchSurface, error) {
	if s == nil || m == nil {
		return nil, errors.New("nil surface or marcher")
	}
	return &BatchSurface{ImplicitSurface: s, Marcher: m}, nil
}

// IntersectBatch implements [BatchIntersectable].
func (bs *BatchSurface) IntersectBatch(rays []Ray, hits []Hit, ok []bool) error {
	n := len(rays)
	if len(hits) != n || len(ok) != n {
		return errMismatchBufferLength
	} else if n == 0 {
		return nil
	}
	if cap(bs.objRays) < n {
		bs.objRays = make([]Ray, n)
		bs.origins = make([]ms3.Vec, n)
		bs.dirs = make([]ms3.Vec, n)
		bs.results = make([]gleval.MarchResult, n)
	}
	objRays := bs.objRays[:n]
	origins := bs.origins[:n]
	dirs := bs.dirs[:n]
	results := bs.results[:n]
	for i, r := range rays {
		q := bs.Geom.objectRay(r, false)
		objRays[i] = q
		origins[i] = q.Origin
		dirs[i] = q.Direction
	}
	err := bs.Marcher.March(origins, dirs, results)
	if err != nil {
		return err
	}
	for i, res := range results {
		hits[i], ok[i] = bs.hitAt(rays[i], objRays[i], res.T, res.Outside, res.Hit)
	}
	return nil
}
