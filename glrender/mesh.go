package glrender

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	"github.com/deadsy/sdfx/vec/conv"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/deadsy/sdfx/vec/v3i"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/isect/gleval"
)

// sampleGrid holds field values sampled on the same lattice sdfx's uniform
// marching cubes visits. sdfx evaluates from its own worker goroutines, so the
// field is sampled beforehand in a single batch on the caller's goroutine and
// Evaluate only reads the cache.
type sampleGrid struct {
	bounds sdf.Box3
	base   v3.Vec
	inc    v3.Vec
	steps  v3i.Vec
	vals   []float32

	mu  sync.Mutex
	err error
}

var _ sdf.SDF3 = (*sampleGrid)(nil)

// newSampleGrid evaluates s at every lattice point of a uniform marching cubes
// run over bounds with cells along the longest side.
func newSampleGrid(s gleval.SDF3, bounds sdf.Box3, cells int, userData any) (*sampleGrid, error) {
	// Lattice set up as in render.MarchingCubesUniform.Render.
	size0 := bounds.Size()
	meshInc := size0.MaxComponent() / float64(cells)
	if !(meshInc > 0) || math.IsInf(meshInc, 0) {
		return nil, errors.New("degenerate field bounds")
	}
	size1 := size0.DivScalar(meshInc).Ceil().AddScalar(1).MulScalar(meshInc)
	bb := sdf.NewBox3(bounds.Center(), size1)
	size := bb.Size()
	steps := conv.V3ToV3i(size.DivScalar(meshInc).Ceil())
	g := &sampleGrid{
		bounds: bounds,
		base:   bb.Min,
		inc:    size.Div(conv.V3iToV3(steps)),
		steps:  steps,
	}
	nx, ny, nz := steps.X+1, steps.Y+1, steps.Z+1
	pos := make([]ms3.Vec, nx*ny*nz)
	for x := 0; x < nx; x++ {
		px := g.base.X + float64(x)*g.inc.X
		for y := 0; y < ny; y++ {
			py := g.base.Y + float64(y)*g.inc.Y
			for z := 0; z < nz; z++ {
				pz := g.base.Z + float64(z)*g.inc.Z
				pos[g.index(x, y, z)] = ms3.Vec{X: float32(px), Y: float32(py), Z: float32(pz)}
			}
		}
	}
	g.vals = make([]float32, len(pos))
	err := s.Evaluate(pos, g.vals, userData)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (g *sampleGrid) index(x, y, z int) int {
	return (x*(g.steps.Y+1)+y)*(g.steps.Z+1) + z
}

// Evaluate returns the cached value of the lattice point nearest to p.
func (g *sampleGrid) Evaluate(p v3.Vec) float64 {
	x := int(math.Round((p.X - g.base.X) / g.inc.X))
	y := int(math.Round((p.Y - g.base.Y) / g.inc.Y))
	z := int(math.Round((p.Z - g.base.Z) / g.inc.Z))
	if x < 0 || y < 0 || z < 0 || x > g.steps.X || y > g.steps.Y || z > g.steps.Z {
		g.mu.Lock()
		if g.err == nil {
			g.err = fmt.Errorf("sample %v outside cached lattice", p)
		}
		g.mu.Unlock()
		return 1
	}
	return float64(g.vals[g.index(x, y, z)])
}

func (g *sampleGrid) BoundingBox() sdf.Box3 { return g.bounds }

// MarchingCubes triangulates the zero level set of a field with uniform
// marching cubes. It implements [Renderer].
type MarchingCubes struct {
	s         gleval.SDF3
	cells     int
	triangles []ms3.Triangle
	rendered  bool
}

// NewMarchingCubes returns a [MarchingCubes] renderer sampling s with cells
// cubes along the longest side of its bounds.
func NewMarchingCubes(s gleval.SDF3, cells int) (*MarchingCubes, error) {
	if s == nil {
		return nil, errors.New("nil SDF3")
	} else if cells < 2 {
		return nil, errors.New("need at least 2 marching cubes cells")
	}
	return &MarchingCubes{s: s, cells: cells}, nil
}

// ReadTriangles implements [Renderer]. The whole mesh is computed on the
// first call and handed out in chunks. io.EOF is returned once all triangles are read.
// The field is evaluated once, in a single batch on the calling goroutine,
// so GPU evaluators work from a locked OS thread.
func (mc *MarchingCubes) ReadTriangles(dst []ms3.Triangle, userData any) (n int, err error) {
	if len(dst) == 0 {
		return 0, errors.New("empty triangle buffer")
	}
	if !mc.rendered {
		bb := mc.s.Bounds()
		var grid *sampleGrid
		grid, err = newSampleGrid(mc.s, sdf.Box3{
			Min: v3.Vec{X: float64(bb.Min.X), Y: float64(bb.Min.Y), Z: float64(bb.Min.Z)},
			Max: v3.Vec{X: float64(bb.Max.X), Y: float64(bb.Max.Y), Z: float64(bb.Max.Z)},
		}, mc.cells, userData)
		if err != nil {
			return 0, err
		}
		tris := render.ToTriangles(grid, render.NewMarchingCubesUniform(mc.cells))
		if grid.err != nil {
			return 0, grid.err
		}
		mc.triangles = make([]ms3.Triangle, 0, len(tris))
		for _, tri := range tris {
			mc.triangles = append(mc.triangles, ms3.Triangle{
				toVec(tri[0]), toVec(tri[1]), toVec(tri[2]),
			})
		}
		mc.rendered = true
	}
	n = copy(dst, mc.triangles)
	mc.triangles = mc.triangles[n:]
	if len(mc.triangles) == 0 {
		err = io.EOF
	}
	return n, err
}

func toVec(v v3.Vec) ms3.Vec {
	return ms3.Vec{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
}
