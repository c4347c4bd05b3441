package isect

import (
	"errors"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/isect/glbuild"
	"github.com/soypat/isect/gleval"
)

var (
	_ gleval.SDF3      = (*Tanglecube)(nil)
	_ gleval.SDF3      = (*Quartic)(nil)
	_ glbuild.Shader3D = (*Tanglecube)(nil)
	_ glbuild.Shader3D = (*Quartic)(nil)
)

var errMismatchBufferLength = errors.New("position and value buffer length mismatch")

// Tanglecube is the quartic x⁴-5x²+y⁴-5y²+z⁴-5z²+11.8.
type Tanglecube struct{}

// Value implements [Field].
func (tc *Tanglecube) Value(p ms3.Vec) float32 {
	x2 := p.X * p.X
	y2 := p.Y * p.Y
	z2 := p.Z * p.Z
	return x2*x2 - 5*x2 + y2*y2 - 5*y2 + z2*z2 - 5*z2 + 11.8
}

// Evaluate implements [gleval.SDF3].
func (tc *Tanglecube) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	if len(pos) != len(dist) {
		return errMismatchBufferLength
	}
	for i, p := range pos {
		dist[i] = tc.Value(p)
	}
	return nil
}

// Bounds returns a box containing the whole zero level set.
func (tc *Tanglecube) Bounds() ms3.Box {
	const h = 2.5
	return ms3.Box{Min: ms3.Vec{X: -h, Y: -h, Z: -h}, Max: ms3.Vec{X: h, Y: h, Z: h}}
}

// AppendShaderName implements [glbuild.Shader].
func (tc *Tanglecube) AppendShaderName(b []byte) []byte {
	return append(b, "tanglecube"...)
}

// AppendShaderBody implements [glbuild.Shader].
func (tc *Tanglecube) AppendShaderBody(b []byte) []byte {
	b = append(b, "vec3 p2=p*p;\nvec3 p4=p2*p2;\n"...)
	b = append(b, "return p4.x-5.0*p2.x+p4.y-5.0*p2.y+p4.z-5.0*p2.z+11.8;"...)
	return b
}

// Quartic is the surface (x²+y²+z²-A·K²)² - B·((z-K)²-2x²)·((z+K)²-2y²).
type Quartic struct {
	K, A, B float32
}

// DefaultQuartic returns the quartic with K=5, A=0.95, B=0.5.
func DefaultQuartic() *Quartic {
	return &Quartic{K: 5, A: 0.95, B: 0.5}
}

// NewQuartic returns a [Quartic] with the given parameters.
func NewQuartic(k, a, b float32) (*Quartic, error) {
	for _, v := range [3]float32{k, a, b} {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return nil, errors.New("non-finite quartic parameter")
		}
	}
	return &Quartic{K: k, A: a, B: b}, nil
}

// Value implements [Field].
func (q *Quartic) Value(p ms3.Vec) float32 {
	k := q.K
	x2 := p.X * p.X
	y2 := p.Y * p.Y
	z2 := p.Z * p.Z
	s := x2 + y2 + z2 - q.A*k*k
	zm := p.Z - k
	zp := p.Z + k
	return s*s - q.B*(zm*zm-2*x2)*(zp*zp-2*y2)
}

// Evaluate implements [gleval.SDF3].
func (q *Quartic) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	if len(pos) != len(dist) {
		return errMismatchBufferLength
	}
	for i, p := range pos {
		dist[i] = q.Value(p)
	}
	return nil
}

// Bounds returns a box containing the zero level set. It scales with K.
func (q *Quartic) Bounds() ms3.Box {
	h := 1.2 * math32.Abs(q.K)
	return ms3.Box{Min: ms3.Vec{X: -h, Y: -h, Z: -h}, Max: ms3.Vec{X: h, Y: h, Z: h}}
}

// AppendShaderName implements [glbuild.Shader]. Parameters are encoded in
// the name so differently shaped quartics do not collide.
func (q *Quartic) AppendShaderName(b []byte) []byte {
	b = append(b, "quartic"...)
	for _, v := range [3]float32{q.K, q.A, q.B} {
		b = append(b, '_')
		b = glbuild.AppendFloat(b, 'n', 'p', v)
	}
	return b
}

// AppendShaderBody implements [glbuild.Shader].
func (q *Quartic) AppendShaderBody(b []byte) []byte {
	b = glbuild.AppendFloatDecl(b, "k", q.K)
	b = glbuild.AppendFloatDecl(b, "a", q.A)
	b = glbuild.AppendFloatDecl(b, "b", q.B)
	b = append(b, `vec3 p2=p*p;
float s=p2.x+p2.y+p2.z-a*k*k;
float zm=p.z-k;
float zp=p.z+k;
return s*s-b*(zm*zm-2.0*p2.x)*(zp*zp-2.0*p2.y);`...)
	return b
}
