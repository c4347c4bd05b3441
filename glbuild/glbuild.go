// Package glbuild generates GLSL source for implicit fields so they can be
// evaluated and marched on the GPU with the same bounded coarse-to-fine
// procedure the CPU intersector uses.
package glbuild

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/soypat/geometry/ms3"
)

// VersionStr is the GLSL version directive heading every generated compute shader.
const VersionStr = "#version 430\n"

// Shader stores information for automatically generating field shader
// functions of the form `float name(vec3 p) { body }`.
type Shader interface {
	// AppendShaderName appends the name of the GL shader function
	// to the buffer and returns the result. It should be unique to that shader.
	AppendShaderName(b []byte) []byte
	// AppendShaderBody appends the body of the shader function to the
	// buffer and returns the result.
	AppendShaderBody(b []byte) []byte
}

// Shader3D can create GLSL source code for a scalar field over 3D space.
type Shader3D interface {
	Shader
	// Bounds returns a bounding box containing the field's zero level set.
	Bounds() ms3.Box
}

// MarchConfig holds the constants of the bounded two phase march written by
// [Programmer.WriteComputeMarch].
type MarchConfig struct {
	CoarseStep float32
	FineStep   float32
	CoarseIter int
	FineIter   int
	// Threshold is the oriented field value under which a sample counts as a crossing.
	Threshold float32
}

// Validate returns an error if the march would not terminate or never advance.
func (mc MarchConfig) Validate() error {
	switch {
	case mc.CoarseStep <= 0 || mc.FineStep <= 0:
		return errors.New("march steps must be positive")
	case mc.CoarseIter <= 0 || mc.FineIter <= 0:
		return errors.New("march iteration bounds must be positive")
	case mc.Threshold <= 0:
		return errors.New("march threshold must be positive")
	}
	return nil
}

// Programmer implements shader generation logic for Shader type.
type Programmer struct {
	scratch       []byte
	computeHeader []byte
	// Invocations size in X (local group size) to give each compute work group.
	invocX int
}

var defaultComputeHeader = []byte("#shader compute\n" + VersionStr)

// NewDefaultProgrammer returns a Programmer with reasonable default parameters for use with glgl package on the local machine.
func NewDefaultProgrammer() *Programmer {
	return &Programmer{
		scratch:       make([]byte, 1024),
		computeHeader: defaultComputeHeader,
		invocX:        32,
	}
}

// SetComputeInvocations sets the work group local-sizes. x*y*z must be less than maximum number of invocations.
func (p *Programmer) SetComputeInvocations(x, y, z int) {
	if y != 1 || z != 1 {
		panic("unsupported")
	} else if x < 1 {
		panic("zero or negative X invocation size")
	}
	p.invocX = x
}

// ComputeInvocations returns the worker group invocation size in x y and z.
func (p *Programmer) ComputeInvocations() (int, int, int) {
	return p.invocX, 1, 1
}

// WriteComputeSDF3 creates the bare bones I/O compute program for evaluating
// a field at positions and writes it to the writer.
func (p *Programmer) WriteComputeSDF3(w io.Writer, obj Shader3D) (int, error) {
	baseName, n, err := p.writeHeaderAndDecl(w, obj)
	if err != nil {
		return n, err
	}
	ngot, err := fmt.Fprintf(w, `
layout(local_size_x = %d, local_size_y = 1, local_size_z = 1) in;

// Input: tightly packed xyz positions at which to evaluate the field.
layout(std430, binding = 0) buffer PositionsBuffer {
	float vbo_positions[];
};

// Output: field values. Maps to position buffer.
layout(std430, binding = 1) buffer DistancesBuffer {
	float vbo_distances[];
};

void main() {
	int idx = int( gl_GlobalInvocationID.x );
	if (idx >= vbo_distances.length()) {
		return;
	}
	vec3 p = vec3(vbo_positions[3*idx], vbo_positions[3*idx+1], vbo_positions[3*idx+2]);
	vbo_distances[idx] = %s(p);
}
`, p.invocX, baseName)
	n += ngot
	return n, err
}

// WriteComputeMarch writes a compute program that marches object space rays
// against the field. Each invocation reads one origin and direction and writes
// the marching parameter followed by a hit flag (1 hit, 0 miss) and the sign
// of the field at the origin (1 outside, -1 inside).
func (p *Programmer) WriteComputeMarch(w io.Writer, obj Shader3D, cfg MarchConfig) (int, error) {
	err := cfg.Validate()
	if err != nil {
		return 0, err
	}
	baseName, n, err := p.writeHeaderAndDecl(w, obj)
	if err != nil {
		return n, err
	}
	b := p.scratch[:0]
	b = append(b, "\nvec3 march(vec3 ro, vec3 rd) {\n"...)
	b = AppendFloatDecl(b, "coarse", cfg.CoarseStep)
	b = AppendFloatDecl(b, "fine", cfg.FineStep)
	b = AppendFloatDecl(b, "thresh", cfg.Threshold)
	b = AppendIntDecl(b, "ncoarse", cfg.CoarseIter)
	b = AppendIntDecl(b, "nfine", cfg.FineIter)
	b = fmt.Appendf(b, `float s = %[1]s(ro) < 0.0 ? -1.0 : 1.0;
float t = 0.0;
for (int i = 0; i < ncoarse; i++) {
	if (s*%[1]s(ro + t*rd) < thresh) {
		t -= coarse;
		for (int j = 0; j < nfine; j++) {
			if (s*%[1]s(ro + t*rd) < thresh) {
				return vec3(t - fine, 1.0, s);
			}
			t += fine;
		}
		return vec3(0.0, 0.0, s);
	}
	t += coarse;
}
return vec3(0.0, 0.0, s);
}

layout(local_size_x = %[2]d, local_size_y = 1, local_size_z = 1) in;

// Inputs: tightly packed xyz ray origins and directions in object space.
layout(std430, binding = 0) buffer OriginsBuffer {
	float vbo_origins[];
};

layout(std430, binding = 1) buffer DirectionsBuffer {
	float vbo_directions[];
};

// Output: (t, hit, sign) triplets, one per ray.
layout(std430, binding = 2) buffer ResultsBuffer {
	float vbo_results[];
};

void main() {
	int idx = int( gl_GlobalInvocationID.x );
	if (3*idx >= vbo_results.length()) {
		return;
	}
	vec3 ro = vec3(vbo_origins[3*idx], vbo_origins[3*idx+1], vbo_origins[3*idx+2]);
	vec3 rd = vec3(vbo_directions[3*idx], vbo_directions[3*idx+1], vbo_directions[3*idx+2]);
	vec3 res = march(ro, rd);
	vbo_results[3*idx] = res.x;
	vbo_results[3*idx+1] = res.y;
	vbo_results[3*idx+2] = res.z;
}
`, baseName, p.invocX)
	p.scratch = b
	ngot, err := w.Write(b)
	n += ngot
	return n, err
}

// WriteSDFDecl writes the field function declaration and returns its name.
func (p *Programmer) WriteSDFDecl(w io.Writer, s Shader) (baseName string, n int, err error) {
	baseName, err = shaderName(s)
	if err != nil {
		return "", 0, err
	}
	n, p.scratch, err = WriteShader(w, s, p.scratch)
	return baseName, n, err
}

func (p *Programmer) writeHeaderAndDecl(w io.Writer, s Shader) (baseName string, n int, err error) {
	n, err = w.Write(p.computeHeader)
	if err != nil {
		return "", n, err
	}
	baseName, ngot, err := p.WriteSDFDecl(w, s)
	n += ngot
	return baseName, n, err
}

func shaderName(s Shader) (string, error) {
	if s == nil {
		return "", errors.New("nil shader object")
	}
	name := s.AppendShaderName(nil)
	if len(name) == 0 {
		return "", errors.New("empty shader name")
	}
	if !isIdentifier(name) {
		return "", fmt.Errorf("shader name %q is not a valid GLSL identifier", name)
	}
	return string(name), nil
}

func isIdentifier(name []byte) bool {
	for i, c := range name {
		isLetter := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		isDigit := c >= '0' && c <= '9'
		if !isLetter && (i == 0 || !isDigit) {
			return false
		}
	}
	return true
}

// WriteShader writes the GLSL function for s to w. scratch is an auxiliary buffer to avoid heap allocations.
func WriteShader(w io.Writer, s Shader, scratch []byte) (int, []byte, error) {
	scratch = AppendShaderSource(scratch[:0], s)
	n, err := w.Write(scratch)
	return n, scratch, err
}

// AppendShaderSource appends the full GLSL function declaration of s to dst.
func AppendShaderSource(dst []byte, s Shader) []byte {
	dst = append(dst, "float "...)
	dst = s.AppendShaderName(dst)
	dst = append(dst, "(vec3 p) {\n"...)
	dst = s.AppendShaderBody(dst)
	dst = append(dst, "\n}\n"...)
	return dst
}

// AppendFloatDecl appends a GLSL float variable declaration.
func AppendFloatDecl(b []byte, floatVarname string, v float32) []byte {
	b = append(b, "float "...)
	b = append(b, floatVarname...)
	b = append(b, '=')
	b = AppendFloat(b, '-', '.', v)
	b = append(b, ';', '\n')
	return b
}

// AppendIntDecl appends a GLSL int variable declaration.
func AppendIntDecl(b []byte, intVarname string, v int) []byte {
	b = append(b, "int "...)
	b = append(b, intVarname...)
	b = append(b, '=')
	b = strconv.AppendInt(b, int64(v), 10)
	b = append(b, ';', '\n')
	return b
}

// AppendMat4Decl appends a GLSL mat4 declaration of the row major m44.
func AppendMat4Decl(b []byte, mat4Varname string, m44 ms3.Mat4) []byte {
	arr := m44.Array()
	b = append(b, "mat4 "...)
	b = append(b, mat4Varname...)
	b = append(b, "=mat4("...)
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			v := arr[row*4+col] // Column major access, as per OpenGL standard.
			b = AppendFloat(b, '-', '.', v)
			if row != 3 || col != 3 {
				b = append(b, ',')
			}
		}
	}
	b = append(b, ");\n"...)
	return b
}

const decimalDigits = 9

// AppendFloat appends v in fixed notation with trailing zeros trimmed, replacing
// the minus sign with neg and the decimal point with decimal. Alternate
// characters let floats be embedded in identifiers.
func AppendFloat(b []byte, neg, decimal byte, v float32) []byte {
	start := len(b)
	b = strconv.AppendFloat(b, float64(v), 'f', decimalDigits, 32)
	idx := bytes.IndexByte(b[start:], '.')
	if decimal != '.' && idx >= 0 {
		b[start+idx] = decimal
	}
	if b[start] == '-' {
		b[start] = neg
	}
	// Finally trim zeroes.
	end := len(b)
	for i := len(b) - 1; idx >= 0 && i > idx+start && b[i] == '0'; i-- {
		end--
	}
	return b[:end]
}
