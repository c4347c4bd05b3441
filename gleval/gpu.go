//go:build !tinygo && cgo

package gleval

import (
	"errors"
	"io"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glgl/v4.6-core/glgl"
)

// Init1x1GLFW starts a 1x1 sized GLFW so that user can start working with GPU.
// It returns a termination function that should be called when user is done running loads on GPU.
// The calling goroutine should be locked to its OS thread.
func Init1x1GLFW() (terminate func(), err error) {
	_, terminate, err = glgl.InitWithCurrentWindow33(glgl.WindowConfig{
		Title:   "compute",
		Version: [2]int{4, 6},
		Width:   1,
		Height:  1,
	})
	return terminate, err
}

func compileCompute(glglSourceCode io.Reader) (glgl.Program, error) {
	combinedSource, err := glgl.ParseCombined(glglSourceCode)
	if err != nil {
		return glgl.Program{}, err
	}
	glprog, err := glgl.CompileProgram(combinedSource)
	if err != nil {
		return glgl.Program{}, errors.New(string(combinedSource.Compute) + "\n" + err.Error())
	}
	return glprog, nil
}

// NewComputeGPUSDF3 instantiates a [SDF3] that runs on the GPU. The source
// is expected to be written by glbuild's WriteComputeSDF3 with the same
// invocation size as cfg.
func NewComputeGPUSDF3(glglSourceCode io.Reader, bb ms3.Box, cfg ComputeConfig) (*SDF3Compute, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	glprog, err := compileCompute(glglSourceCode)
	if err != nil {
		return nil, err
	}
	sdf := SDF3Compute{
		prog:   glprog,
		bb:     bb,
		invocX: cfg.InvocX,
	}
	return &sdf, nil
}

// SDF3Compute evaluates a compiled field shader over position batches.
type SDF3Compute struct {
	prog   glgl.Program
	bb     ms3.Box
	invocX int
	evals  uint64
}

// Bounds returns the field bounds given at construction. Implements [SDF3].
func (sdf *SDF3Compute) Bounds() ms3.Box {
	return sdf.bb
}

// Evaluate implements [SDF3]. userData is ignored.
func (sdf *SDF3Compute) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	if len(pos) != len(dist) {
		return errMismatchBufferLength
	} else if len(pos) == 0 {
		return errEmptyBuffers
	}
	sdf.prog.Bind()
	defer sdf.prog.Unbind()
	err := computeRun(dist, sdf.invocX, len(dist), pos)
	if err != nil {
		return err
	}
	sdf.evals += uint64(len(pos))
	return nil
}

// Evaluations returns total evaluations performed succesfully on the GPU.
func (sdf *SDF3Compute) Evaluations() uint64 { return sdf.evals }

// NewComputeGPUMarch compiles a march kernel written by glbuild's WriteComputeMarch.
func NewComputeGPUMarch(glglSourceCode io.Reader, cfg ComputeConfig) (*MarchCompute, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	glprog, err := compileCompute(glglSourceCode)
	if err != nil {
		return nil, err
	}
	return &MarchCompute{prog: glprog, invocX: cfg.InvocX}, nil
}

// MarchCompute marches batches of object space rays against a field on the GPU.
type MarchCompute struct {
	prog   glgl.Program
	invocX int
	raw    []float32
}

// March marches the ray origins[i]+t*dirs[i] for every i and stores the outcome in dst[i].
func (mc *MarchCompute) March(origins, dirs []ms3.Vec, dst []MarchResult) error {
	if len(origins) != len(dirs) || len(dirs) != len(dst) {
		return errMismatchBufferLength
	} else if len(dst) == 0 {
		return errEmptyBuffers
	}
	if cap(mc.raw) < 3*len(dst) {
		mc.raw = make([]float32, 3*len(dst))
	}
	raw := mc.raw[:3*len(dst)]
	mc.prog.Bind()
	defer mc.prog.Unbind()
	err := computeRun(raw, mc.invocX, len(dst), origins, dirs)
	if err != nil {
		return err
	}
	return decodeMarchResults(dst, raw)
}

// Delete releases the GPU program.
func (mc *MarchCompute) Delete() { mc.prog.Delete() }
