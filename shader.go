package isect

import (
	"io"

	"github.com/soypat/isect/glbuild"
)

// MarchConfig returns the marching constants used by [March] for GPU kernels.
func MarchConfig() glbuild.MarchConfig {
	return glbuild.MarchConfig{
		CoarseStep: marchCoarseStep,
		FineStep:   marchFineStep,
		CoarseIter: marchCoarseIter,
		FineIter:   marchFineIter,
		Threshold:  marchThreshold,
	}
}

// WriteMarchKernel writes a compute shader that marches rays against field
// exactly as [March] does. If prog is nil a default programmer is used.
func WriteMarchKernel(prog *glbuild.Programmer, w io.Writer, field glbuild.Shader3D) (int, error) {
	if prog == nil {
		prog = glbuild.NewDefaultProgrammer()
	}
	return prog.WriteComputeMarch(w, field, MarchConfig())
}
