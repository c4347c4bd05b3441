//go:build tinygo || !cgo

package gleval

import (
	"errors"
	"io"

	"github.com/soypat/geometry/ms3"
)

var errNoCGO = errors.New("GPU evaluation requires CGo and is not supported on TinyGo")

// Init1x1GLFW is not supported without CGo.
func Init1x1GLFW() (terminate func(), err error) {
	return nil, errNoCGO
}

// NewComputeGPUSDF3 instantiates a [SDF3] that runs on the GPU.
func NewComputeGPUSDF3(glglSourceCode io.Reader, bb ms3.Box, cfg ComputeConfig) (*SDF3Compute, error) {
	return nil, errNoCGO
}

type SDF3Compute struct {
	bb ms3.Box
}

// Bounds returns the field bounds given at construction. Implements [SDF3].
func (sdf *SDF3Compute) Bounds() ms3.Box {
	return sdf.bb
}

func (sdf *SDF3Compute) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	return errNoCGO
}

func (sdf *SDF3Compute) Evaluations() uint64 { return 0 }

// NewComputeGPUMarch compiles a march kernel on the GPU.
func NewComputeGPUMarch(glglSourceCode io.Reader, cfg ComputeConfig) (*MarchCompute, error) {
	return nil, errNoCGO
}

type MarchCompute struct{}

func (mc *MarchCompute) March(origins, dirs []ms3.Vec, dst []MarchResult) error {
	return errNoCGO
}

func (mc *MarchCompute) Delete() {}
