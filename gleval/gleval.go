// Package gleval evaluates scalar fields over batches of positions on the CPU
// or the GPU. Batched evaluation backs the image, slice and mesh renderers.
package gleval

import (
	"errors"
	"fmt"

	"github.com/soypat/geometry/ms3"
)

// SDF3 implements a 3D scalar field in vectorized form suitable for running on GPU.
// Values need not be calibrated distances, only their sign across the surface matters.
type SDF3 interface {
	// Evaluate evaluates the field over pos positions.
	// dist and pos must be of same length. Resulting values are stored
	// in dist.
	//
	// userData facilitates getting data to the evaluators for use in processing, such as [VecPool].
	Evaluate(pos []ms3.Vec, dist []float32, userData any) error
	// Bounds returns the field's bounding box such that all of its zero level set is contained within.
	Bounds() ms3.Box
}

var (
	errEmptyBuffers         = errors.New("empty buffers")
	errMismatchBufferLength = errors.New("position and distance buffer length mismatch")
)

// NormalsCentralDiff uses central differences algorithm for normal calculation, which are stored in normals for each position.
// The returned normals are not normalized (converted to unit length).
func NormalsCentralDiff(s SDF3, pos []ms3.Vec, normals []ms3.Vec, step float32, userData any) error {
	step *= 0.5
	if step <= 0 {
		return errors.New("invalid step")
	} else if len(pos) != len(normals) {
		return errors.New("length of position must match length of normals")
	} else if s == nil {
		return errors.New("nil SDF3")
	} else if len(pos) == 0 {
		return errEmptyBuffers
	}
	vp, err := GetVecPool(userData)
	if err != nil {
		return fmt.Errorf("VecPool required in both GPU and CPU situations for normal calculation: %w", err)
	}
	d1 := vp.Float.Acquire(len(pos))
	d2 := vp.Float.Acquire(len(pos))
	auxPos := vp.V3.Acquire(len(pos))
	defer vp.Float.Release(d1)
	defer vp.Float.Release(d2)
	defer vp.V3.Release(auxPos)
	var offsets = [3]ms3.Vec{{X: step}, {Y: step}, {Z: step}}
	for dim, h := range offsets {
		for i, p := range pos {
			auxPos[i] = ms3.Add(p, h)
		}
		err = s.Evaluate(auxPos, d1, userData)
		if err != nil {
			return err
		}
		for i, p := range pos {
			auxPos[i] = ms3.Sub(p, h)
		}
		err = s.Evaluate(auxPos, d2, userData)
		if err != nil {
			return err
		}
		for i, d := range d1 {
			diff := d - d2[i]
			switch dim {
			case 0:
				normals[i].X = diff
			case 1:
				normals[i].Y = diff
			default:
				normals[i].Z = diff
			}
		}
	}
	return nil
}

// SDF3CPU evaluates a field on the CPU and keeps the [VecPool] its
// evaluations and normal calculations draw buffers from.
type SDF3CPU struct {
	SDF   SDF3
	vp    VecPool
	evals uint64
}

// NewCPUSDF3 wraps s for CPU evaluation with evaluation counting.
func NewCPUSDF3(s SDF3) (*SDF3CPU, error) {
	if s == nil {
		return nil, errors.New("nil SDF3")
	}
	return &SDF3CPU{SDF: s}, nil
}

// Evaluate implements [SDF3]. If userData is nil the evaluator's own [VecPool] is passed down.
func (e *SDF3CPU) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	if len(pos) != len(dist) {
		return errMismatchBufferLength
	} else if len(pos) == 0 {
		return errEmptyBuffers
	}
	if userData == nil {
		userData = &e.vp
	}
	err := e.SDF.Evaluate(pos, dist, userData)
	if err != nil {
		return err
	}
	e.evals += uint64(len(pos))
	return nil
}

// Bounds implements [SDF3].
func (e *SDF3CPU) Bounds() ms3.Box { return e.SDF.Bounds() }

// Evaluations returns total evaluations performed succesfully during the evaluator's lifetime.
func (e *SDF3CPU) Evaluations() uint64 { return e.evals }

// VecPool returns the evaluator's buffer pool. It satisfies the interface [GetVecPool] looks for.
func (e *SDF3CPU) VecPool() *VecPool { return &e.vp }
