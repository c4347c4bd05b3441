package gleval

import "errors"

// ComputeConfig configures GPU compute evaluators.
type ComputeConfig struct {
	// InvocX is the local work group size in X the shader was compiled with.
	InvocX int
}

func (cfg ComputeConfig) validate() error {
	if cfg.InvocX < 1 {
		return errors.New("zero or negative invocation size")
	}
	return nil
}

// MarchResult is the outcome of marching a single ray on the GPU.
type MarchResult struct {
	// T is the marching parameter of the hit. It is zero on a miss.
	T float32
	// Hit is true if the march found a crossing.
	Hit bool
	// Outside is true if the field was non-negative at the ray origin.
	Outside bool
}

// decodeMarchResults unpacks the (t, hit, sign) triplets a march kernel writes.
func decodeMarchResults(dst []MarchResult, raw []float32) error {
	if len(raw) != 3*len(dst) {
		return errMismatchBufferLength
	}
	for i := range dst {
		tri := raw[3*i : 3*i+3]
		hit := tri[1] > 0.5
		t := tri[0]
		if !hit {
			t = 0
		}
		dst[i] = MarchResult{T: t, Hit: hit, Outside: tri[2] >= 0}
	}
	return nil
}
