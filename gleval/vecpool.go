package gleval

import (
	"errors"
	"fmt"
	"slices"

	"github.com/soypat/geometry/ms3"
)

// VecPool holds reusable buffers for evaluators that need scratch space, such
// as [NormalsCentralDiff]. Buffers acquired must be released to the same pool.
// A VecPool is not safe for concurrent use.
type VecPool struct {
	Float bufPool[float32]
	V3    bufPool[ms3.Vec]
}

// GetVecPool extracts a *VecPool from userData. userData may be a *VecPool
// itself or implement a `VecPool() *VecPool` method.
func GetVecPool(userData any) (*VecPool, error) {
	switch ud := userData.(type) {
	case *VecPool:
		if ud == nil {
			return nil, errors.New("nil *VecPool")
		}
		return ud, nil
	case interface{ VecPool() *VecPool }:
		vp := ud.VecPool()
		if vp == nil {
			return nil, errors.New("VecPool method returned nil")
		}
		return vp, nil
	case nil:
		return nil, errors.New("nil userData, want *VecPool")
	}
	return nil, fmt.Errorf("want *VecPool in userData, got %T", userData)
}

// AssertAllReleased returns an error if any acquired buffer has not been released.
func (vp *VecPool) AssertAllReleased() error {
	err := vp.Float.assertAllReleased()
	if err != nil {
		return fmt.Errorf("float pool: %w", err)
	}
	err = vp.V3.assertAllReleased()
	if err != nil {
		return fmt.Errorf("vec3 pool: %w", err)
	}
	return nil
}

type bufPool[T any] struct {
	bufs     [][]T
	acquired []bool
}

// Acquire returns a buffer of length n from the pool, allocating if no free buffer is large enough.
func (bp *bufPool[T]) Acquire(n int) []T {
	for i, buf := range bp.bufs {
		if !bp.acquired[i] && cap(buf) >= n {
			bp.acquired[i] = true
			return buf[:n]
		}
	}
	buf := make([]T, n)
	bp.bufs = append(bp.bufs, buf)
	bp.acquired = append(bp.acquired, true)
	return buf
}

// Release returns buf to the pool. It panics if buf was not acquired from the pool.
func (bp *bufPool[T]) Release(buf []T) {
	for i, b := range bp.bufs {
		if !bp.acquired[i] || cap(b) != cap(buf) {
			continue
		}
		if cap(b) == 0 || &b[:1][0] == &buf[:1][0] {
			bp.acquired[i] = false
			return
		}
	}
	panic("release of buffer not acquired from pool")
}

func (bp *bufPool[T]) assertAllReleased() error {
	n := len(slices.DeleteFunc(slices.Clone(bp.acquired), func(acq bool) bool { return !acq }))
	if n > 0 {
		return fmt.Errorf("%d buffers not released", n)
	}
	return nil
}
