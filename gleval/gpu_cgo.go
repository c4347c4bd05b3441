//go:build !tinygo && cgo

package gleval

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glgl/v4.6-core/glgl"
)

// computeRun loads inputs into SSBOs bound at 0..len(inputs)-1, dispatches
// enough work groups to cover n invocations of the currently bound program and
// reads the SSBO bound at len(inputs) back into dst.
func computeRun(dst []float32, invocX, n int, inputs ...[]ms3.Vec) (err error) {
	if len(dst) == 0 || n == 0 {
		return errEmptyBuffers
	} else if invocX < 1 {
		return errors.New("zero or negative invocation size")
	}
	var p runtime.Pinner
	defer p.Unpin()
	ssbos := make([]uint32, 0, len(inputs)+1)
	defer func() {
		for i := range ssbos {
			gl.DeleteBuffers(1, &ssbos[i])
		}
	}()
	for i, in := range inputs {
		if len(in) != n {
			return errMismatchBufferLength
		}
		ssbo := loadSSBO(in, uint32(i), gl.STATIC_DRAW)
		if ssbo == 0 {
			return glErrOrMessage("zero SSBO id set by GL during compute loading")
		}
		ssbos = append(ssbos, ssbo)
	}
	outSSBO := createSSBO(elemSize[float32]()*len(dst), uint32(len(inputs)), gl.DYNAMIC_READ)
	if outSSBO == 0 {
		return glErrOrMessage("zero id SSBO creating output buffer")
	}
	ssbos = append(ssbos, outSSBO)
	p.Pin(&ssbos[0])

	nWorkX := (n + invocX - 1) / invocX
	gl.DispatchCompute(uint32(nWorkX), 1, 1)
	err = glgl.Err()
	if err != nil {
		return err
	}
	gl.MemoryBarrier(gl.SHADER_STORAGE_BARRIER_BIT)
	err = copySSBO(dst, outSSBO)
	if err != nil {
		return err
	}
	return glgl.Err()
}

func loadSSBO[T any](slice []T, base, usage uint32) (ssbo uint32) {
	var p runtime.Pinner
	p.Pin(&ssbo)
	gl.GenBuffers(1, &ssbo)
	p.Unpin()
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, ssbo)
	size := len(slice) * elemSize[T]()
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, size, unsafe.Pointer(&slice[0]), usage)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, base, ssbo)
	return ssbo
}

func createSSBO(size int, base, usage uint32) (ssbo uint32) {
	gl.GenBuffers(1, &ssbo)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, ssbo)
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, size, nil, usage)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, base, ssbo)
	return ssbo
}

func copySSBO[T any](dst []T, ssbo uint32) error {
	bufSize := elemSize[T]() * len(dst)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, ssbo)
	ptr := gl.MapBufferRange(gl.SHADER_STORAGE_BUFFER, 0, bufSize, gl.MAP_READ_BIT)
	if ptr == nil {
		return glErrOrMessage("failed to map SSBO buffer during copy")
	}
	defer gl.UnmapBuffer(gl.SHADER_STORAGE_BUFFER)
	gpuBytes := unsafe.Slice((*byte)(ptr), bufSize)
	bufBytes := unsafe.Slice((*byte)(unsafe.Pointer(&dst[0])), bufSize)
	copy(bufBytes, gpuBytes)
	return nil
}

func elemSize[T any]() int {
	var z T
	return int(unsafe.Sizeof(z))
}

func glErrOrMessage(defaultMsg string) (err error) {
	err = glgl.Err()
	if err == nil {
		err = errors.New(defaultMsg)
	} else {
		err = fmt.Errorf("%s: %w", defaultMsg, err)
	}
	return err
}
