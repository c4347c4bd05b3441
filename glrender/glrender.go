// Package glrender renders fields and primitives to images and meshes.
package glrender

import (
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/soypat/geometry/ms3"
)

// Renderer streams a triangle mesh into caller provided buffers.
type Renderer interface {
	ReadTriangles(dst []ms3.Triangle, userData any) (n int, err error)
}

// RenderAll reads the full contents of a Renderer and returns the slice read.
// It does not return error on io.EOF, like the io.RenderAll implementation.
func RenderAll(r Renderer, userData any) ([]ms3.Triangle, error) {
	const startSize = 4096
	var err error
	var nt int
	result := make([]ms3.Triangle, 0, startSize)
	buf := make([]ms3.Triangle, startSize)
	for {
		nt, err = r.ReadTriangles(buf, userData)
		if err == nil || err == io.EOF {
			result = append(result, buf[:nt]...)
		}
		if err != nil {
			break
		}
	}
	if err == io.EOF {
		return result, nil
	}
	return result, err
}

const (
	stlHeaderSize   = 80
	stlTriangleSize = 50
)

// WriteBinarySTL writes model triangles to a binary STL file. Facet normals
// are computed from the vertex winding.
func WriteBinarySTL(w io.Writer, model []ms3.Triangle) (int, error) {
	if uint64(len(model)) > math.MaxUint32 {
		return 0, errors.New("too many triangles for STL")
	}
	var header [stlHeaderSize + 4]byte
	copy(header[:], "binary STL")
	binary.LittleEndian.PutUint32(header[stlHeaderSize:], uint32(len(model)))
	n, err := w.Write(header[:])
	if err != nil {
		return n, err
	}
	var buf [stlTriangleSize]byte
	for _, tri := range model {
		normal := ms3.Unit(ms3.Cross(ms3.Sub(tri[1], tri[0]), ms3.Sub(tri[2], tri[0])))
		putVec(buf[0:12], normal)
		putVec(buf[12:24], tri[0])
		putVec(buf[24:36], tri[1])
		putVec(buf[36:48], tri[2])
		// Attribute byte count, unused.
		buf[48], buf[49] = 0, 0
		ngot, err := w.Write(buf[:])
		n += ngot
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func putVec(b []byte, v ms3.Vec) {
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(v.X))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(v.Y))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(v.Z))
}
