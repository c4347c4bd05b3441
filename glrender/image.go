package glrender

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms1"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/isect/gleval"
)

type setImage = interface {
	image.Image
	Set(x, y int, c color.Color)
}

// SliceRenderer renders planar cuts through a 3D field as images. The image
// spans the field's bounds in X (columns) and Y (rows, top row at max Y).
type SliceRenderer struct {
	conv    func(f float32) color.Color
	pos     []ms3.Vec
	dist    []float32
	normals []ms3.Vec
}

// NewSliceRenderer instances a new [SliceRenderer]. A nil float->color conversion
// function results in a simple black-white color scheme where black is the
// negative side of the field.
func NewSliceRenderer(evalBufferSize int, conversion func(float32) color.Color) (*SliceRenderer, error) {
	if evalBufferSize <= 64 {
		return nil, errors.New("too small evaluation buffer size")
	}
	if conversion == nil {
		conversion = func(f float32) color.Color {
			switch {
			case math32.IsNaN(f) || math32.IsInf(f, 0):
				return color.RGBA{R: 255, A: 255}
			case f > 0:
				return color.White
			default:
				return color.Black
			}
		}
	}
	sr := &SliceRenderer{
		conv: conversion,
		pos:  make([]ms3.Vec, evalBufferSize),
		dist: make([]float32, evalBufferSize),
	}
	return sr, nil
}

// Render paints the field values on the plane Z=z into img. It uses userData
// as an argument to all [gleval.SDF3.Evaluate] calls.
func (sr *SliceRenderer) Render(sdf gleval.SDF3, img setImage, z float32, userData any) error {
	return sr.render(sdf, img, z, userData, false)
}

// RenderNormals paints the field's central difference normals on the plane
// Z=z into img with each unit normal component mapped to a color channel.
// userData must provide a [gleval.VecPool].
func (sr *SliceRenderer) RenderNormals(sdf gleval.SDF3, img setImage, z float32, userData any) error {
	if len(sr.normals) < len(sr.pos) {
		sr.normals = make([]ms3.Vec, len(sr.pos))
	}
	return sr.render(sdf, img, z, userData, true)
}

func (sr *SliceRenderer) render(sdf gleval.SDF3, img setImage, z float32, userData any, normals bool) error {
	imgBB := img.Bounds()
	dxi := imgBB.Dx()
	dyi := imgBB.Dy()
	if dxi == 0 || dyi == 0 {
		return errors.New("empty image")
	} else if len(sr.dist) < dyi {
		return fmt.Errorf("require evaluation buffer (%d) to be at least of length of image rows (%d)", len(sr.dist), dyi)
	}
	bb := sdf.Bounds()
	sz := bb.Size()
	dx := sz.X / float32(dxi)
	dy := sz.Y / float32(dyi)
	step := math32.Min(dx, dy)
	for i := 0; i < dxi; i++ {
		x := bb.Min.X + (float32(i)+0.5)*dx
		for j := 0; j < dyi; j++ {
			// Top row of the image is the maximum Y.
			y := bb.Max.Y - (float32(j)+0.5)*dy
			sr.pos[j] = ms3.Vec{X: x, Y: y, Z: z}
		}
		pos := sr.pos[:dyi]
		if normals {
			err := gleval.NormalsCentralDiff(sdf, pos, sr.normals[:dyi], step, userData)
			if err != nil {
				return err
			}
			for j, n := range sr.normals[:dyi] {
				img.Set(i+imgBB.Min.X, j+imgBB.Min.Y, normalColor(n))
			}
			continue
		}
		err := sdf.Evaluate(pos, sr.dist[:dyi], userData)
		if err != nil {
			return err
		}
		for j, d := range sr.dist[:dyi] {
			img.Set(i+imgBB.Min.X, j+imgBB.Min.Y, sr.conv(d))
		}
	}
	return nil
}

// normalColor maps a normal's unit components from [-1,1] to [0,255].
func normalColor(n ms3.Vec) color.Color {
	n = ms3.Unit(n)
	if math32.IsNaN(n.X) || math32.IsNaN(n.Y) || math32.IsNaN(n.Z) {
		return color.Black
	}
	return color.RGBA{
		R: unitToByte(n.X),
		G: unitToByte(n.Y),
		B: unitToByte(n.Z),
		A: 255,
	}
}

func unitToByte(v float32) uint8 {
	return uint8(math32.Round(ms1.Clamp(0.5*v+0.5, 0, 1) * 255))
}
