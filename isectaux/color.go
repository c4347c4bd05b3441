package isectaux

import (
	"image/color"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms1"
	"github.com/soypat/geometry/ms3"
)

var red = color.RGBA{R: 255, A: 255}

// ColorConversionField creates a color conversion for field slices with orange
// for positive values and blue for negative values, banded so the growth of
// the field away from the surface is visible. The zero level set is drawn white.
// characteristicValue sets the band spacing. Returns red for NaN and infinite values.
func ColorConversionField(characteristicValue float32) func(float32) color.Color {
	inv := 1 / characteristicValue
	return func(f float32) color.Color {
		if math32.IsNaN(f) || math32.IsInf(f, 0) {
			return red
		}
		// Compress the quartic growth of algebraic fields.
		d := math32.Log(1+math32.Abs(f)) * inv
		if f < 0 {
			d = -d
		}
		var c ms3.Vec
		if d > 0 {
			c = ms3.Vec{X: 0.9, Y: 0.6, Z: 0.3}
		} else {
			c = ms3.Vec{X: 0.65, Y: 0.85, Z: 1.0}
		}
		c = ms3.Scale(1-math32.Exp(-4*math32.Abs(d)), c)
		c = ms3.Scale(0.8+0.2*math32.Cos(40*d), c)
		edge := 1 - ms1.Clamp(math32.Abs(d)/0.02, 0, 1)
		c = ms3.Add(ms3.Scale(1-edge, c), ms3.Scale(edge, ms3.Vec{X: 1, Y: 1, Z: 1}))
		return color.RGBA{
			R: uint8(ms1.Clamp(c.X, 0, 1) * 255),
			G: uint8(ms1.Clamp(c.Y, 0, 1) * 255),
			B: uint8(ms1.Clamp(c.Z, 0, 1) * 255),
			A: 255,
		}
	}
}

// ColorConversionSign paints the positive side of a field white and the negative side black.
func ColorConversionSign(f float32) color.Color {
	if f < 0 {
		return color.Black
	}
	return color.White
}
