package isectaux

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/isect"
)

// NewGeomTRS returns the placement that scales, then rotates about X, Y and Z
// (in that order, angles in degrees) and finally translates a primitive.
func NewGeomTRS(translate, rotDeg, scale ms3.Vec) (isect.Geom, error) {
	if scale.X == 0 || scale.Y == 0 || scale.Z == 0 {
		return isect.Geom{}, fmt.Errorf("zero scale component in %v", scale)
	}
	const deg = math32.Pi / 180
	m := ms3.ScalingMat4(scale)
	m = ms3.MulMat4(ms3.RotationMat4(rotDeg.X*deg, ms3.Vec{X: 1}), m)
	m = ms3.MulMat4(ms3.RotationMat4(rotDeg.Y*deg, ms3.Vec{Y: 1}), m)
	m = ms3.MulMat4(ms3.RotationMat4(rotDeg.Z*deg, ms3.Vec{Z: 1}), m)
	m = ms3.MulMat4(ms3.TranslatingMat4(translate), m)
	return isect.NewGeom(m)
}
