package glrender

import (
	"errors"
	"image/color"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/isect"
)

// Camera is a pinhole camera looking from Origin towards LookAt.
type Camera struct {
	Origin ms3.Vec
	LookAt ms3.Vec
	// Up is the approximate up direction. Zero value means +Y.
	Up ms3.Vec
	// FOV is the vertical field of view in degrees.
	FOV float32
}

type cameraBasis struct {
	origin, forward, right, up ms3.Vec
	tanHalf                    float32
}

func (c Camera) basis() (cameraBasis, error) {
	up := c.Up
	if up == (ms3.Vec{}) {
		up = ms3.Vec{Y: 1}
	}
	forward := ms3.Sub(c.LookAt, c.Origin)
	if ms3.Norm(forward) == 0 {
		return cameraBasis{}, errors.New("camera origin and look-at point coincide")
	} else if c.FOV <= 0 || c.FOV >= 180 {
		return cameraBasis{}, errors.New("camera field of view must be in (0, 180) degrees")
	}
	forward = ms3.Unit(forward)
	right := ms3.Cross(forward, up)
	if ms3.Norm(right) < 1e-6 {
		return cameraBasis{}, errors.New("camera up vector parallel to view direction")
	}
	right = ms3.Unit(right)
	return cameraBasis{
		origin:  c.Origin,
		forward: forward,
		right:   right,
		up:      ms3.Cross(right, forward),
		tanHalf: math32.Tan(c.FOV * math32.Pi / 360),
	}, nil
}

// ray returns the unit ray through the image plane point (sx, sy) given in
// pixel units of a w by h image, with y growing downwards.
func (cb *cameraBasis) ray(sx, sy float32, w, h int) isect.Ray {
	aspect := float32(w) / float32(h)
	ndcX := (2*sx/float32(w) - 1) * cb.tanHalf * aspect
	ndcY := (1 - 2*sy/float32(h)) * cb.tanHalf
	dir := ms3.Add(cb.forward, ms3.Add(ms3.Scale(ndcX, cb.right), ms3.Scale(ndcY, cb.up)))
	return isect.Ray{Origin: cb.origin, Direction: ms3.Unit(dir)}
}

// RayCasterConfig configures a [RayCaster].
type RayCasterConfig struct {
	Camera Camera
	// Samples is the amount of jittered rays cast per pixel. Zero means one centered ray.
	Samples int
	// Light is the direction towards a distant light. Zero value means towards the camera.
	Light ms3.Vec
	// Background is painted where no object is hit. Nil means black.
	Background color.Color
	// Palette colors objects by index, wrapping around. Nil means a default palette.
	Palette []color.RGBA
}

// RayCaster renders previews of a list of primitives with primary rays only.
type RayCaster struct {
	basis   cameraBasis
	samples int
	light   ms3.Vec
	bg      color.Color
	palette []color.RGBA
	// Statistics.
	rays, hits uint64
}

var defaultPalette = []color.RGBA{
	{R: 230, G: 120, B: 60, A: 255},
	{R: 90, G: 170, B: 230, A: 255},
	{R: 120, G: 200, B: 110, A: 255},
	{R: 220, G: 200, B: 80, A: 255},
	{R: 190, G: 110, B: 200, A: 255},
}

// NewRayCaster validates cfg and returns a ready to use [RayCaster].
func NewRayCaster(cfg RayCasterConfig) (*RayCaster, error) {
	basis, err := cfg.Camera.basis()
	if err != nil {
		return nil, err
	}
	if cfg.Samples < 0 {
		return nil, errors.New("negative sample count")
	}
	light := cfg.Light
	if light == (ms3.Vec{}) {
		light = ms3.Scale(-1, basis.forward)
	}
	rc := &RayCaster{
		basis:   basis,
		samples: max(cfg.Samples, 1),
		light:   ms3.Unit(light),
		bg:      cfg.Background,
		palette: cfg.Palette,
	}
	if rc.bg == nil {
		rc.bg = color.Black
	}
	if len(rc.palette) == 0 {
		rc.palette = defaultPalette
	}
	return rc, nil
}

// Render casts rays through every pixel of img and shades the nearest hit
// with a diffuse term. Objects implementing [isect.BatchIntersectable] are
// intersected one sample pass of the whole image at a time.
func (rc *RayCaster) Render(objects []isect.Intersectable, img setImage) error {
	imgBB := img.Bounds()
	w, h := imgBB.Dx(), imgBB.Dy()
	if w == 0 || h == 0 {
		return errors.New("empty image")
	}
	bgr, bgg, bgb, _ := rc.bg.RGBA()
	bg := [3]float32{float32(bgr >> 8), float32(bgg >> 8), float32(bgb >> 8)}
	n := w * h
	rays := make([]isect.Ray, n)
	hits := make([]isect.Hit, n)
	oks := make([]bool, n)
	nearest := make([]isect.Hit, n)
	nearestIdx := make([]int, n)
	acc := make([][3]float32, n)
	for s := 0; s < rc.samples; s++ {
		for j := 0; j < h; j++ {
			for i := 0; i < w; i++ {
				u, v := float32(0.5), float32(0.5)
				if rc.samples > 1 {
					seed := Hash(uint32(j*w+i)*uint32(rc.samples) + uint32(s))
					u = hashUnit(seed)
					v = hashUnit(Hash(seed))
				}
				rays[j*w+i] = rc.basis.ray(float32(i)+u, float32(j)+v, w, h)
				nearestIdx[j*w+i] = -1
			}
		}
		// Nearest hit per ray. Ties go to the earlier object.
		for oi, obj := range objects {
			if batch, isBatch := obj.(isect.BatchIntersectable); isBatch {
				err := batch.IntersectBatch(rays, hits, oks)
				if err != nil {
					return err
				}
			} else {
				for k, r := range rays {
					hits[k], oks[k] = obj.Intersect(r)
				}
			}
			for k, ok := range oks {
				if ok && (nearestIdx[k] < 0 || hits[k].T < nearest[k].T) {
					nearest[k], nearestIdx[k] = hits[k], oi
				}
			}
		}
		rc.rays += uint64(n)
		for k, idx := range nearestIdx {
			if idx < 0 {
				acc[k][0] += bg[0]
				acc[k][1] += bg[1]
				acc[k][2] += bg[2]
				continue
			}
			rc.hits++
			base := rc.palette[idx%len(rc.palette)]
			shade := 0.15 + 0.85*math32.Abs(ms3.Dot(nearest[k].Normal, rc.light))
			acc[k][0] += shade * float32(base.R)
			acc[k][1] += shade * float32(base.G)
			acc[k][2] += shade * float32(base.B)
		}
	}
	inv := 1 / float32(rc.samples)
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			a := acc[j*w+i]
			img.Set(i+imgBB.Min.X, j+imgBB.Min.Y, color.RGBA{
				R: uint8(math32.Min(255, a[0]*inv)),
				G: uint8(math32.Min(255, a[1]*inv)),
				B: uint8(math32.Min(255, a[2]*inv)),
				A: 255,
			})
		}
	}
	return nil
}

// Stats returns the total rays cast and rays that hit an object during the renderer's lifetime.
func (rc *RayCaster) Stats() (rays, hits uint64) {
	return rc.rays, rc.hits
}

// Hash is an integer mixing function for deriving per-pixel random sequences
// from pixel indices.
func Hash(a uint32) uint32 {
	a = (a + 0x7ed55d16) + (a << 12)
	a = (a ^ 0xc761c23c) ^ (a >> 19)
	a = (a + 0x165667b1) + (a << 5)
	a = (a + 0xd3a2646c) ^ (a << 9)
	a = (a + 0xfd7046c5) + (a << 3)
	a = (a ^ 0xb55a4f09) ^ (a >> 16)
	return a
}

// hashUnit maps h to [0,1).
func hashUnit(h uint32) float32 {
	return float32(h>>8) / (1 << 24)
}
