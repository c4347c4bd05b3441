package isectaux

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/isect"
	"github.com/soypat/isect/glbuild"
	"github.com/soypat/isect/gleval"
	"github.com/soypat/isect/glrender"
)

// Scene defaults applied by [ParseConfig] to omitted values.
const (
	DefaultWidth   = 256
	DefaultHeight  = 256
	DefaultSamples = 1
	DefaultFOV     = 40
)

// Primitive kinds accepted in a scene configuration.
const (
	KindBox        = "box"
	KindSphere     = "sphere"
	KindTanglecube = "tanglecube"
	KindQuartic    = "quartic"
)

// Vec3 is a JSON friendly 3-vector written as [x, y, z].
type Vec3 [3]float32

func (v Vec3) vec() ms3.Vec { return ms3.Vec{X: v[0], Y: v[1], Z: v[2]} }

// CameraCfg is the JSON form of a [glrender.Camera].
type CameraCfg struct {
	Origin Vec3 `json:"origin"`
	LookAt Vec3 `json:"lookAt"`
	Up     Vec3 `json:"up,omitempty"`
	// FOV is the vertical field of view in degrees.
	FOV float32 `json:"fov,omitempty"`
}

// PrimitiveCfg places one primitive of the given Kind in the scene.
// Its transform scales, then rotates about X, Y and Z in turn, then translates.
type PrimitiveCfg struct {
	Kind      string `json:"kind"`
	Translate Vec3   `json:"translate"`
	RotateDeg Vec3   `json:"rotateDeg"`
	// Scale defaults to 1 on axes left at zero.
	Scale Vec3 `json:"scale,omitempty"`
	// Params holds the quartic's K, A and B. Omitted means the default quartic.
	Params *Vec3 `json:"params,omitempty"`
}

// Config is a JSON scene description. See [ParseConfig] for defaults.
type Config struct {
	Width      int            `json:"width,omitempty"`
	Height     int            `json:"height,omitempty"`
	Samples    int            `json:"samples,omitempty"`
	Camera     CameraCfg      `json:"camera"`
	Primitives []PrimitiveCfg `json:"primitives"`
}

// FieldShader is an implicit field usable for marching, batch evaluation and GLSL generation.
type FieldShader interface {
	isect.Field
	gleval.SDF3
	glbuild.Shader3D
}

// Scene is a built configuration ready for rendering.
type Scene struct {
	Width, Height, Samples int
	Camera                 glrender.Camera
	Objects                []isect.Intersectable
	// Fields lists the object space field of every implicit primitive in Objects order.
	Fields []FieldShader
}

// LoadConfig reads a JSON scene configuration from the file at path.
func LoadConfig(path string) (*Config, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	cfg, err := ParseConfig(fp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes a JSON scene configuration and applies defaults.
func ParseConfig(r io.Reader) (*Config, error) {
	var cfg Config
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultHeight
	}
	if cfg.Samples <= 0 {
		cfg.Samples = DefaultSamples
	}
	if cfg.Camera.FOV <= 0 {
		cfg.Camera.FOV = DefaultFOV
	}
	if len(cfg.Primitives) == 0 {
		return nil, errors.New("config has no primitives")
	}
	return &cfg, nil
}

// Build validates and constructs the runtime scene.
func (cfg *Config) Build() (*Scene, error) {
	scene := &Scene{
		Width:   cfg.Width,
		Height:  cfg.Height,
		Samples: cfg.Samples,
		Camera: glrender.Camera{
			Origin: cfg.Camera.Origin.vec(),
			LookAt: cfg.Camera.LookAt.vec(),
			Up:     cfg.Camera.Up.vec(),
			FOV:    cfg.Camera.FOV,
		},
	}
	var errs []error
	for i, pc := range cfg.Primitives {
		obj, field, err := pc.Build()
		if err != nil {
			errs = append(errs, fmt.Errorf("primitive %d (%s): %w", i, pc.Kind, err))
			continue
		}
		scene.Objects = append(scene.Objects, obj)
		if field != nil {
			scene.Fields = append(scene.Fields, field)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return scene, nil
}

// Build constructs the primitive and, for implicit kinds, returns its field.
func (pc PrimitiveCfg) Build() (isect.Intersectable, FieldShader, error) {
	sc := pc.Scale
	for i := range sc {
		if sc[i] == 0 {
			sc[i] = 1
		}
	}
	g, err := NewGeomTRS(pc.Translate.vec(), pc.RotateDeg.vec(), sc.vec())
	if err != nil {
		return nil, nil, err
	}
	if pc.Params != nil && pc.Kind != KindQuartic {
		return nil, nil, errors.New("params only supported for quartic")
	}
	switch pc.Kind {
	case KindBox:
		return isect.NewBox(g), nil, nil
	case KindSphere:
		return isect.NewSphere(g), nil, nil
	case KindTanglecube:
		field := &isect.Tanglecube{}
		return isect.NewImplicitSurface(g, field), field, nil
	case KindQuartic:
		field := isect.DefaultQuartic()
		if pc.Params != nil {
			field, err = isect.NewQuartic(pc.Params[0], pc.Params[1], pc.Params[2])
			if err != nil {
				return nil, nil, err
			}
		}
		return isect.NewImplicitSurface(g, field), field, nil
	}
	return nil, nil, fmt.Errorf("unknown primitive kind %q", pc.Kind)
}
