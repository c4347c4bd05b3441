// Package isectaux glues scene configuration, intersection and rendering
// together so that scenes can be previewed with little setup.
package isectaux

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"time"

	"github.com/chewxy/math32"
	"github.com/soypat/isect"
	"github.com/soypat/isect/glbuild"
	"github.com/soypat/isect/gleval"
	"github.com/soypat/isect/glrender"
	"golang.org/x/image/bmp"
)

// Image encodings supported by [RenderConfig.ImageFormat].
const (
	FormatPNG = "png"
	FormatBMP = "bmp"
)

// RenderConfig selects the outputs written by [Render]. At least one output must be set.
type RenderConfig struct {
	// ImageOutput receives the ray cast preview of the whole scene.
	ImageOutput io.Writer
	// ImageFormat is [FormatPNG] (default) or [FormatBMP].
	ImageFormat string
	// SliceOutput receives a PNG of the first implicit field's Z=0 object space slice.
	SliceOutput io.Writer
	// STLOutput receives a marching cubes mesh of the first implicit field in object space.
	STLOutput io.Writer
	// MeshCells is the marching cubes resolution along the longest side of the field bounds.
	MeshCells int
	// GLSLOutput receives the GPU march kernel of the first implicit field.
	GLSLOutput io.Writer
	// UseGPU marches implicit primitives with a compute shader when ray casting
	// and evaluates fields on the GPU when slicing and meshing.
	// The calling goroutine must be locked to its OS thread.
	UseGPU bool
	// Silent disables progress logging to stdout.
	Silent bool
}

// Render is an auxiliary function to aid users in getting setup quickly.
// Ideally users should implement their own rendering functions since applications may vary widely.
func Render(scene *Scene, cfg RenderConfig) (err error) {
	if cfg.ImageOutput == nil && cfg.SliceOutput == nil && cfg.STLOutput == nil && cfg.GLSLOutput == nil {
		return errors.New("Render requires output parameter in config")
	} else if scene == nil || len(scene.Objects) == 0 {
		return errors.New("empty scene")
	}
	needField := cfg.SliceOutput != nil || cfg.STLOutput != nil || cfg.GLSLOutput != nil
	if needField && len(scene.Fields) == 0 {
		return errors.New("slice, mesh and GLSL output require an implicit primitive in scene")
	}
	log := func(args ...any) {
		if !cfg.Silent {
			fmt.Println(args...)
		}
	}
	if cfg.UseGPU {
		terminate, err := gleval.Init1x1GLFW()
		if err != nil {
			return err
		}
		defer terminate()
	}

	if cfg.ImageOutput != nil {
		watch := stopwatch()
		rc, err := glrender.NewRayCaster(glrender.RayCasterConfig{
			Camera:  scene.Camera,
			Samples: scene.Samples,
		})
		if err != nil {
			return err
		}
		objects := scene.Objects
		if cfg.UseGPU {
			var cleanup func()
			objects, cleanup, err = gpuMarchObjects(scene.Objects)
			defer cleanup()
			if err != nil {
				return fmt.Errorf("instantiating GPU march: %w", err)
			}
			log("using GPU march in", watch())
		}
		img := image.NewRGBA(image.Rect(0, 0, scene.Width, scene.Height))
		err = rc.Render(objects, img)
		if err != nil {
			return fmt.Errorf("ray casting: %w", err)
		}
		rays, hits := rc.Stats()
		log("cast", rays, "rays against", len(scene.Objects), "primitives in", watch(), "with", percentUint64(hits, rays), "percent hits")
		watch = stopwatch()
		err = encodeImage(cfg.ImageOutput, cfg.ImageFormat, img)
		if err != nil {
			return fmt.Errorf("encoding image: %w", err)
		}
		log("wrote", outputName(cfg.ImageOutput, "image"), "in", watch())
	}
	if !needField {
		return nil
	}
	field := scene.Fields[0]

	if cfg.GLSLOutput != nil {
		watch := stopwatch()
		_, err = isect.WriteMarchKernel(nil, cfg.GLSLOutput, field)
		if err != nil {
			return fmt.Errorf("writing march kernel: %w", err)
		}
		log("wrote", outputName(cfg.GLSLOutput, "GLSL"), "in", watch())
	}
	if cfg.SliceOutput == nil && cfg.STLOutput == nil {
		return nil
	}

	var sdf interface {
		gleval.SDF3
		Evaluations() uint64
	}
	watch := stopwatch()
	if cfg.UseGPU {
		log("using GPU")
		prog := glbuild.NewDefaultProgrammer()
		source := new(bytes.Buffer)
		_, err = prog.WriteComputeSDF3(source, field)
		if err != nil {
			return err
		}
		invocX, _, _ := prog.ComputeInvocations()
		sdf, err = gleval.NewComputeGPUSDF3(source, field.Bounds(), gleval.ComputeConfig{InvocX: invocX})
		if err != nil {
			return fmt.Errorf("instantiating SDF: %w", err)
		}
	} else {
		log("using CPU")
		sdf, err = gleval.NewCPUSDF3(field)
		if err != nil {
			return fmt.Errorf("instantiating SDF: %w", err)
		}
	}
	log("instantiating evaluation SDF took", watch())
	// GPU evaluators ignore userData, CPU evaluators carry their own pool.
	vp, _ := gleval.GetVecPool(sdf)
	if vp == nil {
		vp = new(gleval.VecPool)
	}

	if cfg.SliceOutput != nil {
		watch = stopwatch()
		err = renderSlice(cfg.SliceOutput, sdf, scene.Height, vp)
		if err != nil {
			return fmt.Errorf("rendering slice: %w", err)
		}
		log("wrote", outputName(cfg.SliceOutput, "slice"), "in", watch())
	}

	if cfg.STLOutput != nil {
		cells := cfg.MeshCells
		if cells <= 0 {
			cells = 64
		}
		watch = stopwatch()
		mc, err := glrender.NewMarchingCubes(sdf, cells)
		if err != nil {
			return err
		}
		before := sdf.Evaluations()
		triangles, err := glrender.RenderAll(mc, vp)
		if err != nil {
			return fmt.Errorf("rendering triangles: %w", err)
		}
		log("evaluated field", sdf.Evaluations()-before, "times and rendered", len(triangles), "triangles in", watch())
		watch = stopwatch()
		_, err = glrender.WriteBinarySTL(cfg.STLOutput, triangles)
		if err != nil {
			return fmt.Errorf("writing STL file: %w", err)
		}
		log("wrote", outputName(cfg.STLOutput, "STL"), "in", watch())
	}
	return nil
}

// gpuMarchObjects returns objects with every implicit surface replaced by a
// [isect.BatchSurface] marched by a compute shader. cleanup releases the
// shader programs and must be called even if err is non-nil.
func gpuMarchObjects(objects []isect.Intersectable) (_ []isect.Intersectable, cleanup func(), err error) {
	var marchers []*gleval.MarchCompute
	cleanup = func() {
		for _, mc := range marchers {
			mc.Delete()
		}
	}
	batched := make([]isect.Intersectable, len(objects))
	copy(batched, objects)
	for i, obj := range objects {
		surf, ok := obj.(*isect.ImplicitSurface)
		if !ok {
			continue
		}
		shader, ok := surf.Field.(glbuild.Shader3D)
		if !ok {
			continue
		}
		prog := glbuild.NewDefaultProgrammer()
		var source bytes.Buffer
		_, err = isect.WriteMarchKernel(prog, &source, shader)
		if err != nil {
			return nil, cleanup, err
		}
		invocX, _, _ := prog.ComputeInvocations()
		var mc *gleval.MarchCompute
		mc, err = gleval.NewComputeGPUMarch(&source, gleval.ComputeConfig{InvocX: invocX})
		if err != nil {
			return nil, cleanup, err
		}
		marchers = append(marchers, mc)
		batched[i], err = isect.NewBatchSurface(surf, mc)
		if err != nil {
			return nil, cleanup, err
		}
	}
	return batched, cleanup, nil
}

func renderSlice(w io.Writer, sdf gleval.SDF3, height int, vp *gleval.VecPool) error {
	bb := sdf.Bounds()
	sz := bb.Size()
	width := int(float32(height) * sz.X / sz.Y)
	if width < 1 {
		width = 1
	}
	sr, err := glrender.NewSliceRenderer(max(height, 65), ColorConversionField(sz.Max()/4))
	if err != nil {
		return err
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	err = sr.Render(sdf, img, 0, vp)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

func encodeImage(w io.Writer, format string, img image.Image) error {
	switch format {
	case "", FormatPNG:
		return png.Encode(w, img)
	case FormatBMP:
		return bmp.Encode(w, img)
	}
	return fmt.Errorf("unknown image format %q", format)
}

func outputName(w io.Writer, fallback string) string {
	if fp, ok := w.(*os.File); ok {
		return fp.Name()
	}
	return fallback
}

func stopwatch() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}

func percentUint64(num, denom uint64) float32 {
	if denom == 0 {
		return 0
	}
	return math32.Trunc(10000*float32(num)/float32(denom)) / 100
}
