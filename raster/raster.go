// Package raster is the software voxel rasterizer: it turns a plot's
// decoded build data into a preview PNG via a fixed spherical camera,
// flat per-face shading, and a barycentric scanline rasterizer with a
// depth buffer. It is pure CPU and safe to run on a worker pool,
// never on the I/O executor.
package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/lodworld/tileworker/codec"
	"github.com/lodworld/tileworker/colorlib"
)

const (
	imgWidth      = 512
	imgHeight     = 512
	fovDegrees    = 50.0
	nearPlane     = 0.1
	farPlane      = 1000.0
	lightIntensity = 1.0
)

var backgroundColor = color.RGBA{27, 24, 24, 255}

type vec3 = [3]float64
type vec4 = [4]float64

// litVoxel is a decoded voxel with its resolved RGB color, ready for
// projection and shading.
type litVoxel struct {
	pos   vec3
	color [3]float32
}

// Render decodes build and produces PNG bytes at the encoder's best
// compression setting. An empty (voxel-less) build renders a
// background-only image.
func Render(build []byte) ([]byte, error) {
	_, voxels, err := codec.DecodeBuild(build)
	if err != nil {
		return nil, err
	}

	lit := make([]litVoxel, 0, len(voxels))
	for _, v := range voxels {
		rgb, ok := colorlib.Get(int(v.Color))
		if !ok {
			continue
		}
		lit = append(lit, litVoxel{pos: vec3{float64(v.X), float64(v.Y), float64(v.Z)}, color: rgb})
	}

	img := image.NewRGBA(image.Rect(0, 0, imgWidth, imgHeight))
	fillBackground(img)

	if len(lit) == 0 {
		return encodePNG(img)
	}

	min, max := bounds(lit)
	vp := buildViewProjection(min, max)
	projMin, projMax := ndcBounds(lit, vp)

	zbuf := make([]float64, imgWidth*imgHeight)
	for i := range zbuf {
		zbuf[i] = 1.0
	}

	light := normalize(vec3{
		math.Cos(43 * math.Pi / 180),
		math.Cos(45 * math.Pi / 180),
		math.Cos(47 * math.Pi / 180),
	})

	for _, v := range lit {
		drawVoxel(img, zbuf, v.pos, v.color, vp, projMin, projMax, light)
	}

	return encodePNG(img)
}

func fillBackground(img *image.RGBA) {
	for y := 0; y < imgHeight; y++ {
		for x := 0; x < imgWidth; x++ {
			img.SetRGBA(x, y, backgroundColor)
		}
	}
}

func encodePNG(img *image.RGBA) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func bounds(voxels []litVoxel) (vec3, vec3) {
	min, max := voxels[0].pos, voxels[0].pos
	for _, v := range voxels[1:] {
		for d := 0; d < 3; d++ {
			if v.pos[d] < min[d] {
				min[d] = v.pos[d]
			}
			if v.pos[d] > max[d] {
				max[d] = v.pos[d]
			}
		}
	}
	for d := 0; d < 3; d++ {
		max[d] += 1 // voxel extent
	}
	return min, max
}
