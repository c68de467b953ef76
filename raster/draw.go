package raster

import (
	"image"
	"image/color"
	"math"
)

// face indexes a voxel's six faces: each is a pair of triangles over
// four of its eight corners, with an outward normal axis for shading.
type face struct {
	corners [4]int
	axis    int
	sign    float64
}

var cubeFaces = [6]face{
	{corners: [4]int{0, 1, 3, 2}, axis: 0, sign: -1}, // -x
	{corners: [4]int{4, 6, 7, 5}, axis: 0, sign: +1}, // +x
	{corners: [4]int{0, 4, 5, 1}, axis: 1, sign: -1}, // -y
	{corners: [4]int{2, 3, 7, 6}, axis: 1, sign: +1}, // +y
	{corners: [4]int{0, 2, 6, 4}, axis: 2, sign: -1}, // -z
	{corners: [4]int{1, 5, 7, 3}, axis: 2, sign: +1}, // +z
}

// drawVoxel rasterizes one voxel's six faces into img/zbuf.
func drawVoxel(img *image.RGBA, zbuf []float64, pos vec3, rgb [3]float32, vp mat4, projMin, projMax vec3, light vec3) {
	corners := voxelCorners(pos)
	var screen [8][3]float64 // x, y, depth
	for i, c := range corners {
		n := project(vp, c)
		x, y := ndcToScreen(n, projMin, projMax)
		screen[i] = [3]float64{x, y, (n[2] + 1) / 2}
	}

	for _, f := range cubeFaces {
		var axisDir vec3
		axisDir[f.axis] = f.sign
		shade := math.Abs(dot(axisDir, light)) * lightIntensity
		faceColor := color.RGBA{
			R: clamp8(float64(rgb[0]) * shade * 255),
			G: clamp8(float64(rgb[1]) * shade * 255),
			B: clamp8(float64(rgb[2]) * shade * 255),
			A: 255,
		}

		a, b, c, d := screen[f.corners[0]], screen[f.corners[1]], screen[f.corners[2]], screen[f.corners[3]]
		rasterTriangle(img, zbuf, a, b, c, faceColor)
		rasterTriangle(img, zbuf, a, c, d, faceColor)
	}
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// rasterTriangle fills triangle p0,p1,p2 (screen-space x,y,depth) via
// barycentric scanline, depth-testing against zbuf (closer wins,
// initialized to 1.0/far).
func rasterTriangle(img *image.RGBA, zbuf []float64, p0, p1, p2 [3]float64, col color.RGBA) {
	minX := int(math.Floor(math.Min(p0[0], math.Min(p1[0], p2[0]))))
	maxX := int(math.Ceil(math.Max(p0[0], math.Max(p1[0], p2[0]))))
	minY := int(math.Floor(math.Min(p0[1], math.Min(p1[1], p2[1]))))
	maxY := int(math.Ceil(math.Max(p0[1], math.Max(p1[1], p2[1]))))

	minX, minY = maxInt(minX, 0), maxInt(minY, 0)
	maxX, maxY = minInt(maxX, imgWidth-1), minInt(maxY, imgHeight-1)
	if minX > maxX || minY > maxY {
		return
	}

	area := edge(p0, p1, p2)
	if area == 0 {
		return
	}

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			pt := [3]float64{float64(x) + 0.5, float64(y) + 0.5, 0}
			w0 := edge(p1, p2, pt) / area
			w1 := edge(p2, p0, pt) / area
			w2 := edge(p0, p1, pt) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			depth := w0*p0[2] + w1*p1[2] + w2*p2[2]
			idx := y*imgWidth + x
			if depth < zbuf[idx] {
				zbuf[idx] = depth
				img.SetRGBA(x, y, col)
			}
		}
	}
}

func edge(a, b, c [3]float64) float64 {
	return (c[0]-a[0])*(b[1]-a[1]) - (c[1]-a[1])*(b[0]-a[0])
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
