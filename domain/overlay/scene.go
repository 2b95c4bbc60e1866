package overlay

import (
	"image"
	"image/color"
	"math"
	"sort"

	"golang.org/x/image/vector"
)

// Vec3 is a model-space position.
type Vec3 [3]float32

// Scene is a triangle soup normalized to fit the unit cube around the origin.
type Scene struct {
	Triangles [][3]Vec3
}

// NewScene centres and scales triangles into [-1,1]^3.
func NewScene(tris [][3]Vec3) *Scene {
	if len(tris) == 0 {
		return &Scene{}
	}
	lo := Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	hi := Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
	for _, t := range tris {
		for _, v := range t {
			for k := 0; k < 3; k++ {
				lo[k] = min(lo[k], v[k])
				hi[k] = max(hi[k], v[k])
			}
		}
	}
	var c Vec3
	extent := float32(0)
	for k := 0; k < 3; k++ {
		c[k] = (lo[k] + hi[k]) / 2
		extent = max(extent, (hi[k]-lo[k])/2)
	}
	if extent == 0 {
		extent = 1
	}
	out := make([][3]Vec3, len(tris))
	for i, t := range tris {
		for j, v := range t {
			for k := 0; k < 3; k++ {
				out[i][j][k] = (v[k] - c[k]) / extent
			}
		}
	}
	return &Scene{Triangles: out}
}

var (
	sceneBackground = color.RGBA{24, 24, 28, 255}
	sceneBase       = [3]float64{90, 170, 230}
	lightDir        = [3]float64{0.3, 0.5, 0.81}
)

// Render draws the scene rotated by angleDeg around the vertical axis, with
// a fixed downward tilt, into a size x size image. Triangles are flat shaded
// and painted back to front.
func (s *Scene) Render(angleDeg float64, size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = sceneBackground.R, sceneBackground.G, sceneBackground.B, 255
	}
	if s == nil || len(s.Triangles) == 0 {
		return img
	}
	sy, cy := math.Sincos(angleDeg * math.Pi / 180)
	const tilt = 20 * math.Pi / 180
	sx, cx := math.Sincos(tilt)
	rot := func(v Vec3) [3]float64 {
		x, y, z := float64(v[0]), float64(v[1]), float64(v[2])
		x, z = cy*x+sy*z, -sy*x+cy*z
		y, z = cx*y-sx*z, sx*y+cx*z
		return [3]float64{x, y, z}
	}
	type face struct {
		p     [3][3]float64
		depth float64
		shade float64
	}
	faces := make([]face, 0, len(s.Triangles))
	for _, t := range s.Triangles {
		var f face
		for j := range t {
			f.p[j] = rot(t[j])
			f.depth += f.p[j][2]
		}
		n := cross(sub(f.p[1], f.p[0]), sub(f.p[2], f.p[0]))
		l := math.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
		if l == 0 {
			continue
		}
		f.shade = 0.3 + 0.7*math.Abs((n[0]*lightDir[0]+n[1]*lightDir[1]+n[2]*lightDir[2])/l)
		faces = append(faces, f)
	}
	sort.Slice(faces, func(i, j int) bool { return faces[i].depth < faces[j].depth })

	half := float32(size) / 2
	scale := half * 0.55
	r := vector.NewRasterizer(size, size)
	for _, f := range faces {
		r.Reset(size, size)
		for j, p := range f.p {
			x, y := half+float32(p[0])*scale, half-float32(p[1])*scale
			if j == 0 {
				r.MoveTo(x, y)
			} else {
				r.LineTo(x, y)
			}
		}
		r.ClosePath()
		c := color.RGBA{
			R: uint8(sceneBase[0] * f.shade),
			G: uint8(sceneBase[1] * f.shade),
			B: uint8(sceneBase[2] * f.shade),
			A: 255,
		}
		r.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{})
	}
	return img
}

func sub(a, b [3]float64) [3]float64 { return [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{a[1]*b[2] - a[2]*b[1], a[2]*b[0] - a[0]*b[2], a[0]*b[1] - a[1]*b[0]}
}
