package images

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"github.com/soocke/marker-lens-go/domain/vision"
)

// OutlineColor is the stroke used for recognized markers.
var OutlineColor = color.RGBA{R: 0x10, G: 0xb9, B: 0x81, A: 0xff}

// DrawOutline returns a copy of img with the closed quadrilateral quad
// stroked on top. Points are in img coordinates multiplied by scale.
func DrawOutline(img image.Image, quad [4]vision.Point, scale, width float64, c color.Color) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	if width <= 0 {
		width = 2
	}
	r := vector.NewRasterizer(b.Dx(), b.Dy())
	src := image.NewUniform(c)
	for i := range quad {
		p, q := quad[i], quad[(i+1)%len(quad)]
		x0, y0 := p.X*scale, p.Y*scale
		x1, y1 := q.X*scale, q.Y*scale
		dx, dy := x1-x0, y1-y0
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		// half-width normal
		nx, ny := -dy/l*width/2, dx/l*width/2
		r.Reset(b.Dx(), b.Dy())
		r.MoveTo(float32(x0+nx), float32(y0+ny))
		r.LineTo(float32(x1+nx), float32(y1+ny))
		r.LineTo(float32(x1-nx), float32(y1-ny))
		r.LineTo(float32(x0-nx), float32(y0-ny))
		r.ClosePath()
		r.Draw(out, out.Bounds(), src, image.Point{})
	}
	return out
}
