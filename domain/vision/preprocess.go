package vision

import (
	"image"

	"github.com/disintegration/imaging"
)

// Downscale returns img resized so that its longer side does not exceed
// maxSide, preserving aspect ratio. Larger frames are never rejected. The
// second return value is the factor that maps downscaled coordinates back to
// the source.
func Downscale(img image.Image, maxSide int) (image.Image, float64) {
	if img == nil {
		return nil, 1
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if maxSide <= 0 || max(w, h) <= maxSide {
		return img, 1
	}
	if h > w {
		out := imaging.Resize(img, 0, maxSide, imaging.Linear)
		return out, float64(h) / float64(out.Bounds().Dy())
	}
	out := imaging.Resize(img, maxSide, 0, imaging.Linear)
	return out, float64(w) / float64(out.Bounds().Dx())
}

// Luminance converts img into an 8-bit single channel image using integer
// Rec.601 weights. The result always has its origin at (0,0).
func Luminance(img image.Image) *image.Gray {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < h; y++ {
			copy(out.Pix[y*out.Stride:y*out.Stride+w], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
		}
	case *image.RGBA:
		lumaRows(out, src.Pix, src.Stride, src.PixOffset(b.Min.X, b.Min.Y), w, h)
	case *image.NRGBA:
		lumaRows(out, src.Pix, src.Stride, src.PixOffset(b.Min.X, b.Min.Y), w, h)
	default:
		for y := 0; y < h; y++ {
			row := out.Pix[y*out.Stride:]
			for x := 0; x < w; x++ {
				r, g, bb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				row[x] = byte((77*(r>>8) + 150*(g>>8) + 29*(bb>>8)) >> 8)
			}
		}
	}
	return out
}

func lumaRows(out *image.Gray, pix []byte, stride, start, w, h int) {
	for y := 0; y < h; y++ {
		src := pix[start+y*stride : start+y*stride+w*4]
		dst := out.Pix[y*out.Stride : y*out.Stride+w]
		for x := 0; x < w; x++ {
			i := x * 4
			dst[x] = byte((77*uint32(src[i]) + 150*uint32(src[i+1]) + 29*uint32(src[i+2])) >> 8)
		}
	}
}
