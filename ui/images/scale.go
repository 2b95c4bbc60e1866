// Package images holds the preview helpers shared by the Tk views.
package images

import (
	"bytes"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// EncodePNG encodes an image to PNG bytes. Errors are ignored and may return an empty slice.
func EncodePNG(img image.Image) []byte {
	if img == nil {
		return nil
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// ScaleToFit returns src scaled down to fit within maxW x maxH, preserving
// aspect ratio, and the factor applied. Sources that already fit are
// returned unchanged with factor 1.
func ScaleToFit(src image.Image, maxW, maxH int) (image.Image, float64) {
	if src == nil {
		return nil, 1
	}
	b := src.Bounds()
	if b.Dx() <= maxW && b.Dy() <= maxH {
		return src, 1
	}
	maxW, maxH = max(maxW, 1), max(maxH, 1)
	dst := imaging.Fit(src, maxW, maxH, imaging.Box)
	return dst, float64(dst.Bounds().Dx()) / float64(b.Dx())
}
