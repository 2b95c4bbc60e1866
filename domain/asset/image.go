package asset

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// LoadImage opens locator through src and decodes it as a marker reference
// image. PNG, JPEG, GIF, BMP and WebP are supported.
func LoadImage(ctx context.Context, src Source, locator string) (image.Image, error) {
	rc, err := src.Open(ctx, locator)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	img, _, err := image.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("asset: decode %s: %w", locator, err)
	}
	return img, nil
}
