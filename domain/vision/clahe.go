package vision

import "image"

// CLAHE performs contrast limited adaptive histogram equalization on gray.
// The image is split into a tiles x tiles grid; each tile's histogram is
// clipped at clipLimit times the uniform bin height and the excess is
// redistributed before building the tile's mapping. Output pixels blend the
// mappings of the four nearest tile centres bilinearly.
func CLAHE(gray *image.Gray, clipLimit float64, tiles int) *image.Gray {
	if gray == nil {
		return nil
	}
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}
	if tiles <= 0 {
		tiles = 8
	}
	tx := min(tiles, max(1, w/8))
	ty := min(tiles, max(1, h/8))
	tileW := (w + tx - 1) / tx
	tileH := (h + ty - 1) / ty

	luts := make([][256]byte, tx*ty)
	var hist [256]int
	for j := 0; j < ty; j++ {
		for i := 0; i < tx; i++ {
			x0, y0 := i*tileW, j*tileH
			x1, y1 := min(x0+tileW, w), min(y0+tileH, h)
			if x0 >= x1 || y0 >= y1 {
				// trailing tile fully outside the image; reuse neighbour
				if i > 0 {
					luts[j*tx+i] = luts[j*tx+i-1]
				} else if j > 0 {
					luts[j*tx+i] = luts[(j-1)*tx+i]
				}
				continue
			}
			for k := range hist {
				hist[k] = 0
			}
			for y := y0; y < y1; y++ {
				row := gray.Pix[gray.PixOffset(b.Min.X+x0, b.Min.Y+y):]
				for x := 0; x < x1-x0; x++ {
					hist[row[x]]++
				}
			}
			area := (x1 - x0) * (y1 - y0)
			luts[j*tx+i] = tileMapping(&hist, area, clipLimit)
		}
	}

	for y := 0; y < h; y++ {
		// position relative to tile centres
		fy := (float64(y)+0.5)/float64(tileH) - 0.5
		j0 := int(floor(fy))
		wy := fy - float64(j0)
		j1 := j0 + 1
		j0 = clampInt(j0, 0, ty-1)
		j1 = clampInt(j1, 0, ty-1)
		src := gray.Pix[gray.PixOffset(b.Min.X, b.Min.Y+y):]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)/float64(tileW) - 0.5
			i0 := int(floor(fx))
			wx := fx - float64(i0)
			i1 := i0 + 1
			i0 = clampInt(i0, 0, tx-1)
			i1 = clampInt(i1, 0, tx-1)
			v := src[x]
			top := (1-wx)*float64(luts[j0*tx+i0][v]) + wx*float64(luts[j0*tx+i1][v])
			bot := (1-wx)*float64(luts[j1*tx+i0][v]) + wx*float64(luts[j1*tx+i1][v])
			dst[x] = byte((1-wy)*top + wy*bot + 0.5)
		}
	}
	return out
}

// tileMapping clips hist, redistributes the excess and returns the CDF lookup.
func tileMapping(hist *[256]int, area int, clipLimit float64) [256]byte {
	limit := int(clipLimit * float64(area) / 256)
	if limit < 1 {
		limit = 1
	}
	excess := 0
	for k, c := range hist {
		if c > limit {
			excess += c - limit
			hist[k] = limit
		}
	}
	inc := excess / 256
	rem := excess - inc*256
	for k := range hist {
		hist[k] += inc
	}
	if rem > 0 {
		step := max(1, 256/rem)
		for k := 0; k < 256 && rem > 0; k += step {
			hist[k]++
			rem--
		}
	}
	var lut [256]byte
	scale := 255.0 / float64(area)
	sum := 0
	for k, c := range hist {
		sum += c
		v := float64(sum) * scale
		if v > 255 {
			v = 255
		}
		lut[k] = byte(v + 0.5)
	}
	return lut
}

func floor(v float64) float64 {
	i := float64(int(v))
	if v < 0 && i != v {
		return i - 1
	}
	return i
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
