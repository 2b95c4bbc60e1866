package vision

import (
	"image"
	"math"
	"sort"
)

// keypoint is a detected corner with its FAST score and orientation.
type keypoint struct {
	x, y  int
	score int
	angle float64
}

// circle16 is the Bresenham circle of radius 3 used by FAST.
var circle16 = [16][2]int{
	{0, -3}, {1, -3}, {2, -2}, {3, -1}, {3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1}, {-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

const (
	fastArc = 9
	// patchRadius bounds the orientation patch; descriptorBorder keeps every
	// rotated sampling point of the descriptor inside the image.
	patchRadius      = 15
	descriptorBorder = 20
)

// detectFAST returns FAST-9 corners that survive 3x3 non-maximum suppression,
// strongest first, at most limit of them. Corners closer than descriptorBorder
// to the image edge are skipped.
func detectFAST(g *image.Gray, threshold, limit int) []keypoint {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if w <= 2*descriptorBorder || h <= 2*descriptorBorder {
		return nil
	}
	scores := make([]int, w*h)
	var offs [16]int
	for i, c := range circle16 {
		offs[i] = c[1]*g.Stride + c[0]
	}
	for y := descriptorBorder; y < h-descriptorBorder; y++ {
		for x := descriptorBorder; x < w-descriptorBorder; x++ {
			p := y*g.Stride + x
			if s := fastScore(g.Pix, p, &offs, threshold); s > 0 {
				scores[y*w+x] = s
			}
		}
	}
	var kps []keypoint
	for y := descriptorBorder; y < h-descriptorBorder; y++ {
		for x := descriptorBorder; x < w-descriptorBorder; x++ {
			s := scores[y*w+x]
			if s == 0 || !isLocalMax(scores, w, x, y, s) {
				continue
			}
			kps = append(kps, keypoint{x: x, y: y, score: s})
		}
	}
	sort.SliceStable(kps, func(i, j int) bool { return kps[i].score > kps[j].score })
	if limit > 0 && len(kps) > limit {
		kps = kps[:limit]
	}
	return kps
}

// fastScore returns 0 when p is not a corner, else the sum of absolute
// differences beyond threshold over the circle.
func fastScore(pix []byte, p int, offs *[16]int, t int) int {
	c := int(pix[p])
	hi, lo := c+t, c-t
	// quick rejection on the four compass points
	n := 0
	for _, k := range [4]int{0, 4, 8, 12} {
		v := int(pix[p+offs[k]])
		if v > hi || v < lo {
			n++
		}
	}
	if n < 2 {
		return 0
	}
	var state [16]int8
	for k := 0; k < 16; k++ {
		v := int(pix[p+offs[k]])
		switch {
		case v > hi:
			state[k] = 1
		case v < lo:
			state[k] = -1
		}
	}
	if !hasArc(&state, 1) && !hasArc(&state, -1) {
		return 0
	}
	score := 0
	for k := 0; k < 16; k++ {
		d := int(pix[p+offs[k]]) - c
		if d < 0 {
			d = -d
		}
		if d > t {
			score += d - t
		}
	}
	return score
}

func hasArc(state *[16]int8, want int8) bool {
	run := 0
	for k := 0; k < 16+fastArc-1; k++ {
		if state[k%16] == want {
			run++
			if run >= fastArc {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

// isLocalMax reports whether s is the strict maximum of its 3x3 neighbourhood.
// Equal neighbours are resolved towards the earlier raster position.
func isLocalMax(scores []int, w, x, y, s int) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			n := scores[(y+dy)*w+x+dx]
			if n > s {
				return false
			}
			if n == s && (dy < 0 || (dy == 0 && dx < 0)) {
				return false
			}
		}
	}
	return true
}

// orientation computes the intensity centroid angle of a circular patch.
func orientation(g *image.Gray, x, y int) float64 {
	var m01, m10 int
	r2 := patchRadius * patchRadius
	for dy := -patchRadius; dy <= patchRadius; dy++ {
		row := (y+dy)*g.Stride + x
		for dx := -patchRadius; dx <= patchRadius; dx++ {
			if dx*dx+dy*dy > r2 {
				continue
			}
			v := int(g.Pix[row+dx])
			m10 += dx * v
			m01 += dy * v
		}
	}
	return math.Atan2(float64(m01), float64(m10))
}
