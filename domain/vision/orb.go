package vision

import (
	"fmt"
	"image"
	"math"
	"math/bits"
	"math/rand"
	"sync"
)

const (
	descriptorBits  = 256
	descriptorWords = descriptorBits / 64
	angleBins       = 30
	patternSeed     = 0x0b51f
	patternClip     = 13
)

type descriptor [descriptorWords]uint64

func hamming(a, b *descriptor) int {
	d := 0
	for i := range a {
		d += bits.OnesCount64(a[i] ^ b[i])
	}
	return d
}

// samplePair is one BRIEF intensity comparison.
type samplePair struct{ x1, y1, x2, y2 int }

var (
	patternOnce sync.Once
	// steered holds the sampling pattern rotated into each angle bin.
	steered [angleBins][descriptorBits]samplePair
)

func buildPatterns() {
	rng := rand.New(rand.NewSource(patternSeed))
	sigma := float64(2*patchRadius+1) / 5
	draw := func() float64 {
		v := rng.NormFloat64() * sigma
		return math.Max(-patternClip, math.Min(patternClip, v))
	}
	var base [descriptorBits][4]float64
	for i := range base {
		base[i] = [4]float64{draw(), draw(), draw(), draw()}
	}
	for bin := 0; bin < angleBins; bin++ {
		a := float64(bin) * 2 * math.Pi / angleBins
		sin, cos := math.Sincos(a)
		for i, p := range base {
			steered[bin][i] = samplePair{
				x1: int(math.Round(cos*p[0] - sin*p[1])),
				y1: int(math.Round(sin*p[0] + cos*p[1])),
				x2: int(math.Round(cos*p[2] - sin*p[3])),
				y2: int(math.Round(sin*p[2] + cos*p[3])),
			}
		}
	}
}

func angleBin(a float64) int {
	if a < 0 {
		a += 2 * math.Pi
	}
	bin := int(math.Round(a*angleBins/(2*math.Pi))) % angleBins
	return bin
}

// boxBlur5 smooths g with a 5x5 mean filter using an integral image.
func boxBlur5(g *image.Gray) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	integral := make([]int, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		rowSum := 0
		for x := 0; x < w; x++ {
			rowSum += int(g.Pix[y*g.Stride+x])
			integral[(y+1)*(w+1)+x+1] = integral[y*(w+1)+x+1] + rowSum
		}
	}
	for y := 0; y < h; y++ {
		y0, y1 := max(0, y-2), min(h, y+3)
		for x := 0; x < w; x++ {
			x0, x1 := max(0, x-2), min(w, x+3)
			sum := integral[y1*(w+1)+x1] - integral[y0*(w+1)+x1] - integral[y1*(w+1)+x0] + integral[y0*(w+1)+x0]
			out.Pix[y*out.Stride+x] = byte(sum / ((x1 - x0) * (y1 - y0)))
		}
	}
	return out
}

// orbFeatures is the pure-Go Features implementation.
type orbFeatures struct {
	points []Point
	angles []float64
	desc   []descriptor
}

func (f *orbFeatures) Len() int {
	if f == nil {
		return 0
	}
	return len(f.points)
}

func (f *orbFeatures) Point(i int) Point { return f.points[i] }

func (f *orbFeatures) Close() error {
	if f != nil {
		f.points, f.angles, f.desc = nil, nil, nil
	}
	return nil
}

// ORBOptions tunes the pure-Go engine.
type ORBOptions struct {
	FastThreshold int
	ClipLimit     float64
	Tiles         int
	// Seed drives RANSAC sampling. Each fit reseeds, so identical inputs
	// always produce identical models.
	Seed int64
}

// ORBEngine is a dependency-free Engine: CLAHE enhancement, FAST-9 corners
// with intensity-centroid orientation, steered 256-bit BRIEF descriptors,
// brute-force Hamming matching and RANSAC homography fitting.
type ORBEngine struct {
	opts ORBOptions
}

// NewORBEngine returns an engine with zero option fields replaced by defaults.
func NewORBEngine(opts ORBOptions) *ORBEngine {
	if opts.FastThreshold <= 0 {
		opts.FastThreshold = 20
	}
	if opts.ClipLimit <= 0 {
		opts.ClipLimit = 2.0
	}
	if opts.Tiles <= 0 {
		opts.Tiles = 8
	}
	if opts.Seed == 0 {
		opts.Seed = 1
	}
	patternOnce.Do(buildPatterns)
	return &ORBEngine{opts: opts}
}

func (e *ORBEngine) Enhance(gray *image.Gray) (*image.Gray, error) {
	if gray == nil {
		return nil, fmt.Errorf("vision: enhance nil image")
	}
	return CLAHE(gray, e.opts.ClipLimit, e.opts.Tiles), nil
}

func (e *ORBEngine) Extract(gray *image.Gray, maxFeatures int) (Features, error) {
	if gray == nil {
		return nil, fmt.Errorf("vision: extract nil image")
	}
	if gray.Rect.Min != (image.Point{}) {
		gray = Luminance(gray)
	}
	kps := detectFAST(gray, e.opts.FastThreshold, maxFeatures)
	f := &orbFeatures{
		points: make([]Point, 0, len(kps)),
		angles: make([]float64, 0, len(kps)),
		desc:   make([]descriptor, 0, len(kps)),
	}
	if len(kps) == 0 {
		return f, nil
	}
	smooth := boxBlur5(gray)
	for _, kp := range kps {
		a := orientation(gray, kp.x, kp.y)
		f.points = append(f.points, Point{X: float64(kp.x), Y: float64(kp.y)})
		f.angles = append(f.angles, a)
		f.desc = append(f.desc, describe(smooth, kp.x, kp.y, a))
	}
	return f, nil
}

func describe(s *image.Gray, x, y int, angle float64) descriptor {
	var d descriptor
	pattern := &steered[angleBin(angle)]
	c := y*s.Stride + x
	for i, p := range pattern {
		a := s.Pix[c+p.y1*s.Stride+p.x1]
		b := s.Pix[c+p.y2*s.Stride+p.x2]
		if a < b {
			d[i/64] |= 1 << uint(i%64)
		}
	}
	return d
}

func (e *ORBEngine) KnnMatch(query, train Features, k int) ([][]DMatch, error) {
	q, ok := query.(*orbFeatures)
	if !ok {
		return nil, ErrForeignFeatures
	}
	t, ok := train.(*orbFeatures)
	if !ok {
		return nil, ErrForeignFeatures
	}
	if k <= 0 {
		k = 1
	}
	out := make([][]DMatch, len(q.desc))
	for qi := range q.desc {
		best := make([]DMatch, 0, k)
		for ti := range t.desc {
			d := float64(hamming(&q.desc[qi], &t.desc[ti]))
			if len(best) == k && d >= best[k-1].Distance {
				continue
			}
			m := DMatch{QueryIdx: qi, TrainIdx: ti, Distance: d}
			pos := len(best)
			for pos > 0 && best[pos-1].Distance > d {
				pos--
			}
			if len(best) < k {
				best = append(best, DMatch{})
			}
			copy(best[pos+1:], best[pos:len(best)-1])
			best[pos] = m
		}
		out[qi] = best
	}
	return out, nil
}

func (e *ORBEngine) FindHomography(src, dst []Point, reprojThreshold float64, maxIters int) (Transform, []bool, error) {
	rng := rand.New(rand.NewSource(e.opts.Seed))
	h, mask, err := ransacHomography(src, dst, reprojThreshold, maxIters, rng)
	if err != nil {
		return nil, nil, err
	}
	return h, mask, nil
}

var _ Engine = (*ORBEngine)(nil)
