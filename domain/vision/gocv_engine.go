//go:build gocv

package vision

// OpenCV-backed Engine. Built only with -tags gocv since it requires the
// OpenCV shared libraries at link time.

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// GoCVEngine implements Engine with OpenCV's CLAHE, ORB, brute-force Hamming
// matcher and RANSAC homography.
type GoCVEngine struct {
	clipLimit     float64
	tiles         int
	fastThreshold int
}

// NewGoCVEngine returns an OpenCV engine configured like the pure-Go one.
func NewGoCVEngine(opts ORBOptions) *GoCVEngine {
	e := &GoCVEngine{clipLimit: opts.ClipLimit, tiles: opts.Tiles, fastThreshold: opts.FastThreshold}
	if e.clipLimit <= 0 {
		e.clipLimit = 2.0
	}
	if e.tiles <= 0 {
		e.tiles = 8
	}
	if e.fastThreshold <= 0 {
		e.fastThreshold = 20
	}
	return e
}

// gocvFeatures owns the descriptor Mat produced by ORB.
type gocvFeatures struct {
	points []Point
	desc   gocv.Mat
	closed bool
}

func (f *gocvFeatures) Len() int          { return len(f.points) }
func (f *gocvFeatures) Point(i int) Point { return f.points[i] }

func (f *gocvFeatures) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.points = nil
	return f.desc.Close()
}

func (e *GoCVEngine) Enhance(gray *image.Gray) (*image.Gray, error) {
	src, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return nil, fmt.Errorf("vision: gray to mat: %w", err)
	}
	defer src.Close()
	dst := gocv.NewMat()
	defer dst.Close()
	clahe := gocv.NewCLAHEWithParams(e.clipLimit, image.Pt(e.tiles, e.tiles))
	defer clahe.Close()
	clahe.Apply(src, &dst)
	img, err := dst.ToImage()
	if err != nil {
		return nil, fmt.Errorf("vision: mat to image: %w", err)
	}
	out, ok := img.(*image.Gray)
	if !ok {
		return Luminance(img), nil
	}
	return out, nil
}

func (e *GoCVEngine) Extract(gray *image.Gray, maxFeatures int) (Features, error) {
	src, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return nil, fmt.Errorf("vision: gray to mat: %w", err)
	}
	defer src.Close()
	orb := gocv.NewORBWithParams(maxFeatures, 1.2, 8, 31, 0, 2, gocv.ORBScoreTypeHarris, 31, e.fastThreshold)
	defer orb.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	kps, desc := orb.DetectAndCompute(src, mask)
	f := &gocvFeatures{points: make([]Point, len(kps)), desc: desc}
	for i, kp := range kps {
		f.points[i] = Point{X: kp.X, Y: kp.Y}
	}
	return f, nil
}

func (e *GoCVEngine) KnnMatch(query, train Features, k int) ([][]DMatch, error) {
	q, ok := query.(*gocvFeatures)
	if !ok {
		return nil, ErrForeignFeatures
	}
	t, ok := train.(*gocvFeatures)
	if !ok {
		return nil, ErrForeignFeatures
	}
	if q.desc.Empty() || t.desc.Empty() {
		return nil, nil
	}
	bf := gocv.NewBFMatcherWithParams(gocv.NormHamming, false)
	defer bf.Close()
	raw := bf.KnnMatch(q.desc, t.desc, k)
	out := make([][]DMatch, len(raw))
	for i, ms := range raw {
		out[i] = make([]DMatch, len(ms))
		for j, m := range ms {
			out[i][j] = DMatch{QueryIdx: m.QueryIdx, TrainIdx: m.TrainIdx, Distance: m.Distance}
		}
	}
	return out, nil
}

func (e *GoCVEngine) FindHomography(src, dst []Point, reprojThreshold float64, maxIters int) (Transform, []bool, error) {
	if len(src) < 4 || len(src) != len(dst) {
		return nil, nil, ErrTooFewPoints
	}
	srcMat := pointsMat(src)
	defer srcMat.Close()
	dstMat := pointsMat(dst)
	defer dstMat.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	h := gocv.FindHomography(srcMat, &dstMat, gocv.HomographyMethodRANSAC, reprojThreshold, &mask, maxIters, 0.995)
	defer h.Close()
	if h.Empty() {
		return nil, nil, ErrNoModel
	}
	var out Homography
	for i := 0; i < 9; i++ {
		out[i] = h.GetDoubleAt(i/3, i%3)
	}
	inliers := make([]bool, len(src))
	for i := range inliers {
		inliers[i] = mask.GetUCharAt(i, 0) != 0
	}
	return out, inliers, nil
}

func pointsMat(pts []Point) gocv.Mat {
	m := gocv.NewMatWithSize(len(pts), 1, gocv.MatTypeCV64FC2)
	for i, p := range pts {
		m.SetDoubleAt(i, 0, p.X)
		m.SetDoubleAt(i, 1, p.Y)
	}
	return m
}

var _ Engine = (*GoCVEngine)(nil)
