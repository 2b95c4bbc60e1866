// Package vision wraps the feature extraction, descriptor matching and robust
// geometric fitting primitives consumed by the recognition pipeline.
//
// Every object produced by an Engine (feature sets, transforms) has a single
// owner that must Close it. Scope collects those closers so that a caller can
// release everything on every exit path with one deferred call.
package vision

import (
	"errors"
	"image"
	"io"
	"math"
)

var (
	// ErrTooFewPoints is returned by FindHomography when fewer than four
	// correspondences are supplied.
	ErrTooFewPoints = errors.New("vision: at least 4 point pairs required")
	// ErrNoModel is returned when RANSAC could not fit any non-degenerate model.
	ErrNoModel = errors.New("vision: no homography found")
	// ErrForeignFeatures is returned when features produced by another engine
	// are passed to KnnMatch.
	ErrForeignFeatures = errors.New("vision: features belong to a different engine")
)

// Point is a sub-pixel image coordinate.
type Point struct{ X, Y float64 }

// Features is an owned set of keypoints plus descriptors.
type Features interface {
	Len() int
	Point(i int) Point
	Close() error
}

// DMatch is a single descriptor correspondence between a query and a train set.
type DMatch struct {
	QueryIdx int
	TrainIdx int
	Distance float64
}

// Transform is a planar projective transform (3x3, row-major).
type Transform interface {
	Project(p Point) Point
	Matrix() [9]float64
	Close() error
}

// Engine is the vision capability used by the registry and the frame matcher.
type Engine interface {
	// Enhance applies local contrast enhancement to a luminance image.
	Enhance(gray *image.Gray) (*image.Gray, error)
	// Extract detects at most maxFeatures local features on gray.
	Extract(gray *image.Gray, maxFeatures int) (Features, error)
	// KnnMatch returns, for each query descriptor, up to k nearest train
	// descriptors ordered by ascending distance.
	KnnMatch(query, train Features, k int) ([][]DMatch, error)
	// FindHomography robustly fits dst ~ H*src and reports the inlier mask.
	FindHomography(src, dst []Point, reprojThreshold float64, maxIters int) (Transform, []bool, error)
}

// Scope owns a set of closers and releases them in reverse acquisition order.
// The zero value is ready to use.
type Scope struct {
	closers []io.Closer
}

// Add registers c for release. Nil closers are ignored.
func (s *Scope) Add(c io.Closer) {
	if c == nil {
		return
	}
	s.closers = append(s.closers, c)
}

// Keep removes c from the scope so that ownership passes to the caller.
func (s *Scope) Keep(c io.Closer) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if s.closers[i] == c {
			s.closers = append(s.closers[:i], s.closers[i+1:]...)
			return
		}
	}
}

// Close releases every registered closer and joins their errors.
func (s *Scope) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Homography is a value Transform; Close is a no-op.
type Homography [9]float64

// Identity returns the identity homography.
func Identity() Homography { return Homography{1, 0, 0, 0, 1, 0, 0, 0, 1} }

// Project maps p through the homography. Points mapped to infinity yield NaN.
func (h Homography) Project(p Point) Point {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if math.Abs(w) < 1e-12 {
		return Point{math.NaN(), math.NaN()}
	}
	return Point{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}
}

func (h Homography) Matrix() [9]float64 { return h }
func (h Homography) Close() error       { return nil }

// Scaled returns the homography composed with a uniform scale of the output
// plane, used to map frame coordinates of a downscaled frame back to the
// original resolution.
func (h Homography) Scaled(s float64) Homography {
	return Homography{
		h[0] * s, h[1] * s, h[2] * s,
		h[3] * s, h[4] * s, h[5] * s,
		h[6], h[7], h[8],
	}
}
