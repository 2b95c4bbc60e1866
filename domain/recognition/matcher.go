package recognition

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/soocke/marker-lens-go/config"
	"github.com/soocke/marker-lens-go/domain/vision"
)

// RecognitionResult is the outcome of matching one frame. When Detected is
// true the caller owns Transform and must Close it (see Close).
type RecognitionResult struct {
	Detected   bool
	TargetID   string
	Confidence int
	// Transform maps the target's reference plane into frame coordinates.
	Transform vision.Transform
}

// Close releases the transform, if any.
func (r *RecognitionResult) Close() error {
	if r == nil || r.Transform == nil {
		return nil
	}
	err := r.Transform.Close()
	r.Transform = nil
	return err
}

// FrameError reports a failure while processing a single frame. The frame is
// treated as having no detection.
type FrameError struct {
	Op  string
	Err error
}

func (e *FrameError) Error() string { return "recognition: " + e.Op + ": " + e.Err.Error() }
func (e *FrameError) Unwrap() error { return e.Err }

// Matcher finds the best registered target in a frame.
type Matcher struct {
	registry *Registry
	engine   vision.Engine
	cfg      *config.Config
	logger   *slog.Logger
}

// NewMatcher returns a matcher reading thresholds from cfg on every call, so
// runtime config edits apply to the next frame.
func NewMatcher(registry *Registry, engine vision.Engine, cfg *config.Config, logger *slog.Logger) *Matcher {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Matcher{registry: registry, engine: engine, cfg: cfg, logger: logger}
}

// Detect runs the matching pipeline on frame. Among targets reaching
// MinInliers geometric inliers the one with the most inliers wins; ties keep
// the earliest registered target. Every intermediate resource is released
// before returning except the winning transform.
func (m *Matcher) Detect(frame image.Image) (res RecognitionResult, err error) {
	if m == nil || frame == nil || m.registry.Len() == 0 {
		return RecognitionResult{}, nil
	}
	var scope vision.Scope
	defer func() {
		if p := recover(); p != nil {
			res, err = RecognitionResult{}, &FrameError{Op: "detect", Err: fmt.Errorf("panic: %v", p)}
		}
		if cerr := scope.Close(); cerr != nil && m.logger != nil {
			m.logger.Debug("release scratch", "error", cerr)
		}
	}()

	gray, factor, err := prepare(m.engine, frame, m.cfg)
	if err != nil {
		return RecognitionResult{}, &FrameError{Op: "prepare", Err: err}
	}
	feats, err := m.engine.Extract(gray, m.cfg.MaxFeatures)
	if err != nil {
		return RecognitionResult{}, &FrameError{Op: "extract", Err: err}
	}
	scope.Add(feats)
	if feats.Len() == 0 {
		return RecognitionResult{}, nil
	}

	var (
		best        *Target
		bestTr      vision.Transform
		bestInliers int
	)
	for _, t := range m.registry.targets {
		tr, inliers, err := m.matchTarget(t, feats)
		if err != nil {
			return RecognitionResult{}, &FrameError{Op: "match " + t.ID, Err: err}
		}
		if tr == nil {
			continue
		}
		scope.Add(tr)
		if inliers < m.cfg.MinInliers {
			continue
		}
		if inliers > bestInliers {
			best, bestTr, bestInliers = t, tr, inliers
		}
	}
	if best == nil {
		return RecognitionResult{}, nil
	}
	scope.Keep(bestTr)
	var out vision.Transform = bestTr
	if factor != 1 {
		out = scaledTransform{Transform: bestTr, factor: factor}
	}
	return RecognitionResult{Detected: true, TargetID: best.ID, Confidence: bestInliers, Transform: out}, nil
}

// matchTarget returns the fitted transform and its inlier count, or a nil
// transform when the target is not a candidate for this frame.
func (m *Matcher) matchTarget(t *Target, frame vision.Features) (vision.Transform, int, error) {
	if t.signature == nil || t.signature.Len() == 0 {
		return nil, 0, nil
	}
	knn, err := m.engine.KnnMatch(t.signature, frame, 2)
	if err != nil {
		return nil, 0, err
	}
	var src, dst []vision.Point
	for _, row := range knn {
		if len(row) < 2 || row[0].Distance >= m.cfg.RatioThreshold*row[1].Distance {
			continue
		}
		src = append(src, t.signature.Point(row[0].QueryIdx))
		dst = append(dst, frame.Point(row[0].TrainIdx))
	}
	if len(src) < m.cfg.MinGoodMatches {
		return nil, 0, nil
	}
	tr, mask, err := m.engine.FindHomography(src, dst, m.cfg.RansacReprojThreshold, m.cfg.RansacMaxIters)
	if errors.Is(err, vision.ErrNoModel) || errors.Is(err, vision.ErrTooFewPoints) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	inliers := 0
	for _, in := range mask {
		if in {
			inliers++
		}
	}
	return tr, inliers, nil
}

// scaledTransform maps into the original frame when detection ran on a
// downscaled copy.
type scaledTransform struct {
	vision.Transform
	factor float64
}

func (s scaledTransform) Project(p vision.Point) vision.Point {
	q := s.Transform.Project(p)
	return vision.Point{X: q.X * s.factor, Y: q.Y * s.factor}
}

func (s scaledTransform) Matrix() [9]float64 {
	m := s.Transform.Matrix()
	for i := 0; i < 6; i++ {
		m[i] *= s.factor
	}
	return m
}

// Outline projects the target's reference corners into frame coordinates.
func Outline(t *Target, tr vision.Transform) [4]vision.Point {
	var out [4]vision.Point
	if t == nil || tr == nil {
		return out
	}
	for i, c := range t.Corners() {
		out[i] = tr.Project(c)
	}
	return out
}
