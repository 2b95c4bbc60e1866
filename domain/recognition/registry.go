package recognition

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/soocke/marker-lens-go/config"
	"github.com/soocke/marker-lens-go/domain/vision"
)

// Registry holds the feature signature of every registered marker, in
// registration order. Matching a frame costs one KNN match plus at most one
// homography fit per registered target, so the practical number of markers
// per session is bounded by the tick budget.
//
// Registry is not safe for concurrent use; the scan loop is its only writer.
type Registry struct {
	engine  vision.Engine
	cfg     *config.Config
	logger  *slog.Logger
	targets []*Target
	index   map[string]int
}

// NewRegistry returns an empty registry. If cfg is nil the default
// configuration is used.
func NewRegistry(engine vision.Engine, cfg *config.Config, logger *slog.Logger) *Registry {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Registry{engine: engine, cfg: cfg, logger: logger, index: make(map[string]int)}
}

// Register extracts a signature from ref and stores it under id. It returns
// false and leaves the registry unchanged when the image does not yield at
// least MinGoodMatches features. Registering an existing id replaces its
// signature in place.
func (r *Registry) Register(id string, ref image.Image, content Content) (ok bool) {
	if r == nil || id == "" || ref == nil {
		return false
	}
	var scope vision.Scope
	defer func() {
		if p := recover(); p != nil {
			r.warn("target rejected", id, fmt.Errorf("panic: %v", p))
			ok = false
		}
		_ = scope.Close()
	}()
	gray, _, err := prepare(r.engine, ref, r.cfg)
	if err != nil {
		r.warn("target rejected", id, err)
		return false
	}
	feats, err := r.engine.Extract(gray, r.cfg.MaxFeatures)
	if err != nil {
		r.warn("target rejected", id, fmt.Errorf("extract: %w", err))
		return false
	}
	scope.Add(feats)
	if feats.Len() < r.cfg.MinGoodMatches {
		r.warn("target rejected", id, fmt.Errorf("only %d features", feats.Len()))
		return false
	}
	t := &Target{
		ID:        id,
		Content:   content,
		Width:     gray.Rect.Dx(),
		Height:    gray.Rect.Dy(),
		signature: feats,
	}
	var replaced *Target
	if i, exists := r.index[id]; exists {
		replaced = r.targets[i]
		r.targets[i] = t
	} else {
		r.index[id] = len(r.targets)
		r.targets = append(r.targets, t)
	}
	scope.Keep(feats)
	if replaced != nil {
		_ = replaced.signature.Close()
	}
	if r.logger != nil {
		r.logger.Debug("target registered", "target", id, "features", feats.Len(), "type", string(content.Type))
	}
	return true
}

// Clear releases every signature. Safe to call repeatedly.
func (r *Registry) Clear() {
	if r == nil {
		return
	}
	for _, t := range r.targets {
		if t.signature != nil {
			_ = t.signature.Close()
			t.signature = nil
		}
	}
	r.targets = nil
	r.index = make(map[string]int)
}

// Len returns the number of registered targets.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.targets)
}

// Target looks up a registered target by id.
func (r *Registry) Target(id string) (*Target, bool) {
	if r == nil {
		return nil, false
	}
	i, ok := r.index[id]
	if !ok {
		return nil, false
	}
	return r.targets[i], true
}

// IDs returns the registered ids in registration order.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, len(r.targets))
	for i, t := range r.targets {
		ids[i] = t.ID
	}
	return ids
}

func (r *Registry) warn(msg, id string, err error) {
	if r.logger != nil {
		r.logger.Warn(msg, "target", id, "error", err)
	}
}

// prepare bounds the longer side of img to MaxFrameWidth, converts it to luminance and applies
// contrast enhancement. The returned factor maps prepared coordinates back to
// img coordinates.
func prepare(engine vision.Engine, img image.Image, cfg *config.Config) (*image.Gray, float64, error) {
	small, factor := vision.Downscale(img, cfg.MaxFrameWidth)
	gray := vision.Luminance(small)
	if gray.Rect.Empty() {
		return nil, factor, fmt.Errorf("empty image")
	}
	enhanced, err := engine.Enhance(gray)
	if err != nil {
		return nil, factor, fmt.Errorf("enhance: %w", err)
	}
	return enhanced, factor, nil
}
