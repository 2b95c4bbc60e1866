// Package scan drives the recognition pipeline: frames are matched,
// stabilized, and confirmed switches fetch their payload and activate the
// overlay.
package scan

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/soocke/marker-lens-go/analytics"
	"github.com/soocke/marker-lens-go/config"
	"github.com/soocke/marker-lens-go/domain/asset"
	"github.com/soocke/marker-lens-go/domain/recognition"
	"github.com/soocke/marker-lens-go/domain/tracking"
	"github.com/soocke/marker-lens-go/domain/vision"
)

// Detector matches one frame against the registry.
type Detector interface {
	Detect(frame image.Image) (recognition.RecognitionResult, error)
}

// Fetcher resolves overlay payloads.
type Fetcher interface {
	Request(ctx context.Context, targetID string, ct recognition.ContentType, locator string) (*asset.Asset, error)
	Release()
}

// Overlay shows the payload of the active target.
type Overlay interface {
	Activate(target *recognition.Target, a *asset.Asset) error
	Poll()
	Dispose()
	Active() (string, recognition.ContentType, bool)
	// Pending reports an activation accepted but held back, which becomes
	// the visible overlay once the holder closes.
	Pending() (string, bool)
}

// Emitter receives scan analytics.
type Emitter interface {
	Emit(ev analytics.ScanEvent)
	Close() error
}

// Session owns the per-session pipeline state. Independent sessions share
// nothing.
type Session struct {
	ID        uuid.UUID
	StartedAt time.Time

	Registry   *recognition.Registry
	Matcher    Detector
	Stabilizer *tracking.Stabilizer
	Fetcher    Fetcher
	Overlay    Overlay
	Analytics  Emitter
}

// NewSession builds a session around engine. The registry, matcher and
// stabilizer are created here; fetcher, overlay and analytics are supplied
// by the host. analytics may be nil.
func NewSession(cfg *config.Config, engine vision.Engine, fetcher Fetcher, ov Overlay, em Emitter, logger *slog.Logger) *Session {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	reg := recognition.NewRegistry(engine, cfg, logger)
	return &Session{
		ID:         uuid.New(),
		StartedAt:  time.Now(),
		Registry:   reg,
		Matcher:    recognition.NewMatcher(reg, engine, cfg, logger),
		Stabilizer: tracking.NewStabilizer(cfg.StabilityFrames),
		Fetcher:    fetcher,
		Overlay:    ov,
		Analytics:  em,
	}
}
