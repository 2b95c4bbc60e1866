package presenter

import (
	"fmt"
	"image"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/soocke/marker-lens-go/domain/capture"
	"github.com/soocke/marker-lens-go/domain/scan"
	"github.com/soocke/marker-lens-go/domain/vision"
	"github.com/soocke/marker-lens-go/ui/model"
)

// ScanLoop is the running scan session as seen by the presenter.
type ScanLoop interface {
	Tick(now time.Time)
	Stats() scan.Stats
}

// ScanView describes the UI surface updated by the presenter. outline is
// nil when no marker is recognized in img.
type ScanView interface {
	UpdateCapture(img image.Image, outline *[4]vision.Point)
	SetStateLabel(string)
	SetLoopStats(processed, detections uint64, last time.Duration)
}

// ScanPresenter advances the current scan loop once per UI tick and mirrors
// its observations into the models and the view.
type ScanPresenter struct {
	Enabled func() bool
	Loop    func() ScanLoop
	Source  capture.FrameSource
	Model   *model.ScanModel
	Session *model.SessionModel
	View    ScanView
	logger  *slog.Logger

	previewSeq uint64
	lastState  string
}

// NewScanPresenter constructs a scan presenter.
func NewScanPresenter(enabled func() bool, loop func() ScanLoop, source capture.FrameSource, m *model.ScanModel, sess *model.SessionModel, view ScanView, logger *slog.Logger) *ScanPresenter {
	return &ScanPresenter{Enabled: enabled, Loop: loop, Source: source, Model: m, Session: sess, View: view, logger: logger}
}

// Observe is installed as the loop's observation callback.
func (p *ScanPresenter) Observe(o scan.Observation) {
	if p == nil {
		return
	}
	p.Model.Observe(o)
	if o.Switched != "" {
		p.Session.RecordScan(o.Switched)
	}
}

// ProcessFrame ticks the loop and refreshes the preview and status.
func (p *ScanPresenter) ProcessFrame(now time.Time) {
	if p == nil || p.Enabled == nil || p.Loop == nil || p.View == nil || !p.Enabled() {
		return
	}
	defer func() {
		if r := recover(); r != nil && p.logger != nil {
			p.logger.Error("panic recovered", "where", "scan presenter", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	loop := p.Loop()
	if loop == nil {
		return
	}
	loop.Tick(now)

	obs, fresh := p.Model.TakeObservation()
	if p.Source != nil {
		snap := p.Source.LatestFrame()
		if snap.Image != nil && snap.Sequence != p.previewSeq {
			p.previewSeq = snap.Sequence
			last := p.Model.Last()
			var outline *[4]vision.Point
			// the outline is only valid for the frame it was computed on
			if last.Detected && last.Sequence == snap.Sequence {
				outline = &last.Outline
			}
			p.View.UpdateCapture(snap.Image, outline)
		}
	}
	if fresh {
		if s := StatusText(obs); s != p.lastState {
			p.lastState = s
			p.View.SetStateLabel(s)
		}
	}
	st := loop.Stats()
	p.View.SetLoopStats(st.Processed, st.Detections, st.LastDuration)
}

// Reset forgets per-session presentation state.
func (p *ScanPresenter) Reset() {
	if p == nil {
		return
	}
	p.previewSeq, p.lastState = 0, ""
}

// StatusText renders an observation for the state label.
func StatusText(o scan.Observation) string {
	active := o.Active
	if active == "" {
		active = "none"
	}
	switch {
	case o.Pending != "":
		return fmt.Sprintf("Active: %s | candidate %s ×%d", active, o.Pending, o.PendingCount)
	case o.Detected:
		return fmt.Sprintf("Active: %s | tracking %s (%d inliers)", active, o.TargetID, o.Confidence)
	default:
		return fmt.Sprintf("Active: %s | searching…", active)
	}
}
